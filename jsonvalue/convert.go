package jsonvalue

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// FromInterface converts a plain Go value into a Value. Types other than the
// JSON primitives, slices and string-keyed maps are converted through their
// JSON encoding.
func FromInterface(in any) (Value, error) {
	switch t := in.(type) {
	case nil:
		return NewNull(), nil
	case Value:
		return t, nil
	case bool:
		return NewBool(t), nil
	case string:
		return NewString(t), nil
	case json.Number:
		return NewNumber(t), nil
	case int:
		return NewInt(int64(t)), nil
	case int32:
		return NewInt(int64(t)), nil
	case int64:
		return NewInt(t), nil
	case uint32:
		return NewInt(int64(t)), nil
	case float32:
		return NewFloat(float64(t)), nil
	case float64:
		return NewFloat(t), nil
	case []Value:
		return NewArray(t...), nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = NewString(s)
		}
		return NewArray(items...), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromInterface(item)
			if err != nil {
				return Value{}, errors.WithMessagef(err, "index %d", i)
			}
			items[i] = v
		}
		return NewArray(items...), nil
	case map[string]Value:
		return NewObject(t), nil
	case map[string]string:
		fields := make(map[string]Value, len(t))
		for k, s := range t {
			fields[k] = NewString(s)
		}
		return Value{kind: Object, obj: fields}, nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := FromInterface(item)
			if err != nil {
				return Value{}, errors.WithMessagef(err, "field %q", k)
			}
			fields[k] = v
		}
		return Value{kind: Object, obj: fields}, nil
	}

	data, err := json.Marshal(in)
	if err != nil {
		return Value{}, errors.Wrapf(err, "unsupported value of type %T", in)
	}
	raw, err := decode(data)
	if err != nil {
		return Value{}, err
	}
	return FromInterface(raw)
}

// MustFromInterface is like FromInterface but panics on error. It is meant for
// literals in tests and examples.
func MustFromInterface(in any) Value {
	v, err := FromInterface(in)
	if err != nil {
		panic(err)
	}
	return v
}

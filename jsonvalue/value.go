// Package jsonvalue implements a tagged JSON value used for open-ended token
// payloads. Numbers keep their decimal text so integer claims such as iat and
// exp survive a decode/encode cycle without float rounding.
package jsonvalue

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Kind identifies the JSON type held by a Value.
type Kind uint8

// Kinds of JSON values.
const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

var kindNames = [...]string{"null", "bool", "number", "string", "array", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ErrNotObject is returned when a JSON document is expected to be an object.
var ErrNotObject = errors.New("JSON value is not an object")

// Value is an immutable JSON value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	// text holds string contents or the decimal representation of a number
	text string
	arr  []Value
	obj  map[string]Value
}

// NewNull returns the null value.
func NewNull() Value { return Value{} }

// NewBool returns a boolean value.
func NewBool(b bool) Value { return Value{kind: Bool, b: b} }

// NewString returns a string value.
func NewString(s string) Value { return Value{kind: String, text: s} }

// NewInt returns an integer number value.
func NewInt(i int64) Value { return Value{kind: Number, text: strconv.FormatInt(i, 10)} }

// NewFloat returns a number value. NaN and infinities are not representable
// in JSON and are converted to null.
func NewFloat(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return NewNull()
	}
	return Value{kind: Number, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// NewNumber returns a number value from its JSON text.
func NewNumber(n json.Number) Value { return Value{kind: Number, text: n.String()} }

// NewArray returns an array value.
func NewArray(items ...Value) Value {
	return Value{kind: Array, arr: append([]Value{}, items...)}
}

// NewObject returns an object value holding a copy of fields.
func NewObject(fields map[string]Value) Value {
	obj := make(map[string]Value, len(fields))
	for k, v := range fields {
		obj[k] = v
	}
	return Value{kind: Object, obj: obj}
}

// Kind returns the JSON type of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == Null }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == Bool
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.text, true
}

// AsNumber returns the JSON text of a number value.
func (v Value) AsNumber() (json.Number, bool) {
	if v.kind != Number {
		return "", false
	}
	return json.Number(v.text), true
}

// AsInt64 returns the number held by v as an integer. Numbers written in
// exponent or fractional form are accepted when they hold an integral value.
func (v Value) AsInt64() (int64, bool) {
	if v.kind != Number {
		return 0, false
	}
	if i, err := strconv.ParseInt(v.text, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil || f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// AsFloat64 returns the number held by v as a float.
func (v Value) AsFloat64() (float64, bool) {
	if v.kind != Number {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.text, 64)
	return f, err == nil
}

// AsArray returns the items of an array value.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != Array {
		return nil, false
	}
	return v.arr, true
}

// AsObject returns the fields of an object value.
func (v Value) AsObject() (map[string]Value, bool) {
	if v.kind != Object {
		return nil, false
	}
	return v.obj, true
}

// Equal reports whether v and other hold the same JSON value. Numbers are
// compared numerically.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Bool:
		return v.b == other.b
	case String:
		return v.text == other.text
	case Number:
		if v.text == other.text {
			return true
		}
		a, okA := v.AsFloat64()
		b, okB := other.AsFloat64()
		return okA && okB && a == b
	case Array:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, a := range v.obj {
			b, ok := other.obj[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts v into plain Go values: nil, bool, json.Number, string,
// []any and map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		return json.Number(v.text)
	case String:
		return v.text
	case Array:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case Object:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case Null:
		return []byte("null"), nil
	case Bool:
		return strconv.AppendBool(nil, v.b), nil
	case Number:
		return []byte(v.text), nil
	case String:
		return json.Marshal(v.text)
	case Array:
		return json.Marshal(v.arr)
	case Object:
		return json.Marshal(v.obj)
	}
	return nil, errors.Errorf("unknown JSON kind: %s", v.kind)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	raw, err := decode(data)
	if err != nil {
		return err
	}
	parsed, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseObject decodes a JSON document that must be an object.
func ParseObject(data []byte) (map[string]Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}
	raw, err := decode(trimmed)
	if err != nil {
		return nil, err
	}
	v, err := FromInterface(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := v.AsObject()
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}

func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "unable to decode JSON")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}
	return raw, nil
}

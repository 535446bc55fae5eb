package jwt

import (
	"maps"

	"github.com/cockroachdb/errors"
	"github.com/pilacorp/go-didjwt/jsonvalue"
)

// Registered claim names interpreted by the engine.
const (
	ClaimIssuer    = "iss"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
	ClaimAudience  = "aud"
	ClaimSubject   = "sub"
)

// Payload is the claim set of a token.
type Payload map[string]jsonvalue.Value

// NewPayload converts plain Go claims into a Payload.
func NewPayload(claims map[string]any) (Payload, error) {
	p := make(Payload, len(claims))
	for k, v := range claims {
		jv, err := jsonvalue.FromInterface(v)
		if err != nil {
			return nil, errors.WithMessagef(err, "claim %q", k)
		}
		p[k] = jv
	}
	return p, nil
}

// Clone returns a shallow copy of p. Values are immutable, so the copy can
// be modified freely.
func (p Payload) Clone() Payload {
	if p == nil {
		return Payload{}
	}
	return maps.Clone(p)
}

// Get returns the claim named key. Null claims are reported as absent.
func (p Payload) Get(key string) (jsonvalue.Value, bool) {
	v, ok := p[key]
	if !ok || v.IsNull() {
		return jsonvalue.Value{}, false
	}
	return v, true
}

// Set stores a claim.
func (p Payload) Set(key string, v jsonvalue.Value) {
	p[key] = v
}

// String returns a string claim.
func (p Payload) String(key string) (string, bool) {
	v, ok := p.Get(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Issuer returns the iss claim.
func (p Payload) Issuer() (string, bool) {
	return p.String(ClaimIssuer)
}

// Subject returns the sub claim.
func (p Payload) Subject() (string, bool) {
	return p.String(ClaimSubject)
}

// IssuedAt returns the iat claim in Unix seconds.
func (p Payload) IssuedAt() (int64, bool) {
	return p.unix(ClaimIssuedAt)
}

// ExpiresAt returns the exp claim in Unix seconds.
func (p Payload) ExpiresAt() (int64, bool) {
	return p.unix(ClaimExpiresAt)
}

func (p Payload) unix(key string) (int64, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	return v.AsInt64()
}

// Audience returns the aud claim, which may be a single string or a list.
func (p Payload) Audience() ([]string, bool) {
	v, ok := p.Get(ClaimAudience)
	if !ok {
		return nil, false
	}
	if s, ok := v.AsString(); ok {
		return []string{s}, true
	}
	items, ok := v.AsArray()
	if !ok {
		return nil, false
	}
	aud := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.AsString()
		if !ok {
			return nil, false
		}
		aud = append(aud, s)
	}
	return aud, true
}

// Equal reports whether both payloads carry the same claims.
func (p Payload) Equal(other Payload) bool {
	return jsonvalue.NewObject(p).Equal(jsonvalue.NewObject(other))
}

// Map converts p into plain Go values.
func (p Payload) Map() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v.Interface()
	}
	return out
}

// Package codec provides the base64url and token splitting primitives used to
// serialize DID-JWTs.
package codec

import (
	"encoding/base64"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrDecode is returned when a segment is not valid base64 or base64url.
	ErrDecode = errors.New("invalid base64 encoding")
	// ErrMalformedToken is returned when a token does not have the
	// header.payload.signature shape.
	ErrMalformedToken = errors.New("malformed token")
)

// Parts holds the three encoded segments of a token.
type Parts struct {
	Header    string
	Payload   string
	Signature string
}

// SigningInput returns the "header.payload" string covered by the signature.
func (p Parts) SigningInput() string {
	return p.Header + "." + p.Payload
}

// EncodeBase64URL encodes data as base64url without padding.
func EncodeBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeBase64URL decodes base64url input. Standard base64 (with '+', '/' and
// '=' padding) is accepted as well.
func DecodeBase64URL(s string) ([]byte, error) {
	normalized := strings.NewReplacer("+", "-", "/", "_", "=", "").Replace(s)
	data, err := base64.RawURLEncoding.DecodeString(normalized)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "unable to decode %q", truncate(s)), ErrDecode)
	}
	return data, nil
}

// SplitToken splits a token on its first two dots.
func SplitToken(token string) (Parts, error) {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 {
		return Parts{}, errors.Wrapf(ErrMalformedToken, "token must have 3 parts, got %d", len(parts))
	}
	return Parts{
		Header:    parts[0],
		Payload:   parts[1],
		Signature: parts[2],
	}, nil
}

func truncate(s string) string {
	if len(s) > 16 {
		return s[:16] + "..."
	}
	return s
}

package jose

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Algorithm is a JWT "alg" header value.
type Algorithm string

// Supported algorithms.
const (
	// ES256K is ECDSA over secp256k1 with a 64 byte r || s signature.
	ES256K Algorithm = "ES256K"
	// ES256KR is ES256K with an extra recovery byte.
	ES256KR Algorithm = "ES256K-R"
)

// ErrUnsupportedAlgorithm is returned for any alg other than ES256K and
// ES256K-R.
var ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

// Signer produces signatures over raw JWT signing input. Implementations
// hash the payload themselves and never expose key material.
type Signer interface {
	SignJWT(ctx context.Context, rawPayload []byte) (SignatureData, error)
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(ctx context.Context, rawPayload []byte) (SignatureData, error)

// SignJWT calls f.
func (f SignerFunc) SignJWT(ctx context.Context, rawPayload []byte) (SignatureData, error) {
	return f(ctx, rawPayload)
}

// ParseAlgorithm validates an alg header value.
func ParseAlgorithm(alg string) (Algorithm, error) {
	switch a := Algorithm(alg); a {
	case ES256K, ES256KR:
		return a, nil
	}
	return "", errors.Wrapf(ErrUnsupportedAlgorithm, "%q", alg)
}

// Recoverable reports whether signatures carry a recovery byte.
func (a Algorithm) Recoverable() bool {
	return a == ES256KR
}

// String returns the header value.
func (a Algorithm) String() string {
	return string(a)
}

// Sign signs payload with signer and returns the JOSE encoded signature
// segment.
func (a Algorithm) Sign(ctx context.Context, payload []byte, signer Signer) (string, error) {
	if _, err := ParseAlgorithm(string(a)); err != nil {
		return "", err
	}
	if signer == nil {
		return "", errors.New("signer is required")
	}

	sig, err := signer.SignJWT(ctx, payload)
	if err != nil {
		return "", errors.WithMessagef(err, "unable to sign with %s", a)
	}
	return EncodeJose(sig, a.Recoverable())
}

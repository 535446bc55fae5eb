package jwt

import (
	"github.com/cockroachdb/errors"
	"github.com/pilacorp/go-didjwt/codec"
	"github.com/pilacorp/go-didjwt/jose"
)

// Verification and encoding failures. Use errors.Is to classify an error
// returned by the engine.
var (
	// ErrMalformedToken is returned for tokens with the wrong number of
	// segments, empty segments or content that is not a JSON object.
	ErrMalformedToken = codec.ErrMalformedToken
	// ErrInvalidJWT is returned for tokens that are not yet valid or have
	// expired. Structural failures found by Verify are also marked with it.
	ErrInvalidJWT = errors.New("invalid JWT")
	// ErrUnsupportedAlgorithm is returned for any alg other than ES256K and
	// ES256K-R.
	ErrUnsupportedAlgorithm = jose.ErrUnsupportedAlgorithm
	// ErrUnresolvableIssuer is returned when the issuer DID cannot be
	// resolved.
	ErrUnresolvableIssuer = errors.New("unresolvable issuer")
	// ErrSignatureRecovery is returned when no public key can be recovered
	// from the signature.
	ErrSignatureRecovery = errors.New("signature recovery failed")
	// ErrNoMatchingKey is returned when the issuer was resolved and a key was
	// recovered, but no key of the issuer's document matches it. Unlike the
	// other errors it means the token is well formed but untrusted.
	ErrNoMatchingKey = errors.New("signature does not match any key of the issuer")
)

// IsUntrusted reports whether err is the soft "resolved but untrusted"
// failure rather than a structural or resolution failure.
func IsUntrusted(err error) bool {
	return errors.Is(err, ErrNoMatchingKey)
}

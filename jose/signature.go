// Package jose converts secp256k1 signatures to and from the compact JOSE
// encoding used in DID-JWT signature segments.
package jose

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/pilacorp/go-didjwt/codec"
)

// Sizes of the JOSE signature encoding.
const (
	SigComponentSize   = 32
	SigSize            = SigComponentSize * 2
	SigRecoverableSize = SigSize + 1

	// DefaultRecoveryParam is the V used when a signature carries no
	// recovery byte.
	DefaultRecoveryParam byte = 27
)

// ErrInvalidSignature is returned for signatures that cannot be encoded or
// decoded.
var ErrInvalidSignature = errors.New("invalid signature")

// SignatureData holds the r, s and recovery byte of an ECDSA signature.
// V is 27 or 28 for signatures produced by a signer, or 27+recId when decoded
// from a recoverable encoding.
type SignatureData struct {
	R *big.Int
	S *big.Int
	V byte
}

// FromRSV converts a 65 byte R || S || V signature, as produced by
// go-ethereum and remote signing services, into SignatureData. V may be given
// either as a recovery id (0..3) or already offset by 27.
func FromRSV(sig []byte) (SignatureData, error) {
	if len(sig) != SigRecoverableSize {
		return SignatureData{}, errors.Wrapf(ErrInvalidSignature, "expected %d bytes, got %d", SigRecoverableSize, len(sig))
	}
	return DecodeJoseBytes(sig, DefaultRecoveryParam)
}

// RecoveryID returns V normalized to a recovery id.
func (s SignatureData) RecoveryID() int {
	if s.V >= 27 {
		return int(s.V) - 27
	}
	return int(s.V)
}

// EncodeJoseBytes writes r and s as zero padded 32 byte big-endian integers,
// followed by the recovery id when recoverable is set.
func EncodeJoseBytes(sig SignatureData, recoverable bool) ([]byte, error) {
	if sig.R == nil || sig.S == nil {
		return nil, errors.Wrap(ErrInvalidSignature, "missing r or s")
	}
	if sig.R.Sign() < 0 || sig.S.Sign() < 0 || sig.R.BitLen() > 256 || sig.S.BitLen() > 256 {
		return nil, errors.Wrap(ErrInvalidSignature, "r and s must be unsigned 256-bit integers")
	}

	size := SigSize
	if recoverable {
		size = SigRecoverableSize
	}
	out := make([]byte, size)
	sig.R.FillBytes(out[:SigComponentSize])
	sig.S.FillBytes(out[SigComponentSize:SigSize])
	if recoverable {
		out[SigSize] = byte(sig.RecoveryID())
	}
	return out, nil
}

// EncodeJose returns the base64url JOSE encoding of sig.
func EncodeJose(sig SignatureData, recoverable bool) (string, error) {
	raw, err := EncodeJoseBytes(sig, recoverable)
	if err != nil {
		return "", err
	}
	return codec.EncodeBase64URL(raw), nil
}

// DecodeJose decodes a base64url JOSE signature. defaultV is used when the
// signature has no recovery byte.
func DecodeJose(encoded string, defaultV byte) (SignatureData, error) {
	raw, err := codec.DecodeBase64URL(encoded)
	if err != nil {
		return SignatureData{}, err
	}
	return DecodeJoseBytes(raw, defaultV)
}

// DecodeJoseBytes splits raw into r, s and the optional recovery byte.
// Recovery bytes below 27 are offset by 27.
func DecodeJoseBytes(raw []byte, defaultV byte) (SignatureData, error) {
	if len(raw) < SigSize {
		return SignatureData{}, errors.Wrapf(ErrInvalidSignature, "expected at least %d bytes, got %d", SigSize, len(raw))
	}

	v := defaultV
	if len(raw) > SigSize {
		v = raw[SigSize]
		if v < 27 {
			v += 27
		}
	}
	return SignatureData{
		R: new(big.Int).SetBytes(raw[:SigComponentSize]),
		S: new(big.Int).SetBytes(raw[SigComponentSize:SigSize]),
		V: v,
	}, nil
}

package jwt

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/crypto"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/pilacorp/go-didjwt/did"
	"github.com/pilacorp/go-didjwt/ecrecover"
	"github.com/pilacorp/go-didjwt/jose"
)

// SigningMethod exposes ES256K and ES256K-R to github.com/golang-jwt/jwt.
//
// Sign accepts a *ecdsa.PrivateKey or a jose.Signer. Verify accepts a
// *ecdsa.PublicKey or an Ethereum address string, and checks the signature
// by recovering the signer's key.
type SigningMethod struct {
	alg jose.Algorithm
}

// Signing methods registered with github.com/golang-jwt/jwt.
var (
	SigningMethodES256K  = &SigningMethod{alg: jose.ES256K}
	SigningMethodES256KR = &SigningMethod{alg: jose.ES256KR}
)

func init() {
	gojwt.RegisterSigningMethod(SigningMethodES256K.Alg(), func() gojwt.SigningMethod { return SigningMethodES256K })
	gojwt.RegisterSigningMethod(SigningMethodES256KR.Alg(), func() gojwt.SigningMethod { return SigningMethodES256KR })
}

// Alg returns the algorithm name
func (m *SigningMethod) Alg() string {
	return m.alg.String()
}

// Sign signs signingString with key
func (m *SigningMethod) Sign(signingString string, key any) ([]byte, error) {
	var signer jose.Signer
	switch k := key.(type) {
	case jose.Signer:
		signer = k
	case *ecdsa.PrivateKey:
		signer = privateKeySigner{k}
	default:
		return nil, gojwt.ErrInvalidKeyType
	}

	sig, err := signer.SignJWT(context.Background(), []byte(signingString))
	if err != nil {
		return nil, err
	}
	return jose.EncodeJoseBytes(sig, m.alg.Recoverable())
}

// Verify checks that signature over signingString was produced by key
func (m *SigningMethod) Verify(signingString string, signature []byte, key any) error {
	var expected string
	switch k := key.(type) {
	case *ecdsa.PublicKey:
		expected = crypto.PubkeyToAddress(*k).Hex()
	case string:
		expected = k
	default:
		return gojwt.ErrInvalidKeyType
	}

	size := jose.SigSize
	if m.alg.Recoverable() {
		size = jose.SigRecoverableSize
	}
	if len(signature) != size {
		return gojwt.ErrSignatureInvalid
	}

	sig, err := jose.DecodeJoseBytes(signature, jose.DefaultRecoveryParam)
	if err != nil {
		return errors.Mark(err, gojwt.ErrSignatureInvalid)
	}
	candidates := []byte{sig.V}
	if !m.alg.Recoverable() {
		candidates = []byte{27, 28}
	}
	for _, v := range candidates {
		sig.V = v
		pub, err := ecrecover.SignedJWTToKey([]byte(signingString), sig)
		if err != nil {
			continue
		}
		addr, err := did.AddressFromPublicKey(pub)
		if err == nil && did.SameAddress(addr, expected) {
			return nil
		}
	}
	return gojwt.ErrSignatureInvalid
}

type privateKeySigner struct {
	key *ecdsa.PrivateKey
}

func (s privateKeySigner) SignJWT(_ context.Context, rawPayload []byte) (jose.SignatureData, error) {
	hash := sha256.Sum256(rawPayload)
	sig, err := crypto.Sign(hash[:], s.key)
	if err != nil {
		return jose.SignatureData{}, errors.WithMessage(err, "signing failed")
	}
	return jose.FromRSV(sig)
}

// Package signer provides implementations of jose.Signer.
package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pilacorp/go-didjwt/jose"
)

// KeyPairSigner signs with an in-memory secp256k1 private key.
type KeyPairSigner struct {
	priv *ecdsa.PrivateKey
}

var _ jose.Signer = (*KeyPairSigner)(nil)

// NewKeyPairSigner creates a signer from a hex encoded private key, with or
// without the 0x prefix.
func NewKeyPairSigner(privHex string) (*KeyPairSigner, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privHex), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}
	return &KeyPairSigner{priv: priv}, nil
}

// NewKeyPairSignerFromKey creates a signer from an existing private key.
func NewKeyPairSignerFromKey(priv *ecdsa.PrivateKey) (*KeyPairSigner, error) {
	if priv == nil {
		return nil, errors.New("private key is required")
	}
	return &KeyPairSigner{priv: priv}, nil
}

// SignJWT signs sha256(rawPayload). The returned V is 27 or 28.
func (s *KeyPairSigner) SignJWT(ctx context.Context, rawPayload []byte) (jose.SignatureData, error) {
	if err := ctx.Err(); err != nil {
		return jose.SignatureData{}, err
	}
	hash := sha256.Sum256(rawPayload)
	sig, err := crypto.Sign(hash[:], s.priv)
	if err != nil {
		return jose.SignatureData{}, errors.Wrap(err, "failed to sign payload")
	}
	return jose.FromRSV(sig)
}

// Address returns the lower-case ethereum address of the key.
func (s *KeyPairSigner) Address() string {
	return strings.ToLower(crypto.PubkeyToAddress(s.priv.PublicKey).Hex())
}

// PublicKey returns the public key.
func (s *KeyPairSigner) PublicKey() *ecdsa.PublicKey {
	return &s.priv.PublicKey
}

// DID returns the did:ethr identifier of the key.
func (s *KeyPairSigner) DID() string {
	return "did:ethr:" + s.Address()
}

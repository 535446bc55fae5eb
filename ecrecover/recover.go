// Package ecrecover recovers secp256k1 public keys from ECDSA signatures.
package ecrecover

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pilacorp/go-didjwt/jose"
)

// PublicKeySize is the size of an uncompressed public key without its 0x04
// prefix.
const PublicKeySize = 64

var (
	// ErrInvalidRecoveryID is returned for recovery ids outside 0..3.
	ErrInvalidRecoveryID = errors.New("invalid recovery id")
	// ErrInvalidSignature is returned when r or s is outside [1, n-1].
	ErrInvalidSignature = errors.New("invalid signature components")
	// ErrRecovery is returned when no public key can be derived for the
	// given recovery id.
	ErrRecovery = errors.New("unable to recover public key")
)

var (
	curveN = crypto.S256().Params().N
	curveP = crypto.S256().Params().P
)

// RecoverFromSignature returns the 64 byte public key that produced the
// signature (r, s) over hash, for the candidate point selected by recID.
func RecoverFromSignature(recID int, r, s *big.Int, hash []byte) ([]byte, error) {
	if recID < 0 || recID > 3 {
		return nil, errors.Wrapf(ErrInvalidRecoveryID, "%d", recID)
	}
	if r == nil || s == nil || r.Sign() <= 0 || s.Sign() <= 0 || r.Cmp(curveN) >= 0 || s.Cmp(curveN) >= 0 {
		return nil, ErrInvalidSignature
	}
	if len(hash) == 0 {
		return nil, errors.New("message hash is required")
	}

	// x = r + (recID / 2) * n must be a field element
	x := new(big.Int).Mul(big.NewInt(int64(recID/2)), curveN)
	x.Add(x, r)
	if x.Cmp(curveP) >= 0 {
		return nil, errors.Wrapf(ErrRecovery, "x coordinate out of range for recovery id %d", recID)
	}

	var fieldX secp256k1.FieldVal
	fieldX.SetByteSlice(x.Bytes())

	// secp256k1 has cofactor 1, so every point on the curve has order n and
	// the nR == O check always holds once R decompresses.
	var R secp256k1.JacobianPoint
	if !secp256k1.DecompressY(&fieldX, recID&1 == 1, &R.Y) {
		return nil, errors.Wrapf(ErrRecovery, "x is not on the curve for recovery id %d", recID)
	}
	R.X.Set(&fieldX)
	R.Z.SetInt(1)

	var rScalar, sScalar, e secp256k1.ModNScalar
	rScalar.SetByteSlice(r.Bytes())
	sScalar.SetByteSlice(s.Bytes())
	e.SetByteSlice(hash)

	// Q = r^-1 (sR - eG) = (s * r^-1) R + (-e * r^-1) G
	rInv := new(secp256k1.ModNScalar).InverseValNonConst(&rScalar)
	u1 := new(secp256k1.ModNScalar).Mul2(&e, rInv).Negate()
	u2 := new(secp256k1.ModNScalar).Mul2(&sScalar, rInv)

	var Q, u1G, u2R secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(u1, &u1G)
	secp256k1.ScalarMultNonConst(u2, &R, &u2R)
	secp256k1.AddNonConst(&u1G, &u2R, &Q)

	if (Q.X.IsZero() && Q.Y.IsZero()) || Q.Z.IsZero() {
		return nil, errors.Wrapf(ErrRecovery, "point at infinity for recovery id %d", recID)
	}
	Q.ToAffine()

	pub := secp256k1.NewPublicKey(&Q.X, &Q.Y).SerializeUncompressed()
	return pub[1:], nil
}

// SignedJWTToKey hashes message with sha256 and recovers the public key using
// the recovery id carried in sig.V (27..34).
func SignedJWTToKey(message []byte, sig jose.SignatureData) ([]byte, error) {
	if sig.V < 27 || sig.V > 34 {
		return nil, errors.Wrapf(ErrInvalidRecoveryID, "header byte out of range: %d", sig.V)
	}
	hash := sha256.Sum256(message)
	return RecoverFromSignature(int(sig.V)-27, sig.R, sig.S, hash[:])
}

// PublicKeyOf returns the 64 byte public key of priv.
func PublicKeyOf(priv *ecdsa.PrivateKey) []byte {
	return crypto.FromECDSAPub(&priv.PublicKey)[1:]
}

package did

import (
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"github.com/pilacorp/go-didjwt/codec"
)

// ErrNoKeyMaterial is returned for public key entries without any key field.
var ErrNoKeyMaterial = errors.New("public key entry has no key material")

// ErrInvalidPublicKey is returned for keys that are not valid secp256k1 points.
var ErrInvalidPublicKey = errors.New("invalid public key")

// KeyMaterial is the key published by a PublicKeyEntry. It is one of
// EthAddress, HexKey, Base64Key or Base58Key.
type KeyMaterial interface {
	// Address returns the lower-case 0x prefixed ethereum address.
	Address() (string, error)

	keyMaterial()
}

// EthAddress is an explicitly published ethereum address.
type EthAddress common.Address

// HexKey is a public key published as hex.
type HexKey []byte

// Base64Key is a public key published as base64.
type Base64Key []byte

// Base58Key is a public key published as base58.
type Base58Key []byte

func (EthAddress) keyMaterial() {}
func (HexKey) keyMaterial()     {}
func (Base64Key) keyMaterial()  {}
func (Base58Key) keyMaterial()  {}

// Address implements KeyMaterial.
func (a EthAddress) Address() (string, error) {
	return strings.ToLower(common.Address(a).Hex()), nil
}

// Address implements KeyMaterial.
func (k HexKey) Address() (string, error) { return AddressFromPublicKey(k) }

// Address implements KeyMaterial.
func (k Base64Key) Address() (string, error) { return AddressFromPublicKey(k) }

// Address implements KeyMaterial.
func (k Base58Key) Address() (string, error) { return AddressFromPublicKey(k) }

// KeyMaterial decodes the populated key field of the entry. When more than
// one is set the explicit address wins, then hex, base64 and base58.
func (e PublicKeyEntry) KeyMaterial() (KeyMaterial, error) {
	switch {
	case e.EthereumAddress != "":
		if !common.IsHexAddress(e.EthereumAddress) {
			return nil, errors.Newf("invalid ethereumAddress %q in %s", e.EthereumAddress, e.ID)
		}
		return EthAddress(common.HexToAddress(e.EthereumAddress)), nil
	case e.PublicKeyHex != "":
		s := e.PublicKeyHex
		if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
			s = "0x" + s
		}
		raw, err := hexutil.Decode(s)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid publicKeyHex in %s", e.ID)
		}
		return HexKey(raw), nil
	case e.PublicKeyBase64 != "":
		raw, err := codec.DecodeBase64URL(e.PublicKeyBase64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid publicKeyBase64 in %s", e.ID)
		}
		return Base64Key(raw), nil
	case e.PublicKeyBase58 != "":
		raw, err := base58.Decode(e.PublicKeyBase58)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid publicKeyBase58 in %s", e.ID)
		}
		return Base58Key(raw), nil
	}
	return nil, errors.Wrapf(ErrNoKeyMaterial, "%s", e.ID)
}

// Address returns the comparison address of the entry.
func (e PublicKeyEntry) Address() (string, error) {
	km, err := e.KeyMaterial()
	if err != nil {
		return "", err
	}
	return km.Address()
}

// NormalizePublicKey accepts a compressed (33 bytes), uncompressed (65 bytes)
// or raw (64 bytes) secp256k1 public key and returns the raw 64 byte form.
func NormalizePublicKey(pub []byte) ([]byte, error) {
	if len(pub) == 64 {
		pub = append([]byte{0x04}, pub...)
	}
	key, err := btcec.ParsePubKey(pub)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "unable to parse %d byte key", len(pub)), ErrInvalidPublicKey)
	}
	return key.SerializeUncompressed()[1:], nil
}

// AddressFromPublicKey derives the lower-case ethereum address of pub: the
// last 20 bytes of keccak256 over the raw 64 byte key.
func AddressFromPublicKey(pub []byte) (string, error) {
	raw, err := NormalizePublicKey(pub)
	if err != nil {
		return "", err
	}
	return strings.ToLower(common.BytesToAddress(crypto.Keccak256(raw)[12:]).Hex()), nil
}

// SameAddress compares two addresses ignoring case.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

package did

import (
	"crypto/ecdsa"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SecurityContext is written alongside DefaultContext in generated documents.
const SecurityContext = "https://w3id.org/security/v1"

// KeyPair is a generated secp256k1 key and the DID derived from it.
type KeyPair struct {
	Address    string `json:"address"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
	DID        string `json:"did"`
}

// Generator creates address based DIDs, did:<method>:<address>, and their
// documents.
type Generator struct {
	method string
}

// NewGenerator returns a generator for method.
func NewGenerator(method string) *Generator {
	return &Generator{
		method: method,
	}
}

// DID returns the DID of address.
func (g *Generator) DID(address string) string {
	return strings.ToLower("did:" + g.method + ":" + address)
}

// GenerateKeyPair creates a random key and its DID.
func (g *Generator) GenerateKeyPair() (*KeyPair, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate private key")
	}
	return g.KeyPair(privateKey), nil
}

// KeyPair describes privateKey.
func (g *Generator) KeyPair(privateKey *ecdsa.PrivateKey) *KeyPair {
	address := strings.ToLower(crypto.PubkeyToAddress(privateKey.PublicKey).Hex())
	return &KeyPair{
		Address:    address,
		PublicKey:  hexutil.Encode(crypto.CompressPubkey(&privateKey.PublicKey)),
		PrivateKey: hexutil.Encode(crypto.FromECDSA(privateKey)),
		DID:        g.DID(address),
	}
}

// Document returns a document publishing the public key of kp as its only
// verification and authentication method.
func (g *Generator) Document(kp *KeyPair) *DIDDocument {
	keyID := kp.DID + "#key-1"
	return &DIDDocument{
		Context: []string{SecurityContext, DefaultContext},
		ID:      kp.DID,
		VerificationMethod: []PublicKeyEntry{{
			ID:           keyID,
			Type:         EcdsaSecp256k1VerificationKey2019,
			Controller:   kp.DID,
			PublicKeyHex: kp.PublicKey,
		}},
		Authentication: []AuthenticationEntry{{
			Type:      Secp256k1SignatureAuthentication2018,
			PublicKey: keyID,
		}},
	}
}

// AddressDocument returns the document of an address DID whose owner key is
// known only by its address, as served for did:ethr identities without
// registry changes.
func (g *Generator) AddressDocument(address string) *DIDDocument {
	id := g.DID(address)
	keyID := id + "#owner"
	return &DIDDocument{
		Context: DefaultContext,
		ID:      id,
		PublicKey: []PublicKeyEntry{{
			ID:              keyID,
			Type:            Secp256k1VerificationKey2018,
			Owner:           id,
			EthereumAddress: strings.ToLower(address),
		}},
		Authentication: []AuthenticationEntry{{
			Type:      Secp256k1SignatureAuthentication2018,
			PublicKey: keyID,
		}},
	}
}

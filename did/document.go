// Package did defines DID documents, the resolver contract used to fetch
// them and the address derivation used to match signers against published
// keys.
package did

import (
	"encoding/json"
)

// Known key and authentication types.
const (
	Secp256k1VerificationKey2018          = "Secp256k1VerificationKey2018"
	Secp256k1SignatureVerificationKey2018 = "Secp256k1SignatureVerificationKey2018"
	Secp256k1SignatureAuthentication2018  = "Secp256k1SignatureAuthentication2018"
	EcdsaPublicKeySecp256k1               = "EcdsaPublicKeySecp256k1"
	EcdsaSecp256k1VerificationKey2019     = "EcdsaSecp256k1VerificationKey2019"
)

// DefaultContext is the @context written when a document does not carry one.
const DefaultContext = "https://w3id.org/did/v1"

// DIDDocument is a resolved DID document.
type DIDDocument struct {
	// Context is either a single string or a list of strings.
	Context        any                   `json:"@context,omitempty"`
	ID             string                `json:"id"`
	PublicKey      []PublicKeyEntry      `json:"publicKey"`
	Authentication []AuthenticationEntry `json:"authentication,omitempty"`
	Service        []ServiceEntry        `json:"service,omitempty"`

	// VerificationMethod carries keys of documents using the newer
	// verificationMethod section instead of publicKey.
	VerificationMethod []PublicKeyEntry `json:"verificationMethod,omitempty"`
}

// PublicKeyEntry is a single key published in a DID document. At most one of
// the key material fields is expected to be populated.
type PublicKeyEntry struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Owner           string `json:"owner,omitempty"`
	Controller      string `json:"controller,omitempty"`
	EthereumAddress string `json:"ethereumAddress,omitempty"`
	PublicKeyHex    string `json:"publicKeyHex,omitempty"`
	PublicKeyBase64 string `json:"publicKeyBase64,omitempty"`
	PublicKeyBase58 string `json:"publicKeyBase58,omitempty"`
}

// AuthenticationEntry references a public key that may be used to
// authenticate as the DID subject.
type AuthenticationEntry struct {
	Type      string `json:"type"`
	PublicKey string `json:"publicKey"`
}

// UnmarshalJSON accepts both the object form and a bare key reference.
func (a *AuthenticationEntry) UnmarshalJSON(data []byte) error {
	var ref string
	if err := json.Unmarshal(data, &ref); err == nil {
		*a = AuthenticationEntry{PublicKey: ref}
		return nil
	}
	type plain AuthenticationEntry
	return json.Unmarshal(data, (*plain)(a))
}

// ServiceEntry is a service endpoint.
type ServiceEntry struct {
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// IsBlank reports whether the document carries neither an id nor any keys.
func (d *DIDDocument) IsBlank() bool {
	return d == nil || (d.ID == "" && len(d.PublicKey) == 0 && len(d.VerificationMethod) == 0)
}

// Keys returns the publicKey entries followed by the verificationMethod
// entries.
func (d *DIDDocument) Keys() []PublicKeyEntry {
	if d == nil {
		return nil
	}
	if len(d.VerificationMethod) == 0 {
		return d.PublicKey
	}
	keys := make([]PublicKeyEntry, 0, len(d.PublicKey)+len(d.VerificationMethod))
	keys = append(keys, d.PublicKey...)
	return append(keys, d.VerificationMethod...)
}

// AuthenticationKeys returns the public key entries referenced from the
// authentication section, in document order.
func (d *DIDDocument) AuthenticationKeys() []PublicKeyEntry {
	if d == nil {
		return nil
	}
	refs := make(map[string]struct{}, len(d.Authentication))
	for _, a := range d.Authentication {
		refs[a.PublicKey] = struct{}{}
	}
	var keys []PublicKeyEntry
	for _, pk := range d.Keys() {
		if _, ok := refs[pk.ID]; ok {
			keys = append(keys, pk)
		}
	}
	return keys
}

// ParseDocument decodes a JSON DID document.
func ParseDocument(data []byte) (*DIDDocument, error) {
	var doc DIDDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// JSON returns the document encoded as JSON.
func (d *DIDDocument) JSON() ([]byte, error) {
	return json.Marshal(d)
}

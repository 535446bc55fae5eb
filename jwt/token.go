package jwt

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/pilacorp/go-didjwt/codec"
	"github.com/pilacorp/go-didjwt/jose"
	"github.com/pilacorp/go-didjwt/jsonvalue"
)

// TypeJWT is the only accepted typ header value.
const TypeJWT = "JWT"

// Header is the JOSE header of a DID-JWT. Fields are declared in wire order.
type Header struct {
	Typ string         `json:"typ"`
	Alg jose.Algorithm `json:"alg"`
}

// Token is a decoded, unverified DID-JWT.
type Token struct {
	Header    Header
	Payload   Payload
	Signature []byte
	// Raw holds the segments the token was decoded from. The signature
	// covers Raw.SigningInput(), not a re-encoding of Header and Payload.
	Raw codec.Parts
}

// SigningInput returns the signed part of the token.
func (t *Token) SigningInput() string {
	return t.Raw.SigningInput()
}

// Encode serializes the token from its decoded parts.
func (t *Token) Encode() (string, error) {
	signingInput, err := encodeSigningInput(t.Header, t.Payload)
	if err != nil {
		return "", err
	}
	return signingInput + "." + codec.EncodeBase64URL(t.Signature), nil
}

func encodeSigningInput(header Header, payload Payload) (string, error) {
	hb, err := json.Marshal(header)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if payload == nil {
		payload = Payload{}
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return codec.EncodeBase64URL(hb) + "." + codec.EncodeBase64URL(pb), nil
}

// Decode splits and parses token without checking its signature, issuer or
// validity period.
func Decode(token string) (*Token, error) {
	parts, err := codec.SplitToken(token)
	if err != nil {
		return nil, err
	}
	if parts.Header == "" {
		return nil, errors.Wrap(ErrMalformedToken, "header cannot be empty")
	}
	if parts.Payload == "" {
		return nil, errors.Wrap(ErrMalformedToken, "payload cannot be empty")
	}

	header, err := decodeHeader(parts.Header)
	if err != nil {
		return nil, err
	}
	payload, err := decodeObject("payload", parts.Payload)
	if err != nil {
		return nil, err
	}
	sig, err := codec.DecodeBase64URL(parts.Signature)
	if err != nil {
		return nil, errors.Mark(errors.WithMessage(err, "signature"), ErrMalformedToken)
	}

	return &Token{
		Header:    header,
		Payload:   Payload(payload),
		Signature: sig,
		Raw:       parts,
	}, nil
}

func decodeObject(name, segment string) (map[string]jsonvalue.Value, error) {
	raw, err := codec.DecodeBase64URL(segment)
	if err != nil {
		return nil, errors.Mark(errors.WithMessage(err, name), ErrMalformedToken)
	}
	obj, err := jsonvalue.ParseObject(raw)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "invalid %s JSON", name), ErrMalformedToken)
	}
	return obj, nil
}

func decodeHeader(segment string) (Header, error) {
	obj, err := decodeObject("header", segment)
	if err != nil {
		return Header{}, err
	}

	typ, _ := obj["typ"].AsString()
	if typ != TypeJWT {
		return Header{}, errors.Wrapf(ErrMalformedToken, "unexpected typ %q", typ)
	}
	alg, ok := obj["alg"].AsString()
	if !ok {
		return Header{}, errors.Wrap(ErrMalformedToken, "missing alg")
	}
	algorithm, err := jose.ParseAlgorithm(alg)
	if err != nil {
		return Header{}, err
	}
	return Header{Typ: typ, Alg: algorithm}, nil
}

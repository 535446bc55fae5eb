package jwt

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/pilacorp/go-didjwt/did"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigningMethod_Registered(t *testing.T) {
	assert.Equal(t, SigningMethodES256K, gojwt.GetSigningMethod("ES256K"))
	assert.Equal(t, SigningMethodES256KR, gojwt.GetSigningMethod("ES256K-R"))
}

func TestSigningMethod_ParseEngineToken(t *testing.T) {
	s := newTestSigner(t)
	engine := New(nil)

	for _, alg := range []string{"ES256K", "ES256K-R"} {
		t.Run(alg, func(t *testing.T) {
			token, err := engine.CreateJWT(context.Background(), Payload{}, s.DID(), s, 0, alg)
			require.NoError(t, err)

			parsed, err := gojwt.Parse(token, func(*gojwt.Token) (any, error) {
				return s.PublicKey(), nil
			}, gojwt.WithValidMethods([]string{alg}))
			require.NoError(t, err)
			assert.True(t, parsed.Valid)

			iss, err := parsed.Claims.GetIssuer()
			require.NoError(t, err)
			assert.Equal(t, s.DID(), iss)

			_, err = gojwt.Parse(token, func(*gojwt.Token) (any, error) {
				return s.Address(), nil
			})
			assert.NoError(t, err)

			_, err = gojwt.Parse(token, func(*gojwt.Token) (any, error) {
				return "0x0000000000000000000000000000000000000001", nil
			})
			assert.ErrorIs(t, err, gojwt.ErrTokenSignatureInvalid)
		})
	}
}

func TestSigningMethod_SignForEngine(t *testing.T) {
	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)
	s := newTestSigner(t)

	registry := did.NewRegistry(did.NewStaticResolver("ethr", ethrDocument(s.Address())))
	engine := New(registry)

	for _, method := range []*SigningMethod{SigningMethodES256K, SigningMethodES256KR} {
		t.Run(method.Alg(), func(t *testing.T) {
			claims := gojwt.MapClaims{"iss": s.DID(), "name": "Bob"}

			// golang-jwt writes alg before typ, the engine accepts either order
			token, err := gojwt.NewWithClaims(method, claims).SignedString(key)
			require.NoError(t, err)
			payload, err := engine.Verify(context.Background(), token)
			require.NoError(t, err)
			name, _ := payload.String("name")
			assert.Equal(t, "Bob", name)

			token, err = gojwt.NewWithClaims(method, claims).SignedString(s)
			require.NoError(t, err)
			_, err = engine.Verify(context.Background(), token)
			assert.NoError(t, err)
		})
	}
}

func TestSigningMethod_InvalidKeys(t *testing.T) {
	_, err := SigningMethodES256K.Sign("a.b", "not a key")
	assert.ErrorIs(t, err, gojwt.ErrInvalidKeyType)

	err = SigningMethodES256K.Verify("a.b", make([]byte, 64), 42)
	assert.ErrorIs(t, err, gojwt.ErrInvalidKeyType)

	err = SigningMethodES256KR.Verify("a.b", make([]byte, 64), "0x01")
	assert.ErrorIs(t, err, gojwt.ErrSignatureInvalid)

	err = SigningMethodES256K.Verify("a.b", make([]byte, 64), "0x01")
	assert.ErrorIs(t, err, gojwt.ErrSignatureInvalid)
}

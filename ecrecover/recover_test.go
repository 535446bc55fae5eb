package ecrecover

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pilacorp/go-didjwt/jose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// soakCount returns the number of keys and messages to cross-check. The full
// 1000x1000 run is enabled with DIDJWT_RECOVERY_SOAK=1000.
func soakCount(t *testing.T) int {
	t.Helper()
	if v := os.Getenv("DIDJWT_RECOVERY_SOAK"); v != "" {
		n, err := strconv.Atoi(v)
		require.NoError(t, err)
		return n
	}
	return 8
}

func TestRecoverFromSignature_MatchesGoEthereum(t *testing.T) {
	n := soakCount(t)
	for i := 0; i < n; i++ {
		priv, err := crypto.GenerateKey()
		require.NoError(t, err)
		expected := PublicKeyOf(priv)
		require.Len(t, expected, PublicKeySize)

		for j := 0; j < n; j++ {
			hash := sha256.Sum256([]byte(fmt.Sprintf("message %d/%d", i, j)))
			sig, err := crypto.Sign(hash[:], priv)
			require.NoError(t, err)

			r := new(big.Int).SetBytes(sig[:32])
			s := new(big.Int).SetBytes(sig[32:64])
			pub, err := RecoverFromSignature(int(sig[64]), r, s, hash[:])
			require.NoError(t, err)
			require.Equal(t, expected, pub)

			ethPub, err := crypto.SigToPub(hash[:], sig)
			require.NoError(t, err)
			require.Equal(t, crypto.FromECDSAPub(ethPub)[1:], pub)
		}
	}
}

func TestRecoverFromSignature_WrongRecoveryID(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	hash := sha256.Sum256([]byte("hello"))
	sig, err := crypto.Sign(hash[:], priv)
	require.NoError(t, err)

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	pub, err := RecoverFromSignature(int(sig[64]^1), r, s, hash[:])
	if err == nil {
		assert.NotEqual(t, PublicKeyOf(priv), pub)
	}
}

func TestRecoverFromSignature_Invalid(t *testing.T) {
	hash := sha256.Sum256([]byte("hello"))
	one := big.NewInt(1)
	n := new(big.Int).Set(curveN)

	_, err := RecoverFromSignature(4, one, one, hash[:])
	assert.True(t, errors.Is(err, ErrInvalidRecoveryID))
	_, err = RecoverFromSignature(-1, one, one, hash[:])
	assert.True(t, errors.Is(err, ErrInvalidRecoveryID))

	for _, rs := range [][2]*big.Int{
		{big.NewInt(0), one},
		{one, big.NewInt(0)},
		{n, one},
		{one, n},
		{nil, one},
	} {
		_, err = RecoverFromSignature(0, rs[0], rs[1], hash[:])
		assert.True(t, errors.Is(err, ErrInvalidSignature))
	}

	// r + n overflows the field for any r >= p - n
	r := new(big.Int).Sub(curveP, curveN)
	_, err = RecoverFromSignature(2, r, one, hash[:])
	assert.True(t, errors.Is(err, ErrRecovery))
}

func TestSignedJWTToKey(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	message := []byte("eyJ0eXAiOiJKV1QiLCJhbGciOiJFUzI1NkstUiJ9.eyJpc3MiOiJkaWQ6ZXRocjoweDEifQ")
	hash := sha256.Sum256(message)
	raw, err := crypto.Sign(hash[:], priv)
	require.NoError(t, err)

	sig, err := jose.FromRSV(raw)
	require.NoError(t, err)

	pub, err := SignedJWTToKey(message, sig)
	require.NoError(t, err)
	assert.Equal(t, PublicKeyOf(priv), pub)

	sig.V = 26
	_, err = SignedJWTToKey(message, sig)
	assert.True(t, errors.Is(err, ErrInvalidRecoveryID))
	sig.V = 35
	_, err = SignedJWTToKey(message, sig)
	assert.True(t, errors.Is(err, ErrInvalidRecoveryID))
}

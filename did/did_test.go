package did

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	shareReqKeyHex  = "04171fcc7654cad14745b9835bc534d8e59038ae6929c793d7f8dd2c934580ca39ff1e2de3d7ef69a8daba5e5590d3ec80486a273cbe2bd1b76ebd01f949b41463"
	shareReqAddress = "0x971a968cb11c636cbeed0fe866467d1c63de541b"
)

func TestParseDID(t *testing.T) {
	tests := []struct {
		did        string
		method     string
		identifier string
	}{
		{"did:ethr:0x6985a110df37555235d7d0de0a0fb28c9848dfa9", "ethr", "0x6985a110df37555235d7d0de0a0fb28c9848dfa9"},
		{"did:https:example.com", "https", "example.com"},
		{"did:uport:2nQtiQG6Cgm1GYTBaaKAgr76uY7iSexUkqX", "uport", "2nQtiQG6Cgm1GYTBaaKAgr76uY7iSexUkqX"},
		{"did:web:example.com:user:alice", "web", "example.com:user:alice"},
		{"2oeXufHGDpU51bfKBsZDdu7Je9weJ3r7sVG", "", ""},
		{"did:ethr", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.did, func(t *testing.T) {
			method, identifier := ParseDID(tt.did)
			assert.Equal(t, tt.method, method)
			assert.Equal(t, tt.identifier, identifier)
		})
	}
}

func TestAddressFromPublicKey(t *testing.T) {
	raw, err := hex.DecodeString(shareReqKeyHex)
	require.NoError(t, err)

	addr, err := AddressFromPublicKey(raw)
	require.NoError(t, err)
	assert.Equal(t, shareReqAddress, addr)

	addr, err = AddressFromPublicKey(raw[1:])
	require.NoError(t, err)
	assert.Equal(t, shareReqAddress, addr)

	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	expected := strings.ToLower(crypto.PubkeyToAddress(priv.PublicKey).Hex())

	for _, pub := range [][]byte{
		crypto.FromECDSAPub(&priv.PublicKey),
		crypto.FromECDSAPub(&priv.PublicKey)[1:],
		crypto.CompressPubkey(&priv.PublicKey),
	} {
		addr, err := AddressFromPublicKey(pub)
		require.NoError(t, err)
		assert.Equal(t, expected, addr)
	}

	for _, bad := range [][]byte{nil, make([]byte, 20), make([]byte, 64), make([]byte, 33)} {
		_, err := AddressFromPublicKey(bad)
		assert.True(t, errors.Is(err, ErrInvalidPublicKey), "%d bytes", len(bad))
	}
}

func TestKeyMaterial_Encodings(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	pub := crypto.FromECDSAPub(&priv.PublicKey)
	expected := strings.ToLower(crypto.PubkeyToAddress(priv.PublicKey).Hex())

	tests := []struct {
		name  string
		entry PublicKeyEntry
		kind  KeyMaterial
	}{
		{
			name:  "address",
			entry: PublicKeyEntry{ID: "#owner", EthereumAddress: crypto.PubkeyToAddress(priv.PublicKey).Hex()},
			kind:  EthAddress{},
		},
		{
			name:  "hex",
			entry: PublicKeyEntry{ID: "#hex", PublicKeyHex: hex.EncodeToString(pub)},
			kind:  HexKey{},
		},
		{
			name:  "hex with prefix",
			entry: PublicKeyEntry{ID: "#hex", PublicKeyHex: "0x" + hex.EncodeToString(pub)},
			kind:  HexKey{},
		},
		{
			name:  "base64",
			entry: PublicKeyEntry{ID: "#b64", PublicKeyBase64: base64.StdEncoding.EncodeToString(pub)},
			kind:  Base64Key{},
		},
		{
			name:  "base64url",
			entry: PublicKeyEntry{ID: "#b64", PublicKeyBase64: base64.RawURLEncoding.EncodeToString(pub)},
			kind:  Base64Key{},
		},
		{
			name:  "base58",
			entry: PublicKeyEntry{ID: "#b58", PublicKeyBase58: base58.Encode(pub)},
			kind:  Base58Key{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			km, err := tt.entry.KeyMaterial()
			require.NoError(t, err)
			assert.IsType(t, tt.kind, km)

			addr, err := tt.entry.Address()
			require.NoError(t, err)
			assert.Equal(t, expected, addr)
		})
	}
}

func TestKeyMaterial_Precedence(t *testing.T) {
	entry := PublicKeyEntry{
		ID:              "did:ethr:0x1#owner",
		EthereumAddress: "0x6985a110df37555235d7d0de0a0fb28c9848dfa9",
		PublicKeyHex:    shareReqKeyHex,
		PublicKeyBase58: "not used",
	}
	addr, err := entry.Address()
	require.NoError(t, err)
	assert.Equal(t, "0x6985a110df37555235d7d0de0a0fb28c9848dfa9", addr)

	entry.EthereumAddress = ""
	addr, err = entry.Address()
	require.NoError(t, err)
	assert.Equal(t, shareReqAddress, addr)

	_, err = PublicKeyEntry{ID: "empty"}.KeyMaterial()
	assert.True(t, errors.Is(err, ErrNoKeyMaterial))

	_, err = PublicKeyEntry{EthereumAddress: "0x1234"}.KeyMaterial()
	assert.Error(t, err)
	_, err = PublicKeyEntry{PublicKeyHex: "zz"}.KeyMaterial()
	assert.Error(t, err)
	_, err = PublicKeyEntry{PublicKeyBase58: "0OIl"}.KeyMaterial()
	assert.Error(t, err)
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress("0xABCdef", "0xabcDEF"))
	assert.False(t, SameAddress("0xabc", "0xabd"))
}

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"id":"did:ethr:0x6985a110df37555235d7d0de0a0fb28c9848dfa9","publicKey":[{"id":"did:ethr:0x6985a110df37555235d7d0de0a0fb28c9848dfa9#owner","type":"Secp256k1VerificationKey2018","owner":"did:ethr:0x6985a110df37555235d7d0de0a0fb28c9848dfa9","ethereumAddress":"0x6985a110df37555235d7d0de0a0fb28c9848dfa9","publicKeyHex":null,"publicKeyBase64":null,"publicKeyBase58":null,"value":null}],"authentication":[{"type":"Secp256k1SignatureAuthentication2018","publicKey":"did:ethr:0x6985a110df37555235d7d0de0a0fb28c9848dfa9#owner"}],"service":[],"@context":"https://w3id.org/did/v1"}`))
	require.NoError(t, err)
	assert.Equal(t, "https://w3id.org/did/v1", doc.Context)
	require.Len(t, doc.PublicKey, 1)
	assert.Equal(t, Secp256k1VerificationKey2018, doc.PublicKey[0].Type)
	assert.Len(t, doc.AuthenticationKeys(), 1)
	assert.False(t, doc.IsBlank())

	js, err := doc.JSON()
	require.NoError(t, err)
	back, err := ParseDocument(js)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, back.ID)
	assert.Equal(t, doc.PublicKey, back.PublicKey)
	assert.Equal(t, doc.Authentication, back.Authentication)

	assert.True(t, (&DIDDocument{}).IsBlank())
	var nilDoc *DIDDocument
	assert.True(t, nilDoc.IsBlank())
	assert.Nil(t, nilDoc.AuthenticationKeys())

	_, err = ParseDocument([]byte(`[`))
	assert.Error(t, err)
}

func TestAuthenticationKeys(t *testing.T) {
	doc := &DIDDocument{
		ID: "did:https:example.com",
		PublicKey: []PublicKeyEntry{
			{ID: "did:https:example.com#signing"},
			{ID: "did:https:example.com#owner"},
			{ID: "did:https:example.com#enc"},
		},
		Authentication: []AuthenticationEntry{
			{Type: Secp256k1SignatureAuthentication2018, PublicKey: "did:https:example.com#owner"},
		},
	}
	keys := doc.AuthenticationKeys()
	require.Len(t, keys, 1)
	assert.Equal(t, "did:https:example.com#owner", keys[0].ID)
}

func TestStaticResolver(t *testing.T) {
	doc := &DIDDocument{ID: "did:ethr:0x1", PublicKey: []PublicKeyEntry{{ID: "did:ethr:0x1#owner", EthereumAddress: "0x0000000000000000000000000000000000000001"}}}

	r := NewStaticResolver("ethr", doc, nil)
	assert.Equal(t, "ethr", r.Method())
	assert.True(t, r.CanResolve("did:ethr:0x2"))
	assert.False(t, r.CanResolve("did:uport:0x1"))

	got, err := r.Resolve(context.Background(), "did:ethr:0x1")
	require.NoError(t, err)
	assert.Same(t, doc, got)

	_, err = r.Resolve(context.Background(), "did:ethr:0x2")
	assert.True(t, errors.Is(err, ErrBlankDocument))

	open := NewStaticResolver("", doc)
	assert.True(t, open.CanResolve("did:ethr:0x1"))
	assert.False(t, open.CanResolve("did:ethr:0x2"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Resolve(ctx, "did:ethr:0x1")
	assert.True(t, errors.Is(err, context.Canceled))
}

type countingResolver struct {
	method  string
	calls   atomic.Int32
	release chan struct{}
	doc     *DIDDocument
	err     error
}

func (r *countingResolver) Method() string             { return r.method }
func (r *countingResolver) CanResolve(did string) bool { return strings.HasPrefix(did, "did:"+r.method+":") }
func (r *countingResolver) Resolve(ctx context.Context, did string) (*DIDDocument, error) {
	r.calls.Add(1)
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.doc, r.err
}

func TestRegistry_Dispatch(t *testing.T) {
	ethr := NewStaticResolver("ethr", &DIDDocument{ID: "did:ethr:0x1", PublicKey: []PublicKeyEntry{{ID: "k"}}})
	https := NewStaticResolver("https", &DIDDocument{ID: "did:https:example.com", PublicKey: []PublicKeyEntry{{ID: "k"}}})

	reg := NewRegistry(https, ethr)
	assert.Equal(t, []string{"ethr", "https"}, reg.Methods())
	assert.Equal(t, "", reg.Method())
	assert.True(t, reg.CanResolve("did:ethr:0x1"))
	assert.False(t, reg.CanResolve("did:web:example.com"))
	assert.False(t, reg.CanResolve("not a did"))

	doc, err := reg.Resolve(context.Background(), "did:https:example.com")
	require.NoError(t, err)
	assert.Equal(t, "did:https:example.com", doc.ID)

	_, err = reg.Resolve(context.Background(), "did:web:example.com")
	assert.True(t, errors.Is(err, ErrNoResolver))

	_, err = reg.Resolve(context.Background(), "2oeXufHGDpU51bfKBsZDdu7Je9weJ3r7sVG")
	assert.True(t, errors.Is(err, ErrInvalidDID))

	assert.Error(t, reg.Register(nil))
	assert.Error(t, reg.Register(NewStaticResolver("")))

	// later registrations replace earlier ones
	require.NoError(t, reg.Register(NewStaticResolver("ethr")))
	_, err = reg.Resolve(context.Background(), "did:ethr:0x1")
	assert.True(t, errors.Is(err, ErrBlankDocument))
}

func TestRegistry_BlankDocument(t *testing.T) {
	reg := NewRegistry(&countingResolver{method: "ethr", doc: &DIDDocument{}})
	_, err := reg.Resolve(context.Background(), "did:ethr:0x1")
	assert.True(t, errors.Is(err, ErrBlankDocument))

	reg = NewRegistry(&countingResolver{method: "ethr"})
	_, err = reg.Resolve(context.Background(), "did:ethr:0x1")
	assert.True(t, errors.Is(err, ErrBlankDocument))

	boom := errors.New("boom")
	reg = NewRegistry(&countingResolver{method: "ethr", err: boom})
	_, err = reg.Resolve(context.Background(), "did:ethr:0x1")
	assert.True(t, errors.Is(err, boom))
}

func TestRegistry_CoalescesConcurrentResolves(t *testing.T) {
	res := &countingResolver{
		method:  "ethr",
		release: make(chan struct{}),
		doc:     &DIDDocument{ID: "did:ethr:0x1", PublicKey: []PublicKeyEntry{{ID: "k"}}},
	}
	reg := NewRegistry(res)

	var wg sync.WaitGroup
	var started sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		started.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			doc, err := reg.Resolve(context.Background(), "did:ethr:0x1")
			assert.NoError(t, err)
			assert.Equal(t, "did:ethr:0x1", doc.ID)
		}()
	}
	started.Wait()
	require.Eventually(t, func() bool { return res.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(res.release)
	wg.Wait()

	assert.LessOrEqual(t, res.calls.Load(), int32(8))
	assert.GreaterOrEqual(t, res.calls.Load(), int32(1))
}

func TestRegistry_Cancellation(t *testing.T) {
	res := &countingResolver{method: "ethr", release: make(chan struct{})}
	defer close(res.release)
	reg := NewRegistry(res)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := reg.Resolve(ctx, "did:ethr:0x1")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRegistry_CallerCancellationIsNotShared(t *testing.T) {
	res := &countingResolver{
		method:  "ethr",
		release: make(chan struct{}),
		doc:     &DIDDocument{ID: "did:ethr:0x1", PublicKey: []PublicKeyEntry{{ID: "k"}}},
	}
	reg := NewRegistry(res)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := reg.Resolve(ctx, "did:ethr:0x1")
		first <- err
	}()
	require.Eventually(t, func() bool { return res.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		doc *DIDDocument
		err error
	}
	second := make(chan result, 1)
	go func() {
		doc, err := reg.Resolve(context.Background(), "did:ethr:0x1")
		second <- result{doc, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.True(t, errors.Is(<-first, context.Canceled))

	close(res.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "did:ethr:0x1", got.doc.ID)
	assert.EqualValues(t, 1, res.calls.Load())
}

func TestParseDocument_VerificationMethod(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"@context": ["https://www.w3.org/ns/did/v1"],
		"id": "did:nda:0x8b3b1dee8e00cb95f8b2a1d1a9a7cb8fe7d490ce",
		"verificationMethod": [{
			"id": "did:nda:0x8b3b1dee8e00cb95f8b2a1d1a9a7cb8fe7d490ce#key-1",
			"type": "EcdsaSecp256k1VerificationKey2019",
			"controller": "did:nda:0x8b3b1dee8e00cb95f8b2a1d1a9a7cb8fe7d490ce",
			"publicKeyHex": "` + shareReqKeyHex + `"
		}],
		"authentication": ["did:nda:0x8b3b1dee8e00cb95f8b2a1d1a9a7cb8fe7d490ce#key-1"]
	}`))
	require.NoError(t, err)
	assert.False(t, doc.IsBlank())
	assert.Empty(t, doc.PublicKey)

	keys := doc.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, "did:nda:0x8b3b1dee8e00cb95f8b2a1d1a9a7cb8fe7d490ce", keys[0].Controller)

	addr, err := keys[0].Address()
	require.NoError(t, err)
	assert.Equal(t, shareReqAddress, addr)

	require.Len(t, doc.Authentication, 1)
	assert.Equal(t, keys[0].ID, doc.Authentication[0].PublicKey)
	assert.Len(t, doc.AuthenticationKeys(), 1)
}

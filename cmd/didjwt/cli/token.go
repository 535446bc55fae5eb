package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pilacorp/go-didjwt/did"
	"github.com/pilacorp/go-didjwt/did/cache"
	"github.com/pilacorp/go-didjwt/did/httpresolver"
	"github.com/pilacorp/go-didjwt/jose"
	"github.com/pilacorp/go-didjwt/jsonvalue"
	"github.com/pilacorp/go-didjwt/jwt"
	"github.com/pilacorp/go-didjwt/signer"
	"github.com/redis/go-redis/v9"
)

// DecodeCmd prints the header and payload of a token without verifying it
type DecodeCmd struct {
	Token string `kong:"arg" required:"" help:"token, or - to read it from stdin"`
}

type decodedToken struct {
	Header    jwt.Header  `json:"header"`
	Payload   jwt.Payload `json:"payload"`
	Signature string      `json:"signature"`
}

// Run the command
func (a *DecodeCmd) Run(ctx *Cli) error {
	token, err := readToken(ctx, a.Token)
	if err != nil {
		return err
	}
	t, err := jwt.Decode(token)
	if err != nil {
		return errors.WithMessage(err, "unable to decode token")
	}
	return ctx.WriteJSON(decodedToken{
		Header:    t.Header,
		Payload:   t.Payload,
		Signature: hexutil.Encode(t.Signature),
	})
}

// VerifyCmd verifies a token against the DID document of its issuer
type VerifyCmd struct {
	Token       string        `kong:"arg" required:"" help:"token, or - to read it from stdin"`
	ResolverURL string        `help:"optional, universal resolver base URL"`
	DidDoc      string        `help:"optional, file with the DID document of the issuer"`
	Aud         string        `help:"optional, expected audience"`
	Auth        bool          `help:"only accept authentication keys"`
	Redis       string        `help:"optional, Redis address used to cache resolved documents"`
	CacheTTL    time.Duration `name:"cache-ttl" help:"optional, lifetime of cached documents" default:"15m"`
}

// Run the command
func (a *VerifyCmd) Run(ctx *Cli) error {
	token, err := readToken(ctx, a.Token)
	if err != nil {
		return err
	}

	resolver, err := a.resolver(ctx, token)
	if err != nil {
		return err
	}
	engine, err := ctx.Engine(resolver)
	if err != nil {
		return err
	}

	var opts []jwt.VerifyOption
	if a.Aud != "" {
		opts = append(opts, jwt.WithAudience(a.Aud))
	}
	if a.Auth {
		opts = append(opts, jwt.WithAuthentication())
	}

	payload, err := engine.Verify(ctx.Context(), token, opts...)
	if err != nil {
		if jwt.IsUntrusted(err) {
			return errors.WithMessage(err, "untrusted token")
		}
		return errors.WithMessage(err, "invalid token")
	}
	return ctx.WriteJSON(payload)
}

func (a *VerifyCmd) resolver(ctx *Cli, token string) (did.Resolver, error) {
	if a.DidDoc != "" {
		b, err := ctx.ReadFile(a.DidDoc)
		if err != nil {
			return nil, errors.WithMessage(err, "unable to load DID document")
		}
		doc, err := did.ParseDocument(b)
		if err != nil {
			return nil, errors.WithMessage(err, "unable to parse DID document")
		}
		return did.NewStaticResolver("", doc), nil
	}

	registry := did.NewRegistry(httpresolver.NewHTTPS())
	if a.ResolverURL != "" {
		// a universal resolver serves any method, register it for the issuer's
		t, err := jwt.Decode(token)
		if err != nil {
			return nil, errors.WithMessage(err, "unable to decode token")
		}
		iss, _ := t.Payload.Issuer()
		method, _ := did.ParseDID(iss)
		if method == "" {
			return nil, errors.Wrapf(did.ErrInvalidDID, "issuer %q", iss)
		}
		logger.KV(xlog.DEBUG, "resolver", a.ResolverURL, "method", method)

		universal, err := httpresolver.NewUniversal(a.ResolverURL, httpresolver.WithMethod(method))
		if err != nil {
			return nil, err
		}
		if err := registry.Register(universal); err != nil {
			return nil, err
		}
	}

	if a.Redis == "" {
		return registry, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: a.Redis})
	return cache.New(registry, rdb, a.CacheTTL), nil
}

// CreateCmd signs a new token
type CreateCmd struct {
	Key          string `help:"hex encoded secp256k1 private key" xor:"signer"`
	RemoteSigner string `help:"URL of a remote signing service" xor:"signer"`
	APIKey       string `name:"api-key" help:"optional, API key of the remote signing service"`
	Iss          string `help:"issuer DID, defaults to the did:ethr DID of --key"`
	Alg          string `help:"optional, ES256K or ES256K-R"`
	TTL          int64  `name:"ttl" help:"optional, validity in seconds"`
	Claims       string `help:"optional, JSON object with the claims, or @file to read it from a file"`
}

// Run the command
func (a *CreateCmd) Run(ctx *Cli) error {
	var (
		s   jose.Signer
		iss = a.Iss
	)
	switch {
	case a.Key != "":
		kp, err := signer.NewKeyPairSigner(a.Key)
		if err != nil {
			return err
		}
		s = kp
		if iss == "" {
			iss = kp.DID()
		}
	case a.RemoteSigner != "":
		rs, err := signer.NewRemoteSigner(a.RemoteSigner, signer.WithAPIKey(a.APIKey))
		if err != nil {
			return err
		}
		s = rs
	default:
		return errors.New("either --key or --remote-signer is required")
	}
	if iss == "" {
		return errors.New("--iss is required")
	}

	payload, err := a.payload(ctx)
	if err != nil {
		return err
	}

	engine, err := ctx.Engine(nil)
	if err != nil {
		return err
	}
	token, err := engine.CreateJWT(ctx.Context(), payload, iss, s, a.TTL, a.Alg)
	if err != nil {
		return errors.WithMessage(err, "unable to create token")
	}
	_, err = fmt.Fprintln(ctx.Writer(), token)
	return err
}

func (a *CreateCmd) payload(ctx *Cli) (jwt.Payload, error) {
	if a.Claims == "" {
		return jwt.Payload{}, nil
	}
	raw := []byte(a.Claims)
	if file, ok := strings.CutPrefix(a.Claims, "@"); ok {
		b, err := ctx.ReadFile(file)
		if err != nil {
			return nil, errors.WithMessage(err, "unable to read claims")
		}
		raw = b
	}
	claims, err := jsonvalue.ParseObject(raw)
	if err != nil {
		return nil, errors.WithMessage(err, "invalid claims")
	}
	return jwt.Payload(claims), nil
}

// AddressCmd prints the address and DID of a key
type AddressCmd struct {
	Key       string `help:"hex encoded secp256k1 private key" xor:"key"`
	PublicKey string `help:"hex encoded secp256k1 public key" xor:"key"`
	Method    string `help:"DID method" default:"ethr"`
	Doc       bool   `help:"print the DID document of the address instead"`
}

type addressInfo struct {
	Address string `json:"address"`
	DID     string `json:"did"`
}

// Run the command
func (a *AddressCmd) Run(ctx *Cli) error {
	var address string
	switch {
	case a.Key != "":
		kp, err := signer.NewKeyPairSigner(a.Key)
		if err != nil {
			return err
		}
		address = kp.Address()
	case a.PublicKey != "":
		addr, err := did.PublicKeyEntry{PublicKeyHex: a.PublicKey}.Address()
		if err != nil {
			return err
		}
		address = addr
	default:
		return errors.New("either --key or --public-key is required")
	}

	g := did.NewGenerator(method(a.Method))
	if a.Doc {
		return ctx.WriteJSON(g.AddressDocument(address))
	}
	return ctx.WriteJSON(addressInfo{
		Address: address,
		DID:     g.DID(address),
	})
}

// KeygenCmd generates a key and the DID document publishing it
type KeygenCmd struct {
	Method string `help:"DID method" default:"ethr"`
	Key    string `help:"optional, hex encoded secp256k1 private key to use instead of a random one"`
}

type generatedKey struct {
	*did.KeyPair
	Document *did.DIDDocument `json:"document"`
}

// Run the command
func (a *KeygenCmd) Run(ctx *Cli) error {
	g := did.NewGenerator(method(a.Method))

	var kp *did.KeyPair
	if a.Key != "" {
		priv, err := crypto.HexToECDSA(strings.TrimPrefix(a.Key, "0x"))
		if err != nil {
			return errors.Wrap(err, "invalid private key")
		}
		kp = g.KeyPair(priv)
	} else {
		var err error
		if kp, err = g.GenerateKeyPair(); err != nil {
			return err
		}
	}
	logger.KV(xlog.DEBUG, "did", kp.DID)

	return ctx.WriteJSON(generatedKey{
		KeyPair:  kp,
		Document: g.Document(kp),
	})
}

func method(m string) string {
	if m == "" {
		return "ethr"
	}
	return m
}

func readToken(ctx *Cli, token string) (string, error) {
	if token != "-" {
		return strings.TrimSpace(token), nil
	}
	b, err := ctx.ReadFile("-")
	if err != nil {
		return "", errors.WithMessage(err, "unable to read token")
	}
	return strings.TrimSpace(string(b)), nil
}

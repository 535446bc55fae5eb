// Package jwt creates and verifies DID-JWTs: JWTs signed with secp256k1 keys
// whose issuer is a DID, trusted by matching the signing key against the
// keys published in the issuer's DID document.
package jwt

import (
	"context"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/pilacorp/go-didjwt/did"
	"github.com/pilacorp/go-didjwt/ecrecover"
	"github.com/pilacorp/go-didjwt/jose"
	"github.com/pilacorp/go-didjwt/jsonvalue"
)

var logger = xlog.NewPackageLogger("github.com/pilacorp/go-didjwt", "jwt")

// Engine creates and verifies tokens. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	resolver  did.Resolver
	clock     Clock
	skew      int64
	expiresIn int64
	alg       jose.Algorithm
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for iat, exp and validity checks.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithSkew sets the tolerated clock drift. Zero disables the tolerance.
func WithSkew(skew time.Duration) Option {
	return func(e *Engine) {
		e.skew = int64(skew / time.Second)
	}
}

// WithConfig applies the settings of cfg. A nil cfg keeps the defaults.
func WithConfig(cfg *Config) Option {
	return func(e *Engine) {
		if cfg == nil {
			return
		}
		cfg = NewConfig(*cfg)
		e.skew = *cfg.SkewSeconds
		e.expiresIn = cfg.ExpiresInSeconds
		if alg, err := jose.ParseAlgorithm(cfg.Algorithm); err == nil {
			e.alg = alg
		}
	}
}

// New returns an engine resolving issuers with resolver, typically a
// did.Registry owned by the application.
func New(resolver did.Resolver, opts ...Option) *Engine {
	e := &Engine{
		resolver:  resolver,
		clock:     SystemClock,
		skew:      DefaultSkewSeconds,
		expiresIn: DefaultExpiresInSeconds,
		alg:       DefaultAlgorithm,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateJWT signs payload on behalf of issuerDID. The returned token always
// carries iss = issuerDID and iat = now. exp is kept from the payload when
// present, otherwise it is set to iat + expiresInSeconds, or to the
// configured default validity when expiresInSeconds is zero. A negative
// expiresInSeconds leaves exp unset. An empty alg selects the configured
// default algorithm. payload is not modified.
func (e *Engine) CreateJWT(ctx context.Context, payload Payload, issuerDID string, signer jose.Signer, expiresInSeconds int64, alg string) (string, error) {
	algorithm := e.alg
	if alg != "" {
		a, err := jose.ParseAlgorithm(alg)
		if err != nil {
			return "", err
		}
		algorithm = a
	}
	if signer == nil {
		return "", errors.New("signer is required")
	}
	if issuerDID == "" {
		return "", errors.New("issuer DID is required")
	}

	p := payload.Clone()
	iat := e.clock.Now().Unix()
	p[ClaimIssuedAt] = jsonvalue.NewInt(iat)
	p[ClaimIssuer] = jsonvalue.NewString(issuerDID)

	if _, ok := p.Get(ClaimExpiresAt); !ok {
		ttl := expiresInSeconds
		if ttl == 0 {
			ttl = e.expiresIn
		}
		if ttl > 0 {
			p[ClaimExpiresAt] = jsonvalue.NewInt(iat + ttl)
		} else {
			delete(p, ClaimExpiresAt)
		}
	}

	signingInput, err := encodeSigningInput(Header{Typ: TypeJWT, Alg: algorithm}, p)
	if err != nil {
		return "", err
	}
	sig, err := algorithm.Sign(ctx, []byte(signingInput), signer)
	if err != nil {
		return "", err
	}
	return signingInput + "." + sig, nil
}

// Decode parses token without verifying it. It can be used to inspect a
// token, for example to read iss before choosing a resolver.
func (e *Engine) Decode(token string) (*Token, error) {
	return Decode(token)
}

type verifyOptions struct {
	audience       string
	authentication bool
}

// VerifyOption configures a single Verify call.
type VerifyOption func(*verifyOptions)

// WithAudience requires that a token carrying an aud claim names audience.
func WithAudience(audience string) VerifyOption {
	return func(o *verifyOptions) {
		o.audience = audience
	}
}

// WithAuthentication only accepts keys referenced from the authentication
// section of the issuer's document.
func WithAuthentication() VerifyOption {
	return func(o *verifyOptions) {
		o.authentication = true
	}
}

// Verify decodes token, checks its validity period, resolves its issuer and
// returns the payload if the signature was produced by one of the issuer's
// keys. Candidate recovery ids are tried in order and, for each, the
// document keys in order; the first match wins.
//
// A token signed by a key the issuer does not publish fails with
// ErrNoMatchingKey. Every other failure is a hard failure: see the Err
// variables of this package.
func (e *Engine) Verify(ctx context.Context, token string, opts ...VerifyOption) (Payload, error) {
	var vo verifyOptions
	for _, opt := range opts {
		opt(&vo)
	}

	t, err := Decode(token)
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidJWT)
	}
	if len(t.Signature) < jose.SigSize {
		err = errors.Wrapf(ErrMalformedToken, "signature must be at least %d bytes, got %d", jose.SigSize, len(t.Signature))
		return nil, errors.Mark(err, ErrInvalidJWT)
	}

	if err := e.checkValidity(t.Payload); err != nil {
		return nil, err
	}
	if err := checkAudience(t.Payload, vo.audience); err != nil {
		return nil, err
	}

	issuer, ok := t.Payload.Issuer()
	if !ok || issuer == "" {
		return nil, errors.Wrap(ErrInvalidJWT, "missing iss")
	}

	doc, err := e.resolve(ctx, issuer)
	if err != nil {
		return nil, err
	}

	keys := doc.Keys()
	if vo.authentication {
		keys = doc.AuthenticationKeys()
	}
	addresses := keyAddresses(keys)

	sig, err := jose.DecodeJoseBytes(t.Signature, jose.DefaultRecoveryParam)
	if err != nil {
		return nil, errors.Mark(errors.Mark(err, ErrMalformedToken), ErrInvalidJWT)
	}
	candidates := []byte{27, 28}
	if len(t.Signature) > jose.SigSize {
		candidates = []byte{sig.V}
	}

	signingInput := []byte(t.SigningInput())
	recovered := 0
	for _, v := range candidates {
		sig.V = v
		pub, err := ecrecover.SignedJWTToKey(signingInput, sig)
		if err != nil {
			logger.KV(xlog.DEBUG, "reason", "recover", "v", v, "err", err.Error())
			continue
		}
		addr, err := did.AddressFromPublicKey(pub)
		if err != nil {
			logger.KV(xlog.DEBUG, "reason", "address", "v", v, "err", err.Error())
			continue
		}
		recovered++

		if slices.ContainsFunc(addresses, func(a string) bool { return did.SameAddress(a, addr) }) {
			return t.Payload, nil
		}
	}

	if recovered == 0 {
		return nil, errors.Wrapf(ErrSignatureRecovery, "issuer %s", issuer)
	}
	return nil, errors.Wrapf(ErrNoMatchingKey, "issuer %s", issuer)
}

// checkValidity rejects tokens issued more than skew seconds in the future
// or expired more than skew seconds ago. Absent claims are not checked.
// The tolerance applies to exp as well as iat, so a token stays valid for
// skew seconds after exp, matching current did-jwt verifiers.
func (e *Engine) checkValidity(p Payload) error {
	now := e.clock.Now().UnixMilli() / 1000

	if v, ok := p.Get(ClaimIssuedAt); ok {
		iat, ok := v.AsInt64()
		if !ok {
			return errors.Wrap(ErrInvalidJWT, "iat must be a number")
		}
		if iat > now+e.skew {
			return errors.Wrapf(ErrInvalidJWT, "issued in the future: iat %d, now %d", iat, now)
		}
	}
	if v, ok := p.Get(ClaimExpiresAt); ok {
		exp, ok := v.AsInt64()
		if !ok {
			return errors.Wrap(ErrInvalidJWT, "exp must be a number")
		}
		if exp < now-e.skew {
			return errors.Wrapf(ErrInvalidJWT, "expired: exp %d, now %d", exp, now)
		}
	}
	return nil
}

func checkAudience(p Payload, expected string) error {
	if expected == "" {
		return nil
	}
	aud, present := p.Get(ClaimAudience)
	if !present {
		return nil
	}
	values, ok := p.Audience()
	if !ok {
		return errors.Wrapf(ErrInvalidJWT, "invalid aud claim: %s", aud.Kind())
	}
	if !slices.Contains(values, expected) {
		return errors.Wrapf(ErrInvalidJWT, "audience %q is not in aud", expected)
	}
	return nil
}

func (e *Engine) resolve(ctx context.Context, issuer string) (*did.DIDDocument, error) {
	if e.resolver == nil {
		return nil, errors.Wrap(ErrUnresolvableIssuer, "no resolver configured")
	}
	doc, err := e.resolver.Resolve(ctx, issuer)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, errors.Mark(errors.WithMessagef(err, "unable to resolve issuer %s", issuer), ErrUnresolvableIssuer)
	}
	if doc.IsBlank() {
		return nil, errors.Wrapf(ErrUnresolvableIssuer, "blank document for %s", issuer)
	}
	return doc, nil
}

// keyAddresses derives the comparison address of every key, in order.
// Entries without usable key material are skipped.
func keyAddresses(keys []did.PublicKeyEntry) []string {
	addresses := make([]string, 0, len(keys))
	for _, k := range keys {
		addr, err := k.Address()
		if err != nil {
			logger.KV(xlog.DEBUG, "reason", "key", "id", k.ID, "err", err.Error())
			continue
		}
		addresses = append(addresses, addr)
	}
	return addresses
}

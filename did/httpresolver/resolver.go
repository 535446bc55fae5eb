// Package httpresolver resolves DID documents over HTTP, either from a
// universal resolver endpoint or from the well-known location of a
// did:https domain.
package httpresolver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/pilacorp/go-didjwt/did"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var logger = xlog.NewPackageLogger("github.com/pilacorp/go-didjwt/did", "httpresolver")

// DefaultTimeout is the timeout of the default HTTP client.
const DefaultTimeout = 10 * time.Second

// maxDocumentSize bounds the size of a fetched document.
const maxDocumentSize = 1 << 20

const documentSchema = `{
	"type": "object",
	"required": ["id"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"publicKey": {"type": ["array", "null"], "items": {"$ref": "#/definitions/key"}},
		"verificationMethod": {"type": ["array", "null"], "items": {"$ref": "#/definitions/key"}}
	},
	"definitions": {
		"key": {
			"type": "object",
			"required": ["id"],
			"properties": {
				"id": {"type": "string"},
				"type": {"type": "string"}
			}
		}
	}
}`

var schema = mustSchema(documentSchema)

func mustSchema(s string) *gojsonschema.Schema {
	sc, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(err)
	}
	return sc
}

// Resolver fetches DID documents with HTTP GET requests.
type Resolver struct {
	method   string
	scheme   string
	client   *http.Client
	endpoint func(r *Resolver, id string) (string, error)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithMethod restricts the resolver to one DID method, which is also the
// method it is registered under in a did.Registry.
func WithMethod(method string) Option {
	return func(r *Resolver) {
		r.method = method
	}
}

// WithScheme overrides the URL scheme used to reach did:https domains.
func WithScheme(scheme string) Option {
	return func(r *Resolver) {
		r.scheme = scheme
	}
}

// NewUniversal returns a resolver querying a universal resolver at baseURL,
// for example https://uniresolver.io/1.0/identifiers.
func NewUniversal(baseURL string, opts ...Option) (*Resolver, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("resolver base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.Wrapf(err, "invalid resolver base URL")
	}
	base := strings.TrimSuffix(baseURL, "/")

	r := newResolver(opts...)
	r.endpoint = func(_ *Resolver, id string) (string, error) {
		return base + "/" + url.PathEscape(id), nil
	}
	return r, nil
}

// NewHTTPS returns a resolver for did:https DIDs, which are served from
// https://<domain>/.well-known/did.json.
func NewHTTPS(opts ...Option) *Resolver {
	r := newResolver(append([]Option{WithMethod("https")}, opts...)...)
	r.endpoint = func(r *Resolver, id string) (string, error) {
		_, domain := did.ParseDID(id)
		domain, err := url.PathUnescape(domain)
		if err != nil || domain == "" {
			return "", errors.Wrapf(did.ErrInvalidDID, "%q", id)
		}
		return r.scheme + "://" + domain + "/.well-known/did.json", nil
	}
	return r
}

func newResolver(opts ...Option) *Resolver {
	r := &Resolver{
		scheme: "https",
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return r
}

// Method implements did.Resolver.
func (r *Resolver) Method() string { return r.method }

// CanResolve implements did.Resolver.
func (r *Resolver) CanResolve(id string) bool {
	method, _ := did.ParseDID(id)
	if method == "" {
		return false
	}
	return r.method == "" || method == r.method
}

// Resolve implements did.Resolver.
func (r *Resolver) Resolve(ctx context.Context, id string) (*did.DIDDocument, error) {
	if !r.CanResolve(id) {
		return nil, errors.Wrapf(did.ErrInvalidDID, "%q cannot be resolved by the %q resolver", id, r.method)
	}
	endpoint, err := r.endpoint(r, id)
	if err != nil {
		return nil, err
	}

	body, err := r.get(ctx, endpoint)
	if err != nil {
		return nil, errors.WithMessagef(err, "unable to resolve %s", id)
	}
	doc, err := parse(body)
	if err != nil {
		return nil, errors.WithMessagef(err, "unable to resolve %s", id)
	}
	return doc, nil
}

func (r *Resolver) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Accept", "application/did+json, application/json")

	logger.KV(xlog.DEBUG, "reason", "request", "url", endpoint)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if resp.StatusCode != http.StatusOK {
		logger.KV(xlog.DEBUG, "reason", "status", "url", endpoint, "status", resp.StatusCode)
		return nil, errors.Newf("resolver returned %s", resp.Status)
	}
	return body, nil
}

// envelope is the universal resolver's resolution result.
type envelope struct {
	DIDDocument json.RawMessage `json:"didDocument"`
}

func parse(body []byte) (*did.DIDDocument, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, did.ErrBlankDocument
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.DIDDocument) > 0 && string(env.DIDDocument) != "null" {
		body = env.DIDDocument
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, errors.Wrap(err, "invalid DID document")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errors.Newf("invalid DID document: %s", strings.Join(msgs, "; "))
	}

	doc, err := did.ParseDocument(body)
	if err != nil {
		return nil, errors.Wrap(err, "invalid DID document")
	}
	if doc.IsBlank() {
		return nil, did.ErrBlankDocument
	}
	return doc, nil
}

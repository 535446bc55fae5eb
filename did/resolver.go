package did

import (
	"context"
	"regexp"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/pilacorp/go-didjwt", "did")

var (
	// ErrNoResolver is returned when no resolver is registered for a DID
	// method.
	ErrNoResolver = errors.New("no resolver for DID method")
	// ErrBlankDocument is returned when a resolver produced no document.
	ErrBlankDocument = errors.New("blank DID document")
	// ErrInvalidDID is returned for strings that are not DIDs.
	ErrInvalidDID = errors.New("invalid DID")
)

// Resolver resolves DIDs of one method into documents.
type Resolver interface {
	// Method returns the DID method served by the resolver.
	Method() string
	// CanResolve reports whether did can be handled by this resolver.
	CanResolve(did string) bool
	// Resolve fetches the document of did.
	Resolve(ctx context.Context, did string) (*DIDDocument, error)
}

var didPattern = regexp.MustCompile(`^did:(.*?):(.+)`)

// ParseDID splits did into its method and method specific identifier. Both
// are empty if did is not a DID.
func ParseDID(did string) (method, identifier string) {
	m := didPattern.FindStringSubmatch(did)
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}

// StaticResolver serves documents from memory.
type StaticResolver struct {
	method string
	docs   map[string]*DIDDocument
}

// NewStaticResolver returns a resolver for method backed by docs. An empty
// method serves every DID present in docs.
func NewStaticResolver(method string, docs ...*DIDDocument) *StaticResolver {
	r := &StaticResolver{
		method: method,
		docs:   make(map[string]*DIDDocument, len(docs)),
	}
	for _, d := range docs {
		r.Add(d)
	}
	return r
}

// Add stores doc under its id.
func (r *StaticResolver) Add(doc *DIDDocument) {
	if doc != nil {
		r.docs[doc.ID] = doc
	}
}

// Method implements Resolver.
func (r *StaticResolver) Method() string { return r.method }

// CanResolve implements Resolver.
func (r *StaticResolver) CanResolve(did string) bool {
	if r.method == "" {
		_, ok := r.docs[did]
		return ok
	}
	method, _ := ParseDID(did)
	return method == r.method
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(ctx context.Context, did string) (*DIDDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, ok := r.docs[did]
	if !ok {
		return nil, errors.Wrapf(ErrBlankDocument, "%s", did)
	}
	return doc, nil
}

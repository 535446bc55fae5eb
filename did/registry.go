package did

import (
	"context"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/singleflight"
)

// Registry dispatches resolution to the resolver registered for the DID
// method. It is owned by the application and is itself a Resolver, so it can
// be handed to the JWT engine as its single effective resolver.
type Registry struct {
	lock      sync.RWMutex
	resolvers map[string]Resolver
	inflight  singleflight.Group
}

// NewRegistry returns a registry with the given resolvers registered.
func NewRegistry(resolvers ...Resolver) *Registry {
	r := &Registry{
		resolvers: make(map[string]Resolver),
	}
	for _, res := range resolvers {
		if err := r.Register(res); err != nil {
			logger.KV(xlog.WARNING, "reason", "register", "err", err.Error())
		}
	}
	return r
}

// Register adds res under its method, replacing any previous resolver for
// the same method.
func (r *Registry) Register(res Resolver) error {
	if res == nil {
		return errors.New("resolver is required")
	}
	method := res.Method()
	if method == "" {
		return errors.New("resolver must declare a DID method")
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	r.resolvers[method] = res
	return nil
}

// Methods returns the registered DID methods in sorted order.
func (r *Registry) Methods() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	methods := maps.Keys(r.resolvers)
	slices.Sort(methods)
	return methods
}

// Method implements Resolver. A registry serves every registered method.
func (r *Registry) Method() string { return "" }

// CanResolve implements Resolver.
func (r *Registry) CanResolve(did string) bool {
	res := r.lookup(did)
	return res != nil && res.CanResolve(did)
}

// Resolve implements Resolver. Concurrent calls for the same DID share one
// underlying resolution. The shared resolution does not observe the
// cancellation of any single caller; each caller stops waiting when its own
// ctx is done.
func (r *Registry) Resolve(ctx context.Context, did string) (*DIDDocument, error) {
	method, _ := ParseDID(did)
	if method == "" {
		return nil, errors.Wrapf(ErrInvalidDID, "%q", did)
	}
	res := r.lookup(did)
	if res == nil {
		return nil, errors.Wrapf(ErrNoResolver, "%q", method)
	}

	shared := context.WithoutCancel(ctx)
	ch := r.inflight.DoChan(did, func() (any, error) {
		logger.KV(xlog.DEBUG, "reason", "resolve", "did", did, "method", method)
		return res.Resolve(shared, did)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-ch:
		if out.Err != nil {
			return nil, out.Err
		}
		doc, _ := out.Val.(*DIDDocument)
		if doc.IsBlank() {
			return nil, errors.Wrapf(ErrBlankDocument, "%s", did)
		}
		return doc, nil
	}
}

func (r *Registry) lookup(did string) Resolver {
	method, _ := ParseDID(did)
	if method == "" {
		return nil
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.resolvers[method]
}

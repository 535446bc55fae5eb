// Package cache provides a Redis read-through cache for DID resolvers.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/pilacorp/go-didjwt/did"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/pilacorp/go-didjwt/did", "cache")

const (
	// DefaultKeyPrefix prefixes the Redis keys of cached documents.
	DefaultKeyPrefix = "didjwt:doc"
	// DefaultTTL is used when New is given a non-positive ttl.
	DefaultTTL = 15 * time.Minute
)

// Resolver serves documents from Redis and falls back to the wrapped
// resolver on a miss. Redis failures never fail a resolution.
type Resolver struct {
	next   did.Resolver
	redis  redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// New wraps next with a cache stored in rdb.
func New(next did.Resolver, rdb redis.UniversalClient, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		prefix: DefaultKeyPrefix,
	}
}

func (r *Resolver) key(id string) string {
	return r.prefix + ":" + id
}

// Method implements did.Resolver.
func (r *Resolver) Method() string { return r.next.Method() }

// CanResolve implements did.Resolver.
func (r *Resolver) CanResolve(id string) bool { return r.next.CanResolve(id) }

// Resolve implements did.Resolver.
func (r *Resolver) Resolve(ctx context.Context, id string) (*did.DIDDocument, error) {
	raw, err := r.redis.Get(ctx, r.key(id)).Bytes()
	switch {
	case err == nil:
		doc, perr := did.ParseDocument(raw)
		if perr == nil && !doc.IsBlank() {
			logger.KV(xlog.DEBUG, "reason", "hit", "did", id)
			return doc, nil
		}
		logger.KV(xlog.WARNING, "reason", "corrupt", "did", id, "err", perr)
	case errors.Is(err, redis.Nil):
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		logger.KV(xlog.WARNING, "reason", "get", "did", id, "err", err.Error())
	}

	doc, err := r.next.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(doc); err == nil {
		if err := r.redis.Set(ctx, r.key(id), encoded, r.ttl).Err(); err != nil {
			logger.KV(xlog.WARNING, "reason", "set", "did", id, "err", err.Error())
		}
	}
	return doc, nil
}

// Invalidate drops the cached document of id.
func (r *Resolver) Invalidate(ctx context.Context, id string) error {
	if err := r.redis.Del(ctx, r.key(id)).Err(); err != nil {
		return errors.Wrapf(err, "unable to invalidate %s", id)
	}
	return nil
}

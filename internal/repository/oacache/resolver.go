package oacache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paperscout/backend/internal/cache"
	"github.com/paperscout/backend/internal/domain"
	"github.com/paperscout/backend/internal/metrics"
)

// Resolver wraps an OpenAccessResolver with read-through caching keyed by
// DOI. Open access records change rarely, so entries live for days rather
// than hours. A cache failure degrades to a direct lookup.
type Resolver struct {
	inner domain.OpenAccessResolver
	store cache.Store
	ttl   time.Duration
	log   *zap.Logger
}

// Compile-time check
var _ domain.OpenAccessResolver = (*Resolver)(nil)

func Wrap(inner domain.OpenAccessResolver, store cache.Store, ttl time.Duration, log *zap.Logger) *Resolver {
	return &Resolver{
		inner: inner,
		store: store,
		ttl:   ttl,
		log:   log,
	}
}

func (r *Resolver) Lookup(ctx context.Context, doi string) (*domain.OpenAccessInfo, error) {
	key := lookupKey(doi)

	if data, err := r.store.Get(ctx, key); err == nil {
		var info domain.OpenAccessInfo
		jerr := json.Unmarshal(data, &info)
		if jerr == nil {
			metrics.CacheRequestsTotal.WithLabelValues("openaccess", "hit").Inc()
			return &info, nil
		}
		r.log.Warn("discarding undecodable open access cache entry",
			zap.String("doi", doi),
			zap.Error(jerr))
	} else if !errors.Is(err, cache.ErrNotFound) {
		r.log.Warn("open access cache read failed",
			zap.String("doi", doi),
			zap.Error(err))
	}
	metrics.CacheRequestsTotal.WithLabelValues("openaccess", "miss").Inc()

	info, err := r.inner.Lookup(ctx, doi)
	if err != nil {
		return nil, err
	}

	if data, merr := json.Marshal(info); merr == nil {
		if serr := r.store.SetWithTTL(ctx, key, data, r.ttl); serr != nil {
			r.log.Warn("open access cache write failed",
				zap.String("doi", doi),
				zap.Error(serr))
		}
	}

	return info, nil
}

// DOIs are case-insensitive; the key folds case so "10.1038/NATURE12373"
// and "10.1038/nature12373" share an entry.
func lookupKey(doi string) string {
	return "oa:v1:" + strings.ToLower(doi)
}

package sourcecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paperscout/backend/internal/cache"
	"github.com/paperscout/backend/internal/domain"
	"github.com/paperscout/backend/internal/metrics"
)

// Client wraps a SourceClient with read-through result caching. A cache
// failure is never surfaced to the caller; the wrapped client is queried as
// if the lookup missed.
type Client struct {
	inner domain.SourceClient
	store cache.Store
	ttl   time.Duration
	log   *zap.Logger
}

// Compile-time check
var _ domain.SourceClient = (*Client)(nil)

func Wrap(inner domain.SourceClient, store cache.Store, ttl time.Duration, log *zap.Logger) *Client {
	return &Client{
		inner: inner,
		store: store,
		ttl:   ttl,
		log:   log,
	}
}

func (c *Client) SourceName() string {
	return c.inner.SourceName()
}

func (c *Client) HealthCheck(ctx context.Context) bool {
	return c.inner.HealthCheck(ctx)
}

func (c *Client) Search(ctx context.Context, query string, yearFrom, yearTo, limit int) ([]domain.RawPaper, error) {
	key := searchKey(c.inner.SourceName(), query, yearFrom, yearTo, limit)

	if data, err := c.store.Get(ctx, key); err == nil {
		var papers []domain.RawPaper
		jerr := json.Unmarshal(data, &papers)
		if jerr == nil {
			metrics.CacheRequestsTotal.WithLabelValues("source", "hit").Inc()
			return papers, nil
		}
		c.log.Warn("discarding undecodable source cache entry",
			zap.String("source", c.inner.SourceName()),
			zap.Error(jerr))
	} else if !errors.Is(err, cache.ErrNotFound) {
		c.log.Warn("source cache read failed",
			zap.String("source", c.inner.SourceName()),
			zap.Error(err))
	}
	metrics.CacheRequestsTotal.WithLabelValues("source", "miss").Inc()

	papers, err := c.inner.Search(ctx, query, yearFrom, yearTo, limit)
	if err != nil {
		return nil, err
	}

	if data, merr := json.Marshal(papers); merr == nil {
		if serr := c.store.SetWithTTL(ctx, key, data, c.ttl); serr != nil {
			c.log.Warn("source cache write failed",
				zap.String("source", c.inner.SourceName()),
				zap.Error(serr))
		}
	}

	return papers, nil
}

func searchKey(source, query string, yearFrom, yearTo, limit int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d|%d", source, query, yearFrom, yearTo, limit)))
	return "search:v1:" + hex.EncodeToString(sum[:])
}

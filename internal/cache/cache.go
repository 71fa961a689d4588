// Package cache defines the TTL key-value contract the engine memoizes
// source responses and open-access lookups through. Production wiring backs
// it with Redis; tests and cacheless deployments use the in-process store.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a missing or expired key.
var ErrNotFound = errors.New("cache: key not found")

type Store interface {
	// Get returns the value at key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// SetWithTTL stores value at key, expiring after ttl.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

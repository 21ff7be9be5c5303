// Package cache provides the TTL key-value cache used to short-circuit
// repeated access token issuance. The cache is a pure optimization: callers
// must treat any failure as a miss, never as an error.
package cache

import (
	"context"
	"time"
)

// Cache is a TTL string cache. Get returns (value, found, err); a found
// entry is always within its TTL.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Noop is the always-miss fallback used when no cache backend is configured.
type Noop struct{}

var _ Cache = Noop{}

func (Noop) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, nil
}

func (Noop) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return nil
}

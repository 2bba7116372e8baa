// Package cache provides the TTL key/value store and expiring counters used to
// gate marketplace requests.
package cache

import (
	"context"
	"time"
)

// Store is a TTL cache with atomic counters.
type Store interface {
	// Get returns the value stored under key. ok is false when the key is
	// missing or expired.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	// Put stores val under key for ttl.
	Put(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Increment adds one to the counter under key and returns the new value.
	// A missing or expired counter restarts at 1 and expires after ttl; an
	// existing counter keeps its original expiry.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

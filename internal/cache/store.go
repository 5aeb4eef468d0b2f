// Package cache is the shared low-latency store used for timed buffs,
// cooldowns, daily counters and cross-process locks. Production runs it on
// Redis; a process-local implementation backs tests and degraded single-node
// operation when no Redis is configured.
package cache

import (
	"context"
	"time"
)

// Store is the minimal cache surface the simulation core needs. All values
// are strings; TTLs are second-granularity.
type Store interface {
	// Get returns the value and whether the key exists and is unexpired.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes a value with a TTL (0 means no expiry).
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX writes only if the key is absent. Reports whether it wrote.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// CompareAndDelete removes the key only if its value matches.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
	// IncrBy atomically adds delta to a counter, setting the TTL when the
	// key is created by the call.
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	// TTL reports the remaining lifetime, or a negative duration if the key
	// is absent.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

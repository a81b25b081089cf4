package cache

import (
	"context"
	"time"
)

// Store is the durable key/value tier backing the in-memory cache. Values are
// opaque JSON payloads; expiry is enforced on read.
type Store interface {
	Set(ctx context.Context, key string, value []byte, storedAt time.Time, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, time.Time, bool, error)
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
}

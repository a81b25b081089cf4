package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/rafflewave/lottosync/pkg/metrics"
)

const (
	// singletonKey addresses the sole entry of non-keyed families inside
	// their per-family LRU.
	singletonKey = "_"

	keyedFamilyCapacity = 512
)

type memoryEntry struct {
	data     []byte
	storedAt time.Time
}

// Tier is the two-tier cache: a fast in-memory LRU per family in front of the
// durable Store. The durable tier is best-effort; its failures are swallowed
// here and never reach callers.
type Tier struct {
	ttls   map[Family]TTLPair
	memory map[Family]*expirable.LRU[string, memoryEntry]
	store  Store
	log    *zap.Logger
}

// NewTier constructs the two-tier cache. store may be nil, in which case only
// the memory tier operates. ttls falls back to DefaultTTLs for any family it
// does not cover.
func NewTier(store Store, ttls map[Family]TTLPair, log *zap.Logger) *Tier {
	if log == nil {
		log = zap.NewNop()
	}

	resolved := DefaultTTLs()
	for family, pair := range ttls {
		if pair.Memory > 0 {
			entry := resolved[family]
			entry.Memory = pair.Memory
			if pair.Persist > 0 {
				entry.Persist = pair.Persist
			}
			resolved[family] = entry
		}
	}

	memory := make(map[Family]*expirable.LRU[string, memoryEntry], len(resolved))
	for family, pair := range resolved {
		capacity := 0
		if family.IsKeyed() {
			capacity = keyedFamilyCapacity
		}
		memory[family] = expirable.NewLRU[string, memoryEntry](capacity, nil, pair.Memory)
	}

	return &Tier{
		ttls:   resolved,
		memory: memory,
		store:  store,
		log:    log,
	}
}

// TTL returns the TTL pair governing a family.
func (t *Tier) TTL(family Family) TTLPair {
	return t.ttls[family]
}

// Get returns the cached payload for (family, key) or absence. The memory tier
// is consulted first; a durable hit within the persisted TTL is promoted into
// memory before being returned.
func (t *Tier) Get(ctx context.Context, family Family, key string) ([]byte, bool) {
	lru, ok := t.memory[family]
	if !ok {
		return nil, false
	}

	memKey := t.memoryKey(family, key)
	if entry, ok := lru.Get(memKey); ok {
		metrics.CacheLookups.WithLabelValues(string(family), "memory_hit").Inc()
		return entry.data, true
	}

	if t.store == nil {
		metrics.CacheLookups.WithLabelValues(string(family), "miss").Inc()
		return nil, false
	}

	data, storedAt, found, err := t.store.Get(ctx, family.StorageKey(key))
	if err != nil {
		t.log.Warn("persistent cache read failed",
			zap.String("family", string(family)),
			zap.String("key", key),
			zap.Error(err))
		metrics.CacheLookups.WithLabelValues(string(family), "miss").Inc()
		return nil, false
	}
	if !found {
		metrics.CacheLookups.WithLabelValues(string(family), "miss").Inc()
		return nil, false
	}

	if t.expired(family, storedAt) {
		metrics.CacheLookups.WithLabelValues(string(family), "expired").Inc()
		_ = t.store.Delete(ctx, family.StorageKey(key))
		return nil, false
	}

	lru.Add(memKey, memoryEntry{data: data, storedAt: storedAt})
	metrics.CacheLookups.WithLabelValues(string(family), "persistent_hit").Inc()
	return data, true
}

// Set writes both tiers. A durable-tier failure (quota, IO) is logged and
// swallowed; the memory write always succeeds.
func (t *Tier) Set(ctx context.Context, family Family, key string, value []byte) {
	lru, ok := t.memory[family]
	if !ok {
		return
	}

	now := time.Now()
	lru.Add(t.memoryKey(family, key), memoryEntry{data: value, storedAt: now})

	if t.store == nil {
		return
	}
	if err := t.store.Set(ctx, family.StorageKey(key), value, now, t.ttls[family].Persist); err != nil {
		t.log.Warn("persistent cache write failed",
			zap.String("family", string(family)),
			zap.String("key", key),
			zap.Error(err))
	}
}

// Invalidate removes (family, key) from both tiers. For keyed families an
// empty key purges the whole family. Idempotent; never returns an error to
// callers.
func (t *Tier) Invalidate(ctx context.Context, family Family, key string) {
	lru, ok := t.memory[family]
	if !ok {
		return
	}

	if family.IsKeyed() && key == "" {
		lru.Purge()
		if t.store != nil {
			if err := t.store.DeleteByPrefix(ctx, family.StoragePrefix()); err != nil {
				t.log.Warn("persistent cache prefix invalidation failed",
					zap.String("family", string(family)),
					zap.Error(err))
			}
		}
		return
	}

	lru.Remove(t.memoryKey(family, key))
	if t.store != nil {
		if err := t.store.Delete(ctx, family.StorageKey(key)); err != nil {
			t.log.Warn("persistent cache invalidation failed",
				zap.String("family", string(family)),
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

// InvalidateAll clears every family from both tiers. Used on logout.
func (t *Tier) InvalidateAll(ctx context.Context) {
	for family, lru := range t.memory {
		lru.Purge()
		if t.store == nil {
			continue
		}
		if err := t.store.DeleteByPrefix(ctx, family.StoragePrefix()); err != nil {
			t.log.Warn("persistent cache invalidation failed",
				zap.String("family", string(family)),
				zap.Error(err))
		}
	}
}

func (t *Tier) memoryKey(family Family, key string) string {
	if family.IsKeyed() && key != "" {
		return key
	}
	return singletonKey
}

func (t *Tier) expired(family Family, storedAt time.Time) bool {
	ttl := t.ttls[family].Persist
	if ttl <= 0 {
		return false
	}
	return time.Since(storedAt) >= ttl
}

// GetJSON decodes the cached payload for (family, key) into out.
func (t *Tier) GetJSON(ctx context.Context, family Family, key string, out any) bool {
	data, ok := t.Get(ctx, family, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.log.Warn("cached payload corrupt, evicting",
			zap.String("family", string(family)),
			zap.String("key", key),
			zap.Error(err))
		t.Invalidate(ctx, family, key)
		return false
	}
	return true
}

// SetJSON encodes value and writes both tiers. Encoding failures are logged
// and swallowed; the cache is a derived copy and may simply stay cold.
func (t *Tier) SetJSON(ctx context.Context, family Family, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		t.log.Warn("cache payload encoding failed",
			zap.String("family", string(family)),
			zap.Error(err))
		return
	}
	t.Set(ctx, family, key, data)
}

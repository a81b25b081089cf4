package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store with fault injection.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]fakeRow
	failAll bool
	sets    int
	deletes int
}

type fakeRow struct {
	data     []byte
	storedAt time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]fakeRow)}
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte, storedAt time.Time, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.failAll {
		return errors.New("disk full")
	}
	f.rows[key] = fakeRow{data: value, storedAt: storedAt}
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, time.Time{}, false, errors.New("io error")
	}
	row, ok := f.rows[key]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return row.data, row.storedAt, true, nil
}

func (f *fakeStore) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.failAll {
		return errors.New("io error")
	}
	for _, key := range keys {
		delete(f.rows, key)
	}
	return nil
}

func (f *fakeStore) DeleteByPrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("io error")
	}
	for key := range f.rows {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(f.rows, key)
		}
	}
	return nil
}

func (f *fakeStore) PruneExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[key]
	return ok
}

func TestTierSetGetRoundTrip(t *testing.T) {
	store := newFakeStore()
	tier := NewTier(store, nil, nil)
	ctx := context.Background()

	tier.Set(ctx, FamilyFavorites, "", []byte(`{"ids":[]}`))

	data, ok := tier.Get(ctx, FamilyFavorites, "")
	require.True(t, ok)
	require.JSONEq(t, `{"ids":[]}`, string(data))

	// Both tiers were written.
	require.True(t, store.has("lottosync:favorites"))
}

func TestTierPromotesPersistentHit(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	warm := NewTier(store, nil, nil)
	warm.Set(ctx, FamilyUserStats, "", []byte(`{"total_entries":3}`))

	// A fresh tier simulates a restart: memory cold, durable tier warm.
	cold := NewTier(store, nil, nil)
	data, ok := cold.Get(ctx, FamilyUserStats, "")
	require.True(t, ok)
	require.JSONEq(t, `{"total_entries":3}`, string(data))

	// Promotion means the next read is served from memory even if the
	// durable tier starts failing.
	store.mu.Lock()
	store.failAll = true
	store.mu.Unlock()

	data, ok = cold.Get(ctx, FamilyUserStats, "")
	require.True(t, ok)
	require.NotEmpty(t, data)
}

func TestTierExpiredPersistentRowIgnored(t *testing.T) {
	store := newFakeStore()
	store.rows["lottosync:favorites"] = fakeRow{
		data:     []byte(`{"ids":["h1"]}`),
		storedAt: time.Now().Add(-2 * time.Hour),
	}

	tier := NewTier(store, nil, nil)
	_, ok := tier.Get(context.Background(), FamilyFavorites, "")
	require.False(t, ok)
	require.False(t, store.has("lottosync:favorites"))
}

func TestTierSwallowsDurableFailures(t *testing.T) {
	store := newFakeStore()
	store.failAll = true
	tier := NewTier(store, nil, nil)
	ctx := context.Background()

	// Writes and invalidations never surface durable errors.
	tier.Set(ctx, FamilyFavorites, "", []byte("data"))
	tier.Invalidate(ctx, FamilyFavorites, "")
	tier.InvalidateAll(ctx)

	// The memory tier still works on its own.
	tier.Set(ctx, FamilyUserStats, "", []byte("stats"))
	tier.Invalidate(ctx, FamilyUserStats, "")
	_, ok := tier.Get(ctx, FamilyUserStats, "")
	require.False(t, ok)
}

func TestTierNilStoreMemoryOnly(t *testing.T) {
	tier := NewTier(nil, nil, nil)
	ctx := context.Background()

	tier.Set(ctx, FamilyHousesList, "", []byte("houses"))
	data, ok := tier.Get(ctx, FamilyHousesList, "")
	require.True(t, ok)
	require.Equal(t, []byte("houses"), data)
}

func TestTierKeyedFamilyIsolation(t *testing.T) {
	store := newFakeStore()
	tier := NewTier(store, nil, nil)
	ctx := context.Background()

	tier.Set(ctx, FamilyHouse, "h1", []byte("one"))
	tier.Set(ctx, FamilyHouse, "h2", []byte("two"))

	data, ok := tier.Get(ctx, FamilyHouse, "h1")
	require.True(t, ok)
	require.Equal(t, []byte("one"), data)

	tier.Invalidate(ctx, FamilyHouse, "h1")
	_, ok = tier.Get(ctx, FamilyHouse, "h1")
	require.False(t, ok)

	data, ok = tier.Get(ctx, FamilyHouse, "h2")
	require.True(t, ok)
	require.Equal(t, []byte("two"), data)
}

func TestTierKeyedFamilyEmptyKeyPurgesFamily(t *testing.T) {
	store := newFakeStore()
	tier := NewTier(store, nil, nil)
	ctx := context.Background()

	tier.Set(ctx, FamilyHouse, "h1", []byte("one"))
	tier.Set(ctx, FamilyHouse, "h2", []byte("two"))
	tier.Set(ctx, FamilyFavorites, "", []byte("favs"))

	tier.Invalidate(ctx, FamilyHouse, "")

	_, ok := tier.Get(ctx, FamilyHouse, "h1")
	require.False(t, ok)
	_, ok = tier.Get(ctx, FamilyHouse, "h2")
	require.False(t, ok)

	// Other families untouched.
	_, ok = tier.Get(ctx, FamilyFavorites, "")
	require.True(t, ok)
}

func TestTierInvalidateAll(t *testing.T) {
	store := newFakeStore()
	tier := NewTier(store, nil, nil)
	ctx := context.Background()

	for _, family := range Families() {
		tier.Set(ctx, family, "", []byte("x"))
	}

	tier.InvalidateAll(ctx)

	for _, family := range Families() {
		_, ok := tier.Get(ctx, family, "")
		require.False(t, ok, string(family))
	}
}

func TestTierTTLOverrides(t *testing.T) {
	overrides := map[Family]TTLPair{
		FamilyFavorites: {Memory: time.Second, Persist: 2 * time.Second},
	}
	tier := NewTier(nil, overrides, nil)

	require.Equal(t, time.Second, tier.TTL(FamilyFavorites).Memory)
	require.Equal(t, 2*time.Second, tier.TTL(FamilyFavorites).Persist)

	// Untouched families keep the defaults.
	require.Equal(t, DefaultTTLs()[FamilyUserStats], tier.TTL(FamilyUserStats))
}

func TestTierJSONHelpers(t *testing.T) {
	tier := NewTier(newFakeStore(), nil, nil)
	ctx := context.Background()

	type doc struct {
		IDs []string `json:"ids"`
	}

	tier.SetJSON(ctx, FamilyFavorites, "", doc{IDs: []string{"h1"}})

	var got doc
	require.True(t, tier.GetJSON(ctx, FamilyFavorites, "", &got))
	require.Equal(t, []string{"h1"}, got.IDs)

	var missing doc
	require.False(t, tier.GetJSON(ctx, FamilyUserStats, "", &missing))
}

func TestTierCorruptPayloadEvicted(t *testing.T) {
	tier := NewTier(newFakeStore(), nil, nil)
	ctx := context.Background()

	tier.Set(ctx, FamilyFavorites, "", []byte("{not json"))

	var out map[string]any
	require.False(t, tier.GetJSON(ctx, FamilyFavorites, "", &out))

	// The corrupt entry is gone entirely.
	_, ok := tier.Get(ctx, FamilyFavorites, "")
	require.False(t, ok)
}

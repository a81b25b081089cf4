package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rafflewave/lottosync/internal/cache"
	"github.com/rafflewave/lottosync/internal/events"
	"github.com/rafflewave/lottosync/internal/models"
	"github.com/rafflewave/lottosync/internal/state"
)

type fakeReloader struct {
	calls atomic.Int32
	err   error
	panic bool
}

func (f *fakeReloader) ReloadEntriesAndStats(context.Context) error {
	f.calls.Add(1)
	if f.panic {
		panic("reload blew up")
	}
	return f.err
}

func newInvalidationFixture(t *testing.T, reloader Reloader) (*InvalidationService, *state.Store, *cache.Tier) {
	t.Helper()

	tier := cache.NewTier(nil, nil, nil)
	st := state.NewStore()
	svc, err := NewInvalidationService(tier, st, reloader, nil)
	require.NoError(t, err)
	return svc, st, tier
}

func seedFamilies(t *testing.T, tier *cache.Tier) {
	t.Helper()
	ctx := context.Background()
	for _, family := range cache.Families() {
		if family.IsKeyed() {
			tier.Set(ctx, family, "h1", []byte("x"))
			continue
		}
		tier.Set(ctx, family, "", []byte("x"))
	}
}

func cached(tier *cache.Tier, family cache.Family, key string) bool {
	_, ok := tier.Get(context.Background(), family, key)
	return ok
}

func TestFavoriteUpdatePatchesStateAndInvalidates(t *testing.T) {
	svc, st, tier := newInvalidationFixture(t, nil)
	seedFamilies(t, tier)
	ctx := context.Background()

	svc.HandleEvent(ctx, events.Event{
		Kind:           events.TypeFavoriteUpdate,
		FavoriteUpdate: &events.FavoriteUpdate{HouseID: "h1", UpdateType: events.FavoriteAdded},
	})
	require.True(t, st.IsFavorite("h1"))
	require.False(t, cached(tier, cache.FamilyFavorites, ""))
	require.False(t, cached(tier, cache.FamilyHouse, "h1"))

	// Untouched families survive.
	require.True(t, cached(tier, cache.FamilyHousesList, ""))
	require.True(t, cached(tier, cache.FamilyActiveEntries, ""))

	svc.HandleEvent(ctx, events.Event{
		Kind:           events.TypeFavoriteUpdate,
		FavoriteUpdate: &events.FavoriteUpdate{HouseID: "h1", UpdateType: events.FavoriteRemoved},
	})
	require.False(t, st.IsFavorite("h1"))
}

func TestInventoryUpdatePatchesCounter(t *testing.T) {
	svc, st, tier := newInvalidationFixture(t, nil)
	seedFamilies(t, tier)
	st.Houses.Set([]models.House{{ID: "h1", SoldTickets: 10}})

	svc.HandleEvent(context.Background(), events.Event{
		Kind:            events.TypeInventoryUpdate,
		InventoryUpdate: &events.InventoryUpdate{HouseID: "h1", SoldTickets: 55},
	})

	house, ok := st.HouseByID("h1")
	require.True(t, ok)
	require.Equal(t, 55, house.SoldTickets)
	require.False(t, cached(tier, cache.FamilyHouse, "h1"))
	require.False(t, cached(tier, cache.FamilyHousesList, ""))
	require.True(t, cached(tier, cache.FamilyUserStats, ""))
}

func TestTicketPurchasedInvalidatesFourFamilies(t *testing.T) {
	svc, _, tier := newInvalidationFixture(t, nil)
	seedFamilies(t, tier)

	svc.HandleEvent(context.Background(), events.Event{
		Kind:            events.TypeTicketPurchased,
		TicketPurchased: &events.TicketPurchased{HouseID: "h1", UserID: "u1"},
	})

	require.False(t, cached(tier, cache.FamilyHouse, "h1"))
	require.False(t, cached(tier, cache.FamilyHousesList, ""))
	require.False(t, cached(tier, cache.FamilyActiveEntries, ""))
	require.False(t, cached(tier, cache.FamilyUserStats, ""))
	require.True(t, cached(tier, cache.FamilyFavorites, ""))
}

func TestEntryStatusChangePatchesEntry(t *testing.T) {
	svc, st, tier := newInvalidationFixture(t, nil)
	seedFamilies(t, tier)
	st.ActiveEntries.Set([]models.ActiveEntry{{TicketID: "t1", Status: models.EntryStatusActive}})

	svc.HandleEvent(context.Background(), events.Event{
		Kind:              events.TypeEntryStatusChange,
		EntryStatusChange: &events.EntryStatusChange{TicketID: "t1", NewStatus: models.EntryStatusWinner},
	})

	require.Equal(t, models.EntryStatusWinner, st.ActiveEntries.Get()[0].Status)
	require.False(t, cached(tier, cache.FamilyActiveEntries, ""))
	require.False(t, cached(tier, cache.FamilyUserStats, ""))
	// A winner transition also stales the listing.
	require.False(t, cached(tier, cache.FamilyHousesList, ""))
}

func TestEntryStatusChangeNonTerminalKeepsListing(t *testing.T) {
	svc, st, tier := newInvalidationFixture(t, nil)
	seedFamilies(t, tier)
	st.ActiveEntries.Set([]models.ActiveEntry{{TicketID: "t1"}})

	svc.HandleEvent(context.Background(), events.Event{
		Kind:              events.TypeEntryStatusChange,
		EntryStatusChange: &events.EntryStatusChange{TicketID: "t1", NewStatus: models.EntryStatusActive},
	})

	require.True(t, cached(tier, cache.FamilyHousesList, ""))
}

func TestDrawStartedInvalidatesListingAndHouse(t *testing.T) {
	svc, _, tier := newInvalidationFixture(t, nil)
	seedFamilies(t, tier)

	svc.HandleEvent(context.Background(), events.Event{
		Kind:        events.TypeDrawStarted,
		DrawStarted: &events.DrawStarted{HouseID: "h1"},
	})

	require.False(t, cached(tier, cache.FamilyHousesList, ""))
	require.False(t, cached(tier, cache.FamilyHouse, "h1"))
	require.True(t, cached(tier, cache.FamilyActiveEntries, ""))
}

func TestDrawCompletedTriggersImmediateReload(t *testing.T) {
	reloader := &fakeReloader{}
	svc, _, tier := newInvalidationFixture(t, reloader)
	seedFamilies(t, tier)

	svc.HandleEvent(context.Background(), events.Event{
		Kind:          events.TypeDrawCompleted,
		DrawCompleted: &events.DrawCompleted{HouseID: "h1"},
	})

	require.Equal(t, int32(1), reloader.calls.Load())
	require.False(t, cached(tier, cache.FamilyHousesList, ""))
	require.False(t, cached(tier, cache.FamilyHouse, "h1"))
	require.False(t, cached(tier, cache.FamilyActiveEntries, ""))
	require.False(t, cached(tier, cache.FamilyUserStats, ""))
}

func TestCountdownUpdateOnlyActsWhenEnded(t *testing.T) {
	svc, _, tier := newInvalidationFixture(t, nil)
	seedFamilies(t, tier)
	ctx := context.Background()

	svc.HandleEvent(ctx, events.Event{
		Kind:            events.TypeCountdownUpdate,
		CountdownUpdate: &events.CountdownUpdate{HouseID: "h1", IsEnded: false},
	})
	require.True(t, cached(tier, cache.FamilyHouse, "h1"))
	require.True(t, cached(tier, cache.FamilyHousesList, ""))

	svc.HandleEvent(ctx, events.Event{
		Kind:            events.TypeCountdownUpdate,
		CountdownUpdate: &events.CountdownUpdate{HouseID: "h1", IsEnded: true},
	})
	require.False(t, cached(tier, cache.FamilyHouse, "h1"))
	require.False(t, cached(tier, cache.FamilyHousesList, ""))
}

func TestHandleEventNeverPanics(t *testing.T) {
	reloader := &fakeReloader{panic: true}
	svc, _, _ := newInvalidationFixture(t, reloader)
	ctx := context.Background()

	require.NotPanics(t, func() {
		// Missing payload.
		svc.HandleEvent(ctx, events.Event{Kind: events.TypeFavoriteUpdate})
		// Unknown kind.
		svc.HandleEvent(ctx, events.Event{Kind: "mystery"})
		// Panicking reloader.
		svc.HandleEvent(ctx, events.Event{
			Kind:          events.TypeDrawCompleted,
			DrawCompleted: &events.DrawCompleted{HouseID: "h1"},
		})
	})
}

func TestReloadFailureDoesNotBreakHandling(t *testing.T) {
	reloader := &fakeReloader{err: errors.New("network down")}
	svc, _, tier := newInvalidationFixture(t, reloader)
	seedFamilies(t, tier)

	svc.HandleEvent(context.Background(), events.Event{
		Kind:          events.TypeDrawCompleted,
		DrawCompleted: &events.DrawCompleted{HouseID: "h1"},
	})

	// The invalidations still happened even though the reload failed.
	require.False(t, cached(tier, cache.FamilyActiveEntries, ""))
	require.Equal(t, int32(1), reloader.calls.Load())
}

package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rafflewave/lottosync/internal/cache"
	"github.com/rafflewave/lottosync/internal/events"
	"github.com/rafflewave/lottosync/internal/models"
	"github.com/rafflewave/lottosync/internal/state"
	"github.com/rafflewave/lottosync/pkg/metrics"
)

// Reloader performs the immediate refetches some events demand.
type Reloader interface {
	ReloadEntriesAndStats(ctx context.Context) error
}

// InvalidationService maps each pushed domain event to a deterministic set of
// cache-family invalidations plus optional state patches and reloads. Every
// handler is isolated: a failing invalidation is logged and must never break
// the event subscription.
type InvalidationService struct {
	cache    *cache.Tier
	state    *state.Store
	reloader Reloader
	log      *zap.Logger
}

// NewInvalidationService constructs the invalidation engine.
func NewInvalidationService(tier *cache.Tier, st *state.Store, reloader Reloader, log *zap.Logger) (*InvalidationService, error) {
	if tier == nil {
		return nil, errors.New("invalidation service: cache tier is required")
	}
	if st == nil {
		return nil, errors.New("invalidation service: state store is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &InvalidationService{cache: tier, state: st, reloader: reloader, log: log}, nil
}

// HandleEvent dispatches one pushed event. It never returns an error and
// never panics: one bad invalidation must not stop future events.
func (s *InvalidationService) HandleEvent(ctx context.Context, event events.Event) {
	ctx = ensureContext(ctx)
	metrics.Invalidations.WithLabelValues(string(event.Kind)).Inc()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = multierr.Append(err, fmt.Errorf("panic handling %s: %v", event.Kind, r))
			}
		}()
		err = multierr.Append(err, s.dispatch(ctx, event))
	}()

	if err != nil {
		s.log.Warn("event invalidation incomplete",
			zap.String("event", string(event.Kind)),
			zap.Error(err))
	}
}

func (s *InvalidationService) dispatch(ctx context.Context, event events.Event) error {
	switch event.Kind {
	case events.TypeFavoriteUpdate:
		return s.handleFavoriteUpdate(ctx, event.FavoriteUpdate)
	case events.TypeInventoryUpdate:
		return s.handleInventoryUpdate(ctx, event.InventoryUpdate)
	case events.TypeEntryStatusChange:
		return s.handleEntryStatusChange(ctx, event.EntryStatusChange)
	case events.TypeDrawStarted:
		return s.handleDrawStarted(ctx, event.DrawStarted)
	case events.TypeDrawCompleted:
		return s.handleDrawCompleted(ctx, event.DrawCompleted)
	case events.TypeTicketPurchased:
		return s.handleTicketPurchased(ctx, event.TicketPurchased)
	case events.TypeCountdownUpdate:
		return s.handleCountdownUpdate(ctx, event.CountdownUpdate)
	default:
		return fmt.Errorf("unknown event type %q", event.Kind)
	}
}

// handleFavoriteUpdate patches the favorite set directly; no reload needed.
func (s *InvalidationService) handleFavoriteUpdate(ctx context.Context, payload *events.FavoriteUpdate) error {
	if payload == nil {
		return errors.New("favorite update payload missing")
	}

	switch payload.UpdateType {
	case events.FavoriteAdded:
		s.state.AddFavorite(payload.HouseID)
	case events.FavoriteRemoved:
		s.state.RemoveFavorite(payload.HouseID)
	}

	s.cache.Invalidate(ctx, cache.FamilyFavorites, "")
	s.cache.Invalidate(ctx, cache.FamilyHouse, payload.HouseID)
	return nil
}

// handleInventoryUpdate patches the in-memory counter first so the UI updates
// without a network round trip, then drops the stale cache entries.
func (s *InvalidationService) handleInventoryUpdate(ctx context.Context, payload *events.InventoryUpdate) error {
	if payload == nil {
		return errors.New("inventory update payload missing")
	}

	s.state.PatchHouse(payload.HouseID, func(h *models.House) {
		h.SoldTickets = payload.SoldTickets
	})

	s.cache.Invalidate(ctx, cache.FamilyHouse, payload.HouseID)
	s.cache.Invalidate(ctx, cache.FamilyHousesList, "")
	return nil
}

func (s *InvalidationService) handleTicketPurchased(ctx context.Context, payload *events.TicketPurchased) error {
	if payload == nil {
		return errors.New("ticket purchased payload missing")
	}

	s.cache.Invalidate(ctx, cache.FamilyHouse, payload.HouseID)
	s.cache.Invalidate(ctx, cache.FamilyHousesList, "")
	s.cache.Invalidate(ctx, cache.FamilyActiveEntries, "")
	s.cache.Invalidate(ctx, cache.FamilyUserStats, "")
	return nil
}

func (s *InvalidationService) handleEntryStatusChange(ctx context.Context, payload *events.EntryStatusChange) error {
	if payload == nil {
		return errors.New("entry status payload missing")
	}

	s.state.PatchEntry(payload.TicketID, func(e *models.ActiveEntry) {
		e.Status = payload.NewStatus
	})

	s.cache.Invalidate(ctx, cache.FamilyActiveEntries, "")
	s.cache.Invalidate(ctx, cache.FamilyUserStats, "")
	if payload.NewStatus == models.EntryStatusWinner || payload.NewStatus == models.EntryStatusRefunded {
		s.cache.Invalidate(ctx, cache.FamilyHousesList, "")
	}
	return nil
}

func (s *InvalidationService) handleDrawStarted(ctx context.Context, payload *events.DrawStarted) error {
	if payload == nil {
		return errors.New("draw started payload missing")
	}

	s.cache.Invalidate(ctx, cache.FamilyHousesList, "")
	s.cache.Invalidate(ctx, cache.FamilyHouse, payload.HouseID)
	return nil
}

// handleDrawCompleted is the one row of the dispatch table with an immediate
// reload: entries and stats are refetched regardless of remaining TTL.
func (s *InvalidationService) handleDrawCompleted(ctx context.Context, payload *events.DrawCompleted) error {
	if payload == nil {
		return errors.New("draw completed payload missing")
	}

	s.cache.Invalidate(ctx, cache.FamilyHousesList, "")
	s.cache.Invalidate(ctx, cache.FamilyHouse, payload.HouseID)
	s.cache.Invalidate(ctx, cache.FamilyActiveEntries, "")
	s.cache.Invalidate(ctx, cache.FamilyUserStats, "")

	if s.reloader != nil {
		if err := s.reloader.ReloadEntriesAndStats(ctx); err != nil {
			return fmt.Errorf("reload after draw: %w", err)
		}
	}
	return nil
}

func (s *InvalidationService) handleCountdownUpdate(ctx context.Context, payload *events.CountdownUpdate) error {
	if payload == nil {
		return errors.New("countdown payload missing")
	}
	if !payload.IsEnded {
		return nil
	}

	s.cache.Invalidate(ctx, cache.FamilyHouse, payload.HouseID)
	s.cache.Invalidate(ctx, cache.FamilyHousesList, "")
	return nil
}

package services

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rafflewave/lottosync/internal/cache"
	"github.com/rafflewave/lottosync/internal/gateway"
	"github.com/rafflewave/lottosync/internal/models"
	"github.com/rafflewave/lottosync/internal/state"
)

// ReadGateway is the slice of the upstream API the read paths depend on.
type ReadGateway interface {
	ListHouses(ctx context.Context, input gateway.ListHousesInput) (*gateway.HousePage, error)
	GetHouse(ctx context.Context, houseID string) (*models.House, error)
	ListFavorites(ctx context.Context) (*gateway.FavoritesResult, error)
	ListActiveEntries(ctx context.Context) ([]models.ActiveEntry, error)
	EntryHistory(ctx context.Context, page, pageSize int) ([]models.ActiveEntry, error)
	GetStatistics(ctx context.Context) (*models.UserStats, error)
	GetGamification(ctx context.Context) (*models.Gamification, error)
	HouseParticipants(ctx context.Context, houseID string) (*models.ParticipantStats, error)
	CheckEligibility(ctx context.Context, houseID string) (*models.Eligibility, error)
}

// LotteryService serves the cached read paths: state store first, then the
// cache tier, then the gateway. A network fetch populates both tiers and the
// state store. Concurrent requests for the same cache family collapse into a
// single outbound call.
type LotteryService struct {
	gateway ReadGateway
	cache   *cache.Tier
	state   *state.Store
	flight  singleflight.Group
	log     *zap.Logger
}

// NewLotteryService constructs a LotteryService.
func NewLotteryService(gw ReadGateway, tier *cache.Tier, st *state.Store, log *zap.Logger) (*LotteryService, error) {
	if gw == nil {
		return nil, errors.New("lottery service: gateway is required")
	}
	if tier == nil {
		return nil, errors.New("lottery service: cache tier is required")
	}
	if st == nil {
		return nil, errors.New("lottery service: state store is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LotteryService{gateway: gw, cache: tier, state: st, log: log}, nil
}

// State exposes the read-only observable state to consumers.
func (s *LotteryService) State() *state.Store {
	return s.state
}

// Houses returns the house list, serving from cache within TTL and refreshing
// from the gateway otherwise.
func (s *LotteryService) Houses(ctx context.Context) ([]models.House, error) {
	ctx = ensureContext(ctx)

	var cached []models.House
	if s.cache.GetJSON(ctx, cache.FamilyHousesList, "", &cached) {
		s.state.Houses.Set(cached)
		return cached, nil
	}

	result, err, _ := s.flight.Do(string(cache.FamilyHousesList), func() (any, error) {
		page, err := s.gateway.ListHouses(ctx, gateway.ListHousesInput{})
		if err != nil {
			return nil, err
		}
		s.cache.SetJSON(ctx, cache.FamilyHousesList, "", page.Houses)
		s.state.Houses.Set(page.Houses)
		return page.Houses, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.House), nil
}

// House returns one house by id, preferring the per-house cache family.
func (s *LotteryService) House(ctx context.Context, houseID string) (*models.House, error) {
	ctx = ensureContext(ctx)
	if houseID == "" {
		return nil, errors.New("lottery service: house id is required")
	}

	var cached models.House
	if s.cache.GetJSON(ctx, cache.FamilyHouse, houseID, &cached) {
		return &cached, nil
	}

	result, err, _ := s.flight.Do(string(cache.FamilyHouse)+":"+houseID, func() (any, error) {
		house, err := s.gateway.GetHouse(ctx, houseID)
		if err != nil {
			return nil, err
		}
		s.cache.SetJSON(ctx, cache.FamilyHouse, houseID, house)
		s.state.PatchHouse(houseID, func(h *models.House) { *h = *house })
		return house, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.House), nil
}

// RefreshFavorites performs the authoritative favorites refresh, replacing
// the favorite set and the favorites cache family wholesale.
func (s *LotteryService) RefreshFavorites(ctx context.Context) error {
	ctx = ensureContext(ctx)

	_, err, _ := s.flight.Do(string(cache.FamilyFavorites), func() (any, error) {
		result, err := s.gateway.ListFavorites(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.SetJSON(ctx, cache.FamilyFavorites, "", result)
		s.state.SetFavorites(result.FavoriteIDs)
		return nil, nil
	})
	return err
}

// Favorites returns the favorite house ids, serving from cache within TTL.
func (s *LotteryService) Favorites(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)

	var cached gateway.FavoritesResult
	if s.cache.GetJSON(ctx, cache.FamilyFavorites, "", &cached) {
		s.state.SetFavorites(cached.FavoriteIDs)
		return cached.FavoriteIDs, nil
	}

	if err := s.RefreshFavorites(ctx); err != nil {
		return nil, err
	}
	return s.state.FavoriteIDs(), nil
}

// ActiveEntries returns the user's entries in active lotteries.
func (s *LotteryService) ActiveEntries(ctx context.Context) ([]models.ActiveEntry, error) {
	ctx = ensureContext(ctx)

	var cached []models.ActiveEntry
	if s.cache.GetJSON(ctx, cache.FamilyActiveEntries, "", &cached) {
		s.state.ActiveEntries.Set(cached)
		return cached, nil
	}

	result, err, _ := s.flight.Do(string(cache.FamilyActiveEntries), func() (any, error) {
		entries, err := s.gateway.ListActiveEntries(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.SetJSON(ctx, cache.FamilyActiveEntries, "", entries)
		s.state.ActiveEntries.Set(entries)
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.ActiveEntry), nil
}

// Stats returns the aggregate statistics document.
func (s *LotteryService) Stats(ctx context.Context) (*models.UserStats, error) {
	ctx = ensureContext(ctx)

	var cached models.UserStats
	if s.cache.GetJSON(ctx, cache.FamilyUserStats, "", &cached) {
		s.state.UserStats.Set(&cached)
		return &cached, nil
	}

	result, err, _ := s.flight.Do(string(cache.FamilyUserStats), func() (any, error) {
		stats, err := s.gateway.GetStatistics(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.SetJSON(ctx, cache.FamilyUserStats, "", stats)
		s.state.UserStats.Set(stats)
		return stats, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.UserStats), nil
}

// Gamification returns streak and achievement progress.
func (s *LotteryService) Gamification(ctx context.Context) (*models.Gamification, error) {
	ctx = ensureContext(ctx)

	var cached models.Gamification
	if s.cache.GetJSON(ctx, cache.FamilyGamification, "", &cached) {
		s.state.Gamification.Set(&cached)
		return &cached, nil
	}

	result, err, _ := s.flight.Do(string(cache.FamilyGamification), func() (any, error) {
		progress, err := s.gateway.GetGamification(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.SetJSON(ctx, cache.FamilyGamification, "", progress)
		s.state.Gamification.Set(progress)
		return progress, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Gamification), nil
}

// EntryHistory passes through to the gateway; history pages are not cached.
func (s *LotteryService) EntryHistory(ctx context.Context, page, pageSize int) ([]models.ActiveEntry, error) {
	return s.gateway.EntryHistory(ensureContext(ctx), page, pageSize)
}

// Participants passes through aggregate participation stats for a house.
func (s *LotteryService) Participants(ctx context.Context, houseID string) (*models.ParticipantStats, error) {
	return s.gateway.HouseParticipants(ensureContext(ctx), houseID)
}

// Eligibility asks the gateway whether the user may enter. Never cached: the
// answer is correctness-critical.
func (s *LotteryService) Eligibility(ctx context.Context, houseID string) (*models.Eligibility, error) {
	return s.gateway.CheckEligibility(ensureContext(ctx), houseID)
}

// ReloadEntriesAndStats drops the entry/stats families and refetches both
// immediately. Invoked when a draw completes.
func (s *LotteryService) ReloadEntriesAndStats(ctx context.Context) error {
	ctx = ensureContext(ctx)

	s.cache.Invalidate(ctx, cache.FamilyActiveEntries, "")
	s.cache.Invalidate(ctx, cache.FamilyUserStats, "")

	if _, err := s.ActiveEntries(ctx); err != nil {
		return err
	}
	_, err := s.Stats(ctx)
	return err
}

// ResetOnLogout clears every collection and cache family. This is the sole
// teardown path.
func (s *LotteryService) ResetOnLogout(ctx context.Context) {
	ctx = ensureContext(ctx)
	s.state.Reset()
	s.cache.InvalidateAll(ctx)
	s.log.Info("lottery state reset")
}

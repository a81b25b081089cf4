package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rafflewave/lottosync/internal/cache"
	"github.com/rafflewave/lottosync/internal/gateway"
	"github.com/rafflewave/lottosync/internal/state"
	"github.com/rafflewave/lottosync/pkg/debounce"
	apperrors "github.com/rafflewave/lottosync/pkg/errors"
	"github.com/rafflewave/lottosync/pkg/metrics"
)

const (
	// MaxBulkBatch bounds bulk mutations; oversized batches are rejected
	// before any network call.
	MaxBulkBatch = 20

	idempotencyKeyMax    = 64
	favoritesRefreshKey  = "favorites_refresh"
	defaultRefreshWindow = 300 * time.Millisecond
)

// MutationKind distinguishes favorite adds from removes.
type MutationKind string

const (
	MutationAdd    MutationKind = "add"
	MutationRemove MutationKind = "remove"
)

// MutationResult reports the outcome of a toggle mutation. Coalesced means an
// identical mutation was already in flight and no network call was made.
type MutationResult struct {
	HouseID   string       `json:"house_id"`
	Kind      MutationKind `json:"kind"`
	Favorited bool         `json:"favorited"`
	Coalesced bool         `json:"coalesced,omitempty"`
}

// BulkMutationResult separates successful ids from per-id failures. Partial
// success is expected and representable.
type BulkMutationResult struct {
	Kind      MutationKind                  `json:"kind"`
	Succeeded []string                      `json:"succeeded"`
	Failed    []gateway.BulkFavoriteFailure `json:"failed,omitempty"`
}

// MutationGateway is the slice of the upstream API the coordinator writes
// through.
type MutationGateway interface {
	AddFavorite(ctx context.Context, houseID, idempotencyKey string) error
	RemoveFavorite(ctx context.Context, houseID, idempotencyKey string) error
	BulkAddFavorites(ctx context.Context, houseIDs []string, idempotencyKey string) (*gateway.BulkFavoriteResult, error)
	BulkRemoveFavorites(ctx context.Context, houseIDs []string, idempotencyKey string) (*gateway.BulkFavoriteResult, error)
}

// FavoritesRefresher performs the authoritative favorites refresh after
// mutations settle.
type FavoritesRefresher interface {
	RefreshFavorites(ctx context.Context) error
}

type pendingKey struct {
	houseID string
	kind    MutationKind
}

type pendingMutation struct {
	idempotencyKey string
	startedAt      time.Time
	seq            uint64
}

// FavoriteService coordinates optimistic favorite mutations: it mutates the
// state store before the network confirms, guards against duplicate in-flight
// requests per (house, kind), absorbs semantic duplicates, rolls back on hard
// failure, and coalesces post-mutation refreshes through a debounce window.
type FavoriteService struct {
	gateway   MutationGateway
	cache     *cache.Tier
	state     *state.Store
	refresher FavoritesRefresher
	scheduler *debounce.Scheduler
	log       *zap.Logger

	refreshWindow time.Duration

	mu      sync.Mutex
	pending map[pendingKey]*pendingMutation
	// houseSeq orders mutations per house so a stale settlement never
	// overwrites state written by a newer mutation.
	houseSeq map[string]uint64
	nextSeq  uint64
}

// FavoriteServiceOption customises the coordinator.
type FavoriteServiceOption func(*FavoriteService)

// WithRefreshWindow overrides the debounce window for the authoritative
// favorites refresh.
func WithRefreshWindow(window time.Duration) FavoriteServiceOption {
	return func(s *FavoriteService) {
		if window > 0 {
			s.refreshWindow = window
		}
	}
}

// NewFavoriteService constructs the favorite mutation coordinator.
func NewFavoriteService(gw MutationGateway, tier *cache.Tier, st *state.Store, refresher FavoritesRefresher, log *zap.Logger, opts ...FavoriteServiceOption) (*FavoriteService, error) {
	if gw == nil {
		return nil, errors.New("favorite service: gateway is required")
	}
	if tier == nil {
		return nil, errors.New("favorite service: cache tier is required")
	}
	if st == nil {
		return nil, errors.New("favorite service: state store is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	svc := &FavoriteService{
		gateway:       gw,
		cache:         tier,
		state:         st,
		refresher:     refresher,
		scheduler:     debounce.NewScheduler(),
		log:           log,
		refreshWindow: defaultRefreshWindow,
		pending:       make(map[pendingKey]*pendingMutation),
		houseSeq:      make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Close cancels any pending debounced refresh.
func (s *FavoriteService) Close() {
	s.scheduler.Close()
}

// ToggleFavorite adds or removes based on the current favorite set.
func (s *FavoriteService) ToggleFavorite(ctx context.Context, houseID string) (*MutationResult, error) {
	if s.state.IsFavorite(houseID) {
		return s.RemoveFavorite(ctx, houseID)
	}
	return s.AddFavorite(ctx, houseID)
}

// AddFavorite optimistically marks houseID as favorite and confirms with the
// backend.
func (s *FavoriteService) AddFavorite(ctx context.Context, houseID string) (*MutationResult, error) {
	return s.mutate(ctx, houseID, MutationAdd)
}

// RemoveFavorite optimistically unmarks houseID and confirms with the backend.
func (s *FavoriteService) RemoveFavorite(ctx context.Context, houseID string) (*MutationResult, error) {
	return s.mutate(ctx, houseID, MutationRemove)
}

func (s *FavoriteService) mutate(ctx context.Context, houseID string, kind MutationKind) (*MutationResult, error) {
	ctx = ensureContext(ctx)
	houseID = strings.TrimSpace(houseID)
	if houseID == "" {
		return nil, errors.New("favorite service: house id is required")
	}

	key := pendingKey{houseID: houseID, kind: kind}

	s.mu.Lock()
	if _, inFlight := s.pending[key]; inFlight {
		s.mu.Unlock()
		metrics.FavoriteMutations.WithLabelValues(string(kind), "coalesced").Inc()
		return &MutationResult{
			HouseID:   houseID,
			Kind:      kind,
			Favorited: kind == MutationAdd,
			Coalesced: true,
		}, nil
	}
	mutation := s.registerLocked(key)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
	}()

	// Optimistic update: the UI reflects intent without waiting for the
	// network.
	wasFavorite := s.state.IsFavorite(houseID)
	if kind == MutationAdd {
		s.state.AddFavorite(houseID)
	} else {
		s.state.RemoveFavorite(houseID)
	}

	var err error
	if kind == MutationAdd {
		err = s.gateway.AddFavorite(ctx, houseID, mutation.idempotencyKey)
	} else {
		err = s.gateway.RemoveFavorite(ctx, houseID, mutation.idempotencyKey)
	}

	switch {
	case err == nil:
		s.settleSuccess(ctx, houseID)
		metrics.FavoriteMutations.WithLabelValues(string(kind), "success").Inc()
		return &MutationResult{HouseID: houseID, Kind: kind, Favorited: kind == MutationAdd}, nil

	case apperrors.IsSemanticDuplicate(err):
		// The backend already holds the desired state; reconcile and report
		// success.
		s.reconcileDuplicate(ctx, houseID, err, mutation.seq)
		metrics.FavoriteMutations.WithLabelValues(string(kind), "duplicate").Inc()
		return &MutationResult{HouseID: houseID, Kind: kind, Favorited: s.state.IsFavorite(houseID)}, nil

	default:
		if rl, limited := apperrors.IsRateLimited(err); limited {
			s.rollback(houseID, wasFavorite, mutation.seq)
			metrics.FavoriteMutations.WithLabelValues(string(kind), "rate_limited").Inc()
			s.log.Warn("favorite mutation rate limited",
				zap.String("house_id", houseID),
				zap.Duration("retry_after", rl.RetryAfter()))
			return nil, err
		}

		s.rollback(houseID, wasFavorite, mutation.seq)
		metrics.FavoriteMutations.WithLabelValues(string(kind), "rolled_back").Inc()
		return nil, err
	}
}

// BulkAdd adds up to MaxBulkBatch favorites with one network call.
func (s *FavoriteService) BulkAdd(ctx context.Context, houseIDs []string) (*BulkMutationResult, error) {
	return s.bulkMutate(ctx, houseIDs, MutationAdd)
}

// BulkRemove removes up to MaxBulkBatch favorites with one network call.
func (s *FavoriteService) BulkRemove(ctx context.Context, houseIDs []string) (*BulkMutationResult, error) {
	return s.bulkMutate(ctx, houseIDs, MutationRemove)
}

func (s *FavoriteService) bulkMutate(ctx context.Context, houseIDs []string, kind MutationKind) (*BulkMutationResult, error) {
	ctx = ensureContext(ctx)

	ids := dedupeIDs(houseIDs)
	if len(ids) == 0 {
		return nil, errors.New("favorite service: at least one house id is required")
	}
	if len(ids) > MaxBulkBatch {
		return nil, apperrors.ErrBatchTooLarge.WithMessage(
			fmt.Sprintf("bulk favorite batch of %d exceeds the maximum of %d", len(ids), MaxBulkBatch))
	}

	// Optimistic apply per id, remembering prior membership for rollback.
	prior := make(map[string]bool, len(ids))
	seqs := make(map[string]uint64, len(ids))
	s.mu.Lock()
	for _, id := range ids {
		s.nextSeq++
		s.houseSeq[id] = s.nextSeq
		seqs[id] = s.nextSeq
	}
	s.mu.Unlock()
	for _, id := range ids {
		prior[id] = s.state.IsFavorite(id)
		if kind == MutationAdd {
			s.state.AddFavorite(id)
		} else {
			s.state.RemoveFavorite(id)
		}
	}

	var (
		result *gateway.BulkFavoriteResult
		err    error
	)
	idempotencyKey := newIdempotencyKey()
	if kind == MutationAdd {
		result, err = s.gateway.BulkAddFavorites(ctx, ids, idempotencyKey)
	} else {
		result, err = s.gateway.BulkRemoveFavorites(ctx, ids, idempotencyKey)
	}
	if err != nil {
		for _, id := range ids {
			s.rollback(id, prior[id], seqs[id])
		}
		metrics.FavoriteMutations.WithLabelValues(string(kind), "rolled_back").Inc()
		return nil, err
	}

	// Roll back only the ids the backend rejected.
	for _, failure := range result.Failed {
		s.rollback(failure.HouseID, prior[failure.HouseID], seqs[failure.HouseID])
	}

	for _, id := range result.Succeeded {
		s.cache.Invalidate(ctx, cache.FamilyHouse, id)
	}
	s.cache.Invalidate(ctx, cache.FamilyFavorites, "")
	s.scheduleRefresh()
	metrics.FavoriteMutations.WithLabelValues(string(kind), "success").Inc()

	return &BulkMutationResult{
		Kind:      kind,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
	}, nil
}

// settleSuccess invalidates dependent cache families and schedules the
// coalesced authoritative refresh.
func (s *FavoriteService) settleSuccess(ctx context.Context, houseID string) {
	s.cache.Invalidate(ctx, cache.FamilyFavorites, "")
	s.cache.Invalidate(ctx, cache.FamilyHouse, houseID)
	s.scheduleRefresh()
}

// reconcileDuplicate corrects optimistic state to the backend's semantic
// truth: "already a favorite" means present, "not a favorite" means absent.
func (s *FavoriteService) reconcileDuplicate(ctx context.Context, houseID string, err error, seq uint64) {
	if s.currentSeq(houseID) == seq {
		appErr := apperrors.FromError(err)
		switch appErr.Code {
		case apperrors.ErrAlreadyFavorite.Code:
			s.state.AddFavorite(houseID)
		case apperrors.ErrNotFavorite.Code:
			s.state.RemoveFavorite(houseID)
		}
	}
	s.cache.Invalidate(ctx, cache.FamilyFavorites, "")
	s.cache.Invalidate(ctx, cache.FamilyHouse, houseID)
	s.scheduleRefresh()
}

// rollback restores the pre-mutation membership, unless a newer mutation for
// the same house has started since; stale settlements never overwrite newer
// optimistic state.
func (s *FavoriteService) rollback(houseID string, wasFavorite bool, seq uint64) {
	if s.currentSeq(houseID) != seq {
		return
	}
	if wasFavorite {
		s.state.AddFavorite(houseID)
	} else {
		s.state.RemoveFavorite(houseID)
	}
}

func (s *FavoriteService) currentSeq(houseID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.houseSeq[houseID]
}

func (s *FavoriteService) registerLocked(key pendingKey) *pendingMutation {
	s.nextSeq++
	s.houseSeq[key.houseID] = s.nextSeq
	mutation := &pendingMutation{
		idempotencyKey: newIdempotencyKey(),
		startedAt:      time.Now(),
		seq:            s.nextSeq,
	}
	s.pending[key] = mutation
	return mutation
}

// scheduleRefresh coalesces bursts of mutations into one authoritative
// favorites refresh.
func (s *FavoriteService) scheduleRefresh() {
	if s.refresher == nil {
		return
	}
	s.scheduler.Trigger(favoritesRefreshKey, s.refreshWindow, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.refresher.RefreshFavorites(ctx); err != nil {
			s.log.Warn("favorites refresh failed", zap.Error(err))
		}
	})
}

// newIdempotencyKey builds a random, time-seeded token capped to the
// backend's accepted maximum length.
func newIdempotencyKey() string {
	key := fmt.Sprintf("fav-%d-%s", time.Now().UnixMilli(), uuid.NewString())
	if len(key) > idempotencyKeyMax {
		key = key[:idempotencyKeyMax]
	}
	return key
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rafflewave/lottosync/internal/cache"
	"github.com/rafflewave/lottosync/internal/gateway"
	"github.com/rafflewave/lottosync/internal/models"
)

// TicketGateway is the slice of the upstream API the purchase paths use.
type TicketGateway interface {
	PurchaseTickets(ctx context.Context, houseID string, quantity int, idempotencyKey string) (*models.PurchaseReceipt, error)
	QuickEntry(ctx context.Context, idempotencyKey string) (*gateway.QuickEntryResult, error)
}

// TicketService purchases lottery tickets. Each purchase carries an
// idempotency key and invalidates the cache families the purchase makes
// stale; the next read refetches them.
type TicketService struct {
	gateway TicketGateway
	cache   *cache.Tier
	log     *zap.Logger
}

// NewTicketService constructs a TicketService.
func NewTicketService(gw TicketGateway, tier *cache.Tier, log *zap.Logger) (*TicketService, error) {
	if gw == nil {
		return nil, errors.New("ticket service: gateway is required")
	}
	if tier == nil {
		return nil, errors.New("ticket service: cache tier is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TicketService{gateway: gw, cache: tier, log: log}, nil
}

// Purchase buys tickets for a house.
func (s *TicketService) Purchase(ctx context.Context, houseID string, quantity int) (*models.PurchaseReceipt, error) {
	ctx = ensureContext(ctx)
	if houseID == "" {
		return nil, errors.New("ticket service: house id is required")
	}
	if quantity <= 0 {
		return nil, errors.New("ticket service: quantity must be positive")
	}

	receipt, err := s.gateway.PurchaseTickets(ctx, houseID, quantity, newPurchaseKey())
	if err != nil {
		return nil, err
	}

	s.invalidateAfterPurchase(ctx, houseID)
	s.log.Info("tickets purchased",
		zap.String("house_id", houseID),
		zap.Int("quantity", quantity))
	return receipt, nil
}

// QuickEntry enters every eligible favorite house with one ticket each.
func (s *TicketService) QuickEntry(ctx context.Context) (*gateway.QuickEntryResult, error) {
	ctx = ensureContext(ctx)

	result, err := s.gateway.QuickEntry(ctx, newPurchaseKey())
	if err != nil {
		return nil, err
	}

	for _, receipt := range result.Entered {
		s.invalidateAfterPurchase(ctx, receipt.HouseID)
	}
	return result, nil
}

func (s *TicketService) invalidateAfterPurchase(ctx context.Context, houseID string) {
	s.cache.Invalidate(ctx, cache.FamilyHouse, houseID)
	s.cache.Invalidate(ctx, cache.FamilyHousesList, "")
	s.cache.Invalidate(ctx, cache.FamilyActiveEntries, "")
	s.cache.Invalidate(ctx, cache.FamilyUserStats, "")
}

func newPurchaseKey() string {
	key := fmt.Sprintf("tkt-%d-%s", time.Now().UnixMilli(), uuid.NewString())
	if len(key) > idempotencyKeyMax {
		key = key[:idempotencyKeyMax]
	}
	return key
}

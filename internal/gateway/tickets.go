package gateway

import (
	"context"
	"net/http"

	"github.com/rafflewave/lottosync/internal/models"
)

type purchaseRequest struct {
	HouseID  string `json:"house_id"`
	Quantity int    `json:"quantity"`
}

// PurchaseTickets buys tickets for a house. The idempotency key guards
// against double charges on retried delivery.
func (c *Client) PurchaseTickets(ctx context.Context, houseID string, quantity int, idempotencyKey string) (*models.PurchaseReceipt, error) {
	var receipt models.PurchaseReceipt
	err := c.do(ctx, "purchase_tickets", http.MethodPost, "/api/tickets",
		purchaseRequest{HouseID: houseID, Quantity: quantity}, &receipt, withIdempotencyKey(idempotencyKey))
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// QuickEntryResult reports which favorite houses were entered.
type QuickEntryResult struct {
	Entered []models.PurchaseReceipt `json:"entered"`
	Skipped []string                 `json:"skipped,omitempty"`
}

// QuickEntry enters every eligible favorite with a single ticket each.
func (c *Client) QuickEntry(ctx context.Context, idempotencyKey string) (*QuickEntryResult, error) {
	var result QuickEntryResult
	err := c.do(ctx, "quick_entry", http.MethodPost, "/api/tickets/quick-entry",
		nil, &result, withIdempotencyKey(idempotencyKey))
	if err != nil {
		return nil, err
	}
	return &result, nil
}

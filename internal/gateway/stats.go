package gateway

import (
	"context"
	"net/http"

	"github.com/rafflewave/lottosync/internal/models"
)

// GetStatistics fetches the user's aggregate statistics document. The
// document is replaced wholesale by callers, never patched.
func (c *Client) GetStatistics(ctx context.Context) (*models.UserStats, error) {
	var stats models.UserStats
	if err := c.do(ctx, "get_statistics", http.MethodGet, "/api/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetGamification fetches streak and achievement progress.
func (c *Client) GetGamification(ctx context.Context) (*models.Gamification, error) {
	var progress models.Gamification
	if err := c.do(ctx, "get_gamification", http.MethodGet, "/api/stats/gamification", nil, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

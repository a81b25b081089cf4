package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rafflewave/lottosync/internal/models"
)

// FavoritesResult carries the favorite houses plus the denormalized id list.
type FavoritesResult struct {
	Houses      []models.House `json:"houses"`
	FavoriteIDs []string       `json:"favorite_ids"`
}

// BulkFavoriteFailure records why one id of a bulk mutation failed.
type BulkFavoriteFailure struct {
	HouseID string `json:"house_id"`
	Reason  string `json:"reason"`
}

// BulkFavoriteResult separates per-id successes from failures; partial
// success is the expected shape, not an error.
type BulkFavoriteResult struct {
	Succeeded []string              `json:"succeeded"`
	Failed    []BulkFavoriteFailure `json:"failed"`
}

// ListFavorites fetches the authoritative favorite list.
func (c *Client) ListFavorites(ctx context.Context) (*FavoritesResult, error) {
	var result FavoritesResult
	if err := c.do(ctx, "list_favorites", http.MethodGet, "/api/favorites", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AddFavorite marks a house as favorite. idempotencyKey makes retried
// delivery of the same logical add a server-side no-op.
func (c *Client) AddFavorite(ctx context.Context, houseID, idempotencyKey string) error {
	path := "/api/favorites/" + url.PathEscape(houseID)
	return c.do(ctx, "add_favorite", http.MethodPost, path, nil, nil, withIdempotencyKey(idempotencyKey))
}

// RemoveFavorite unmarks a favorite house.
func (c *Client) RemoveFavorite(ctx context.Context, houseID, idempotencyKey string) error {
	path := "/api/favorites/" + url.PathEscape(houseID)
	return c.do(ctx, "remove_favorite", http.MethodDelete, path, nil, nil, withIdempotencyKey(idempotencyKey))
}

type bulkFavoriteRequest struct {
	HouseIDs []string `json:"house_ids"`
}

// BulkAddFavorites adds several favorites in one call.
func (c *Client) BulkAddFavorites(ctx context.Context, houseIDs []string, idempotencyKey string) (*BulkFavoriteResult, error) {
	var result BulkFavoriteResult
	err := c.do(ctx, "bulk_add_favorites", http.MethodPost, "/api/favorites/bulk",
		bulkFavoriteRequest{HouseIDs: houseIDs}, &result, withIdempotencyKey(idempotencyKey))
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// BulkRemoveFavorites removes several favorites in one call.
func (c *Client) BulkRemoveFavorites(ctx context.Context, houseIDs []string, idempotencyKey string) (*BulkFavoriteResult, error) {
	var result BulkFavoriteResult
	err := c.do(ctx, "bulk_remove_favorites", http.MethodDelete, "/api/favorites/bulk",
		bulkFavoriteRequest{HouseIDs: houseIDs}, &result, withIdempotencyKey(idempotencyKey))
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type favoriteCountResponse struct {
	Count int `json:"count"`
}

// FavoriteCount fetches the number of favorites without the full payload.
func (c *Client) FavoriteCount(ctx context.Context) (int, error) {
	var resp favoriteCountResponse
	if err := c.do(ctx, "favorite_count", http.MethodGet, "/api/favorites/count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// FavoriteAnalytics fetches aggregate favorite activity.
func (c *Client) FavoriteAnalytics(ctx context.Context) (*models.FavoriteAnalytics, error) {
	var analytics models.FavoriteAnalytics
	if err := c.do(ctx, "favorite_analytics", http.MethodGet, "/api/favorites/analytics", nil, &analytics); err != nil {
		return nil, err
	}
	return &analytics, nil
}

type exportResponse struct {
	Format string          `json:"format"`
	Data   json.RawMessage `json:"data"`
}

// ExportFavorites downloads the favorites export document.
func (c *Client) ExportFavorites(ctx context.Context) ([]byte, error) {
	var resp exportResponse
	if err := c.do(ctx, "export_favorites", http.MethodGet, "/api/favorites/export", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

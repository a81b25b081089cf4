package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rafflewave/lottosync/internal/models"
)

type entriesResponse struct {
	Entries []models.ActiveEntry `json:"entries"`
}

// ListActiveEntries fetches the user's entries in active lotteries.
func (c *Client) ListActiveEntries(ctx context.Context) ([]models.ActiveEntry, error) {
	var resp entriesResponse
	if err := c.do(ctx, "list_active_entries", http.MethodGet, "/api/entries/active", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// GetEntry fetches a single entry by ticket id.
func (c *Client) GetEntry(ctx context.Context, ticketID string) (*models.ActiveEntry, error) {
	var entry models.ActiveEntry
	path := "/api/entries/" + url.PathEscape(ticketID)
	if err := c.do(ctx, "get_entry", http.MethodGet, path, nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// EntryHistory fetches a page of settled entries.
func (c *Client) EntryHistory(ctx context.Context, page, pageSize int) ([]models.ActiveEntry, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		query.Set("page_size", strconv.Itoa(pageSize))
	}

	var resp entriesResponse
	if err := c.do(ctx, "entry_history", http.MethodGet, "/api/entries/history", nil, &resp, withQuery(query)); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

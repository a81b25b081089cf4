package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rafflewave/lottosync/internal/models"
)

// ListHousesInput filters and pages the house listing.
type ListHousesInput struct {
	Page     int
	PageSize int
	Status   string
	Location string
}

// HousePage is one page of the house listing.
type HousePage struct {
	Houses []models.House `json:"houses"`
	Total  int            `json:"total"`
	Page   int            `json:"page"`
}

// ListHouses fetches a page of raffle houses.
func (c *Client) ListHouses(ctx context.Context, input ListHousesInput) (*HousePage, error) {
	query := url.Values{}
	if input.Page > 0 {
		query.Set("page", strconv.Itoa(input.Page))
	}
	if input.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(input.PageSize))
	}
	if status := strings.TrimSpace(input.Status); status != "" {
		query.Set("status", status)
	}
	if location := strings.TrimSpace(input.Location); location != "" {
		query.Set("location", location)
	}

	var page HousePage
	if err := c.do(ctx, "list_houses", http.MethodGet, "/api/houses", nil, &page, withQuery(query)); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetHouse fetches a single house by id.
func (c *Client) GetHouse(ctx context.Context, houseID string) (*models.House, error) {
	var house models.House
	if err := c.do(ctx, "get_house", http.MethodGet, "/api/houses/"+url.PathEscape(houseID), nil, &house); err != nil {
		return nil, err
	}
	return &house, nil
}

// HouseParticipants fetches aggregate participation stats for a house.
func (c *Client) HouseParticipants(ctx context.Context, houseID string) (*models.ParticipantStats, error) {
	var stats models.ParticipantStats
	path := "/api/houses/" + url.PathEscape(houseID) + "/participants"
	if err := c.do(ctx, "house_participants", http.MethodGet, path, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// CheckEligibility asks whether the user may enter the lottery for a house.
// This read is correctness-critical, so it rides the client's bounded retry
// for transient failures; 4xx answers are authoritative and returned as-is.
func (c *Client) CheckEligibility(ctx context.Context, houseID string) (*models.Eligibility, error) {
	var eligibility models.Eligibility
	path := "/api/houses/" + url.PathEscape(houseID) + "/eligibility"
	if err := c.do(ctx, "check_eligibility", http.MethodGet, path, nil, &eligibility); err != nil {
		return nil, err
	}
	return &eligibility, nil
}

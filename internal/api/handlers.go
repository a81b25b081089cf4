package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rafflewave/lottosync/internal/services"
	apperrors "github.com/rafflewave/lottosync/pkg/errors"
	"github.com/rafflewave/lottosync/pkg/response"
)

// Handler adapts the services to the local HTTP facade.
type Handler struct {
	lottery   *services.LotteryService
	favorites *services.FavoriteService
	tickets   *services.TicketService
}

// NewHandler constructs a Handler.
func NewHandler(lottery *services.LotteryService, favorites *services.FavoriteService, tickets *services.TicketService) *Handler {
	return &Handler{lottery: lottery, favorites: favorites, tickets: tickets}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

// ListHouses serves the cached house list.
func (h *Handler) ListHouses(c *gin.Context) {
	houses, err := h.lottery.Houses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, houses)
}

// GetHouse serves one house.
func (h *Handler) GetHouse(c *gin.Context) {
	house, err := h.lottery.House(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, house)
}

// Participants serves aggregate participation stats for a house.
func (h *Handler) Participants(c *gin.Context) {
	stats, err := h.lottery.Participants(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// Eligibility answers whether the user may enter a house's lottery.
func (h *Handler) Eligibility(c *gin.Context) {
	eligibility, err := h.lottery.Eligibility(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, eligibility)
}

// ListFavorites serves the favorite house ids.
func (h *Handler) ListFavorites(c *gin.Context) {
	ids, err := h.lottery.Favorites(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"favorite_ids": ids})
}

// ToggleFavorite flips the favorite state of a house.
func (h *Handler) ToggleFavorite(c *gin.Context) {
	result, err := h.favorites.ToggleFavorite(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

type bulkRequest struct {
	HouseIDs []string `json:"house_ids" binding:"required"`
}

// BulkAddFavorites adds several favorites at once.
func (h *Handler) BulkAddFavorites(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.ErrBadRequest.WithInternal(err))
		return
	}

	result, err := h.favorites.BulkAdd(c.Request.Context(), req.HouseIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// BulkRemoveFavorites removes several favorites at once.
func (h *Handler) BulkRemoveFavorites(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.ErrBadRequest.WithInternal(err))
		return
	}

	result, err := h.favorites.BulkRemove(c.Request.Context(), req.HouseIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// ActiveEntries serves the user's active lottery entries.
func (h *Handler) ActiveEntries(c *gin.Context) {
	entries, err := h.lottery.ActiveEntries(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, entries)
}

// EntryHistory serves a page of settled entries.
func (h *Handler) EntryHistory(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "25"))

	entries, err := h.lottery.EntryHistory(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, entries)
}

// Stats serves the aggregate statistics document.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.lottery.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// Gamification serves streak and achievement progress.
func (h *Handler) Gamification(c *gin.Context) {
	progress, err := h.lottery.Gamification(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, progress)
}

type purchaseRequest struct {
	HouseID  string `json:"house_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

// Purchase buys tickets for a house.
func (h *Handler) Purchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.ErrBadRequest.WithInternal(err))
		return
	}

	receipt, err := h.tickets.Purchase(c.Request.Context(), req.HouseID, req.Quantity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, receipt)
}

// QuickEntry enters every eligible favorite house.
func (h *Handler) QuickEntry(c *gin.Context) {
	result, err := h.tickets.QuickEntry(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Logout resets the local state and caches. This is the sole teardown path.
func (h *Handler) Logout(c *gin.Context) {
	h.lottery.ResetOnLogout(c.Request.Context())
	response.Success(c, http.StatusOK, gin.H{"status": "reset"})
}

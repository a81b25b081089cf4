package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rafflewave/lottosync/internal/app"
	"github.com/rafflewave/lottosync/internal/services"
)

// NewRouter builds the Gin engine for the local read-only facade. The facade
// serves the state store and delegates mutations to the coordinator; it never
// writes domain state itself.
func NewRouter(cfg *app.Config, lottery *services.LotteryService, favorites *services.FavoriteService, tickets *services.TicketService) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if lottery == nil {
		return nil, fmt.Errorf("lottery service must be provided")
	}
	if favorites == nil {
		return nil, fmt.Errorf("favorite service must be provided")
	}
	if tickets == nil {
		return nil, fmt.Errorf("ticket service must be provided")
	}

	r := gin.New()
	r.Use(gin.Recovery())

	handler := NewHandler(lottery, favorites, tickets)

	if cfg.Monitoring.Health.Enabled {
		r.GET("/healthz", handler.Health)
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	{
		api.GET("/houses", handler.ListHouses)
		api.GET("/houses/:id", handler.GetHouse)
		api.GET("/houses/:id/participants", handler.Participants)
		api.GET("/houses/:id/eligibility", handler.Eligibility)

		api.GET("/favorites", handler.ListFavorites)
		api.POST("/favorites/:id/toggle", handler.ToggleFavorite)
		api.POST("/favorites/bulk", handler.BulkAddFavorites)
		api.DELETE("/favorites/bulk", handler.BulkRemoveFavorites)

		api.GET("/entries", handler.ActiveEntries)
		api.GET("/entries/history", handler.EntryHistory)

		api.GET("/stats", handler.Stats)
		api.GET("/gamification", handler.Gamification)

		api.POST("/tickets", handler.Purchase)
		api.POST("/tickets/quick-entry", handler.QuickEntry)

		api.POST("/session/logout", handler.Logout)
	}

	return r, nil
}

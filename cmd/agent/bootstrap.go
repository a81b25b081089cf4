package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rafflewave/lottosync/internal/api"
	"github.com/rafflewave/lottosync/internal/app"
	"github.com/rafflewave/lottosync/internal/app/maintenance"
	"github.com/rafflewave/lottosync/internal/cache"
	"github.com/rafflewave/lottosync/internal/database"
	"github.com/rafflewave/lottosync/internal/gateway"
	"github.com/rafflewave/lottosync/internal/realtime"
	"github.com/rafflewave/lottosync/internal/services"
	"github.com/rafflewave/lottosync/internal/state"
	"github.com/rafflewave/lottosync/pkg/logger"
)

// runtimeStack bundles the long-lived components of the sync agent.
type runtimeStack struct {
	DB           *gorm.DB
	Tier         *cache.Tier
	State        *state.Store
	Gateway      *gateway.Client
	LotterySvc   *services.LotteryService
	FavoriteSvc  *services.FavoriteService
	TicketSvc    *services.TicketService
	Invalidation *services.InvalidationService
	Stream       *realtime.Stream
	Cleaner      *maintenance.Cleaner
	Router       *gin.Engine
}

// staticTokenSource satisfies gateway.TokenSource with a fixed API token.
// Session and refresh mechanics live outside this process.
type staticTokenSource struct {
	token string
}

func (s staticTokenSource) Token(context.Context) (string, error) {
	return s.token, nil
}

// bootstrapRuntime initialises the cache tiers, gateway, services, stream and
// the local HTTP facade.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	store := cache.NewDatabaseStore(stack.DB)
	stack.Tier = cache.NewTier(store, cfg.Cache.TTLOverrides(), logger.WithModule("cache"))
	stack.State = state.NewStore()

	tokens := staticTokenSource{token: strings.TrimSpace(cfg.Remote.APIToken)}
	stack.Gateway, err = gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Remote.BaseURL,
		Timeout:   cfg.Remote.Timeout,
		RetryMax:  cfg.Remote.RetryMax,
		UserAgent: cfg.Remote.UserAgent,
	}, tokens, logger.WithModule("gateway"))
	if err != nil {
		return nil, fmt.Errorf("initialise gateway: %w", err)
	}

	stack.LotterySvc, err = services.NewLotteryService(stack.Gateway, stack.Tier, stack.State, logger.WithModule("lottery"))
	if err != nil {
		return nil, fmt.Errorf("initialise lottery service: %w", err)
	}

	var favoriteOpts []services.FavoriteServiceOption
	if cfg.Favorites.RefreshWindow > 0 {
		favoriteOpts = append(favoriteOpts, services.WithRefreshWindow(cfg.Favorites.RefreshWindow))
	}
	stack.FavoriteSvc, err = services.NewFavoriteService(stack.Gateway, stack.Tier, stack.State, stack.LotterySvc, logger.WithModule("favorites"), favoriteOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise favorite service: %w", err)
	}

	stack.TicketSvc, err = services.NewTicketService(stack.Gateway, stack.Tier, logger.WithModule("tickets"))
	if err != nil {
		return nil, fmt.Errorf("initialise ticket service: %w", err)
	}

	stack.Invalidation, err = services.NewInvalidationService(stack.Tier, stack.State, stack.LotterySvc, logger.WithModule("invalidation"))
	if err != nil {
		return nil, fmt.Errorf("initialise invalidation service: %w", err)
	}

	if streamURL := strings.TrimSpace(cfg.Remote.StreamURL); streamURL != "" {
		stack.Stream, err = realtime.NewStream(realtime.Config{
			URL:     streamURL,
			Streams: cfg.Remote.Streams,
			Header: func(ctx context.Context) (map[string]string, error) {
				token, err := tokens.Token(ctx)
				if err != nil || token == "" {
					return nil, err
				}
				return map[string]string{"Authorization": "Bearer " + token}, nil
			},
		}, stack.Invalidation, logger.WithModule("realtime"))
		if err != nil {
			return nil, fmt.Errorf("initialise event stream: %w", err)
		}
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner, err = maintenance.NewCleaner(store, logger.WithModule("maintenance"),
			maintenance.WithSchedule(cfg.Maintenance.Schedule))
		if err != nil {
			return nil, fmt.Errorf("initialise maintenance: %w", err)
		}
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(cfg, stack.LotterySvc, stack.FavoriteSvc, stack.TicketSvc)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.FavoriteSvc != nil {
		s.FavoriteSvc.Close()
	}

	if s.Cleaner != nil {
		s.Cleaner.Stop()
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(database.Config{Path: strings.TrimSpace(cfg.Cache.Path)})
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate cache database: %w", err)
	}

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close cache database", zap.Error(err))
	}
}

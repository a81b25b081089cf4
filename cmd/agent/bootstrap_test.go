package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rafflewave/lottosync/internal/app"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()

	cfg := &app.Config{}
	cfg.Server.Port = 0
	cfg.Remote.BaseURL = "https://api.rafflewave.example"
	cfg.Remote.Timeout = 5 * time.Second
	cfg.Cache.Path = t.TempDir() + "/cache.db"
	cfg.Maintenance.Enabled = true
	cfg.Maintenance.Schedule = "@hourly"
	cfg.Monitoring.Health.Enabled = true
	return cfg
}

func TestBootstrapRuntime(t *testing.T) {
	cfg := testConfig(t)

	stack, err := bootstrapRuntime(cfg, zap.NewNop())
	require.NoError(t, err)
	defer stack.Shutdown(context.Background(), zap.NewNop())

	require.NotNil(t, stack.DB)
	require.NotNil(t, stack.Tier)
	require.NotNil(t, stack.State)
	require.NotNil(t, stack.Gateway)
	require.NotNil(t, stack.LotterySvc)
	require.NotNil(t, stack.FavoriteSvc)
	require.NotNil(t, stack.TicketSvc)
	require.NotNil(t, stack.Invalidation)
	require.NotNil(t, stack.Cleaner)
	require.NotNil(t, stack.Router)

	// No stream URL configured means no stream component.
	require.Nil(t, stack.Stream)
}

func TestBootstrapRuntimeWithStream(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.StreamURL = "wss://api.rafflewave.example/ws"
	cfg.Remote.Streams = []string{"lottery"}
	cfg.Maintenance.Enabled = false

	stack, err := bootstrapRuntime(cfg, zap.NewNop())
	require.NoError(t, err)
	defer stack.Shutdown(context.Background(), zap.NewNop())

	require.NotNil(t, stack.Stream)
	require.Nil(t, stack.Cleaner)
}

func TestStaticTokenSource(t *testing.T) {
	token, err := staticTokenSource{token: "abc"}.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc", token)
}

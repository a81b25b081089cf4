package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the lottosync agent.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Remote      RemoteConfig      `mapstructure:"remote"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Favorites   FavoritesConfig   `mapstructure:"favorites"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ServerConfig configures the local read-only HTTP facade.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"gt=0,lte=65535"`
	LogLevel string `mapstructure:"log_level"`
}

// RemoteConfig describes the upstream lottery API and its push stream.
type RemoteConfig struct {
	BaseURL   string        `mapstructure:"base_url" validate:"required,url"`
	StreamURL string        `mapstructure:"stream_url"`
	Streams   []string      `mapstructure:"streams"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RetryMax  int           `mapstructure:"retry_max" validate:"gte=0,lte=10"`
	UserAgent string        `mapstructure:"user_agent"`
	APIToken  string        `mapstructure:"api_token"`
}

// CacheConfig describes the durable tier and per-family TTL overrides.
type CacheConfig struct {
	Path     string                `mapstructure:"path"`
	Families map[string]FamilyTTLs `mapstructure:"families"`
}

// FamilyTTLs overrides the TTL pair for one cache family.
type FamilyTTLs struct {
	Memory  time.Duration `mapstructure:"memory"`
	Persist time.Duration `mapstructure:"persist"`
}

// FavoritesConfig tunes the mutation coordinator.
type FavoritesConfig struct {
	RefreshWindow time.Duration `mapstructure:"refresh_window"`
}

// MaintenanceConfig controls background pruning of expired persisted rows.
type MaintenanceConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles the metrics endpoint.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles the health endpoint.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig initialises configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("LOTTOSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			first := invalid[0]
			return fmt.Errorf("config: %s fails %q", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8600)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("remote.base_url", "https://api.rafflewave.example")
	v.SetDefault("remote.stream_url", "")
	v.SetDefault("remote.streams", []string{"lottery"})
	v.SetDefault("remote.timeout", "30s")
	v.SetDefault("remote.retry_max", 3)
	v.SetDefault("remote.user_agent", "lottosync-agent")

	v.SetDefault("cache.path", "./data/lottosync.sqlite")

	v.SetDefault("favorites.refresh_window", "300ms")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.schedule", "@hourly")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

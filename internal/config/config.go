package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,       default=8080"`
	Env       string `env:"ENV,        default=development"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`

	// RiderID starts the session with a known rider; empty keeps polling suspended.
	RiderID string `env:"RIDER_ID"`

	OrderAPI OrderAPIConfig
	Tracking TrackingConfig
	Routing  RoutingConfig
	Redis    RedisConfig

	// DatabaseURL enables the Postgres fix history when set.
	DatabaseURL string `env:"DATABASE_URL"`
}

type OrderAPIConfig struct {
	BaseURL string        `env:"ORDER_API_URL, required"`
	Token   string        `env:"ORDER_API_TOKEN"`
	Timeout time.Duration `env:"ORDER_API_TIMEOUT, default=10s"`
}

type TrackingConfig struct {
	PollInterval        time.Duration `env:"POLL_INTERVAL,         default=10s"`
	PositionTimeout     time.Duration `env:"POSITION_TIMEOUT,      default=10s"`
	MaxFixAge           time.Duration `env:"MAX_FIX_AGE,           default=30s"`
	RerouteMinMeters    float64       `env:"REROUTE_MIN_METERS,    default=15"`
	ArrivalRadiusMeters float64       `env:"ARRIVAL_RADIUS_METERS, default=30"`
}

type RoutingConfig struct {
	ORSKey     string        `env:"ORS_API_KEY"`
	ORSBaseURL string        `env:"ORS_BASE_URL, default=https://api.openrouteservice.org"`
	Profile    string        `env:"ORS_PROFILE,  default=driving-car"`
	CacheTTL   time.Duration `env:"ROUTE_CACHE_TTL, default=10m"`
}

type RedisConfig struct {
	// Addr enables the Redis route cache when set.
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB, default=0"`
}

// Load reads configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through the given lookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: load: %w", err)
	}

	if cfg.Tracking.PollInterval <= 0 {
		return nil, fmt.Errorf("config: POLL_INTERVAL must be positive, got %s", cfg.Tracking.PollInterval)
	}
	if cfg.Tracking.PositionTimeout <= 0 {
		return nil, fmt.Errorf("config: POSITION_TIMEOUT must be positive, got %s", cfg.Tracking.PositionTimeout)
	}

	return &cfg, nil
}

// Get returns the environment value for key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

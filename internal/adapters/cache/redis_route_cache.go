package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"rider-tracking-service/internal/domain"
	"rider-tracking-service/internal/platform/metrics"
	"rider-tracking-service/internal/platform/obs"
)

const (
	defaultRouteTTL = 10 * time.Minute
	connectTimeout  = 5 * time.Second
	// keyPrecision rounds waypoints to roughly one meter.
	keyPrecision = 5
)

// RedisConfig captures the settings for establishing a Redis connection.
type RedisConfig struct {
	Addr    string
	DB      int
	Timeout time.Duration
}

// Connect initialises a Redis client and validates connectivity with a ping.
func Connect(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = connectTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// RedisRouteCache stores computed paths keyed by profile and rounded waypoints.
type RedisRouteCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRouteCache(client *redis.Client, ttl time.Duration) *RedisRouteCache {
	if ttl <= 0 {
		ttl = defaultRouteTTL
	}
	return &RedisRouteCache{client: client, ttl: ttl}
}

type cachedPath struct {
	Points          [][2]float64 `json:"points"`
	DistanceMeters  int          `json:"distance_meters"`
	DurationSeconds int          `json:"duration_seconds"`
}

// Get returns the cached path for waypoints, reporting whether it was found.
func (c *RedisRouteCache) Get(
	ctx context.Context,
	profile string,
	waypoints []domain.Coordinates,
) (_ domain.Path, _ bool, err error) {
	defer obs.Time(ctx, "route.cache.Get")(&err)

	if c.client == nil {
		return domain.Path{}, false, errors.New("route cache: redis client is nil")
	}

	raw, err := c.client.Get(ctx, RouteKey(profile, waypoints)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RouteCacheTotal.WithLabelValues("miss").Inc()
		return domain.Path{}, false, nil
	}
	if err != nil {
		return domain.Path{}, false, fmt.Errorf("get route cache: %w", err)
	}

	var cp cachedPath
	if err := json.Unmarshal(raw, &cp); err != nil {
		return domain.Path{}, false, fmt.Errorf("get route cache: decode: %w", err)
	}
	metrics.RouteCacheTotal.WithLabelValues("hit").Inc()

	path := domain.Path{
		Points:          make([]domain.Coordinates, 0, len(cp.Points)),
		DistanceMeters:  cp.DistanceMeters,
		DurationSeconds: cp.DurationSeconds,
	}
	for _, p := range cp.Points {
		path.Points = append(path.Points, domain.Coordinates{Lat: p[0], Lng: p[1]})
	}
	return path, true, nil
}

// Put stores path for waypoints with the cache TTL.
func (c *RedisRouteCache) Put(
	ctx context.Context,
	profile string,
	waypoints []domain.Coordinates,
	path domain.Path,
) error {
	if c.client == nil {
		return errors.New("route cache: redis client is nil")
	}

	cp := cachedPath{
		Points:          make([][2]float64, 0, len(path.Points)),
		DistanceMeters:  path.DistanceMeters,
		DurationSeconds: path.DurationSeconds,
	}
	for _, p := range path.Points {
		cp.Points = append(cp.Points, [2]float64{p.Lat, p.Lng})
	}

	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("put route cache: encode: %w", err)
	}

	if err := c.client.Set(ctx, RouteKey(profile, waypoints), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("put route cache: %w", err)
	}
	return nil
}

// RouteKey builds the cache key. Waypoints are rounded so fixes that differ
// only by GPS jitter share an entry.
func RouteKey(profile string, waypoints []domain.Coordinates) string {
	parts := make([]string, 0, len(waypoints))
	for _, w := range waypoints {
		parts = append(parts,
			strconv.FormatFloat(w.Lat, 'f', keyPrecision, 64)+","+strconv.FormatFloat(w.Lng, 'f', keyPrecision, 64),
		)
	}
	return "route:" + profile + ":" + strings.Join(parts, "|")
}

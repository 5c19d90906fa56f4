package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"rider-tracking-service/internal/domain"
	"rider-tracking-service/internal/geo"
	"rider-tracking-service/internal/platform/metrics"
	"rider-tracking-service/internal/ports"
)

var errTooFewWaypoints = errors.New("route needs at least two waypoints")

// RouteControl is one owned routing instance: a fixed destination, a start
// waypoint that moves with the rider, and the last computed path.
//
// It is created once per route and updated in place. Only the start waypoint
// ever changes; the path is recomputed when the start has moved at least
// minMeters from where the current path was computed.
type RouteControl struct {
	id        string
	provider  ports.RouteProvider
	minMeters float64

	mu          sync.RWMutex
	waypoints   []domain.Coordinates
	routedStart domain.Coordinates
	path        domain.Path
}

// NewRouteControl validates the waypoints and computes the initial path.
func NewRouteControl(
	ctx context.Context,
	provider ports.RouteProvider,
	waypoints []domain.Coordinates,
	minMeters float64,
) (*RouteControl, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("new route control: %w", errTooFewWaypoints)
	}
	for i, wp := range waypoints {
		if !wp.Valid() {
			return nil, fmt.Errorf("new route control: waypoint %d is not finite", i)
		}
	}

	wps := append([]domain.Coordinates(nil), waypoints...)
	path, err := provider.Directions(ctx, wps)
	if err != nil {
		metrics.RouteComputationsTotal.WithLabelValues("initial", "error").Inc()
		return nil, fmt.Errorf("new route control: %w", err)
	}
	metrics.RouteComputationsTotal.WithLabelValues("initial", "ok").Inc()

	return &RouteControl{
		id:          uuid.NewString(),
		provider:    provider,
		minMeters:   minMeters,
		waypoints:   wps,
		routedStart: wps[0],
		path:        path,
	}, nil
}

// ID identifies the control for its whole lifetime.
func (c *RouteControl) ID() string { return c.id }

func (c *RouteControl) Waypoints() []domain.Coordinates {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Coordinates(nil), c.waypoints...)
}

func (c *RouteControl) Path() domain.Path {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// Start returns the current start waypoint.
func (c *RouteControl) Start() domain.Coordinates {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.waypoints[0]
}

// Destination returns the last waypoint.
func (c *RouteControl) Destination() domain.Coordinates {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.waypoints[len(c.waypoints)-1]
}

// SpliceStart replaces the start waypoint with start and reports whether the
// path was recomputed. A non-finite start is ignored. When recomputation fails
// the previous path is kept and the error is returned.
func (c *RouteControl) SpliceStart(ctx context.Context, start domain.Coordinates) (bool, error) {
	if !start.Valid() {
		return false, nil
	}

	c.mu.Lock()
	c.waypoints[0] = start
	moved := geo.HaversineMeters(c.routedStart, start)
	if moved < c.minMeters {
		c.mu.Unlock()
		return false, nil
	}
	wps := append([]domain.Coordinates(nil), c.waypoints...)
	c.mu.Unlock()

	path, err := c.provider.Directions(ctx, wps)
	if err != nil {
		metrics.RouteComputationsTotal.WithLabelValues("reroute", "error").Inc()
		return false, fmt.Errorf("splice route start: %w", err)
	}
	metrics.RouteComputationsTotal.WithLabelValues("reroute", "ok").Inc()

	c.mu.Lock()
	c.path = path
	c.routedStart = wps[0]
	c.mu.Unlock()

	return true, nil
}

package ports

import (
	"context"
	"rider-tracking-service/internal/domain"
)

// Contract for computing a path through ordered waypoints.
type RouteProvider interface {
	Directions(ctx context.Context, waypoints []domain.Coordinates) (domain.Path, error)
}

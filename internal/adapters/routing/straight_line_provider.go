package routing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"rider-tracking-service/internal/domain"
	"rider-tracking-service/internal/geo"
)

// defaultSpeedMps is roughly 30 km/h, a city motorbike average.
const defaultSpeedMps = 8.3

// StraightLineProvider joins waypoints with straight segments. It is used when
// no routing service is configured and in tests.
type StraightLineProvider struct {
	SpeedMps float64
}

func NewStraightLineProvider() *StraightLineProvider {
	return &StraightLineProvider{SpeedMps: defaultSpeedMps}
}

func (p *StraightLineProvider) Directions(ctx context.Context, waypoints []domain.Coordinates) (domain.Path, error) {
	if err := ctx.Err(); err != nil {
		return domain.Path{}, err
	}
	if len(waypoints) < 2 {
		return domain.Path{}, errors.New("directions: at least two waypoints are required")
	}

	var meters float64
	for i, w := range waypoints {
		if !w.Valid() {
			return domain.Path{}, fmt.Errorf("directions: waypoint %d is not finite", i)
		}
		if i > 0 {
			meters += geo.HaversineMeters(waypoints[i-1], w)
		}
	}

	speed := p.SpeedMps
	if speed <= 0 {
		speed = defaultSpeedMps
	}

	points := make([]domain.Coordinates, len(waypoints))
	copy(points, waypoints)

	return domain.Path{
		Points:          points,
		DistanceMeters:  int(math.Round(meters)),
		DurationSeconds: int(math.Round(meters / speed)),
	}, nil
}

package ports

import (
	"context"
	"rider-tracking-service/internal/domain"
)

// PositionUpdate is one element of a continuous position stream.
// Exactly one of Fix or Err is meaningful.
type PositionUpdate struct {
	Fix domain.Fix
	Err error
}

// Watch is a continuous position subscription. It runs until Cancel is called
// or the context passed to Geolocator.Watch is done.
type Watch interface {
	Updates() <-chan PositionUpdate
	Cancel()
}

// Contract for the device geolocation capability.
type Geolocator interface {
	// Return a single current position or an error wrapping domain.ErrPositionUnavailable.
	CurrentPosition(ctx context.Context) (domain.Fix, error)
	// Start a continuous position subscription.
	Watch(ctx context.Context) (Watch, error)
}

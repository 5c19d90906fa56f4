package ports

import (
	"context"
	"rider-tracking-service/internal/domain"
)

// Port: the external order-management API the rider flow consumes.
// Failures are *domain.NetworkError or *domain.ServerError.
type OrderAPI interface {
	// Return the rider's orders in any of the given statuses, normalized.
	ListOrders(ctx context.Context, riderID string, statuses []domain.Status) ([]domain.Order, error)
	// Request accepted -> in_transit. Returns the server message.
	StartDelivery(ctx context.Context, orderID string) (string, error)
	// Request cancellation with a structured reason. Returns the server message.
	CancelDelivery(ctx context.Context, orderID string, reason domain.CancelReason) (string, error)
	// Generic status change. Returns the server message.
	UpdateStatus(ctx context.Context, orderID string, status domain.Status) (string, error)
	// Report the rider's current position for an order in transit.
	ReportLocation(ctx context.Context, orderID string, fix domain.Fix) error
}

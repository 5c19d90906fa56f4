package ports

import (
	"context"
	"rider-tracking-service/internal/domain"
)

// Port: persistence of the fixes recorded while routing to an order.
type FixRecorder interface {
	RecordFix(ctx context.Context, orderID string, fix domain.Fix) error
}

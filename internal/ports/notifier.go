package ports

import (
	"context"
	"rider-tracking-service/internal/domain"
)

// Notifier delivers user-visible, non-blocking notifications.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// Package notify collects the notifications raised by the tracking flow and
// fans them out to connected clients.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rider-tracking-service/internal/domain"
	"rider-tracking-service/internal/platform/metrics"
)

const defaultCapacity = 50

// EventNotification is the event type published for each notification.
const EventNotification = "notification"

// Publisher pushes an event to connected clients.
type Publisher interface {
	Publish(eventType string, data any)
}

// Feed implements ports.Notifier. It keeps the most recent notifications
// for clients that poll and forwards each one to the publishers.
type Feed struct {
	log        zerolog.Logger
	capacity   int
	publishers []Publisher
	now        func() time.Time

	mu    sync.Mutex
	items []domain.Notification
}

func NewFeed(log zerolog.Logger, capacity int, publishers ...Publisher) *Feed {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Feed{
		log:        log,
		capacity:   capacity,
		publishers: publishers,
		now:        time.Now,
	}
}

// Notify records n, filling in its id and timestamp when missing.
func (f *Feed) Notify(ctx context.Context, n domain.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = f.now()
	}
	if n.Level == "" {
		n.Level = domain.LevelInfo
	}

	f.mu.Lock()
	f.items = append(f.items, n)
	if len(f.items) > f.capacity {
		f.items = append([]domain.Notification(nil), f.items[len(f.items)-f.capacity:]...)
	}
	f.mu.Unlock()

	metrics.NotificationsTotal.WithLabelValues(string(n.Level)).Inc()

	var ev *zerolog.Event
	switch n.Level {
	case domain.LevelError, domain.LevelAlert:
		ev = f.log.Warn()
	default:
		ev = f.log.Info()
	}
	ev.Str("notification_id", n.ID).
		Str("level", string(n.Level)).
		Str("order_id", n.OrderID).
		Msg(n.Message)

	for _, p := range f.publishers {
		p.Publish(EventNotification, n)
	}
}

// Recent returns up to limit notifications, oldest first. limit <= 0 returns all.
func (f *Feed) Recent(limit int) []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.items
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	out := make([]domain.Notification, len(items))
	copy(out, items)
	return out
}

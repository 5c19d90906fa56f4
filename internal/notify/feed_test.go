package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rider-tracking-service/internal/domain"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func TestFeedFillsDefaultsAndPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	f := NewFeed(zerolog.Nop(), 10, pub)

	f.Notify(context.Background(), domain.Notification{Message: "Delivery started successfully.", OrderID: "7"})

	got := f.Recent(0)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())
	assert.Equal(t, domain.LevelInfo, got[0].Level)
	assert.Equal(t, []string{EventNotification}, pub.events)
}

func TestFeedKeepsMostRecent(t *testing.T) {
	f := NewFeed(zerolog.Nop(), 3)
	for _, m := range []string{"a", "b", "c", "d", "e"} {
		f.Notify(context.Background(), domain.Notification{Message: m})
	}

	got := f.Recent(0)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Message)
	assert.Equal(t, "e", got[2].Message)

	last := f.Recent(1)
	require.Len(t, last, 1)
	assert.Equal(t, "e", last[0].Message)
}

package geolocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rider-tracking-service/internal/domain"
	"rider-tracking-service/internal/platform/metrics"
	"rider-tracking-service/internal/ports"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultMaxFixAge = 30 * time.Second
)

// ErrPermissionDenied is reported when the device refuses location access.
var ErrPermissionDenied = fmt.Errorf("%w: permission denied", domain.ErrPositionUnavailable)

// ErrTimeout is reported when no fix arrives within the timeout.
var ErrTimeout = fmt.Errorf("%w: timed out waiting for a fix", domain.ErrPositionUnavailable)

// Feed is a Geolocator backed by fixes the rider's device pushes in.
//
// One-shot requests are served from the latest fix when it is fresh enough,
// otherwise they wait for the next fix. Continuous watches receive every fix
// published after they start, keeping only the newest one when the consumer
// falls behind.
type Feed struct {
	timeout   time.Duration
	maxFixAge time.Duration
	now       func() time.Time

	mu      sync.Mutex
	last    *domain.Fix
	denied  bool
	waiters []chan struct{}
	watches map[*watch]struct{}
}

type Option func(*Feed)

// WithTimeout bounds one-shot requests.
func WithTimeout(d time.Duration) Option {
	return func(f *Feed) { f.timeout = d }
}

// WithMaxFixAge sets how old a cached fix may be to satisfy a one-shot request.
// Zero forces every one-shot request to wait for a new fix.
func WithMaxFixAge(d time.Duration) Option {
	return func(f *Feed) { f.maxFixAge = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Feed) { f.now = now }
}

func NewFeed(opts ...Option) *Feed {
	f := &Feed{
		timeout:   defaultTimeout,
		maxFixAge: defaultMaxFixAge,
		now:       time.Now,
		watches:   make(map[*watch]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Publish records a new fix from the device and fans it out.
func (f *Feed) Publish(fix domain.Fix) error {
	if !fix.Valid() {
		metrics.PositionFixesTotal.WithLabelValues("invalid").Inc()
		return fmt.Errorf("publish fix: %w: coordinates must be finite", domain.ErrPositionUnavailable)
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = f.now()
	}
	metrics.PositionFixesTotal.WithLabelValues("accepted").Inc()

	f.mu.Lock()
	f.last = &fix
	f.denied = false
	waiters := f.waiters
	f.waiters = nil
	watches := f.snapshotWatches()
	f.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
	for _, w := range watches {
		w.offer(ports.PositionUpdate{Fix: fix})
	}
	return nil
}

// Deny records that the device refused location access. Pending one-shot
// requests fail and active watches receive the error.
func (f *Feed) Deny() {
	metrics.PositionFixesTotal.WithLabelValues("error").Inc()

	f.mu.Lock()
	f.denied = true
	waiters := f.waiters
	f.waiters = nil
	watches := f.snapshotWatches()
	f.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
	for _, w := range watches {
		w.offer(ports.PositionUpdate{Err: ErrPermissionDenied})
	}
}

// Last returns the most recent fix, if any.
func (f *Feed) Last() (domain.Fix, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return domain.Fix{}, false
	}
	return *f.last, true
}

// CurrentPosition implements ports.Geolocator.
func (f *Feed) CurrentPosition(ctx context.Context) (domain.Fix, error) {
	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	f.mu.Lock()
	if f.denied {
		f.mu.Unlock()
		return domain.Fix{}, ErrPermissionDenied
	}
	if f.last != nil && f.maxFixAge > 0 && f.now().Sub(f.last.Timestamp) <= f.maxFixAge {
		fix := *f.last
		f.mu.Unlock()
		return fix, nil
	}
	ch := make(chan struct{})
	f.waiters = append(f.waiters, ch)
	f.mu.Unlock()

	select {
	case <-ch:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.denied || f.last == nil {
			return domain.Fix{}, ErrPermissionDenied
		}
		return *f.last, nil
	case <-timer.C:
		f.dropWaiter(ch)
		return domain.Fix{}, ErrTimeout
	case <-ctx.Done():
		f.dropWaiter(ch)
		return domain.Fix{}, fmt.Errorf("%w: %w", domain.ErrPositionUnavailable, ctx.Err())
	}
}

// Watch implements ports.Geolocator. The subscription ends when Cancel is
// called or ctx is done.
func (f *Feed) Watch(ctx context.Context) (ports.Watch, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("watch position: %w", err)
	}

	w := &watch{
		feed:    f,
		updates: make(chan ports.PositionUpdate, 1),
		done:    make(chan struct{}),
	}

	f.mu.Lock()
	f.watches[w] = struct{}{}
	f.mu.Unlock()
	metrics.ActiveWatches.Inc()

	go func() {
		select {
		case <-ctx.Done():
			w.Cancel()
		case <-w.done:
		}
	}()

	return w, nil
}

// ActiveWatches reports the number of live continuous subscriptions.
func (f *Feed) ActiveWatches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watches)
}

func (f *Feed) snapshotWatches() []*watch {
	out := make([]*watch, 0, len(f.watches))
	for w := range f.watches {
		out = append(out, w)
	}
	return out
}

func (f *Feed) dropWaiter(ch chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.waiters {
		if w == ch {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

func (f *Feed) remove(w *watch) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.watches[w]; !ok {
		return false
	}
	delete(f.watches, w)
	return true
}

type watch struct {
	feed *Feed

	mu      sync.Mutex
	closed  bool
	updates chan ports.PositionUpdate
	done    chan struct{}
}

func (w *watch) Updates() <-chan ports.PositionUpdate { return w.updates }

// Cancel ends the subscription and closes Updates. Safe to call repeatedly.
func (w *watch) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true

	if w.feed.remove(w) {
		metrics.ActiveWatches.Dec()
	}
	close(w.done)
	close(w.updates)
}

// offer delivers u, replacing an unconsumed older update.
func (w *watch) offer(u ports.PositionUpdate) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	select {
	case w.updates <- u:
		return
	default:
	}

	select {
	case <-w.updates:
	default:
	}
	w.updates <- u
}

var _ ports.Geolocator = (*Feed)(nil)

// IsPermissionDenied reports whether err came from a denied location request.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

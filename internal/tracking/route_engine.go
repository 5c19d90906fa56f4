package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"rider-tracking-service/internal/domain"
	"rider-tracking-service/internal/geo"
	"rider-tracking-service/internal/ports"
)

var errEngineClosed = errors.New("route engine is closed")

const (
	defaultRerouteMeters = 15
	defaultArrivalMeters = 30
)

// LocationReporter forwards the rider position for an order upstream.
type LocationReporter interface {
	ReportLocation(ctx context.Context, orderID string, fix domain.Fix) error
}

// RouteSnapshot is a read-only view of the current route session.
type RouteSnapshot struct {
	State       domain.RouteState    `json:"state"`
	OrderID     string               `json:"order_id,omitempty"`
	ControlID   string               `json:"control_id,omitempty"`
	Origin      *domain.Coordinates  `json:"origin,omitempty"`
	Destination *domain.Coordinates  `json:"destination,omitempty"`
	Waypoints   []domain.Coordinates `json:"waypoints,omitempty"`
	Path        *domain.Path         `json:"path,omitempty"`
}

// RouteEngine draws a route from the rider's live position to one destination
// at a time and keeps it updated while fixes arrive.
//
// At most one position watch is active. A new RouteTo cancels the running
// watch and waits for its loop to exit before subscribing again.
type RouteEngine struct {
	geo      ports.Geolocator
	provider ports.RouteProvider
	notifier ports.Notifier
	recorder ports.FixRecorder
	reporter LocationReporter
	log      zerolog.Logger

	rerouteMeters float64
	arrivalMeters float64
	onChange      func(RouteSnapshot)

	// subscribe serializes opening a watch with installing it.
	subscribe sync.Mutex

	mu      sync.Mutex
	gen     uint64
	state   domain.RouteState
	orderID string
	dest    domain.Coordinates
	origin  *domain.Coordinates
	control *RouteControl
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
}

type EngineOption func(*RouteEngine)

// WithRerouteMeters sets how far the rider must move before the path is recomputed.
func WithRerouteMeters(m float64) EngineOption {
	return func(e *RouteEngine) { e.rerouteMeters = m }
}

// WithArrivalRadius sets the distance to the destination that ends the route.
// Zero disables arrival detection.
func WithArrivalRadius(m float64) EngineOption {
	return func(e *RouteEngine) { e.arrivalMeters = m }
}

func WithFixRecorder(r ports.FixRecorder) EngineOption {
	return func(e *RouteEngine) { e.recorder = r }
}

func WithLocationReporter(r LocationReporter) EngineOption {
	return func(e *RouteEngine) { e.reporter = r }
}

// OnRouteChange registers a callback invoked after every state or path change.
// It runs on the engine's goroutines and must not call back into the engine.
func OnRouteChange(fn func(RouteSnapshot)) EngineOption {
	return func(e *RouteEngine) { e.onChange = fn }
}

func NewRouteEngine(
	geolocator ports.Geolocator,
	provider ports.RouteProvider,
	notifier ports.Notifier,
	log zerolog.Logger,
	opts ...EngineOption,
) *RouteEngine {
	e := &RouteEngine{
		geo:           geolocator,
		provider:      provider,
		notifier:      notifier,
		log:           log,
		rerouteMeters: defaultRerouteMeters,
		arrivalMeters: defaultArrivalMeters,
		state:         domain.RouteIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RouteTo replaces the current route with one from the rider's position to dest.
// A non-finite destination is ignored. When no position can be obtained the
// rider is alerted, the engine returns to idle and the error is returned.
func (e *RouteEngine) RouteTo(ctx context.Context, orderID string, dest domain.Coordinates) error {
	if !dest.Valid() {
		e.log.Debug().Str("order_id", orderID).Msg("route request ignored: destination is not finite")
		return nil
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("route to order %s: %w", orderID, errEngineClosed)
	}
	e.gen++
	gen := e.gen
	prevCancel, prevDone := e.detachLocked()
	e.state = domain.RouteAwaitingFix
	e.orderID = orderID
	e.dest = dest
	e.mu.Unlock()

	stopLoop(prevCancel, prevDone)
	e.emit()

	fix, err := e.geo.CurrentPosition(ctx)
	if err != nil {
		if !e.resetIfCurrent(gen) {
			return nil
		}
		e.notifier.Notify(ctx, domain.Notification{
			Level:   domain.LevelAlert,
			Message: domain.UserMessage(err),
			OrderID: orderID,
		})
		e.log.Warn().Err(err).Str("order_id", orderID).Msg("route aborted: no position fix")
		return fmt.Errorf("route to order %s: %w", orderID, err)
	}
	if !e.current(gen) {
		return nil
	}

	control, err := NewRouteControl(ctx, e.provider, []domain.Coordinates{fix.Coordinates, dest}, e.rerouteMeters)
	if err != nil {
		if !e.resetIfCurrent(gen) {
			return nil
		}
		e.notifier.Notify(ctx, domain.Notification{
			Level:   domain.LevelError,
			Message: "Unable to compute a route to this order.",
			OrderID: orderID,
		})
		e.log.Error().Err(err).Str("order_id", orderID).Msg("route aborted: directions failed")
		return fmt.Errorf("route to order %s: %w", orderID, err)
	}

	// A watch is opened and installed under subscribe.
	e.subscribe.Lock()
	if !e.current(gen) {
		e.subscribe.Unlock()
		return nil
	}

	// The watch outlives the request that started it.
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w, err := e.geo.Watch(watchCtx)
	if err != nil {
		cancel()
		e.subscribe.Unlock()
		if !e.resetIfCurrent(gen) {
			return nil
		}
		e.log.Error().Err(err).Str("order_id", orderID).Msg("route aborted: watch failed")
		return fmt.Errorf("route to order %s: %w", orderID, err)
	}

	done := make(chan struct{})

	e.mu.Lock()
	if e.gen != gen || e.closed {
		e.mu.Unlock()
		w.Cancel()
		cancel()
		e.subscribe.Unlock()
		return nil
	}
	start := fix.Coordinates
	e.state = domain.RouteRouting
	e.origin = &start
	e.control = control
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()
	e.subscribe.Unlock()

	e.log.Info().
		Str("order_id", orderID).
		Str("control_id", control.ID()).
		Int("distance_m", control.Path().DistanceMeters).
		Msg("route started")

	e.track(watchCtx, orderID, fix)
	go e.loop(watchCtx, gen, orderID, control, w, done)
	e.emit()

	return nil
}

// Retarget routes again when the active route serves orderID and dest differs
// from its destination. It is a no-op otherwise.
func (e *RouteEngine) Retarget(ctx context.Context, orderID string, dest domain.Coordinates) error {
	e.mu.Lock()
	match := e.state != domain.RouteIdle && e.orderID == orderID && e.dest != dest
	e.mu.Unlock()
	if !match {
		return nil
	}

	e.log.Info().Str("order_id", orderID).Msg("destination changed, rerouting")
	return e.RouteTo(ctx, orderID, dest)
}

// Release stops the route when it targets orderID.
func (e *RouteEngine) Release(orderID string) {
	e.mu.Lock()
	match := e.state != domain.RouteIdle && e.orderID == orderID
	e.mu.Unlock()
	if match {
		e.Stop()
	}
}

// Stop cancels the position watch and returns to idle.
func (e *RouteEngine) Stop() {
	e.mu.Lock()
	e.gen++
	wasActive := e.state != domain.RouteIdle
	cancel, done := e.detachLocked()
	e.resetLocked()
	e.mu.Unlock()

	stopLoop(cancel, done)
	if wasActive {
		e.emit()
	}
}

// Close stops the engine for good.
func (e *RouteEngine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.Stop()
}

func (e *RouteEngine) State() domain.RouteState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *RouteEngine) Snapshot() RouteSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *RouteEngine) snapshotLocked() RouteSnapshot {
	s := RouteSnapshot{State: e.state}
	if e.state == domain.RouteIdle {
		return s
	}

	s.OrderID = e.orderID
	dest := e.dest
	s.Destination = &dest
	if e.origin != nil {
		origin := *e.origin
		s.Origin = &origin
	}
	if e.control != nil {
		s.ControlID = e.control.ID()
		s.Waypoints = e.control.Waypoints()
		path := e.control.Path()
		s.Path = &path
	}
	return s
}

func (e *RouteEngine) loop(
	ctx context.Context,
	gen uint64,
	orderID string,
	control *RouteControl,
	w ports.Watch,
	done chan struct{},
) {
	defer close(done)
	defer w.Cancel()

	log := e.log.With().Str("order_id", orderID).Str("control_id", control.ID()).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-w.Updates():
			if !ok {
				return
			}
			if u.Err != nil {
				// Keep routing from the last known position.
				log.Warn().Err(u.Err).Msg("position stream error")
				continue
			}

			rerouted, err := control.SpliceStart(ctx, u.Fix.Coordinates)
			if err != nil {
				log.Warn().Err(err).Msg("reroute failed, keeping previous path")
			}
			if !e.setOrigin(gen, u.Fix.Coordinates) {
				return
			}
			e.track(ctx, orderID, u.Fix)
			if rerouted {
				e.emit()
			}

			if e.arrivalMeters > 0 && geo.IsWithinRadius(u.Fix.Coordinates, control.Destination(), e.arrivalMeters) {
				e.arrive(ctx, gen, orderID)
				return
			}
		}
	}
}

// arrive ends the route from inside its own loop.
func (e *RouteEngine) arrive(ctx context.Context, gen uint64, orderID string) {
	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.cancel = nil
	e.done = nil
	e.resetLocked()
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.log.Info().Str("order_id", orderID).Msg("rider arrived at destination")
	e.notifier.Notify(ctx, domain.Notification{
		Level:   domain.LevelInfo,
		Message: "You have arrived at the delivery location.",
		OrderID: orderID,
	})
	e.emit()
}

// track records and reports a fix. Failures are logged only.
func (e *RouteEngine) track(ctx context.Context, orderID string, fix domain.Fix) {
	if e.recorder != nil {
		if err := e.recorder.RecordFix(ctx, orderID, fix); err != nil {
			e.log.Warn().Err(err).Str("order_id", orderID).Msg("record fix failed")
		}
	}
	if e.reporter != nil {
		if err := e.reporter.ReportLocation(ctx, orderID, fix); err != nil {
			e.log.Debug().Err(err).Str("order_id", orderID).Msg("report location failed")
		}
	}
}

func (e *RouteEngine) setOrigin(gen uint64, c domain.Coordinates) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return false
	}
	e.origin = &c
	return true
}

// current reports whether gen is still the latest route request.
func (e *RouteEngine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen == gen && !e.closed
}

func (e *RouteEngine) resetIfCurrent(gen uint64) bool {
	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return false
	}
	e.resetLocked()
	e.mu.Unlock()
	e.emit()
	return true
}

func (e *RouteEngine) detachLocked() (context.CancelFunc, chan struct{}) {
	cancel, done := e.cancel, e.done
	e.cancel = nil
	e.done = nil
	return cancel, done
}

func (e *RouteEngine) resetLocked() {
	e.state = domain.RouteIdle
	e.orderID = ""
	e.dest = domain.Coordinates{}
	e.origin = nil
	e.control = nil
}

func (e *RouteEngine) emit() {
	if e.onChange == nil {
		return
	}
	e.onChange(e.Snapshot())
}

func stopLoop(cancel context.CancelFunc, done chan struct{}) {
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Package tracking implements the rider's delivery tracking session: the
// active-order controller, the marker layer, the route engine and the
// cancellation dialog.
package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rider-tracking-service/internal/domain"
	"rider-tracking-service/internal/platform/metrics"
	"rider-tracking-service/internal/platform/obs"
	"rider-tracking-service/internal/ports"
)

const defaultPollInterval = 10 * time.Second

// Navigator draws routes to order destinations.
type Navigator interface {
	RouteTo(ctx context.Context, orderID string, dest domain.Coordinates) error
	// Retarget reroutes only when the active route serves orderID and dest moved.
	Retarget(ctx context.Context, orderID string, dest domain.Coordinates) error
	Release(orderID string)
}

// View is the controller state shown to the rider.
type View struct {
	RiderID        string         `json:"rider_id"`
	Orders         []domain.Order `json:"orders"`
	InitialLoading bool           `json:"initial_loading"`
	Refreshing     bool           `json:"refreshing"`
	LastSyncedAt   *time.Time     `json:"last_synced_at,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
}

// Controller owns the rider's active orders. The order list only changes when
// a fetch completes; status changes go to the order API and are followed by a
// refetch, never applied locally.
type Controller struct {
	api      ports.OrderAPI
	nav      Navigator
	notifier ports.Notifier
	log      zerolog.Logger
	interval time.Duration
	now      func() time.Time

	riderChanged chan struct{}

	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup

	mu         sync.Mutex
	riderID    string
	epoch      uint64
	orders     []domain.Order
	loaded     bool
	inflight   int
	lastSynced time.Time
	lastErr    string
	failing    bool
}

type ControllerOption func(*Controller)

func WithPollInterval(d time.Duration) ControllerOption {
	return func(c *Controller) { c.interval = d }
}

func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

func NewController(
	api ports.OrderAPI,
	nav Navigator,
	notifier ports.Notifier,
	log zerolog.Logger,
	opts ...ControllerOption,
) *Controller {
	bgCtx, bgCancel := context.WithCancel(context.Background())
	c := &Controller{
		api:          api,
		nav:          nav,
		notifier:     notifier,
		log:          log,
		interval:     defaultPollInterval,
		now:          time.Now,
		riderChanged: make(chan struct{}, 1),
		bgCtx:        bgCtx,
		bgCancel:     bgCancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetRider sets the session's rider. An empty id suspends polling; a new id
// clears the order list and triggers an immediate poll.
func (c *Controller) SetRider(id string) {
	c.mu.Lock()
	if id == c.riderID {
		c.mu.Unlock()
		return
	}
	c.riderID = id
	c.epoch++
	c.orders = nil
	c.loaded = false
	c.lastSynced = time.Time{}
	c.lastErr = ""
	c.failing = false
	c.mu.Unlock()

	c.log.Info().Str("rider_id", id).Msg("rider identity changed")

	select {
	case c.riderChanged <- struct{}{}:
	default:
	}
}

func (c *Controller) RiderID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.riderID
}

// Run polls the active orders every interval while a rider is set. It returns
// when ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tick = nil
		}
	}
	defer stop()

	restart := func() {
		stop()
		rider := c.RiderID()
		if rider == "" {
			c.log.Debug().Msg("polling suspended: no rider")
			return
		}
		ticker = time.NewTicker(c.interval)
		tick = ticker.C
		c.poll(ctx, rider)
	}

	// A rider set before Run is picked up by the first restart.
	select {
	case <-c.riderChanged:
	default:
	}
	restart()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.riderChanged:
			restart()
		case <-tick:
			c.poll(ctx, c.RiderID())
		}
	}
}

func (c *Controller) poll(ctx context.Context, riderID string) {
	if riderID == "" {
		return
	}
	if _, err := c.FetchActiveOrders(ctx, riderID); err != nil {
		c.log.Debug().Err(err).Str("rider_id", riderID).Msg("poll failed")
	}
}

// FetchActiveOrders fetches the rider's accepted and in-transit orders and,
// when riderID is still the session rider, replaces the order list with them.
// On failure the previous list is kept and the rider is warned once per
// streak of failures.
func (c *Controller) FetchActiveOrders(ctx context.Context, riderID string) (orders []domain.Order, err error) {
	if riderID == "" {
		return nil, fmt.Errorf("fetch active orders: %w", domain.ErrNoRider)
	}
	defer obs.Time(ctx, "tracking.fetch_active_orders")(&err)

	c.mu.Lock()
	epoch := c.epoch
	c.inflight++
	c.mu.Unlock()

	orders, err = c.api.ListOrders(ctx, riderID, domain.ActiveStatuses)

	c.mu.Lock()
	c.inflight--
	if c.epoch != epoch {
		c.mu.Unlock()
		metrics.OrderPollsTotal.WithLabelValues("stale").Inc()
		c.log.Debug().Str("rider_id", riderID).Msg("discarding orders for previous rider")
		if err != nil {
			return nil, fmt.Errorf("fetch active orders: %w", err)
		}
		return orders, nil
	}

	if err != nil {
		c.lastErr = domain.UserMessage(err)
		warn := !c.failing
		c.failing = true
		c.mu.Unlock()

		metrics.OrderPollsTotal.WithLabelValues("error").Inc()
		if warn {
			c.notifier.Notify(ctx, domain.Notification{
				Level:   domain.LevelWarning,
				Message: "Unable to refresh orders: " + domain.UserMessage(err),
			})
		}
		return nil, fmt.Errorf("fetch active orders: %w", err)
	}

	var (
		added   []string
		dropped []string
		moved   []domain.Order
	)
	if c.loaded {
		added, dropped, moved = diffOrders(c.orders, orders)
	}
	c.orders = append([]domain.Order(nil), orders...)
	c.loaded = true
	c.lastSynced = c.now()
	c.lastErr = ""
	c.failing = false
	c.mu.Unlock()

	metrics.OrderPollsTotal.WithLabelValues("ok").Inc()

	// Routes end with their order and follow a moved destination.
	for _, id := range dropped {
		c.nav.Release(id)
	}
	for _, o := range moved {
		c.retarget(o.ID, *o.Destination)
	}

	for _, id := range added {
		c.notifier.Notify(ctx, domain.Notification{
			Level:   domain.LevelInfo,
			Message: fmt.Sprintf("New order #%s assigned.", id),
			OrderID: id,
		})
	}

	return orders, nil
}

// Refresh fetches the orders of the current rider.
func (c *Controller) Refresh(ctx context.Context) error {
	_, err := c.FetchActiveOrders(ctx, c.RiderID())
	return err
}

// StartDelivery asks the order API to move an accepted order in transit. On
// success the orders are refetched and a route to the destination is started
// in the background.
func (c *Controller) StartDelivery(ctx context.Context, orderID string) (err error) {
	defer obs.Time(ctx, "tracking.start_delivery")(&err)

	order, err := c.requireTransition(orderID, domain.StatusInTransit)
	if err != nil {
		return fmt.Errorf("start delivery: %w", err)
	}

	msg, err := c.api.StartDelivery(ctx, orderID)
	if err != nil {
		c.failed(ctx, "start_delivery", orderID, err)
		return fmt.Errorf("start delivery: %w", err)
	}
	c.succeeded(ctx, "start_delivery", orderID, msg, "Delivery started successfully.")

	_ = c.Refresh(ctx)

	dest := order.Destination
	if fresh, ok := c.Order(orderID); ok && fresh.HasDestination() {
		dest = fresh.Destination
	}
	if dest == nil || !dest.Valid() {
		c.log.Warn().Str("order_id", orderID).Msg("order has no delivery coordinates, no route drawn")
		return nil
	}

	target := *dest
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.nav.RouteTo(c.bgCtx, orderID, target); err != nil {
			c.log.Debug().Err(err).Str("order_id", orderID).Msg("route after start failed")
		}
	}()

	return nil
}

func (c *Controller) retarget(orderID string, dest domain.Coordinates) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.nav.Retarget(c.bgCtx, orderID, dest); err != nil {
			c.log.Debug().Err(err).Str("order_id", orderID).Msg("reroute to moved destination failed")
		}
	}()
}

// CancelDelivery cancels an accepted or in-transit order with a reason.
func (c *Controller) CancelDelivery(ctx context.Context, orderID string, reason domain.CancelReason) (err error) {
	defer obs.Time(ctx, "tracking.cancel_delivery")(&err)

	if !reason.Valid() {
		return fmt.Errorf("cancel delivery: %w: %q", domain.ErrInvalidReason, reason)
	}
	if _, err := c.requireTransition(orderID, domain.StatusCancelled); err != nil {
		return fmt.Errorf("cancel delivery: %w", err)
	}

	msg, err := c.api.CancelDelivery(ctx, orderID, reason)
	if err != nil {
		c.failed(ctx, "cancel_delivery", orderID, err)
		return fmt.Errorf("cancel delivery: %w", err)
	}
	c.succeeded(ctx, "cancel_delivery", orderID, msg, "Delivery cancelled.")

	c.nav.Release(orderID)
	_ = c.Refresh(ctx)
	return nil
}

// MarkDelivered completes an in-transit order.
func (c *Controller) MarkDelivered(ctx context.Context, orderID string) (err error) {
	defer obs.Time(ctx, "tracking.mark_delivered")(&err)

	if _, err := c.requireTransition(orderID, domain.StatusDelivered); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}

	msg, err := c.api.UpdateStatus(ctx, orderID, domain.StatusDelivered)
	if err != nil {
		c.failed(ctx, "mark_delivered", orderID, err)
		return fmt.Errorf("mark delivered: %w", err)
	}
	c.succeeded(ctx, "mark_delivered", orderID, msg, "Order marked as delivered.")

	c.nav.Release(orderID)
	_ = c.Refresh(ctx)
	return nil
}

// Orders returns a copy of the current order list.
func (c *Controller) Orders() []domain.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Order(nil), c.orders...)
}

func (c *Controller) Order(orderID string) (domain.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.orders {
		if o.ID == orderID {
			return o, true
		}
	}
	return domain.Order{}, false
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		RiderID:        c.riderID,
		Orders:         append([]domain.Order{}, c.orders...),
		InitialLoading: c.riderID != "" && !c.loaded,
		Refreshing:     c.loaded && c.inflight > 0,
		LastError:      c.lastErr,
	}
	if !c.lastSynced.IsZero() {
		t := c.lastSynced
		v.LastSyncedAt = &t
	}
	return v
}

// Close cancels background routing requests and waits for them.
func (c *Controller) Close() {
	c.bgCancel()
	c.wg.Wait()
}

// diffOrders compares two fetch results by order id.
func diffOrders(prev, next []domain.Order) (added, dropped []string, moved []domain.Order) {
	before := make(map[string]domain.Order, len(prev))
	for _, o := range prev {
		before[o.ID] = o
	}
	seen := make(map[string]struct{}, len(next))
	for _, o := range next {
		seen[o.ID] = struct{}{}
		old, ok := before[o.ID]
		switch {
		case !ok:
			added = append(added, o.ID)
		case old.HasDestination() && o.HasDestination() && *old.Destination != *o.Destination:
			moved = append(moved, o)
		}
	}
	for _, o := range prev {
		if _, ok := seen[o.ID]; !ok {
			dropped = append(dropped, o.ID)
		}
	}
	return added, dropped, moved
}

func (c *Controller) requireTransition(orderID string, next domain.Status) (domain.Order, error) {
	order, ok := c.Order(orderID)
	if !ok {
		return domain.Order{}, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	if !order.Status.CanTransitionTo(next) {
		return domain.Order{}, fmt.Errorf("order %s %s -> %s: %w", orderID, order.Status, next, domain.ErrInvalidTransition)
	}
	return order, nil
}

func (c *Controller) failed(ctx context.Context, action, orderID string, err error) {
	metrics.StatusChangesTotal.WithLabelValues(action, "error").Inc()
	c.log.Warn().Err(err).Str("action", action).Str("order_id", orderID).Msg("status change failed")
	c.notifier.Notify(ctx, domain.Notification{
		Level:   domain.LevelError,
		Message: domain.UserMessage(err),
		OrderID: orderID,
	})
}

func (c *Controller) succeeded(ctx context.Context, action, orderID, msg, fallback string) {
	metrics.StatusChangesTotal.WithLabelValues(action, "ok").Inc()
	c.log.Info().Str("action", action).Str("order_id", orderID).Msg("status change accepted")
	if msg == "" || msg == "ok" {
		msg = fallback
	}
	c.notifier.Notify(ctx, domain.Notification{
		Level:   domain.LevelInfo,
		Message: msg,
		OrderID: orderID,
	})
}

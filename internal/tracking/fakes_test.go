package tracking

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"rider-tracking-service/internal/domain"
	"rider-tracking-service/internal/ports"
)

type fakeOrderAPI struct {
	mu        sync.Mutex
	orders    []domain.Order
	listErr   error
	startErr  error
	cancelErr error
	updateErr error
	startMsg  string
	onList    func()
	listCalls int
	riders    []string
	starts    []string
	cancels   []domain.CancelReason
	updates   []domain.Status
	locations []domain.Fix
}

func (f *fakeOrderAPI) ListOrders(ctx context.Context, riderID string, statuses []domain.Status) ([]domain.Order, error) {
	f.mu.Lock()
	f.listCalls++
	f.riders = append(f.riders, riderID)
	hook := f.onList
	err := f.listErr
	orders := append([]domain.Order(nil), f.orders...)
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (f *fakeOrderAPI) StartDelivery(ctx context.Context, orderID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, orderID)
	if f.startErr != nil {
		return "", f.startErr
	}
	f.setStatus(orderID, domain.StatusInTransit)
	return f.startMsg, nil
}

func (f *fakeOrderAPI) CancelDelivery(ctx context.Context, orderID string, reason domain.CancelReason) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, reason)
	if f.cancelErr != nil {
		return "", f.cancelErr
	}
	f.remove(orderID)
	return "Delivery cancelled", nil
}

func (f *fakeOrderAPI) UpdateStatus(ctx context.Context, orderID string, status domain.Status) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, status)
	if f.updateErr != nil {
		return "", f.updateErr
	}
	f.remove(orderID)
	return "Order status updated", nil
}

func (f *fakeOrderAPI) ReportLocation(ctx context.Context, orderID string, fix domain.Fix) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locations = append(f.locations, fix)
	return nil
}

func (f *fakeOrderAPI) setStatus(orderID string, s domain.Status) {
	for i := range f.orders {
		if f.orders[i].ID == orderID {
			f.orders[i].Status = s
		}
	}
}

func (f *fakeOrderAPI) remove(orderID string) {
	kept := f.orders[:0]
	for _, o := range f.orders {
		if o.ID != orderID {
			kept = append(kept, o)
		}
	}
	f.orders = kept
}

func (f *fakeOrderAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeOrderAPI) set(fn func(f *fakeOrderAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type routeCall struct {
	OrderID string
	Dest    domain.Coordinates
}

type fakeNavigator struct {
	mu        sync.Mutex
	routes    []routeCall
	retargets []routeCall
	released  []string
	err       error
}

func (n *fakeNavigator) RouteTo(ctx context.Context, orderID string, dest domain.Coordinates) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, routeCall{OrderID: orderID, Dest: dest})
	return n.err
}

func (n *fakeNavigator) Retarget(ctx context.Context, orderID string, dest domain.Coordinates) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.retargets = append(n.retargets, routeCall{OrderID: orderID, Dest: dest})
	return n.err
}

func (n *fakeNavigator) retargetCalls() []routeCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]routeCall(nil), n.retargets...)
}

func (n *fakeNavigator) Release(orderID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.released = append(n.released, orderID)
}

func (n *fakeNavigator) routeCalls() []routeCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]routeCall(nil), n.routes...)
}

type fakeNotifier struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (n *fakeNotifier) Notify(ctx context.Context, item domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, item)
}

func (n *fakeNotifier) byLevel(level domain.Level) []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Notification
	for _, item := range n.items {
		if item.Level == level {
			out = append(out, item)
		}
	}
	return out
}

// lineProvider returns the waypoints as the path and counts calls.
type lineProvider struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *lineProvider) Directions(ctx context.Context, waypoints []domain.Coordinates) (domain.Path, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return domain.Path{}, p.err
	}
	return domain.Path{Points: append([]domain.Coordinates(nil), waypoints...), DistanceMeters: 1000}, nil
}

func (p *lineProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// gatedGeolocator holds every one-shot request until the test releases it and
// tracks how many watches are open at once.
type gatedGeolocator struct {
	mu       sync.Mutex
	pending  []chan domain.Fix
	open     int
	maxOpen  int
	requests chan struct{}
}

func newGatedGeolocator() *gatedGeolocator {
	return &gatedGeolocator{requests: make(chan struct{}, 8)}
}

func (g *gatedGeolocator) CurrentPosition(ctx context.Context) (domain.Fix, error) {
	ch := make(chan domain.Fix, 1)
	g.mu.Lock()
	g.pending = append(g.pending, ch)
	g.mu.Unlock()
	g.requests <- struct{}{}

	select {
	case fix := <-ch:
		return fix, nil
	case <-ctx.Done():
		return domain.Fix{}, ctx.Err()
	}
}

func (g *gatedGeolocator) release(i int, fix domain.Fix) {
	g.mu.Lock()
	ch := g.pending[i]
	g.mu.Unlock()
	ch <- fix
}

func (g *gatedGeolocator) Watch(ctx context.Context) (ports.Watch, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open++
	if g.open > g.maxOpen {
		g.maxOpen = g.open
	}
	return &gatedWatch{g: g, updates: make(chan ports.PositionUpdate)}, nil
}

func (g *gatedGeolocator) watches() (open, maxOpen int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open, g.maxOpen
}

type gatedWatch struct {
	g       *gatedGeolocator
	once    sync.Once
	updates chan ports.PositionUpdate
}

func (w *gatedWatch) Updates() <-chan ports.PositionUpdate { return w.updates }

func (w *gatedWatch) Cancel() {
	w.once.Do(func() {
		w.g.mu.Lock()
		w.g.open--
		w.g.mu.Unlock()
	})
}

type fakeFixRecorder struct {
	mu    sync.Mutex
	fixes map[string]int
}

func (r *fakeFixRecorder) RecordFix(ctx context.Context, orderID string, fix domain.Fix) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fixes == nil {
		r.fixes = make(map[string]int)
	}
	r.fixes[orderID]++
	return nil
}

func (r *fakeFixRecorder) count(orderID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fixes[orderID]
}

func acceptedOrder(id string, lat, lng float64) domain.Order {
	return domain.Order{
		ID:               id,
		Status:           domain.StatusAccepted,
		DeliveryFullName: "Juan Dela Cruz",
		DeliveryPhone:    "09171234567",
		Destination:      &domain.Coordinates{Lat: lat, Lng: lng},
		Items:            []domain.Item{{ProductName: "Rice", Quantity: 2}},
		TotalAmount:      decimal.RequireFromString("250.50"),
	}
}

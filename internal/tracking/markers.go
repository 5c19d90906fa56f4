package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rider-tracking-service/internal/domain"
)

// Action is a rider intent offered on an order marker.
type Action string

const (
	ActionStartDelivery  Action = "start_delivery"
	ActionGetDirections  Action = "get_directions"
	ActionCancelDelivery Action = "cancel_delivery"
)

// FocusZoom is the zoom level used when centering on a marker.
const FocusZoom = 16

// DefaultViewport frames the Philippines.
var DefaultViewport = Viewport{
	Center: domain.Coordinates{Lat: 12.8797, Lng: 121.7740},
	Zoom:   5.5,
}

type Viewport struct {
	Center domain.Coordinates `json:"center"`
	Zoom   float64            `json:"zoom"`
}

// Marker is the display model of one order on the map.
type Marker struct {
	OrderID             string             `json:"order_id"`
	Status              domain.Status      `json:"status"`
	Position            domain.Coordinates `json:"position"`
	Title               string             `json:"title"`
	Phone               string             `json:"phone"`
	Items               []domain.Item      `json:"items"`
	Total               string             `json:"total"`
	MinutesAgo          int                `json:"minutes_ago"`
	EstimatedDeliveryAt *time.Time         `json:"estimated_delivery_at,omitempty"`
	Actions             []Action           `json:"actions"`
}

// ActionsFor returns the actions offered for an order in status s.
func ActionsFor(s domain.Status) []Action {
	switch s {
	case domain.StatusAccepted:
		return []Action{ActionStartDelivery}
	case domain.StatusInTransit:
		return []Action{ActionGetDirections, ActionCancelDelivery}
	}
	return nil
}

// BuildMarkers returns one marker per order with a finite coordinate pair.
// Orders without one are skipped.
func BuildMarkers(orders []domain.Order, now time.Time) []Marker {
	markers := make([]Marker, 0, len(orders))
	for _, o := range orders {
		if !o.HasDestination() {
			continue
		}

		items := o.Items
		if items == nil {
			items = []domain.Item{}
		}
		m := Marker{
			OrderID:    o.ID,
			Status:     o.Status,
			Position:   *o.Destination,
			Title:      o.DeliveryFullName,
			Phone:      o.DeliveryPhone,
			Items:      items,
			Total:      o.TotalAmount.StringFixed(2),
			MinutesAgo: o.MinutesAgo(now),
			Actions:    ActionsFor(o.Status),
		}
		if eta := o.EstimatedDeliveryAt(); !eta.IsZero() {
			m.EstimatedDeliveryAt = &eta
		}
		markers = append(markers, m)
	}
	return markers
}

// DeliverySource is the part of the controller the marker layer drives.
type DeliverySource interface {
	Orders() []domain.Order
	StartDelivery(ctx context.Context, orderID string) error
}

// MarkerLayer turns the controller's orders into markers and routes marker
// actions to the component that handles them. It never changes orders itself.
type MarkerLayer struct {
	deliveries DeliverySource
	nav        Navigator
	dialog     *CancellationDialog
	now        func() time.Time

	mu       sync.Mutex
	viewport Viewport
}

func NewMarkerLayer(deliveries DeliverySource, nav Navigator, dialog *CancellationDialog) *MarkerLayer {
	return &MarkerLayer{
		deliveries: deliveries,
		nav:        nav,
		dialog:     dialog,
		now:        time.Now,
		viewport:   DefaultViewport,
	}
}

func (l *MarkerLayer) Markers() []Marker {
	return BuildMarkers(l.deliveries.Orders(), l.now())
}

func (l *MarkerLayer) Viewport() Viewport {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viewport
}

// Focus centers the viewport on the order's marker.
func (l *MarkerLayer) Focus(orderID string) (Viewport, error) {
	for _, m := range l.Markers() {
		if m.OrderID != orderID {
			continue
		}
		l.mu.Lock()
		l.viewport = Viewport{Center: m.Position, Zoom: FocusZoom}
		vp := l.viewport
		l.mu.Unlock()
		return vp, nil
	}
	return Viewport{}, fmt.Errorf("focus order %s: %w", orderID, domain.ErrOrderNotFound)
}

// Dispatch performs a marker action on an order. Actions not offered for the
// order's current status are rejected.
func (l *MarkerLayer) Dispatch(ctx context.Context, orderID string, action Action) error {
	order, ok := l.find(orderID)
	if !ok {
		return fmt.Errorf("dispatch %s: order %s: %w", action, orderID, domain.ErrOrderNotFound)
	}
	if !offered(order.Status, action) {
		return fmt.Errorf("dispatch %s: order %s is %s: %w", action, orderID, order.Status, domain.ErrActionNotAllowed)
	}

	switch action {
	case ActionStartDelivery:
		return l.deliveries.StartDelivery(ctx, orderID)
	case ActionGetDirections:
		if !order.HasDestination() {
			return fmt.Errorf("dispatch %s: order %s has no coordinates: %w", action, orderID, domain.ErrActionNotAllowed)
		}
		return l.nav.RouteTo(ctx, orderID, *order.Destination)
	case ActionCancelDelivery:
		l.dialog.Open(orderID)
		return nil
	}
	return fmt.Errorf("dispatch %s: %w", action, domain.ErrActionNotAllowed)
}

func (l *MarkerLayer) find(orderID string) (domain.Order, bool) {
	for _, o := range l.deliveries.Orders() {
		if o.ID == orderID {
			return o, true
		}
	}
	return domain.Order{}, false
}

func offered(s domain.Status, action Action) bool {
	for _, a := range ActionsFor(s) {
		if a == action {
			return true
		}
	}
	return false
}

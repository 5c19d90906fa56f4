package tracking

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rider-tracking-service/internal/domain"
)

func TestBuildMarkersSkipsInvalidCoordinates(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	valid := acceptedOrder("1", 14.6, 121.0)
	valid.CreatedAt = now.Add(-12 * time.Minute)

	missing := acceptedOrder("2", 0, 0)
	missing.Destination = nil

	nanLat := acceptedOrder("3", math.NaN(), 121.0)
	infLng := acceptedOrder("4", 14.6, math.Inf(1))

	transit := acceptedOrder("5", 14.7, 121.1)
	transit.Status = domain.StatusInTransit
	transit.Items = nil

	markers := BuildMarkers([]domain.Order{valid, missing, nanLat, infLng, transit}, now)
	require.Len(t, markers, 2)

	m := markers[0]
	assert.Equal(t, "1", m.OrderID)
	assert.Equal(t, domain.Coordinates{Lat: 14.6, Lng: 121.0}, m.Position)
	assert.Equal(t, "Juan Dela Cruz", m.Title)
	assert.Equal(t, "250.50", m.Total)
	assert.Equal(t, 12, m.MinutesAgo)
	require.NotNil(t, m.EstimatedDeliveryAt)
	assert.Equal(t, valid.CreatedAt.Add(30*time.Minute), *m.EstimatedDeliveryAt)
	assert.Equal(t, []Action{ActionStartDelivery}, m.Actions)

	assert.Equal(t, "5", markers[1].OrderID)
	assert.Equal(t, []Action{ActionGetDirections, ActionCancelDelivery}, markers[1].Actions)
	assert.NotNil(t, markers[1].Items)
	assert.Nil(t, markers[1].EstimatedDeliveryAt)
}

func TestActionsFor(t *testing.T) {
	assert.Equal(t, []Action{ActionStartDelivery}, ActionsFor(domain.StatusAccepted))
	assert.Equal(t, []Action{ActionGetDirections, ActionCancelDelivery}, ActionsFor(domain.StatusInTransit))
	assert.Empty(t, ActionsFor(domain.StatusDelivered))
	assert.Empty(t, ActionsFor(domain.StatusPending))
}

func newTestLayer(t *testing.T, orders ...domain.Order) (*MarkerLayer, *Controller, *fakeOrderAPI, *fakeNavigator) {
	t.Helper()
	api := &fakeOrderAPI{orders: orders}
	c, nav, _ := loadedController(t, api)
	layer := NewMarkerLayer(c, nav, NewCancellationDialog(c))
	return layer, c, api, nav
}

func TestMarkerLayerFocus(t *testing.T) {
	layer, _, _, _ := newTestLayer(t, acceptedOrder("7", 14.6, 121.0))

	assert.Equal(t, DefaultViewport, layer.Viewport())

	vp, err := layer.Focus("7")
	require.NoError(t, err)
	assert.Equal(t, Viewport{Center: domain.Coordinates{Lat: 14.6, Lng: 121.0}, Zoom: FocusZoom}, vp)
	assert.Equal(t, vp, layer.Viewport())

	_, err = layer.Focus("8")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestMarkerLayerDispatch(t *testing.T) {
	transit := acceptedOrder("8", 14.7, 121.1)
	transit.Status = domain.StatusInTransit
	layer, c, api, nav := newTestLayer(t, acceptedOrder("7", 14.6, 121.0), transit)
	ctx := context.Background()

	err := layer.Dispatch(ctx, "7", ActionCancelDelivery)
	assert.ErrorIs(t, err, domain.ErrActionNotAllowed)

	err = layer.Dispatch(ctx, "8", ActionStartDelivery)
	assert.ErrorIs(t, err, domain.ErrActionNotAllowed)

	err = layer.Dispatch(ctx, "99", ActionStartDelivery)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	require.NoError(t, layer.Dispatch(ctx, "8", ActionGetDirections))
	assert.Equal(t, []routeCall{{OrderID: "8", Dest: domain.Coordinates{Lat: 14.7, Lng: 121.1}}}, nav.routeCalls())

	require.NoError(t, layer.Dispatch(ctx, "8", ActionCancelDelivery))
	assert.Equal(t, DialogState{Open: true, OrderID: "8"}, layer.dialog.State())
	assert.Empty(t, api.cancels)

	require.NoError(t, layer.Dispatch(ctx, "7", ActionStartDelivery))
	c.Close()
	assert.Equal(t, []string{"7"}, api.starts)
}

func TestCancelFromDialogScenario(t *testing.T) {
	api := &fakeOrderAPI{orders: []domain.Order{acceptedOrder("7", 14.6, 121.0)}}
	nav := &fakeNavigator{}
	c := NewController(api, nav, &fakeNotifier{}, zerolog.Nop())
	t.Cleanup(c.Close)
	c.SetRider("42")
	require.NoError(t, c.Refresh(context.Background()))

	dialog := NewCancellationDialog(c)
	dialog.Open("7")
	require.NoError(t, dialog.Select(domain.ReasonFailedAttempt))
	require.NoError(t, dialog.Confirm(context.Background()))

	assert.False(t, dialog.State().Open)
	assert.Equal(t, 2, api.calls())
	assert.Empty(t, nav.routeCalls())
	assert.Equal(t, []domain.CancelReason{domain.ReasonFailedAttempt}, api.cancels)
}

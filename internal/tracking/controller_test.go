package tracking

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rider-tracking-service/internal/domain"
)

func newTestController(t *testing.T, api *fakeOrderAPI, opts ...ControllerOption) (*Controller, *fakeNavigator, *fakeNotifier) {
	t.Helper()
	nav := &fakeNavigator{}
	notifier := &fakeNotifier{}
	c := NewController(api, nav, notifier, zerolog.Nop(), opts...)
	t.Cleanup(c.Close)
	return c, nav, notifier
}

func loadedController(t *testing.T, api *fakeOrderAPI) (*Controller, *fakeNavigator, *fakeNotifier) {
	t.Helper()
	c, nav, notifier := newTestController(t, api)
	c.SetRider("42")
	_, err := c.FetchActiveOrders(context.Background(), "42")
	require.NoError(t, err)
	return c, nav, notifier
}

func TestStartDeliverySuccess(t *testing.T) {
	api := &fakeOrderAPI{
		orders:   []domain.Order{acceptedOrder("7", 14.6, 121.0)},
		startMsg: "ok",
	}
	c, nav, notifier := loadedController(t, api)

	require.NoError(t, c.StartDelivery(context.Background(), "7"))
	c.Close()

	assert.Equal(t, 2, api.calls(), "refetch issued")
	assert.Equal(t, []routeCall{{OrderID: "7", Dest: domain.Coordinates{Lat: 14.6, Lng: 121.0}}}, nav.routeCalls())
	assert.Empty(t, notifier.byLevel(domain.LevelError))

	o, ok := c.Order("7")
	require.True(t, ok)
	assert.Equal(t, domain.StatusInTransit, o.Status)
}

func TestStartDeliveryServerError(t *testing.T) {
	api := &fakeOrderAPI{
		orders:   []domain.Order{acceptedOrder("7", 14.6, 121.0)},
		startErr: &domain.ServerError{StatusCode: 500, Message: "Rider not available"},
	}
	c, nav, notifier := loadedController(t, api)

	err := c.StartDelivery(context.Background(), "7")
	require.Error(t, err)
	var se *domain.ServerError
	assert.True(t, errors.As(err, &se))
	c.Close()

	errs := notifier.byLevel(domain.LevelError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "Rider not available")

	assert.Equal(t, 1, api.calls(), "no refetch")
	assert.Empty(t, nav.routeCalls())

	o, ok := c.Order("7")
	require.True(t, ok)
	assert.Equal(t, domain.StatusAccepted, o.Status)
}

func TestStartDeliveryRequiresAcceptedOrder(t *testing.T) {
	order := acceptedOrder("7", 14.6, 121.0)
	order.Status = domain.StatusInTransit
	api := &fakeOrderAPI{orders: []domain.Order{order}}
	c, _, _ := loadedController(t, api)

	err := c.StartDelivery(context.Background(), "7")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	err = c.StartDelivery(context.Background(), "99")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	assert.Empty(t, api.starts)
}

func TestStartDeliveryWithoutCoordinatesDrawsNoRoute(t *testing.T) {
	order := acceptedOrder("7", 0, 0)
	order.Destination = nil
	api := &fakeOrderAPI{orders: []domain.Order{order}}
	c, nav, _ := loadedController(t, api)

	require.NoError(t, c.StartDelivery(context.Background(), "7"))
	c.Close()
	assert.Empty(t, nav.routeCalls())
}

func TestCancelDeliveryReleasesRoute(t *testing.T) {
	api := &fakeOrderAPI{orders: []domain.Order{acceptedOrder("7", 14.6, 121.0)}}
	c, nav, notifier := loadedController(t, api)

	require.NoError(t, c.CancelDelivery(context.Background(), "7", domain.ReasonRedeliverLater))

	assert.Equal(t, []domain.CancelReason{domain.ReasonRedeliverLater}, api.cancels)
	assert.Contains(t, nav.released, "7")
	assert.Equal(t, 2, api.calls())
	assert.Empty(t, c.Orders())
	assert.Len(t, notifier.byLevel(domain.LevelInfo), 1)
}

func TestCancelDeliveryRejectsUnknownReason(t *testing.T) {
	api := &fakeOrderAPI{orders: []domain.Order{acceptedOrder("7", 14.6, 121.0)}}
	c, _, _ := loadedController(t, api)

	err := c.CancelDelivery(context.Background(), "7", "lost_package")
	assert.ErrorIs(t, err, domain.ErrInvalidReason)
	assert.Empty(t, api.cancels)
}

func TestCancelDeliveryNetworkError(t *testing.T) {
	api := &fakeOrderAPI{
		orders:    []domain.Order{acceptedOrder("7", 14.6, 121.0)},
		cancelErr: &domain.NetworkError{Op: "cancel delivery", Err: errors.New("connection refused")},
	}
	c, nav, notifier := loadedController(t, api)

	err := c.CancelDelivery(context.Background(), "7", domain.ReasonFailedAttempt)
	require.Error(t, err)

	assert.Len(t, notifier.byLevel(domain.LevelError), 1)
	assert.Empty(t, nav.released)
	assert.Len(t, c.Orders(), 1)
}

func TestMarkDelivered(t *testing.T) {
	order := acceptedOrder("7", 14.6, 121.0)
	order.Status = domain.StatusInTransit
	api := &fakeOrderAPI{orders: []domain.Order{order}}
	c, nav, _ := loadedController(t, api)

	require.NoError(t, c.MarkDelivered(context.Background(), "7"))
	assert.Equal(t, []domain.Status{domain.StatusDelivered}, api.updates)
	assert.Contains(t, nav.released, "7")
	assert.Empty(t, c.Orders())
}

func TestFetchFailureKeepsOrdersAndWarnsOncePerStreak(t *testing.T) {
	api := &fakeOrderAPI{orders: []domain.Order{acceptedOrder("7", 14.6, 121.0)}}
	c, _, notifier := loadedController(t, api)

	api.set(func(f *fakeOrderAPI) {
		f.listErr = &domain.NetworkError{Op: "list orders", Err: errors.New("timeout")}
	})
	for i := 0; i < 3; i++ {
		_, err := c.FetchActiveOrders(context.Background(), "42")
		require.Error(t, err)
	}

	assert.Len(t, c.Orders(), 1)
	assert.Len(t, notifier.byLevel(domain.LevelWarning), 1)
	assert.NotEmpty(t, c.View().LastError)

	api.set(func(f *fakeOrderAPI) { f.listErr = nil })
	_, err := c.FetchActiveOrders(context.Background(), "42")
	require.NoError(t, err)
	assert.Empty(t, c.View().LastError)

	api.set(func(f *fakeOrderAPI) { f.listErr = errors.New("boom") })
	_, _ = c.FetchActiveOrders(context.Background(), "42")
	assert.Len(t, notifier.byLevel(domain.LevelWarning), 2)
}

func TestFetchDiscardsResultForPreviousRider(t *testing.T) {
	api := &fakeOrderAPI{orders: []domain.Order{acceptedOrder("7", 14.6, 121.0)}}
	c, _, _ := newTestController(t, api)
	c.SetRider("42")

	api.set(func(f *fakeOrderAPI) {
		f.onList = func() { c.SetRider("43") }
	})
	_, err := c.FetchActiveOrders(context.Background(), "42")
	require.NoError(t, err)

	assert.Empty(t, c.Orders())
	v := c.View()
	assert.Equal(t, "43", v.RiderID)
	assert.True(t, v.InitialLoading)
}

func TestFetchKeepsLastCompletedResponse(t *testing.T) {
	api := &fakeOrderAPI{orders: []domain.Order{acceptedOrder("7", 14.6, 121.0)}}
	c, _, _ := newTestController(t, api)
	c.SetRider("42")

	entered := make(chan struct{})
	gate := make(chan struct{})
	var calls atomic.Int32
	api.set(func(f *fakeOrderAPI) {
		f.onList = func() {
			if calls.Add(1) == 1 {
				close(entered)
				<-gate
			}
		}
	})

	slow := make(chan error, 1)
	go func() {
		_, err := c.FetchActiveOrders(context.Background(), "42")
		slow <- err
	}()
	<-entered

	// Issued later, resolves first.
	api.set(func(f *fakeOrderAPI) { f.orders = []domain.Order{acceptedOrder("8", 14.7, 121.1)} })
	_, err := c.FetchActiveOrders(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, c.Orders(), 1)
	assert.Equal(t, "8", c.Orders()[0].ID)

	close(gate)
	require.NoError(t, <-slow)

	orders := c.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "7", orders[0].ID)
}

func TestFetchReleasesRouteOfVanishedOrder(t *testing.T) {
	order := acceptedOrder("7", 14.6, 121.0)
	order.Status = domain.StatusInTransit
	api := &fakeOrderAPI{orders: []domain.Order{order, acceptedOrder("8", 14.7, 121.1)}}
	c, nav, _ := loadedController(t, api)

	// Delivered from another device.
	api.set(func(f *fakeOrderAPI) { f.remove("7") })
	_, err := c.FetchActiveOrders(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, []string{"7"}, nav.released)
	assert.Empty(t, nav.retargetCalls())
}

func TestFetchRetargetsMovedDestination(t *testing.T) {
	order := acceptedOrder("7", 14.6, 121.0)
	order.Status = domain.StatusInTransit
	api := &fakeOrderAPI{orders: []domain.Order{order}}
	c, nav, _ := loadedController(t, api)

	moved := domain.Coordinates{Lat: 14.62, Lng: 121.03}
	api.set(func(f *fakeOrderAPI) { f.orders[0].Destination = &moved })
	_, err := c.FetchActiveOrders(context.Background(), "42")
	require.NoError(t, err)
	c.Close()

	assert.Equal(t, []routeCall{{OrderID: "7", Dest: moved}}, nav.retargetCalls())
	assert.Empty(t, nav.released)
}

func TestFetchNotifiesNewOrders(t *testing.T) {
	api := &fakeOrderAPI{orders: []domain.Order{acceptedOrder("7", 14.6, 121.0)}}
	c, _, notifier := loadedController(t, api)
	assert.Empty(t, notifier.byLevel(domain.LevelInfo))

	api.set(func(f *fakeOrderAPI) {
		f.orders = append(f.orders, acceptedOrder("8", 14.61, 121.01))
	})
	_, err := c.FetchActiveOrders(context.Background(), "42")
	require.NoError(t, err)

	info := notifier.byLevel(domain.LevelInfo)
	require.Len(t, info, 1)
	assert.Equal(t, "8", info[0].OrderID)
}

func TestViewLoadingFlags(t *testing.T) {
	api := &fakeOrderAPI{orders: []domain.Order{acceptedOrder("7", 14.6, 121.0)}}
	c, _, _ := newTestController(t, api)

	v := c.View()
	assert.False(t, v.InitialLoading)
	assert.NotNil(t, v.Orders)

	c.SetRider("42")
	assert.True(t, c.View().InitialLoading)

	_, err := c.FetchActiveOrders(context.Background(), "42")
	require.NoError(t, err)

	v = c.View()
	assert.False(t, v.InitialLoading)
	assert.False(t, v.Refreshing)
	assert.NotNil(t, v.LastSyncedAt)
	assert.Len(t, v.Orders, 1)
}

func TestFetchWithoutRider(t *testing.T) {
	api := &fakeOrderAPI{}
	c, _, _ := newTestController(t, api)

	_, err := c.FetchActiveOrders(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNoRider)
	assert.Equal(t, 0, api.calls())
}

func TestRunPollsOnlyWithRider(t *testing.T) {
	api := &fakeOrderAPI{orders: []domain.Order{acceptedOrder("7", 14.6, 121.0)}}
	c, _, _ := newTestController(t, api, WithPollInterval(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, api.calls())

	c.SetRider("42")
	require.Eventually(t, func() bool { return api.calls() >= 1 }, 20*time.Millisecond*5, 2*time.Millisecond)
	require.Eventually(t, func() bool { return api.calls() >= 3 }, time.Second, 5*time.Millisecond)

	c.SetRider("")
	time.Sleep(30 * time.Millisecond)
	suspended := api.calls()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, suspended, api.calls())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunWithRiderSetBeforehandPollsOnce(t *testing.T) {
	api := &fakeOrderAPI{orders: []domain.Order{acceptedOrder("7", 14.6, 121.0)}}
	c, _, _ := newTestController(t, api, WithPollInterval(time.Hour))
	c.SetRider("42")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return api.calls() >= 1 }, time.Second, 2*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, api.calls())

	cancel()
	require.NoError(t, <-done)
}

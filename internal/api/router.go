package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"rider-tracking-service/internal/adapters/geolocation"
	"rider-tracking-service/internal/api/handlers"
	"rider-tracking-service/internal/notify"
	"rider-tracking-service/internal/tracking"
)

// Deps are the session components served over HTTP.
type Deps struct {
	Controller    *tracking.Controller
	Markers       *tracking.MarkerLayer
	Dialog        *tracking.CancellationDialog
	Engine        *tracking.RouteEngine
	Positions     *geolocation.Feed
	Notifications *notify.Feed
	// Events upgrades clients to the push channel. Optional.
	Events http.Handler
	Logger zerolog.Logger
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	riders := &handlers.RiderHandler{Controller: d.Controller, Engine: d.Engine}
	orders := &handlers.OrderHandler{Controller: d.Controller, Markers: d.Markers, Dialog: d.Dialog}
	dialog := &handlers.DialogHandler{Dialog: d.Dialog}
	positions := &handlers.PositionHandler{Feed: d.Positions}
	route := &handlers.RouteHandler{Engine: d.Engine}
	notes := &handlers.NotificationHandler{Feed: d.Notifications}

	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("/rider", riders.Serve)

	mux.HandleFunc("GET /orders", orders.List)
	mux.HandleFunc("POST /orders/refresh", orders.Refresh)
	mux.HandleFunc("POST /orders/{id}/focus", orders.Focus)
	mux.HandleFunc("POST /orders/{id}/actions", orders.Action)
	mux.HandleFunc("POST /orders/{id}/delivered", orders.Delivered)

	mux.HandleFunc("GET /dialog", dialog.Get)
	mux.HandleFunc("POST /dialog/reason", dialog.SelectReason)
	mux.HandleFunc("POST /dialog/confirm", dialog.Confirm)
	mux.HandleFunc("POST /dialog/dismiss", dialog.Dismiss)

	mux.HandleFunc("POST /positions", positions.Publish)
	mux.HandleFunc("POST /positions/deny", positions.Deny)

	mux.HandleFunc("GET /route", route.Get)
	mux.HandleFunc("DELETE /route", route.Stop)

	mux.HandleFunc("GET /notifications", notes.List)
	if d.Events != nil {
		mux.Handle("GET /ws", d.Events)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	return requestIDMiddleware(d.Logger, recoverMiddleware(loggingMiddleware(mux)))
}

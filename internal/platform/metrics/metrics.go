// Package metrics defines the Prometheus metrics of the rider session service.
// All metrics are registered with the default registry on package load.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rider"

// OrderPollsTotal counts active-order fetches.
// Label result: "ok", "error" or "stale" (discarded because the rider changed).
var OrderPollsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_polls_total",
		Help:      "Total number of active-order fetches, by result.",
	},
	[]string{"result"},
)

// StatusChangesTotal counts status-change requests.
// Labels: action ("start_delivery", "cancel_delivery", "mark_delivered"), result ("ok", "error").
var StatusChangesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_changes_total",
		Help:      "Total number of order status-change requests, by action and result.",
	},
	[]string{"action", "result"},
)

// OrderAPIDuration measures order API calls.
var OrderAPIDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "order_api_duration_seconds",
		Help:      "Duration of calls to the external order API.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"op"},
)

// PositionFixesTotal counts fixes received from the device.
// Label result: "accepted", "invalid" or "error".
var PositionFixesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "position_fixes_total",
		Help:      "Total number of device position updates, by result.",
	},
	[]string{"result"},
)

// ActiveWatches is the number of live continuous position subscriptions.
var ActiveWatches = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_position_watches",
		Help:      "Current number of continuous position subscriptions.",
	},
)

// RouteComputationsTotal counts path computations.
// Label reason: "initial" or "reroute"; result: "ok" or "error".
var RouteComputationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "route_computations_total",
		Help:      "Total number of route path computations.",
	},
	[]string{"reason", "result"},
)

// RouteCacheTotal counts route cache lookups by result ("hit" or "miss").
var RouteCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "route_cache_total",
		Help:      "Total number of route cache lookups, by result.",
	},
	[]string{"result"},
)

// NotificationsTotal counts notifications raised, by level.
var NotificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Total number of rider notifications, by level.",
	},
	[]string{"level"},
)

// OpDuration measures internal operations timed with obs.Time.
var OpDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "op_duration_seconds",
		Help:      "Duration of timed internal operations.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"op", "result"},
)

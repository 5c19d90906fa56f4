package domain

import "time"

// Fix is a single reported device position.
type Fix struct {
	Coordinates
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// Path is a computed route polyline between waypoints.
type Path struct {
	Points          []Coordinates `json:"points"`
	DistanceMeters  int           `json:"distance_meters"`
	DurationSeconds int           `json:"duration_seconds"`
}

// RouteState is the Route Engine state.
type RouteState string

const (
	RouteIdle        RouteState = "idle"
	RouteAwaitingFix RouteState = "awaiting_fix"
	RouteRouting     RouteState = "routing"
)

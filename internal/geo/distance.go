package geo

import (
	"math"

	"rider-tracking-service/internal/domain"
)

// EarthRadiusMeters is the mean Earth radius used for Haversine distances.
const EarthRadiusMeters = 6371008.8

// HaversineMeters returns the great-circle distance between two points in meters.
func HaversineMeters(a, b domain.Coordinates) float64 {
	const degToRad = math.Pi / 180
	dLat := (b.Lat - a.Lat) * degToRad
	dLng := (b.Lng - a.Lng) * degToRad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*degToRad)*math.Cos(b.Lat*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// IsWithinRadius reports whether b lies within radiusMeters of a.
func IsWithinRadius(a, b domain.Coordinates, radiusMeters float64) bool {
	return HaversineMeters(a, b) <= radiusMeters
}

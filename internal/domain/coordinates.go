package domain

import "math"

// Geographic point (latitude, longitude) in degrees.
type Coordinates struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Valid reports whether both coordinates are finite numbers.
func (c Coordinates) Valid() bool {
	return finite(c.Lat) && finite(c.Lng)
}

// Return coordinates as [lng, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lng, c.Lat} }

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

package geo

import (
	"testing"

	"rider-tracking-service/internal/domain"
)

func TestHaversineMeters(t *testing.T) {
	manila := domain.Coordinates{Lat: 14.5995, Lng: 120.9842}
	quezon := domain.Coordinates{Lat: 14.6760, Lng: 121.0437}

	d := HaversineMeters(manila, quezon)
	if d < 10500 || d > 10900 {
		t.Fatalf("distance = %.0fm, want about 10.7km", d)
	}

	if got := HaversineMeters(manila, manila); got != 0 {
		t.Fatalf("distance to self = %f, want 0", got)
	}
}

func TestIsWithinRadius(t *testing.T) {
	a := domain.Coordinates{Lat: 14.6, Lng: 121.0}
	near := domain.Coordinates{Lat: 14.6001, Lng: 121.0}
	far := domain.Coordinates{Lat: 14.61, Lng: 121.0}

	if !IsWithinRadius(a, near, 30) {
		t.Error("point ~11m away should be within 30m")
	}
	if IsWithinRadius(a, far, 30) {
		t.Error("point ~1.1km away should not be within 30m")
	}
}

package handlers

import (
	"net/http"
	"time"

	"rider-tracking-service/internal/adapters/geolocation"
	"rider-tracking-service/internal/api/dto"
	"rider-tracking-service/internal/domain"
)

// PositionHandler receives the device's geolocation updates.
type PositionHandler struct {
	Feed *geolocation.Feed
}

func (h *PositionHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req dto.PositionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fix := domain.Fix{
		Coordinates: domain.Coordinates{Lat: *req.Latitude, Lng: *req.Longitude},
		Accuracy:    req.Accuracy,
		Timestamp:   time.Now(),
	}
	if err := h.Feed.Publish(fix); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Deny records that the device refused location access.
func (h *PositionHandler) Deny(w http.ResponseWriter, r *http.Request) {
	h.Feed.Deny()
	w.WriteHeader(http.StatusAccepted)
}

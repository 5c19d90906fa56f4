package handlers

import (
	"net/http"
	"strings"

	"rider-tracking-service/internal/api/dto"
	"rider-tracking-service/internal/tracking"
)

// RiderHandler manages the session's rider identity.
type RiderHandler struct {
	Controller *tracking.Controller
	Engine     *tracking.RouteEngine
}

func (h *RiderHandler) Serve(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.put(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *RiderHandler) get(w http.ResponseWriter, r *http.Request) {
	id := h.Controller.RiderID()
	writeJSON(w, r, http.StatusOK, dto.RiderResponse{RiderID: id, Polling: id != ""})
}

func (h *RiderHandler) put(w http.ResponseWriter, r *http.Request) {
	var req dto.SetRiderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := strings.TrimSpace(req.RiderID)
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "rider_id is required")
		return
	}
	if id != h.Controller.RiderID() {
		// Routes belong to the previous rider's orders.
		h.Engine.Stop()
	}
	h.Controller.SetRider(id)

	writeJSON(w, r, http.StatusOK, dto.RiderResponse{RiderID: id, Polling: true})
}

func (h *RiderHandler) delete(w http.ResponseWriter, r *http.Request) {
	h.Engine.Stop()
	h.Controller.SetRider("")
	w.WriteHeader(http.StatusNoContent)
}

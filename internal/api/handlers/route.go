package handlers

import (
	"net/http"

	"rider-tracking-service/internal/tracking"
)

type RouteHandler struct {
	Engine *tracking.RouteEngine
}

func (h *RouteHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.Engine.Snapshot())
}

func (h *RouteHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.Engine.Stop()
	w.WriteHeader(http.StatusNoContent)
}

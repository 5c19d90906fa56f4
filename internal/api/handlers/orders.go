package handlers

import (
	"net/http"

	"rider-tracking-service/internal/api/dto"
	"rider-tracking-service/internal/tracking"
)

// OrderHandler exposes the active orders, their markers and marker actions.
type OrderHandler struct {
	Controller *tracking.Controller
	Markers    *tracking.MarkerLayer
	Dialog     *tracking.CancellationDialog
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	res := dto.OrdersResponse{
		View:     h.Controller.View(),
		Markers:  h.Markers.Markers(),
		Viewport: h.Markers.Viewport(),
	}
	writeJSON(w, r, http.StatusOK, res)
}

// Refresh triggers an immediate fetch outside the poll interval.
func (h *OrderHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.Controller.Refresh(r.Context()); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.List(w, r)
}

func (h *OrderHandler) Focus(w http.ResponseWriter, r *http.Request) {
	vp, err := h.Markers.Focus(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, vp)
}

func (h *OrderHandler) Action(w http.ResponseWriter, r *http.Request) {
	var req dto.ActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	action := tracking.Action(req.Action)
	if err := h.Markers.Dispatch(r.Context(), r.PathValue("id"), action); err != nil {
		writeDomainError(w, r, err)
		return
	}

	if action == tracking.ActionCancelDelivery {
		writeJSON(w, r, http.StatusOK, h.Dialog.State())
		return
	}
	writeJSON(w, r, http.StatusOK, dto.MessageResponse{Message: "ok"})
}

func (h *OrderHandler) Delivered(w http.ResponseWriter, r *http.Request) {
	if err := h.Controller.MarkDelivered(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.MessageResponse{Message: "ok"})
}

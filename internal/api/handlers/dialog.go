package handlers

import (
	"net/http"

	"rider-tracking-service/internal/api/dto"
	"rider-tracking-service/internal/domain"
	"rider-tracking-service/internal/tracking"
)

type DialogHandler struct {
	Dialog *tracking.CancellationDialog
}

func (h *DialogHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.Dialog.State())
}

func (h *DialogHandler) SelectReason(w http.ResponseWriter, r *http.Request) {
	var req dto.ReasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Dialog.Select(domain.CancelReason(req.Reason)); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.Dialog.State())
}

func (h *DialogHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if err := h.Dialog.Confirm(r.Context()); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.Dialog.State())
}

func (h *DialogHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.Dialog.Dismiss()
	writeJSON(w, r, http.StatusOK, h.Dialog.State())
}

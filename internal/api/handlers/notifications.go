package handlers

import (
	"net/http"
	"strconv"

	"rider-tracking-service/internal/api/dto"
	"rider-tracking-service/internal/notify"
)

type NotificationHandler struct {
	Feed *notify.Feed
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, r, http.StatusOK, dto.NotificationsResponse{Notifications: h.Feed.Recent(limit)})
}

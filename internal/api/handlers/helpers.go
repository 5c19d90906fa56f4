package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"rider-tracking-service/internal/domain"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("encode response failed")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// decodeJSON reads exactly one JSON object into dst and validates it.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	if err := validate(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// writeDomainError maps tracking errors onto HTTP responses. Upstream
// server messages are passed through verbatim.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var se *domain.ServerError
	var ne *domain.NetworkError

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, r, http.StatusNotFound, "order not found")
	case errors.Is(err, domain.ErrInvalidReason):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrActionNotAllowed),
		errors.Is(err, domain.ErrNoDialog),
		errors.Is(err, domain.ErrNoReasonSelected),
		errors.Is(err, domain.ErrNoRider):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPositionUnavailable):
		writeError(w, r, http.StatusUnprocessableEntity, domain.UserMessage(err))
	case errors.As(err, &se):
		writeError(w, r, http.StatusBadGateway, domain.UserMessage(err))
	case errors.As(err, &ne):
		writeError(w, r, http.StatusServiceUnavailable, domain.UserMessage(err))
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidReason       = errors.New("invalid cancel reason")
	ErrUnknownStatus       = errors.New("unknown order status")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrNoReasonSelected    = errors.New("no cancel reason selected")
	ErrNoDialog            = errors.New("cancellation dialog is not open")
	ErrActionNotAllowed    = errors.New("action not allowed for order status")
	ErrNoRider             = errors.New("no rider identity")
)

// NetworkError means a request never produced an HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response. Message is the server's message, shown verbatim.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// UserMessage returns the text shown to the rider for err.
func UserMessage(err error) string {
	var se *ServerError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}

	var ne *NetworkError
	if errors.As(err, &ne) {
		return "Unable to reach the server. Check your connection and try again."
	}

	if errors.Is(err, ErrPositionUnavailable) {
		return "Unable to get your current location. Allow location access and try again."
	}

	return err.Error()
}

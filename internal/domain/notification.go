package domain

import "time"

// Level classifies how a notification is presented to the rider.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	// LevelAlert blocks the rider until acknowledged.
	LevelAlert Level = "alert"
)

// Notification is a user-visible message raised by the tracking flow.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	OrderID   string    `json:"order_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

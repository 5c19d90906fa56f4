package dto

import (
	"rider-tracking-service/internal/domain"
	"rider-tracking-service/internal/tracking"
)

type SetRiderRequest struct {
	RiderID string `json:"rider_id" validate:"required"`
}

type RiderResponse struct {
	RiderID string `json:"rider_id"`
	Polling bool   `json:"polling"`
}

type OrdersResponse struct {
	tracking.View
	Markers  []tracking.Marker `json:"markers"`
	Viewport tracking.Viewport `json:"viewport"`
}

type ActionRequest struct {
	Action string `json:"action" validate:"required,oneof=start_delivery get_directions cancel_delivery"`
}

type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,oneof=redeliver_later failed_attempt"`
}

type PositionRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Accuracy  float64  `json:"accuracy" validate:"gte=0"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type NotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

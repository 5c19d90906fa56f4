package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order as seen by the rider.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// ActiveStatuses are the statuses the tracking flow polls for.
var ActiveStatuses = []Status{StatusAccepted, StatusInTransit}

// validTransitions lists the transitions a rider may request.
var validTransitions = map[Status][]Status{
	StatusAccepted:  {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusDelivered, StatusCancelled},
}

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseStatus maps upstream status vocabulary onto the canonical enum.
// Matching ignores case and accepts "-", " " or no separator inside "in_transit".
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)

	switch norm {
	case "pending":
		return StatusPending, nil
	case "accepted":
		return StatusAccepted, nil
	case "in_transit", "intransit":
		return StatusInTransit, nil
	case "delivered":
		return StatusDelivered, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	case "rejected":
		return StatusRejected, nil
	}

	return "", fmt.Errorf("parse status %q: %w", s, ErrUnknownStatus)
}

// CancelReason is the structured reason a rider gives when cancelling a delivery.
type CancelReason string

const (
	ReasonRedeliverLater CancelReason = "redeliver_later"
	ReasonFailedAttempt  CancelReason = "failed_attempt"
)

func (r CancelReason) Valid() bool {
	return r == ReasonRedeliverLater || r == ReasonFailedAttempt
}

// Item is a single order line.
type Item struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

// estimatedDeliveryWindow is added to the creation time to estimate delivery.
const estimatedDeliveryWindow = 30 * time.Minute

// Order is a customer purchase assigned to a rider.
// Destination is nil unless both delivery coordinates were present and finite.
type Order struct {
	ID               string          `json:"id"`
	Status           Status          `json:"status"`
	DeliveryFullName string          `json:"delivery_full_name"`
	DeliveryPhone    string          `json:"delivery_phone"`
	Destination      *Coordinates    `json:"destination,omitempty"`
	Items            []Item          `json:"items"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	CreatedAt        time.Time       `json:"created_at"`
}

// HasDestination reports whether the order can be placed on the map.
func (o Order) HasDestination() bool {
	return o.Destination != nil && o.Destination.Valid()
}

// MinutesAgo returns whole minutes elapsed since the order was created.
func (o Order) MinutesAgo(now time.Time) int {
	if o.CreatedAt.IsZero() || now.Before(o.CreatedAt) {
		return 0
	}
	return int(now.Sub(o.CreatedAt) / time.Minute)
}

func (o Order) EstimatedDeliveryAt() time.Time {
	if o.CreatedAt.IsZero() {
		return time.Time{}
	}
	return o.CreatedAt.Add(estimatedDeliveryWindow)
}

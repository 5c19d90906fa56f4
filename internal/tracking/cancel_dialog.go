package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"rider-tracking-service/internal/domain"
)

var errConfirmInFlight = errors.New("cancellation already being submitted")

// Canceller commits a cancellation.
type Canceller interface {
	CancelDelivery(ctx context.Context, orderID string, reason domain.CancelReason) error
}

type DialogState struct {
	Open       bool                `json:"open"`
	OrderID    string              `json:"order_id,omitempty"`
	Reason     domain.CancelReason `json:"reason,omitempty"`
	Submitting bool                `json:"submitting"`
	LastError  string              `json:"last_error,omitempty"`
}

// CancellationDialog holds a pending cancellation until the rider picks a
// reason and confirms. Dismissing it sends nothing.
type CancellationDialog struct {
	canceller Canceller

	mu    sync.Mutex
	state DialogState
}

func NewCancellationDialog(c Canceller) *CancellationDialog {
	return &CancellationDialog{canceller: c}
}

// Open starts a cancellation for orderID, discarding any previous selection.
func (d *CancellationDialog) Open(orderID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = DialogState{Open: true, OrderID: orderID}
}

func (d *CancellationDialog) Select(reason domain.CancelReason) error {
	if !reason.Valid() {
		return fmt.Errorf("select reason %q: %w", reason, domain.ErrInvalidReason)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.Open {
		return fmt.Errorf("select reason: %w", domain.ErrNoDialog)
	}
	d.state.Reason = reason
	return nil
}

// Confirm forwards the selection to the canceller. The dialog closes on
// success and stays open with the error on failure.
func (d *CancellationDialog) Confirm(ctx context.Context) error {
	d.mu.Lock()
	switch {
	case !d.state.Open:
		d.mu.Unlock()
		return fmt.Errorf("confirm cancellation: %w", domain.ErrNoDialog)
	case d.state.Reason == "":
		d.mu.Unlock()
		return fmt.Errorf("confirm cancellation: %w", domain.ErrNoReasonSelected)
	case d.state.Submitting:
		d.mu.Unlock()
		return fmt.Errorf("confirm cancellation: %w", errConfirmInFlight)
	}
	orderID, reason := d.state.OrderID, d.state.Reason
	d.state.Submitting = true
	d.state.LastError = ""
	d.mu.Unlock()

	err := d.canceller.CancelDelivery(ctx, orderID, reason)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.OrderID != orderID || !d.state.Open {
		// Reopened or dismissed while submitting.
		return err
	}
	d.state.Submitting = false
	if err != nil {
		d.state.LastError = domain.UserMessage(err)
		return err
	}
	d.state = DialogState{}
	return nil
}

// Dismiss closes the dialog without cancelling anything.
func (d *CancellationDialog) Dismiss() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = DialogState{}
}

func (d *CancellationDialog) State() DialogState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

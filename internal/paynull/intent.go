// Package paynull is a sandbox payment gateway for demos. Intents live in
// an injected Store; nothing is persisted and no money moves.
package paynull

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"
)

// Status of a payment intent.
type Status string

const (
	StatusRequiresConfirmation Status = "requires_confirmation"
	StatusSucceeded            Status = "succeeded"
	StatusCanceled             Status = "canceled"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusCanceled
}

var (
	// ErrNotFound - unknown or expired intent.
	ErrNotFound = errors.New("payment intent not found")
	// ErrInvalidTransition - the intent already reached another terminal state.
	ErrInvalidTransition = errors.New("invalid payment intent transition")
	// ErrValidation - bad request input.
	ErrValidation = errors.New("validation error")
)

// PaymentIntent is one simulated payment. Amount is in minor units.
type PaymentIntent struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// transition moves the intent to target. Repeating the current terminal
// state is a no-op; switching between terminal states is rejected.
func (pi *PaymentIntent) transition(target Status, now time.Time) error {
	switch {
	case pi.Status == target:
		return nil
	case pi.Status.Terminal():
		return fmt.Errorf("%w: intent %s is %s", ErrInvalidTransition, pi.ID, pi.Status)
	}
	pi.Status = target
	pi.UpdatedAt = now
	return nil
}

const (
	idPrefix   = "pi_"
	idLen      = 8
	idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// NewIntentID returns "pi_" followed by 8 random lowercase alphanumerics.
func NewIntentID() (string, error) {
	buf := make([]byte, idLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate intent id: %w", err)
	}
	// 256 % 36 != 0 leaves a slight bias, irrelevant for sandbox ids.
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return idPrefix + string(buf), nil
}

// errors.go - business errors of the service layer.
package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound - event, team, member or tracking record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden - the actor lacks the capability.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation - invalid input.
	ErrValidation = errors.New("validation error")
	// ErrMalformedPayload - no tracking id could be extracted from scanned text.
	ErrMalformedPayload = errors.New("malformed QR payload")
	// ErrWrongEvent - the code belongs to a different event.
	ErrWrongEvent = errors.New("QR code belongs to a different event")
	// ErrAlreadyScanned - the code was scanned before. Match with errors.As
	// against *AlreadyScannedError to get the original scan.
	ErrAlreadyScanned = errors.New("QR code already scanned")
)

// NotFoundError names the missing resource. Message is safe to show to
// clients; the error text keeps the ids for logs.
type NotFoundError struct {
	Message string
	detail  string
}

func notFound(message, format string, args ...any) error {
	return &NotFoundError{Message: message, detail: fmt.Sprintf(format, args...)}
}

func (e *NotFoundError) Error() string {
	return "not found: " + e.detail
}

// Is makes errors.Is(err, ErrNotFound) hold.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AlreadyScannedError carries the original scan for display.
type AlreadyScannedError struct {
	ScannedAt time.Time
	ScannedBy string
}

func (e *AlreadyScannedError) Error() string {
	return fmt.Sprintf("QR code already scanned at %s by %s", e.ScannedAt.Format(time.RFC3339), e.ScannedBy)
}

// Is makes errors.Is(err, ErrAlreadyScanned) hold.
func (e *AlreadyScannedError) Is(target error) bool {
	return target == ErrAlreadyScanned
}

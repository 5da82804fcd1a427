package notifications

import (
	"errors"
	"fmt"
)

// Store errors.
var (
	ErrQueueItemNotFound = errors.New("queue item not found")
	ErrQueueItemSent     = errors.New("queue item already sent")
	ErrQueueItemClaimed  = errors.New("queue item is being sent")
)

// ValidationError is bad input that retrying cannot fix.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsRetryable returns false.
func (e *ValidationError) IsRetryable() bool { return false }

// TransportError is any failure to hand a message to the SMS provider:
// network errors, timeouts, non-2xx responses and provider error payloads.
type TransportError struct {
	StatusCode int
	Cause      string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("sms transport %d: %s", e.StatusCode, e.Cause)
	}
	return "sms transport: " + e.Cause
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsRetryable returns true.
func (e *TransportError) IsRetryable() bool { return true }

// StoreError wraps a durable storage failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("queue store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ProjectionError is a failed update of the intake's notified flag.
// It is logged and never escalated.
type ProjectionError struct {
	IntakeID string
	Err      error
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("project notified flag on intake %s: %v", e.IntakeID, e.Err)
}

func (e *ProjectionError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth another delivery attempt.
// Unknown errors are retried.
func IsRetryable(err error) bool {
	var r interface{ IsRetryable() bool }
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return true
}

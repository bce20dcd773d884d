package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrSelfReference = errors.New("cannot target yourself")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidType   = errors.New("invalid message type")
	ErrInvalidStatus = errors.New("invalid status")
)

// InvalidStateError is returned when the target is in a state incompatible
// with the requested transition
type InvalidStateError struct {
	Reason  string
	Current string
}

func (e *InvalidStateError) Error() string {
	if e.Current == "" {
		return "invalid state: " + e.Reason
	}
	return fmt.Sprintf("invalid state: %s (current: %s)", e.Reason, e.Current)
}

// ValidationError carries the offending field and reason
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// QuotaExceededError carries the next quota reset time
type QuotaExceededError struct {
	ResetAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily like quota exceeded, resets at %s", e.ResetAt.UTC().Format(time.RFC3339))
}

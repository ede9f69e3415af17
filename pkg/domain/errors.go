package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by record and query services. Match with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrIntegrityViolation = errors.New("integrity violation")
	ErrIllegalState       = errors.New("illegal state")
	ErrAuthFailed         = errors.New("authentication failed")
	ErrStore              = errors.New("store error")
)

// NotFoundError reports a missing referenced document.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidInputError reports a missing, malformed or out-of-range field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// Is matches ErrInvalidInput.
func (e InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// IntegrityError reports a uniqueness or referential rule breach detected
// outside the rules engine.
type IntegrityError struct {
	Entity EntityType
	Reason string
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("%s integrity violation: %s", e.Entity, e.Reason)
}

// Is matches ErrIntegrityViolation.
func (e IntegrityError) Is(target error) bool { return target == ErrIntegrityViolation }

// IllegalStateError reports an operation not allowed in the document's current state.
type IllegalStateError struct {
	Entity EntityType
	ID     string
	State  string
	Reason string
}

func (e IllegalStateError) Error() string {
	return fmt.Sprintf("%s %s in state %q: %s", e.Entity, e.ID, e.State, e.Reason)
}

// Is matches ErrIllegalState.
func (e IllegalStateError) Is(target error) bool { return target == ErrIllegalState }

// StoreError wraps an underlying persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap exposes the backend error.
func (e StoreError) Unwrap() error { return e.Err }

// Is matches ErrStore.
func (e StoreError) Is(target error) bool { return target == ErrStore }

// Package services defines the business logic of the licensing registry.
// This file centralizes the service-level error taxonomy so that every
// operation returns the same sentinels and callers match them with
// errors.Is.
//
// Translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input. Nothing is persisted.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is returned when the actor is not allowed to mutate
	// the record (not its creator, or not a moderator).
	ErrUnauthorized = errors.New("actor is not authorized for this content")

	// ErrNotFound covers unknown ids and tombstoned records.
	ErrNotFound = errors.New("content not found")

	// ErrInactive is returned when content exists but is not purchasable
	// (toggled off or under a moderation flag).
	ErrInactive = errors.New("content is not purchasable")

	// ErrAlreadyOwned is returned for a second purchase of the same content
	// by the same buyer.
	ErrAlreadyOwned = errors.New("content already owned")

	// ErrInsufficientPayment is returned when the payment is below price.
	ErrInsufficientPayment = errors.New("payment below price")

	// ErrSelfPurchase is returned when a creator tries to buy their own
	// content.
	ErrSelfPurchase = errors.New("creator cannot purchase own content")

	// ErrAccessDenied is returned when a principal asks for a gated handle
	// without entitlement.
	ErrAccessDenied = errors.New("access denied")
)

// ValidationError carries field-level details (typically ozzo
// validation.Errors) and matches ErrValidation.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", ErrValidation, e.Err)
}

// Unwrap exposes both the sentinel and the detail error.
func (e *ValidationError) Unwrap() []error { return []error{ErrValidation, e.Err} }

// invalid wraps err as a ValidationError; nil stays nil.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}

// invalidf builds a ValidationError from a message.
func invalidf(format string, args ...any) error {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

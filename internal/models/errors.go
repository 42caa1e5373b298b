package models

import "errors"

var (
	// ErrValidation covers malformed intents: missing amount, currency or
	// payment method. Rejected before any network call.
	ErrValidation = errors.New("invalid payment request")

	// ErrUnsupportedPaymentMethod is returned for method strings outside the
	// enumerated gateway table.
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")

	// ErrInvalidSignature marks a webhook whose signature did not verify.
	// State is never touched when it is returned.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrStateConflict marks an attempted transition out of a terminal state.
	ErrStateConflict = errors.New("payment state conflict")

	ErrPaymentNotFound = errors.New("payment not found")
)

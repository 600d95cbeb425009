package domain

import (
	"errors"
	"fmt"
)

// Categories. Transport maps each of these to one HTTP status.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Token outcomes carry their own codes.
var (
	ErrInvalidCode  = errors.New("invalid code")
	ErrTokenRevoked = errors.New("code revoked")
	ErrTokenUsed    = errors.New("code already used")
	ErrTokenExpired = errors.New("code expired")
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrUnitTaken          = fmt.Errorf("%w: calendar unit already claimed", ErrConflict)
	ErrInvalidTransition  = fmt.Errorf("%w: invalid listing transition", ErrConflict)
	ErrListingClosed      = fmt.Errorf("%w: listing not available", ErrConflict)
	ErrSellerChanged      = fmt.Errorf("%w: seller no longer owns the claim", ErrConflict)
	ErrSellerNotPayable   = fmt.Errorf("%w: seller cannot receive payouts", ErrConflict)
	ErrPaymentIncomplete  = fmt.Errorf("%w: payment not completed", ErrValidation)
	ErrNotOwner           = fmt.Errorf("%w: not the current owner", ErrForbidden)
)

// Invalid wraps ErrValidation with a field-specific message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

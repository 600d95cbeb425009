package impl

import "parcels/internal/domain"

var (
	ErrEmptyPassword  = domain.Invalid("empty password")
	ErrEmptyEmail     = domain.Invalid("email is required")
	ErrInvalidEmail   = domain.Invalid("malformed email address")
	ErrPasswordLength = domain.Invalid("password must be at least %d characters", minPasswordLen)
	ErrPriceTooLow    = domain.Invalid("price below the listing minimum")
)

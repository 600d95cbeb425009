package service

import (
	"context"

	"parcels/internal/domain"
	"parcels/internal/dto"
)

type AuthService interface {
	Signup(ctx context.Context, r dto.SignupRequest) (*domain.Owner, error)
	Login(ctx context.Context, r dto.LoginRequest) (*domain.Owner, error)
	// RequestPasswordReset never reports whether the address is registered.
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, r dto.ResetPasswordRequest) error
	RequestLoginCode(ctx context.Context, email string) error
	VerifyLoginCode(ctx context.Context, r dto.LoginCodeVerifyRequest) (*domain.Owner, error)
	Profile(ctx context.Context, owner domain.OwnerID) (*dto.OwnerResponse, error)
	UpdateProfile(ctx context.Context, owner domain.OwnerID, r dto.ProfileUpdateRequest) (*dto.OwnerResponse, error)
}

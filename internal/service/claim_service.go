package service

import (
	"context"

	"parcels/internal/domain"
	"parcels/internal/dto"
)

type ClaimService interface {
	PublicView(ctx context.Context, unit string) (*dto.ClaimView, error)
	Availability(ctx context.Context, unit string) (*dto.Availability, error)
	Update(ctx context.Context, owner domain.OwnerID, unit string, r dto.ClaimUpdateRequest) (*dto.OwnedClaim, error)
	ListMine(ctx context.Context, owner domain.OwnerID) ([]dto.OwnedClaim, error)
	Registry(ctx context.Context, q dto.RegistryQuery) (*dto.RegistryPage, error)
	Certificate(ctx context.Context, unit, acceptLanguage string) (*dto.Certificate, error)
	Release(ctx context.Context, owner domain.OwnerID, unit string) error
	// OperatorRelease releases a claim regardless of its owner.
	OperatorRelease(ctx context.Context, unit string) (*domain.Claim, error)
}

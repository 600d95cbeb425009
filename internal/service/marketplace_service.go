package service

import (
	"context"

	"parcels/internal/domain"
	"parcels/internal/dto"
)

type MarketplaceService interface {
	UpsertListing(ctx context.Context, seller domain.OwnerID, r dto.ListingRequest) (*dto.ListingView, error)
	ChangeStatus(ctx context.Context, seller domain.OwnerID, listingID string, r dto.ListingStatusRequest) (*dto.ListingView, error)
	ListActive(ctx context.Context, cursor string, limit int) (*dto.ListingPage, error)
	StartCheckout(ctx context.Context, buyerEmail string, r dto.MarketplaceCheckoutRequest) (*dto.CheckoutResponse, error)
	OnboardPayouts(ctx context.Context, owner domain.OwnerID) (*dto.OnboardResponse, error)
}

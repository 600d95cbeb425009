package service

import (
	"context"

	"parcels/internal/domain"
	"parcels/internal/dto"
)

type TransferService interface {
	IssueCode(ctx context.Context, owner domain.OwnerID, unit string) (*dto.TransferCodeResponse, error)
	Redeem(ctx context.Context, caller domain.OwnerID, r dto.TransferRequest, ip, ua string) (*dto.TransferResponse, error)
}

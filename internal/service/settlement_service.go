package service

import (
	"context"

	"parcels/internal/dto"
)

type SettlementService interface {
	StartCheckout(ctx context.Context, r dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	// ConfirmCheckout settles a completed checkout session. Replays are reported
	// as duplicates and have no side effects.
	ConfirmCheckout(ctx context.Context, sessionID string) (*dto.SettlementResult, error)
	// HandleWebhook returns an error only when the provider should redeliver,
	// or payment.ErrInvalidSignature / payment.ErrMalformedEvent.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

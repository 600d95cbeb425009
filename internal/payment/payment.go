// Package payment is the boundary to the hosted checkout provider.
package payment

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	ErrMalformedEvent   = errors.New("payment: malformed webhook event")
	ErrSessionNotFound  = errors.New("payment: checkout session not found")
)

// Checkout kinds carried in session metadata.
const (
	KindClaim   = "claim"
	KindListing = "listing"
)

const MetaKind = "kind"

type CheckoutRequest struct {
	Kind        string
	Email       string
	Amount      int64
	Currency    string
	ProductName string
	Metadata    map[string]string
	SuccessURL  string
	CancelURL   string

	// Marketplace sales route the remainder to the seller.
	ApplicationFee int64
	Destination    string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// Payment is a checkout session as seen after the buyer returns.
type Payment struct {
	SessionID string
	Paid      bool
	Email     string
	Amount    int64
	Currency  string
	Metadata  map[string]string
}

func (p *Payment) Kind() string { return p.Metadata[MetaKind] }

// Event is a verified webhook delivery. Payment is set for completed checkouts.
type Event struct {
	ID      string
	Type    string
	Payment *Payment
}

type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetPayment(ctx context.Context, sessionID string) (*Payment, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
	CreateConnectedAccount(ctx context.Context, email string) (string, error)
	CreateOnboardingLink(ctx context.Context, account, refreshURL, returnURL string) (string, error)
}

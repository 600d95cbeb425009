package impl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"parcels/internal/domain"
	"parcels/internal/dto"
	obsmw "parcels/internal/observability/middleware"
	"parcels/internal/observability/metrics"
	"parcels/internal/payment"
	"parcels/internal/service"
	"parcels/internal/store"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type MarketplaceServiceImpl struct {
	*Deps
}

var _ service.MarketplaceService = (*MarketplaceServiceImpl)(nil)

func NewMarketplaceService(d *Deps) *MarketplaceServiceImpl {
	return &MarketplaceServiceImpl{Deps: d}
}

// UpsertListing creates the seller's listing for a unit or reprices the open one.
func (m *MarketplaceServiceImpl) UpsertListing(ctx context.Context, seller domain.OwnerID, r dto.ListingRequest) (*dto.ListingView, error) {
	action := "create"
	view, err := m.upsertListing(ctx, seller, r, &action)
	metrics.ListingActionsTotal.WithLabelValues(action, metrics.Result(err)).Inc()
	return view, err
}

func (m *MarketplaceServiceImpl) upsertListing(ctx context.Context, seller domain.OwnerID, r dto.ListingRequest, action *string) (*dto.ListingView, error) {
	unit, err := domain.ParseUnit(r.Unit)
	if err != nil {
		return nil, err
	}
	if r.Price < m.Pricing.ListingMin {
		return nil, ErrPriceTooLow
	}

	var out *domain.Listing
	err = m.Store.WithTx(ctx, func(tx *store.Store) error {
		c, err := tx.Claims().GetByTSForUpdate(ctx, unit.TS)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return fmt.Errorf("%w: claim", domain.ErrNotFound)
			}
			return err
		}
		if c.OwnerID != seller {
			return domain.ErrNotOwner
		}
		open, err := tx.Listings().LockOpenBySeller(ctx, unit.TS, seller)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			*action = "update"
			l := open[0]
			if err := tx.Listings().UpdatePrice(ctx, l.ID, r.Price, m.Pricing.Currency); err != nil {
				return err
			}
			l.Price, l.Currency = r.Price, m.Pricing.Currency
			out = &l
			return nil
		}
		l := &domain.Listing{
			ClaimID:     c.ID,
			TS:          c.TS,
			Granularity: c.Granularity,
			SellerID:    seller,
			Price:       r.Price,
			Currency:    m.Pricing.Currency,
			Status:      domain.ListingActive,
		}
		if err := tx.Listings().Create(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	v := listingView(out)
	return &v, nil
}

// ChangeStatus applies a seller action. The seller must still own the claim.
func (m *MarketplaceServiceImpl) ChangeStatus(ctx context.Context, seller domain.OwnerID, listingID string, r dto.ListingStatusRequest) (*dto.ListingView, error) {
	action, err := domain.ParseListingAction(r.Action)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(strings.TrimSpace(listingID))
	if err != nil {
		return nil, domain.Invalid("malformed listing id")
	}

	var out *domain.Listing
	err = m.Store.WithTx(ctx, func(tx *store.Store) error {
		l, c, err := lockListing(ctx, tx, id)
		if err != nil {
			return err
		}
		if l.SellerID != seller {
			return fmt.Errorf("%w: not the seller", domain.ErrForbidden)
		}
		if c == nil || c.OwnerID != seller {
			return domain.ErrNotOwner
		}
		next, err := domain.Transition(l.Status, action)
		if err != nil {
			return err
		}
		if err := tx.Listings().SetStatus(ctx, l.ID, next); err != nil {
			return err
		}
		l.Status = next
		out = l
		return nil
	})
	metrics.ListingActionsTotal.WithLabelValues(string(action), metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	obsmw.Logger(ctx).Info("listing status changed", "listing_id", out.ID.String(), "status", string(out.Status))
	v := listingView(out)
	return &v, nil
}

func (m *MarketplaceServiceImpl) ListActive(ctx context.Context, cursor string, limit int) (*dto.ListingPage, error) {
	after, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.Invalid("malformed cursor")
	}
	limit = pageSize(limit)
	rows, err := m.Store.Listings().ListActive(ctx, after, limit+1)
	if err != nil {
		return nil, err
	}
	page := &dto.ListingPage{Items: make([]dto.ListingView, 0, len(rows))}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		page.NextCursor = store.Cursor{TS: last.TS, ID: last.ID}.Encode()
	}
	for i := range rows {
		page.Items = append(page.Items, listingView(&rows[i]))
	}
	return page, nil
}

// StartCheckout opens a checkout for an active listing. The commission is
// withheld as an application fee and the rest goes to the seller's account.
func (m *MarketplaceServiceImpl) StartCheckout(ctx context.Context, buyerEmail string, r dto.MarketplaceCheckoutRequest) (*dto.CheckoutResponse, error) {
	id, err := uuid.Parse(strings.TrimSpace(r.ListingID))
	if err != nil {
		return nil, domain.Invalid("malformed listing id")
	}
	email, err := validEmail(buyerEmail)
	if err != nil {
		return nil, err
	}
	l, err := m.Store.Listings().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: listing", domain.ErrNotFound)
		}
		return nil, err
	}
	if l.Status != domain.ListingActive {
		return nil, domain.ErrListingClosed
	}
	seller, err := m.Store.Owners().GetByID(ctx, l.SellerID)
	if err != nil {
		return nil, err
	}
	if seller.Email == email {
		return nil, fmt.Errorf("%w: cannot buy your own listing", domain.ErrConflict)
	}
	if seller.PayoutAccountID == nil || *seller.PayoutAccountID == "" {
		return nil, domain.ErrSellerNotPayable
	}
	unit := l.Unit()
	sess, err := m.Payments.CreateCheckout(ctx, payment.CheckoutRequest{
		Kind:        payment.KindListing,
		Email:       email,
		Amount:      l.Price,
		Currency:    l.Currency,
		ProductName: "Parcel of time " + unit.Key(),
		Metadata: map[string]string{
			metaListingID: l.ID.String(),
			metaEmail:     email,
			metaUnit:      unit.Key(),
		},
		SuccessURL:     m.url("/checkout/confirm?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:      m.url("/marketplace"),
		ApplicationFee: domain.Commission(l.Price, m.Pricing.CommissionBPS, m.Pricing.CommissionMin),
		Destination:    *seller.PayoutAccountID,
	})
	if err != nil {
		return nil, err
	}
	return &dto.CheckoutResponse{SessionID: sess.ID, URL: sess.URL}, nil
}

// OnboardPayouts creates the owner's connected account on first use and
// returns a fresh onboarding link.
func (m *MarketplaceServiceImpl) OnboardPayouts(ctx context.Context, ownerID domain.OwnerID) (*dto.OnboardResponse, error) {
	owner, err := m.Store.Owners().GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	account := ""
	if owner.PayoutAccountID != nil {
		account = *owner.PayoutAccountID
	}
	if account == "" {
		if account, err = m.Payments.CreateConnectedAccount(ctx, owner.Email); err != nil {
			return nil, err
		}
		if err := m.Store.Owners().SetPayoutAccount(ctx, owner.ID, account); err != nil {
			return nil, err
		}
		// A concurrent onboarding may have won; use whatever is stored.
		if owner, err = m.Store.Owners().GetByID(ctx, ownerID); err != nil {
			return nil, err
		}
		account = *owner.PayoutAccountID
	}
	link, err := m.Payments.CreateOnboardingLink(ctx, account, m.url("/me/payouts/onboard"), m.url("/me"))
	if err != nil {
		return nil, err
	}
	return &dto.OnboardResponse{URL: link}, nil
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	}
	return limit
}

func listingView(l *domain.Listing) dto.ListingView {
	return dto.ListingView{
		ID:        l.ID.String(),
		ClaimID:   l.ClaimID.String(),
		Unit:      l.Unit().Key(),
		Price:     l.Price,
		Currency:  l.Currency,
		Status:    string(l.Status),
		CreatedAt: l.CreatedAt,
	}
}

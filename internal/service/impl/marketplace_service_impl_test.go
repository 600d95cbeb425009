package impl

import (
	"context"
	"testing"

	"parcels/internal/domain"
	"parcels/internal/dto"
	"parcels/internal/events"
	"parcels/internal/mail"
	"parcels/internal/payment"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.buy(t, "2030-05-01", "alice@example.com")
	alice := f.owner(t, "alice@example.com")

	l, err := f.market.UpsertListing(ctx, alice.ID, dto.ListingRequest{Unit: "2030-05-01", Price: 1000})
	require.NoError(t, err)
	assert.Equal(t, "active", l.Status)
	assert.Equal(t, "2030-05-01", l.Unit)

	again, err := f.market.UpsertListing(ctx, alice.ID, dto.ListingRequest{Unit: "2030-05-01", Price: 1500})
	require.NoError(t, err)
	assert.Equal(t, l.ID, again.ID)
	assert.Equal(t, int64(1500), again.Price)

	steps := []struct {
		action string
		want   string
	}{
		{"pause", "paused"},
		{"resume", "active"},
		{"pause", "paused"},
		{"cancel", "cancelled"},
	}
	for _, s := range steps {
		got, err := f.market.ChangeStatus(ctx, alice.ID, l.ID, dto.ListingStatusRequest{Action: s.action})
		require.NoError(t, err, s.action)
		assert.Equal(t, s.want, got.Status)
	}

	_, err = f.market.ChangeStatus(ctx, alice.ID, l.ID, dto.ListingStatusRequest{Action: "resume"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.market.ChangeStatus(ctx, alice.ID, l.ID, dto.ListingStatusRequest{Action: "sell"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// A cancelled listing no longer blocks a new one.
	fresh, err := f.market.UpsertListing(ctx, alice.ID, dto.ListingRequest{Unit: "2030-05-01", Price: 700})
	require.NoError(t, err)
	assert.NotEqual(t, l.ID, fresh.ID)
}

func TestUpsertListingRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.buy(t, "2030-05-01", "alice@example.com")
	alice := f.owner(t, "alice@example.com")
	bob := f.newOwner(t, "bob@example.com")

	_, err := f.market.UpsertListing(ctx, alice.ID, dto.ListingRequest{Unit: "2030-05-01", Price: 99})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.market.UpsertListing(ctx, bob.ID, dto.ListingRequest{Unit: "2030-05-01", Price: 1000})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.market.UpsertListing(ctx, alice.ID, dto.ListingRequest{Unit: "2030-05-02", Price: 1000})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	l, err := f.market.UpsertListing(ctx, alice.ID, dto.ListingRequest{Unit: "2030-05-01", Price: 100})
	require.NoError(t, err)
	_, err = f.market.ChangeStatus(ctx, bob.ID, l.ID, dto.ListingStatusRequest{Action: "pause"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.market.ChangeStatus(ctx, alice.ID, uuid.NewString(), dto.ListingStatusRequest{Action: "pause"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListActivePages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	units := []string{"2030-05-03", "2030-05-01", "2030-05-02"}
	for _, u := range units {
		f.buy(t, u, "alice@example.com")
	}
	alice := f.owner(t, "alice@example.com")
	for _, u := range units {
		_, err := f.market.UpsertListing(ctx, alice.ID, dto.ListingRequest{Unit: u, Price: 500})
		require.NoError(t, err)
	}

	first, err := f.market.ListActive(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "2030-05-01", first.Items[0].Unit)
	assert.Equal(t, "2030-05-02", first.Items[1].Unit)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.market.ListActive(ctx, first.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "2030-05-03", second.Items[0].Unit)
	assert.Empty(t, second.NextCursor)

	_, err = f.market.ListActive(ctx, "%%%", 2)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMarketplaceSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.buy(t, "2030-05-01", "alice@example.com", asPublic)
	alice := f.owner(t, "alice@example.com")

	l, err := f.market.UpsertListing(ctx, alice.ID, dto.ListingRequest{Unit: "2030-05-01", Price: 1000})
	require.NoError(t, err)
	_, err = f.transfers.IssueCode(ctx, alice.ID, "2030-05-01")
	require.NoError(t, err)

	req := dto.MarketplaceCheckoutRequest{ListingID: l.ID}
	_, err = f.market.StartCheckout(ctx, "bob@example.com", req)
	assert.ErrorIs(t, err, domain.ErrSellerNotPayable)

	onboard, err := f.market.OnboardPayouts(ctx, alice.ID)
	require.NoError(t, err)
	assert.Contains(t, onboard.URL, "acct_test_1")
	_, err = f.market.OnboardPayouts(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, f.pay.Accounts, 1)

	_, err = f.market.StartCheckout(ctx, "alice@example.com", req)
	assert.ErrorIs(t, err, domain.ErrConflict)

	resp, err := f.market.StartCheckout(ctx, "bob@example.com", req)
	require.NoError(t, err)
	sent := f.pay.Requests[len(f.pay.Requests)-1]
	assert.Equal(t, payment.KindListing, sent.Kind)
	assert.Equal(t, int64(1000), sent.Amount)
	assert.Equal(t, int64(100), sent.ApplicationFee)
	assert.Equal(t, "acct_test_1", sent.Destination)

	f.pay.Complete(resp.SessionID)
	res, err := f.settlement.ConfirmCheckout(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, payment.KindListing, res.Kind)

	bob := f.owner(t, "bob@example.com")
	c := f.claim(t, "2030-05-01")
	assert.Equal(t, bob.ID, c.OwnerID)
	assert.Equal(t, res.CertHash, c.CertHash)

	sold, err := f.store.Listings().GetByID(ctx, uuid.MustParse(l.ID))
	require.NoError(t, err)
	assert.Equal(t, domain.ListingSold, sold.Status)
	require.NotNil(t, sold.BuyerID)
	assert.Equal(t, bob.ID, *sold.BuyerID)

	tokens, err := f.store.TransferTokens().ListByClaim(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.True(t, tokens[0].IsRevoked)

	hist, err := f.store.History().ListByClaim(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, domain.TransferKindSale, hist[0].Kind)

	page, err := f.claims.Registry(ctx, dto.RegistryQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	assert.Len(t, f.mail.ByTemplate(mail.TemplateSaleSeller), 1)
	assert.Len(t, f.mail.ByTemplate(mail.TemplateSaleBuyer), 1)
	assert.Contains(t, f.events.Subjects(), events.SubjectListingSold)

	replay, err := f.settlement.ConfirmCheckout(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.True(t, replay.Duplicate)
	assert.Len(t, f.mail.ByTemplate(mail.TemplateSaleBuyer), 1)
}

func TestSaleFailsWhenSellerNoLongerOwns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.buy(t, "2030-05-01", "alice@example.com")
	alice := f.owner(t, "alice@example.com")
	carol := f.newOwner(t, "carol@example.com")

	l, err := f.market.UpsertListing(ctx, alice.ID, dto.ListingRequest{Unit: "2030-05-01", Price: 1000})
	require.NoError(t, err)
	_, err = f.market.OnboardPayouts(ctx, alice.ID)
	require.NoError(t, err)
	resp, err := f.market.StartCheckout(ctx, "bob@example.com", dto.MarketplaceCheckoutRequest{ListingID: l.ID})
	require.NoError(t, err)

	issued, err := f.transfers.IssueCode(ctx, alice.ID, "2030-05-01")
	require.NoError(t, err)
	_, err = f.transfers.Redeem(ctx, carol.ID, dto.TransferRequest{ClaimID: issued.ClaimID, CertHash: issued.CertHash, Code: issued.Code}, "", "")
	require.NoError(t, err)

	f.pay.Complete(resp.SessionID)
	_, err = f.settlement.ConfirmCheckout(ctx, resp.SessionID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, carol.ID, f.claim(t, "2030-05-01").OwnerID)
}

package impl

import (
	"context"
	"testing"
	"time"

	"parcels/internal/certificate"
	"parcels/internal/codes"
	"parcels/internal/domain"
	"parcels/internal/dto"
	"parcels/internal/events"
	"parcels/internal/mail"
	"parcels/internal/mail/mailtest"
	"parcels/internal/payment/paymenttest"
	"parcels/internal/store"
	"parcels/internal/store/storetest"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *store.Store
	pay    *paymenttest.Fake
	mail   *mailtest.Recorder
	events *events.Recorder
	deps   *Deps
	clock  time.Time

	settlement *SettlementServiceImpl
	transfers  *TransferServiceImpl
	market     *MarketplaceServiceImpl
	claims     *ClaimServiceImpl
	auth       *AuthServiceImpl
}

// cheapPasswords keeps argon2 fast in tests.
func cheapPasswords() *PasswordServiceImpl {
	return NewPasswordService(1, Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, storetest.Open(t))
}

func newFixtureOn(t *testing.T, st *store.Store) *fixture {
	t.Helper()
	hasher, err := certificate.NewHasher("test-hash-secret")
	require.NoError(t, err)

	f := &fixture{
		store:  st,
		pay:    paymenttest.New(),
		mail:   &mailtest.Recorder{},
		events: &events.Recorder{},
		clock:  time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	f.deps = &Deps{
		Store:    f.store,
		Payments: f.pay,
		Mailer:   mail.NewMailer(f.mail),
		Events:   f.events,
		Hasher:   hasher,
		Keyer:    codes.NewKeyer("test-code-key"),
		Renderer: certificate.NewRenderer(""),
		Pricing: Pricing{
			Currency:      "usd",
			Day:           500,
			Minute:        200,
			ListingMin:    100,
			CommissionBPS: 1000,
			CommissionMin: 50,
		},
		BaseURL:      "https://parcels.test",
		ResetTTL:     time.Hour,
		LoginCodeTTL: 10 * time.Minute,
		Now:          func() time.Time { return f.clock },
	}
	f.settlement = NewSettlementService(f.deps)
	f.transfers = NewTransferService(f.deps)
	f.market = NewMarketplaceService(f.deps)
	f.claims = NewClaimService(f.deps)
	f.auth = NewAuthService(f.deps, cheapPasswords())
	return f
}

// startCheckout opens a claim checkout and marks it paid without confirming it.
func (f *fixture) startCheckout(t *testing.T, r dto.CheckoutRequest) string {
	t.Helper()
	resp, err := f.settlement.StartCheckout(context.Background(), r)
	require.NoError(t, err)
	require.NotNil(t, f.pay.Complete(resp.SessionID))
	return resp.SessionID
}

// buy runs a full claim purchase for unit and returns the settlement.
func (f *fixture) buy(t *testing.T, unit, email string, opts ...func(*dto.CheckoutRequest)) *dto.SettlementResult {
	t.Helper()
	r := dto.CheckoutRequest{Unit: unit, Email: email, Title: "hello"}
	for _, o := range opts {
		o(&r)
	}
	sid := f.startCheckout(t, r)
	res, err := f.settlement.ConfirmCheckout(context.Background(), sid)
	require.NoError(t, err)
	return res
}

func (f *fixture) owner(t *testing.T, email string) *domain.Owner {
	t.Helper()
	o, err := f.store.Owners().GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return o
}

func (f *fixture) claim(t *testing.T, unit string) *domain.Claim {
	t.Helper()
	u, err := domain.ParseUnit(unit)
	require.NoError(t, err)
	c, err := f.store.Claims().GetByTS(context.Background(), u.TS)
	require.NoError(t, err)
	return c
}

func asGift(r *dto.CheckoutRequest)   { r.Gift = true }
func asPublic(r *dto.CheckoutRequest) { r.Public = true }

package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"parcels/internal/certificate"
	"parcels/internal/codes"
	"parcels/internal/domain"
	"parcels/internal/dto"
	"parcels/internal/events"
	"parcels/internal/mail"
	"parcels/internal/mail/mailtest"
	"parcels/internal/payment"
	"parcels/internal/payment/paymenttest"
	"parcels/internal/service/impl"
	"parcels/internal/session"
	"parcels/internal/store"
	"parcels/internal/store/storetest"
	httptransport "parcels/internal/transport/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler  http.Handler
	store    *store.Store
	pay      *paymenttest.Fake
	mail     *mailtest.Recorder
	sessions *session.Manager
}

func newServer(t *testing.T, mutate ...func(*httptransport.Options)) *testServer {
	t.Helper()
	hasher, err := certificate.NewHasher("test-hash-secret")
	require.NoError(t, err)

	ts := &testServer{
		store: storetest.Open(t),
		pay:   paymenttest.New(),
		mail:  &mailtest.Recorder{},
		sessions: session.NewManager(session.Config{
			Secret: []byte("0123456789abcdef0123456789abcdef"),
			TTL:    time.Hour,
		}),
	}
	deps := &impl.Deps{
		Store:    ts.store,
		Payments: ts.pay,
		Mailer:   mail.NewMailer(ts.mail),
		Events:   &events.Recorder{},
		Hasher:   hasher,
		Keyer:    codes.NewKeyer("test-code-key"),
		Renderer: certificate.NewRenderer(""),
		Pricing: impl.Pricing{
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
	}
	pw := impl.NewPasswordService(1, impl.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	opts := httptransport.Options{
		Services: httptransport.Services{
			Auth:        impl.NewAuthService(deps, pw),
			Settlement:  impl.NewSettlementService(deps),
			Transfers:   impl.NewTransferService(deps),
			Marketplace: impl.NewMarketplaceService(deps),
			Claims:      impl.NewClaimService(deps),
		},
		Sessions:   ts.sessions,
		BaseURL:    "https://parcels.test",
		AuthLimit:  100,
		AuthWindow: time.Minute,
		Health:     ts.store.Ping,
	}
	for _, m := range mutate {
		m(&opts)
	}
	ts.handler = httptransport.NewRouter(opts)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// buy runs checkout, payment and the confirm redirect for unit.
func (ts *testServer) buy(t *testing.T, unit, email string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/checkout", dto.CheckoutRequest{Unit: unit, Email: email, Title: "hello"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var co dto.CheckoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &co))
	require.NotNil(t, ts.pay.Complete(co.SessionID))

	rec = ts.do(t, http.MethodGet, "/checkout/confirm?session_id="+co.SessionID, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "https://parcels.test/day/"+unit, rec.Header().Get("Location"))
}

// cookieFor signs a session for an existing owner.
func (ts *testServer) cookieFor(t *testing.T, email string) *http.Cookie {
	t.Helper()
	o, err := ts.store.Owners().GetByEmail(context.Background(), email)
	require.NoError(t, err)
	tok, err := ts.sessions.Sign(o)
	require.NoError(t, err)
	return &http.Cookie{Name: session.CookieName, Value: tok}
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error.Code
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	ts := newServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	down := newServer(t, func(o *httptransport.Options) {
		o.Health = func(context.Context) error { return errors.New("db down") }
	})
	rec = down.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCheckoutConfirmAndPublicView(t *testing.T) {
	ts := newServer(t)
	ts.buy(t, "2031-05-01", "alice@example.com")

	rec := ts.do(t, http.MethodGet, "/day/2031-05-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[dto.ClaimView](t, rec)
	assert.Equal(t, "hello", view.Title)
	assert.Equal(t, "https://parcels.test/cert/2031-05-01", view.CertURL)

	rec = ts.do(t, http.MethodGet, "/availability/2031-05-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[dto.Availability](t, rec).Available)

	rec = ts.do(t, http.MethodGet, "/availability/2031-05-02", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	avail := decode[dto.Availability](t, rec)
	assert.True(t, avail.Available)
	assert.EqualValues(t, 500, avail.Price)
}

func TestCheckoutErrors(t *testing.T) {
	ts := newServer(t)
	ts.buy(t, "2031-05-01", "alice@example.com")

	rec := ts.do(t, http.MethodPost, "/checkout", dto.CheckoutRequest{Unit: "2031-05-01", Email: "bob@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorCode(t, rec))

	rec = ts.do(t, http.MethodPost, "/checkout", dto.CheckoutRequest{Unit: "not-a-day", Email: "bob@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorCode(t, rec))

	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rec = ts.do(t, http.MethodGet, "/checkout/confirm?session_id=cs_missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}

func TestCheckoutConfirmReplayRedirects(t *testing.T) {
	ts := newServer(t)
	rec := ts.do(t, http.MethodPost, "/checkout", dto.CheckoutRequest{Unit: "2031-05-01", Email: "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	co := decode[dto.CheckoutResponse](t, rec)
	ts.pay.Complete(co.SessionID)

	for i := 0; i < 2; i++ {
		rec = ts.do(t, http.MethodGet, "/checkout/confirm?session_id="+co.SessionID, nil)
		require.Equal(t, http.StatusSeeOther, rec.Code)
	}
	assert.Len(t, ts.mail.ByTemplate(mail.TemplateReceipt), 1)
}

func TestWebhook(t *testing.T) {
	ts := newServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(`{}`))
	req.Header.Set("Stripe-Signature", "forged")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := ts.do(t, http.MethodPost, "/checkout", dto.CheckoutRequest{Unit: "2031-06-01", Email: "carol@example.com"})
	require.Equal(t, http.StatusOK, resp.Code)
	co := decode[dto.CheckoutResponse](t, resp)
	ts.pay.WebhookEvents["good"] = &payment.Event{
		ID:      "evt_1",
		Type:    "checkout.session.completed",
		Payment: ts.pay.Complete(co.SessionID),
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(`{}`))
	req.Header.Set("Stripe-Signature", "good")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/day/2031-06-01", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// A verified event that cannot be decoded will never succeed on redelivery.
	ts.pay.WebhookErrors["garbled"] = fmt.Errorf("%w: decode checkout session", payment.ErrMalformedEvent)
	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(`{}`))
	req.Header.Set("Stripe-Signature", "garbled")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorCode(t, rec))
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	ts := newServer(t)
	for _, path := range []string{"/me", "/me/claims"} {
		rec := ts.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "unauthorized", errorCode(t, rec))
	}
	rec := ts.do(t, http.MethodPost, "/claim/transfer", dto.TransferRequest{}, &http.Cookie{Name: session.CookieName, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignupLoginAndProfile(t *testing.T) {
	ts := newServer(t)
	rec := ts.do(t, http.MethodPost, "/auth/signup", dto.SignupRequest{Email: "Dana@Example.com", Password: "correct horse", DisplayName: "Dana"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)

	rec = ts.do(t, http.MethodPost, "/auth/signup", dto.SignupRequest{Email: "dana@example.com", Password: "correct horse"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/auth/login", dto.LoginRequest{Email: "dana@example.com", Password: "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCode(t, rec))

	rec = ts.do(t, http.MethodPost, "/auth/login", dto.LoginRequest{Email: "dana@example.com", Password: "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookie = sessionCookie(t, rec)

	rec = ts.do(t, http.MethodGet, "/me", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[dto.OwnerResponse](t, rec)
	assert.Equal(t, "dana@example.com", me.Email)
	assert.Equal(t, "Dana", me.DisplayName)

	name := "Dana S."
	rec = ts.do(t, http.MethodPatch, "/me", dto.ProfileUpdateRequest{DisplayName: &name}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, name, decode[dto.OwnerResponse](t, rec).DisplayName)

	rec = ts.do(t, http.MethodPost, "/auth/logout", nil, cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)
}

func TestForgotPasswordIsGeneric(t *testing.T) {
	ts := newServer(t)
	known := ts.do(t, http.MethodPost, "/auth/signup", dto.SignupRequest{Email: "erin@example.com", Password: "correct horse"})
	require.Equal(t, http.StatusCreated, known.Code)

	a := ts.do(t, http.MethodPost, "/auth/password/forgot", dto.EmailRequest{Email: "erin@example.com"})
	b := ts.do(t, http.MethodPost, "/auth/password/forgot", dto.EmailRequest{Email: "nobody@example.com"})
	assert.Equal(t, http.StatusAccepted, a.Code)
	assert.Equal(t, http.StatusAccepted, b.Code)
	assert.Equal(t, a.Body.String(), b.Body.String())
	assert.Len(t, ts.mail.ByTemplate(mail.TemplatePasswordReset), 1)
}

func TestAuthRateLimit(t *testing.T) {
	ts := newServer(t, func(o *httptransport.Options) { o.AuthLimit = 2 })
	body := dto.LoginRequest{Email: "x@example.com", Password: "whatever1"}
	for i := 0; i < 2; i++ {
		rec := ts.do(t, http.MethodPost, "/auth/login", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := ts.do(t, http.MethodPost, "/auth/login", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorCode(t, rec))

	// Other routes are not throttled.
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/availability/2031-01-01", nil).Code)
}

func TestTransferOverHTTP(t *testing.T) {
	ts := newServer(t)
	ts.buy(t, "2031-05-01", "alice@example.com")
	alice := ts.cookieFor(t, "alice@example.com")

	rec := ts.do(t, http.MethodPost, "/auth/signup", dto.SignupRequest{Email: "bob@example.com", Password: "correct horse"})
	require.Equal(t, http.StatusCreated, rec.Code)
	bob := sessionCookie(t, rec)

	rec = ts.do(t, http.MethodPost, "/claim/transfer-code", dto.UnitRequest{Unit: "2031-05-01"}, bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))

	rec = ts.do(t, http.MethodPost, "/claim/transfer-code", dto.UnitRequest{Unit: "2031-05-01"}, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	code := decode[dto.TransferCodeResponse](t, rec)

	req := dto.TransferRequest{ClaimID: code.ClaimID, CertHash: code.CertHash, Code: code.Code}
	rec = ts.do(t, http.MethodPost, "/claim/transfer", req, bob)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[dto.TransferResponse](t, rec)
	assert.True(t, moved.Changed)

	req.CertHash = moved.CertHash
	rec = ts.do(t, http.MethodPost, "/claim/transfer", req, bob)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_used", errorCode(t, rec))

	req.Code = "0000-0000-0000"
	rec = ts.do(t, http.MethodPost, "/claim/transfer", req, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_code", errorCode(t, rec))

	rec = ts.do(t, http.MethodGet, "/me/claims", nil, bob)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[struct {
		Items []dto.OwnedClaim `json:"items"`
	}](t, rec)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, "2031-05-01", mine.Items[0].Unit)
}

func TestCertificateCaching(t *testing.T) {
	ts := newServer(t)
	ts.buy(t, "2031-05-01", "alice@example.com")

	rec := ts.do(t, http.MethodGet, "/cert/2031-05-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=300, s-maxage=86400", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "Accept-Language", rec.Header().Get("Vary"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/cert/2031-05-01", nil)
	req.Header.Set("If-None-Match", etag)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotModified, rr.Code)
	assert.Empty(t, rr.Body.Bytes())

	// A metadata edit keeps the content hash but must invalidate the cached PDF.
	title := "renamed"
	rec = ts.do(t, http.MethodPatch, "/claims/2031-05-01", dto.ClaimUpdateRequest{Title: &title}, ts.cookieFor(t, "alice@example.com"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/cert/2031-05-01", nil)
	req.Header.Set("If-None-Match", etag)
	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEqual(t, etag, rr.Header().Get("ETag"))

	rec = ts.do(t, http.MethodGet, "/cert/2031-05-02", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReleaseOverHTTP(t *testing.T) {
	ts := newServer(t)
	ts.buy(t, "2031-05-01", "alice@example.com")
	alice := ts.cookieFor(t, "alice@example.com")

	rec := ts.do(t, http.MethodPost, "/day/release", dto.UnitRequest{Unit: "2031-05-01"}, alice)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/day/2031-05-01", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.buy(t, "2031-05-01", "bob@example.com")
}

func TestUpdateClaimAndRegistry(t *testing.T) {
	ts := newServer(t)
	ts.buy(t, "2031-05-01", "alice@example.com")
	alice := ts.cookieFor(t, "alice@example.com")

	public := dto.FlexBool(true)
	title := "first steps"
	rec := ts.do(t, http.MethodPatch, "/claims/2031-05-01", dto.ClaimUpdateRequest{Title: &title, Public: &public}, alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/registry?q=steps&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[dto.RegistryPage](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "2031-05-01", page.Items[0].Unit)

	rec = ts.do(t, http.MethodGet, "/registry?granularity=century", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarketplaceOverHTTP(t *testing.T) {
	ts := newServer(t)
	ts.buy(t, "2031-05-01", "alice@example.com")
	alice := ts.cookieFor(t, "alice@example.com")

	rec := ts.do(t, http.MethodPost, "/marketplace/listing", dto.ListingRequest{Unit: "2031-05-01", Price: 50}, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/marketplace/listing", dto.ListingRequest{Unit: "2031-05-01", Price: 1500}, alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	listing := decode[dto.ListingView](t, rec)

	rec = ts.do(t, http.MethodGet, "/marketplace/listings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[dto.ListingPage](t, rec).Items, 1)

	// No payout account yet.
	rec = ts.do(t, http.MethodPost, "/marketplace/checkout", dto.MarketplaceCheckoutRequest{ListingID: listing.ID, Email: "bob@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/me/payouts/onboard", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[dto.OnboardResponse](t, rec).URL)

	rec = ts.do(t, http.MethodPost, "/marketplace/checkout", dto.MarketplaceCheckoutRequest{ListingID: listing.ID, Email: "alice@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/marketplace/checkout", dto.MarketplaceCheckoutRequest{ListingID: listing.ID, Email: "bob@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	co := decode[dto.CheckoutResponse](t, rec)
	ts.pay.Complete(co.SessionID)

	rec = ts.do(t, http.MethodGet, "/checkout/confirm?session_id="+co.SessionID, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	o, err := ts.store.Owners().GetByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	u, err := domain.ParseUnit("2031-05-01")
	require.NoError(t, err)
	c, err := ts.store.Claims().GetByTS(context.Background(), u.TS)
	require.NoError(t, err)
	assert.Equal(t, o.ID, c.OwnerID)

	rec = ts.do(t, http.MethodPost, "/marketplace/listing/"+listing.ID+"/status", dto.ListingStatusRequest{Action: "resume"}, alice)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

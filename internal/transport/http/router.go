package http

import (
	"context"
	"net/http"
	"time"

	obsmw "parcels/internal/observability/middleware"
	"parcels/internal/ratelimit"
	"parcels/internal/service"
	"parcels/internal/session"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

type Services struct {
	Auth        service.AuthService
	Settlement  service.SettlementService
	Transfers   service.TransferService
	Marketplace service.MarketplaceService
	Claims      service.ClaimService
}

type Options struct {
	Services
	Sessions *session.Manager

	BaseURL        string
	TrustProxy     bool
	CORSOrigins    []string
	RequestTimeout time.Duration

	// AuthLimit throttles /auth/* per client IP.
	AuthLimit int
	// AuthWindow is the window AuthLimit applies to.
	AuthWindow time.Duration
	// LimitCounter defaults to an in-process counter.
	LimitCounter httprate.LimitCounter

	// Health reports readiness, typically the database ping.
	Health func(ctx context.Context) error
}

type api struct {
	Options
}

func NewRouter(opts Options) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.AuthLimit <= 0 {
		opts.AuthLimit = 10
	}
	if opts.AuthWindow <= 0 {
		opts.AuthWindow = time.Minute
	}
	a := &api{Options: opts}

	r := chi.NewRouter()
	r.Use(obsmw.WithRequestAndTrace)
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(obsmw.WithMetrics)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Stripe-Signature", obsmw.HeaderRequestID, obsmw.HeaderTraceID},
			ExposedHeaders:   []string{"ETag", obsmw.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(opts.Sessions.Middleware)

	r.Get("/healthz", a.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(opts.RequestTimeout))

		r.Post("/checkout", a.startCheckout)
		r.Get("/checkout/confirm", a.confirmCheckout)
		r.Post("/webhook", a.webhook)

		r.Get("/day/{unit}", a.publicClaim)
		r.Get("/availability/{unit}", a.availability)
		r.Get("/cert/{unit}", a.certificate)
		r.Get("/registry", a.registry)
		r.Get("/marketplace/listings", a.listActive)
		r.Post("/marketplace/checkout", a.marketplaceCheckout)

		r.Route("/auth", func(r chi.Router) {
			r.Use(ratelimit.ByIP(ratelimit.Config{
				Requests:  opts.AuthLimit,
				Window:    opts.AuthWindow,
				Counter:   opts.LimitCounter,
				OnLimited: rateLimited,
				OnError:   a.limiterFailed,
			}))
			r.Post("/signup", a.signup)
			r.Post("/login", a.login)
			r.Post("/logout", a.logout)
			r.Post("/password/forgot", a.forgotPassword)
			r.Post("/password/reset", a.resetPassword)
			r.Post("/login-code/request", a.requestLoginCode)
			r.Post("/login-code/verify", a.verifyLoginCode)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireSession)

			r.Post("/claim/transfer-code", a.issueTransferCode)
			r.Post("/claim/transfer", a.redeemTransfer)
			r.Post("/day/release", a.release)
			r.Patch("/claims/{unit}", a.updateClaim)

			r.Post("/marketplace/listing", a.upsertListing)
			r.Post("/marketplace/listing/{id}/status", a.changeListingStatus)

			r.Get("/me", a.profile)
			r.Patch("/me", a.updateProfile)
			r.Get("/me/claims", a.myClaims)
			r.Post("/me/payouts/onboard", a.onboardPayouts)
		})
	})

	return r
}

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	if a.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Health(ctx); err != nil {
			obsmw.Logger(r.Context()).Warn("health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	writeErrorCode(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
}

// limiterFailed answers 503 when the shared counter cannot be reached.
func (a *api) limiterFailed(w http.ResponseWriter, r *http.Request, err error) {
	obsmw.Logger(r.Context()).Error("rate limiter unavailable", "error", err)
	writeErrorCode(w, http.StatusServiceUnavailable, "server_error", "temporarily unavailable")
}

// requireSession rejects requests that did not carry a valid session cookie.
func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := session.FromContext(r.Context()); !ok {
			writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// principal must only be called behind requireSession.
func principal(r *http.Request) *session.Principal {
	p, _ := session.FromContext(r.Context())
	return p
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parcels/internal/certificate"
	"parcels/internal/codes"
	"parcels/internal/config"
	"parcels/internal/events"
	"parcels/internal/mail"
	"parcels/internal/observability/logging"
	"parcels/internal/observability/metrics"
	"parcels/internal/payment"
	"parcels/internal/ratelimit"
	impl "parcels/internal/service/impl"
	"parcels/internal/session"
	"parcels/internal/store"
	httpx "parcels/internal/transport/http"

	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
)

func main() {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	logger := logging.NewLogger(logging.Config{
		ServiceName: "parcels",
		Environment: env,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	metrics.MustRegister("parcels")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1) DB
	gdb, err := store.Open(ctx, store.DBConfig{
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		LogSQL:          cfg.LogLevel == "debug",
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(gdb); err != nil {
			logger.Warn("close database", "error", err)
		}
	}()
	st := store.New(gdb)
	if cfg.AutoMigrate {
		if err := st.AutoMigrate(ctx); err != nil {
			return err
		}
	}

	// 2) Integrations
	hasher, err := certificate.NewHasher(cfg.HashSecret)
	if err != nil {
		return err
	}

	var sender mail.Sender = mail.LogSender{}
	if cfg.ResendAPIKey != "" {
		sender = mail.NewResendSender(cfg.ResendAPIKey, cfg.MailFrom)
	} else {
		logger.Warn("RESEND_API_KEY not set, emails are only logged")
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.NATSURL != "" {
		publisher, err = events.NewNATSPublisher(events.NATSConfig{
			URL:            cfg.NATSURL,
			ConnectionName: "parcels",
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
		})
		if err != nil {
			return err
		}
	}
	defer publisher.Close()

	var counter httprate.LimitCounter
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opt)
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		counter = ratelimit.NewRedisCounter(rdb, "")
	}

	// 3) Services
	deps := &impl.Deps{
		Store: st,
		Payments: payment.NewStripe(payment.StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
		}),
		Mailer:   mail.NewMailer(sender),
		Events:   publisher,
		Hasher:   hasher,
		Keyer:    codes.NewKeyer(cfg.HashSecret),
		Renderer: certificate.NewRenderer(cfg.CertFontPath),
		Pricing: impl.Pricing{
			Currency:      cfg.Currency,
			Day:           cfg.PriceDay,
			Minute:        cfg.PriceMinute,
			ListingMin:    cfg.ListingMinPrice,
			CommissionBPS: cfg.CommissionBPS,
			CommissionMin: cfg.CommissionMin,
		},
		BaseURL:      cfg.BaseURL,
		ResetTTL:     cfg.ResetTokenTTL,
		LoginCodeTTL: cfg.LoginCodeTTL,
	}

	// 4) HTTP router
	handler := httpx.NewRouter(httpx.Options{
		Services: httpx.Services{
			Auth:        impl.NewAuthService(deps, impl.NewPasswordServiceArgon2id()),
			Settlement:  impl.NewSettlementService(deps),
			Transfers:   impl.NewTransferService(deps),
			Marketplace: impl.NewMarketplaceService(deps),
			Claims:      impl.NewClaimService(deps),
		},
		Sessions: session.NewManager(session.Config{
			Secret: []byte(cfg.SessionSecret),
			TTL:    cfg.SessionTTL,
			Secure: cfg.SecureCookies,
		}),
		BaseURL:      cfg.BaseURL,
		TrustProxy:   cfg.TrustProxy,
		CORSOrigins:  cfg.CORSOrigins,
		AuthLimit:    cfg.RateLimitAuth,
		AuthWindow:   cfg.RateLimitWindow,
		LimitCounter: counter,
		Health:       st.Ping,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("parcels listening", "addr", srv.Addr, "base_url", cfg.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		_ = srv.Close()
	}
	logger.Info("shutdown complete")
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"parcels/internal/certificate"
	"parcels/internal/codes"
	"parcels/internal/config"
	"parcels/internal/events"
	"parcels/internal/mail"
	"parcels/internal/observability/logging"
	impl "parcels/internal/service/impl"
	"parcels/internal/store"

	"github.com/spf13/cobra"
)

// env is what every command runs against.
type env struct {
	Store   *store.Store
	Deps    *impl.Deps
	Cleanup func()
}

// opener connects to the database and assembles the workflow dependencies.
type opener func(ctx context.Context, databaseURL string) (*env, error)

type rootOptions struct {
	DatabaseURL string
	Verbose     bool
}

func newRootCommand(open opener) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "parcelsctl",
		Short:         "Operator tools for Parcels of Time",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			slog.SetDefault(logging.NewLogger(logging.Config{
				ServiceName: "parcelsctl",
				Level:       level,
				Output:      cmd.ErrOrStderr(),
			}))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "PostgreSQL DSN (defaults to DATABASE_URL)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging on stderr")

	run := func(fn func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			e, err := open(ctx, opts.DatabaseURL)
			if err != nil {
				return err
			}
			defer e.Cleanup()
			return fn(ctx, e, cmd, args)
		}
	}

	cmd.AddCommand(newMigrateCommand(run))
	cmd.AddCommand(newClaimCommand(run))
	cmd.AddCommand(newTransferCodeCommand(run))
	return cmd
}

type runner func(fn func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error

func newMigrateCommand(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, e *env, cmd *cobra.Command, _ []string) error {
			if err := e.Store.AutoMigrate(ctx); err != nil {
				return err
			}
			_, err := io.WriteString(cmd.OutOrStdout(), "schema up to date\n")
			return err
		}),
	}
}

// openFromEnv reads the service configuration. Session settings are not needed
// here, so only the values the commands use are checked.
func openFromEnv(ctx context.Context, databaseURL string) (*env, error) {
	cfg, _ := config.Load()
	if databaseURL == "" {
		databaseURL = cfg.DatabaseURL
	}
	if cfg.HashSecret == "" {
		return nil, errors.New("HASH_SECRET is required")
	}
	hasher, err := certificate.NewHasher(cfg.HashSecret)
	if err != nil {
		return nil, err
	}

	gdb, err := store.Open(ctx, store.DBConfig{DSN: databaseURL, MaxOpenConns: 2})
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.NATSURL != "" {
		if publisher, err = events.NewNATSPublisher(events.NATSConfig{URL: cfg.NATSURL, ConnectionName: "parcelsctl"}); err != nil {
			_ = store.Close(gdb)
			return nil, err
		}
	}

	st := store.New(gdb)
	return &env{
		Store: st,
		Deps: &impl.Deps{
			Store:    st,
			Mailer:   mail.NewMailer(mail.LogSender{}),
			Events:   publisher,
			Hasher:   hasher,
			Keyer:    codes.NewKeyer(cfg.HashSecret),
			Renderer: certificate.NewRenderer(cfg.CertFontPath),
			BaseURL:  cfg.BaseURL,
		},
		Cleanup: func() {
			publisher.Close()
			_ = store.Close(gdb)
		},
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

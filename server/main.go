package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/meikuraledutech/chartflow"
	"github.com/meikuraledutech/chartflow/badger"
	"github.com/meikuraledutech/chartflow/claims"
	"github.com/meikuraledutech/chartflow/config"
	"github.com/meikuraledutech/chartflow/ctxlog"
	"github.com/meikuraledutech/chartflow/metrics"
	"github.com/meikuraledutech/chartflow/navigator"
	"github.com/meikuraledutech/chartflow/postgres"
	"github.com/meikuraledutech/chartflow/versions"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "chartflow",
		Short:        "Questionnaire chart editor and runtime",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), cfgPath)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the storage schema",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStores(cmd.Context(), cfgPath, func(ctx context.Context, _ config.Config, store chartflow.Store, _ claims.Store) error {
					if err := store.CreateSchema(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "schema created")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "drop",
			Short: "Drop the storage schema and all data",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStores(cmd.Context(), cfgPath, func(ctx context.Context, _ config.Config, store chartflow.Store, _ claims.Store) error {
					if err := store.DropSchema(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "schema dropped")
					return nil
				})
			},
		},
	)
	return root
}

// setup loads configuration and installs the process logger.
func setup(ctx context.Context, cfgPath string) (context.Context, config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return ctx, config.Config{}, nil, err
	}
	logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)
	return ctxlog.WithLogger(ctx, logger), cfg, logger, nil
}

// openStores opens the configured backend. Both returned stores are the same
// value; close releases it.
func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (chartflow.Store, claims.Store, func(), error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect: %w", err)
		}
		s := postgres.New(pool)
		return s, s, pool.Close, nil
	default:
		bc := badger.DefaultConfig(cfg.BadgerPath)
		if cfg.Storage == config.StorageMemory {
			bc = badger.InMemoryConfig()
		}
		bc.Logger = logger.With("component", "badger")
		s, err := badger.Open(bc)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, func() {
			if err := s.Close(); err != nil {
				logger.Error("close badger", "error", err)
			}
		}, nil
	}
}

func withStores(ctx context.Context, cfgPath string, fn func(context.Context, config.Config, chartflow.Store, claims.Store) error) error {
	ctx, cfg, logger, err := setup(ctx, cfgPath)
	if err != nil {
		return err
	}
	store, claimStore, closeFn, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, cfg, store, claimStore)
}

func serve(ctx context.Context, cfgPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withStores(ctx, cfgPath, func(ctx context.Context, cfg config.Config, store chartflow.Store, claimStore claims.Store) error {
		logger := ctxlog.FromContext(ctx)

		if err := store.CreateSchema(ctx); err != nil {
			return fmt.Errorf("schema: %w", err)
		}

		reg := prometheus.NewRegistry()
		m := metrics.New(reg)

		svc, err := versions.Open(ctx, store, cfg.Session, versions.WithLogger(logger), versions.WithMetrics(m))
		if err != nil {
			return err
		}
		defer func() {
			if err := svc.Close(context.WithoutCancel(ctx)); err != nil {
				logger.Error("close session", "error", err)
			}
		}()

		srv := &server{
			store:        store,
			versions:     svc,
			nav:          navigator.New(svc, navigator.WithMetrics(m)),
			claims:       claims.NewService(claimStore),
			sessions:     newRegistry(),
			auth:         headerAuth{header: "X-User-ID"},
			logger:       logger,
			gatherer:     reg,
			claimText:    cfg.Claims.DefaultText,
			claimTimeout: cfg.Claims.FetchTimeout,
		}
		app := srv.routes()
		go srv.sessions.expire(ctx, cfg.Sessions.SweepInterval, cfg.Sessions.IdleTimeout, logger)

		go func() {
			<-ctx.Done()
			if err := app.Shutdown(); err != nil {
				logger.Error("shutdown", "error", err)
			}
		}()

		logger.Info("listening", "addr", cfg.Addr, "storage", cfg.Storage, "session", cfg.Session)
		return app.Listen(cfg.Addr)
	})
}

// ledgerd is the ledger service daemon and its operational toolbelt.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/stableflow/internal/api"
	"github.com/example/stableflow/internal/config"
	"github.com/example/stableflow/internal/events"
	eventskafka "github.com/example/stableflow/internal/events/kafka"
	"github.com/example/stableflow/internal/ledger"
	"github.com/example/stableflow/pkg/audit"
)

func main() {
	root := &cobra.Command{
		Use:           "ledgerd",
		Short:         "stableflow double-entry ledger service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd(), godCheckCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openStore builds the Store the DATABASE_URL selects: postgres for
// production, sqlite for development. Both apply pending migrations.
func openStore(ctx context.Context, cfg *config.Config) (ledger.Store, func(), error) {
	if cfg.UsesPostgres() {
		if err := ledger.MigratePostgres(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		store := ledger.NewPostgresStore(pool)
		return store, store.Close, nil
	}

	store, err := ledger.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			var publisher events.Publisher = events.NopPublisher{}
			if len(cfg.KafkaBrokers) > 0 {
				kp := eventskafka.NewPublisher(cfg.KafkaBrokers)
				defer kp.Close()
				publisher = kp
				logger.Info("kafka_publisher_enabled", "brokers", cfg.KafkaBrokers)
			}

			service := ledger.NewService(store, publisher, logger)
			router := api.NewRouter(api.Dependencies{
				Logger:  logger,
				Ledger:  service,
				Auditor: audit.NewChainLogger(),
			})

			server := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("ledgerd_listening", "addr", cfg.ListenAddr, "env", cfg.Environment)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			logger.Info("ledgerd_shutting_down")
			return server.Shutdown(shutdownCtx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			_ = store
			logger.Info("migrations_applied")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Provision the platform system accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			service := ledger.NewService(store, nil, logger)
			if err := service.SeedSystemAccounts(cmd.Context()); err != nil {
				return err
			}
			logger.Info("system_accounts_seeded", "count", len(ledger.SystemAccounts))
			return nil
		},
	}
}

func godCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "god-check",
		Short: "Verify global debit/credit equality per currency",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			service := ledger.NewService(store, nil, logger)
			result, err := service.GodCheck(cmd.Context())
			if err != nil {
				return err
			}

			out := struct {
				Balanced   bool                         `json:"balanced"`
				Currencies map[string]map[string]string `json:"currencies"`
			}{Balanced: result.Balanced, Currencies: map[string]map[string]string{}}
			for currency, check := range result.Currencies {
				out.Currencies[string(currency)] = map[string]string{
					"total_debits":  check.TotalDebits.String(),
					"total_credits": check.TotalCredits.String(),
					"balanced":      fmt.Sprintf("%t", check.Balanced),
				}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if !result.Balanced {
				return errors.New("god check failed: ledger is not balanced")
			}
			return nil
		},
	}
}

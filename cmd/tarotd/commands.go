package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/randomtoy/tarot-backend/internal/adapters/decks"
	httpadapter "github.com/randomtoy/tarot-backend/internal/adapters/http"
	"github.com/randomtoy/tarot-backend/internal/adapters/llm/openrouter"
	"github.com/randomtoy/tarot-backend/internal/adapters/memory"
	"github.com/randomtoy/tarot-backend/internal/adapters/postgres"
	"github.com/randomtoy/tarot-backend/internal/app"
	"github.com/randomtoy/tarot-backend/internal/config"
	"github.com/randomtoy/tarot-backend/internal/domain"
	"github.com/randomtoy/tarot-backend/internal/metrics"
	"github.com/randomtoy/tarot-backend/internal/ports"
)

// backend bundles the storage ports of one storage choice.
type backend struct {
	cards    ports.CardCatalog
	spreads  ports.SpreadCatalog
	readings ports.ReadingStore
	users    ports.UserStore
	db       *sql.DB
}

func (b backend) Close() {
	if b.db != nil {
		_ = b.db.Close()
	}
}

func openBackend(ctx context.Context, cfg config.Config, migrate bool, logger *slog.Logger) (backend, error) {
	if cfg.InMemory() {
		logger.Warn("DATABASE_DSN not set, using in-memory storage")
		s := memory.NewStore()
		return backend{cards: s, spreads: s, readings: s, users: s}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return backend{}, err
	}
	if migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return backend{}, err
		}
		logger.Info("migrations applied")
	}
	return backend{
		cards:    postgres.NewCardRepository(db),
		spreads:  postgres.NewSpreadRepository(db),
		readings: postgres.NewReadingRepository(db),
		users:    postgres.NewUserRepository(db),
		db:       db,
	}, nil
}

// seedCatalog upserts the embedded catalog, in one transaction on Postgres.
func seedCatalog(ctx context.Context, b backend, logger *slog.Logger) error {
	catalog, err := decks.NewEmbedded().Catalog()
	if err != nil {
		return err
	}
	if b.db == nil {
		return app.NewCatalogService(b.cards, b.spreads, logger).Seed(ctx, catalog.Cards, catalog.Spreads)
	}
	return postgres.WithTx(ctx, b.db, nil, func(ctx context.Context, tx postgres.DBTX) error {
		svc := app.NewCatalogService(postgres.NewCardRepository(tx), postgres.NewSpreadRepository(tx), logger)
		return svc.Seed(ctx, catalog.Cards, catalog.Spreads)
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	b, err := openBackend(ctx, cfg, cfg.MigrateOnStart, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	if cfg.SeedCatalog || cfg.InMemory() {
		if err := seedCatalog(ctx, b, logger); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}

	var interp ports.Interpreter
	if cfg.LLMEnabled() {
		interp = openrouter.NewClient(
			&http.Client{Timeout: cfg.LLMTimeout},
			cfg.OpenRouterAPIKey,
			cfg.OpenRouterBaseURL,
			cfg.LLMModel,
			cfg.LLMFallbackModels,
			logger,
		)
	}

	clock := systemClock{}
	readings := app.NewReadingService(b.cards, b.spreads, b.readings, b.users, interp, stdRNG{}, clock, cfg.DefaultDeck, logger)
	catalog := app.NewCatalogService(b.cards, b.spreads, logger)
	accounts := app.NewAccountService(b.users, clock, cfg.JWTSecret, cfg.JWTTTL, cfg.DailyReadingLimit, logger)

	e := newEcho(cfg, logger)
	httpadapter.NewHandler(readings, catalog, accounts).Register(e)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.HTTPAddr, "in_memory", cfg.InMemory(), "llm", cfg.LLMEnabled())
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}

// newEcho builds the server with the middleware chain shared by every route.
func newEcho(cfg config.Config, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(httpadapter.RequestIDMiddleware())
	e.Use(httpadapter.LoggingMiddleware(logger))
	e.Use(metrics.Middleware())
	e.Use(httpadapter.RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))
	e.Use(middleware.ContextTimeout(cfg.RequestTimeout))
	return e
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if cfg.InMemory() {
				return errors.New("migrate requires DATABASE_DSN")
			}
			b, err := openBackend(cmd.Context(), cfg, true, logger)
			if err != nil {
				return err
			}
			b.Close()
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert the embedded card and spread catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if cfg.InMemory() {
				return errors.New("seed requires DATABASE_DSN")
			}
			b, err := openBackend(cmd.Context(), cfg, cfg.MigrateOnStart, logger)
			if err != nil {
				return err
			}
			defer b.Close()
			return seedCatalog(cmd.Context(), b, logger)
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var username, role string
	roleCmd := &cobra.Command{
		Use:   "role",
		Short: "Change the role of an account",
		Example: `  tarotd user role --username alice --role reader
  tarotd user role --username root --role admin`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if cfg.InMemory() {
				return errors.New("user role requires DATABASE_DSN")
			}
			b, err := openBackend(cmd.Context(), cfg, false, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			accounts := app.NewAccountService(b.users, systemClock{}, cfg.JWTSecret, cfg.JWTTTL, cfg.DailyReadingLimit, logger)
			if err := accounts.SetRole(cmd.Context(), username, domain.Role(role)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", username, role)
			return nil
		},
	}
	roleCmd.Flags().StringVar(&username, "username", "", "account to change")
	roleCmd.Flags().StringVar(&role, "role", "", "user, premium, reader or admin")
	_ = roleCmd.MarkFlagRequired("username")
	_ = roleCmd.MarkFlagRequired("role")

	cmd.AddCommand(roleCmd)
	return cmd
}

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/randomtoy/tarot-backend/internal/config"
	"github.com/randomtoy/tarot-backend/internal/domain"
)

func TestInMemoryBackend_Seeded(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	b, err := openBackend(ctx, config.Config{}, true, logger)
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	defer b.Close()

	if err := seedCatalog(ctx, b, logger); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Seeding twice must not duplicate anything.
	if err := seedCatalog(ctx, b, logger); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	cards, err := b.cards.ListByDeck(ctx, domain.DefaultDeck)
	if err != nil {
		t.Fatalf("list cards: %v", err)
	}
	if len(cards) != 22 {
		t.Errorf("expected 22 cards, got %d", len(cards))
	}

	spread, err := b.spreads.GetActiveSpread(ctx, "Celtic Cross")
	if err != nil {
		t.Fatalf("get spread: %v", err)
	}
	if spread.CardCount != 10 {
		t.Errorf("expected 10 positions, got %d", spread.CardCount)
	}
}

func TestStdRNG_InRange(t *testing.T) {
	var rng stdRNG
	for range 1000 {
		if v := rng.Intn(7); v < 0 || v >= 7 {
			t.Fatalf("out of range: %d", v)
		}
	}
}

func TestNewEcho_BoundsRequestContext(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := newEcho(config.Config{RequestTimeout: time.Second}, logger)
	e.GET("/deadline", func(c echo.Context) error {
		deadline, ok := c.Request().Context().Deadline()
		if !ok || time.Until(deadline) > time.Second {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.NoContent(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deadline", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected a request deadline, got status %d", rec.Code)
	}

	e = newEcho(config.Config{RequestTimeout: 10 * time.Millisecond}, logger)
	e.GET("/slow", func(c echo.Context) error {
		<-c.Request().Context().Done()
		return c.Request().Context().Err()
	})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after the deadline, got %d", rec.Code)
	}
}

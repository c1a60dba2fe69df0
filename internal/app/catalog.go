package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/randomtoy/tarot-backend/internal/domain"
	"github.com/randomtoy/tarot-backend/internal/ports"
)

// CatalogService serves the card and spread reference data and its
// administration.
type CatalogService struct {
	cards   ports.CardCatalog
	spreads ports.SpreadCatalog
	logger  *slog.Logger
}

func NewCatalogService(cards ports.CardCatalog, spreads ports.SpreadCatalog, logger *slog.Logger) *CatalogService {
	return &CatalogService{cards: cards, spreads: spreads, logger: logger}
}

func requireAdmin(caller Caller) error {
	if caller.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	return nil
}

func (s *CatalogService) ListCards(ctx context.Context, deck string) ([]domain.Card, error) {
	if strings.TrimSpace(deck) == "" {
		deck = domain.DefaultDeck
	}
	cards, err := s.cards.ListByDeck(ctx, deck)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

func (s *CatalogService) GetCard(ctx context.Context, id string) (domain.Card, error) {
	card, err := s.cards.GetCard(ctx, id)
	if err != nil {
		return domain.Card{}, fmt.Errorf("card %q: %w", id, err)
	}
	return card, nil
}

func (s *CatalogService) CreateCard(ctx context.Context, caller Caller, c domain.Card) (domain.Card, error) {
	if err := requireAdmin(caller); err != nil {
		return domain.Card{}, err
	}
	if err := c.Validate(); err != nil {
		return domain.Card{}, err
	}
	c.ID = uuid.NewString()
	created, err := s.cards.CreateCard(ctx, c)
	if err != nil {
		return domain.Card{}, fmt.Errorf("create card: %w", err)
	}
	s.logger.InfoContext(ctx, "card created", "card_id", created.ID, "name", created.Name)
	return created, nil
}

func (s *CatalogService) UpdateCard(ctx context.Context, caller Caller, c domain.Card) (domain.Card, error) {
	if err := requireAdmin(caller); err != nil {
		return domain.Card{}, err
	}
	if err := c.Validate(); err != nil {
		return domain.Card{}, err
	}
	updated, err := s.cards.UpdateCard(ctx, c)
	if err != nil {
		return domain.Card{}, fmt.Errorf("card %q: %w", c.ID, err)
	}
	return updated, nil
}

func (s *CatalogService) DeleteCard(ctx context.Context, caller Caller, id string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if err := s.cards.DeleteCard(ctx, id); err != nil {
		return fmt.Errorf("card %q: %w", id, err)
	}
	s.logger.InfoContext(ctx, "card deleted", "card_id", id)
	return nil
}

func (s *CatalogService) ListSpreads(ctx context.Context) ([]domain.Spread, error) {
	spreads, err := s.spreads.ListActiveSpreads(ctx)
	if err != nil {
		return nil, fmt.Errorf("list spreads: %w", err)
	}
	return spreads, nil
}

func (s *CatalogService) GetSpread(ctx context.Context, name string) (domain.Spread, error) {
	spread, err := s.spreads.GetActiveSpread(ctx, name)
	if err != nil {
		return domain.Spread{}, fmt.Errorf("spread %q: %w", name, err)
	}
	return spread, nil
}

func (s *CatalogService) CreateSpread(ctx context.Context, caller Caller, sp domain.Spread) (domain.Spread, error) {
	if err := requireAdmin(caller); err != nil {
		return domain.Spread{}, err
	}
	if err := sp.Validate(); err != nil {
		return domain.Spread{}, err
	}
	sp.ID = uuid.NewString()
	sp.Active = true
	created, err := s.spreads.CreateSpread(ctx, sp)
	if err != nil {
		return domain.Spread{}, fmt.Errorf("create spread: %w", err)
	}
	s.logger.InfoContext(ctx, "spread created", "name", created.Name, "card_count", created.CardCount)
	return created, nil
}

func (s *CatalogService) UpdateSpread(ctx context.Context, caller Caller, sp domain.Spread) (domain.Spread, error) {
	if err := requireAdmin(caller); err != nil {
		return domain.Spread{}, err
	}
	if err := sp.Validate(); err != nil {
		return domain.Spread{}, err
	}
	updated, err := s.spreads.UpdateSpread(ctx, sp)
	if err != nil {
		return domain.Spread{}, fmt.Errorf("spread %q: %w", sp.Name, err)
	}
	return updated, nil
}

// DeactivateSpread soft-deletes a spread; spreads are never removed.
func (s *CatalogService) DeactivateSpread(ctx context.Context, caller Caller, name string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if err := s.spreads.DeactivateSpread(ctx, name); err != nil {
		return fmt.Errorf("spread %q: %w", name, err)
	}
	s.logger.InfoContext(ctx, "spread deactivated", "name", name)
	return nil
}

// Seed upserts reference data by name. It is idempotent.
func (s *CatalogService) Seed(ctx context.Context, cards []domain.Card, spreads []domain.Spread) error {
	for _, c := range cards {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("seed card: %w", err)
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if err := s.cards.UpsertCard(ctx, c); err != nil {
			return fmt.Errorf("seed card %q: %w", c.Name, err)
		}
	}
	for _, sp := range spreads {
		if err := sp.Validate(); err != nil {
			return fmt.Errorf("seed spread: %w", err)
		}
		if sp.ID == "" {
			sp.ID = uuid.NewString()
		}
		if err := s.spreads.UpsertSpread(ctx, sp); err != nil {
			return fmt.Errorf("seed spread %q: %w", sp.Name, err)
		}
	}
	s.logger.InfoContext(ctx, "catalog seeded", "cards", len(cards), "spreads", len(spreads))
	return nil
}

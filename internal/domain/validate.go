package domain

import (
	"fmt"
	"strings"
)

// Validate checks the catalog invariants of a card.
func (c Card) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: card name is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(c.Deck) == "" {
		return fmt.Errorf("%w: card %q: deck is required", ErrInvalidRequest, c.Name)
	}
	switch c.Arcana {
	case MajorArcana:
		if c.Suit != "" {
			return fmt.Errorf("%w: card %q: major arcana cannot have a suit", ErrInvalidRequest, c.Name)
		}
	case MinorArcana:
		if c.Suit == "" {
			return fmt.Errorf("%w: card %q: minor arcana requires a suit", ErrInvalidRequest, c.Name)
		}
	default:
		return fmt.Errorf("%w: card %q: unknown arcana %q", ErrInvalidRequest, c.Name, c.Arcana)
	}
	return nil
}

// Validate checks the template invariants of a spread.
func (s Spread) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: spread name is required", ErrInvalidRequest)
	}
	if s.CardCount < 1 {
		return fmt.Errorf("%w: spread %q: card count must be positive", ErrInvalidRequest, s.Name)
	}
	if len(s.Positions) > 0 && len(s.Positions) != s.CardCount {
		return fmt.Errorf("%w: spread %q: %d positions for %d cards",
			ErrInvalidRequest, s.Name, len(s.Positions), s.CardCount)
	}
	return nil
}

// Validate checks the rating range of a feedback.
func (f Feedback) Validate() error {
	if f.Rating < 1 || f.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidRequest)
	}
	return nil
}

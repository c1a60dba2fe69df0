package domain

import "fmt"

// legacySpreads maps the fixed spread names of the unpersisted draw path to
// their card counts.
var legacySpreads = map[string]int{
	"single":       1,
	"three-card":   3,
	"five-card":    5,
	"celtic-cross": 10,
}

// LegacySpreadCount returns the card count of a fixed spread name.
func LegacySpreadCount(name string) (int, error) {
	n, ok := legacySpreads[name]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported spread type %q", ErrInvalidRequest, name)
	}
	return n, nil
}

// DrawCards draws count unique cards from the deck snapshot using rng.
// The order of the result is the shuffle order. When allowReversed is false
// every card is upright.
func DrawCards(deck string, cards []Card, count int, allowReversed bool, rng RNG) ([]DrawnCard, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: card count must be positive, got %d", ErrInvalidRequest, count)
	}
	if count > len(cards) {
		return nil, fmt.Errorf("%w: deck %q has %d cards, %d required",
			ErrInvalidRequest, deck, len(cards), count)
	}

	// Fisher-Yates over indices so the caller's slice is left untouched.
	indices := make([]int, len(cards))
	for i := range indices {
		indices[i] = i
	}
	for i := len(indices) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		indices[i], indices[j] = indices[j], indices[i]
	}

	drawn := make([]DrawnCard, count)
	for i := range count {
		reversed := false
		if allowReversed {
			reversed = rng.Intn(2) == 1
		}
		drawn[i] = DrawnCard{
			Card:     cards[indices[i]],
			Reversed: reversed,
		}
	}
	return drawn, nil
}

// Positioned assigns 1-based positions to drawn cards in draw order.
func Positioned(drawn []DrawnCard) []ReadingCard {
	out := make([]ReadingCard, len(drawn))
	for i, d := range drawn {
		card := d.Card
		out[i] = ReadingCard{
			CardID:   card.ID,
			Position: i + 1,
			Reversed: d.Reversed,
			Card:     &card,
		}
	}
	return out
}

// Package decks holds the embedded seed catalog: the Major Arcana of the
// default deck and the built-in spreads.
package decks

import (
	"embed"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/randomtoy/tarot-backend/internal/domain"
)

//go:embed data/*.toml
var catalogFS embed.FS

// files lists the embedded catalog files in load order.
var files = []string{
	"data/rider_waite_smith.toml",
	"data/spreads.toml",
}

type catalogFile struct {
	Deck    string       `toml:"deck"`
	Cards   []cardEntry  `toml:"cards"`
	Spreads []spreadFile `toml:"spreads"`
}

type cardEntry struct {
	Name        string   `toml:"name"`
	Arcana      string   `toml:"arcana"`
	Suit        string   `toml:"suit"`
	Number      int      `toml:"number"`
	Keywords    []string `toml:"keywords"`
	Upright     string   `toml:"upright"`
	Reversed    string   `toml:"reversed"`
	Description string   `toml:"description"`
	Image       string   `toml:"image"`
}

type spreadFile struct {
	Name        string          `toml:"name"`
	Description string          `toml:"description"`
	CardCount   int             `toml:"card_count"`
	Positions   []positionEntry `toml:"positions"`
}

type positionEntry struct {
	Number  int    `toml:"number"`
	Name    string `toml:"name"`
	Meaning string `toml:"meaning"`
}

// Catalog is the decoded seed data.
type Catalog struct {
	Cards   []domain.Card
	Spreads []domain.Spread
}

// Embedded decodes the embedded catalog once.
type Embedded struct {
	once    sync.Once
	catalog Catalog
	err     error
}

func NewEmbedded() *Embedded {
	return &Embedded{}
}

func (e *Embedded) init() {
	for _, name := range files {
		raw, err := catalogFS.ReadFile(name)
		if err != nil {
			e.err = fmt.Errorf("read embedded catalog %s: %w", name, err)
			return
		}
		part, err := Decode(string(raw))
		if err != nil {
			e.err = fmt.Errorf("parse embedded catalog %s: %w", name, err)
			return
		}
		e.catalog.Cards = append(e.catalog.Cards, part.Cards...)
		e.catalog.Spreads = append(e.catalog.Spreads, part.Spreads...)
	}
}

// Catalog returns the decoded seed data.
func (e *Embedded) Catalog() (Catalog, error) {
	e.once.Do(e.init)
	if e.err != nil {
		return Catalog{}, e.err
	}
	return e.catalog, nil
}

// Decode parses one TOML catalog document and validates its entries.
func Decode(doc string) (Catalog, error) {
	var f catalogFile
	if _, err := toml.Decode(doc, &f); err != nil {
		return Catalog{}, err
	}

	var c Catalog
	for _, e := range f.Cards {
		card := domain.Card{
			Name:            e.Name,
			Deck:            f.Deck,
			Arcana:          domain.Arcana(e.Arcana),
			Suit:            e.Suit,
			Number:          e.Number,
			Keywords:        e.Keywords,
			UprightMeaning:  e.Upright,
			ReversedMeaning: e.Reversed,
			Description:     e.Description,
			ImageURL:        e.Image,
		}
		if err := card.Validate(); err != nil {
			return Catalog{}, err
		}
		c.Cards = append(c.Cards, card)
	}
	for _, s := range f.Spreads {
		spread := domain.Spread{
			Name:        s.Name,
			Description: s.Description,
			CardCount:   s.CardCount,
			Active:      true,
		}
		for _, p := range s.Positions {
			spread.Positions = append(spread.Positions, domain.Position(p))
		}
		if err := spread.Validate(); err != nil {
			return Catalog{}, err
		}
		c.Spreads = append(c.Spreads, spread)
	}
	return c, nil
}

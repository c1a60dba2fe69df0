package domain

import "time"

// DefaultDeck is the deck used when a request does not name one.
const DefaultDeck = "Rider Waite Smith"

// RNG abstracts random number generation for deterministic testing.
type RNG interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
}

// Orientation represents the orientation of a drawn tarot card.
type Orientation string

const (
	Upright  Orientation = "upright"
	Reversed Orientation = "reversed"
)

// OrientationOf maps the stored reversed flag to an Orientation.
func OrientationOf(reversed bool) Orientation {
	if reversed {
		return Reversed
	}
	return Upright
}

// Arcana is the arcana type of a card.
type Arcana string

const (
	MajorArcana Arcana = "major"
	MinorArcana Arcana = "minor"
)

// Card represents a single tarot card in a deck's catalog.
type Card struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Deck            string   `json:"deck"`
	Arcana          Arcana   `json:"arcana"`
	Suit            string   `json:"suit,omitempty"`
	Number          int      `json:"number"`
	Keywords        []string `json:"keywords"`
	UprightMeaning  string   `json:"uprightMeaning"`
	ReversedMeaning string   `json:"reversedMeaning"`
	Description     string   `json:"description,omitempty"`
	ImageURL        string   `json:"imageUrl,omitempty"`
}

// Meaning returns the meaning text for the given orientation.
func (c Card) Meaning(reversed bool) string {
	if reversed {
		return c.ReversedMeaning
	}
	return c.UprightMeaning
}

// Position is one slot of a spread layout.
type Position struct {
	Number  int    `json:"number"`
	Name    string `json:"name"`
	Meaning string `json:"meaning"`
}

// Spread is a named template for a reading.
type Spread struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CardCount   int        `json:"cardCount"`
	Positions   []Position `json:"positions"`
	Active      bool       `json:"isActive"`
}

// PositionName returns the name of the 1-based position, or "" if the
// spread does not declare it.
func (s Spread) PositionName(number int) string {
	for _, p := range s.Positions {
		if p.Number == number {
			return p.Name
		}
	}
	return ""
}

// DrawnCard is one outcome of a draw.
type DrawnCard struct {
	Card     Card `json:"card"`
	Reversed bool `json:"isReversed"`
}

// ReadingCard is a positioned card inside a Reading. Card is populated only
// when the reading was resolved against the catalog.
type ReadingCard struct {
	CardID   string `json:"cardId"`
	Position int    `json:"position"`
	Reversed bool   `json:"isReversed"`
	Card     *Card  `json:"card,omitempty"`
}

// Feedback is the owner's rating of a reading.
type Feedback struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// Reading is a persisted reading session.
type Reading struct {
	ID             string        `json:"id"`
	UserID         string        `json:"userId"`
	SpreadName     string        `json:"spreadType"`
	Question       string        `json:"question,omitempty"`
	Cards          []ReadingCard `json:"cards"`
	Interpretation string        `json:"interpretation,omitempty"`
	ReaderID       string        `json:"readerId,omitempty"`
	Feedback       *Feedback     `json:"feedback,omitempty"`
	Public         bool          `json:"isPublic"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	DeletedAt      *time.Time    `json:"-"`
}

// ReadingPatch carries the fields an administrator may change. Nil fields
// are left untouched.
type ReadingPatch struct {
	Question       *string
	Interpretation *string
	ReaderID       *string
	Public         *bool
}

// Role is a user's access tier.
type Role string

const (
	RoleUser    Role = "user"
	RolePremium Role = "premium"
	RoleReader  Role = "reader"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RolePremium, RoleReader, RoleAdmin:
		return true
	}
	return false
}

// DailyReadings is the per-user reading counter for the current day.
type DailyReadings struct {
	Count     int       `json:"count"`
	LastReset time.Time `json:"lastReset"`
}

// User is an account of the platform.
type User struct {
	ID           string        `json:"id"`
	Username     string        `json:"username"`
	PasswordHash []byte        `json:"-"`
	Role         Role          `json:"role"`
	ZodiacSign   ZodiacSign    `json:"zodiacSign,omitempty"`
	Daily        DailyReadings `json:"dailyReadings"`
	CreatedAt    time.Time     `json:"createdAt"`
}

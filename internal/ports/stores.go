package ports

import (
	"context"
	"time"

	"github.com/randomtoy/tarot-backend/internal/domain"
)

// CardCatalog provides access to the tarot card catalog.
type CardCatalog interface {
	ListByDeck(ctx context.Context, deck string) ([]domain.Card, error)
	// GetByIDs returns the cards found for ids, keyed by id. Missing ids are
	// absent from the map.
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Card, error)
	GetCard(ctx context.Context, id string) (domain.Card, error)
	CreateCard(ctx context.Context, c domain.Card) (domain.Card, error)
	UpdateCard(ctx context.Context, c domain.Card) (domain.Card, error)
	DeleteCard(ctx context.Context, id string) error
	// UpsertCard inserts the card or updates the one with the same name.
	UpsertCard(ctx context.Context, c domain.Card) error
}

// SpreadCatalog provides access to spread templates.
type SpreadCatalog interface {
	// GetActiveSpread returns domain.ErrNotFound for unknown or inactive spreads.
	GetActiveSpread(ctx context.Context, name string) (domain.Spread, error)
	ListActiveSpreads(ctx context.Context) ([]domain.Spread, error)
	CreateSpread(ctx context.Context, s domain.Spread) (domain.Spread, error)
	UpdateSpread(ctx context.Context, s domain.Spread) (domain.Spread, error)
	DeactivateSpread(ctx context.Context, name string) error
	UpsertSpread(ctx context.Context, s domain.Spread) error
}

// ReadingStore persists readings.
type ReadingStore interface {
	CreateReading(ctx context.Context, r domain.Reading) (domain.Reading, error)
	// GetReading returns domain.ErrNotFound for unknown or soft-deleted readings.
	GetReading(ctx context.Context, id string) (domain.Reading, error)
	ListReadingsByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Reading, error)
	// SetInterpretation stores the interpretation only if none is set yet and
	// reports whether it did.
	SetInterpretation(ctx context.Context, id, text, readerID string) (bool, error)
	SetFeedback(ctx context.Context, id string, f domain.Feedback) error
	UpdateReading(ctx context.Context, id string, p domain.ReadingPatch) (domain.Reading, error)
	SoftDeleteReading(ctx context.Context, id string) error
	DeleteReading(ctx context.Context, id string) error
}

// UserStore persists accounts and the daily reading counter.
type UserStore interface {
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	SetRole(ctx context.Context, username string, role domain.Role) error
	// IncrementDailyReadings atomically bumps the counter of a base-tier user,
	// restarting it when the stored day differs from day.
	IncrementDailyReadings(ctx context.Context, userID string, day time.Time) (int, error)
}

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

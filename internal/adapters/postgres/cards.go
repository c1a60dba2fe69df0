package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/randomtoy/tarot-backend/internal/domain"
)

type CardRepository struct {
	db DBTX
}

func NewCardRepository(db DBTX) *CardRepository {
	return &CardRepository{db: db}
}

const cardColumns = `id, name, deck, arcana, suit, number, keywords, upright_meaning, reversed_meaning, description, image_url`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.Card, error) {
	var (
		c        domain.Card
		suit     sql.NullString
		keywords []byte
	)
	err := row.Scan(&c.ID, &c.Name, &c.Deck, &c.Arcana, &suit, &c.Number, &keywords,
		&c.UprightMeaning, &c.ReversedMeaning, &c.Description, &c.ImageURL)
	if err != nil {
		return domain.Card{}, err
	}
	c.Suit = suit.String
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &c.Keywords); err != nil {
			return domain.Card{}, fmt.Errorf("decode keywords of card %s: %w", c.ID, err)
		}
	}
	return c, nil
}

func cardArgs(c domain.Card) ([]any, error) {
	keywords := c.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	kw, err := json.Marshal(keywords)
	if err != nil {
		return nil, fmt.Errorf("encode keywords: %w", err)
	}
	return []any{c.ID, c.Name, c.Deck, string(c.Arcana), nullString(c.Suit), c.Number, kw,
		c.UprightMeaning, c.ReversedMeaning, c.Description, c.ImageURL}, nil
}

func (r *CardRepository) queryCards(ctx context.Context, query string, args ...any) ([]domain.Card, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, dbErr(err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return cards, nil
}

func (r *CardRepository) ListByDeck(ctx context.Context, deck string) ([]domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards
		 WHERE deck = $1
		 ORDER BY arcana, suit NULLS FIRST, number`
	return r.queryCards(ctx, query, deck)
}

func (r *CardRepository) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Card, error) {
	out := make(map[string]domain.Card, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var (
		placeholders []string
		args         []any
	)
	for _, id := range ids {
		if !validID(id) {
			continue
		}
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	if len(args) == 0 {
		return out, nil
	}
	query := `SELECT ` + cardColumns + ` FROM cards
		 WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	cards, err := r.queryCards(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for _, c := range cards {
		out[c.ID] = c
	}
	return out, nil
}

func (r *CardRepository) GetCard(ctx context.Context, id string) (domain.Card, error) {
	if !validID(id) {
		return domain.Card{}, domain.ErrNotFound
	}
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	c, err := scanCard(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return domain.Card{}, dbErr(err)
	}
	return c, nil
}

func (r *CardRepository) CreateCard(ctx context.Context, c domain.Card) (domain.Card, error) {
	args, err := cardArgs(c)
	if err != nil {
		return domain.Card{}, err
	}
	query := `INSERT INTO cards (` + cardColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return domain.Card{}, dbErr(err)
	}
	return c, nil
}

func (r *CardRepository) UpdateCard(ctx context.Context, c domain.Card) (domain.Card, error) {
	args, err := cardArgs(c)
	if err != nil {
		return domain.Card{}, err
	}
	query := `UPDATE cards SET name = $2, deck = $3, arcana = $4, suit = $5, number = $6, keywords = $7,
		 upright_meaning = $8, reversed_meaning = $9, description = $10, image_url = $11
		 WHERE id = $1`
	if !validID(c.ID) {
		return domain.Card{}, domain.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Card{}, dbErr(err)
	}
	if err := affected(res); err != nil {
		return domain.Card{}, err
	}
	return c, nil
}

func (r *CardRepository) DeleteCard(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return dbErr(err)
	}
	return affected(res)
}

// UpsertCard keeps the existing id when a card with the same name exists.
func (r *CardRepository) UpsertCard(ctx context.Context, c domain.Card) error {
	args, err := cardArgs(c)
	if err != nil {
		return err
	}
	query := `INSERT INTO cards (` + cardColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (name) DO UPDATE SET deck = EXCLUDED.deck, arcana = EXCLUDED.arcana,
		 suit = EXCLUDED.suit, number = EXCLUDED.number, keywords = EXCLUDED.keywords,
		 upright_meaning = EXCLUDED.upright_meaning, reversed_meaning = EXCLUDED.reversed_meaning,
		 description = EXCLUDED.description, image_url = EXCLUDED.image_url`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return dbErr(err)
	}
	return nil
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/randomtoy/tarot-backend/internal/domain"
)

type SpreadRepository struct {
	db DBTX
}

func NewSpreadRepository(db DBTX) *SpreadRepository {
	return &SpreadRepository{db: db}
}

const spreadColumns = `id, name, description, card_count, positions, is_active`

func scanSpread(row rowScanner) (domain.Spread, error) {
	var (
		s         domain.Spread
		positions []byte
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.CardCount, &positions, &s.Active); err != nil {
		return domain.Spread{}, err
	}
	if len(positions) > 0 {
		if err := json.Unmarshal(positions, &s.Positions); err != nil {
			return domain.Spread{}, fmt.Errorf("decode positions of spread %q: %w", s.Name, err)
		}
	}
	return s, nil
}

func encodePositions(p []domain.Position) ([]byte, error) {
	if p == nil {
		p = []domain.Position{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode positions: %w", err)
	}
	return raw, nil
}

func (r *SpreadRepository) GetActiveSpread(ctx context.Context, name string) (domain.Spread, error) {
	query := `SELECT ` + spreadColumns + ` FROM spreads
		 WHERE name = $1 AND is_active`
	s, err := scanSpread(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		return domain.Spread{}, dbErr(err)
	}
	return s, nil
}

func (r *SpreadRepository) ListActiveSpreads(ctx context.Context) ([]domain.Spread, error) {
	query := `SELECT ` + spreadColumns + ` FROM spreads
		 WHERE is_active
		 ORDER BY card_count, name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var spreads []domain.Spread
	for rows.Next() {
		s, err := scanSpread(rows)
		if err != nil {
			return nil, dbErr(err)
		}
		spreads = append(spreads, s)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return spreads, nil
}

func (r *SpreadRepository) CreateSpread(ctx context.Context, s domain.Spread) (domain.Spread, error) {
	positions, err := encodePositions(s.Positions)
	if err != nil {
		return domain.Spread{}, err
	}
	query := `INSERT INTO spreads (` + spreadColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.Name, s.Description, s.CardCount, positions, s.Active); err != nil {
		return domain.Spread{}, dbErr(err)
	}
	return s, nil
}

// UpdateSpread replaces the template of the spread named s.Name.
func (r *SpreadRepository) UpdateSpread(ctx context.Context, s domain.Spread) (domain.Spread, error) {
	positions, err := encodePositions(s.Positions)
	if err != nil {
		return domain.Spread{}, err
	}
	query := `UPDATE spreads SET description = $2, card_count = $3, positions = $4, is_active = $5, updated_at = now()
		 WHERE name = $1
		 RETURNING id`
	err = r.db.QueryRowContext(ctx, query, s.Name, s.Description, s.CardCount, positions, s.Active).Scan(&s.ID)
	if err != nil {
		return domain.Spread{}, dbErr(err)
	}
	return s, nil
}

func (r *SpreadRepository) DeactivateSpread(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE spreads SET is_active = FALSE, updated_at = now() WHERE name = $1`, name)
	if err != nil {
		return dbErr(err)
	}
	return affected(res)
}

func (r *SpreadRepository) UpsertSpread(ctx context.Context, s domain.Spread) error {
	positions, err := encodePositions(s.Positions)
	if err != nil {
		return err
	}
	query := `INSERT INTO spreads (` + spreadColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description,
		 card_count = EXCLUDED.card_count, positions = EXCLUDED.positions, updated_at = now()`
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.Name, s.Description, s.CardCount, positions, s.Active); err != nil {
		return dbErr(err)
	}
	return nil
}

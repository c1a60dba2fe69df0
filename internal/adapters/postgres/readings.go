package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/randomtoy/tarot-backend/internal/domain"
)

type ReadingRepository struct {
	db DBTX
}

func NewReadingRepository(db DBTX) *ReadingRepository {
	return &ReadingRepository{db: db}
}

const readingColumns = `id, user_id, spread_type, question, cards, interpretation, reader_id,
	feedback_rating, feedback_comment, is_public, created_at, updated_at, deleted_at`

// storedCard is the JSONB shape of one positioned card.
type storedCard struct {
	CardID   string `json:"cardId"`
	Position int    `json:"position"`
	Reversed bool   `json:"isReversed"`
}

func encodeCards(cards []domain.ReadingCard) ([]byte, error) {
	stored := make([]storedCard, 0, len(cards))
	for _, c := range cards {
		stored = append(stored, storedCard{CardID: c.CardID, Position: c.Position, Reversed: c.Reversed})
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode cards: %w", err)
	}
	return raw, nil
}

func scanReading(row rowScanner) (domain.Reading, error) {
	var (
		r              domain.Reading
		cards          []byte
		interpretation sql.NullString
		readerID       sql.NullString
		rating         sql.NullInt32
		comment        sql.NullString
		deletedAt      sql.NullTime
	)
	err := row.Scan(&r.ID, &r.UserID, &r.SpreadName, &r.Question, &cards, &interpretation, &readerID,
		&rating, &comment, &r.Public, &r.CreatedAt, &r.UpdatedAt, &deletedAt)
	if err != nil {
		return domain.Reading{}, err
	}

	var stored []storedCard
	if err := json.Unmarshal(cards, &stored); err != nil {
		return domain.Reading{}, fmt.Errorf("decode cards of reading %s: %w", r.ID, err)
	}
	for _, c := range stored {
		r.Cards = append(r.Cards, domain.ReadingCard{CardID: c.CardID, Position: c.Position, Reversed: c.Reversed})
	}

	r.Interpretation = interpretation.String
	r.ReaderID = readerID.String
	if rating.Valid {
		r.Feedback = &domain.Feedback{Rating: int(rating.Int32), Comment: comment.String}
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		r.DeletedAt = &t
	}
	return r, nil
}

func (r *ReadingRepository) CreateReading(ctx context.Context, rd domain.Reading) (domain.Reading, error) {
	cards, err := encodeCards(rd.Cards)
	if err != nil {
		return domain.Reading{}, err
	}
	query := `INSERT INTO readings (id, user_id, spread_type, question, cards, interpretation, reader_id, is_public, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.db.ExecContext(ctx, query, rd.ID, rd.UserID, rd.SpreadName, rd.Question, cards,
		nullString(rd.Interpretation), nullString(rd.ReaderID), rd.Public, rd.CreatedAt, rd.UpdatedAt)
	if err != nil {
		return domain.Reading{}, dbErr(err)
	}
	rd.Cards = slices.Clone(rd.Cards)
	for i := range rd.Cards {
		rd.Cards[i].Card = nil
	}
	return rd, nil
}

func (r *ReadingRepository) GetReading(ctx context.Context, id string) (domain.Reading, error) {
	if !validID(id) {
		return domain.Reading{}, domain.ErrNotFound
	}
	query := `SELECT ` + readingColumns + ` FROM readings
		 WHERE id = $1 AND deleted_at IS NULL`
	rd, err := scanReading(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return domain.Reading{}, dbErr(err)
	}
	return rd, nil
}

func (r *ReadingRepository) ListReadingsByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Reading, error) {
	if !validID(userID) {
		return nil, nil
	}
	query := `SELECT ` + readingColumns + ` FROM readings
		 WHERE user_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var readings []domain.Reading
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, dbErr(err)
		}
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return readings, nil
}

func (r *ReadingRepository) SetInterpretation(ctx context.Context, id, text, readerID string) (bool, error) {
	if !validID(id) {
		return false, domain.ErrNotFound
	}
	query := `UPDATE readings SET interpretation = $2, reader_id = $3, updated_at = now()
		 WHERE id = $1 AND interpretation IS NULL AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, text, nullString(readerID))
	if err != nil {
		return false, dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	// Nothing updated: either the reading is gone or it is already interpreted.
	if _, err := r.GetReading(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *ReadingRepository) SetFeedback(ctx context.Context, id string, f domain.Feedback) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	query := `UPDATE readings SET feedback_rating = $2, feedback_comment = $3, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, f.Rating, nullString(f.Comment))
	if err != nil {
		return dbErr(err)
	}
	return affected(res)
}

func (r *ReadingRepository) UpdateReading(ctx context.Context, id string, p domain.ReadingPatch) (domain.Reading, error) {
	if !validID(id) {
		return domain.Reading{}, domain.ErrNotFound
	}

	sets := []string{"updated_at = now()"}
	args := []any{id}
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Question != nil {
		set("question", *p.Question)
	}
	if p.Interpretation != nil {
		set("interpretation", nullString(*p.Interpretation))
	}
	if p.ReaderID != nil {
		if *p.ReaderID != "" && !validID(*p.ReaderID) {
			return domain.Reading{}, fmt.Errorf("%w: malformed reader id", domain.ErrInvalidRequest)
		}
		set("reader_id", nullString(*p.ReaderID))
	}
	if p.Public != nil {
		set("is_public", *p.Public)
	}

	query := `UPDATE readings SET ` + strings.Join(sets, ", ") + `
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING ` + readingColumns
	rd, err := scanReading(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.Reading{}, dbErr(err)
	}
	return rd, nil
}

func (r *ReadingRepository) SoftDeleteReading(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `UPDATE readings SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return dbErr(err)
	}
	return affected(res)
}

func (r *ReadingRepository) DeleteReading(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM readings WHERE id = $1`, id)
	if err != nil {
		return dbErr(err)
	}
	return affected(res)
}

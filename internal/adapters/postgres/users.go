package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/randomtoy/tarot-backend/internal/domain"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, password_hash, role, zodiac_sign, daily_readings_count, daily_readings_last_reset, created_at`

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u         domain.User
		zodiac    sql.NullString
		lastReset sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &zodiac,
		&u.Daily.Count, &lastReset, &u.CreatedAt)
	if err != nil {
		return domain.User{}, err
	}
	u.ZodiacSign = domain.ZodiacSign(zodiac.String)
	if lastReset.Valid {
		u.Daily.LastReset = domain.Day(lastReset.Time)
	}
	return u, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	query := `INSERT INTO users (id, username, password_hash, role, zodiac_sign, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query, u.ID, u.Username, u.PasswordHash, string(u.Role),
		nullString(string(u.ZodiacSign)), u.CreatedAt)
	if err != nil {
		return domain.User{}, dbErr(err)
	}
	return u, nil
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (domain.User, error) {
	if !validID(id) {
		return domain.User{}, domain.ErrNotFound
	}
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return domain.User{}, dbErr(err)
	}
	return u, nil
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return domain.User{}, dbErr(err)
	}
	return u, nil
}

func (r *UserRepository) SetRole(ctx context.Context, username string, role domain.Role) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET role = $2 WHERE username = $1`, username, string(role))
	if err != nil {
		return dbErr(err)
	}
	return affected(res)
}

// IncrementDailyReadings bumps or restarts the counter in a single statement
// so concurrent readings of the same user never lose an increment.
func (r *UserRepository) IncrementDailyReadings(ctx context.Context, userID string, day time.Time) (int, error) {
	if !validID(userID) {
		return 0, domain.ErrNotFound
	}
	query := `UPDATE users SET
		 daily_readings_count = CASE WHEN daily_readings_last_reset = $2::date THEN daily_readings_count + 1 ELSE 1 END,
		 daily_readings_last_reset = $2::date
		 WHERE id = $1 AND role = 'user'
		 RETURNING daily_readings_count`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, domain.Day(day)).Scan(&count); err != nil {
		return 0, dbErr(err)
	}
	return count, nil
}

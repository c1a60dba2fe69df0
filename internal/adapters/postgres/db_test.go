package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomtoy/tarot-backend/internal/domain"
)

const (
	cardID   = "6f1c2a8e-2f7b-4c61-9d2a-0d7f5a1c3b11"
	userID   = "0b7e4a9c-1d2e-4f30-8a5b-6c7d8e9f0a12"
	readerID = "9a8b7c6d-5e4f-4321-8765-43210fedcba9"
	readID   = "3c2b1a09-8f7e-4d6c-9b5a-41302f1e0d9c"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func TestDBErr(t *testing.T) {
	assert.ErrorIs(t, dbErr(sql.ErrNoRows), domain.ErrNotFound)
	assert.ErrorIs(t, dbErr(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}), domain.ErrConflict)

	err := dbErr(errors.New("db down"))
	assert.EqualError(t, err, "db error: db down")
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestValidID(t *testing.T) {
	assert.True(t, validID(cardID))
	assert.False(t, validID("card-1"))
	assert.False(t, validID(""))
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^UPDATE\s+spreads\s+SET\s+is_active\s*=\s*FALSE`).
		WithArgs("Ba Lá Bài").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		return NewSpreadRepository(tx).DeactivateSpread(ctx, "Ba Lá Bài")
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	boom := errors.New("boom")
	err = WithTx(ctx, db, nil, func(context.Context, DBTX) error { return boom })
	assert.ErrorIs(t, err, boom)
}

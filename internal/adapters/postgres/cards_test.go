package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomtoy/tarot-backend/internal/domain"
)

var cardRowColumns = []string{"id", "name", "deck", "arcana", "suit", "number", "keywords",
	"upright_meaning", "reversed_meaning", "description", "image_url"}

func TestCardRepository_ListByDeck(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCardRepository(db)

	rows := sqlmock.NewRows(cardRowColumns).
		AddRow(cardID, "The Fool", domain.DefaultDeck, "major", nil, 0, []byte(`["khởi đầu","tự do"]`),
			"Khởi đầu mới", "Liều lĩnh", "", "/images/major/00-the-fool.jpg")
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*name.*FROM\s+cards\s+WHERE\s+deck\s*=\s*\$1\s+ORDER\s+BY`).
		WithArgs(domain.DefaultDeck).
		WillReturnRows(rows)

	cards, err := repo.ListByDeck(context.Background(), domain.DefaultDeck)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "The Fool", cards[0].Name)
	assert.Equal(t, domain.MajorArcana, cards[0].Arcana)
	assert.Empty(t, cards[0].Suit)
	assert.Equal(t, []string{"khởi đầu", "tự do"}, cards[0].Keywords)
}

func TestCardRepository_GetByIDs_SkipsMalformed(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCardRepository(db)

	rows := sqlmock.NewRows(cardRowColumns).
		AddRow(cardID, "Ace of Cups", "X", "minor", "cups", 1, []byte(`[]`), "Yêu", "Trống rỗng", "", "")
	mock.ExpectQuery(`(?s)FROM\s+cards\s+WHERE\s+id\s+IN\s+\(\$1\)`).
		WithArgs(cardID).
		WillReturnRows(rows)

	got, err := repo.GetByIDs(context.Background(), []string{cardID, "not-a-uuid"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "cups", got[cardID].Suit)

	empty, err := repo.GetByIDs(context.Background(), []string{"nope"})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCardRepository_GetCard_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCardRepository(db)

	_, err := repo.GetCard(context.Background(), "card-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	mock.ExpectQuery(`(?s)FROM\s+cards\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(cardID).
		WillReturnRows(sqlmock.NewRows(cardRowColumns))
	_, err = repo.GetCard(context.Background(), cardID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCardRepository_CreateCard_DBError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCardRepository(db)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+cards`).
		WillReturnError(errors.New("db down"))

	_, err := repo.CreateCard(context.Background(), domain.Card{ID: cardID, Name: "The Fool", Arcana: domain.MajorArcana})
	assert.EqualError(t, err, "db error: db down")
}

func TestCardRepository_UpdateAndDelete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCardRepository(db)
	ctx := context.Background()

	mock.ExpectExec(`(?s)^UPDATE\s+cards\s+SET\s+name\s*=\s*\$2.*WHERE\s+id\s*=\s*\$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	_, err := repo.UpdateCard(ctx, domain.Card{ID: cardID, Name: "Ghost", Arcana: domain.MajorArcana})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+cards\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(cardID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.DeleteCard(ctx, cardID))
}

func TestCardRepository_UpsertCard(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCardRepository(db)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+cards.*ON\s+CONFLICT\s+\(name\)\s+DO\s+UPDATE`).
		WithArgs(cardID, "The Fool", "X", "major", nil, 0, []byte(`[]`), "", "", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertCard(context.Background(), domain.Card{ID: cardID, Name: "The Fool", Deck: "X", Arcana: domain.MajorArcana})
	require.NoError(t, err)
}

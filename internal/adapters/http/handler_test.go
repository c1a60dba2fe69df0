package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomtoy/tarot-backend/internal/adapters/decks"
	httpadapter "github.com/randomtoy/tarot-backend/internal/adapters/http"
	"github.com/randomtoy/tarot-backend/internal/adapters/memory"
	"github.com/randomtoy/tarot-backend/internal/app"
	"github.com/randomtoy/tarot-backend/internal/domain"
)

type seqRNG struct{ n int }

func (r *seqRNG) Intn(n int) int {
	r.n++
	return r.n % n
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC) }

type testServer struct {
	t        *testing.T
	e        *echo.Echo
	accounts *app.AccountService
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()

	catalog, err := decks.NewEmbedded().Catalog()
	require.NoError(t, err)
	catalogSvc := app.NewCatalogService(store, store, logger)
	require.NoError(t, catalogSvc.Seed(context.Background(), catalog.Cards, catalog.Spreads))

	accounts := app.NewAccountService(store, fixedClock{}, []byte("test-secret"), time.Hour, 3, logger)
	readings := app.NewReadingService(store, store, store, store, nil, &seqRNG{}, fixedClock{}, domain.DefaultDeck, logger)

	e := echo.New()
	e.Use(httpadapter.RequestIDMiddleware())
	httpadapter.NewHandler(readings, catalogSvc, accounts).Register(e)
	return &testServer{t: t, e: e, accounts: accounts}
}

func (s *testServer) do(method, target, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// signup registers a user, grants role and returns a token carrying it.
func (s *testServer) signup(username string, role domain.Role) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/v1/auth/register", "", map[string]string{
		"username": username, "password": "password123",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	if role != domain.RoleUser {
		require.NoError(s.t, s.accounts.SetRole(context.Background(), username, role))
	}
	rec = s.do(http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": username, "password": "password123",
	})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var sess app.Session
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return sess.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRandomReading_Flow(t *testing.T) {
	s := newServer(t)
	alice := s.signup("alice", domain.RoleUser)
	bob := s.signup("bob", domain.RoleUser)

	rec := s.do(http.MethodPost, "/v1/readings/random", "", map[string]any{"spread": "Ba Lá Bài"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/v1/readings/random", alice, map[string]any{
		"spread": "Ba Lá Bài", "question": "Công việc?", "allowReversed": false,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reading := decode[domain.Reading](t, rec)
	require.Len(t, reading.Cards, 3)
	for i, c := range reading.Cards {
		assert.Equal(t, i+1, c.Position)
		assert.False(t, c.Reversed)
		require.NotNil(t, c.Card)
	}

	rec = s.do(http.MethodGet, "/v1/readings/"+reading.ID+"/auto-interpretation", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	text := decode[httpadapter.InterpretationResponse](t, rec).Interpretation
	assert.True(t, strings.HasPrefix(text, "Trải bài: Ba Lá Bài\n"), text)
	assert.Contains(t, text, "Câu hỏi: \"Công việc?\"")

	rec = s.do(http.MethodGet, "/v1/readings/"+reading.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/v1/readings", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[httpadapter.ReadingList](t, rec).Count)

	rec = s.do(http.MethodGet, "/v1/users/me", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[app.Profile](t, rec)
	assert.Equal(t, 1, profile.ReadingsToday)
	assert.Equal(t, 2, profile.RemainingToday)
}

func TestRandomReading_BadRequests(t *testing.T) {
	s := newServer(t)
	alice := s.signup("alice", domain.RoleUser)

	rec := s.do(http.MethodPost, "/v1/readings/random", alice, map[string]any{"spread": "Không Tồn Tại"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or inactive spread type")

	rec = s.do(http.MethodPost, "/v1/readings/random", alice, map[string]any{"spread": "Celtic Cross", "deck": "Thoth"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/v1/readings/random", alice, map[string]any{
		"spread": "Ba Lá Bài", "question": strings.Repeat("ả", 501),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExplicitReading(t *testing.T) {
	s := newServer(t)
	alice := s.signup("alice", domain.RoleUser)

	rec := s.do(http.MethodGet, "/v1/cards", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cards := decode[[]domain.Card](t, rec)
	require.Len(t, cards, 22)

	rec = s.do(http.MethodPost, "/v1/readings", alice, map[string]any{
		"spreadType": "Tự Chọn",
		"cards": []map[string]any{
			{"cardId": cards[0].ID, "isReversed": true},
			{"cardId": cards[1].ID},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reading := decode[domain.Reading](t, rec)
	assert.Equal(t, 2, reading.Cards[1].Position)
	assert.True(t, reading.Cards[0].Reversed)

	rec = s.do(http.MethodPost, "/v1/readings", alice, map[string]any{
		"spreadType": "Tự Chọn",
		"cards":      []map[string]any{{"cardId": "missing"}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInterpretation_Roles(t *testing.T) {
	s := newServer(t)
	alice := s.signup("alice", domain.RoleUser)
	carol := s.signup("carol", domain.RoleReader)

	rec := s.do(http.MethodPost, "/v1/readings/random", alice, map[string]any{"spread": "Năm Lá Bài"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[domain.Reading](t, rec).ID

	path := "/v1/readings/" + id + "/interpretation"
	rec = s.do(http.MethodPost, path, alice, map[string]string{"interpretation": "tự đọc"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, path, carol, map[string]string{"interpretation": "Một chặng đường mới."})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Một chặng đường mới.", decode[domain.Reading](t, rec).Interpretation)

	rec = s.do(http.MethodPost, path, carol, map[string]string{"interpretation": "lần hai"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/v1/readings/"+id+"/ai-interpretation", carol, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFeedbackAndAdministration(t *testing.T) {
	s := newServer(t)
	alice := s.signup("alice", domain.RoleUser)
	root := s.signup("root", domain.RoleAdmin)

	rec := s.do(http.MethodPost, "/v1/readings/random", alice, map[string]any{"spread": "Ba Lá Bài"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[domain.Reading](t, rec).ID

	rec = s.do(http.MethodPost, "/v1/readings/"+id+"/feedback", alice, map[string]any{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(http.MethodPost, "/v1/readings/"+id+"/feedback", alice, map[string]any{"rating": 5, "comment": "Rất đúng"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPatch, "/v1/readings/"+id, alice, map[string]any{"isPublic": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodPatch, "/v1/readings/"+id, root, map[string]any{"isPublic": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[domain.Reading](t, rec).Public)

	rec = s.do(http.MethodDelete, "/v1/readings/"+id, root, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, "/v1/readings/"+id, alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSpreadAdministration(t *testing.T) {
	s := newServer(t)
	root := s.signup("root", domain.RoleAdmin)

	rec := s.do(http.MethodPost, "/v1/spreads", root, map[string]any{"name": "Hai Lá", "cardCount": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/v1/spreads/Hai%20L%C3%A1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, "/v1/spreads/Hai%20L%C3%A1", root, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/v1/spreads/Hai%20L%C3%A1", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDraw(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/v1/draw?spread=three-card&reversed=false", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[httpadapter.DrawResponse](t, rec)
	assert.Len(t, resp.Cards, 3)
	assert.Equal(t, domain.DefaultDeck, resp.Deck)

	rec = s.do(http.MethodGet, "/v1/draw?spread=nine-card", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/v1/draw?spread=single&reversed=perhaps", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestZodiac(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/v1/zodiac/signs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]httpadapter.ZodiacSignResponse](t, rec), 12)

	rec = s.do(http.MethodGet, "/v1/zodiac/compatibility?first=Leo&second=aries", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 90, decode[domain.Compatibility](t, rec).Score)

	rec = s.do(http.MethodGet, "/v1/zodiac/compatibility?first=leo&second=dragon", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth_InvalidToken(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/v1/users/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

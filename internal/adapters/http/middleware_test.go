package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomtoy/tarot-backend/internal/app"
	"github.com/randomtoy/tarot-backend/internal/domain"
)

func serve(e *echo.Echo, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequestIDMiddleware_KeepsIncomingID(t *testing.T) {
	e := echo.New()
	e.Use(RequestIDMiddleware())
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, c.Get(keyRequestID).(string)) })

	rec := serve(e, http.MethodGet, "/", map[string]string{headerRequestID: "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))
	assert.Equal(t, "req-42", rec.Body.String())
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(RequestIDMiddleware(), LoggingMiddleware(logger))
	e.GET("/boom", func(c echo.Context) error {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	})

	serve(e, http.MethodGet, "/boom", nil)
	line := buf.String()
	assert.Contains(t, line, `"level":"ERROR"`)
	assert.Contains(t, line, `"status":500`)
	assert.Contains(t, line, `"path":"/boom"`)

	buf.Reset()
	rec := serve(e, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, buf.String(), `"status":404`)
}

func TestRateLimitMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(RateLimitMiddleware(1, 2))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	first := map[string]string{echo.HeaderXRealIP: "10.0.0.1"}
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/", first).Code)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/", first).Code)
	rec := serve(e, http.MethodGet, "/", first)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	second := map[string]string{echo.HeaderXRealIP: "10.0.0.2"}
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/", second).Code)
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	e := echo.New()
	e.Use(RateLimitMiddleware(0, 0))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	for range 50 {
		require.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/", nil).Code)
	}
}

func TestClientLimiter_SweepsIdleClients(t *testing.T) {
	l := &clientLimiter{rps: 1, burst: 1, idle: time.Minute, clients: map[string]*limiterEntry{}}
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	assert.True(t, l.allow("a", now))
	assert.False(t, l.allow("a", now))
	assert.True(t, l.allow("b", now.Add(2*time.Minute)))
	assert.NotContains(t, l.clients, "a")
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	setCaller := func(role domain.Role) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				c.Set(keyCaller, app.Caller{UserID: "u-1", Role: role})
				return next(c)
			}
		}
	}
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/reader", ok, setCaller(domain.RoleReader), RequireRole(domain.RoleReader, domain.RoleAdmin))
	e.GET("/premium", ok, setCaller(domain.RolePremium), RequireRole(domain.RoleReader, domain.RoleAdmin))

	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/reader", nil).Code)
	rec := serve(e, http.MethodGet, "/premium", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "insufficient role"))
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInvalidRequest, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrLLMDisabled, http.StatusServiceUnavailable},
		{domain.ErrUpstreamLLM, http.StatusBadGateway},
		{domain.ErrInvalidLLMJSON, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	e := echo.New()
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, mapError(c, tc.err))
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

package http

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/randomtoy/tarot-backend/internal/app"
	"github.com/randomtoy/tarot-backend/internal/domain"
)

const (
	headerRequestID = "X-Request-Id"
	keyRequestID    = "request_id"
	keyCaller       = "caller"
)

// RequestIDMiddleware ensures every request has a unique X-Request-Id.
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(headerRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(headerRequestID, id)
			c.Set(keyRequestID, id)
			return next(c)
		}
	}
}

// LoggingMiddleware logs each request with structured fields. Server errors
// are logged at error level.
func LoggingMiddleware(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.Any("request_id", c.Get(keyRequestID)),
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.Int("status", status),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if caller, ok := c.Get(keyCaller).(app.Caller); ok {
				attrs = append(attrs, slog.String("user_id", caller.UserID))
			}
			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		}
	}
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	idle    time.Duration
	clients map[string]*limiterEntry
	sweep   time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (l *clientLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.sweep) > l.idle {
		for k, e := range l.clients {
			if now.Sub(e.lastSeen) > l.idle {
				delete(l.clients, k)
			}
		}
		l.sweep = now
	}

	e, ok := l.clients[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// RateLimitMiddleware throttles each client IP to rps requests per second
// with the given burst. A non-positive rps disables the limiter.
func RateLimitMiddleware(rps float64, burst int) echo.MiddlewareFunc {
	if rps <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	l := &clientLimiter{
		rps:     rate.Limit(rps),
		burst:   max(burst, 1),
		idle:    5 * time.Minute,
		clients: make(map[string]*limiterEntry),
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.allow(c.RealIP(), time.Now()) {
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			}
			return next(c)
		}
	}
}

// AuthMiddleware requires a valid bearer token and stores the caller.
func AuthMiddleware(accounts *app.AccountService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing bearer token"})
			}
			caller, err := accounts.Authenticate(strings.TrimSpace(token))
			if err != nil {
				return mapError(c, err)
			}
			c.Set(keyCaller, caller)
			return next(c)
		}
	}
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller := callerFrom(c)
			for _, r := range roles {
				if caller.Role == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, ErrorResponse{Error: "insufficient role"})
		}
	}
}

func callerFrom(c echo.Context) app.Caller {
	caller, _ := c.Get(keyCaller).(app.Caller)
	return caller
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/tarot-backend/internal/auth"
	"github.com/randomtoy/tarot-backend/internal/domain"
	"github.com/randomtoy/tarot-backend/internal/ports"
)

// RegisterRequest is the input of account registration.
type RegisterRequest struct {
	Username   string
	Password   string
	ZodiacSign string
}

// Session is an issued access token.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      domain.User `json:"user"`
}

// Profile is the caller's account with its reading usage for today.
type Profile struct {
	User           domain.User `json:"user"`
	ReadingsToday  int         `json:"readingsToday"`
	DailyLimit     int         `json:"dailyLimit"`
	RemainingToday int         `json:"remainingToday"`
}

// AccountService registers users and issues tokens.
type AccountService struct {
	users      ports.UserStore
	clock      ports.Clock
	secret     []byte
	ttl        time.Duration
	dailyLimit int
	logger     *slog.Logger
}

func NewAccountService(users ports.UserStore, clock ports.Clock, secret []byte, ttl time.Duration, dailyLimit int, logger *slog.Logger) *AccountService {
	return &AccountService{
		users:      users,
		clock:      clock,
		secret:     secret,
		ttl:        ttl,
		dailyLimit: dailyLimit,
		logger:     logger,
	}
}

func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (Session, error) {
	username := strings.TrimSpace(req.Username)
	if len(username) < 3 || len(username) > 64 {
		return Session{}, fmt.Errorf("%w: username must be 3 to 64 characters", domain.ErrInvalidRequest)
	}
	if len(req.Password) < 8 {
		return Session{}, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidRequest)
	}

	var sign domain.ZodiacSign
	if req.ZodiacSign != "" {
		parsed, err := domain.ParseZodiacSign(req.ZodiacSign)
		if err != nil {
			return Session{}, err
		}
		sign = parsed
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return Session{}, err
	}

	user, err := s.users.CreateUser(ctx, domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		ZodiacSign:   sign,
		CreatedAt:    s.clock.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return Session{}, fmt.Errorf("%w: username %q is taken", domain.ErrConflict, username)
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)

	return s.issue(user)
}

func (s *AccountService) Login(ctx context.Context, username, password string) (Session, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Session{}, fmt.Errorf("%w: invalid username or password", domain.ErrUnauthorized)
		}
		return Session{}, fmt.Errorf("get user: %w", err)
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return Session{}, err
	}
	return s.issue(user)
}

func (s *AccountService) issue(user domain.User) (Session, error) {
	token, err := auth.GenerateToken(user.ID, user.Role, s.secret, s.ttl)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		ExpiresAt: time.Now().Add(s.ttl).UTC(),
		User:      user,
	}, nil
}

// Authenticate verifies a bearer token and returns the caller it names.
func (s *AccountService) Authenticate(token string) (Caller, error) {
	claims, err := auth.ParseToken(token, s.secret)
	if err != nil {
		return Caller{}, err
	}
	return Caller{UserID: claims.UserID, Role: claims.Role}, nil
}

// Me returns the caller's profile. The daily limit is informational and
// does not block reading creation.
func (s *AccountService) Me(ctx context.Context, caller Caller) (Profile, error) {
	user, err := s.users.GetUser(ctx, caller.UserID)
	if err != nil {
		return Profile{}, fmt.Errorf("user %q: %w", caller.UserID, err)
	}
	now := s.clock.Now()
	p := Profile{User: user, ReadingsToday: user.Daily.CountOn(now)}
	if user.Role == domain.RoleUser {
		p.DailyLimit = s.dailyLimit
		p.RemainingToday = user.Daily.Remaining(s.dailyLimit, now)
	}
	return p, nil
}

// SetRole changes a user's role. It is reachable only from the operator CLI.
func (s *AccountService) SetRole(ctx context.Context, username string, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidRequest, role)
	}
	if err := s.users.SetRole(ctx, username, role); err != nil {
		return fmt.Errorf("user %q: %w", username, err)
	}
	s.logger.InfoContext(ctx, "role changed", "username", username, "role", role)
	return nil
}

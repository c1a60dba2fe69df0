package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/randomtoy/tarot-backend/internal/domain"
)

// devJWTSecret signs tokens when no database is configured and JWT_SECRET is unset.
const devJWTSecret = "tarot-dev-secret"

type Config struct {
	HTTPAddr       string
	LogLevel       slog.Level
	RequestTimeout time.Duration

	DatabaseDSN    string
	MigrateOnStart bool
	SeedCatalog    bool

	JWTSecret []byte
	JWTTTL    time.Duration

	DefaultDeck       string
	DailyReadingLimit int
	RateLimitRPS      float64
	RateLimitBurst    int

	LLMProvider       string
	LLMModel          string
	LLMFallbackModels []string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	LLMTimeout        time.Duration
}

// InMemory reports whether the service runs without a database.
func (c Config) InMemory() bool {
	return c.DatabaseDSN == ""
}

// LLMEnabled reports whether AI interpretations are configured.
func (c Config) LLMEnabled() bool {
	return c.LLMProvider == "openrouter"
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first without overriding set variables.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	c := Config{
		HTTPAddr:          envOr("HTTP_ADDR", ":8080"),
		DatabaseDSN:       os.Getenv("DATABASE_DSN"),
		DefaultDeck:       envOr("DEFAULT_DECK", domain.DefaultDeck),
		LLMProvider:       strings.ToLower(envOr("LLM_PROVIDER", "none")),
		LLMModel:          envOr("LLM_MODEL", "qwen/qwen3-4b:free"),
		LLMFallbackModels: splitList(os.Getenv("LLM_FALLBACK_MODELS")),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: envOr("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
	}

	var err error
	if c.LogLevel, err = parseLogLevel(envOr("LOG_LEVEL", "info")); err != nil {
		return Config{}, err
	}
	if c.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", 60*time.Second); err != nil {
		return Config{}, err
	}
	if c.JWTTTL, err = durationEnv("JWT_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if c.LLMTimeout, err = durationEnv("LLM_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if c.MigrateOnStart, err = boolEnv("MIGRATE_ON_START", true); err != nil {
		return Config{}, err
	}
	if c.SeedCatalog, err = boolEnv("SEED_CATALOG", true); err != nil {
		return Config{}, err
	}
	if c.DailyReadingLimit, err = intEnv("DAILY_READING_LIMIT", 3); err != nil {
		return Config{}, err
	}
	if c.RateLimitBurst, err = intEnv("RATE_LIMIT_BURST", 20); err != nil {
		return Config{}, err
	}
	rps := envOr("RATE_LIMIT_RPS", "10")
	if c.RateLimitRPS, err = strconv.ParseFloat(rps, 64); err != nil || c.RateLimitRPS < 0 {
		return Config{}, fmt.Errorf("invalid RATE_LIMIT_RPS %q", rps)
	}

	switch secret := os.Getenv("JWT_SECRET"); {
	case secret != "":
		c.JWTSecret = []byte(secret)
	case c.InMemory():
		c.JWTSecret = []byte(devJWTSecret)
	default:
		return Config{}, errors.New("JWT_SECRET is required when DATABASE_DSN is set")
	}

	switch c.LLMProvider {
	case "none":
	case "openrouter":
		if c.OpenRouterAPIKey == "" {
			return Config{}, errors.New("OPENROUTER_API_KEY is required when LLM_PROVIDER=openrouter")
		}
	default:
		return Config{}, fmt.Errorf("invalid LLM_PROVIDER %q", c.LLMProvider)
	}

	return c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, v)
	}
	return b, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
}

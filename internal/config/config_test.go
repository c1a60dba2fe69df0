package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"HTTP_ADDR", "LOG_LEVEL", "DATABASE_DSN", "MIGRATE_ON_START", "SEED_CATALOG",
	"JWT_SECRET", "JWT_TTL", "DEFAULT_DECK", "DAILY_READING_LIMIT", "RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "LLM_PROVIDER", "LLM_MODEL",
	"LLM_FALLBACK_MODELS", "OPENROUTER_API_KEY", "OPENROUTER_BASE_URL", "LLM_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, slog.LevelInfo, c.LogLevel)
	assert.True(t, c.InMemory())
	assert.True(t, c.MigrateOnStart)
	assert.True(t, c.SeedCatalog)
	assert.Equal(t, []byte(devJWTSecret), c.JWTSecret)
	assert.Equal(t, 24*time.Hour, c.JWTTTL)
	assert.Equal(t, "Rider Waite Smith", c.DefaultDeck)
	assert.Equal(t, 3, c.DailyReadingLimit)
	assert.Equal(t, 10.0, c.RateLimitRPS)
	assert.Equal(t, 20, c.RateLimitBurst)
	assert.Equal(t, 60*time.Second, c.RequestTimeout)
	assert.False(t, c.LLMEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_DSN", "postgres://tarot@localhost/tarot")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SEED_CATALOG", "false")
	t.Setenv("LLM_PROVIDER", "openrouter")
	t.Setenv("OPENROUTER_API_KEY", "key")
	t.Setenv("LLM_FALLBACK_MODELS", " a , ,b ")
	t.Setenv("LLM_TIMEOUT", "5s")

	c, err := Load()
	require.NoError(t, err)

	assert.False(t, c.InMemory())
	assert.Equal(t, []byte("s3cret"), c.JWTSecret)
	assert.Equal(t, slog.LevelDebug, c.LogLevel)
	assert.False(t, c.SeedCatalog)
	assert.True(t, c.LLMEnabled())
	assert.Equal(t, []string{"a", "b"}, c.LLMFallbackModels)
	assert.Equal(t, 5*time.Second, c.LLMTimeout)
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"secret required with database": {"DATABASE_DSN": "postgres://x"},
		"openrouter without key":        {"LLM_PROVIDER": "openrouter"},
		"unknown provider":              {"LLM_PROVIDER": "gpt"},
		"bad log level":                 {"LOG_LEVEL": "loud"},
		"bad duration":                  {"JWT_TTL": "forever"},
		"negative limit":                {"DAILY_READING_LIMIT": "-1"},
		"bad bool":                      {"MIGRATE_ON_START": "maybe"},
		"bad rps":                       {"RATE_LIMIT_RPS": "fast"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

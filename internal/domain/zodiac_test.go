package domain_test

import (
	"errors"
	"testing"

	"github.com/randomtoy/tarot-backend/internal/domain"
)

func TestParseZodiacSign(t *testing.T) {
	sign, err := domain.ParseZodiacSign("  Scorpio ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sign != domain.Scorpio {
		t.Fatalf("expected scorpio, got %s", sign)
	}

	if _, err := domain.ParseZodiacSign("ophiuchus"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestZodiacSigns_AllHaveElements(t *testing.T) {
	if len(domain.ZodiacSigns) != 12 {
		t.Fatalf("expected 12 signs, got %d", len(domain.ZodiacSigns))
	}
	for _, s := range domain.ZodiacSigns {
		if s.Element() == "" {
			t.Errorf("%s has no element", s)
		}
	}
}

func TestCompatibilityOf(t *testing.T) {
	tests := []struct {
		first, second domain.ZodiacSign
		score         int
	}{
		{domain.Leo, domain.Leo, 80},
		{domain.Aries, domain.Sagittarius, 90},
		{domain.Gemini, domain.Leo, 75},
		{domain.Taurus, domain.Pisces, 75},
		{domain.Aries, domain.Cancer, 50},
	}

	for _, tc := range tests {
		got := domain.CompatibilityOf(tc.first, tc.second)
		if got.Score != tc.score {
			t.Errorf("%s/%s: expected %d, got %d", tc.first, tc.second, tc.score, got.Score)
		}
		if got.Summary == "" {
			t.Errorf("%s/%s: empty summary", tc.first, tc.second)
		}
		if rev := domain.CompatibilityOf(tc.second, tc.first); rev.Score != got.Score {
			t.Errorf("%s/%s: score not symmetric", tc.first, tc.second)
		}
	}
}

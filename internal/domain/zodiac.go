package domain

import (
	"fmt"
	"strings"
)

// ZodiacSign is one of the twelve western zodiac signs.
type ZodiacSign string

const (
	Aries       ZodiacSign = "aries"
	Taurus      ZodiacSign = "taurus"
	Gemini      ZodiacSign = "gemini"
	Cancer      ZodiacSign = "cancer"
	Leo         ZodiacSign = "leo"
	Virgo       ZodiacSign = "virgo"
	Libra       ZodiacSign = "libra"
	Scorpio     ZodiacSign = "scorpio"
	Sagittarius ZodiacSign = "sagittarius"
	Capricorn   ZodiacSign = "capricorn"
	Aquarius    ZodiacSign = "aquarius"
	Pisces      ZodiacSign = "pisces"
)

// Element is the classical element of a sign.
type Element string

const (
	Fire  Element = "fire"
	Earth Element = "earth"
	Air   Element = "air"
	Water Element = "water"
)

// ZodiacSigns lists every sign in calendar order. The storage layer's CHECK
// constraint mirrors this list.
var ZodiacSigns = []ZodiacSign{
	Aries, Taurus, Gemini, Cancer, Leo, Virgo,
	Libra, Scorpio, Sagittarius, Capricorn, Aquarius, Pisces,
}

var signElements = map[ZodiacSign]Element{
	Aries: Fire, Leo: Fire, Sagittarius: Fire,
	Taurus: Earth, Virgo: Earth, Capricorn: Earth,
	Gemini: Air, Libra: Air, Aquarius: Air,
	Cancer: Water, Scorpio: Water, Pisces: Water,
}

// ParseZodiacSign normalizes s and checks it against the known signs.
func ParseZodiacSign(s string) (ZodiacSign, error) {
	sign := ZodiacSign(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := signElements[sign]; !ok {
		return "", fmt.Errorf("%w: unknown zodiac sign %q", ErrInvalidRequest, s)
	}
	return sign, nil
}

// Element returns the element of the sign.
func (z ZodiacSign) Element() Element {
	return signElements[z]
}

// Compatibility is the pairing score of two signs.
type Compatibility struct {
	First   ZodiacSign `json:"first"`
	Second  ZodiacSign `json:"second"`
	Score   int        `json:"score"`
	Summary string     `json:"summary"`
}

// complementary elements feed each other: fire with air, earth with water.
func complementary(a, b Element) bool {
	return (a == Fire && b == Air) || (a == Air && b == Fire) ||
		(a == Earth && b == Water) || (a == Water && b == Earth)
}

// CompatibilityOf scores two signs by their element pairing.
func CompatibilityOf(first, second ZodiacSign) Compatibility {
	a, b := first.Element(), second.Element()
	c := Compatibility{First: first, Second: second}
	switch {
	case first == second:
		c.Score = 80
		c.Summary = "Cùng cung: thấu hiểu nhau tự nhiên nhưng dễ khuếch đại điểm yếu chung."
	case a == b:
		c.Score = 90
		c.Summary = "Cùng nguyên tố: nhịp sống và cách nhìn cuộc đời rất hòa hợp."
	case complementary(a, b):
		c.Score = 75
		c.Summary = "Nguyên tố bổ trợ: hai bên nuôi dưỡng và thúc đẩy lẫn nhau."
	default:
		c.Score = 50
		c.Summary = "Nguyên tố đối lập: cần kiên nhẫn và thỏa hiệp để cân bằng."
	}
	return c
}

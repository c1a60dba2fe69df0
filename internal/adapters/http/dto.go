package http

import "github.com/randomtoy/tarot-backend/internal/domain"

type ErrorResponse struct {
	Error string `json:"error"`
}

type credentialsRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	ZodiacSign string `json:"zodiacSign"`
}

type randomReadingRequest struct {
	Spread        string `json:"spread"`
	Question      string `json:"question"`
	Deck          string `json:"deck"`
	AllowReversed *bool  `json:"allowReversed"`
}

type readingCardRequest struct {
	CardID   string `json:"cardId"`
	Position int    `json:"position"`
	Reversed bool   `json:"isReversed"`
}

type explicitReadingRequest struct {
	SpreadType string               `json:"spreadType"`
	Question   string               `json:"question"`
	Cards      []readingCardRequest `json:"cards"`
}

type interpretationRequest struct {
	Interpretation string `json:"interpretation"`
}

type patchReadingRequest struct {
	Question       *string `json:"question"`
	Interpretation *string `json:"interpretation"`
	ReaderID       *string `json:"readerId"`
	Public         *bool   `json:"isPublic"`
}

// DrawResponse is the JSON shape returned by GET /v1/draw.
type DrawResponse struct {
	Spread string             `json:"spread"`
	Deck   string             `json:"deck"`
	Cards  []domain.DrawnCard `json:"cards"`
}

type InterpretationResponse struct {
	Interpretation string `json:"interpretation"`
}

type ReadingList struct {
	Readings []domain.Reading `json:"readings"`
	Count    int              `json:"count"`
}

type ZodiacSignResponse struct {
	Sign    domain.ZodiacSign `json:"sign"`
	Element domain.Element    `json:"element"`
}

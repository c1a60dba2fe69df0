package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/randomtoy/tarot-backend/internal/domain"
	"github.com/randomtoy/tarot-backend/internal/metrics"
	"github.com/randomtoy/tarot-backend/internal/ports"
)

// Caller identifies the authenticated user on whose behalf a service acts.
type Caller struct {
	UserID string
	Role   domain.Role
}

func (c Caller) isStaff() bool {
	return c.Role == domain.RoleReader || c.Role == domain.RoleAdmin
}

// DrawRequest is the input of the unpersisted fixed-spread draw.
type DrawRequest struct {
	SpreadType    string
	Deck          string
	AllowReversed bool
}

// RandomReadingRequest is the application-level input of a random reading.
type RandomReadingRequest struct {
	Spread        string
	Question      string
	Deck          string
	AllowReversed *bool
}

// ExplicitReadingRequest carries caller-chosen cards and positions.
type ExplicitReadingRequest struct {
	Spread   string
	Question string
	Cards    []domain.ReadingCard
}

// ReadingService assembles, stores and interprets readings.
type ReadingService struct {
	cards       ports.CardCatalog
	spreads     ports.SpreadCatalog
	readings    ports.ReadingStore
	users       ports.UserStore
	interpreter ports.Interpreter
	rng         domain.RNG
	clock       ports.Clock
	defaultDeck string
	logger      *slog.Logger
}

// NewReadingService wires the reading flow. interp may be nil when no LLM is
// configured.
func NewReadingService(
	cards ports.CardCatalog,
	spreads ports.SpreadCatalog,
	readings ports.ReadingStore,
	users ports.UserStore,
	interp ports.Interpreter,
	rng domain.RNG,
	clock ports.Clock,
	defaultDeck string,
	logger *slog.Logger,
) *ReadingService {
	if defaultDeck == "" {
		defaultDeck = domain.DefaultDeck
	}
	return &ReadingService{
		cards:       cards,
		spreads:     spreads,
		readings:    readings,
		users:       users,
		interpreter: interp,
		rng:         rng,
		clock:       clock,
		defaultDeck: defaultDeck,
		logger:      logger,
	}
}

func (s *ReadingService) deckOrDefault(deck string) string {
	if strings.TrimSpace(deck) == "" {
		return s.defaultDeck
	}
	return deck
}

func (s *ReadingService) draw(ctx context.Context, deck string, count int, allowReversed bool) ([]domain.DrawnCard, error) {
	catalog, err := s.cards.ListByDeck(ctx, deck)
	if err != nil {
		return nil, fmt.Errorf("list deck %q: %w", deck, err)
	}
	drawn, err := domain.DrawCards(deck, catalog, count, allowReversed, s.rng)
	if err != nil {
		return nil, err
	}

	var reversed int
	for _, d := range drawn {
		if d.Reversed {
			reversed++
		}
	}
	metrics.RecordDraw(len(drawn)-reversed, reversed)
	return drawn, nil
}

// Draw draws cards for a fixed spread name without persisting anything.
func (s *ReadingService) Draw(ctx context.Context, req DrawRequest) ([]domain.DrawnCard, error) {
	count, err := domain.LegacySpreadCount(req.SpreadType)
	if err != nil {
		return nil, err
	}
	return s.draw(ctx, s.deckOrDefault(req.Deck), count, req.AllowReversed)
}

// CreateRandom draws the active spread's card count and persists the reading.
func (s *ReadingService) CreateRandom(ctx context.Context, caller Caller, req RandomReadingRequest) (domain.Reading, error) {
	spread, err := s.spreads.GetActiveSpread(ctx, req.Spread)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Reading{}, fmt.Errorf("%w: invalid or inactive spread type %q", domain.ErrNotFound, req.Spread)
		}
		return domain.Reading{}, fmt.Errorf("get spread: %w", err)
	}

	allowReversed := true
	if req.AllowReversed != nil {
		allowReversed = *req.AllowReversed
	}

	drawn, err := s.draw(ctx, s.deckOrDefault(req.Deck), spread.CardCount, allowReversed)
	if err != nil {
		return domain.Reading{}, err
	}

	reading, err := s.persist(ctx, caller, spread.Name, req.Question, domain.Positioned(drawn))
	if err != nil {
		return domain.Reading{}, err
	}
	metrics.RecordReading("random")

	if caller.Role == domain.RoleUser {
		s.countDailyReading(ctx, caller.UserID)
	}
	return reading, nil
}

// countDailyReading is best effort: the reading already exists, so a failed
// increment only loses the bookkeeping.
func (s *ReadingService) countDailyReading(ctx context.Context, userID string) {
	count, err := s.users.IncrementDailyReadings(ctx, userID, domain.Day(s.clock.Now()))
	if err != nil {
		s.logger.WarnContext(ctx, "daily reading counter not updated", "user_id", userID, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "daily reading counted", "user_id", userID, "count", count)
}

// CreateExplicit persists a reading with caller-chosen cards. Every card id
// must exist; the cards are not checked against the named spread.
func (s *ReadingService) CreateExplicit(ctx context.Context, caller Caller, req ExplicitReadingRequest) (domain.Reading, error) {
	if strings.TrimSpace(req.Spread) == "" {
		return domain.Reading{}, fmt.Errorf("%w: spread type is required", domain.ErrInvalidRequest)
	}
	if len(req.Cards) == 0 {
		return domain.Reading{}, fmt.Errorf("%w: at least one card is required", domain.ErrInvalidRequest)
	}

	ids := make([]string, len(req.Cards))
	for i, c := range req.Cards {
		ids[i] = c.CardID
	}
	found, err := s.cards.GetByIDs(ctx, ids)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("get cards: %w", err)
	}

	cards := make([]domain.ReadingCard, len(req.Cards))
	for i, rc := range req.Cards {
		card, ok := found[rc.CardID]
		if !ok {
			return domain.Reading{}, fmt.Errorf("%w: card %q", domain.ErrNotFound, rc.CardID)
		}
		rc.Card = &card
		cards[i] = rc
	}

	reading, err := s.persist(ctx, caller, req.Spread, req.Question, cards)
	if err != nil {
		return domain.Reading{}, err
	}
	metrics.RecordReading("explicit")
	return reading, nil
}

// persist stores the reading and returns it with the resolved cards kept.
func (s *ReadingService) persist(ctx context.Context, caller Caller, spread, question string, cards []domain.ReadingCard) (domain.Reading, error) {
	now := s.clock.Now().UTC()
	reading := domain.Reading{
		ID:         uuid.NewString(),
		UserID:     caller.UserID,
		SpreadName: spread,
		Question:   strings.TrimSpace(question),
		Cards:      cards,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	stored, err := s.readings.CreateReading(ctx, reading)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("create reading: %w", err)
	}
	stored.Cards = cards
	return stored, nil
}

// Get returns a visible reading with its cards resolved.
func (s *ReadingService) Get(ctx context.Context, caller Caller, id string) (domain.Reading, error) {
	reading, err := s.readings.GetReading(ctx, id)
	if err != nil {
		return domain.Reading{}, wrapReadingErr(id, err)
	}
	if !canView(caller, reading) {
		return domain.Reading{}, fmt.Errorf("%w: reading %q", domain.ErrForbidden, id)
	}
	return s.resolve(ctx, reading)
}

// canView reports whether caller may read r: public readings are open to
// everyone, private ones to the owner, the assigned reader and admins.
func canView(caller Caller, r domain.Reading) bool {
	switch {
	case r.Public, caller.Role == domain.RoleAdmin:
		return true
	case r.UserID == caller.UserID:
		return true
	default:
		return r.ReaderID != "" && r.ReaderID == caller.UserID
	}
}

// ListMine returns the caller's readings, newest first.
func (s *ReadingService) ListMine(ctx context.Context, caller Caller, limit, offset int) ([]domain.Reading, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	readings, err := s.readings.ListReadingsByUser(ctx, caller.UserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return readings, nil
}

func (s *ReadingService) resolve(ctx context.Context, r domain.Reading) (domain.Reading, error) {
	ids := make([]string, len(r.Cards))
	for i, c := range r.Cards {
		ids[i] = c.CardID
	}
	found, err := s.cards.GetByIDs(ctx, ids)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("resolve cards: %w", err)
	}

	cards := make([]domain.ReadingCard, len(r.Cards))
	for i, rc := range r.Cards {
		if card, ok := found[rc.CardID]; ok {
			rc.Card = &card
		}
		cards[i] = rc
	}
	r.Cards = cards
	return r, nil
}

// spreadFor returns the spread the reading was made with, or a zero Spread
// when it no longer exists or is inactive.
func (s *ReadingService) spreadFor(ctx context.Context, name string) (domain.Spread, error) {
	spread, err := s.spreads.GetActiveSpread(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Spread{}, nil
	}
	if err != nil {
		return domain.Spread{}, fmt.Errorf("get spread: %w", err)
	}
	return spread, nil
}

// AutoInterpretation renders the narrative of a reading without storing it.
func (s *ReadingService) AutoInterpretation(ctx context.Context, caller Caller, id string) (string, error) {
	reading, err := s.Get(ctx, caller, id)
	if err != nil {
		return "", err
	}
	spread, err := s.spreadFor(ctx, reading.SpreadName)
	if err != nil {
		return "", err
	}
	metrics.RecordInterpretation("auto")
	return domain.RenderInterpretation(reading, spread), nil
}

// Interpret stores a reader's interpretation. It can be set only once.
func (s *ReadingService) Interpret(ctx context.Context, caller Caller, id, text string) (domain.Reading, error) {
	if !caller.isStaff() {
		return domain.Reading{}, fmt.Errorf("%w: only readers can interpret readings", domain.ErrForbidden)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Reading{}, fmt.Errorf("%w: interpretation is required", domain.ErrInvalidRequest)
	}
	if err := s.setInterpretation(ctx, id, text, caller.UserID); err != nil {
		return domain.Reading{}, err
	}
	metrics.RecordInterpretation("reader")
	return s.Get(ctx, caller, id)
}

// AIInterpret asks the configured LLM for an interpretation and stores it
// through the same one-time path as a reader's.
func (s *ReadingService) AIInterpret(ctx context.Context, caller Caller, id, lang string) (domain.Reading, error) {
	if !caller.isStaff() {
		return domain.Reading{}, fmt.Errorf("%w: only readers can interpret readings", domain.ErrForbidden)
	}
	if s.interpreter == nil {
		return domain.Reading{}, domain.ErrLLMDisabled
	}

	stored, err := s.readings.GetReading(ctx, id)
	if err != nil {
		return domain.Reading{}, wrapReadingErr(id, err)
	}
	reading, err := s.resolve(ctx, stored)
	if err != nil {
		return domain.Reading{}, err
	}
	if reading.Interpretation != "" {
		return domain.Reading{}, fmt.Errorf("%w: reading %q already interpreted", domain.ErrConflict, id)
	}
	spread, err := s.spreadFor(ctx, reading.SpreadName)
	if err != nil {
		return domain.Reading{}, err
	}

	out, err := s.interpreter.Interpret(ctx, toInterpretInput(reading, spread, lang))
	if err != nil {
		return domain.Reading{}, fmt.Errorf("interpret: %w", err)
	}
	s.logger.InfoContext(ctx, "llm interpretation generated", "reading_id", id, "model", out.Model)

	if err := s.setInterpretation(ctx, id, out.Text, ""); err != nil {
		return domain.Reading{}, err
	}
	metrics.RecordInterpretation("llm")
	reading.Interpretation = out.Text
	return reading, nil
}

func (s *ReadingService) setInterpretation(ctx context.Context, id, text, readerID string) error {
	if _, err := s.readings.GetReading(ctx, id); err != nil {
		return wrapReadingErr(id, err)
	}
	ok, err := s.readings.SetInterpretation(ctx, id, text, readerID)
	if err != nil {
		return fmt.Errorf("set interpretation: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: reading %q already interpreted", domain.ErrConflict, id)
	}
	return nil
}

// AddFeedback stores the owner's rating of a reading.
func (s *ReadingService) AddFeedback(ctx context.Context, caller Caller, id string, f domain.Feedback) (domain.Reading, error) {
	if err := f.Validate(); err != nil {
		return domain.Reading{}, err
	}
	reading, err := s.readings.GetReading(ctx, id)
	if err != nil {
		return domain.Reading{}, wrapReadingErr(id, err)
	}
	if reading.UserID != caller.UserID {
		return domain.Reading{}, fmt.Errorf("%w: only the owner can rate reading %q", domain.ErrForbidden, id)
	}
	f.Comment = strings.TrimSpace(f.Comment)
	if err := s.readings.SetFeedback(ctx, id, f); err != nil {
		return domain.Reading{}, fmt.Errorf("set feedback: %w", err)
	}
	reading.Feedback = &f
	return s.resolve(ctx, reading)
}

// Update applies an administrator's patch.
func (s *ReadingService) Update(ctx context.Context, caller Caller, id string, p domain.ReadingPatch) (domain.Reading, error) {
	if caller.Role != domain.RoleAdmin {
		return domain.Reading{}, fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	reading, err := s.readings.UpdateReading(ctx, id, p)
	if err != nil {
		return domain.Reading{}, wrapReadingErr(id, err)
	}
	return s.resolve(ctx, reading)
}

// Delete removes a reading; soft deletion hides it from every read path.
func (s *ReadingService) Delete(ctx context.Context, caller Caller, id string, hard bool) error {
	if caller.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	var err error
	if hard {
		err = s.readings.DeleteReading(ctx, id)
	} else {
		err = s.readings.SoftDeleteReading(ctx, id)
	}
	if err != nil {
		return wrapReadingErr(id, err)
	}
	s.logger.InfoContext(ctx, "reading deleted", "reading_id", id, "hard", hard, "by", caller.UserID)
	return nil
}

func wrapReadingErr(id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: reading %q", domain.ErrNotFound, id)
	}
	return fmt.Errorf("reading %q: %w", id, err)
}

func toInterpretInput(r domain.Reading, spread domain.Spread, lang string) ports.InterpretInput {
	in := ports.InterpretInput{
		Spread:   r.SpreadName,
		Question: r.Question,
		Lang:     lang,
		Cards:    make([]ports.CardInput, 0, len(r.Cards)),
	}
	for i, rc := range r.Cards {
		ci := ports.CardInput{
			Name:        rc.CardID,
			Position:    rc.Position,
			PositionFor: spread.PositionName(i + 1),
			Orientation: string(domain.OrientationOf(rc.Reversed)),
		}
		if rc.Card != nil {
			ci.Name = rc.Card.Name
			ci.Keywords = rc.Card.Keywords
			ci.Meaning = rc.Card.Meaning(rc.Reversed)
			in.Deck = rc.Card.Deck
		}
		in.Cards = append(in.Cards, ci)
	}
	return in
}

// Package memory implements the storage ports in process memory. It backs
// the server when no database is configured and the service tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/randomtoy/tarot-backend/internal/domain"
)

// Store holds cards, spreads, readings and users behind one lock, so every
// operation is atomic.
type Store struct {
	mu       sync.RWMutex
	cards    map[string]domain.Card
	spreads  map[string]domain.Spread
	readings map[string]domain.Reading
	users    map[string]domain.User
}

func NewStore() *Store {
	return &Store{
		cards:    make(map[string]domain.Card),
		spreads:  make(map[string]domain.Spread),
		readings: make(map[string]domain.Reading),
		users:    make(map[string]domain.User),
	}
}

func cloneCard(c domain.Card) domain.Card {
	c.Keywords = slices.Clone(c.Keywords)
	return c
}

func cloneSpread(s domain.Spread) domain.Spread {
	s.Positions = slices.Clone(s.Positions)
	return s
}

// cloneReading drops resolved cards: the store keeps references only.
func cloneReading(r domain.Reading) domain.Reading {
	cards := make([]domain.ReadingCard, len(r.Cards))
	for i, c := range r.Cards {
		c.Card = nil
		cards[i] = c
	}
	r.Cards = cards
	if r.Feedback != nil {
		f := *r.Feedback
		r.Feedback = &f
	}
	return r
}

// Cards.

func (s *Store) ListByDeck(_ context.Context, deck string) ([]domain.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Card
	for _, c := range s.cards {
		if c.Deck == deck {
			out = append(out, cloneCard(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Arcana != out[j].Arcana {
			return out[i].Arcana == domain.MajorArcana
		}
		if out[i].Suit != out[j].Suit {
			return out[i].Suit < out[j].Suit
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (s *Store) GetByIDs(_ context.Context, ids []string) (map[string]domain.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Card, len(ids))
	for _, id := range ids {
		if c, ok := s.cards[id]; ok {
			out[id] = cloneCard(c)
		}
	}
	return out, nil
}

func (s *Store) GetCard(_ context.Context, id string) (domain.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[id]
	if !ok {
		return domain.Card{}, domain.ErrNotFound
	}
	return cloneCard(c), nil
}

func (s *Store) cardNameTaken(name, exceptID string) bool {
	for id, c := range s.cards {
		if c.Name == name && id != exceptID {
			return true
		}
	}
	return false
}

func (s *Store) CreateCard(_ context.Context, c domain.Card) (domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cardNameTaken(c.Name, "") {
		return domain.Card{}, domain.ErrConflict
	}
	s.cards[c.ID] = cloneCard(c)
	return c, nil
}

func (s *Store) UpdateCard(_ context.Context, c domain.Card) (domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[c.ID]; !ok {
		return domain.Card{}, domain.ErrNotFound
	}
	if s.cardNameTaken(c.Name, c.ID) {
		return domain.Card{}, domain.ErrConflict
	}
	s.cards[c.ID] = cloneCard(c)
	return c, nil
}

func (s *Store) DeleteCard(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.cards, id)
	return nil
}

func (s *Store) UpsertCard(_ context.Context, c domain.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.cards {
		if existing.Name == c.Name {
			c.ID = id
			break
		}
	}
	s.cards[c.ID] = cloneCard(c)
	return nil
}

// Spreads.

func (s *Store) GetActiveSpread(_ context.Context, name string) (domain.Spread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sp, ok := s.spreads[name]
	if !ok || !sp.Active {
		return domain.Spread{}, domain.ErrNotFound
	}
	return cloneSpread(sp), nil
}

func (s *Store) ListActiveSpreads(_ context.Context) ([]domain.Spread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Spread
	for _, sp := range s.spreads {
		if sp.Active {
			out = append(out, cloneSpread(sp))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CardCount != out[j].CardCount {
			return out[i].CardCount < out[j].CardCount
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) CreateSpread(_ context.Context, sp domain.Spread) (domain.Spread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.spreads[sp.Name]; ok {
		return domain.Spread{}, domain.ErrConflict
	}
	s.spreads[sp.Name] = cloneSpread(sp)
	return sp, nil
}

func (s *Store) UpdateSpread(_ context.Context, sp domain.Spread) (domain.Spread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.spreads[sp.Name]
	if !ok {
		return domain.Spread{}, domain.ErrNotFound
	}
	sp.ID = existing.ID
	s.spreads[sp.Name] = cloneSpread(sp)
	return sp, nil
}

func (s *Store) DeactivateSpread(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.spreads[name]
	if !ok {
		return domain.ErrNotFound
	}
	sp.Active = false
	s.spreads[name] = sp
	return nil
}

func (s *Store) UpsertSpread(_ context.Context, sp domain.Spread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.spreads[sp.Name]; ok {
		sp.ID = existing.ID
		sp.Active = existing.Active
	}
	s.spreads[sp.Name] = cloneSpread(sp)
	return nil
}

// Readings.

func (s *Store) CreateReading(_ context.Context, r domain.Reading) (domain.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.readings[r.ID]; ok {
		return domain.Reading{}, domain.ErrConflict
	}
	stored := cloneReading(r)
	s.readings[r.ID] = stored
	return cloneReading(stored), nil
}

func (s *Store) live(id string) (domain.Reading, bool) {
	r, ok := s.readings[id]
	if !ok || r.DeletedAt != nil {
		return domain.Reading{}, false
	}
	return r, true
}

func (s *Store) GetReading(_ context.Context, id string) (domain.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.live(id)
	if !ok {
		return domain.Reading{}, domain.ErrNotFound
	}
	return cloneReading(r), nil
}

func (s *Store) ListReadingsByUser(_ context.Context, userID string, limit, offset int) ([]domain.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []domain.Reading
	for _, r := range s.readings {
		if r.UserID == userID && r.DeletedAt == nil {
			all = append(all, cloneReading(r))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (s *Store) SetInterpretation(_ context.Context, id, text, readerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.live(id)
	if !ok {
		return false, domain.ErrNotFound
	}
	if r.Interpretation != "" {
		return false, nil
	}
	r.Interpretation = text
	r.ReaderID = readerID
	r.UpdatedAt = time.Now().UTC()
	s.readings[id] = r
	return true, nil
}

func (s *Store) SetFeedback(_ context.Context, id string, f domain.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.live(id)
	if !ok {
		return domain.ErrNotFound
	}
	r.Feedback = &f
	r.UpdatedAt = time.Now().UTC()
	s.readings[id] = r
	return nil
}

func (s *Store) UpdateReading(_ context.Context, id string, p domain.ReadingPatch) (domain.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.live(id)
	if !ok {
		return domain.Reading{}, domain.ErrNotFound
	}
	if p.Question != nil {
		r.Question = *p.Question
	}
	if p.Interpretation != nil {
		r.Interpretation = *p.Interpretation
	}
	if p.ReaderID != nil {
		r.ReaderID = *p.ReaderID
	}
	if p.Public != nil {
		r.Public = *p.Public
	}
	r.UpdatedAt = time.Now().UTC()
	s.readings[id] = r
	return cloneReading(r), nil
}

func (s *Store) SoftDeleteReading(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.live(id)
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	r.DeletedAt = &now
	s.readings[id] = r
	return nil
}

func (s *Store) DeleteReading(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.readings[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.readings, id)
	return nil
}

// Users.

func (s *Store) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return domain.User{}, domain.ErrConflict
		}
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (s *Store) SetRole(_ context.Context, username string, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range s.users {
		if u.Username == username {
			u.Role = role
			s.users[id] = u
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *Store) IncrementDailyReadings(_ context.Context, userID string, day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || u.Role != domain.RoleUser {
		return 0, domain.ErrNotFound
	}
	day = domain.Day(day)
	if u.Daily.LastReset.Equal(day) {
		u.Daily.Count++
	} else {
		u.Daily = domain.DailyReadings{Count: 1, LastReset: day}
	}
	s.users[userID] = u
	return u.Daily.Count, nil
}

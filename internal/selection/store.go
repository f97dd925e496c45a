// Package selection owns the dashboard's shared (vehicle, date range)
// selection and its generation token.
package selection

import (
	"strings"
	"sync"
	"time"

	"fleet_dashboard/internal/models"
)

// Subscriber is called synchronously after every mutation, in token order.
type Subscriber func(sel models.Selection, token models.Token)

type Store struct {
	// notifyMu serializes mutate+publish so subscribers observe tokens in order.
	notifyMu sync.Mutex

	mu     sync.Mutex
	sel    models.Selection
	token  models.Token
	subs   map[int]Subscriber
	nextID int
}

func NewStore() *Store {
	return &Store{subs: make(map[int]Subscriber)}
}

// SetEntity selects a vehicle. An empty id puts the dashboard in the idle state.
func (s *Store) SetEntity(id string) models.Token {
	return s.mutate(func(sel *models.Selection) {
		sel.EntityID = strings.TrimSpace(id)
	})
}

// SetDateRange replaces the date filter. Zero times mean unbounded.
func (s *Store) SetDateRange(start, end time.Time) models.Token {
	return s.mutate(func(sel *models.Selection) {
		sel.DateRange = models.DateRange{Start: start, End: end}
	})
}

// Set replaces the whole selection as a single generation.
func (s *Store) Set(next models.Selection) models.Token {
	return s.mutate(func(sel *models.Selection) {
		*sel = next
		sel.EntityID = strings.TrimSpace(next.EntityID)
	})
}

// Current returns the selection and the token it was published with.
func (s *Store) Current() (models.Selection, models.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel, s.token
}

func (s *Store) Token() models.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// IfCurrent runs fn only if token is still the latest generation, and holds
// off any mutation until fn returns. It reports whether fn ran.
func (s *Store) IfCurrent(token models.Token, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token {
		return false
	}
	fn()
	return true
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) mutate(apply func(sel *models.Selection)) models.Token {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	apply(&s.sel)
	s.token++
	sel, token := s.sel, s.token
	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(sel, token)
	}
	return token
}

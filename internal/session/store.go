// Package session keeps one query engine per UI session. The engine itself is
// single-threaded; each session serializes access through its own lock.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/medallion-catalog/internal/catalog"
	"github.com/rpattn/medallion-catalog/internal/domain"
	"github.com/rpattn/medallion-catalog/internal/query"
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

// Session is one caller's query state over a catalog.
type Session struct {
	ID        uuid.UUID
	Catalog   *catalog.Catalog
	CreatedAt time.Time

	mu       sync.Mutex
	engine   *query.Engine
	lastUsed time.Time
}

// Info is the serializable view of a session.
type Info struct {
	ID      uuid.UUID         `json:"id"`
	Catalog string            `json:"catalog"`
	State   domain.QueryState `json:"state"`
	// Constraints resolves State.Filters to the record fields they test.
	Constraints []domain.FilterSpec `json:"constraints"`
	Matches     int                 `json:"matches"`
	Total       int                 `json:"total"`
	CreatedAt   time.Time           `json:"createdAt"`
	LastUsed    time.Time           `json:"lastUsed"`
}

// With runs fn with exclusive access to the session's engine.
func (s *Session) With(fn func(*query.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.engine)
}

func (s *Session) info() Info {
	return Info{
		ID:          s.ID,
		Catalog:     s.Catalog.Name,
		State:       s.engine.State(),
		Constraints: s.engine.Filters(),
		Matches:     len(s.engine.FilteredRecords()),
		Total:       s.engine.Len(),
		CreatedAt:   s.CreatedAt,
		LastUsed:    s.lastUsed,
	}
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info()
}

// Store holds live sessions in memory. Sessions idle for longer than the TTL
// are treated as gone.
type Store struct {
	mu         sync.RWMutex
	sessions   map[uuid.UUID]*Session
	ttl        time.Duration
	now        func() time.Time
	engineOpts []query.Option
}

type Option func(*Store)

// WithTTL sets the idle timeout. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the store's clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEngineOptions applies opts to every session engine after the catalog's
// own settings.
func WithEngineOptions(opts ...query.Option) Option {
	return func(s *Store) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

func NewStore(opts ...Option) *Store {
	store := &Store{
		sessions: make(map[uuid.UUID]*Session),
		ttl:      30 * time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Create opens a session over c with the catalog's default state.
func (s *Store) Create(c *catalog.Catalog) (*Session, error) {
	if c == nil {
		return nil, errors.New("catalog is required")
	}
	now := s.now()
	session := &Session{
		ID:        uuid.New(),
		Catalog:   c,
		CreatedAt: now,
		engine:    c.Engine(s.engineOpts...),
		lastUsed:  now,
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session, nil
}

// Get returns a live session and marks it used.
func (s *Store) Get(id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	now := s.now()
	session.mu.Lock()
	defer session.mu.Unlock()
	if s.expired(session, now) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	session.lastUsed = now
	return session, nil
}

// Delete removes a session. Deleting an unknown session is an error.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.sessions {
		session.mu.Lock()
		expired := s.expired(session, now)
		session.mu.Unlock()
		if expired {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of sessions held, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) expired(session *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(session.lastUsed) > s.ttl
}

// Package session is the single source of truth for "is someone logged in"
// and "who are they".  A session record holds what a browser client would
// otherwise keep in local storage: access token, refresh token, cached
// profile and user type.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/asl-holdem-bff/internal/model"
)

// ErrNotFound is returned when no live session exists for an id.
var ErrNotFound = errors.New("session not found")

// Session is one logged-in client.
type Session struct {
	ID           string
	AccessToken  string
	RefreshToken string
	UserType     model.Role
	User         *model.User // cached profile
	CreatedAt    time.Time
}

// Authenticated reports whether the session still holds an access token.
func (s *Session) Authenticated() bool { return s != nil && s.AccessToken != "" }

// Store persists sessions.  Save replaces the whole record.  SetTokens only
// touches an existing record and returns ErrNotFound otherwise, so a token
// refresh racing a logout never resurrects the session.  An empty refresh
// token keeps the stored one.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	SetTokens(ctx context.Context, id, access, refresh string) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process memory.  It backs tests and the
// degraded mode used when Redis is unreachable at startup.
type MemoryStore struct {
	mu   sync.RWMutex
	ttl  time.Duration
	now  func() time.Time
	data map[string]memoryEntry
}

type memoryEntry struct {
	s   Session
	exp time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, data: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	e, ok := m.data[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if m.ttl > 0 && m.now().After(e.exp) {
		m.mu.Lock()
		delete(m.data, id)
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	cp := e.s
	if e.s.User != nil {
		u := *e.s.User
		cp.User = &u
	}
	return &cp, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return errors.New("session: save without id")
	}
	cp := *s
	if s.User != nil {
		u := *s.User
		cp.User = &u
	}
	m.mu.Lock()
	m.data[s.ID] = memoryEntry{s: cp, exp: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SetTokens(_ context.Context, id, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[id]
	if !ok || (m.ttl > 0 && m.now().After(e.exp)) {
		delete(m.data, id)
		return ErrNotFound
	}
	e.s.AccessToken = access
	if refresh != "" {
		e.s.RefreshToken = refresh
	}
	e.exp = m.now().Add(m.ttl)
	m.data[id] = e
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

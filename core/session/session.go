// Package session holds per-login application state: the identity, its live feed
// subscriptions and its one-time notifications. Closing a session releases all of them.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core/feed"
	"github.com/trezcool/hostel/core/stats"
	"github.com/trezcool/hostel/core/user"
)

var (
	nowFunc = time.Now // mockable

	ErrNotFound = errors.New("session not found")
	ErrClosed   = errors.New("session closed")
)

// Subscriber is a live feed a session can subscribe to.
type Subscriber interface {
	Subscribe(collection string, fn feed.Handler) feed.CancelFunc
}

type Session struct {
	ID        string
	Identity  user.Identity
	CreatedAt time.Time
	Birthdays *stats.BirthdayTracker

	mu        sync.Mutex
	expiresAt time.Time
	cancels   []feed.CancelFunc
	closed    bool
	done      chan struct{}
}

func newSession(identity user.Identity, ttl time.Duration) *Session {
	now := nowFunc()
	return &Session{
		ID:        uuid.NewString(),
		Identity:  identity,
		CreatedAt: now,
		Birthdays: stats.NewBirthdayTracker(),
		expiresAt: now.Add(ttl),
		done:      make(chan struct{}),
	}
}

// Subscribe registers fn on the feed for the lifetime of the session.
func (s *Session) Subscribe(sub Subscriber, collection string, fn feed.Handler) (feed.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	cancel := sub.Subscribe(collection, fn)
	s.cancels = append(s.cancels, cancel)
	return cancel, nil
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.expiresAt)
}

func (s *Session) extend(until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if until.After(s.expiresAt) {
		s.expiresAt = until
	}
}

// Close cancels every subscription of the session. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	close(s.done)
}

// Manager keeps the live sessions.
type Manager struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*Session
}

func NewManager(ttl time.Duration) *Manager {
	return &Manager{ttl: ttl, sessions: make(map[string]*Session)}
}

func (m *Manager) Start(identity user.Identity) *Session {
	s := newSession(identity, m.ttl)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns a live session. Expired sessions are ended on access.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok && s.expired(nowFunc()) {
		delete(m.sessions, id)
		m.mu.Unlock()
		s.Close()
		return nil, ErrNotFound
	}
	m.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Extend pushes the expiry of a live session, e.g. on token refresh.
func (m *Manager) Extend(id string, until time.Time) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.extend(until)
	return nil
}

// End closes the session and forgets it.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// EndUser ends every session of the user and returns how many were ended.
func (m *Manager) EndUser(userID string) int {
	m.mu.Lock()
	ended := make([]*Session, 0)
	for id, s := range m.sessions {
		if s.Identity.UserID == userID {
			ended = append(ended, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range ended {
		s.Close()
	}
	return len(ended)
}

// Sweep ends expired sessions.
func (m *Manager) Sweep() int {
	now := nowFunc()
	m.mu.Lock()
	expired := make([]*Session, 0)
	for id, s := range m.sessions {
		if s.expired(now) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// Close ends every session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

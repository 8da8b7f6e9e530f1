// Package session keeps one conversation agent per logged-in browser
// session, in memory.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efebarandurmaz/minichat/internal/agent"
	"github.com/efebarandurmaz/minichat/internal/observability"
)

// DefaultIdleTimeout is how long an unused session is kept.
const DefaultIdleTimeout = 24 * time.Hour

// AgentFactory builds the agent for a new session.
type AgentFactory func() *agent.Agent

// Session is one authenticated browser session.
type Session struct {
	ID        string
	CreatedAt time.Time

	lastSeen time.Time // guarded by Store.mu

	once     sync.Once
	newAgent AgentFactory
	agent    *agent.Agent
}

// Agent returns the session's agent, building it on first use.
func (s *Session) Agent() *agent.Agent {
	s.once.Do(func() { s.agent = s.newAgent() })
	return s.agent
}

// Store maps session ids to sessions. Idle sessions are dropped lazily on
// Create and Get; the store runs no goroutines.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	newAgent AgentFactory
	idle     time.Duration
	now      func() time.Time
	metrics  *observability.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics keeps the active-sessions gauge in m up to date.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store. idle <= 0 uses DefaultIdleTimeout.
func NewStore(newAgent AgentFactory, idle time.Duration, opts ...Option) *Store {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	s := &Store{
		sessions: make(map[string]*Session),
		newAgent: newAgent,
		idle:     idle,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new session with a random v4 id.
func (s *Store) Create() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		lastSeen:  now,
		newAgent:  s.newAgent,
	}
	s.sessions[sess.ID] = sess
	s.reportLocked()
	return sess
}

// Get returns the session for id and marks it as used. Expired and unknown
// ids report false.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

// Delete removes the session for id, if any.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	s.reportLocked()
}

// Len returns the number of stored sessions, expired ones included until the
// next prune.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) pruneLocked(now time.Time) {
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.idle {
			delete(s.sessions, id)
		}
	}
	s.reportLocked()
}

func (s *Store) reportLocked() {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(len(s.sessions)))
	}
}

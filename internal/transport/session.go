// Package transport implements the streaming bridge between clients and the
// tool dispatcher: a long-lived SSE subscribe stream per session plus a
// submit endpoint that enqueues tool requests for asynchronous dispatch.
//
// Each session owns one dispatch goroutine, so requests submitted to a
// session execute in submission order. There is no ordering across sessions.
package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/routewise/geomcp/internal/tool"
)

// ErrSessionNotFound is returned when a submit names a session id that does
// not exist (never created, expired, or already closed).
var ErrSessionNotFound = errors.New("transport: session not found")

// ErrSessionClosed is returned when submitting to a session that has begun
// draining or is closed.
var ErrSessionClosed = errors.New("transport: session closed")

// ErrQueueFull is returned when a session's inbound queue is saturated.
var ErrQueueFull = errors.New("transport: session queue full")

// State is a session's lifecycle phase.
type State int

const (
	// StateConnecting is the phase between allocation and the first
	// handshake write on the subscribe stream.
	StateConnecting State = iota

	// StateStreaming means the subscribe stream is live and results flow.
	StateStreaming

	// StateDraining means the client is gone; in-flight work may finish but
	// its results are discarded and no new submissions are accepted.
	StateDraining

	// StateClosed is terminal.
	StateClosed
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one client connection: an identity, an inbound request queue,
// and an outbound result queue feeding the SSE stream.
// All methods are safe for concurrent use.
type Session struct {
	id        string
	createdAt time.Time

	mu           sync.Mutex
	state        State
	lastActivity time.Time

	inbound  chan tool.Request
	outbound chan tool.Result

	// done is closed exactly once when the session closes.
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(queueSize int) *Session {
	now := time.Now()
	return &Session{
		id:           uuid.NewString(),
		createdAt:    now,
		state:        StateConnecting,
		lastActivity: now,
		inbound:      make(chan tool.Request, queueSize),
		outbound:     make(chan tool.Result, queueSize),
		done:         make(chan struct{}),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Age returns how long the session has existed.
func (s *Session) Age() time.Duration { return time.Since(s.createdAt) }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Touch records client activity for idle-timeout accounting.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// IdleSince returns the time of the last recorded activity.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Submit enqueues one request for ordered dispatch. It never blocks:
// a closed session returns [ErrSessionClosed], a saturated queue
// [ErrQueueFull].
func (s *Session) Submit(req tool.Request) error {
	s.mu.Lock()
	if s.state == StateDraining || s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.lastActivity = time.Now()
	s.mu.Unlock()

	select {
	case <-s.done:
		return ErrSessionClosed
	case s.inbound <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// Deliver queues one result for the subscribe stream. It never blocks; the
// return value reports whether the result was accepted. Results for closed
// or congested sessions are dropped.
func (s *Session) Deliver(res tool.Result) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.outbound <- res:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

// Drain stops accepting submissions while the stream winds down.
func (s *Session) Drain() {
	s.mu.Lock()
	if s.state != StateClosed {
		s.state = StateDraining
	}
	s.mu.Unlock()
}

// Close transitions the session to its terminal state. Safe to call more
// than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		close(s.done)
	})
}

// Done returns a channel closed when the session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// ManagerConfig holds the tunables for a [Manager].
type ManagerConfig struct {
	// QueueSize is the per-session inbound and outbound buffer size.
	// Default: 32.
	QueueSize int

	// IdleTimeout closes sessions with no activity. Default: 5m.
	IdleTimeout time.Duration

	// SweepInterval is how often idle sessions are checked.
	// Default: IdleTimeout / 4.
	SweepInterval time.Duration
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 32
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = c.IdleTimeout / 4
	}
	return c
}

// Manager tracks live sessions and enforces the idle timeout.
// All methods are safe for concurrent use.
type Manager struct {
	cfg ManagerConfig

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager. Zero-value config fields get defaults.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		cfg:      cfg.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

// Create allocates and tracks a new session in the connecting state.
func (m *Manager) Create() *Session {
	s := newSession(m.cfg.QueueSize)
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	return s
}

// Get returns the session with the given id, or [ErrSessionNotFound].
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove closes the session and stops tracking it.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll closes and forgets every session. Used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

// SweepIdle closes sessions whose last activity is older than the idle
// timeout. Returns the ids of the sessions it closed.
func (m *Manager) SweepIdle() []string {
	cutoff := time.Now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var expired []string
	for id, s := range m.sessions {
		if s.IdleSince().Before(cutoff) {
			expired = append(expired, id)
			delete(m.sessions, id)
			s.Close()
		}
	}
	m.mu.Unlock()
	return expired
}

package domain

import (
	"sync"
	"time"
)

// SessionState is the authentication state of one modem session. The zero
// value is an unauthenticated session.
type SessionState struct {
	// Cookie is the session cookie pair ("stok=...") granted at login.
	Cookie string
	// Authenticated reports whether the last login succeeded and the session
	// has not been invalidated since.
	Authenticated bool
	// PasswordHash is the digest of the password under the hash family the
	// device selected at login.
	PasswordHash string
	// PlaintextPassword is kept after a successful login so an expired
	// session can re-authenticate without operator involvement. It never
	// leaves the process.
	PlaintextPassword string
}

// Clear resets the session to unauthenticated and drops all credentials.
func (s *SessionState) Clear() {
	*s = SessionState{}
}

// RunState tracks the live run of the bridge: broker connectivity, the last
// request seen, the last successful publish and the current failure streak.
// Handlers and the connection supervisor touch it from different goroutines,
// so all access goes through the mutex.
type RunState struct {
	mu          sync.Mutex
	connected   bool
	lastRequest string
	lastPublish time.Time
	failures    int
}

// RunStateSnapshot is a point-in-time copy of RunState for reporting.
type RunStateSnapshot struct {
	Connected       bool      `json:"connected"`
	LastRequest     string    `json:"last_seen_request_topic"`
	LastPublishTime time.Time `json:"last_publish_time"`
	Failures        int       `json:"failures"`
}

// NewRunState returns a disconnected state with no history.
func NewRunState() *RunState {
	return &RunState{}
}

// MarkConnected records an established broker connection.
func (s *RunState) MarkConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
}

// MarkDisconnected records a lost or closed broker connection.
func (s *RunState) MarkDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
}

// RecordRequest remembers the topic of the most recent valid request.
func (s *RunState) RecordRequest(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRequest = topic
}

// RecordPublish stamps a successful publish and resets the failure streak.
func (s *RunState) RecordPublish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPublish = time.Now().UTC()
	s.failures = 0
}

// RecordFailure extends the failure streak.
func (s *RunState) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
}

// Snapshot returns a consistent copy of the current state.
func (s *RunState) Snapshot() RunStateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RunStateSnapshot{
		Connected:       s.connected,
		LastRequest:     s.lastRequest,
		LastPublishTime: s.lastPublish,
		Failures:        s.failures,
	}
}

package core

import (
	"sync"
	"time"
)

// Session represents one in-progress recording buffered server-side: an
// append-only event history plus caller-supplied descriptive metadata. It is
// safe for concurrent access.
//
// Contract:
//   - Events keep arrival order; nothing is sorted or deduplicated at append
//     time. Ordering is restored by the merge engine at finalize time.
//   - Every mutation refreshes LastActivityAt, the idle-sweep criterion.
//   - The Token is minted server-side at creation and never changes; the
//     header-less beacon ingestion path authenticates by echoing it back.
//   - Snapshot returns a deep copy safe for independent use.
type Session struct {
	ID             string         `json:"id"`
	Token          string         `json:"token"`
	Meta           map[string]any `json:"meta"`
	Events         []Event        `json:"events"`
	StartedAt      time.Time      `json:"startedAt"`
	LastActivityAt time.Time      `json:"lastActivityAt"`
	mu             sync.RWMutex
}

// NewSession creates an empty session with a freshly minted token and the
// current time as both activity stamps.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:             id,
		Token:          NewID(),
		Meta:           map[string]any{},
		Events:         []Event{},
		StartedAt:      now,
		LastActivityAt: now,
	}
}

// AppendEvents extends the buffer in arrival order and refreshes the
// activity stamp. A zero-length batch is a no-op that still counts as
// activity.
func (s *Session) AppendEvents(events []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, events...)
	s.LastActivityAt = time.Now().UTC()
}

// MergeMeta shallow-merges descriptive fields into the session; later keys
// win. Values arrive at session start and again at finalize.
func (s *Session) MergeMeta(meta map[string]any) {
	if len(meta) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range meta {
		s.Meta[k] = v
	}
	s.LastActivityAt = time.Now().UTC()
}

// TokenMatches reports whether the caller-echoed token equals the one minted
// at creation. An empty candidate never matches.
func (s *Session) TokenMatches(candidate string) bool {
	if candidate == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Token == candidate
}

// EventCount returns the number of buffered events.
func (s *Session) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Events)
}

// IdleFor reports how long the session has gone untouched as of now.
func (s *Session) IdleFor(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.LastActivityAt)
}

// Snapshot returns a deep copy of the session (maps & slices) safe for use
// after the registry has discarded the original.
func (s *Session) Snapshot() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &Session{
		ID:             s.ID,
		Token:          s.Token,
		Meta:           make(map[string]any, len(s.Meta)),
		Events:         make([]Event, len(s.Events)),
		StartedAt:      s.StartedAt,
		LastActivityAt: s.LastActivityAt,
	}
	for k, v := range s.Meta {
		snap.Meta[k] = v
	}
	copy(snap.Events, s.Events)
	return snap
}

// Registry owns all live sessions, keyed by caller-supplied id. A session
// exists from its first observed operation (start or first chunk) until
// exactly one finalize or idle eviction removes it. Implementations must be
// safe for concurrent use and must not let two sessions exist for one id.
type Registry interface {
	// GetOrCreate returns the live session for id, creating an empty one
	// when absent. Fails with ErrBadRequest on an empty id.
	GetOrCreate(id string) (*Session, error)

	// Get returns the live session for id without ever creating one.
	Get(id string) (*Session, bool)

	// Append extends the session's buffer in arrival order, auto-creating
	// the session under the default lenient policy. In strict mode it fails
	// with ErrUnknownSession when no session was pre-declared.
	Append(id string, events []Event) error

	// Finalize atomically removes and returns the session. The second
	// return is false when the id is absent, the signal for a double
	// finalize or a finalize after eviction.
	Finalize(id string) (*Session, bool)

	// SweepExpired silently evicts every session idle longer than the
	// configured window, returning how many were removed.
	SweepExpired(now time.Time) int

	// Len reports the number of live sessions.
	Len() int
}

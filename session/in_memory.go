package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/SereneyePro/rrweb-uploader/core"
)

// DefaultIdleTimeout is how long a session may go untouched before the sweep
// evicts it. Abandoned captures (tab killed mid-recording, beacon lost) would
// otherwise grow the registry without bound.
const DefaultIdleTimeout = 30 * time.Minute

// Options configures an InMemoryRegistry.
type Options struct {
	// IdleTimeout is the idle window after which a session is evicted.
	// Defaults to DefaultIdleTimeout.
	IdleTimeout time.Duration

	// Strict requires sessions to be pre-declared via GetOrCreate before
	// any Append; the default lenient policy auto-creates on first chunk.
	Strict bool
}

// InMemoryRegistry is a volatile core.Registry implementation storing live
// sessions in a process-local map. It is safe for concurrent access. Each
// per-id operation is atomic with respect to other operations on the same
// id: Finalize either observes the whole session or finds it already gone.
type InMemoryRegistry struct {
	mu          sync.RWMutex
	sessions    map[string]*core.Session
	idleTimeout time.Duration
	strict      bool
}

// NewInMemoryRegistry constructs an empty in-memory registry with optional
// overrides.
func NewInMemoryRegistry(optFns ...func(o *Options)) *InMemoryRegistry {
	opts := Options{
		IdleTimeout: DefaultIdleTimeout,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}

	return &InMemoryRegistry{
		sessions:    make(map[string]*core.Session),
		idleTimeout: opts.IdleTimeout,
		strict:      opts.Strict,
	}
}

// GetOrCreate returns the live session for id, creating an empty one with a
// freshly minted token when absent. Concurrent calls for one id converge on
// a single session.
func (r *InMemoryRegistry) GetOrCreate(id string) (*core.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session id required", core.ErrBadRequest)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(id), nil
}

// Get returns the live session for id. It never creates one, which keeps
// token verification from conjuring sessions for unknown ids.
func (r *InMemoryRegistry) Get(id string) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Append extends the session buffer in arrival order and refreshes its
// activity stamp. Under the default lenient policy a missing session is
// created on the spot; in strict mode the call fails with ErrUnknownSession.
func (r *InMemoryRegistry) Append(id string, events []core.Event) error {
	if id == "" {
		return fmt.Errorf("%w: session id required", core.ErrBadRequest)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		if r.strict {
			return fmt.Errorf("%w: %s", core.ErrUnknownSession, id)
		}
		sess = r.getOrCreateLocked(id)
	}
	sess.AppendEvents(events)
	return nil
}

// Finalize atomically removes and returns the session. A second call for
// the same id reports false, which is how double-finalize is detected.
func (r *InMemoryRegistry) Finalize(id string) (*core.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	return sess, true
}

// SweepExpired silently evicts every session idle longer than the configured
// window and returns how many were removed. Buffered data for evicted
// sessions is lost; no artifact is published for them.
func (r *InMemoryRegistry) SweepExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, sess := range r.sessions {
		if sess.IdleFor(now) > r.idleTimeout {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions.
func (r *InMemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// getOrCreateLocked allocates and stores a new session; caller must already
// hold the write lock.
func (r *InMemoryRegistry) getOrCreateLocked(id string) *core.Session {
	if sess, ok := r.sessions[id]; ok {
		return sess
	}
	sess := core.NewSession(id)
	r.sessions[id] = sess
	return sess
}

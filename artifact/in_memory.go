package artifact

import (
	"sort"
	"sync"
	"time"

	"github.com/SereneyePro/rrweb-uploader/core"
)

// InMemoryStore is a trivial in-process ArtifactStore implementation useful
// for tests, examples and single-process prototypes. It keeps all published
// recordings in a map guarded by an RWMutex. Data is copied on publish and
// fetch to avoid accidental external mutation of internal buffers.
//
// This implementation is intentionally minimal; it does not enforce retention
// limits, size quotas, or eviction, and everything is lost on process exit.
// For production, prefer a durable implementation (e.g. the sqlite subpackage)
// that survives restarts.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	name      string
	data      []byte
	createdAt time.Time
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]*entry)}
}

// Publish stores the artifact bytes under a freshly minted id. The input
// slice is copied before storage.
func (s *InMemoryStore) Publish(name string, data []byte) (core.PublishResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	id := core.NewID()
	s.entries[id] = &entry{
		name:      name,
		data:      cp,
		createdAt: time.Now().UTC(),
	}
	return core.PublishResult{ID: id, Name: name}, nil
}

// Fetch returns a copy of the stored artifact bytes or ErrNotFound.
func (s *InMemoryStore) Fetch(id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(e.data))
	copy(cp, e.data)
	return cp, nil
}

// List returns descriptors for every stored artifact, newest first. The
// slice is a snapshot and safe for caller mutation.
func (s *InMemoryStore) List() ([]core.ArtifactInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]core.ArtifactInfo, 0, len(s.entries))
	for id, e := range s.entries {
		infos = append(infos, core.ArtifactInfo{
			ID:        id,
			Name:      e.name,
			Size:      int64(len(e.data)),
			CreatedAt: e.createdAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos, nil
}

// Delete removes the artifact if present or returns ErrNotFound.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

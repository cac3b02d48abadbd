package artifact

import (
	"bytes"
	"errors"
	"testing"

	"github.com/SereneyePro/rrweb-uploader/core"
)

// Interface compliance (compile-time assertion)
var _ core.ArtifactStore = (*InMemoryStore)(nil)

func TestInMemoryStore_PublishAndFetch(t *testing.T) {
	store := NewInMemoryStore()
	payload := []byte(`{"sessionId":"s1","events":[]}`)
	res, err := store.Publish("s1.json", payload)
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if res.ID == "" || res.Name != "s1.json" {
		t.Fatalf("unexpected publish result: %#v", res)
	}
	got, err := store.Fetch(res.ID)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("fetched bytes differ: %s", got)
	}
	// mutation safety (store keeps its own copy)
	payload[0] = 'X'
	got2, _ := store.Fetch(res.ID)
	if got2[0] == 'X' {
		t.Fatalf("expected copy isolation on publish")
	}
	got2[0] = 'Y'
	got3, _ := store.Fetch(res.ID)
	if got3[0] == 'Y' {
		t.Fatalf("expected copy isolation on fetch")
	}
}

func TestInMemoryStore_FetchMissing(t *testing.T) {
	store := NewInMemoryStore()
	if _, err := store.Fetch("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryStore_ListAndDelete(t *testing.T) {
	store := NewInMemoryStore()
	a, _ := store.Publish("a.json", []byte(`{}`))
	b, _ := store.Publish("b.json", []byte(`{"events":[]}`))

	infos, err := store.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(infos))
	}
	for _, info := range infos {
		if info.Size <= 0 || info.CreatedAt.IsZero() {
			t.Fatalf("incomplete descriptor: %#v", info)
		}
	}

	if err := store.Delete(a.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Fetch(a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted artifact to be gone, got %v", err)
	}
	if _, err := store.Fetch(b.ID); err != nil {
		t.Fatalf("expected remaining artifact to survive: %v", err)
	}
	// delete nonexistent
	if err := store.Delete(a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat delete, got %v", err)
	}
}

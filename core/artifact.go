package core

import "time"

// Artifact is the merged, serialized representation of a completed
// recording: one normalized, time-ascending event sequence plus the
// descriptive metadata accumulated over the session's life. It is immutable
// once produced.
type Artifact struct {
	SessionID string         `json:"sessionId"`
	CreatedAt time.Time      `json:"createdAt"`
	Meta      map[string]any `json:"meta,omitempty"`
	Events    []Event        `json:"events"`
	Counts    Counts         `json:"counts"`
}

// Counts carries artifact-level tallies for quick inspection without
// deserializing the event payloads.
type Counts struct {
	Events int `json:"events"`
}

// PublishResult identifies a durably stored artifact.
type PublishResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ArtifactInfo describes a stored artifact without its payload.
type ArtifactInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// ArtifactStore defines the interface for durable artifact persistence.
// Implementations should be thread-safe. Short method names mirror the other
// store interfaces for consistency. Publish is at-least-once-attempted,
// exactly-once-on-success; Fetch returns the exact bytes previously
// published under the id.
type ArtifactStore interface {
	Publish(name string, data []byte) (PublishResult, error)
	Fetch(id string) ([]byte, error)
	List() ([]ArtifactInfo, error)
	Delete(id string) error
}

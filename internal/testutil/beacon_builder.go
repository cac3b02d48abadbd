package testutil

import (
	"encoding/json"
	"fmt"
)

// BeaconBody renders the raw text payload the header-less ingestion path
// carries: a JSON object sent without a JSON content type. Events and meta
// are optional, matching the chunk and finish beacon variants.
type BeaconBody struct {
	SessionID string            `json:"sessionId"`
	Token     string            `json:"token"`
	Events    []json.RawMessage `json:"events,omitempty"`
	Meta      map[string]any    `json:"meta,omitempty"`
}

// Render serializes the beacon payload to the plain string form the
// transport delivers.
func (b BeaconBody) Render() string {
	raw, err := json.Marshal(b)
	if err != nil {
		panic(fmt.Sprintf("testutil: failed to marshal beacon body: %v", err))
	}
	return string(raw)
}

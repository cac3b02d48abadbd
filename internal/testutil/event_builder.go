package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/SereneyePro/rrweb-uploader/core"
)

// EventBuilder provides a fluent helper for constructing raw capture records
// in tests. Example:
//
//	raw := NewEventBuilder().Type(3).Timestamp(120).Mirror().Build()
//
// Chain only the parts you need; records default to an incremental-snapshot
// type with no timestamp, matching the sparsest payload ingestion accepts.
type EventBuilder struct {
	typ       int
	timestamp *int64
	mirror    bool
	data      map[string]any
}

// NewEventBuilder creates a builder with default record type 3.
func NewEventBuilder() *EventBuilder { return &EventBuilder{typ: 3} }

// Type sets the record type field (chainable).
func (b *EventBuilder) Type(t int) *EventBuilder { b.typ = t; return b }

// Timestamp sets the top-level capture timestamp in milliseconds (chainable).
func (b *EventBuilder) Timestamp(ms int64) *EventBuilder { b.timestamp = &ms; return b }

// Mirror duplicates the timestamp under data.timestamp, the nested location
// some capture formats carry (chainable).
func (b *EventBuilder) Mirror() *EventBuilder { b.mirror = true; return b }

// Data sets an arbitrary payload field under data (chainable).
func (b *EventBuilder) Data(key string, value any) *EventBuilder {
	if b.data == nil {
		b.data = map[string]any{}
	}
	b.data[key] = value
	return b
}

// Build renders the record as raw JSON bytes, the form chunk uploads carry.
func (b *EventBuilder) Build() json.RawMessage {
	m := map[string]any{"type": b.typ}
	if b.timestamp != nil {
		m["timestamp"] = *b.timestamp
	}
	data := map[string]any{}
	for k, v := range b.data {
		data[k] = v
	}
	if b.mirror && b.timestamp != nil {
		data["timestamp"] = *b.timestamp
	}
	if len(data) > 0 {
		m["data"] = data
	}
	raw, err := json.Marshal(m)
	if err != nil {
		panic(fmt.Sprintf("testutil: failed to marshal event: %v", err))
	}
	return raw
}

// BuildEvent renders the record and wraps it in an envelope, as ingestion
// does.
func (b *EventBuilder) BuildEvent() core.Event {
	return core.DecodeEvent(b.Build())
}

// Chunk builds a batch of raw records carrying the given timestamps.
func Chunk(timestamps ...int64) []json.RawMessage {
	raws := make([]json.RawMessage, 0, len(timestamps))
	for _, ts := range timestamps {
		raws = append(raws, NewEventBuilder().Timestamp(ts).Build())
	}
	return raws
}

// MirroredChunk builds a batch whose payloads mirror each timestamp under
// data.timestamp.
func MirroredChunk(timestamps ...int64) []json.RawMessage {
	raws := make([]json.RawMessage, 0, len(timestamps))
	for _, ts := range timestamps {
		raws = append(raws, NewEventBuilder().Timestamp(ts).Mirror().Build())
	}
	return raws
}

// ChunkEvents builds a batch of already-decoded envelopes carrying the given
// timestamps.
func ChunkEvents(timestamps ...int64) []core.Event {
	return core.DecodeEvents(Chunk(timestamps...))
}

package core

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Paths a capture timestamp may live at inside an event payload. Top-level
// "timestamp" is canonical; some capture formats mirror it under
// "data.timestamp" and replay consumers may read either location.
const (
	timestampPath       = "timestamp"
	nestedTimestampPath = "data.timestamp"
)

// Event is the atomic unit exchanged and merged: one snapshot or interaction
// record emitted by a client-side capture library. The payload is opaque to
// this module; the only fields ever inspected are the two known timestamp
// locations. After ingestion an Event should be treated as immutable; merge
// normalization produces rewritten copies via WithTimestamp rather than
// mutating in place.
type Event struct {
	// Timestamp is the resolved capture time in milliseconds, monotonic
	// within the chunk that carried the event. Zero when the payload had no
	// timestamp; see HasTimestamp.
	Timestamp int64

	// HasTimestamp records whether the payload carried a timestamp in either
	// known location. Records without one default to their chunk's base time
	// at merge time.
	HasTimestamp bool

	// Raw holds the payload exactly as received until normalization rewrites
	// its timestamp fields.
	Raw json.RawMessage
}

// DecodeEvent wraps one raw capture record, resolving its timestamp from the
// top-level field or the nested data.timestamp fallback.
func DecodeEvent(raw json.RawMessage) Event {
	ev := Event{Raw: raw}
	if res := gjson.GetBytes(raw, timestampPath); res.Exists() && res.Type == gjson.Number {
		ev.Timestamp = res.Int()
		ev.HasTimestamp = true
		return ev
	}
	if res := gjson.GetBytes(raw, nestedTimestampPath); res.Exists() && res.Type == gjson.Number {
		ev.Timestamp = res.Int()
		ev.HasTimestamp = true
	}
	return ev
}

// DecodeEvents wraps a batch of raw records preserving arrival order.
func DecodeEvents(raws []json.RawMessage) []Event {
	events := make([]Event, 0, len(raws))
	for _, raw := range raws {
		events = append(events, DecodeEvent(raw))
	}
	return events
}

// WithTimestamp returns a copy of the event whose resolved timestamp and
// payload both carry ms. The top-level field is always written; the nested
// data.timestamp mirror is rewritten only when the original payload had one,
// since replay consumers may read either location and must never see them
// disagree.
func (e Event) WithTimestamp(ms int64) Event {
	out := Event{Timestamp: ms, HasTimestamp: true, Raw: e.Raw}
	if !isJSONObject(e.Raw) || !gjson.ValidBytes(e.Raw) {
		// Degenerate non-object payloads pass through untouched; the
		// envelope timestamp still drives ordering.
		return out
	}
	raw, err := sjson.SetBytes(e.Raw, timestampPath, ms)
	if err != nil {
		return out
	}
	if res := gjson.GetBytes(e.Raw, nestedTimestampPath); res.Exists() {
		if nested, nerr := sjson.SetBytes(raw, nestedTimestampPath, ms); nerr == nil {
			raw = nested
		}
	}
	out.Raw = raw
	return out
}

// MarshalJSON emits the (possibly rewritten) payload, not the envelope, so
// artifacts contain records exactly as a player expects them.
func (e Event) MarshalJSON() ([]byte, error) {
	if len(e.Raw) == 0 {
		return json.Marshal(map[string]int64{timestampPath: e.Timestamp})
	}
	return e.Raw, nil
}

// UnmarshalJSON re-wraps a stored record, resolving its timestamp the same
// way ingestion does.
func (e *Event) UnmarshalJSON(data []byte) error {
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	*e = DecodeEvent(raw)
	return nil
}

func isJSONObject(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

// NewID generates a unique identifier for artifacts and session tokens.
//
// Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }

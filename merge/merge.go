// Package merge stitches independently captured event chunks into one
// continuous, monotonically timestamped timeline. Each chunk is internally
// time-ordered, but absolute epochs are not comparable across chunks: a
// capture may restart its clock near zero, use wall time, or carry
// capture-start jitter. The engine therefore rebases every chunk onto a
// running offset and separates consecutive chunks by a fixed quiet gap so
// two physically distinct captures never interleave.
//
// The engine performs no I/O and never drops or deduplicates records;
// visually duplicate snapshots remain distinct timeline entries.
package merge

import (
	"sort"
	"time"

	"github.com/SereneyePro/rrweb-uploader/core"
)

// DefaultGapMs separates consecutive chunks on the merged timeline so the
// next capture starts strictly after the previous one ends.
const DefaultGapMs = int64(1000)

// Wall clock used when a chunk's first record carries no timestamp.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// Timeline merges the chunks, in the order supplied, into one normalized
// sequence. Caller-declared chunk order is the only ordering signal across
// chunks; chunks are never content-sorted against each other.
//
// For each chunk the base time is its first record's timestamp. Every record
// is rewritten to runningOffset + (timestamp − base); records without a
// timestamp count as occurring at the base. After a chunk, the offset
// advances past its last record by gapMs. Empty chunks contribute nothing
// and do not advance the offset. A non-positive gapMs falls back to
// DefaultGapMs.
//
// The result is stable-sorted by final timestamp as a guard against chunks
// whose internal order was not already ascending.
func Timeline(chunks [][]core.Event, gapMs int64) []core.Event {
	if gapMs <= 0 {
		gapMs = DefaultGapMs
	}

	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	merged := make([]core.Event, 0, total)

	var runningOffset int64
	for _, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		base := chunkBase(chunk)
		last := base
		for _, ev := range chunk {
			ts := base
			if ev.HasTimestamp {
				ts = ev.Timestamp
			}
			merged = append(merged, ev.WithTimestamp(runningOffset+(ts-base)))
			last = ts
		}
		runningOffset += (last - base) + gapMs
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

// Sorted returns the sequence ordered by resolved capture time without
// rewriting any payload. This is the finalize path for a single buffered
// session: all its appends share one capture clock, so rebasing would shift
// genuine timestamps and only the ordering guarantee applies. Records
// without a timestamp count as occurring at the sequence's base time.
func Sorted(events []core.Event) []core.Event {
	out := make([]core.Event, len(events))
	copy(out, events)
	if len(out) == 0 {
		return out
	}
	base := chunkBase(out)
	at := func(ev core.Event) int64 {
		if ev.HasTimestamp {
			return ev.Timestamp
		}
		return base
	}
	sort.SliceStable(out, func(i, j int) bool {
		return at(out[i]) < at(out[j])
	})
	return out
}

// chunkBase returns the first record's timestamp, or the wall clock when the
// record carries none.
func chunkBase(chunk []core.Event) int64 {
	if chunk[0].HasTimestamp {
		return chunk[0].Timestamp
	}
	return nowMillis()
}

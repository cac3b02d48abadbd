package merge

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/SereneyePro/rrweb-uploader/core"
)

// evt builds a capture record whose payload mirrors the timestamp under
// data.timestamp, the shape replay players read from either location.
func evt(ms int64) core.Event {
	raw := fmt.Sprintf(`{"type":3,"timestamp":%d,"data":{"timestamp":%d,"source":2}}`, ms, ms)
	return core.DecodeEvent([]byte(raw))
}

func bare(ms int64) core.Event {
	return core.DecodeEvent([]byte(fmt.Sprintf(`{"type":2,"timestamp":%d}`, ms)))
}

func timestamps(events []core.Event) []int64 {
	out := make([]int64, len(events))
	for i, ev := range events {
		out[i] = ev.Timestamp
	}
	return out
}

func TestTimeline_GapInvariant(t *testing.T) {
	chunkA := []core.Event{evt(0), evt(500)}
	chunkB := []core.Event{evt(100), evt(900)}

	merged := Timeline([][]core.Event{chunkA, chunkB}, DefaultGapMs)

	require.Len(t, merged, 4)
	assert.Equal(t, []int64{0, 500, 1500, 2300}, timestamps(merged))
}

func TestTimeline_SingleChunkIdempotence(t *testing.T) {
	chunk := []core.Event{evt(0), evt(120), evt(450)}

	merged := Timeline([][]core.Event{chunk}, DefaultGapMs)

	assert.Equal(t, []int64{0, 120, 450}, timestamps(merged))
}

func TestTimeline_RewritesPayloadAndMirror(t *testing.T) {
	merged := Timeline([][]core.Event{
		{evt(100), evt(600)},
		{evt(50)},
	}, DefaultGapMs)

	require.Len(t, merged, 3)
	// Second chunk rebased to 500 + 1000 = 1500.
	last := merged[2]
	assert.Equal(t, int64(1500), last.Timestamp)
	assert.Equal(t, int64(1500), gjson.GetBytes(last.Raw, "timestamp").Int())
	assert.Equal(t, int64(1500), gjson.GetBytes(last.Raw, "data.timestamp").Int())
	assert.Equal(t, int64(2), gjson.GetBytes(last.Raw, "data.source").Int(),
		"payload fields other than the timestamps must survive untouched")
}

func TestTimeline_EmptyChunkContributesNothing(t *testing.T) {
	withEmpty := Timeline([][]core.Event{
		{evt(0), evt(500)},
		{},
		{evt(100), evt(900)},
	}, DefaultGapMs)
	withoutEmpty := Timeline([][]core.Event{
		{evt(0), evt(500)},
		{evt(100), evt(900)},
	}, DefaultGapMs)

	assert.Equal(t, timestamps(withoutEmpty), timestamps(withEmpty),
		"an empty chunk must not advance the running offset")
}

func TestTimeline_SingleRecordChunkAdvancesByGapOnly(t *testing.T) {
	merged := Timeline([][]core.Event{
		{evt(42)},
		{evt(100), evt(130)},
	}, DefaultGapMs)

	assert.Equal(t, []int64{0, 1000, 1030}, timestamps(merged))
}

func TestTimeline_SortGuardsDescendingChunk(t *testing.T) {
	// Internally descending chunk: deltas go negative, the terminal stable
	// sort must still yield a non-decreasing timeline.
	merged := Timeline([][]core.Event{
		{evt(300), evt(100), evt(200)},
		{evt(10), evt(20)},
	}, DefaultGapMs)

	require.Len(t, merged, 5)
	got := timestamps(merged)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1], "timeline must be non-decreasing at %d: %v", i, got)
	}
}

func TestTimeline_MissingTimestampDefaultsToBase(t *testing.T) {
	noTS := core.DecodeEvent([]byte(`{"type":4,"data":{"href":"/x"}}`))
	merged := Timeline([][]core.Event{
		{evt(50), noTS, evt(80)},
	}, DefaultGapMs)

	require.Len(t, merged, 3)
	// The timestamp-less record counts as occurring at the base (delta 0)
	// and sorts stably against the base record.
	assert.Equal(t, []int64{0, 0, 30}, timestamps(merged))
}

func TestTimeline_WallClockBaseForTimestamplessChunk(t *testing.T) {
	restore := nowMillis
	nowMillis = func() int64 { return 7_000 }
	defer func() { nowMillis = restore }()

	noTS := func() core.Event { return core.DecodeEvent([]byte(`{"type":4,"data":{}}`)) }
	merged := Timeline([][]core.Event{
		{noTS(), noTS()},
		{evt(10), evt(25)},
	}, DefaultGapMs)

	// Every record of the clockless chunk lands on offset zero; the next
	// chunk starts one gap later.
	assert.Equal(t, []int64{0, 0, 1000, 1015}, timestamps(merged))
}

func TestTimeline_PreservesDuplicates(t *testing.T) {
	merged := Timeline([][]core.Event{
		{evt(100), evt(100), evt(100)},
	}, DefaultGapMs)

	assert.Equal(t, []int64{0, 0, 0}, timestamps(merged), "duplicates are distinct timeline entries")
}

func TestTimeline_CustomAndDefaultGap(t *testing.T) {
	chunks := func() [][]core.Event {
		return [][]core.Event{{bare(0), bare(200)}, {bare(0)}}
	}

	merged := Timeline(chunks(), 250)
	assert.Equal(t, []int64{0, 200, 450}, timestamps(merged))

	merged = Timeline(chunks(), 0)
	assert.Equal(t, []int64{0, 200, 1200}, timestamps(merged), "non-positive gap falls back to the default")
}

func TestTimeline_NoChunks(t *testing.T) {
	assert.Empty(t, Timeline(nil, DefaultGapMs))
	assert.Empty(t, Timeline([][]core.Event{{}, {}}, DefaultGapMs))
}

func TestSorted_AscendingStaysUntouched(t *testing.T) {
	out := Sorted([]core.Event{evt(10), evt(20)})

	require.Len(t, out, 2)
	assert.Equal(t, []int64{10, 20}, timestamps(out))
	// single-session finalize never rebases or rewrites payloads
	assert.Equal(t, int64(10), gjson.GetBytes(out[0].Raw, "timestamp").Int())
	assert.Equal(t, int64(20), gjson.GetBytes(out[1].Raw, "data.timestamp").Int())
}

func TestSorted_RestoresOrder(t *testing.T) {
	out := Sorted([]core.Event{evt(300), evt(100), evt(200)})

	assert.Equal(t, []int64{100, 200, 300}, timestamps(out))
}

func TestSorted_MissingTimestampCountsAsBase(t *testing.T) {
	noTS := core.DecodeEvent([]byte(`{"type":4,"data":{"href":"/x"}}`))
	out := Sorted([]core.Event{evt(50), noTS, evt(80)})

	require.Len(t, out, 3)
	// counts as the base time 50: stays between the base record and the
	// later one under the stable sort
	assert.False(t, out[1].HasTimestamp)
	assert.Equal(t, int64(80), out[2].Timestamp)
}

func TestSorted_DoesNotMutateInput(t *testing.T) {
	in := []core.Event{evt(300), evt(100)}
	_ = Sorted(in)

	assert.Equal(t, []int64{300, 100}, timestamps(in), "caller's slice must keep arrival order")
}

func TestSorted_Empty(t *testing.T) {
	assert.Empty(t, Sorted(nil))
}

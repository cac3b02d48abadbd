package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/SereneyePro/rrweb-uploader/artifact"
	"github.com/SereneyePro/rrweb-uploader/core"
	"github.com/SereneyePro/rrweb-uploader/internal/testutil"
	"github.com/SereneyePro/rrweb-uploader/session"
)

// failingStore simulates a misconfigured or unreachable blob backend.
type failingStore struct{}

func (failingStore) Publish(string, []byte) (core.PublishResult, error) {
	return core.PublishResult{}, fmt.Errorf("blob endpoint unreachable")
}
func (failingStore) Fetch(string) ([]byte, error)       { return nil, fmt.Errorf("blob endpoint unreachable") }
func (failingStore) List() ([]core.ArtifactInfo, error) { return nil, fmt.Errorf("blob endpoint unreachable") }
func (failingStore) Delete(string) error                { return fmt.Errorf("blob endpoint unreachable") }

func newTestCollector() (*Collector, *artifact.InMemoryStore) {
	store := artifact.NewInMemoryStore()
	col := New(func(o *Options) {
		o.Store = store
	})
	return col, store
}

func TestCollector_StartMintsToken(t *testing.T) {
	col, _ := newTestCollector()

	sess, err := col.Start("s1", map[string]any{"url": "/a"})
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.NotEmpty(t, sess.Token)

	// restart is idempotent: same session, same token, meta merged
	again, err := col.Start("s1", map[string]any{"ua": "test"})
	require.NoError(t, err)
	assert.Equal(t, sess.Token, again.Token)
	snap := again.Snapshot()
	assert.Equal(t, "/a", snap.Meta["url"])
	assert.Equal(t, "test", snap.Meta["ua"])
	assert.Equal(t, 1, col.LiveSessions())
}

func TestCollector_StartEmptyID(t *testing.T) {
	col, _ := newTestCollector()
	_, err := col.Start("", nil)
	assert.ErrorIs(t, err, core.ErrBadRequest)
}

func TestCollector_AppendAccumulatesInOrder(t *testing.T) {
	col, _ := newTestCollector()

	n, err := col.Append("s1", testutil.Chunk(10, 20, 30))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = col.Append("s1", testutil.Chunk(40))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = col.Append("s1", nil)
	require.NoError(t, err)

	res, err := col.Finish("s1", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, res.EventCount, "buffered count must equal the sum of appended chunk lengths")
}

func TestCollector_FinishEndToEnd(t *testing.T) {
	col, store := newTestCollector()

	_, err := col.Start("s1", map[string]any{"url": "/a"})
	require.NoError(t, err)
	_, err = col.Append("s1", testutil.Chunk(10))
	require.NoError(t, err)
	_, err = col.Append("s1", testutil.Chunk(20))
	require.NoError(t, err)

	res, err := col.Finish("s1", map[string]any{"duration": 1})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ArtifactID)
	assert.Equal(t, "s1.json", res.ArtifactName)
	assert.Equal(t, 2, res.EventCount)
	assert.Len(t, res.Digest, 64, "sha256 hex digest expected")

	data, err := store.Fetch(res.ArtifactID)
	require.NoError(t, err)
	var stored core.Artifact
	require.NoError(t, json.Unmarshal(data, &stored))

	assert.Equal(t, "s1", stored.SessionID)
	assert.Equal(t, "/a", stored.Meta["url"])
	assert.EqualValues(t, 1, stored.Meta["duration"])
	assert.Equal(t, 2, stored.Counts.Events)
	require.Len(t, stored.Events, 2)
	// single recording: timestamps survive unshifted
	assert.Equal(t, int64(10), stored.Events[0].Timestamp)
	assert.Equal(t, int64(20), stored.Events[1].Timestamp)
	assert.Equal(t, int64(10), gjson.GetBytes(stored.Events[0].Raw, "timestamp").Int())

	assert.Equal(t, 0, col.LiveSessions(), "finalized session must leave the registry")
}

func TestCollector_FinishOrdersBufferedEvents(t *testing.T) {
	col, store := newTestCollector()

	// chunks may arrive out of capture order; finalize restores ordering
	_, err := col.Append("s1", testutil.Chunk(300, 100, 200))
	require.NoError(t, err)

	res, err := col.Finish("s1", nil)
	require.NoError(t, err)

	data, err := store.Fetch(res.ArtifactID)
	require.NoError(t, err)
	var stored core.Artifact
	require.NoError(t, json.Unmarshal(data, &stored))
	require.Len(t, stored.Events, 3)
	assert.Equal(t, int64(100), stored.Events[0].Timestamp)
	assert.Equal(t, int64(200), stored.Events[1].Timestamp)
	assert.Equal(t, int64(300), stored.Events[2].Timestamp)
}

func TestCollector_DoubleFinish(t *testing.T) {
	col, _ := newTestCollector()

	_, err := col.Append("s1", testutil.Chunk(10))
	require.NoError(t, err)

	_, err = col.Finish("s1", nil)
	require.NoError(t, err)

	_, err = col.Finish("s1", nil)
	assert.ErrorIs(t, err, core.ErrUnknownSession, "second finalize must observe an unknown session")
}

func TestCollector_FinishValidation(t *testing.T) {
	col, _ := newTestCollector()

	_, err := col.Finish("", nil)
	assert.ErrorIs(t, err, core.ErrBadRequest)

	_, err = col.Finish("never-started", nil)
	assert.ErrorIs(t, err, core.ErrUnknownSession)
}

func TestCollector_AppendBeaconTokenAuth(t *testing.T) {
	col, _ := newTestCollector()

	sess, err := col.Start("s1", nil)
	require.NoError(t, err)

	n, err := col.AppendBeacon("s1", sess.Token, testutil.Chunk(10, 20))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = col.AppendBeacon("s1", "forged", testutil.Chunk(30))
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = col.AppendBeacon("s1", "", testutil.Chunk(30))
	assert.ErrorIs(t, err, core.ErrUnauthorized, "a missing token never matches")

	res, err := col.Finish("s1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.EventCount, "rejected beacons must not mutate the buffer")
}

func TestCollector_AppendBeaconUnknownSession(t *testing.T) {
	col, _ := newTestCollector()

	sess, err := col.Start("s1", nil)
	require.NoError(t, err)

	// correct token, wrong session id: unauthorized, and no session appears
	_, err = col.AppendBeacon("other", sess.Token, testutil.Chunk(10))
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	assert.Equal(t, 1, col.LiveSessions(), "beacon path must never implicitly create sessions")
}

func TestCollector_FinishBeacon(t *testing.T) {
	col, store := newTestCollector()

	sess, err := col.Start("s1", map[string]any{"url": "/a"})
	require.NoError(t, err)
	_, err = col.AppendBeacon("s1", sess.Token, testutil.Chunk(5))
	require.NoError(t, err)

	res, err := col.FinishBeacon("s1", sess.Token, map[string]any{"duration": 2})
	require.NoError(t, err)
	assert.Equal(t, 1, res.EventCount)

	data, err := store.Fetch(res.ArtifactID)
	require.NoError(t, err)
	var stored core.Artifact
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.EqualValues(t, 2, stored.Meta["duration"])
}

func TestCollector_FinishBeaconBadToken(t *testing.T) {
	col, _ := newTestCollector()

	_, err := col.Start("s1", nil)
	require.NoError(t, err)

	_, err = col.FinishBeacon("s1", "forged", nil)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	assert.Equal(t, 1, col.LiveSessions(), "a rejected beacon finish must not finalize the session")
}

func TestCollector_MergeRecordings(t *testing.T) {
	col, store := newTestCollector()

	_, err := col.Append("a", testutil.MirroredChunk(0, 500))
	require.NoError(t, err)
	resA, err := col.Finish("a", map[string]any{"url": "/a"})
	require.NoError(t, err)

	_, err = col.Append("b", testutil.MirroredChunk(100, 900))
	require.NoError(t, err)
	resB, err := col.Finish("b", map[string]any{"url": "/b", "ua": "test"})
	require.NoError(t, err)

	merged, err := col.MergeRecordings([]string{resA.ArtifactID, resB.ArtifactID})
	require.NoError(t, err)
	assert.Equal(t, 4, merged.EventCount)

	got := make([]int64, len(merged.Events))
	for i, ev := range merged.Events {
		got[i] = ev.Timestamp
	}
	assert.Equal(t, []int64{0, 500, 1500, 2300}, got)

	// rewritten in both payload locations
	assert.Equal(t, int64(1500), gjson.GetBytes(merged.Events[2].Raw, "timestamp").Int())
	assert.Equal(t, int64(1500), gjson.GetBytes(merged.Events[2].Raw, "data.timestamp").Int())

	// the combination is itself a durable artifact
	data, err := store.Fetch(merged.ArtifactID)
	require.NoError(t, err)
	var stored core.Artifact
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, 4, stored.Counts.Events)
	assert.Equal(t, "/b", stored.Meta["url"], "later source meta wins")
	assert.Equal(t, "test", stored.Meta["ua"])
	assert.Contains(t, stored.Meta, "sources")
}

func TestCollector_MergeRecordingsValidation(t *testing.T) {
	col, _ := newTestCollector()

	_, err := col.MergeRecordings(nil)
	assert.ErrorIs(t, err, core.ErrBadRequest)

	_, err = col.MergeRecordings([]string{"no-such-artifact"})
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)
}

func TestCollector_PublishFailureIsTerminal(t *testing.T) {
	col := New(func(o *Options) {
		o.Store = failingStore{}
	})

	_, err := col.Append("s1", testutil.Chunk(10))
	require.NoError(t, err)

	_, err = col.Finish("s1", nil)
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)

	// the buffer is already gone: the recording cannot be re-finalized
	_, err = col.Finish("s1", nil)
	assert.ErrorIs(t, err, core.ErrUnknownSession)
}

func TestCollector_RecordingPassthroughs(t *testing.T) {
	col, _ := newTestCollector()

	_, err := col.Append("s1", testutil.Chunk(10))
	require.NoError(t, err)
	res, err := col.Finish("s1", nil)
	require.NoError(t, err)

	infos, err := col.Recordings()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, res.ArtifactID, infos[0].ID)

	data, err := col.Recording(res.ArtifactID)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	require.NoError(t, col.DeleteRecording(res.ArtifactID))
	_, err = col.Recording(res.ArtifactID)
	assert.ErrorIs(t, err, artifact.ErrNotFound)

	_, err = New(func(o *Options) { o.Store = failingStore{} }).Recordings()
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)
}

func TestCollector_RunSweeperEvictsIdleSessions(t *testing.T) {
	reg := session.NewInMemoryRegistry(func(o *session.Options) {
		o.IdleTimeout = time.Millisecond
	})
	col := New(func(o *Options) {
		o.Registry = reg
		o.Config.SweepInterval = 5 * time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go col.RunSweeper(ctx)

	_, err := col.Start("abandoned", nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return col.LiveSessions() == 0
	}, time.Second, 10*time.Millisecond, "idle session should be evicted by the sweeper")

	_, err = col.Finish("abandoned", nil)
	assert.ErrorIs(t, err, core.ErrUnknownSession, "finalize after eviction observes an unknown session")
}

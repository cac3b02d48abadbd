package collector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gowebpki/jcs"

	"github.com/SereneyePro/rrweb-uploader/artifact"
	"github.com/SereneyePro/rrweb-uploader/core"
	"github.com/SereneyePro/rrweb-uploader/logging"
	"github.com/SereneyePro/rrweb-uploader/merge"
	"github.com/SereneyePro/rrweb-uploader/session"
)

// Config defines tuning parameters for the collector's merge and eviction
// behavior.
type Config struct {
	// InterChunkGapMs is the quiet gap inserted between recordings when
	// concatenating previously finalized artifacts. Zero or negative falls
	// back to merge.DefaultGapMs.
	InterChunkGapMs int64

	// SweepInterval is how often RunSweeper scans for idle sessions.
	SweepInterval time.Duration
}

// DefaultConfig provides the reference policy values.
var DefaultConfig = Config{
	InterChunkGapMs: merge.DefaultGapMs,
	SweepInterval:   time.Minute,
}

// Options configures a Collector instance using the functional options
// pattern. All services have in-memory defaults so a bare New() is usable in
// tests and prototypes.
type Options struct {
	// Config contains merge and eviction tuning. Defaults to DefaultConfig.
	Config Config

	// Registry owns the live sessions. Defaults to an in-memory registry.
	Registry core.Registry

	// Store persists finished artifacts. Defaults to an in-memory store.
	Store core.ArtifactStore

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// reporter is the richer logging surface used when the injected logger
// provides it; logging.UploadLogger does. Plain Logger implementations fall
// back to formatted messages.
type reporter interface {
	LogIngest(sessionID string, events int, success bool, err error)
	LogPublish(sessionID, artifactID, size string, dur time.Duration, success bool, err error)
	LogSweep(removed, remaining int, dur time.Duration)
}

// FinishResult reports a successful finalize: where the artifact landed, how
// many events it carries, and its canonical content digest.
type FinishResult struct {
	ArtifactID   string `json:"artifactId"`
	ArtifactName string `json:"artifactName"`
	EventCount   int    `json:"eventCount"`
	Digest       string `json:"digest,omitempty"`
}

// MergeResult reports a successful concatenation of finalized recordings:
// the published combined artifact plus the merged sequence itself.
type MergeResult struct {
	ArtifactID   string       `json:"artifactId"`
	ArtifactName string       `json:"artifactName"`
	EventCount   int          `json:"eventCount"`
	Digest       string       `json:"digest,omitempty"`
	Events       []core.Event `json:"events"`
}

// Collector orchestrates the recording lifecycle from first chunk to durable
// artifact. It is safe for concurrent use; per-session mutual exclusion is
// delegated to the registry and session types.
type Collector struct {
	registry core.Registry
	store    core.ArtifactStore
	logger   logging.Logger
	rep      reporter // nil when the logger has no domain helpers
	config   Config
}

// New creates a Collector with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Collector {
	opts := Options{
		Config:   DefaultConfig,
		Registry: session.NewInMemoryRegistry(),
		Store:    artifact.NewInMemoryStore(),
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.InterChunkGapMs <= 0 {
		opts.Config.InterChunkGapMs = merge.DefaultGapMs
	}
	if opts.Config.SweepInterval <= 0 {
		opts.Config.SweepInterval = DefaultConfig.SweepInterval
	}

	rep, _ := opts.Logger.(reporter)

	return &Collector{
		registry: opts.Registry,
		store:    opts.Store,
		logger:   opts.Logger,
		rep:      rep,
		config:   opts.Config,
	}
}

// Start pre-registers a recording session, merging any caller-supplied meta,
// and returns the live session carrying the token the beacon path will echo
// back. Starting an already-live session is idempotent; its token is
// unchanged.
func (c *Collector) Start(id string, meta map[string]any) (*core.Session, error) {
	sess, err := c.registry.GetOrCreate(id)
	if err != nil {
		return nil, err
	}
	sess.MergeMeta(meta)
	c.logger.Debug("session started session_id=%s live=%d", id, c.registry.Len())
	return sess, nil
}

// Append buffers one chunk of raw records on the session, auto-creating it
// under the registry's lenient policy. Returns how many records were
// accepted.
func (c *Collector) Append(id string, raws []json.RawMessage) (int, error) {
	events := core.DecodeEvents(raws)
	if err := c.registry.Append(id, events); err != nil {
		c.logIngest(id, len(events), false, err)
		return 0, err
	}
	c.logIngest(id, len(events), true, nil)
	return len(events), nil
}

// AppendBeacon buffers one chunk arriving over the header-less best-effort
// path. The caller authenticates by echoing the session token; a missing
// session and a mismatched token are the same Unauthorized failure so the
// response never reveals which credential check failed, and no session is
// ever implicitly created on this path.
func (c *Collector) AppendBeacon(id, token string, raws []json.RawMessage) (int, error) {
	sess, err := c.verifyToken(id, token)
	if err != nil {
		c.logIngest(id, len(raws), false, err)
		return 0, err
	}
	events := core.DecodeEvents(raws)
	sess.AppendEvents(events)
	c.logIngest(id, len(events), true, nil)
	return len(events), nil
}

// Finish finalizes the session: atomically removes it from the registry,
// merges any final meta, orders the buffered events, and publishes the
// artifact. The removal happens first, so a concurrent duplicate Finish
// observes UnknownSession and a publish failure is terminal for the
// recording.
func (c *Collector) Finish(id string, meta map[string]any) (*FinishResult, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session id required", core.ErrBadRequest)
	}
	sess, ok := c.registry.Finalize(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownSession, id)
	}
	sess.MergeMeta(meta)
	snap := sess.Snapshot()

	// All appends to one session share one capture clock, so finalize only
	// restores ordering; rebasing is reserved for concatenating recordings.
	events := merge.Sorted(snap.Events)

	art := core.Artifact{
		SessionID: id,
		CreatedAt: time.Now().UTC(),
		Meta:      snap.Meta,
		Events:    events,
		Counts:    core.Counts{Events: len(events)},
	}
	return c.publish(art)
}

// FinishBeacon finalizes over the best-effort path after verifying the
// echoed session token. The finalize pipeline past the credential check is
// identical to Finish.
func (c *Collector) FinishBeacon(id, token string, meta map[string]any) (*FinishResult, error) {
	if _, err := c.verifyToken(id, token); err != nil {
		return nil, err
	}
	return c.Finish(id, meta)
}

// MergeRecordings fetches the named artifacts, concatenates their event
// sequences into one rebased, gap-separated timeline, and publishes the
// combination as a new artifact. Source order is the caller-declared order
// and the only ordering signal across recordings.
func (c *Collector) MergeRecordings(ids []string) (*MergeResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one artifact id required", core.ErrBadRequest)
	}

	chunks := make([][]core.Event, 0, len(ids))
	meta := map[string]any{}
	for _, id := range ids {
		data, err := c.store.Fetch(id)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch %s: %v", core.ErrStorageUnavailable, id, err)
		}
		var stored core.Artifact
		if err := json.Unmarshal(data, &stored); err != nil {
			return nil, fmt.Errorf("%w: artifact %s is not parseable: %v", core.ErrStorageUnavailable, id, err)
		}
		chunks = append(chunks, stored.Events)
		for k, v := range stored.Meta {
			meta[k] = v
		}
	}
	meta["sources"] = ids

	merged := merge.Timeline(chunks, c.config.InterChunkGapMs)

	art := core.Artifact{
		SessionID: "merged-" + core.NewID(),
		CreatedAt: time.Now().UTC(),
		Meta:      meta,
		Events:    merged,
		Counts:    core.Counts{Events: len(merged)},
	}
	fin, err := c.publish(art)
	if err != nil {
		return nil, err
	}
	return &MergeResult{
		ArtifactID:   fin.ArtifactID,
		ArtifactName: fin.ArtifactName,
		EventCount:   fin.EventCount,
		Digest:       fin.Digest,
		Events:       merged,
	}, nil
}

// Recordings lists the stored artifacts, newest first.
func (c *Collector) Recordings() ([]core.ArtifactInfo, error) {
	infos, err := c.store.List()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return infos, nil
}

// Recording returns the stored artifact bytes, opaque to the caller. A
// missing id surfaces as artifact.ErrNotFound; any other store failure as
// StorageUnavailable.
func (c *Collector) Recording(id string) ([]byte, error) {
	data, err := c.store.Fetch(id)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return data, nil
}

// DeleteRecording removes a stored artifact.
func (c *Collector) DeleteRecording(id string) error {
	if err := c.store.Delete(id); err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return nil
}

// RunSweeper blocks, evicting idle sessions on every sweep interval until
// ctx is cancelled. Run it on its own goroutine.
func (c *Collector) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			removed := c.registry.SweepExpired(time.Now().UTC())
			c.logSweep(removed, c.registry.Len(), time.Since(start))
		}
	}
}

// LiveSessions reports how many sessions are currently buffered.
func (c *Collector) LiveSessions() int { return c.registry.Len() }

// verifyToken resolves the session and checks the echoed token. Both
// failure modes collapse into one Unauthorized error so the response never
// reveals whether the session exists.
func (c *Collector) verifyToken(id, token string) (*core.Session, error) {
	sess, ok := c.registry.Get(id)
	if !ok || !sess.TokenMatches(token) {
		return nil, fmt.Errorf("%w: session token mismatch", core.ErrUnauthorized)
	}
	return sess, nil
}

// publish serializes the artifact and hands it to the store, logging size
// and latency. By the time publish runs the session is gone from the
// registry, so a failure here cannot be retried with the same buffer.
func (c *Collector) publish(art core.Artifact) (*FinishResult, error) {
	data, err := json.Marshal(art)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize artifact: %w", err)
	}
	name := art.SessionID + ".json"
	size := humanize.Bytes(uint64(len(data)))

	start := time.Now()
	res, err := c.store.Publish(name, data)
	if err != nil {
		c.logPublish(art.SessionID, "", size, time.Since(start), false, err)
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}

	digest, derr := artifactDigest(data)
	if derr != nil {
		c.logger.Warn("artifact digest failed artifact_id=%s: %v", res.ID, derr)
	}
	c.logPublish(art.SessionID, res.ID, size, time.Since(start), true, nil)

	return &FinishResult{
		ArtifactID:   res.ID,
		ArtifactName: res.Name,
		EventCount:   art.Counts.Events,
		Digest:       digest,
	}, nil
}

// artifactDigest canonicalizes the serialized artifact (RFC 8785) and
// returns a sha256 hex digest, giving replay consumers an end-to-end
// integrity check independent of JSON key order.
func artifactDigest(data []byte) (string, error) {
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func (c *Collector) logIngest(sessionID string, events int, success bool, err error) {
	if c.rep != nil {
		c.rep.LogIngest(sessionID, events, success, err)
		return
	}
	if success {
		c.logger.Debug("chunk ingested session_id=%s events=%d", sessionID, events)
	} else {
		c.logger.Warn("chunk rejected session_id=%s: %v", sessionID, err)
	}
}

func (c *Collector) logPublish(sessionID, artifactID, size string, dur time.Duration, success bool, err error) {
	if c.rep != nil {
		c.rep.LogPublish(sessionID, artifactID, size, dur, success, err)
		return
	}
	if success {
		c.logger.Info("artifact published session_id=%s artifact_id=%s size=%s duration=%s", sessionID, artifactID, size, dur)
	} else {
		c.logger.Error("artifact publish failed session_id=%s: %v", sessionID, err)
	}
}

func (c *Collector) logSweep(removed, remaining int, dur time.Duration) {
	if c.rep != nil {
		c.rep.LogSweep(removed, remaining, dur)
		return
	}
	if removed > 0 {
		c.logger.Info("idle sessions evicted removed=%d remaining=%d", removed, remaining)
	}
}

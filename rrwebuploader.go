// Package rrwebuploader provides a high-level façade over the collector and
// gateway abstractions (sessions, merge, artifacts & logging) enabling rapid
// construction of session-replay ingestion services. Most applications
// interact with this package by:
//  1. Creating an Uploader via New() (optionally overriding default in‑memory services)
//  2. Serving the HTTP gateway (Serve) or mounting Handler() into an existing server
//  3. Driving the recording lifecycle directly (Start, Append, Finish) when embedded
//
// The façade delegates orchestration to collector.Collector while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// artifact store and a structured logger.
package rrwebuploader

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/SereneyePro/rrweb-uploader/artifact"
	"github.com/SereneyePro/rrweb-uploader/collector"
	"github.com/SereneyePro/rrweb-uploader/core"
	"github.com/SereneyePro/rrweb-uploader/gateway"
	"github.com/SereneyePro/rrweb-uploader/logging"
	"github.com/SereneyePro/rrweb-uploader/session"
)

// shutdownTimeout bounds how long Serve waits for in-flight requests after
// cancellation.
const shutdownTimeout = 30 * time.Second

// Options configures the Uploader instance.
type Options struct {
	// CollectorConfig tunes merge and eviction behavior (inter-chunk gap,
	// sweep interval).
	CollectorConfig collector.Config

	// GatewayConfig carries the wire-level settings (listen address, shared
	// secret, allowed origins).
	GatewayConfig gateway.Config

	// Registry owns the live sessions (defaults to in-memory).
	Registry core.Registry

	// ArtifactStore persists finished recordings (defaults to in-memory).
	ArtifactStore core.ArtifactStore

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Uploader is the high-level façade aggregating the collector and gateway.
type Uploader struct {
	opts      Options
	collector *collector.Collector
	gateway   *gateway.Server
}

// New creates a new Uploader instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Uploader {
	opts := Options{
		CollectorConfig: collector.DefaultConfig,
		GatewayConfig:   gateway.DefaultConfig,
		Registry:        session.NewInMemoryRegistry(),
		ArtifactStore:   artifact.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	col := collector.New(func(o *collector.Options) {
		o.Config = opts.CollectorConfig
		o.Registry = opts.Registry
		o.Store = opts.ArtifactStore
		o.Logger = opts.Logger
	})

	gw := gateway.New(func(o *gateway.Options) {
		o.Config = opts.GatewayConfig
		o.Collector = col
		o.Logger = opts.Logger
	})

	return &Uploader{opts: opts, collector: col, gateway: gw}
}

// Collector exposes the underlying orchestration service for operations the
// façade does not delegate.
func (u *Uploader) Collector() *collector.Collector { return u.collector }

// Handler returns the fully wired HTTP routes for mounting into a
// caller-owned server.
func (u *Uploader) Handler() http.Handler { return u.gateway.Handler() }

// Serve runs the HTTP gateway and the idle-session sweeper until ctx is
// cancelled, then drains in-flight requests.
func (u *Uploader) Serve(ctx context.Context) error {
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go u.collector.RunSweeper(sweepCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- u.gateway.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := u.gateway.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Start pre-registers a recording session and returns it with its minted
// token.
func (u *Uploader) Start(id string, meta map[string]any) (*core.Session, error) {
	return u.collector.Start(id, meta)
}

// Append buffers one chunk of raw records on the session.
func (u *Uploader) Append(id string, events []json.RawMessage) (int, error) {
	return u.collector.Append(id, events)
}

// Finish finalizes the session and publishes its artifact.
func (u *Uploader) Finish(id string, meta map[string]any) (*collector.FinishResult, error) {
	return u.collector.Finish(id, meta)
}

// MergeRecordings concatenates previously finalized recordings into a new
// artifact.
func (u *Uploader) MergeRecordings(ids []string) (*collector.MergeResult, error) {
	return u.collector.MergeRecordings(ids)
}

// Recordings lists the stored artifacts, newest first.
func (u *Uploader) Recordings() ([]core.ArtifactInfo, error) {
	return u.collector.Recordings()
}

// Recording returns the stored artifact bytes by id.
func (u *Uploader) Recording(id string) ([]byte, error) {
	return u.collector.Recording(id)
}

// DeleteRecording removes a stored artifact.
func (u *Uploader) DeleteRecording(id string) error {
	return u.collector.DeleteRecording(id)
}

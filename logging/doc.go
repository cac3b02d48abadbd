// Package logging provides a minimal logging interface and adapters for the
// recording upload service.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the collector and gateway use for observability. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - UploadLogger with contextual helpers and ingest/publish/sweep logging
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	col := collector.New(registry, store, collector.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging

// Package collector implements the orchestration layer of the recording
// upload service.
//
// The Collector binds the session registry, the merge engine and the
// artifact store into the operations the HTTP gateway exposes. It owns the
// one hard lifecycle rule of the system: finalize removes the session from
// the registry before the publish attempt, so a duplicate finalize observes
// an unknown session instead of racing on shared buffers, and a publish
// failure after that point is terminal for the recording.
//
// # Responsibilities
//   - Session lifecycle: start (pre-register meta, mint token), incremental
//     chunk appends, token-verified beacon appends
//   - Finalize-once pipeline: atomic removal, stable ordering, artifact
//     assembly, canonical digest, durable publish
//   - Concatenation of previously finalized recordings into one rebased,
//     gap-separated timeline
//   - Background eviction of idle sessions
//
// All methods are synchronous and safe for concurrent use; only publish and
// fetch calls against the artifact store perform I/O.
//
// See collector.go for the operational implementation details.
package collector

// Package core provides the foundational domain types and contracts used by
// the rrweb-uploader service. It defines the core abstractions for:
//
//   - Events (opaque, timestamped capture records exchanged and merged)
//   - Sessions (in-progress recordings buffering events server-side)
//   - Artifacts (merged, immutable outputs of finalized recordings)
//   - The Registry owning live sessions and the ArtifactStore persisting
//     finished ones
//   - The error taxonomy shared by the gateway and collector layers
//
// The package intentionally keeps implementation concerns (persistence, HTTP
// serving, the merge algorithm) out of scope, exposing small interfaces to
// enable custom backends and extensions. All exported identifiers include
// concise documentation to aid discoverability and external consumption.
package core

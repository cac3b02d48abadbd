// Package gateway exposes the collector over HTTP. It owns the wire
// concerns the collector deliberately does not: routing, the two
// authentication schemes, CORS negotiation for cross-origin capture
// clients, request-shape validation, and the mapping from the error
// taxonomy to status codes.
//
// # Authentication
//
// Two parallel entry protocols funnel into the same collector, and their
// credentials never mix:
//
//   - The header path (start, chunk, finish, plus the recording admin
//     endpoints) requires the pre-shared secret in the X-Recording-Secret
//     header, compared in constant time. An empty configured secret
//     disables the check.
//   - The beacon path (chunk-beacon, finish-beacon) exists for page
//     teardown, where the client cannot set custom headers or wait on the
//     response. It authenticates by echoing the session token minted at
//     start, carried inside a raw text body parsed without regard to the
//     declared content type.
//
// # Endpoints
//
//	POST   /api/record/start          register session, returns the token
//	POST   /api/record/chunk          append a batch of events
//	POST   /api/record/finish         finalize and publish the artifact
//	POST   /api/record/chunk-beacon   append over the best-effort path
//	POST   /api/record/finish-beacon  finalize over the best-effort path
//	POST   /api/recordings/merge      concatenate stored recordings
//	GET    /api/recordings            list stored artifacts
//	GET    /api/recordings/{id}       fetch raw artifact bytes
//	DELETE /api/recordings/{id}       delete a stored artifact
//	GET    /healthz                   liveness plus live session count
package gateway

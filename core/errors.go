package core

import "errors"

// Error taxonomy shared across the collector and gateway. Failures are
// wrapped with fmt.Errorf("...: %w", ...) so callers classify them via
// errors.Is and the HTTP layer maps each class onto a distinct status.
var (
	// ErrBadRequest flags missing or malformed caller input. Never retried
	// by the server; the request itself is the bug.
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized flags a shared-secret or session-token mismatch. The
	// error never reveals which credential failed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnknownSession flags an operation referencing a session absent from
	// the registry: either already finalized or evicted by the idle sweep.
	// Surfaced distinctly so clients can tell "lost buffered data" from a
	// malformed request.
	ErrUnknownSession = errors.New("unknown session")

	// ErrStorageUnavailable flags an artifact store failure. At finalize
	// time the session has already been removed from the registry, so this
	// failure is terminal for that recording.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

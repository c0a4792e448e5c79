// Package faults defines the sentinel errors shared across kona components.
//
// The taxonomy is deliberately small:
//   - ErrIO: local read/hash failure. Non-fatal; hashing degrades.
//   - ErrAuth: credential or scope failure while building a collaborator.
//     Fatal: surfaced to the caller and aborts startup.
//   - ErrNetwork: a collaborator call failed. Logged and counted; the
//     affected item degrades to an empty or failed result.
//   - ErrParse: a structured model response could not be decoded. Callers
//     fall back to a deterministic heuristic.
//
// Duplicate detection is NOT an error: ingestion reports it as a skip
// outcome (see corpus.IngestResult).
//
// Check with errors.Is and wrap with fmt.Errorf("...: %w", faults.ErrX).
package faults

import "errors"

var (
	// ErrIO indicates a local I/O failure (file read, stat).
	ErrIO = errors.New("io error")

	// ErrAuth indicates missing or rejected collaborator credentials.
	ErrAuth = errors.New("auth error")

	// ErrNetwork indicates a failed collaborator call (embedding,
	// generation, storage, index).
	ErrNetwork = errors.New("network error")

	// ErrParse indicates a malformed structured response.
	ErrParse = errors.New("parse error")
)

// Kind returns a short tag for logging and batch statistics, or "" when the
// error carries none of the known sentinels.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrParse):
		return "parse"
	default:
		return "internal"
	}
}

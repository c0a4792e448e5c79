// Package hash computes content fingerprints for exact-duplicate detection.
//
// A document's identity is the SHA-256 digest of its content bytes followed
// by its metadata serialized with lexicographically sorted keys. The digest
// is deterministic: the same (content, metadata) pair always hashes to the
// same value regardless of map iteration order.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/kona-ai/kona/internal/faults"
)

// Digest is a 256-bit content fingerprint.
type Digest struct {
	sum [sha256.Size]byte

	// degraded marks a fallback digest computed from path + mtime instead
	// of content. Degraded digests are never content-equivalent: they must
	// not satisfy an exact-duplicate check, so a later successful read of
	// the same file does not falsely appear already ingested.
	degraded bool
}

// Hex returns the lowercase hex encoding of the digest. Degraded digests
// carry a "degraded:" prefix so they can never collide with content digests
// in stored metadata.
func (d Digest) Hex() string {
	if d.degraded {
		return "degraded:" + hex.EncodeToString(d.sum[:])
	}
	return hex.EncodeToString(d.sum[:])
}

// Short returns the first 12 hex characters, used in blob object names.
func (d Digest) Short() string {
	return hex.EncodeToString(d.sum[:])[:12]
}

// Degraded reports whether this digest was computed from file attributes
// rather than content.
func (d Digest) Degraded() bool {
	return d.degraded
}

// Content hashes content bytes plus optional metadata. Metadata keys are
// serialized in sorted order as "k=v\n" pairs; nil or empty metadata
// contributes nothing, so Content(b, nil) == Content(b, map[string]string{}).
func Content(content []byte, metadata map[string]string) Digest {
	h := sha256.New()
	h.Write(content)

	if len(metadata) > 0 {
		keys := make([]string, 0, len(metadata))
		for k := range metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h, "%s=%s\n", k, metadata[k])
		}
	}

	var d Digest
	copy(d.sum[:], h.Sum(nil))
	return d
}

// File hashes the file at path. On read failure it falls back to a degraded
// digest of "path|mtime" (or just the path when even stat fails) and returns
// the wrapped I/O error alongside it, so callers can log the degradation
// while still obtaining a usable, non-content-equivalent identity.
func File(path string) (Digest, error) {
	content, err := os.ReadFile(path)
	if err == nil {
		return Content(content, nil), nil
	}

	readErr := fmt.Errorf("reading %s: %w: %w", path, faults.ErrIO, err)

	seed := path
	if info, statErr := os.Stat(path); statErr == nil {
		seed = fmt.Sprintf("%s|%d", path, info.ModTime().UnixNano())
	}

	d := Content([]byte(seed), nil)
	d.degraded = true
	return d, readErr
}

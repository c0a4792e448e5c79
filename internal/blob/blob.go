// Package blob persists raw document content with attached metadata. The
// interface mirrors a flat object store keyed by slash-separated paths; the
// bundled implementation is filesystem-backed with JSON sidecars.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Metadata field names attached to every persisted document.
const (
	MetaFileHash         = "file_hash"
	MetaOriginalTitle    = "original_title"
	MetaDocType          = "doc_type"
	MetaCreatedAt        = "created_at"
	MetaContentLength    = "content_length"
	MetaContentEmbedding = "content_embedding"
	MetaNormalizedDigest = "normalized_digest"
	MetaDegradedHash     = "degraded_hash"

	// CustomPrefix marks caller-supplied metadata fields.
	CustomPrefix = "custom_"
)

// ErrNotFound reports a missing blob key.
var ErrNotFound = errors.New("blob not found")

// Store is the object-store surface the corpus needs.
type Store interface {
	Put(ctx context.Context, key string, content []byte, meta map[string]string) error
	Get(ctx context.Context, key string) ([]byte, map[string]string, error)
	// List returns the keys under prefix, lexicographically sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// PatchMetadata merges patch into the existing metadata; other
	// fields are preserved.
	PatchMetadata(ctx context.Context, key string, patch map[string]string) error
	Delete(ctx context.Context, key string) error
}

// BulkKey is the layout for documents imported from a directory tree.
func BulkKey(corpus, relPath string) string {
	return corpus + "/" + strings.TrimPrefix(relPath, "/")
}

// DocumentKey is the layout for inline documents. hashPrefix is the short
// form of the content digest so re-ingests of edited content never collide.
func DocumentKey(corpus, title string, ts time.Time, hashPrefix string) string {
	return fmt.Sprintf("%s/documents/%s_%d_%s.txt",
		corpus, SanitizeTitle(title), ts.Unix(), hashPrefix)
}

// SanitizeTitle makes a title safe for use in a blob key: anything outside
// [A-Za-z0-9_-] becomes an underscore, runs collapse, and the result is
// capped at 50 characters.
func SanitizeTitle(title string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range title {
		safe := r == '-' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9')
		if safe {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		s = "untitled"
	}
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}

// EncodeEmbedding serializes a vector for the content_embedding field.
func EncodeEmbedding(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(vec)
	if err != nil {
		return "", fmt.Errorf("encoding embedding: %w", err)
	}
	return string(raw), nil
}

// DecodeEmbedding parses a content_embedding field. Empty input yields nil.
func DecodeEmbedding(s string) ([]float32, error) {
	if s == "" {
		return nil, nil
	}
	var vec []float32
	if err := json.Unmarshal([]byte(s), &vec); err != nil {
		return nil, fmt.Errorf("decoding embedding: %w", err)
	}
	return vec, nil
}

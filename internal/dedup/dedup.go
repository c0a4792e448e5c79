// Package dedup detects near-duplicate documents by cosine similarity of
// normalized-text embeddings.
package dedup

import (
	"context"
	"fmt"
	"math"

	"github.com/kona-ai/kona/internal/ai"
	"github.com/kona-ai/kona/internal/log"
	"github.com/kona-ai/kona/internal/textproc"
)

// DefaultThreshold is the similarity at or above which two documents are
// treated as duplicates.
const DefaultThreshold = 0.85

// Match reports an existing document judged similar to new content.
type Match struct {
	ID    string
	Score float64
}

// Index finds existing embeddings similar to a query vector. The naive
// linear scan lives behind this interface so an approximate-nearest-neighbor
// backend can replace it without touching callers.
type Index interface {
	// Nearest returns the first entry whose cosine similarity to vec is
	// at or above threshold, or nil if none qualifies. "First" follows
	// the index's own iteration order; entries are not ranked.
	Nearest(ctx context.Context, vec []float32, threshold float64) (*Match, error)
}

// Deduplicator runs the normalize-embed-scan pipeline against an Index.
type Deduplicator struct {
	embedder  ai.Embedder
	index     Index
	threshold float64
	logger    log.Logger
}

// New creates a Deduplicator. A threshold of zero means DefaultThreshold.
func New(embedder ai.Embedder, index Index, threshold float64, logger log.Logger) *Deduplicator {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Deduplicator{
		embedder:  embedder,
		index:     index,
		threshold: threshold,
		logger:    logger,
	}
}

// CheckSimilar reports whether content is a near-duplicate of an existing
// document. It returns nil when nothing in the index is at or above the
// configured threshold.
func (d *Deduplicator) CheckSimilar(ctx context.Context, content string) (*Match, error) {
	normalized := textproc.Normalize(content)
	if normalized == "" {
		return nil, nil
	}

	vec, err := d.embedder.Embed(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("embedding normalized content: %w", err)
	}

	match, err := d.index.Nearest(ctx, vec, d.threshold)
	if err != nil {
		return nil, fmt.Errorf("scanning similarity index: %w", err)
	}
	if match != nil {
		d.logger.Debug("near-duplicate found",
			"match_id", match.ID, "score", match.Score, "threshold", d.threshold)
	}
	return match, nil
}

// Embed exposes the deduplicator's embedding step so callers can cache the
// vector of content they go on to persist.
func (d *Deduplicator) Embed(ctx context.Context, content string) ([]float32, error) {
	normalized := textproc.Normalize(content)
	if normalized == "" {
		return nil, nil
	}
	return d.embedder.Embed(ctx, normalized)
}

// Cosine computes cosine similarity between two vectors. Mismatched lengths
// or zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

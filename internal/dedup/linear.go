package dedup

import (
	"context"
	"sync"
)

// LinearIndex is an in-memory Index backed by a plain slice and a full scan
// per query. O(n) per lookup, fine for small and medium corpora.
type LinearIndex struct {
	mu      sync.RWMutex
	entries []entry
}

type entry struct {
	id  string
	vec []float32
}

// NewLinearIndex returns an empty index.
func NewLinearIndex() *LinearIndex {
	return &LinearIndex{}
}

// Add registers a document embedding. Insertion order is scan order.
func (l *LinearIndex) Add(id string, vec []float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry{id: id, vec: vec})
}

// Remove drops every embedding registered under id. A no-op when id is
// absent. Re-ingest of a changed file registers the key again, so all
// occurrences go.
func (l *LinearIndex) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.id != id {
			kept = append(kept, e)
		}
	}
	l.entries = kept
}

// Reset drops all entries.
func (l *LinearIndex) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Len reports how many embeddings are registered.
func (l *LinearIndex) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Nearest scans entries in insertion order and returns the first at or
// above threshold.
func (l *LinearIndex) Nearest(ctx context.Context, vec []float32, threshold float64) (*Match, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if score := Cosine(vec, e.vec); score >= threshold {
			return &Match{ID: e.id, Score: score}, nil
		}
	}
	return nil, nil
}

var _ Index = (*LinearIndex)(nil)

package dedup

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kona-ai/kona/internal/log"
)

// mockEmbedder returns canned vectors keyed by normalized text.
type mockEmbedder struct {
	vectors   map[string][]float32
	embedErr  error
	callCount int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.callCount++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if vec, ok := m.vectors[text]; ok {
		return vec, nil
	}
	return []float32{1, 0, 0}, nil
}

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 1}, []float32{5, 5}, 1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLinearIndexThresholdBoundary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := NewLinearIndex()

	// Unit vector at an angle giving cosine ~0.84 against (1,0).
	angle := math.Acos(0.84)
	idx.Add("doc-0.84", []float32{float32(math.Cos(angle)), float32(math.Sin(angle))})

	query := []float32{1, 0}

	match, err := idx.Nearest(ctx, query, 0.85)
	if err != nil {
		t.Fatal(err)
	}
	if match != nil {
		t.Errorf("similarity 0.84 matched at threshold 0.85: %+v", match)
	}

	match, err = idx.Nearest(ctx, query, 0.84)
	if err != nil {
		t.Fatal(err)
	}
	if match == nil {
		t.Fatal("similarity 0.84 should match at threshold 0.84")
	}
	if match.ID != "doc-0.84" {
		t.Errorf("match ID = %q, want doc-0.84", match.ID)
	}
}

func TestLinearIndexFirstMatchNotBest(t *testing.T) {
	t.Parallel()

	idx := NewLinearIndex()
	idx.Add("close", []float32{0.9, 0.435889894})  // ~0.90 vs (1,0)
	idx.Add("exact", []float32{1, 0})              // 1.00 vs (1,0)

	match, err := idx.Nearest(context.Background(), []float32{1, 0}, 0.85)
	if err != nil {
		t.Fatal(err)
	}
	if match == nil {
		t.Fatal("expected a match")
	}
	// Insertion order wins; the scan stops at the first qualifying entry.
	if match.ID != "close" {
		t.Errorf("match ID = %q, want close (first above threshold)", match.ID)
	}
}

func TestCheckSimilar(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	embedder := &mockEmbedder{vectors: map[string][]float32{
		"how do i book parking": {1, 0, 0},
	}}
	idx := NewLinearIndex()
	idx.Add("existing", []float32{1, 0, 0})

	d := New(embedder, idx, 0, log.NewNop())

	// Punctuation and case variants normalize to the cached key.
	match, err := d.CheckSimilar(ctx, "How do I book PARKING?!")
	if err != nil {
		t.Fatalf("CheckSimilar() error = %v", err)
	}
	if match == nil {
		t.Fatal("expected a duplicate match")
	}
	if match.ID != "existing" || match.Score < DefaultThreshold {
		t.Errorf("match = %+v", match)
	}
}

func TestCheckSimilarNoMatch(t *testing.T) {
	t.Parallel()

	embedder := &mockEmbedder{vectors: map[string][]float32{
		"unrelated question": {0, 1, 0},
	}}
	idx := NewLinearIndex()
	idx.Add("existing", []float32{1, 0, 0})

	d := New(embedder, idx, 0, log.NewNop())

	match, err := d.CheckSimilar(context.Background(), "unrelated question")
	if err != nil {
		t.Fatal(err)
	}
	if match != nil {
		t.Errorf("orthogonal content matched: %+v", match)
	}
}

func TestCheckSimilarEmptyContent(t *testing.T) {
	t.Parallel()

	embedder := &mockEmbedder{}
	d := New(embedder, NewLinearIndex(), 0, log.NewNop())

	match, err := d.CheckSimilar(context.Background(), "  ?!  ")
	if err != nil {
		t.Fatal(err)
	}
	if match != nil {
		t.Errorf("empty normalized content matched: %+v", match)
	}
	if embedder.callCount != 0 {
		t.Errorf("embedder called %d times for empty content", embedder.callCount)
	}
}

func TestCheckSimilarEmbedError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("quota exceeded")
	d := New(&mockEmbedder{embedErr: wantErr}, NewLinearIndex(), 0, log.NewNop())

	_, err := d.CheckSimilar(context.Background(), "some content")
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want wrapped %v", err, wantErr)
	}
}

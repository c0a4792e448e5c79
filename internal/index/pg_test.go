package index

import (
	"context"
	"testing"

	"github.com/kona-ai/kona/internal/log"
	"github.com/kona-ai/kona/internal/testutil"
)

// stubEmbedder maps known texts onto fixed 768-dim unit vectors so cosine
// ranking is deterministic without a live model.
type stubEmbedder struct {
	axes map[string]int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 768)
	if axis, ok := s.axes[text]; ok {
		vec[axis] = 1
	} else {
		vec[0] = 1
	}
	return vec, nil
}

func TestPGIndexLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	ctx := context.Background()
	tdb := testutil.SetupTestDB(t)

	embedder := &stubEmbedder{axes: map[string]int{
		"parking rules":     1,
		"wifi instructions": 2,
		"where do I park?":  1,
	}}
	idx, err := NewPGIndex(tdb.Pool, embedder, log.NewNop())
	if err != nil {
		t.Fatalf("NewPGIndex() error = %v", err)
	}

	// Get-or-create returns the same corpus both times.
	corpus, err := idx.EnsureCorpus(ctx, "team-kb")
	if err != nil {
		t.Fatalf("EnsureCorpus() error = %v", err)
	}
	again, err := idx.EnsureCorpus(ctx, "team-kb")
	if err != nil {
		t.Fatalf("EnsureCorpus() second call error = %v", err)
	}
	if corpus.ID != again.ID {
		t.Errorf("EnsureCorpus not idempotent: %s vs %s", corpus.ID, again.ID)
	}

	err = idx.ImportChunks(ctx, corpus, []ChunkRecord{
		{FileKey: "kb/parking.txt", Index: 0, Text: "parking rules", Length: 13},
		{FileKey: "kb/wifi.txt", Index: 0, Text: "wifi instructions", Length: 17},
	})
	if err != nil {
		t.Fatalf("ImportChunks() error = %v", err)
	}

	files, err := idx.ListFiles(ctx, corpus)
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("ListFiles() = %d files, want 2", len(files))
	}
	if files[0].Key != "kb/parking.txt" || files[0].ChunkCount != 1 {
		t.Errorf("files[0] = %+v", files[0])
	}

	// The parking question ranks the parking chunk first.
	contexts, err := idx.Query(ctx, corpus, "where do I park?", 1)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(contexts) != 1 || contexts[0] != "parking rules" {
		t.Errorf("Query() = %v, want [parking rules]", contexts)
	}

	if err := idx.DeleteFile(ctx, corpus, "kb/parking.txt"); err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}
	files, err = idx.ListFiles(ctx, corpus)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Key != "kb/wifi.txt" {
		t.Errorf("after DeleteFile, files = %+v", files)
	}

	if err := idx.DeleteCorpus(ctx, corpus); err != nil {
		t.Fatalf("DeleteCorpus() error = %v", err)
	}
	files, err = idx.ListFiles(ctx, corpus)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Errorf("chunks survived corpus deletion: %+v", files)
	}
}

func TestPGIndexReimportReplacesFile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	ctx := context.Background()
	tdb := testutil.SetupTestDB(t)

	idx, err := NewPGIndex(tdb.Pool, &stubEmbedder{}, log.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	corpus, err := idx.EnsureCorpus(ctx, "reimport-kb")
	if err != nil {
		t.Fatal(err)
	}

	first := []ChunkRecord{
		{FileKey: "kb/doc.txt", Index: 0, Text: "old chunk a"},
		{FileKey: "kb/doc.txt", Index: 1, Text: "old chunk b"},
		{FileKey: "kb/doc.txt", Index: 2, Text: "old chunk c"},
	}
	if err := idx.ImportChunks(ctx, corpus, first); err != nil {
		t.Fatal(err)
	}

	second := []ChunkRecord{
		{FileKey: "kb/doc.txt", Index: 0, Text: "new chunk"},
	}
	if err := idx.ImportChunks(ctx, corpus, second); err != nil {
		t.Fatal(err)
	}

	files, err := idx.ListFiles(ctx, corpus)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].ChunkCount != 1 {
		t.Errorf("re-import did not replace chunks: %+v", files)
	}
}

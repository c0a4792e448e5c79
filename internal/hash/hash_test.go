package hash

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kona-ai/kona/internal/faults"
)

func TestContentDeterministic(t *testing.T) {
	t.Parallel()

	content := []byte("How do we make data pipelines here?")
	meta := map[string]string{"doc_type": "processes", "title": "Pipelines"}

	a := Content(content, meta)
	b := Content(content, meta)

	if a.Hex() != b.Hex() {
		t.Errorf("same input produced different digests: %s vs %s", a.Hex(), b.Hex())
	}
}

func TestContentMetadataOrderIndependent(t *testing.T) {
	t.Parallel()

	content := []byte("body")
	// Maps iterate in random order; hashing must sort keys, so repeated
	// computation over a many-key map is stable.
	meta := map[string]string{
		"a": "1", "b": "2", "c": "3", "d": "4", "e": "5",
		"f": "6", "g": "7", "h": "8", "i": "9", "j": "10",
	}

	want := Content(content, meta).Hex()
	for i := 0; i < 20; i++ {
		if got := Content(content, meta).Hex(); got != want {
			t.Fatalf("iteration %d: digest changed: %s vs %s", i, got, want)
		}
	}
}

func TestContentMetadataChangesDigest(t *testing.T) {
	t.Parallel()

	content := []byte("body")

	plain := Content(content, nil)
	tagged := Content(content, map[string]string{"doc_type": "general"})

	if plain.Hex() == tagged.Hex() {
		t.Error("metadata should contribute to the digest")
	}

	// Empty metadata is equivalent to nil metadata.
	if got := Content(content, map[string]string{}).Hex(); got != plain.Hex() {
		t.Errorf("empty metadata digest = %s, want %s", got, plain.Hex())
	}
}

func TestContentDistinguishesKeyValueBoundary(t *testing.T) {
	t.Parallel()

	a := Content([]byte("x"), map[string]string{"ab": "c"})
	b := Content([]byte("x"), map[string]string{"a": "bc"})

	if a.Hex() == b.Hex() {
		t.Error("key/value boundary ambiguity: {ab:c} and {a:bc} collide")
	}
}

func TestFileSuccess(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	d, err := File(path)
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	if d.Degraded() {
		t.Error("successful read should not be degraded")
	}
	if want := Content([]byte("hello"), nil).Hex(); d.Hex() != want {
		t.Errorf("File digest = %s, want content digest %s", d.Hex(), want)
	}
}

func TestFileMissingIsDegraded(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing.txt")

	d, err := File(path)
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !errors.Is(err, faults.ErrIO) {
		t.Errorf("error should wrap faults.ErrIO, got %v", err)
	}
	if !d.Degraded() {
		t.Error("fallback digest must be flagged degraded")
	}
	if !strings.HasPrefix(d.Hex(), "degraded:") {
		t.Errorf("degraded hex should carry the degraded: prefix, got %s", d.Hex())
	}

	// A degraded digest must never equal the digest of the path content.
	if d.Hex() == Content([]byte(path), nil).Hex() {
		t.Error("degraded digest collides with a content digest")
	}
}

func TestShort(t *testing.T) {
	t.Parallel()

	d := Content([]byte("abc"), nil)
	if got := d.Short(); len(got) != 12 {
		t.Errorf("Short() length = %d, want 12", len(got))
	}
	if !strings.HasPrefix(d.Hex(), d.Short()) {
		t.Error("Short() should be a prefix of Hex()")
	}
}

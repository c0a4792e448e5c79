package textproc

import "fmt"

// Chunking presets observed in production deployments. Neither is a hidden
// default: callers always pass an explicit ChunkConfig, these are just the
// two named starting points.
var (
	// LocalIndexPreset suits a local vector index with small embedding
	// windows.
	LocalIndexPreset = ChunkConfig{Size: 1000, Overlap: 200}

	// ManagedCorpusPreset matches the managed corpus import defaults.
	ManagedCorpusPreset = ChunkConfig{Size: 512, Overlap: 100}
)

// ChunkConfig controls the chunking window. Both fields are caller-supplied
// configuration.
type ChunkConfig struct {
	// Size is the window length in characters.
	Size int

	// Overlap is how many trailing characters of one chunk reappear at the
	// start of the next. Must be smaller than Size.
	Overlap int
}

// Validate checks the window parameters.
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("chunk overlap must be non-negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("chunk overlap %d must be smaller than size %d", c.Overlap, c.Size)
	}
	return nil
}

// Chunk is a bounded sub-span of a document's text, the unit registered
// with the retrieval index. Chunks are derived on demand and never persisted
// independently. Offset and Length are in characters (runes).
type Chunk struct {
	Index  int
	Text   string
	Offset int
	Length int
}

// Split produces fixed-size character windows over text with the configured
// overlap. The final chunk may be shorter than cfg.Size. Empty text yields
// no chunks.
func Split(text string, cfg ChunkConfig) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := cfg.Size - cfg.Overlap
	var chunks []Chunk

	for offset := 0; offset < len(runes); offset += step {
		end := offset + cfg.Size
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, Chunk{
			Index:  len(chunks),
			Text:   string(runes[offset:end]),
			Offset: offset,
			Length: end - offset,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

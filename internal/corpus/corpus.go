// Package corpus owns the knowledge-corpus lifecycle: document ingestion
// with exact and semantic dedup gates, blob persistence, and chunk
// registration with the retrieval index.
package corpus

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/kona-ai/kona/internal/ai"
	"github.com/kona-ai/kona/internal/blob"
	"github.com/kona-ai/kona/internal/dedup"
	"github.com/kona-ai/kona/internal/hash"
	"github.com/kona-ai/kona/internal/index"
	"github.com/kona-ai/kona/internal/log"
	"github.com/kona-ai/kona/internal/textproc"
)

// Status is the terminal state of one document's ingestion.
type Status string

const (
	StatusIndexed Status = "indexed"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Reason says which dedup gate skipped a document.
type Reason string

const (
	ReasonExact    Reason = "exact"
	ReasonSemantic Reason = "semantic"
)

// Document is one piece of content to ingest. Metadata keys are caller
// namespace; they are stored with the custom_ prefix.
type Document struct {
	Content  string
	Title    string
	DocType  string
	Metadata map[string]string

	// RelPath selects the bulk-import blob layout when set. Inline
	// documents (empty RelPath) get the documents/ layout keyed by
	// sanitized title, timestamp and hash prefix.
	RelPath string
}

// IngestResult reports the outcome for one document.
type IngestResult struct {
	Status      Status
	Reason      Reason
	Key         string
	MatchKey    string
	Score       float64
	ChunksAdded int
	Err         error
}

// Stats counts ingestion outcomes since the store was constructed.
type Stats struct {
	Uploaded int
	Skipped  int
	Failed   int
}

// Config wires a Store.
type Config struct {
	CorpusName string
	Blob       blob.Store
	Index      index.Index
	Embedder   ai.Embedder

	ChunkConfig textproc.ChunkConfig

	// EnableSemanticDedup turns on the embedding similarity gate.
	// Exact hash dedup always runs.
	EnableSemanticDedup bool
	// DedupThreshold zero means dedup.DefaultThreshold.
	DedupThreshold float64

	// Workers bounds batch ingestion concurrency. Zero means 4.
	Workers int

	Logger log.Logger
}

// Store is the corpus store. One Store serves one corpus.
//
// Store is safe for concurrent use. The hash-check-then-persist sequence is
// not transactional across processes: two writers racing on the same new
// content can both index it.
type Store struct {
	corpus   index.CorpusRef
	blob     blob.Store
	index    index.Index
	dedup    *dedup.Deduplicator
	simIndex *dedup.LinearIndex
	chunkCfg textproc.ChunkConfig
	semantic bool
	workers  int
	logger   log.Logger

	mu            sync.Mutex
	hashes        map[string]string // content digest -> blob key
	pendingEmbeds []string          // blob keys lacking a cached embedding
	stats         Stats
}

// New creates a Store, ensures the corpus exists in the index, and loads
// dedup state (content hashes and cached embeddings) from blob metadata.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.CorpusName == "" {
		return nil, fmt.Errorf("corpus name is required")
	}
	if cfg.Blob == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if cfg.EnableSemanticDedup && cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required when semantic dedup is enabled")
	}
	if err := cfg.ChunkConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunk config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	ref, err := cfg.Index.EnsureCorpus(ctx, cfg.CorpusName)
	if err != nil {
		return nil, fmt.Errorf("ensuring corpus: %w", err)
	}

	s := &Store{
		corpus:   ref,
		blob:     cfg.Blob,
		index:    cfg.Index,
		simIndex: dedup.NewLinearIndex(),
		chunkCfg: cfg.ChunkConfig,
		semantic: cfg.EnableSemanticDedup,
		workers:  workers,
		logger:   logger,
		hashes:   make(map[string]string),
	}
	if cfg.Embedder != nil {
		s.dedup = dedup.New(cfg.Embedder, s.simIndex, cfg.DedupThreshold, logger)
	}

	if err := s.loadState(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// loadState rebuilds the in-memory dedup state from blob sidecar metadata.
// Degraded hashes are excluded: they are not content-equivalent, so a later
// successful read of the same file must not be skipped on their account.
func (s *Store) loadState(ctx context.Context) error {
	keys, err := s.blob.List(ctx, s.corpus.Name+"/")
	if err != nil {
		return fmt.Errorf("listing existing blobs: %w", err)
	}

	for _, key := range keys {
		_, meta, err := s.blob.Get(ctx, key)
		if err != nil {
			s.logger.Warn("skipping unreadable blob during state load", "key", key, "error", err)
			continue
		}

		if h := meta[blob.MetaFileHash]; h != "" && meta[blob.MetaDegradedHash] != "true" {
			s.hashes[h] = key
		}

		vec, err := blob.DecodeEmbedding(meta[blob.MetaContentEmbedding])
		if err != nil {
			s.logger.Warn("discarding corrupt cached embedding", "key", key, "error", err)
			vec = nil
		}
		if vec != nil {
			s.simIndex.Add(key, vec)
		} else {
			s.pendingEmbeds = append(s.pendingEmbeds, key)
		}
	}

	s.logger.Debug("corpus state loaded",
		"corpus", s.corpus.Name, "documents", len(keys), "pending_embeddings", len(s.pendingEmbeds))
	return nil
}

// Corpus returns the index reference of the corpus this store serves.
func (s *Store) Corpus() index.CorpusRef { return s.corpus }

// Ingest runs one document through the ingestion state machine. A failure
// is reported in the result, not returned; the error return is reserved for
// a canceled context.
func (s *Store) Ingest(ctx context.Context, doc Document) (IngestResult, error) {
	if err := ctx.Err(); err != nil {
		return IngestResult{}, err
	}

	res := s.ingest(ctx, doc)

	s.mu.Lock()
	switch res.Status {
	case StatusIndexed:
		s.stats.Uploaded++
	case StatusSkipped:
		s.stats.Skipped++
	case StatusFailed:
		s.stats.Failed++
	}
	s.mu.Unlock()

	return res, nil
}

func (s *Store) ingest(ctx context.Context, doc Document) IngestResult {
	if doc.Content == "" {
		return IngestResult{Status: StatusFailed, Err: fmt.Errorf("document content is empty")}
	}

	digest := hash.Content([]byte(doc.Content), doc.Metadata)

	// Exact gate.
	s.mu.Lock()
	existing, dup := s.hashes[digest.Hex()]
	s.mu.Unlock()
	if dup {
		s.logger.Debug("exact duplicate skipped", "title", doc.Title, "match", existing)
		return IngestResult{Status: StatusSkipped, Reason: ReasonExact, MatchKey: existing}
	}

	// Semantic gate.
	var contentVec []float32
	if s.semantic {
		if err := s.backfillEmbeddings(ctx); err != nil {
			return IngestResult{Status: StatusFailed, Err: err}
		}
		match, err := s.dedup.CheckSimilar(ctx, doc.Content)
		if err != nil {
			return IngestResult{Status: StatusFailed, Err: fmt.Errorf("semantic dedup check: %w", err)}
		}
		if match != nil {
			s.logger.Debug("semantic duplicate skipped",
				"title", doc.Title, "match", match.ID, "score", match.Score)
			return IngestResult{
				Status: StatusSkipped, Reason: ReasonSemantic,
				MatchKey: match.ID, Score: match.Score,
			}
		}
		contentVec, err = s.dedup.Embed(ctx, doc.Content)
		if err != nil {
			return IngestResult{Status: StatusFailed, Err: fmt.Errorf("embedding content: %w", err)}
		}
	}

	chunks, err := textproc.Split(doc.Content, s.chunkCfg)
	if err != nil {
		return IngestResult{Status: StatusFailed, Err: fmt.Errorf("chunking: %w", err)}
	}

	now := time.Now().UTC()
	key := blob.BulkKey(s.corpus.Name, doc.RelPath)
	if doc.RelPath == "" {
		key = blob.DocumentKey(s.corpus.Name, doc.Title, now, digest.Short())
	}

	meta, err := s.buildMetadata(doc, digest, contentVec, now)
	if err != nil {
		return IngestResult{Status: StatusFailed, Key: key, Err: err}
	}
	if err := s.blob.Put(ctx, key, []byte(doc.Content), meta); err != nil {
		return IngestResult{Status: StatusFailed, Key: key, Err: fmt.Errorf("persisting blob: %w", err)}
	}

	records := make([]index.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = index.ChunkRecord{
			FileKey: key, Index: c.Index, Text: c.Text,
			Offset: c.Offset, Length: c.Length,
		}
	}
	if err := s.index.ImportChunks(ctx, s.corpus, records); err != nil {
		return IngestResult{Status: StatusFailed, Key: key, Err: fmt.Errorf("registering chunks: %w", err)}
	}

	s.mu.Lock()
	if !digest.Degraded() {
		s.hashes[digest.Hex()] = key
	}
	s.mu.Unlock()
	if contentVec != nil {
		s.simIndex.Add(key, contentVec)
	}

	s.logger.Info("document indexed",
		"corpus", s.corpus.Name, "key", key, "chunks", len(chunks))
	return IngestResult{Status: StatusIndexed, Key: key, ChunksAdded: len(chunks)}
}

func (s *Store) buildMetadata(doc Document, digest hash.Digest, vec []float32, now time.Time) (map[string]string, error) {
	normalized := textproc.Normalize(doc.Content)

	meta := map[string]string{
		blob.MetaFileHash:         digest.Hex(),
		blob.MetaOriginalTitle:    doc.Title,
		blob.MetaDocType:          doc.DocType,
		blob.MetaCreatedAt:        now.Format(time.RFC3339),
		blob.MetaContentLength:    strconv.Itoa(len(doc.Content)),
		blob.MetaNormalizedDigest: hash.Content([]byte(normalized), nil).Hex(),
	}
	if digest.Degraded() {
		meta[blob.MetaDegradedHash] = "true"
	}
	if vec != nil {
		enc, err := blob.EncodeEmbedding(vec)
		if err != nil {
			return nil, fmt.Errorf("encoding content embedding: %w", err)
		}
		meta[blob.MetaContentEmbedding] = enc
	}
	for k, v := range doc.Metadata {
		meta[blob.CustomPrefix+k] = v
	}
	return meta, nil
}

// backfillEmbeddings computes and caches embeddings for documents persisted
// without one (semantic dedup was off, or an older layout). Runs before the
// first semantic check that needs a complete index.
func (s *Store) backfillEmbeddings(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pendingEmbeds
	s.pendingEmbeds = nil
	s.mu.Unlock()

	for i, key := range pending {
		content, _, err := s.blob.Get(ctx, key)
		if err != nil {
			s.logger.Warn("cannot backfill embedding", "key", key, "error", err)
			continue
		}
		vec, err := s.dedup.Embed(ctx, string(content))
		if err != nil {
			// Put this key and the unprocessed remainder back so a later
			// call retries all of them.
			s.mu.Lock()
			s.pendingEmbeds = append(s.pendingEmbeds, pending[i:]...)
			s.mu.Unlock()
			return fmt.Errorf("backfilling embedding for %s: %w", key, err)
		}
		if vec == nil {
			continue
		}

		enc, err := blob.EncodeEmbedding(vec)
		if err != nil {
			return fmt.Errorf("encoding backfilled embedding: %w", err)
		}
		if err := s.blob.PatchMetadata(ctx, key, map[string]string{
			blob.MetaContentEmbedding: enc,
		}); err != nil {
			s.logger.Warn("caching backfilled embedding failed", "key", key, "error", err)
		}
		s.simIndex.Add(key, vec)
	}
	return nil
}

// ListFiles returns the files registered with the corpus index.
func (s *Store) ListFiles(ctx context.Context) ([]index.FileInfo, error) {
	return s.index.ListFiles(ctx, s.corpus)
}

// DeleteFile removes a file from both the index and blob storage.
func (s *Store) DeleteFile(ctx context.Context, key string) error {
	if err := s.index.DeleteFile(ctx, s.corpus, key); err != nil {
		return fmt.Errorf("deleting file from index: %w", err)
	}
	if err := s.blob.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting file blob: %w", err)
	}

	// The dedup state must forget the document too, or a later ingest of
	// similar content is skipped against a key that no longer exists.
	s.mu.Lock()
	for h, k := range s.hashes {
		if k == key {
			delete(s.hashes, h)
		}
	}
	pending := s.pendingEmbeds[:0]
	for _, k := range s.pendingEmbeds {
		if k != key {
			pending = append(pending, k)
		}
	}
	s.pendingEmbeds = pending
	s.mu.Unlock()

	s.simIndex.Remove(key)
	return nil
}

// DeleteCorpus removes the corpus from the index and all its blobs.
func (s *Store) DeleteCorpus(ctx context.Context) error {
	if err := s.index.DeleteCorpus(ctx, s.corpus); err != nil {
		return fmt.Errorf("deleting corpus from index: %w", err)
	}

	keys, err := s.blob.List(ctx, s.corpus.Name+"/")
	if err != nil {
		return fmt.Errorf("listing corpus blobs: %w", err)
	}
	for _, key := range keys {
		if err := s.blob.Delete(ctx, key); err != nil {
			return fmt.Errorf("deleting blob %s: %w", key, err)
		}
	}

	s.mu.Lock()
	s.hashes = make(map[string]string)
	s.pendingEmbeds = nil
	s.mu.Unlock()

	s.simIndex.Reset()
	return nil
}

// Stats returns a snapshot of ingestion counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

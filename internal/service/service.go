// Package service assembles the collaborators into the application surface
// the CLI (or any other front end) consumes: ingest documents, answer
// questions, report stats. Construction is explicit and happens once at
// startup; the Service is then passed by reference to all callers.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kona-ai/kona/db"
	"github.com/kona-ai/kona/internal/ai"
	"github.com/kona-ai/kona/internal/answer"
	"github.com/kona-ai/kona/internal/blob"
	"github.com/kona-ai/kona/internal/config"
	"github.com/kona-ai/kona/internal/conversation"
	"github.com/kona-ai/kona/internal/corpus"
	"github.com/kona-ai/kona/internal/database"
	"github.com/kona-ai/kona/internal/index"
	"github.com/kona-ai/kona/internal/log"
	"github.com/kona-ai/kona/internal/relevance"
	"github.com/kona-ai/kona/internal/textproc"
)

// Service is the assembled application.
type Service struct {
	corpus    *corpus.Store
	index     index.Index
	synth     *answer.Synthesizer
	relevance *relevance.Checker
	topK      int
	strict    bool
	logger    log.Logger
}

// New wires a Service from configuration. The returned cleanup releases
// the database pool (when the pgvector backend is selected) and must be
// called on shutdown.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*Service, func(), error) {
	if logger == nil {
		logger = log.NewNop()
	}

	gemini, err := ai.NewGemini(ctx, ai.GeminiConfig{
		APIKey:          cfg.GeminiAPIKey,
		GenerationModel: cfg.ModelName,
		EmbeddingModel:  cfg.EmbedderModel,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating gemini client: %w", err)
	}

	cleanup := func() {}
	var idx index.Index
	switch cfg.Backend {
	case config.BackendHTTP:
		idx, err = index.NewHTTPIndex(cfg.IndexBaseURL, nil, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("creating http index: %w", err)
		}
	default:
		if err := db.Migrate(cfg.PostgresURL()); err != nil {
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		pool, err := database.NewPool(ctx, cfg.PostgresURL())
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		cleanup = pool.Close
		idx, err = index.NewPGIndex(pool, gemini, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("creating pgvector index: %w", err)
		}
	}

	blobStore, err := blob.NewFSStore(cfg.BlobDir, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating blob store: %w", err)
	}

	store, err := corpus.New(ctx, corpus.Config{
		CorpusName:          cfg.CorpusName,
		Blob:                blobStore,
		Index:               idx,
		Embedder:            gemini,
		ChunkConfig:         textproc.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		EnableSemanticDedup: cfg.SemanticDedup,
		DedupThreshold:      cfg.DedupThreshold,
		Workers:             cfg.IngestWorkers,
		Logger:              logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating corpus store: %w", err)
	}

	synth, err := answer.New(gemini, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating synthesizer: %w", err)
	}

	var checker *relevance.Checker
	if cfg.RelevanceCheck {
		checker = relevance.New(gemini, logger)
	}

	return &Service{
		corpus:    store,
		index:     idx,
		synth:     synth,
		relevance: checker,
		topK:      cfg.TopK,
		strict:    cfg.StrictAnswers,
		logger:    logger,
	}, cleanup, nil
}

// ErrNotRelevant is returned by IngestNote when the relevance gate rejects
// the content and force is false.
var ErrNotRelevant = errors.New("content does not look relevant to the knowledge base")

// Ingest runs one document through the corpus pipeline.
func (s *Service) Ingest(ctx context.Context, doc corpus.Document) (corpus.IngestResult, error) {
	return s.corpus.Ingest(ctx, doc)
}

// IngestNote ingests an inline note. Unlike bulk file imports, notes pass
// through the relevance gate first so stray pastes do not pollute the
// corpus; force skips the gate.
func (s *Service) IngestNote(ctx context.Context, doc corpus.Document, force bool) (corpus.IngestResult, error) {
	if !force && s.relevance != nil {
		if res := s.relevance.Check(ctx, doc.Content); !res.Relevant {
			return corpus.IngestResult{}, fmt.Errorf("%w (score %d)", ErrNotRelevant, res.Score)
		}
	}
	return s.corpus.Ingest(ctx, doc)
}

// IngestDirectory ingests every supported file under dir.
func (s *Service) IngestDirectory(ctx context.Context, dir string) (*corpus.DirectoryResult, error) {
	return s.corpus.IngestDirectory(ctx, dir)
}

// Answer runs the question pipeline: retrieval, synthesis, history append.
// Questions are never relevance-gated; the gate protects what goes INTO
// the corpus (IngestNote), while off-base questions simply retrieve
// nothing and land in the no-information policy. Retrieval failure
// degrades to an empty context set so the fallback policy still produces
// an answer. The updated history is returned alongside the response.
func (s *Service) Answer(ctx context.Context, question string, history conversation.History) (answer.Response, conversation.History) {
	contexts, err := s.index.Query(ctx, s.corpus.Corpus(), question, s.topK)
	if err != nil {
		s.logger.Error("retrieval failed, degrading to empty contexts", "error", err)
		contexts = nil
	}

	resp := s.synth.Answer(ctx, question, contexts, answer.Options{
		EnableFallback: !s.strict,
		History:        history,
	})
	return resp, conversation.Append(history, question, resp.Text)
}

// Stats reports ingestion counters.
func (s *Service) Stats() corpus.Stats {
	return s.corpus.Stats()
}

// ListFiles lists the files registered with the corpus.
func (s *Service) ListFiles(ctx context.Context) ([]index.FileInfo, error) {
	return s.corpus.ListFiles(ctx)
}

// DeleteFile removes one file from the corpus and blob storage.
func (s *Service) DeleteFile(ctx context.Context, key string) error {
	return s.corpus.DeleteFile(ctx, key)
}

// DeleteCorpus removes the whole corpus.
func (s *Service) DeleteCorpus(ctx context.Context) error {
	return s.corpus.DeleteCorpus(ctx)
}

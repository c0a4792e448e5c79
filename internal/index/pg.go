package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/kona-ai/kona/internal/ai"
	"github.com/kona-ai/kona/internal/log"
)

// PGIndex is the local retrieval index backed by PostgreSQL + pgvector.
// Chunk embeddings are computed at import time; queries embed the question
// and rank by cosine distance.
//
// PGIndex is safe for concurrent use by multiple goroutines.
type PGIndex struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   log.Logger
}

var _ Index = (*PGIndex)(nil)

// NewPGIndex creates a PGIndex.
func NewPGIndex(pool *pgxpool.Pool, embedder ai.Embedder, logger log.Logger) (*PGIndex, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &PGIndex{pool: pool, embedder: embedder, logger: logger}, nil
}

// EnsureCorpus gets or creates a corpus row by display name. The no-op
// update makes RETURNING yield the existing row on conflict.
func (p *PGIndex) EnsureCorpus(ctx context.Context, name string) (CorpusRef, error) {
	if name == "" {
		return CorpusRef{}, fmt.Errorf("corpus name is required")
	}

	var id uuid.UUID
	err := p.pool.QueryRow(ctx,
		`INSERT INTO corpora (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		name,
	).Scan(&id)
	if err != nil {
		return CorpusRef{}, fmt.Errorf("ensuring corpus %q: %w", name, err)
	}
	return CorpusRef{ID: id, Name: name}, nil
}

// ImportChunks registers chunks for a file, replacing any previous
// registration of the same file key. Chunks without a precomputed
// embedding are embedded here.
func (p *PGIndex) ImportChunks(ctx context.Context, corpus CorpusRef, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning import transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			p.logger.Debug("import transaction rollback", "error", rbErr)
		}
	}()

	// Re-imports of a file replace its chunks wholesale.
	seen := make(map[string]bool)
	for _, c := range chunks {
		if seen[c.FileKey] {
			continue
		}
		seen[c.FileKey] = true
		if _, err := tx.Exec(ctx,
			`DELETE FROM chunks WHERE corpus_id = $1 AND file_key = $2`,
			corpus.ID, c.FileKey,
		); err != nil {
			return fmt.Errorf("clearing previous chunks for %q: %w", c.FileKey, err)
		}
	}

	for _, c := range chunks {
		vec := c.Embedding
		if vec == nil {
			vec, err = p.embedder.Embed(ctx, c.Text)
			if err != nil {
				return fmt.Errorf("embedding chunk %d of %q: %w", c.Index, c.FileKey, err)
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO chunks (corpus_id, file_key, chunk_index, content, char_offset, char_length, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			corpus.ID, c.FileKey, c.Index, c.Text, c.Offset, c.Length, pgvector.NewVector(vec),
		); err != nil {
			return fmt.Errorf("inserting chunk %d of %q: %w", c.Index, c.FileKey, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunk import: %w", err)
	}

	p.logger.Debug("chunks imported", "corpus", corpus.Name, "count", len(chunks))
	return nil
}

// ListFiles returns the registered files, ordered by key.
func (p *PGIndex) ListFiles(ctx context.Context, corpus CorpusRef) ([]FileInfo, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT file_key, COUNT(*), MIN(created_at)
		 FROM chunks
		 WHERE corpus_id = $1
		 GROUP BY file_key
		 ORDER BY file_key`,
		corpus.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing corpus files: %w", err)
	}
	defer rows.Close()

	var files []FileInfo
	for rows.Next() {
		var f FileInfo
		if err := rows.Scan(&f.Key, &f.ChunkCount, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating file rows: %w", err)
	}
	return files, nil
}

// DeleteFile removes every chunk registered under fileKey.
func (p *PGIndex) DeleteFile(ctx context.Context, corpus CorpusRef, fileKey string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM chunks WHERE corpus_id = $1 AND file_key = $2`,
		corpus.ID, fileKey,
	)
	if err != nil {
		return fmt.Errorf("deleting file %q: %w", fileKey, err)
	}
	p.logger.Debug("file deleted from index", "file", fileKey, "chunks", tag.RowsAffected())
	return nil
}

// DeleteCorpus removes the corpus and all its chunks.
func (p *PGIndex) DeleteCorpus(ctx context.Context, corpus CorpusRef) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM corpora WHERE id = $1`, corpus.ID)
	if err != nil {
		return fmt.Errorf("deleting corpus %q: %w", corpus.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("corpus %q: %w", corpus.Name, ErrCorpusNotFound)
	}
	return nil
}

// Query embeds the question and returns the topK nearest chunk texts.
func (p *PGIndex) Query(ctx context.Context, corpus CorpusRef, query string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT content
		 FROM chunks
		 WHERE corpus_id = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(vec), corpus.ID, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var contexts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		contexts = append(contexts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk rows: %w", err)
	}
	return contexts, nil
}

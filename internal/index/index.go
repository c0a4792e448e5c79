// Package index manages the retrieval index: corpus lifecycle, chunk
// registration, and top-K similarity queries. Two backends implement the
// same surface, a local PostgreSQL/pgvector index and a managed HTTP
// retrieval service.
package index

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultTopK is the number of contexts a query returns when the caller
// does not say otherwise.
const DefaultTopK = 5

// ErrCorpusNotFound reports an operation against a corpus this index does
// not know.
var ErrCorpusNotFound = errors.New("corpus not found")

// CorpusRef identifies a corpus within a backend. ID is backend-assigned;
// Name is the display name used for get-or-create.
type CorpusRef struct {
	ID   uuid.UUID
	Name string
}

// FileInfo describes a registered file within a corpus.
type FileInfo struct {
	Key        string
	ChunkCount int
	CreatedAt  time.Time
}

// ChunkRecord is one chunk to register. Embedding may be nil, in which case
// the backend embeds Text itself.
type ChunkRecord struct {
	FileKey   string
	Index     int
	Text      string
	Offset    int
	Length    int
	Embedding []float32
}

// Index is the managed-index surface the corpus store and the retrieval
// client consume.
type Index interface {
	// EnsureCorpus is an idempotent get-or-create by display name.
	EnsureCorpus(ctx context.Context, name string) (CorpusRef, error)
	ImportChunks(ctx context.Context, corpus CorpusRef, chunks []ChunkRecord) error
	ListFiles(ctx context.Context, corpus CorpusRef) ([]FileInfo, error)
	DeleteFile(ctx context.Context, corpus CorpusRef, fileKey string) error
	DeleteCorpus(ctx context.Context, corpus CorpusRef) error
	// Query returns up to topK context strings relevant to query. An
	// empty result is not an error.
	Query(ctx context.Context, corpus CorpusRef, query string, topK int) ([]string, error)
}

package corpus

// batch.go implements multi-document and directory ingestion.
//
// Batch ingestion runs documents through a bounded worker pool; per-document
// failure is isolated and never aborts the batch. Directory ingestion walks
// a tree, honors .gitignore, and feeds readable files into the batch path.

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/kona-ai/kona/internal/hash"
)

// defaultSupportedExtensions are the document types ingested from a
// directory walk.
var defaultSupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".rst":      true,
	".html":     true,
	".json":     true,
	".yaml":     true,
	".yml":      true,
	".csv":      true,
}

// DirectoryResult summarizes a directory ingestion.
type DirectoryResult struct {
	FilesAdded   int
	FilesSkipped int
	FilesFailed  int
	TotalSize    int64
	Duration     time.Duration
	Results      []IngestResult
}

// IngestBatch ingests documents through the configured worker pool. Results
// are positionally aligned with docs. The only error returned is a canceled
// context; per-document failures live in their results.
func (s *Store) IngestBatch(ctx context.Context, docs []Document) ([]IngestResult, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	workers := s.workers
	if workers > len(docs) {
		workers = len(docs)
	}

	type job struct {
		pos int
		doc Document
	}
	jobs := make(chan job)
	results := make([]IngestResult, len(docs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res, err := s.Ingest(ctx, j.doc)
				if err != nil {
					res = IngestResult{Status: StatusFailed, Err: err}
				}
				results[j.pos] = res
			}
		}()
	}

	for i, doc := range docs {
		select {
		case jobs <- job{pos: i, doc: doc}:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	return results, nil
}

// IngestDirectory walks dir and ingests every supported file, keyed by its
// path relative to dir. Unreadable files count as failed with a degraded
// digest logged so the skip is traceable; unsupported types count as
// skipped without touching the corpus.
func (s *Store) IngestDirectory(ctx context.Context, dir string) (*DirectoryResult, error) {
	start := time.Now()
	result := &DirectoryResult{}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	// Reads go through os.Root so symlinks cannot escape the tree.
	root, err := os.OpenRoot(absDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = root.Close()
	}()

	var gitIgnore *ignore.GitIgnore
	if _, err := os.Stat(filepath.Join(absDir, ".gitignore")); err == nil {
		// A malformed .gitignore is ignored rather than fatal.
		gitIgnore, _ = ignore.CompileIgnoreFile(filepath.Join(absDir, ".gitignore"))
	}

	var docs []Document
	err = filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			result.FilesFailed++
			return nil
		}

		relPath, err := filepath.Rel(absDir, path)
		if err != nil {
			result.FilesFailed++
			return nil
		}

		if gitIgnore != nil && gitIgnore.MatchesPath(relPath) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			result.FilesSkipped++
			return nil
		}
		if info.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !defaultSupportedExtensions[ext] {
			result.FilesSkipped++
			return nil
		}

		content, err := root.ReadFile(relPath)
		if err != nil {
			// Record the degraded digest so the failure is traceable
			// to this exact file state.
			digest, _ := hash.File(path)
			s.logger.Warn("unreadable file skipped",
				"path", path, "degraded_hash", digest.Hex(), "error", err)
			result.FilesFailed++
			return nil
		}

		result.TotalSize += info.Size()
		docs = append(docs, Document{
			Content: string(content),
			Title:   filepath.Base(path),
			DocType: strings.TrimPrefix(ext, "."),
			RelPath: filepath.ToSlash(relPath),
			Metadata: map[string]string{
				"file_path":   filepath.ToSlash(relPath),
				"file_size":   strconv.FormatInt(info.Size(), 10),
				"modified_at": info.ModTime().UTC().Format(time.RFC3339),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	results, err := s.IngestBatch(ctx, docs)
	if err != nil {
		return nil, err
	}
	result.Results = results

	for _, res := range results {
		switch res.Status {
		case StatusIndexed:
			result.FilesAdded++
		case StatusSkipped:
			result.FilesSkipped++
		case StatusFailed:
			result.FilesFailed++
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info("directory ingested",
		"dir", absDir,
		"added", result.FilesAdded,
		"skipped", result.FilesSkipped,
		"failed", result.FilesFailed,
		"duration", result.Duration)
	return result, nil
}

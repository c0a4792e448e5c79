package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kona-ai/kona/internal/config"
	"github.com/kona-ai/kona/internal/corpus"
	"github.com/kona-ai/kona/internal/service"
)

var (
	ingestCorpus  string
	ingestChunk   int
	ingestOverlap int
	ingestNoDedup bool

	noteText     string
	noteTitle    string
	noteCategory string
	noteForce    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Import documents into the knowledge corpus",
	Long: `Import a file or directory into the knowledge corpus. Files that are
byte-identical or semantically near-identical to already indexed content
are skipped.

With --note, ingest an inline note instead of a path. Notes pass through
a relevance gate; use --force to skip it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCorpus, "corpus", "", "corpus name (overrides config)")
	ingestCmd.Flags().IntVar(&ingestChunk, "chunk-size", 0, "chunk size in characters (overrides config)")
	ingestCmd.Flags().IntVar(&ingestOverlap, "overlap", -1, "chunk overlap in characters (overrides config)")
	ingestCmd.Flags().BoolVar(&ingestNoDedup, "no-semantic-dedup", false, "disable semantic deduplication")

	ingestCmd.Flags().StringVar(&noteText, "note", "", "ingest the given text as an inline note")
	ingestCmd.Flags().StringVarP(&noteTitle, "title", "t", "", "title for the inline note")
	ingestCmd.Flags().StringVarP(&noteCategory, "category", "c", "", "category for the inline note")
	ingestCmd.Flags().BoolVarP(&noteForce, "force", "f", false, "skip the relevance gate for inline notes")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if noteText == "" && len(args) == 0 {
		return fmt.Errorf("provide a path to import, or --note with inline text")
	}
	if noteText != "" && len(args) > 0 {
		return fmt.Errorf("--note and a path argument are mutually exclusive")
	}

	svc, _, cleanup, err := setup(ctx, func(cfg *config.Config) {
		if ingestCorpus != "" {
			cfg.CorpusName = ingestCorpus
		}
		if ingestChunk > 0 {
			cfg.ChunkSize = ingestChunk
		}
		if ingestOverlap >= 0 {
			cfg.ChunkOverlap = ingestOverlap
		}
		if ingestNoDedup {
			cfg.SemanticDedup = false
		}
	})
	if err != nil {
		return err
	}
	defer cleanup()

	if noteText != "" {
		return ingestNote(ctx, svc)
	}
	return ingestPath(ctx, svc, args[0])
}

func ingestNote(ctx context.Context, svc *service.Service) error {
	doc := corpus.Document{
		Content: noteText,
		Title:   noteTitle,
		DocType: "note",
	}
	if noteCategory != "" {
		doc.Metadata = map[string]string{"category": noteCategory}
	}

	res, err := svc.IngestNote(ctx, doc, noteForce)
	if err != nil {
		if errors.Is(err, service.ErrNotRelevant) {
			fmt.Println("Note rejected: it doesn't look relevant to the knowledge base.")
			fmt.Println("Re-run with --force to ingest it anyway.")
			return nil
		}
		return err
	}
	printResult(res)
	return nil
}

func ingestPath(ctx context.Context, svc *service.Service, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		res, err := svc.Ingest(ctx, corpus.Document{
			Content: string(data),
			Title:   filepath.Base(path),
			DocType: "document",
			RelPath: filepath.Base(path),
		})
		if err != nil {
			return err
		}
		printResult(res)
		return nil
	}

	res, err := svc.IngestDirectory(ctx, path)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %s in %s\n", path, res.Duration.Round(time.Millisecond))
	fmt.Printf("  added:   %d\n", res.FilesAdded)
	fmt.Printf("  skipped: %d\n", res.FilesSkipped)
	fmt.Printf("  failed:  %d\n", res.FilesFailed)
	for _, r := range res.Results {
		if r.Status == corpus.StatusFailed && r.Err != nil {
			fmt.Printf("  failed %s: %v\n", r.Key, r.Err)
		}
	}
	return nil
}

func printResult(res corpus.IngestResult) {
	switch res.Status {
	case corpus.StatusIndexed:
		fmt.Printf("Indexed %s (%d chunks)\n", res.Key, res.ChunksAdded)
	case corpus.StatusSkipped:
		fmt.Printf("Skipped: duplicate of %s (%s match)\n", res.MatchKey, res.Reason)
	case corpus.StatusFailed:
		fmt.Printf("Failed: %v\n", res.Err)
	}
}

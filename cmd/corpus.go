package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kona-ai/kona/internal/config"
)

var (
	corpusName string
	deleteYes  bool
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Inspect and manage the knowledge corpus",
}

var corpusFilesCmd = &cobra.Command{
	Use:   "files",
	Short: "List files registered with the corpus",
	RunE:  runCorpusFiles,
}

var corpusDeleteCmd = &cobra.Command{
	Use:   "delete [file-key]",
	Short: "Delete one file, or the whole corpus when no key is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCorpusDelete,
}

func init() {
	corpusCmd.PersistentFlags().StringVar(&corpusName, "corpus", "", "corpus name (overrides config)")
	corpusDeleteCmd.Flags().BoolVar(&deleteYes, "yes", false, "confirm deletion of the whole corpus")
	corpusCmd.AddCommand(corpusFilesCmd)
	corpusCmd.AddCommand(corpusDeleteCmd)
	rootCmd.AddCommand(corpusCmd)
}

func corpusOverride(cfg *config.Config) {
	if corpusName != "" {
		cfg.CorpusName = corpusName
	}
}

func runCorpusFiles(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, cfg, cleanup, err := setup(ctx, corpusOverride)
	if err != nil {
		return err
	}
	defer cleanup()

	files, err := svc.ListFiles(ctx)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("Corpus %q is empty.\n", cfg.CorpusName)
		return nil
	}

	fmt.Printf("Corpus %q (%d files):\n", cfg.CorpusName, len(files))
	for _, f := range files {
		fmt.Printf("  %s  chunks=%d  created=%s\n",
			f.Key, f.ChunkCount, f.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runCorpusDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, cfg, cleanup, err := setup(ctx, corpusOverride)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(args) == 1 {
		if err := svc.DeleteFile(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	}

	if !deleteYes {
		return fmt.Errorf("deleting the whole corpus %q requires --yes", cfg.CorpusName)
	}
	if err := svc.DeleteCorpus(ctx); err != nil {
		return err
	}
	fmt.Printf("Deleted corpus %q\n", cfg.CorpusName)
	return nil
}

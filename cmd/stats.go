package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ingestion counters for this session's corpus",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, cfg, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	files, err := svc.ListFiles(ctx)
	if err != nil {
		return err
	}
	chunks := 0
	for _, f := range files {
		chunks += f.ChunkCount
	}

	st := svc.Stats()
	fmt.Printf("Corpus %q: %d files, %d chunks\n", cfg.CorpusName, len(files), chunks)
	fmt.Printf("This session: uploaded=%d skipped=%d failed=%d\n",
		st.Uploaded, st.Skipped, st.Failed)
	return nil
}

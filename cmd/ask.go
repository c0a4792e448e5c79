package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kona-ai/kona/internal/config"
)

var askStrict bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against the knowledge corpus",
	Long: `Ask a question. The answer is grounded in retrieved corpus content;
when nothing relevant is found the model falls back to general knowledge
with a clear disclaimer. --strict disables the fallback and returns a
fixed no-information response instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askStrict, "strict", false, "answer only from the corpus, no general-knowledge fallback")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	svc, _, cleanup, err := setup(ctx, func(cfg *config.Config) {
		if askStrict {
			cfg.StrictAnswers = true
		}
	})
	if err != nil {
		return err
	}
	defer cleanup()

	resp, _ := svc.Answer(ctx, question, nil)
	fmt.Println(resp.Text)
	if resp.Escalate {
		fmt.Println()
		fmt.Println("(No good answer found in the corpus. Consider asking a teammate or ingesting the missing documentation.)")
	}
	return nil
}

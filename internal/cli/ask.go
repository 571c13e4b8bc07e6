package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/askdata/askdata/internal/conversation"
)

var askDataset string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question about a dataset",
	Long: `Ask a single question and print the answer. The backend may run
queries against the dataset before answering; that round trip happens
automatically within the turn.

If the backend needs clarification the question and its choices are
printed; re-run ask with a more specific question.

Examples:
  askdata ask "How did revenue trend this year?" --dataset ds_orders
  askdata ask "Break revenue down by category" -d ds_orders`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askDataset, "dataset", "d", "", "dataset id to analyze")
	_ = askCmd.MarkFlagRequired("dataset")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	machine := conversation.New(askDataset, gw, recorder, logger)
	out, err := machine.Send(ctx, args[0])
	if err != nil {
		fmt.Print(unreachableHint())
		return fmt.Errorf("turn failed: %w", err)
	}

	switch out.State {
	case conversation.StateAwaitingClarification:
		fmt.Print(renderClarification(out.Clarification))

	case conversation.StateFinal:
		fmt.Print(renderAnswer(out.Answer))
		if out.ReportID != "" {
			fmt.Println(defaultTheme.hintStyle().Render("Saved as report " + out.ReportID))
		}
	}

	return nil
}

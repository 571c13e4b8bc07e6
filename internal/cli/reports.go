package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/askdata/askdata/internal/reports"
)

var (
	reportsDataset string
	reportsLimit   int
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List and show saved reports",
	Long: `Every completed analysis is saved as an immutable report.

Examples:
  askdata reports
  askdata reports --dataset ds_orders
  askdata reports show 01990a2b`,
	RunE: runReportsList,
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Show a saved report in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportsShow,
}

func init() {
	reportsCmd.Flags().StringVarP(&reportsDataset, "dataset", "d", "", "filter by dataset id")
	reportsCmd.Flags().IntVarP(&reportsLimit, "limit", "n", 50, "max results")
	reportsCmd.AddCommand(reportsShowCmd)
}

func runReportsList(cmd *cobra.Command, args []string) error {
	summaries, err := reportStore.List(context.Background(), reports.Filter{
		DatasetID: reportsDataset,
		Limit:     reportsLimit,
	})
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Println("No reports yet.")
		return nil
	}

	fmt.Printf("%-38s %-12s %-18s %s\n", "ID", "DATASET", "ANALYSIS", "QUESTION")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, s := range summaries {
		fmt.Printf("%-38s %-12s %-18s %s\n", s.ID, s.DatasetID, s.AnalysisType, s.Question)
	}
	return nil
}

func runReportsShow(cmd *cobra.Command, args []string) error {
	report, err := reportStore.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get report: %w", err)
	}

	fmt.Println(defaultTheme.headerStyle().Render(report.Question))
	fmt.Println(defaultTheme.hintStyle().Render(
		fmt.Sprintf("dataset %s | conversation %s | %s",
			report.DatasetID, report.ConversationID, report.CreatedAt.Format("2006-01-02 15:04"))))
	fmt.Println()

	fmt.Println(report.Summary)
	fmt.Println()
	for _, t := range report.Tables {
		fmt.Print(renderTable(t))
		fmt.Println()
	}

	if len(report.ModeFlags) > 0 {
		var active []string
		for name, on := range report.ModeFlags {
			if on {
				active = append(active, name)
			}
		}
		if len(active) > 0 {
			fmt.Println(defaultTheme.hintStyle().Render(fmt.Sprintf("flags at save time: %v", active)))
		}
	}
	return nil
}

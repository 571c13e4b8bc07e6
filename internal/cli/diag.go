package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/askdata/askdata/internal/diag"
)

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Show recent diagnostics",
	Long: `Show the most recent diagnostic events, newest first. The log is
in-memory and bounded; it reflects this invocation only.`,
	Args: cobra.NoArgs,
	RunE: runDiag,
}

func runDiag(cmd *cobra.Command, args []string) error {
	// Touch the backend so a fresh invocation has something to report.
	gw.CheckHealth(context.Background())

	events := diagRec.Snapshot()
	if len(events) == 0 {
		fmt.Println("No diagnostics recorded.")
		return nil
	}

	for _, ev := range events {
		label := string(ev.Severity)
		switch ev.Severity {
		case diag.SeverityError:
			label = defaultTheme.errorStyle().Render(label)
		case diag.SeverityWarning:
			label = defaultTheme.warningStyle().Render(label)
		case diag.SeveritySuccess:
			label = defaultTheme.successStyle().Render(label)
		default:
			label = defaultTheme.hintStyle().Render(label)
		}
		fmt.Printf("%s %-8s [%s] %s\n", ev.Timestamp.Format("15:04:05"), label, ev.Category, ev.Message)
		if verbose && ev.Details != "" {
			fmt.Printf("           %s\n", ev.Details)
		}
	}
	return nil
}

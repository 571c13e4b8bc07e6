package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/askdata/askdata/internal/flags"
	"github.com/askdata/askdata/internal/gateway"
)

var jobsWatch bool

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List or follow background jobs",
	Long: `List ingestion jobs, or follow their status changes live.

Examples:
  askdata jobs           # List all jobs
  askdata jobs --watch   # Stream status changes until interrupted`,
	Args: cobra.NoArgs,
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().BoolVarP(&jobsWatch, "watch", "w", false, "follow job status changes")
}

func runJobs(cmd *cobra.Command, args []string) error {
	if jobsWatch {
		return watchJobs()
	}
	return listJobs(context.Background())
}

func listJobs(ctx context.Context) error {
	jobs := gw.ListJobs(ctx)
	if len(jobs) == 0 {
		fmt.Print(unreachableHint())
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-14s %-8s %-12s %-10s %s\n", "ID", "TYPE", "DATASET", "STATUS", "STARTED")
	fmt.Println("------------------------------------------------------------------")
	for _, job := range jobs {
		fmt.Printf("%-14s %-8s %-12s %-10s %s\n",
			job.ID, job.Type, job.DatasetID, job.Status, job.StartedAt.Format("15:04:05"))
		if job.Error != "" {
			fmt.Printf("  %s\n", defaultTheme.errorStyle().Render(job.Error))
		}
	}
	return nil
}

// watchJobs follows the backend's websocket event stream until interrupted.
// Demo mode has no stream; jobs complete synchronously there.
func watchJobs() error {
	if gw.DemoMode() {
		fmt.Println("Demo mode: jobs complete immediately, nothing to watch.")
		return listJobs(context.Background())
	}

	wsURL := eventsURL()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Print(unreachableHint())
		return fmt.Errorf("connect to event stream: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	fmt.Println(defaultTheme.hintStyle().Render("Watching job events (Ctrl+C to stop)"))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		_ = conn.Close()
	}()

	for {
		var job gateway.Job
		if err := conn.ReadJSON(&job); err != nil {
			// Closed by the signal handler or by the server going away.
			return nil
		}
		line := fmt.Sprintf("%s  %-14s %-12s %s",
			time.Now().Format("15:04:05"), job.ID, job.DatasetID, job.Status)
		switch job.Status {
		case gateway.JobDone:
			fmt.Println(defaultTheme.successStyle().Render(line))
		case gateway.JobError:
			fmt.Println(defaultTheme.errorStyle().Render(line + "  " + job.Error))
		default:
			fmt.Println(line)
		}
	}
}

// eventsURL derives the websocket endpoint from the configured backend base.
func eventsURL() string {
	base := flagStore.String(flags.KeyBackendURL)
	if base == "" {
		base = cfg.BackendURL
	}
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return strings.TrimSuffix(base, "/") + "/events"
}

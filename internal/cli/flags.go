package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/askdata/askdata/internal/flags"
)

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Show or set mode flags",
	Long: `Mode flags change how answers are produced and persist across runs.
Commits are broadcast to every running askdata process.

  demo_mode     serve sample data without a backend
  privacy_mode  redact row-level details in answers
  safe_mode     conservative query execution
  ai_assist     LLM-written summaries on the backend

backend_url is settable the same way and repoints the live backend.

Examples:
  askdata flags
  askdata flags set demo_mode on
  askdata flags set backend_url http://localhost:8090`,
	RunE: runFlagsShow,
}

var flagsSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Commit a flag value",
	Args:  cobra.ExactArgs(2),
	RunE:  runFlagsSet,
}

func init() {
	flagsCmd.AddCommand(flagsSetCmd)
}

func runFlagsShow(cmd *cobra.Command, args []string) error {
	for _, f := range flags.All {
		state := "off"
		if flagStore.Bool(f) {
			state = defaultTheme.successStyle().Render("on")
		}
		fmt.Printf("%-14s %s\n", f, state)
	}
	if url := flagStore.String(flags.KeyBackendURL); url != "" {
		fmt.Printf("%-14s %s\n", flags.KeyBackendURL, url)
	}
	fmt.Println(defaultTheme.hintStyle().Render("settings file: " + flagStore.Path()))
	return nil
}

func runFlagsSet(cmd *cobra.Command, args []string) error {
	name, value := args[0], args[1]

	if name == flags.KeyBackendURL {
		if err := flagStore.SetString(name, value); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
		fmt.Printf("%s = %s\n", name, value)
		return nil
	}

	var known bool
	for _, f := range flags.All {
		if string(f) == name {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("unknown flag %q", name)
	}

	on, err := parseOnOff(value)
	if err != nil {
		return err
	}
	if err := flagStore.Commit(flags.Flag(name), on); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}
	fmt.Printf("%s = %v\n", name, on)
	return nil
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("value must be on/off, got %q", s)
	}
	return b, nil
}

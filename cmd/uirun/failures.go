package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entrhq/uirun/pkg/events"
)

var failuresCmd = &cobra.Command{
	Use:   "failures [event-log]",
	Short: "List failed tests from the lifecycle event log",
	Long: `Read the event log and print one failure signature per FAILED event,
in log order. Malformed lines are skipped and counted.

Examples:
  uirun failures                              # default log
  uirun failures logs/test-events.jsonl --json
  uirun failures --unterminated               # tests that started but never finished`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFailures,
}

// Flags
var (
	failuresJSON         bool
	failuresUnterminated bool
)

func init() {
	rootCmd.AddCommand(failuresCmd)

	failuresCmd.Flags().BoolVar(&failuresJSON, "json", false, "Print the failed records as JSON lines")
	failuresCmd.Flags().BoolVar(&failuresUnterminated, "unterminated", false, "Also list tests with a STARTED event but no outcome")
}

func runFailures(cmd *cobra.Command, args []string) error {
	path := events.DefaultPath
	if len(args) == 1 {
		path = args[0]
	}

	records, skipped, err := events.ReadFile(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := events.Failures(records)
	for _, rec := range failed {
		if failuresJSON {
			line, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to encode event %s: %w", rec.EventID, err)
			}
			fmt.Fprintf(out, "%s\n", line)
			continue
		}
		fmt.Fprintln(out, events.FailureSignature(rec))
	}

	if failuresUnterminated {
		for _, id := range events.Unterminated(records) {
			fmt.Fprintf(out, "Unterminated: %s\n", id)
		}
	}

	errOut := cmd.ErrOrStderr()
	if skipped > 0 {
		fmt.Fprintf(errOut, "Skipped %d malformed line(s)\n", skipped)
	}
	fmt.Fprintf(errOut, "%d failure(s) in %d event(s)\n", len(failed), len(records))
	return nil
}

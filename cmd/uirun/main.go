// Package main provides the uirun command line: it runs the registered UI
// suites against a local or cloud browser and reads back the lifecycle
// event log they produce.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

// errTestsFailed makes the process exit non-zero without printing usage.
var errTestsFailed = errors.New("one or more tests failed")

var rootCmd = &cobra.Command{
	Use:   "uirun",
	Short: "Parallel browser UI test runner with a JSONL lifecycle log",
	Long: `uirun runs browser UI tests on parallel workers, each with its own
browser session, and appends every test's lifecycle (STARTED, then PASSED,
FAILED or SKIPPED) to an append-only JSONL event log for later analysis.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

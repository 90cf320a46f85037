package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/entrhq/uirun/pkg/events"
)

var tailCmd = &cobra.Command{
	Use:   "tail [event-log]",
	Short: "Follow the lifecycle event log",
	Long: `Print lifecycle events as they are appended to the event log. The
default log is ` + events.DefaultPath + `. Stop with Ctrl+C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTail,
}

// Flags
var (
	tailFromStart bool
	tailColor     string
	tailStatus    string
)

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().BoolVar(&tailFromStart, "from-start", false, "Print events already in the log first")
	tailCmd.Flags().StringVar(&tailColor, "color", "auto", "Highlight JSON: auto, always or never")
	tailCmd.Flags().StringVar(&tailStatus, "status", "", "Only print events with this status (e.g. FAILED)")
}

func runTail(cmd *cobra.Command, args []string) error {
	path := events.DefaultPath
	if len(args) == 1 {
		path = args[0]
	}

	out := cmd.OutOrStdout()
	color := useColor(tailColor, out)

	err := events.Follow(cmd.Context(), path, tailFromStart, func(rec events.Record) {
		if tailStatus != "" && string(rec.Status) != tailStatus {
			return
		}
		if err := printRecord(out, rec, color); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
	})
	if err != nil && cmd.Context().Err() == nil {
		return err
	}
	return nil
}

// printRecord writes rec as one JSON line, highlighted when color is set.
func printRecord(w io.Writer, rec events.Record, color bool) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", rec.EventID, err)
	}
	if color {
		if err := quick.Highlight(w, string(line), "json", "terminal256", "monokai"); err != nil {
			return err
		}
		_, err = fmt.Fprintln(w)
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", line)
	return err
}

// useColor resolves the --color mode against the output stream.
func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

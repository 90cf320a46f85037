package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/uirun/pkg/events"
)

// TestSummary is one test's line in the run summary
type TestSummary struct {
	TestID     string        `json:"test_id"`
	Name       string        `json:"name"`
	WorkerID   string        `json:"worker_id"`
	Status     events.Status `json:"status"`
	DurationMs int64         `json:"duration_ms"`
	Message    string        `json:"message,omitempty"`
	Artifacts  *Artifacts    `json:"artifacts,omitempty"`
}

// Summary contains a complete summary of a test run
type Summary struct {
	RunID       string        `json:"run_id"`
	Environment string        `json:"environment"`
	Target      string        `json:"target"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Duration    time.Duration `json:"duration"`
	Total       int           `json:"total"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Tests       []TestSummary `json:"tests"`
	EventLog    string        `json:"event_log,omitempty"`
	LogPath     string        `json:"log_path,omitempty"`
}

// NewSummary tallies results.
func NewSummary(runID string, results []Result, start, end time.Time) *Summary {
	s := &Summary{
		RunID:     runID,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Total:     len(results),
		Tests:     make([]TestSummary, 0, len(results)),
	}
	for _, r := range results {
		switch r.Status {
		case events.StatusPassed:
			s.Passed++
		case events.StatusFailed:
			s.Failed++
		case events.StatusSkipped:
			s.Skipped++
		}
		if s.Target == "" && r.Target.Browser != "" {
			s.Target = r.Target.String()
		}
		s.Tests = append(s.Tests, TestSummary{
			TestID:     r.TestID,
			Name:       r.Name,
			WorkerID:   r.WorkerID,
			Status:     r.Status,
			DurationMs: r.Duration.Milliseconds(),
			Message:    r.Message,
			Artifacts:  r.Artifacts,
		})
	}
	return s
}

// Success reports whether no test failed.
func (s *Summary) Success() bool {
	return s.Failed == 0
}

// ExitCode returns the process exit code for the run.
func (s *Summary) ExitCode() int {
	if s.Success() {
		return 0
	}
	return 1
}

// FinishLine is the one-line suite result written to the diagnostic log.
func (s *Summary) FinishLine() string {
	line := fmt.Sprintf("Test suite finished: %d total, %d passed, %d failed, %d skipped",
		s.Total, s.Passed, s.Failed, s.Skipped)
	if s.EventLog != "" {
		line += ". Events: " + s.EventLog
	}
	return line
}

// WriteAll writes summary.json and summary.md into dir
func (s *Summary) WriteAll(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	if _, err := writeAtomic(filepath.Join(dir, "summary.json"), data); err != nil {
		return fmt.Errorf("failed to write summary JSON: %w", err)
	}

	if _, err := writeAtomic(filepath.Join(dir, "summary.md"), []byte(s.Markdown())); err != nil {
		return fmt.Errorf("failed to write summary markdown: %w", err)
	}

	return nil
}

// Markdown renders a human-readable markdown summary
func (s *Summary) Markdown() string {
	var md strings.Builder

	md.WriteString("# uirun Test Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Run:** %s\n\n", s.RunID))
	if s.Target != "" {
		md.WriteString(fmt.Sprintf("**Target:** %s\n\n", s.Target))
	}
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", s.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", s.EndTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", s.Duration.Round(durationRounding)))

	md.WriteString("## Result\n\n")
	if s.Success() {
		md.WriteString(fmt.Sprintf("✅ **%d passed**, %d skipped\n\n", s.Passed, s.Skipped))
	} else {
		md.WriteString(fmt.Sprintf("❌ **%d failed**, %d passed, %d skipped\n\n", s.Failed, s.Passed, s.Skipped))
	}

	if len(s.Tests) > 0 {
		md.WriteString("## Tests\n\n")
		md.WriteString("| Status | Test | Worker | Duration |\n")
		md.WriteString("|---|---|---|---|\n")
		for _, t := range s.Tests {
			md.WriteString(fmt.Sprintf("| %s | `%s` | %s | %dms |\n", statusIcon(t.Status), t.Name, t.WorkerID, t.DurationMs))
		}
		md.WriteString("\n")
	}

	var failures []TestSummary
	for _, t := range s.Tests {
		if t.Status == events.StatusFailed {
			failures = append(failures, t)
		}
	}
	if len(failures) > 0 {
		md.WriteString("## Failures\n\n")
		for _, t := range failures {
			md.WriteString(fmt.Sprintf("### %s\n\n", t.Name))
			md.WriteString(fmt.Sprintf("```\n%s\n```\n\n", t.Message))
			if t.Artifacts != nil {
				if t.Artifacts.Screenshot != "" {
					md.WriteString(fmt.Sprintf("- Screenshot: `%s`\n", t.Artifacts.Screenshot))
				}
				if t.Artifacts.PageSource != "" {
					md.WriteString(fmt.Sprintf("- Page source: `%s`\n", t.Artifacts.PageSource))
				}
				md.WriteString("\n")
			}
		}
	}

	if s.EventLog != "" {
		md.WriteString(fmt.Sprintf("Events: `%s`\n", s.EventLog))
	}

	return md.String()
}

func statusIcon(status events.Status) string {
	switch status {
	case events.StatusPassed:
		return "✅"
	case events.StatusSkipped:
		return "⏭"
	default:
		return "❌"
	}
}

// Render draws the summary box for the console.
func (s *Summary) Render() string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(salmonPink).
		Padding(0, 2)

	status := passStyle.Render("✓ PASSED")
	if !s.Success() {
		status = failStyle.Render("✗ FAILED")
	}

	counts := lipgloss.JoinHorizontal(lipgloss.Top,
		passStyle.Render(fmt.Sprintf("%d passed", s.Passed)),
		mutedStyle.Render("  ·  "),
		failStyle.Render(fmt.Sprintf("%d failed", s.Failed)),
		mutedStyle.Render("  ·  "),
		skipStyle.Render(fmt.Sprintf("%d skipped", s.Skipped)),
	)

	lines := []string{
		headerStyle.Render("TEST RUN SUMMARY") + "  " + status,
		"",
		counts,
		mutedStyle.Render(fmt.Sprintf("%d tests in %s", s.Total, s.Duration.Round(durationRounding))),
	}
	if s.Target != "" {
		lines = append(lines, mutedStyle.Render("Target: "+s.Target))
	}
	for _, t := range s.Tests {
		if t.Status == events.StatusFailed {
			lines = append(lines, failStyle.Render("✗ "+t.Name)+" "+mutedStyle.Render(firstLine(t.Message)))
		}
	}
	if s.EventLog != "" {
		lines = append(lines, "", infoStyle.Render("Events: "+s.EventLog))
	}
	if s.LogPath != "" {
		lines = append(lines, infoStyle.Render("Log: "+s.LogPath))
	}

	return box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

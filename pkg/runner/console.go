package runner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/uirun/pkg/events"
)

// Color palette shared by console progress and the run summary
var (
	salmonPink  = lipgloss.Color("#FFB3BA")
	coralPink   = lipgloss.Color("#FFCCCB")
	mintGreen   = lipgloss.Color("#A8E6CF")
	mutedGray   = lipgloss.Color("#6B7280")
	brightWhite = lipgloss.Color("#F9FAFB")
	softYellow  = lipgloss.Color("#FDE68A")
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(brightWhite).Bold(true)
	infoStyle   = lipgloss.NewStyle().Foreground(salmonPink)
	passStyle   = lipgloss.NewStyle().Foreground(mintGreen).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(coralPink).Bold(true)
	skipStyle   = lipgloss.NewStyle().Foreground(softYellow)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedGray)
)

// LogLevel represents the console verbosity level
type LogLevel int

const (
	// LogLevelQuiet shows only warnings, errors and the final summary
	LogLevelQuiet LogLevel = iota
	// LogLevelNormal shows one line per finished test (default)
	LogLevelNormal
	// LogLevelVerbose adds failure messages and artifact paths
	LogLevelVerbose
	// LogLevelDebug adds stack traces
	LogLevelDebug
)

// ParseLogLevel converts a level name to a LogLevel. Unknown names are
// normal.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "quiet":
		return LogLevelQuiet
	case "normal":
		return LogLevelNormal
	case "verbose":
		return LogLevelVerbose
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelNormal
	}
}

// Console prints run progress for humans. Workers share one Console.
type Console struct {
	mu     sync.Mutex
	level  LogLevel
	writer io.Writer
}

// NewConsole creates a console writing to w. A nil w writes to stdout.
func NewConsole(w io.Writer, level LogLevel) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{level: level, writer: w}
}

func (c *Console) printf(min LogLevel, style lipgloss.Style, format string, args ...interface{}) {
	if c == nil || c.level < min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.writer, style.Render(msg))
}

// Header prints a prominent header message
func (c *Console) Header(message string) {
	rule := strings.Repeat("=", 70)
	c.printf(LogLevelNormal, headerStyle, "\n%s\n  %s\n%s", rule, message, rule)
}

// Infof prints an informational message
func (c *Console) Infof(format string, args ...interface{}) {
	c.printf(LogLevelNormal, infoStyle, format, args...)
}

// Verbosef prints detailed information (only in verbose mode)
func (c *Console) Verbosef(format string, args ...interface{}) {
	c.printf(LogLevelVerbose, mutedStyle, "→ "+format, args...)
}

// Warningf prints a warning message
func (c *Console) Warningf(format string, args ...interface{}) {
	c.printf(LogLevelQuiet, skipStyle, "⚠ Warning: "+format, args...)
}

// Errorf prints an error message
func (c *Console) Errorf(format string, args ...interface{}) {
	c.printf(LogLevelQuiet, failStyle, "✗ Error: "+format, args...)
}

// TestResult prints the outcome of one test.
func (c *Console) TestResult(res Result) {
	if c == nil || c.level < LogLevelNormal {
		return
	}

	var line string
	switch res.Status {
	case events.StatusPassed:
		line = passStyle.Render("✓ "+res.Name) + mutedStyle.Render(fmt.Sprintf(" (%s, %s)", res.WorkerID, res.Duration.Round(durationRounding)))
	case events.StatusSkipped:
		line = skipStyle.Render("○ "+res.Name) + mutedStyle.Render(" skipped: "+res.Message)
	default:
		line = failStyle.Render("✗ "+res.Name) + mutedStyle.Render(fmt.Sprintf(" (%s, %s)", res.WorkerID, res.Duration.Round(durationRounding)))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.writer, line)

	if res.Status != events.StatusFailed || c.level < LogLevelVerbose {
		return
	}
	fmt.Fprintln(c.writer, mutedStyle.Render("    "+res.Message))
	if res.Artifacts != nil && res.Artifacts.Dir != "" {
		fmt.Fprintln(c.writer, mutedStyle.Render("    artifacts: "+res.Artifacts.Dir))
	}
	if c.level >= LogLevelDebug && res.Stacktrace != "" {
		fmt.Fprintln(c.writer, mutedStyle.Render(indent(res.Stacktrace, "      ")))
	}
}

// Summary prints the final run summary. It is shown at every level.
func (c *Console) Summary(s *Summary) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.writer, s.Render())
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLineSize bounds one record; stack traces can be long.
const maxLineSize = 4 * 1024 * 1024

// Decode reads every well-formed record from r. Blank lines are ignored and
// malformed lines are skipped and counted, so a log that is still being
// written (or was cut short) can always be read.
func Decode(r io.Reader) ([]Record, int, error) {
	var (
		records []Record
		skipped int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, ok := decodeLine([]byte(line))
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, fmt.Errorf("failed to read event log: %w", err)
	}
	return records, skipped, nil
}

func decodeLine(line []byte) (Record, bool) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, false
	}
	if rec.Attributes == nil {
		rec.Attributes = map[string]string{}
	}
	return rec, true
}

// ReadFile decodes the event log at path.
func ReadFile(path string) ([]Record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Failures returns the FAILED records in log order.
func Failures(records []Record) []Record {
	var out []Record
	for _, rec := range records {
		if rec.Status == StatusFailed {
			out = append(out, rec)
		}
	}
	return out
}

// FailureSignature summarizes a failure for search and grouping:
// "Test: <name> | Class: <class> | Error: <message>" followed by the first
// non-indented line of the stack trace, if any. Goroutine headers are
// skipped since their ids depend on the worker. Non-failures yield "".
func FailureSignature(rec Record) string {
	if rec.Status != StatusFailed {
		return ""
	}
	parts := []string{
		"Test: " + rec.TestName,
		"Class: " + rec.ClassName,
		"Error: " + rec.Message,
	}
	if rec.Stacktrace != "" {
		lines := strings.Split(rec.Stacktrace, "\n")
		if len(lines) > 5 {
			lines = lines[:5]
		}
		for _, line := range lines {
			if strings.TrimSpace(line) != "" && !strings.HasPrefix(line, "\t") && !strings.HasPrefix(line, "goroutine ") {
				parts = append(parts, "Exception: "+strings.TrimSpace(line))
				break
			}
		}
	}
	return strings.Join(parts, " | ")
}

// Unterminated reports the test ids that have a STARTED record but no
// terminal record.
func Unterminated(records []Record) []string {
	open := make(map[string]bool)
	var order []string
	for _, rec := range records {
		switch {
		case rec.Status == StatusStarted:
			if _, seen := open[rec.TestID]; !seen {
				order = append(order, rec.TestID)
			}
			open[rec.TestID] = true
		case rec.Status.Terminal():
			open[rec.TestID] = false
		}
	}
	var out []string
	for _, id := range order {
		if open[id] {
			out = append(out, id)
		}
	}
	return out
}

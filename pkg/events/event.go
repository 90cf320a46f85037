// Package events records test lifecycle transitions as JSON lines.
//
// Each test produces one STARTED event followed by exactly one terminal
// event (PASSED, FAILED or SKIPPED). Events are immutable once built and are
// appended, one self-contained JSON object per line, to a Sink. The default
// FileSink appends to target/analytics-logs/test-events.jsonl, which the
// failure analysis pipeline reads while the run is still writing it.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is a lifecycle transition.
type Status string

const (
	StatusStarted Status = "STARTED"
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// Terminal reports whether s ends a test.
func (s Status) Terminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// Record is the wire form of an event, one per log line.
type Record struct {
	EventID      string            `json:"eventId"`
	TimestampUTC time.Time         `json:"timestampUtc"`
	TestID       string            `json:"testId"`
	TestName     string            `json:"testName"`
	SuiteName    string            `json:"suiteName"`
	ClassName    string            `json:"className"`
	Status       Status            `json:"status"`
	DurationMs   *int64            `json:"durationMs,omitempty"`
	Message      string            `json:"message"`
	Stacktrace   string            `json:"stacktrace,omitempty"`
	Environment  string            `json:"environment"`
	Service      string            `json:"service"`
	Attributes   map[string]string `json:"attributes"`
}

// Event is an immutable lifecycle event.
type Event struct {
	rec Record
}

// New builds an event from rec. A missing event id or timestamp is filled
// in, the timestamp is converted to UTC, and the attribute map is copied.
// Duration is kept for terminal PASSED and FAILED events only, and the
// stacktrace for FAILED only.
func New(rec Record) Event {
	if rec.EventID == "" {
		rec.EventID = uuid.NewString()
	}
	if rec.TimestampUTC.IsZero() {
		rec.TimestampUTC = time.Now()
	}
	rec.TimestampUTC = rec.TimestampUTC.UTC()
	rec.Attributes = copyAttributes(rec.Attributes)

	if rec.Status == StatusPassed || rec.Status == StatusFailed {
		if rec.DurationMs != nil {
			d := *rec.DurationMs
			rec.DurationMs = &d
		}
	} else {
		rec.DurationMs = nil
	}
	if rec.Status != StatusFailed {
		rec.Stacktrace = ""
	}
	return Event{rec: rec}
}

func copyAttributes(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (e Event) ID() string { return e.rec.EventID }
func (e Event) Timestamp() time.Time { return e.rec.TimestampUTC }
func (e Event) TestID() string { return e.rec.TestID }
func (e Event) TestName() string { return e.rec.TestName }
func (e Event) SuiteName() string { return e.rec.SuiteName }
func (e Event) ClassName() string { return e.rec.ClassName }
func (e Event) Status() Status { return e.rec.Status }
func (e Event) Message() string { return e.rec.Message }
func (e Event) Stacktrace() string { return e.rec.Stacktrace }
func (e Event) Environment() string { return e.rec.Environment }
func (e Event) Service() string { return e.rec.Service }

// Duration returns the recorded duration in milliseconds, if any.
func (e Event) Duration() (int64, bool) {
	if e.rec.DurationMs == nil {
		return 0, false
	}
	return *e.rec.DurationMs, true
}

// Attributes returns a copy of the event's attributes.
func (e Event) Attributes() map[string]string {
	return copyAttributes(e.rec.Attributes)
}

// Record returns a copy of the wire form.
func (e Event) Record() Record {
	rec := e.rec
	rec.Attributes = copyAttributes(e.rec.Attributes)
	if rec.DurationMs != nil {
		d := *rec.DurationMs
		rec.DurationMs = &d
	}
	return rec
}

// TestInfo identifies the test an event belongs to.
type TestInfo struct {
	TestID     string
	TestName   string
	SuiteName  string
	ClassName  string
	Attributes map[string]string
}

// NewTestID returns the deterministic id "<class>.<method>_<startMillis>".
func NewTestID(className, method string, start time.Time) string {
	return fmt.Sprintf("%s.%s_%d", className, method, start.UnixMilli())
}

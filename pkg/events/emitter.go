package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/uirun/pkg/logging"
	"github.com/entrhq/uirun/pkg/metrics"
)

const (
	msgStarted = "Test execution started"
	msgPassed  = "Test passed successfully"
	msgFailed  = "Test failed"
	msgSkipped = "Test skipped"
)

// EmissionError is an event that could not be appended. The emitter logs
// and swallows it.
type EmissionError struct {
	TestID string
	Status Status
	Err    error
}

func (e *EmissionError) Error() string {
	return fmt.Sprintf("emitting %s event for %s: %v", e.Status, e.TestID, e.Err)
}

func (e *EmissionError) Unwrap() error {
	return e.Err
}

// Options configures an Emitter.
type Options struct {
	// Environment and Service label every event.
	Environment string
	Service     string

	// Logger is the diagnostic channel for append failures and the event
	// mirror. Nil discards.
	Logger *logging.Logger

	// Clock returns the current time. Nil uses time.Now.
	Clock func() time.Time
}

// Emitter turns lifecycle transitions into events and appends them to a
// sink. It is safe for concurrent use by every worker.
type Emitter struct {
	sink        Sink
	environment string
	service     string
	logger      *logging.Logger
	now         func() time.Time

	mu     sync.Mutex
	starts map[string]time.Time
}

// NewEmitter creates an emitter writing to sink.
func NewEmitter(sink Sink, opts Options) *Emitter {
	e := &Emitter{
		sink:        sink,
		environment: opts.Environment,
		service:     opts.Service,
		logger:      opts.Logger,
		now:         opts.Clock,
		starts:      make(map[string]time.Time),
	}
	if e.logger == nil {
		e.logger = logging.Nop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.environment == "" {
		e.environment = "local"
	}
	return e
}

// EmitStart records the start of a test and remembers its start time.
func (e *Emitter) EmitStart(info TestInfo) Event {
	now := e.now()
	e.mu.Lock()
	e.starts[info.TestID] = now
	e.mu.Unlock()

	return e.emit(info, StatusStarted, now, nil, msgStarted, "")
}

// EmitSuccess records a passed test.
func (e *Emitter) EmitSuccess(info TestInfo) Event {
	now := e.now()
	d := e.finish(info.TestID, now)
	return e.emit(info, StatusPassed, now, &d, msgPassed, "")
}

// EmitFailure records a failed test with its error message and stack.
func (e *Emitter) EmitFailure(info TestInfo, message, stacktrace string) Event {
	now := e.now()
	d := e.finish(info.TestID, now)
	if message == "" {
		message = msgFailed
	}
	return e.emit(info, StatusFailed, now, &d, message, stacktrace)
}

// EmitSkipped records a skipped test.
func (e *Emitter) EmitSkipped(info TestInfo, reason string) Event {
	now := e.now()
	e.finish(info.TestID, now)
	if reason == "" {
		reason = msgSkipped
	}
	return e.emit(info, StatusSkipped, now, nil, reason, "")
}

// Pending returns the number of started tests without a terminal event.
func (e *Emitter) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.starts)
}

// finish removes the test's start time and returns the elapsed
// milliseconds, or 0 for an unknown test.
func (e *Emitter) finish(testID string, now time.Time) int64 {
	e.mu.Lock()
	start, ok := e.starts[testID]
	delete(e.starts, testID)
	e.mu.Unlock()

	if !ok {
		return 0
	}
	d := now.Sub(start).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}

func (e *Emitter) emit(info TestInfo, status Status, now time.Time, durationMs *int64, message, stacktrace string) Event {
	ev := New(Record{
		TimestampUTC: now,
		TestID:       info.TestID,
		TestName:     info.TestName,
		SuiteName:    info.SuiteName,
		ClassName:    info.ClassName,
		Status:       status,
		DurationMs:   durationMs,
		Message:      message,
		Stacktrace:   stacktrace,
		Environment:  e.environment,
		Service:      e.service,
		Attributes:   info.Attributes,
	})

	if err := e.append(ev); err != nil {
		metrics.RecordEmissionFailure()
		e.logger.Err(err, "failed to write lifecycle event")
	} else {
		metrics.RecordEmission(string(status))
	}

	e.mirror(ev)
	return ev
}

func (e *Emitter) append(ev Event) error {
	line, err := json.Marshal(ev.rec)
	if err != nil {
		return &EmissionError{TestID: ev.TestID(), Status: ev.Status(), Err: err}
	}
	line = append(line, '\n')
	if err := e.sink.Append(line); err != nil {
		return &EmissionError{TestID: ev.TestID(), Status: ev.Status(), Err: err}
	}
	return nil
}

// mirror repeats the event on the diagnostic logger.
func (e *Emitter) mirror(ev Event) {
	zl := e.logger.Zerolog()
	entry := zl.Info()
	if ev.Status() == StatusFailed {
		entry = zl.Error()
	}
	entry = entry.
		Str("test_id", ev.TestID()).
		Str("status", string(ev.Status()))
	if d, ok := ev.Duration(); ok {
		entry = entry.Int64("duration_ms", d)
	}
	entry.Msg(ev.Message())
}

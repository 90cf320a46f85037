package runner

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/entrhq/uirun/pkg/actuator"
	"github.com/entrhq/uirun/pkg/logging"
	"github.com/entrhq/uirun/pkg/session"
)

// TestCase is one UI test. Class and Method form the test's identity in
// the event log; Suite groups related classes.
type TestCase struct {
	Class      string
	Method     string
	Suite      string
	Attributes map[string]string

	// Skip, when non-empty, is the reason the test is not run.
	Skip string

	Body func(t *T)
}

// Name returns "Class.Method".
func (tc TestCase) Name() string {
	return tc.Class + "." + tc.Method
}

// SessionAccessor exposes the session a test is running on. Artifact
// capture goes through it instead of reaching into the test.
type SessionAccessor interface {
	Session() *session.Session
}

// T is handed to a test body. It carries the worker's session and an
// actuator over its page. Failing helpers stop the body immediately.
type T struct {
	ctx      context.Context
	testID   string
	session  *session.Session
	actuator *actuator.Actuator
	logger   *logging.Logger
}

// Context returns the run context. It carries the test's span.
func (t *T) Context() context.Context {
	return t.ctx
}

// TestID returns the test's event log id.
func (t *T) TestID() string {
	return t.testID
}

// Session returns the session bound to this test's worker.
func (t *T) Session() *session.Session {
	return t.session
}

// Actuator returns the resilient actuator over the session's page.
func (t *T) Actuator() *actuator.Actuator {
	return t.actuator
}

// Logger returns the diagnostic logger carrying the worker and test ids.
func (t *T) Logger() *logging.Logger {
	return t.logger
}

// Logf writes to the diagnostic log with the worker and test ids attached.
func (t *T) Logf(format string, args ...interface{}) {
	t.logger.Infof(format, args...)
}

// Assert fails the test with msg when cond is false.
func (t *T) Assert(cond bool, msg string) {
	if !cond {
		panic(newAssertionError(msg))
	}
}

// Assertf is Assert with a formatted message.
func (t *T) Assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(newAssertionError(fmt.Sprintf(format, args...)))
	}
}

// NoError fails the test with err when it is non-nil. Interaction errors
// keep the stack captured where they happened.
func (t *T) NoError(err error) {
	if err != nil {
		panic(failNow{err: err})
	}
}

// AssertionError is a failed Assert. The stack is captured at the call.
type AssertionError struct {
	Message string
	stack   string
}

func newAssertionError(msg string) *AssertionError {
	if msg == "" {
		msg = "assertion failed"
	}
	e := &AssertionError{Message: msg}
	e.stack = captureStack(e)
	return e
}

func (e *AssertionError) Error() string {
	return e.Message
}

// Stacktrace returns the goroutine stack at the failed assertion.
func (e *AssertionError) Stacktrace() string {
	return e.stack
}

// PanicError is an unexpected panic in a test body.
type PanicError struct {
	Value interface{}
	stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Stacktrace returns the stack of the panicking goroutine.
func (e *PanicError) Stacktrace() string {
	return e.stack
}

type failNow struct {
	err error
}

type stackTracer interface {
	Stacktrace() string
}

// captureStack returns the current goroutine stack headed by a
// "<type>: <message>" line naming err.
func captureStack(err error) string {
	return fmt.Sprintf("%T: %v\n%s", err, err, debug.Stack())
}

// runBody calls body and converts assertion failures and panics into
// errors.
func runBody(t *T, body func(*T)) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch v := r.(type) {
		case *AssertionError:
			err = v
		case failNow:
			err = v.err
		default:
			perr := &PanicError{Value: r}
			perr.stack = captureStack(perr)
			err = perr
		}
	}()

	if body == nil {
		return fmt.Errorf("test has no body")
	}
	body(t)
	return nil
}

package actuator

import (
	"fmt"
	"runtime/debug"
)

// ErrorKind classifies a failed interaction.
type ErrorKind int

const (
	// Timeout means the element was not found or never met the action's
	// precondition within the wait bound.
	Timeout ErrorKind = iota
	// Unrecoverable means the element went stale on both attempts or the
	// driver failed in a way a retry cannot fix.
	Unrecoverable
)

func (k ErrorKind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case Unrecoverable:
		return "unrecoverable"
	default:
		return "unknown"
	}
}

// InteractionError is returned when an action fails conclusively.
type InteractionError struct {
	Kind     ErrorKind
	Action   string
	Locator  string
	Attempts int
	Err      error

	stack string
}

func newInteractionError(kind ErrorKind, action, locator string, attempts int, err error) *InteractionError {
	e := &InteractionError{
		Kind:     kind,
		Action:   action,
		Locator:  locator,
		Attempts: attempts,
		Err:      err,
	}
	e.stack = fmt.Sprintf("%T: %v\n%s", e, e, debug.Stack())
	return e
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("%s on %q failed (%s after %d attempt(s)): %v", e.Action, e.Locator, e.Kind, e.Attempts, e.Err)
}

func (e *InteractionError) Unwrap() error {
	return e.Err
}

// Stacktrace returns the goroutine stack captured when the error was built.
func (e *InteractionError) Stacktrace() string {
	return e.stack
}

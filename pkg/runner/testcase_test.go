package runner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/uirun/pkg/logging"
)

func TestRunBody(t *testing.T) {
	cause := errors.New("element detached")

	tests := []struct {
		name  string
		body  func(*T)
		check func(*testing.T, error)
	}{
		{
			name:  "passing body",
			body:  func(t *T) { t.Assert(true, "fine") },
			check: func(t *testing.T, err error) { assert.NoError(t, err) },
		},
		{
			name: "assertf formats",
			body: func(t *T) { t.Assertf(1+1 == 3, "expected %d, got %d", 3, 2) },
			check: func(t *testing.T, err error) {
				var aerr *AssertionError
				require.True(t, errors.As(err, &aerr))
				assert.Equal(t, "expected 3, got 2", aerr.Error())
				assert.Contains(t, aerr.Stacktrace(), "runner.TestRunBody")
			},
		},
		{
			name: "empty assertion message",
			body: func(t *T) { t.Assert(false, "") },
			check: func(t *testing.T, err error) {
				assert.EqualError(t, err, "assertion failed")
			},
		},
		{
			name: "no error passes the error through",
			body: func(t *T) { t.NoError(cause) },
			check: func(t *testing.T, err error) {
				assert.Same(t, cause, err)
			},
		},
		{
			name: "panic with an error value",
			body: func(*T) { panic(cause) },
			check: func(t *testing.T, err error) {
				var perr *PanicError
				require.True(t, errors.As(err, &perr))
				assert.Equal(t, "panic: element detached", perr.Error())
				assert.NotEmpty(t, perr.Stacktrace())
			},
		},
		{
			name:  "nil body",
			body:  nil,
			check: func(t *testing.T, err error) { assert.Error(t, err) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, runBody(&T{logger: logging.Nop()}, tt.body))
		})
	}
}

func TestStacktraceOfFallsBackToCurrentStack(t *testing.T) {
	stack := stacktraceOf(errors.New("plain"))
	assert.Contains(t, stack, "*errors.errorString: plain")
	assert.Contains(t, stack, "goroutine")

	aerr := newAssertionError("x")
	assert.Equal(t, aerr.Stacktrace(), stacktraceOf(aerr))
}

func TestTestCaseName(t *testing.T) {
	assert.Equal(t, "LoginTest.testLogout", TestCase{Class: "LoginTest", Method: "testLogout"}.Name())
}

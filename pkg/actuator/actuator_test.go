package actuator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/uirun/pkg/driver"
	"github.com/entrhq/uirun/pkg/driver/drivertest"
)

func setup(t *testing.T, locator string, el *drivertest.FakeElement) (*Actuator, *drivertest.FakePage, *Target) {
	t.Helper()
	page := drivertest.NewPage()
	if el != nil {
		page.Add(locator, el)
	}
	return New(page, WithTimeout(50*time.Millisecond)), page, Locate(locator)
}

func requireInteractionError(t *testing.T, err error, kind ErrorKind, attempts int) *InteractionError {
	t.Helper()
	var ierr *InteractionError
	require.True(t, errors.As(err, &ierr), "expected InteractionError, got %v", err)
	assert.Equal(t, kind, ierr.Kind)
	assert.Equal(t, attempts, ierr.Attempts)
	assert.NotEmpty(t, ierr.Stacktrace())
	return ierr
}

func TestActionsSucceedWithoutStaleness(t *testing.T) {
	el := drivertest.NewElement("Logged In Successfully")
	a, page, target := setup(t, "#msg", el)

	require.NoError(t, a.Click(target))
	require.NoError(t, a.Type(target, "student"))
	text, err := a.ReadText(target)
	require.NoError(t, err)

	assert.Equal(t, "Logged In Successfully", text)
	assert.Equal(t, 1, el.Clicks())
	assert.Equal(t, "student", el.Value())
	assert.Equal(t, 1, page.Resolves("#msg"), "handle is cached within a generation")
}

func TestSingleStalenessRetriesExactlyOnce(t *testing.T) {
	tests := []struct {
		name  string
		stale func(*drivertest.FakeElement)
		do    func(*Actuator, *Target) (string, error)
		check func(*testing.T, *drivertest.FakeElement, string)
	}{
		{
			name:  "click stale during action",
			stale: func(el *drivertest.FakeElement) { el.StaleOnAction = 1 },
			do:    func(a *Actuator, tg *Target) (string, error) { return "", a.Click(tg) },
			check: func(t *testing.T, el *drivertest.FakeElement, _ string) { assert.Equal(t, 1, el.Clicks()) },
		},
		{
			name:  "click stale during wait",
			stale: func(el *drivertest.FakeElement) { el.StaleOnWait = 1 },
			do:    func(a *Actuator, tg *Target) (string, error) { return "", a.Click(tg) },
			check: func(t *testing.T, el *drivertest.FakeElement, _ string) { assert.Equal(t, 1, el.Clicks()) },
		},
		{
			name:  "type",
			stale: func(el *drivertest.FakeElement) { el.StaleOnAction = 1 },
			do:    func(a *Actuator, tg *Target) (string, error) { return "", a.Type(tg, "Password123") },
			check: func(t *testing.T, el *drivertest.FakeElement, _ string) {
				assert.Equal(t, "Password123", el.Value())
				assert.Equal(t, 1, el.Fills())
			},
		},
		{
			name:  "readText",
			stale: func(el *drivertest.FakeElement) { el.StaleOnAction = 1 },
			do:    func(a *Actuator, tg *Target) (string, error) { return a.ReadText(tg) },
			check: func(t *testing.T, _ *drivertest.FakeElement, got string) { assert.Equal(t, "hello", got) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := drivertest.NewElement("hello")
			tt.stale(el)
			a, page, target := setup(t, "#el", el)
			gen := a.Generation()

			got, err := tt.do(a, target)
			require.NoError(t, err)
			tt.check(t, el, got)

			assert.Equal(t, 2, page.Resolves("#el"), "exactly one fresh re-resolution")
			assert.Equal(t, gen+1, a.Generation(), "retry bumps the generation once")
		})
	}
}

func TestPersistentStalenessFailsAfterTwoAttempts(t *testing.T) {
	tests := []struct {
		name string
		do   func(*Actuator, *Target) error
	}{
		{"click", func(a *Actuator, tg *Target) error { return a.Click(tg) }},
		{"type", func(a *Actuator, tg *Target) error { return a.Type(tg, "x") }},
		{"readText", func(a *Actuator, tg *Target) error { _, err := a.ReadText(tg); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := drivertest.NewElement("x")
			el.StaleOnAction = drivertest.Always
			a, page, target := setup(t, "#el", el)

			err := tt.do(a, target)
			ierr := requireInteractionError(t, err, Unrecoverable, 2)
			assert.True(t, errors.Is(err, driver.ErrStale))
			assert.Equal(t, tt.name, ierr.Action)
			assert.Equal(t, 2, page.Resolves("#el"))
		})
	}
}

func TestRetryUsesFreshLookupAfterRerender(t *testing.T) {
	el := drivertest.NewElement("first")
	a, page, target := setup(t, "#el", el)

	_, err := a.ReadText(target)
	require.NoError(t, err)

	// The cached handle now points at a detached node; replaying it would
	// stay stale forever.
	el.Detach()
	el.SetText("second")

	text, err := a.ReadText(target)
	require.NoError(t, err)
	assert.Equal(t, "second", text)
	assert.Equal(t, 2, page.Resolves("#el"))
}

func TestInvalidateForcesLookup(t *testing.T) {
	el := drivertest.NewElement("x")
	a, page, target := setup(t, "#el", el)

	require.NoError(t, a.Click(target))
	require.NoError(t, a.Click(target))
	assert.Equal(t, 1, page.Resolves("#el"))

	a.Invalidate()
	require.NoError(t, a.Click(target))
	assert.Equal(t, 2, page.Resolves("#el"))
}

func TestOpenNavigatesAndInvalidates(t *testing.T) {
	a, page, _ := setup(t, "#el", nil)
	gen := a.Generation()

	require.NoError(t, a.Open("https://example.test/login"))
	assert.Equal(t, []string{"https://example.test/login"}, page.Visited())
	assert.Greater(t, a.Generation(), gen)
	assert.Equal(t, "https://example.test/login", a.CurrentURL())
}

func TestPreconditionTimeout(t *testing.T) {
	tests := []struct {
		name    string
		element func() *drivertest.FakeElement
		do      func(*Actuator, *Target) error
	}{
		{
			name:    "never ready",
			element: func() *drivertest.FakeElement { el := drivertest.NewElement(""); el.NeverReady = true; return el },
			do:      func(a *Actuator, tg *Target) error { return a.Click(tg) },
		},
		{
			name:    "disabled button is not clickable",
			element: func() *drivertest.FakeElement { el := drivertest.NewElement(""); el.SetDisabled(true); return el },
			do:      func(a *Actuator, tg *Target) error { return a.Click(tg) },
		},
		{
			name:    "hidden input cannot be typed into",
			element: func() *drivertest.FakeElement { el := drivertest.NewElement(""); el.SetHidden(true); return el },
			do:      func(a *Actuator, tg *Target) error { return a.Type(tg, "x") },
		},
		{
			name:    "missing element",
			element: func() *drivertest.FakeElement { return nil },
			do:      func(a *Actuator, tg *Target) error { _, err := a.ReadText(tg); return err },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := tt.element()
			a, page, target := setup(t, "#el", el)

			err := tt.do(a, target)
			requireInteractionError(t, err, Timeout, 1)
			assert.True(t, errors.Is(err, driver.ErrTimeout))
			assert.Equal(t, 1, page.Resolves("#el"), "timeouts are not retried")
			if el != nil {
				assert.Equal(t, 0, el.Clicks())
				assert.Equal(t, 0, el.Fills())
			}
		})
	}
}

func TestLookupAndWaitShareOneTimeout(t *testing.T) {
	el := drivertest.NewElement("")
	el.WaitDelay = 180 * time.Millisecond
	page := drivertest.NewPage()
	page.Add("#submit", el)
	page.ResolveDelay = 180 * time.Millisecond

	a := New(page, WithTimeout(200*time.Millisecond))

	start := time.Now()
	err := a.Click(Locate("#submit"))
	elapsed := time.Since(start)

	requireInteractionError(t, err, Timeout, 1)
	assert.True(t, errors.Is(err, driver.ErrTimeout))
	assert.Equal(t, 0, el.Clicks())
	assert.Less(t, elapsed, 300*time.Millisecond, "the wait only gets what the lookup left over")
}

func TestNonStaleDriverErrorIsNotRetried(t *testing.T) {
	el := drivertest.NewElement("x")
	el.ActionErr = errors.New("target page, context or browser has been closed")
	a, page, target := setup(t, "#el", el)

	err := a.Click(target)
	ierr := requireInteractionError(t, err, Unrecoverable, 1)
	assert.True(t, strings.Contains(ierr.Error(), "browser has been closed"))
	assert.Equal(t, 1, page.Resolves("#el"))
}

func TestIsVisible(t *testing.T) {
	tests := []struct {
		name    string
		element func() *drivertest.FakeElement
		want    bool
	}{
		{"visible", func() *drivertest.FakeElement { return drivertest.NewElement("") }, true},
		{"never ready", func() *drivertest.FakeElement {
			el := drivertest.NewElement("")
			el.NeverReady = true
			return el
		}, false},
		{"hidden", func() *drivertest.FakeElement {
			el := drivertest.NewElement("")
			el.SetHidden(true)
			return el
		}, false},
		{"stale twice", func() *drivertest.FakeElement {
			el := drivertest.NewElement("")
			el.StaleOnWait = 2
			return el
		}, false},
		{"stale once", func() *drivertest.FakeElement {
			el := drivertest.NewElement("")
			el.StaleOnAction = 1
			return el
		}, true},
		{"missing", func() *drivertest.FakeElement { return nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, target := setup(t, "#el", tt.element())
			assert.Equal(t, tt.want, a.IsVisible(target))
		})
	}
}

func TestDefaults(t *testing.T) {
	a := New(drivertest.NewPage(), WithTimeout(0), WithLogger(nil))
	assert.Equal(t, DefaultTimeout, a.Timeout())
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "timeout", Timeout.String())
	assert.Equal(t, "unrecoverable", Unrecoverable.String())
	assert.Equal(t, "unknown", ErrorKind(9).String())
}

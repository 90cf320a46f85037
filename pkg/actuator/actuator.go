// Package actuator performs UI interactions with an explicit wait and a
// bounded retry on stale element references.
//
// Every action runs the same state machine:
//
//	Resolving --ok--> Acting --ok--> Succeeded
//	Resolving/Acting --stale, first attempt--> RetryPending --> Resolving
//	Resolving/Acting --stale, second attempt--> Failed (Unrecoverable)
//	Resolving/Acting --any other error--> Failed (Timeout or Unrecoverable)
//
// Resolving performs a fresh page lookup whenever the target's cached handle
// is missing or was resolved under an older generation. RetryPending drops
// the cached handle and bumps the generation, so the retry always looks the
// locator up again.
//
// An Actuator and its Targets belong to one worker and are not safe for
// concurrent use.
package actuator

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/entrhq/uirun/pkg/driver"
	"github.com/entrhq/uirun/pkg/logging"
	"github.com/entrhq/uirun/pkg/metrics"
)

// DefaultTimeout bounds each precondition wait.
const DefaultTimeout = 10 * time.Second

const maxAttempts = 2

type state int

const (
	stateResolving state = iota
	stateActing
	stateRetryPending
	stateSucceeded
	stateFailed
)

// Target is a locator plus the element handle last resolved for it.
type Target struct {
	Locator string

	element    driver.Element
	generation uint64
}

// Locate creates a target for locator. Nothing is resolved until first use.
func Locate(locator string) *Target {
	return &Target{Locator: locator}
}

func (t *Target) invalidate() {
	t.element = nil
}

// Actuator drives one session's page.
type Actuator struct {
	page       driver.Page
	timeout    time.Duration
	generation atomic.Uint64
	logger     *logging.Logger
}

// Option configures an Actuator.
type Option func(*Actuator)

// WithTimeout sets the precondition wait bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Actuator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Actuator) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an actuator over page.
func New(page driver.Page, opts ...Option) *Actuator {
	a := &Actuator{
		page:    page,
		timeout: DefaultTimeout,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Timeout returns the precondition wait bound.
func (a *Actuator) Timeout() time.Duration {
	return a.timeout
}

// Generation returns the current element cache generation.
func (a *Actuator) Generation() uint64 {
	return a.generation.Load()
}

// Invalidate bumps the generation; every cached handle is looked up again
// on its next use. Call it after anything that replaces the DOM.
func (a *Actuator) Invalidate() {
	a.generation.Add(1)
}

// Open navigates the page to url and invalidates cached handles.
func (a *Actuator) Open(url string) error {
	defer a.Invalidate()
	return a.page.Navigate(url)
}

// CurrentURL returns the page's current URL.
func (a *Actuator) CurrentURL() string {
	return a.page.URL()
}

// Click waits for t to be clickable and clicks it.
func (a *Actuator) Click(t *Target) error {
	return a.run("click", t, driver.Clickable, func(el driver.Element) error {
		return el.Click(a.timeout)
	})
}

// Type waits for t to be visible and replaces its value with text.
func (a *Actuator) Type(t *Target, text string) error {
	return a.run("type", t, driver.Visible, func(el driver.Element) error {
		return el.Fill(text, a.timeout)
	})
}

// ReadText waits for t to be visible and returns its rendered text.
func (a *Actuator) ReadText(t *Target) (string, error) {
	var text string
	err := a.run("readText", t, driver.Visible, func(el driver.Element) error {
		var err error
		text, err = el.Text()
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// IsVisible reports whether t becomes visible within the wait bound. Every
// failure, including repeated staleness, reads as false.
func (a *Actuator) IsVisible(t *Target) bool {
	var visible bool
	err := a.run("isVisible", t, driver.Visible, func(el driver.Element) error {
		var err error
		visible, err = el.Visible()
		return err
	})
	return err == nil && visible
}

func (a *Actuator) run(action string, t *Target, cond driver.Condition, act func(driver.Element) error) error {
	var (
		st      = stateResolving
		attempt = 1
		el      driver.Element
		err     error
	)

	for {
		switch st {
		case stateResolving:
			el, err = a.resolve(t, cond)
			st = transition(st, err, attempt)

		case stateActing:
			err = act(el)
			st = transition(st, err, attempt)

		case stateRetryPending:
			metrics.RecordRetry(action)
			a.logger.Warnf("%s on %q hit a stale element, retrying with a fresh lookup: %v", action, t.Locator, err)
			t.invalidate()
			a.Invalidate()
			attempt++
			st = stateResolving

		case stateSucceeded:
			return nil

		case stateFailed:
			kind := Unrecoverable
			if driver.IsTimeout(err) {
				kind = Timeout
			}
			metrics.RecordInteractionFailure(action, kind.String())
			ierr := newInteractionError(kind, action, t.Locator, attempt, err)
			a.logger.Warnf("%v", ierr)
			return ierr
		}
	}
}

func transition(from state, err error, attempt int) state {
	switch {
	case err == nil && from == stateResolving:
		return stateActing
	case err == nil:
		return stateSucceeded
	case driver.IsStale(err) && attempt < maxAttempts:
		return stateRetryPending
	default:
		return stateFailed
	}
}

// resolve returns t's element for the current generation, looking it up if
// needed, once it satisfies cond. The lookup and the wait share one timeout.
func (a *Actuator) resolve(t *Target, cond driver.Condition) (driver.Element, error) {
	deadline := time.Now().Add(a.timeout)
	gen := a.Generation()
	if t.element == nil || t.generation < gen {
		el, err := a.page.Resolve(t.Locator, a.timeout)
		if err != nil {
			return nil, err
		}
		t.element, t.generation = el, gen
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return nil, fmt.Errorf("%s not %s within %s: %w", t.Locator, cond, a.timeout, driver.ErrTimeout)
	}
	if err := t.element.WaitFor(cond, remaining); err != nil {
		return nil, err
	}
	return t.element, nil
}

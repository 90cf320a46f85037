// Package driver is the narrow surface uirun needs from a browser automation
// driver. The playwright adapter lives in playwright.go; tests use the
// scriptable fake in drivertest.
//
// Drivers report two conditions through sentinel errors that callers match
// with errors.Is:
//
//   - ErrStale: the element handle no longer refers to a node in the live
//     DOM (the page re-rendered or navigated since it was resolved).
//   - ErrTimeout: a wait or lookup did not complete within its bound.
package driver

import (
	"errors"
	"time"
)

var (
	// ErrStale marks an element reference invalidated by a DOM change.
	ErrStale = errors.New("stale element reference")

	// ErrTimeout marks a wait or lookup that exceeded its bound.
	ErrTimeout = errors.New("timed out")
)

// Condition is a precondition an element must satisfy before an action.
type Condition int

const (
	// Visible requires the element to be rendered with a non-empty box.
	Visible Condition = iota
	// Clickable requires the element to be visible and enabled.
	Clickable
)

func (c Condition) String() string {
	switch c {
	case Visible:
		return "visible"
	case Clickable:
		return "clickable"
	default:
		return "unknown"
	}
}

// Page is one browser tab owned by a session.
type Page interface {
	// Resolve performs a fresh lookup of locator against the current DOM.
	// It never returns a cached handle.
	Resolve(locator string, timeout time.Duration) (Element, error)

	// Navigate loads url and waits for the load event.
	Navigate(url string) error

	// URL returns the current page URL.
	URL() string

	// Screenshot captures the viewport as PNG.
	Screenshot() ([]byte, error)

	// Content returns the serialized DOM.
	Content() (string, error)

	// Evaluate runs a script expression in the page.
	Evaluate(expression string, arg any) (any, error)
}

// Element is a handle to one DOM node, valid until the DOM changes.
type Element interface {
	// WaitFor blocks until the element satisfies cond or timeout elapses.
	WaitFor(cond Condition, timeout time.Duration) error

	Click(timeout time.Duration) error

	// Fill replaces the element's value with text.
	Fill(text string, timeout time.Duration) error

	// Text returns the rendered text of the element.
	Text() (string, error)

	// Visible reports whether the element is currently rendered.
	Visible() (bool, error)
}

// IsStale reports whether err signals an invalidated element reference.
func IsStale(err error) bool {
	return errors.Is(err, ErrStale)
}

// IsTimeout reports whether err signals an exceeded wait bound.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

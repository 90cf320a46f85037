// Package drivertest provides a scriptable in-memory driver.Page for tests.
//
// Elements are registered on a FakePage by locator. Every Resolve hands out
// a fresh handle bound to the element's current DOM generation; Detach bumps
// that generation so previously resolved handles report driver.ErrStale
// forever, exactly like a re-rendered node. StaleOnWait and StaleOnAction
// inject a fixed number of staleness signals independent of handles.
package drivertest

import (
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/uirun/pkg/driver"
)

// Always makes a stale counter fire on every operation.
const Always = -1

// FakeElement is one scripted DOM node.
type FakeElement struct {
	mu sync.Mutex

	text     string
	value    string
	hidden   bool
	disabled bool

	// NeverReady makes every precondition wait time out.
	NeverReady bool

	// StaleOnWait is the number of upcoming waits that report staleness.
	StaleOnWait int

	// StaleOnAction is the number of upcoming actions (click, fill, text,
	// visible) that report staleness.
	StaleOnAction int

	// ActionErr, when set, is returned by every action.
	ActionErr error

	// OnClick runs after a successful click, outside the element lock.
	OnClick func()

	// WaitDelay is how long a precondition wait takes to settle. A wait
	// whose timeout is shorter gives up at the timeout.
	WaitDelay time.Duration

	generation int
	clicks     int
	fills      int
	reads      int
	waits      int
}

// NewElement creates a visible, enabled element with the given text.
func NewElement(text string) *FakeElement {
	return &FakeElement{text: text}
}

// SetText changes the rendered text.
func (e *FakeElement) SetText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = text
}

// SetHidden toggles visibility.
func (e *FakeElement) SetHidden(hidden bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hidden = hidden
}

// SetDisabled toggles the enabled state.
func (e *FakeElement) SetDisabled(disabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disabled = disabled
}

// Detach simulates a re-render: handles resolved before this call go stale.
func (e *FakeElement) Detach() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
}

// Value returns the last filled value.
func (e *FakeElement) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Clicks returns the number of successful clicks.
func (e *FakeElement) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Fills returns the number of successful fills.
func (e *FakeElement) Fills() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fills
}

// Reads returns the number of successful text reads.
func (e *FakeElement) Reads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reads
}

// Waits returns the number of precondition waits attempted.
func (e *FakeElement) Waits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waits
}

func consume(counter *int) bool {
	switch {
	case *counter < 0:
		return true
	case *counter > 0:
		*counter--
		return true
	default:
		return false
	}
}

// FakePage is an in-memory driver.Page.
type FakePage struct {
	mu       sync.Mutex
	elements map[string]*FakeElement
	resolves map[string]int
	url      string
	visited  []string
	scripts  []Script

	// NavigateErr is returned by Navigate when set.
	NavigateErr error

	// EvaluateErr is returned by Evaluate when set.
	EvaluateErr error

	// ScreenshotData and ScreenshotErr drive Screenshot.
	ScreenshotData []byte
	ScreenshotErr  error

	// HTML is returned by Content.
	HTML string

	// ResolveDelay is how long a lookup takes to find its element. A lookup
	// whose timeout is shorter gives up at the timeout.
	ResolveDelay time.Duration
}

// Script is one recorded Evaluate call.
type Script struct {
	Expression string
	Arg        any
}

// NewPage creates an empty page at about:blank.
func NewPage() *FakePage {
	return &FakePage{
		elements:       make(map[string]*FakeElement),
		resolves:       make(map[string]int),
		url:            "about:blank",
		ScreenshotData: []byte("\x89PNG fake"),
		HTML:           "<html><body></body></html>",
	}
}

// Add registers el under locator, replacing any previous element.
func (p *FakePage) Add(locator string, el *FakeElement) *FakeElement {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[locator] = el
	return el
}

// Remove drops locator from the DOM; later lookups time out.
func (p *FakePage) Remove(locator string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, locator)
}

// Element returns the element registered under locator, or nil.
func (p *FakePage) Element(locator string) *FakeElement {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elements[locator]
}

// Resolves returns how many lookups were made for locator.
func (p *FakePage) Resolves(locator string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolves[locator]
}

// SetURL changes the current URL without recording a navigation.
func (p *FakePage) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// Visited returns every URL passed to Navigate.
func (p *FakePage) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

// Scripts returns every recorded Evaluate call.
func (p *FakePage) Scripts() []Script {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Script(nil), p.scripts...)
}

// settle sleeps for delay, capped at timeout, and reports whether the delay
// fit in the timeout.
func settle(delay, timeout time.Duration) bool {
	if delay <= 0 {
		return true
	}
	if delay > timeout {
		time.Sleep(max(timeout, 0))
		return false
	}
	time.Sleep(delay)
	return true
}

func (p *FakePage) Resolve(locator string, timeout time.Duration) (driver.Element, error) {
	p.mu.Lock()
	delay := p.ResolveDelay
	p.mu.Unlock()
	settled := settle(delay, timeout)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolves[locator]++
	if !settled {
		return nil, fmt.Errorf("resolve %q after %s: %w", locator, timeout, driver.ErrTimeout)
	}
	el, ok := p.elements[locator]
	if !ok {
		return nil, fmt.Errorf("resolve %q after %s: %w", locator, timeout, driver.ErrTimeout)
	}
	el.mu.Lock()
	gen := el.generation
	el.mu.Unlock()
	return &handle{el: el, generation: gen, locator: locator}, nil
}

func (p *FakePage) Navigate(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visited = append(p.visited, url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.url = url
	return nil
}

func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *FakePage) Screenshot() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return p.ScreenshotData, nil
}

func (p *FakePage) Content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.HTML, nil
}

func (p *FakePage) Evaluate(expression string, arg any) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts = append(p.scripts, Script{Expression: expression, Arg: arg})
	if p.EvaluateErr != nil {
		return nil, p.EvaluateErr
	}
	return nil, nil
}

// handle is a resolved reference to a FakeElement at one generation.
type handle struct {
	el         *FakeElement
	generation int
	locator    string
}

func (h *handle) staleLocked(counter *int) error {
	if h.generation != h.el.generation || consume(counter) {
		return fmt.Errorf("%s: %w", h.locator, driver.ErrStale)
	}
	return nil
}

func (h *handle) WaitFor(cond driver.Condition, timeout time.Duration) error {
	h.el.mu.Lock()
	delay := h.el.WaitDelay
	h.el.mu.Unlock()
	settled := settle(delay, timeout)

	h.el.mu.Lock()
	defer h.el.mu.Unlock()
	h.el.waits++
	if err := h.staleLocked(&h.el.StaleOnWait); err != nil {
		return err
	}
	ready := settled && !h.el.NeverReady && !h.el.hidden
	if cond == driver.Clickable && h.el.disabled {
		ready = false
	}
	if !ready {
		return fmt.Errorf("%s not %s after %s: %w", h.locator, cond, timeout, driver.ErrTimeout)
	}
	return nil
}

func (h *handle) Click(time.Duration) error {
	h.el.mu.Lock()
	if err := h.act(); err != nil {
		h.el.mu.Unlock()
		return err
	}
	h.el.clicks++
	onClick := h.el.OnClick
	h.el.mu.Unlock()

	if onClick != nil {
		onClick()
	}
	return nil
}

func (h *handle) Fill(text string, _ time.Duration) error {
	h.el.mu.Lock()
	defer h.el.mu.Unlock()
	if err := h.act(); err != nil {
		return err
	}
	h.el.fills++
	h.el.value = text
	return nil
}

func (h *handle) Text() (string, error) {
	h.el.mu.Lock()
	defer h.el.mu.Unlock()
	if err := h.act(); err != nil {
		return "", err
	}
	h.el.reads++
	return h.el.text, nil
}

func (h *handle) Visible() (bool, error) {
	h.el.mu.Lock()
	defer h.el.mu.Unlock()
	if err := h.act(); err != nil {
		return false, err
	}
	return !h.el.hidden, nil
}

// act must be called with the element lock held.
func (h *handle) act() error {
	if err := h.staleLocked(&h.el.StaleOnAction); err != nil {
		return err
	}
	return h.el.ActionErr
}

package driver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Playwright error texts that mean the handle outlived its DOM node or its
// execution context.
var staleMarkers = []string{
	"not attached to the dom",
	"element is not attached",
	"element is detached",
	"execution context was destroyed",
	"jshandle is disposed",
	"cannot find context with specified id",
}

// classifiedError keeps the driver's own error text while also matching
// one of the package sentinels.
type classifiedError struct {
	kind error
	err  error
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() []error {
	return []error{e.kind, e.err}
}

// classify maps a playwright error onto ErrStale or ErrTimeout where it
// applies and returns every other error unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return &classifiedError{kind: ErrTimeout, err: err}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range staleMarkers {
		if strings.Contains(msg, marker) {
			return &classifiedError{kind: ErrStale, err: err}
		}
	}
	return err
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

// PlaywrightPage adapts a playwright.Page to Page.
type PlaywrightPage struct {
	page    playwright.Page
	loadTTL time.Duration
}

// NewPlaywrightPage wraps page. pageLoad bounds Navigate; zero uses the
// page's default timeout.
func NewPlaywrightPage(page playwright.Page, pageLoad time.Duration) *PlaywrightPage {
	return &PlaywrightPage{page: page, loadTTL: pageLoad}
}

// Raw exposes the underlying playwright page.
func (p *PlaywrightPage) Raw() playwright.Page {
	return p.page
}

func (p *PlaywrightPage) Resolve(locator string, timeout time.Duration) (Element, error) {
	state := playwright.WaitForSelectorState("attached")
	handle, err := p.page.WaitForSelector(locator, playwright.PageWaitForSelectorOptions{
		State:   &state,
		Timeout: millis(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", locator, classify(err))
	}
	if handle == nil {
		return nil, fmt.Errorf("resolve %q: %w", locator, ErrTimeout)
	}
	return &playwrightElement{handle: handle}, nil
}

func (p *PlaywrightPage) Navigate(url string) error {
	waitUntil := playwright.WaitUntilState("load")
	opts := playwright.PageGotoOptions{WaitUntil: &waitUntil}
	if p.loadTTL > 0 {
		opts.Timeout = millis(p.loadTTL)
	}
	if _, err := p.page.Goto(url, opts); err != nil {
		return fmt.Errorf("navigation failed: %w", classify(err))
	}
	return nil
}

func (p *PlaywrightPage) URL() string {
	return p.page.URL()
}

func (p *PlaywrightPage) Screenshot() ([]byte, error) {
	data, err := p.page.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

func (p *PlaywrightPage) Content() (string, error) {
	html, err := p.page.Content()
	if err != nil {
		return "", fmt.Errorf("content failed: %w", err)
	}
	return html, nil
}

func (p *PlaywrightPage) Evaluate(expression string, arg any) (any, error) {
	result, err := p.page.Evaluate(expression, arg)
	if err != nil {
		return nil, fmt.Errorf("evaluate failed: %w", classify(err))
	}
	return result, nil
}

type playwrightElement struct {
	handle playwright.ElementHandle
}

func (e *playwrightElement) WaitFor(cond Condition, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	states := []string{"visible"}
	if cond == Clickable {
		states = append(states, "enabled")
	}
	for _, s := range states {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("wait for %s: %w", cond, ErrTimeout)
		}
		err := e.handle.WaitForElementState(playwright.ElementState(s), playwright.ElementHandleWaitForElementStateOptions{
			Timeout: millis(remaining),
		})
		if err != nil {
			return fmt.Errorf("wait for %s: %w", cond, classify(err))
		}
	}
	return nil
}

func (e *playwrightElement) Click(timeout time.Duration) error {
	if err := e.handle.Click(playwright.ElementHandleClickOptions{Timeout: millis(timeout)}); err != nil {
		return fmt.Errorf("click failed: %w", classify(err))
	}
	return nil
}

func (e *playwrightElement) Fill(text string, timeout time.Duration) error {
	if err := e.handle.Fill(text, playwright.ElementHandleFillOptions{Timeout: millis(timeout)}); err != nil {
		return fmt.Errorf("fill failed: %w", classify(err))
	}
	return nil
}

func (e *playwrightElement) Text() (string, error) {
	text, err := e.handle.InnerText()
	if err != nil {
		return "", fmt.Errorf("read text failed: %w", classify(err))
	}
	return text, nil
}

func (e *playwrightElement) Visible() (bool, error) {
	visible, err := e.handle.IsVisible()
	if err != nil {
		return false, fmt.Errorf("visibility check failed: %w", classify(err))
	}
	return visible, nil
}

package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/entrhq/uirun/pkg/driver"
)

// maxReasonLength bounds the status reason shown on provider dashboards.
const maxReasonLength = 255

// Session is one live browser automation context owned by a single worker.
type Session struct {
	ID            string
	OwnerWorkerID string
	Target        Target
	CreatedAt     time.Time

	page driver.Page

	quit     func() error
	quitOnce sync.Once
	quitErr  error
}

// New assembles a session around an already-open page. quit releases every
// resource behind the page and runs at most once.
func New(id, workerID string, target Target, page driver.Page, quit func() error) *Session {
	return &Session{
		ID:            id,
		OwnerWorkerID: workerID,
		Target:        target,
		CreatedAt:     time.Now(),
		page:          page,
		quit:          quit,
	}
}

// Page returns the session's browser tab.
func (s *Session) Page() driver.Page {
	return s.page
}

// Quit closes the browser context. Safe to call multiple times; later calls
// return the first call's error.
func (s *Session) Quit() error {
	s.quitOnce.Do(func() {
		if s.quit != nil {
			s.quitErr = s.quit()
		}
	})
	return s.quitErr
}

// ReportStatus tells a remote provider's dashboard whether the test passed.
// It is a no-op for local sessions. Failures are *ProviderStatusError.
func (s *Session) ReportStatus(passed bool, reason string) error {
	if !s.Target.Remote() {
		return nil
	}

	status := "failed"
	if passed {
		status = "passed"
	}
	reason = truncateReason(reason)

	var prefix string
	var payload map[string]any
	switch s.Target.Kind {
	case KindBrowserStack:
		prefix = "browserstack_executor: "
		payload = map[string]any{
			"action": "setSessionStatus",
			"arguments": map[string]string{
				"status": status,
				"reason": reason,
			},
		}
	case KindLambdaTest:
		prefix = "lambdatest_action: "
		payload = map[string]any{
			"action": "setTestStatus",
			"arguments": map[string]string{
				"status": status,
				"remark": reason,
			},
		}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return &ProviderStatusError{Provider: s.Target.Kind, Err: err}
	}
	if _, err := s.page.Evaluate("_ => {}", prefix+string(encoded)); err != nil {
		return &ProviderStatusError{Provider: s.Target.Kind, Err: fmt.Errorf("status callback: %w", err)}
	}
	return nil
}

// truncateReason cuts reason to at most maxReasonLength bytes without
// splitting a rune.
func truncateReason(reason string) string {
	if len(reason) <= maxReasonLength {
		return reason
	}
	n := maxReasonLength
	for n > 0 && !utf8.RuneStart(reason[n]) {
		n--
	}
	return reason[:n]
}

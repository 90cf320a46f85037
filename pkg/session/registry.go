package session

import (
	"fmt"
	"sync"

	"github.com/entrhq/uirun/pkg/metrics"
)

// Registry maps worker ids to their bound session. Each worker only touches
// its own key, so workers never contend on a shared lock.
type Registry struct {
	sessions sync.Map // workerID -> *Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Bind attaches s to workerID. It fails with ErrWorkerBusy if the worker
// already owns a session.
func (r *Registry) Bind(workerID string, s *Session) error {
	if s == nil {
		return fmt.Errorf("cannot bind nil session to %s", workerID)
	}
	if _, loaded := r.sessions.LoadOrStore(workerID, s); loaded {
		return fmt.Errorf("%w: %s", ErrWorkerBusy, workerID)
	}
	metrics.SessionBound()
	return nil
}

// Get returns the session bound to workerID.
func (r *Registry) Get(workerID string) (*Session, bool) {
	v, ok := r.sessions.Load(workerID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Unbind detaches and returns the worker's session, or nil if none was
// bound. Safe to call repeatedly.
func (r *Registry) Unbind(workerID string) *Session {
	v, ok := r.sessions.LoadAndDelete(workerID)
	if !ok {
		return nil
	}
	metrics.SessionReleased()
	return v.(*Session)
}

// Release quits the worker's session and then unbinds it. The slot is freed
// even when quit fails; the quit error is returned.
func (r *Registry) Release(workerID string) error {
	s, ok := r.Get(workerID)
	if !ok {
		return nil
	}
	err := s.Quit()
	if r.sessions.CompareAndDelete(workerID, s) {
		metrics.SessionReleased()
	}
	if err != nil {
		return fmt.Errorf("quit session %s for %s: %w", s.ID, workerID, err)
	}
	return nil
}

// Len returns the number of bound sessions.
func (r *Registry) Len() int {
	n := 0
	r.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

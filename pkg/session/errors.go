package session

import (
	"errors"
	"fmt"
)

// ErrWorkerBusy is returned by Registry.Bind when the worker already owns a
// session.
var ErrWorkerBusy = errors.New("worker already has a bound session")

// ProvisioningKind classifies why a session could not be created.
type ProvisioningKind int

const (
	// MissingCredentials means a remote provider's username or access key
	// was absent or empty.
	MissingCredentials ProvisioningKind = iota
	// UnsupportedTarget means the execution env or browser is not known.
	UnsupportedTarget
	// LaunchFailure means the driver, browser or remote connection failed.
	LaunchFailure
)

func (k ProvisioningKind) String() string {
	switch k {
	case MissingCredentials:
		return "missing_credentials"
	case UnsupportedTarget:
		return "unsupported_target"
	case LaunchFailure:
		return "launch_failure"
	default:
		return "unknown"
	}
}

// ProvisioningError is returned when a session cannot be created.
type ProvisioningError struct {
	Kind     ProvisioningKind
	WorkerID string
	Target   string
	Err      error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %s session for %s failed (%s): %v", e.Target, e.WorkerID, e.Kind, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// IsProvisioningKind reports whether err is a ProvisioningError of kind.
func IsProvisioningKind(err error, kind ProvisioningKind) bool {
	var perr *ProvisioningError
	return errors.As(err, &perr) && perr.Kind == kind
}

// ProviderStatusError is returned when a remote dashboard could not be told
// a test's outcome. Callers ignore it.
type ProviderStatusError struct {
	Provider Kind
	Err      error
}

func (e *ProviderStatusError) Error() string {
	return fmt.Sprintf("reporting status to %s failed: %v", e.Provider, e.Err)
}

func (e *ProviderStatusError) Unwrap() error {
	return e.Err
}

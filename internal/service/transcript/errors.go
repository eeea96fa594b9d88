package transcript

import (
	"errors"
	"fmt"
)

// Errors returned by the Controller.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAlreadyOpen     = errors.New("session already open")
	ErrMalformedEvent  = errors.New("malformed event")
	ErrInvalidConfig   = errors.New("invalid session config")
)

// HookExecutionError wraps a failure (returned error or panic) raised by a
// registered hook. It never aborts the event that triggered the hook.
type HookExecutionError struct {
	SessionID string
	Hook      string
	Err       error
}

func (e *HookExecutionError) Error() string {
	return fmt.Sprintf("hook %s failed for session %s: %v", e.Hook, e.SessionID, e.Err)
}

func (e *HookExecutionError) Unwrap() error {
	return e.Err
}

// ProviderError is an error reported by the speech-recognition provider via
// a ProviderStatus event. The engine forwards it and never reconnects.
type ProviderError struct {
	SessionID string
	Detail    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error for session %s: %s", e.SessionID, e.Detail)
}

package transcript

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a session.
type State int

const (
	// StateConnected - provider handshake done, events flowing.
	StateConnected State = iota
	// StateDisconnected - provider reported close; session still registered
	// until the caller closes it.
	StateDisconnected
	// StateClosed - flushed and removed. Terminal.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal.
func (s State) IsTerminal() bool {
	return s == StateClosed
}

var errSessionClosed = errors.New("session is closed")

// Lifecycle manages the connection state machine for one session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	CONNECTED ⇄ DISCONNECTED
//	    │            │
//	    └── Close() ─┴──→ CLOSED (once)
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a lifecycle in CONNECTED state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateConnected}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Connected reports whether the provider is currently connected.
func (l *Lifecycle) Connected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateConnected
}

// IsClosed returns true once Close has been called.
func (l *Lifecycle) IsClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.IsTerminal()
}

// MarkConnected transitions back to CONNECTED after a provider reconnect.
func (l *Lifecycle) MarkConnected() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return errSessionClosed
	}
	l.state = StateConnected
	return nil
}

// MarkDisconnected records a provider-side close.
func (l *Lifecycle) MarkDisconnected() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return errSessionClosed
	}
	l.state = StateDisconnected
	return nil
}

// Close transitions to CLOSED. Returns false if already closed.
func (l *Lifecycle) Close() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateClosed
	return true
}

package transcript

import (
	"sync"
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle()

	if lc.State() != StateConnected {
		t.Errorf("expected StateConnected, got %v", lc.State())
	}
	if !lc.Connected() {
		t.Error("expected Connected to be true")
	}
	if lc.IsClosed() {
		t.Error("expected IsClosed to be false")
	}
}

func TestLifecycle_DisconnectAndReconnect(t *testing.T) {
	lc := NewLifecycle()

	if err := lc.MarkDisconnected(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc.State() != StateDisconnected || lc.Connected() {
		t.Errorf("expected StateDisconnected, got %v", lc.State())
	}

	if err := lc.MarkConnected(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc.State() != StateConnected {
		t.Errorf("expected StateConnected, got %v", lc.State())
	}
}

func TestLifecycle_CloseOnce(t *testing.T) {
	lc := NewLifecycle()

	if !lc.Close() {
		t.Error("first Close should return true")
	}
	if lc.Close() {
		t.Error("second Close should return false")
	}
	if !lc.IsClosed() || lc.Connected() {
		t.Errorf("expected closed and disconnected, got %v", lc.State())
	}
}

func TestLifecycle_TransitionsAfterClose(t *testing.T) {
	lc := NewLifecycle()
	lc.Close()

	if err := lc.MarkConnected(); err != errSessionClosed {
		t.Errorf("expected errSessionClosed, got %v", err)
	}
	if err := lc.MarkDisconnected(); err != errSessionClosed {
		t.Errorf("expected errSessionClosed, got %v", err)
	}
	if lc.State() != StateClosed {
		t.Errorf("expected StateClosed, got %v", lc.State())
	}
}

func TestLifecycle_ConcurrentClose(t *testing.T) {
	lc := NewLifecycle()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		closed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lc.Close() {
				mu.Lock()
				closed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if closed != 1 {
		t.Errorf("expected exactly one successful Close, got %d", closed)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateConnected, "CONNECTED"},
		{StateDisconnected, "DISCONNECTED"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	if StateConnected.IsTerminal() || StateDisconnected.IsTerminal() {
		t.Error("only CLOSED is terminal")
	}
	if !StateClosed.IsTerminal() {
		t.Error("expected CLOSED to be terminal")
	}
}

package action

import (
	"context"
	"testing"
	"time"

	"github.com/kvance/remapd/internal/input"
)

func startHost(t *testing.T) *ScriptHost {
	t.Helper()
	host := NewScriptHost(8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		host.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("script host did not stop")
		}
	})
	return host
}

func TestScriptActionInvokesHandler(t *testing.T) {
	host := startHost(t)
	script := `
		count = 0
		function on_event(ev)
			count = count + 1
			last_value = ev.value
			return true
		end
	`
	if err := host.Load(context.Background(), "test", script); err != nil {
		t.Fatalf("Load: %v", err)
	}

	act := NewScriptAction(host, "on_event")
	f, err := act.Functor()
	if err != nil {
		t.Fatalf("Functor: %v", err)
	}

	cont, err := f.Process(input.Event{Type: input.TypeJoystickAxis}, &Value{Current: 0.5})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !cont {
		t.Error("handler returning true should report success")
	}
}

func TestScriptActionReturnsHandlerResult(t *testing.T) {
	host := startHost(t)
	if err := host.Load(context.Background(), "test",
		`function swallow(ev) return false end`); err != nil {
		t.Fatalf("Load: %v", err)
	}

	f, err := NewScriptAction(host, "swallow").Functor()
	if err != nil {
		t.Fatalf("Functor: %v", err)
	}
	cont, err := f.Process(input.Event{}, &Value{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if cont {
		t.Error("handler result should surface as the process result")
	}
}

func TestScriptActionMissingHandler(t *testing.T) {
	host := startHost(t)
	f, err := NewScriptAction(host, "nope").Functor()
	if err != nil {
		t.Fatalf("Functor: %v", err)
	}
	if _, err := f.Process(input.Event{}, &Value{}); err == nil {
		t.Error("missing handler should surface an error")
	}
}

func TestScriptHostClosed(t *testing.T) {
	host := NewScriptHost(1)
	host.Close()
	err := host.Do(context.Background(), nil)
	if err != ErrScriptHostClosed {
		t.Errorf("Do on closed host = %v, want ErrScriptHostClosed", err)
	}
}

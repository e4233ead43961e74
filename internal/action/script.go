package action

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/kvance/remapd/internal/input"
)

// ErrScriptHostClosed is returned when a closed script host is used.
var ErrScriptHostClosed = errors.New("script host is closed")

// scriptCall carries one Lua operation to the host goroutine.
type scriptCall struct {
	fn     func(L *lua.LState) error
	result chan error
}

// ScriptHost owns a Lua state and serializes every operation on it
// through a single goroutine. gopher-lua's LState is not
// goroutine-safe, while events may arrive from any source goroutine,
// so script actions never touch the state directly.
type ScriptHost struct {
	L     *lua.LState
	queue chan *scriptCall
	done  chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewScriptHost creates a host around a fresh Lua state. Run must be
// started before any script action fires.
func NewScriptHost(queueSize int) *ScriptHost {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &ScriptHost{
		L:     lua.NewState(),
		queue: make(chan *scriptCall, queueSize),
		done:  make(chan struct{}),
	}
}

// Run processes queued operations until the context is cancelled or
// Close is called. It owns the Lua state for its whole lifetime.
func (h *ScriptHost) Run(ctx context.Context) {
	defer h.L.Close()
	for {
		select {
		case <-ctx.Done():
			h.drain(ctx.Err())
			return
		case <-h.done:
			h.drain(ErrScriptHostClosed)
			return
		case call := <-h.queue:
			err := h.execute(call)
			select {
			case call.result <- err:
			default:
			}
			close(call.result)
		}
	}
}

func (h *ScriptHost) execute(call *scriptCall) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = v
			case string:
				err = errors.New(v)
			default:
				err = errors.New("lua panic")
			}
		}
	}()
	return call.fn(h.L)
}

func (h *ScriptHost) drain(err error) {
	for {
		select {
		case call := <-h.queue:
			select {
			case call.result <- err:
			default:
			}
			close(call.result)
		default:
			return
		}
	}
}

// Do runs fn on the host goroutine and waits for it to finish.
func (h *ScriptHost) Do(ctx context.Context, fn func(L *lua.LState) error) error {
	if h.closed.Load() {
		return ErrScriptHostClosed
	}
	call := &scriptCall{fn: fn, result: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrScriptHostClosed
	case h.queue <- call:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-call.result:
		if !ok {
			return ErrScriptHostClosed
		}
		return err
	}
}

// Load compiles and runs a script chunk, typically to define the
// handler functions later referenced by script actions.
func (h *ScriptHost) Load(ctx context.Context, name, source string) error {
	return h.Do(ctx, func(L *lua.LState) error {
		fn, err := L.LoadString(source)
		if err != nil {
			return fmt.Errorf("load script %s: %w", name, err)
		}
		L.Push(fn)
		return L.PCall(0, 0, nil)
	})
}

// Close stops the host. Queued operations complete with
// ErrScriptHostClosed.
func (h *ScriptHost) Close() {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		close(h.done)
	})
}

// ScriptAction invokes a Lua handler function for each processed
// event. The handler receives a table with the event's type, value,
// press state, and mode; its first return value becomes the node's
// process result.
type ScriptAction struct {
	Host    *ScriptHost
	Handler string

	prio int
}

// NewScriptAction binds a handler function name on the host.
func NewScriptAction(host *ScriptHost, handler string) *ScriptAction {
	return &ScriptAction{Host: host, Handler: handler}
}

func (a *ScriptAction) Describe() string {
	return fmt.Sprintf("script %s", a.Handler)
}

func (a *ScriptAction) Priority() int                    { return a.prio }
func (a *ScriptAction) Activation() *ActivationCondition { return nil }
func (a *ScriptAction) DefaultActivation() Comparison    { return Always }

func (a *ScriptAction) Functor() (Functor, error) {
	if a.Host == nil {
		return nil, ErrNoFunctor
	}
	return scriptFunctor{a}, nil
}

type scriptFunctor struct {
	act *ScriptAction
}

func (f scriptFunctor) Process(ev input.Event, val *Value) (bool, error) {
	cont := true
	err := f.act.Host.Do(context.Background(), func(L *lua.LState) error {
		handler := L.GetGlobal(f.act.Handler)
		if handler == lua.LNil {
			return fmt.Errorf("script handler %q not defined", f.act.Handler)
		}

		tbl := L.NewTable()
		L.SetField(tbl, "type", lua.LString(ev.Type.String()))
		L.SetField(tbl, "device", lua.LString(string(ev.Device)))
		L.SetField(tbl, "value", lua.LNumber(val.Current))
		L.SetField(tbl, "pressed", lua.LBool(val.Pressed))
		L.SetField(tbl, "mode", lua.LString(ev.Mode))

		L.Push(handler)
		L.Push(tbl)
		if err := L.PCall(1, 1, nil); err != nil {
			return err
		}
		ret := L.Get(-1)
		L.Pop(1)
		if b, ok := ret.(lua.LBool); ok {
			cont = bool(b)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return cont, nil
}

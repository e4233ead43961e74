package dispatch

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kvance/remapd/internal/action"
	"github.com/kvance/remapd/internal/input"
	"github.com/kvance/remapd/internal/input/key"
	"github.com/kvance/remapd/internal/mode"
)

func buttonEvent(dev input.DeviceID, idx int, pressed bool) input.Event {
	return input.Event{
		Type:    input.TypeJoystickButton,
		Device:  dev,
		Ident:   idx,
		Pressed: pressed,
	}
}

func TestProcessEventInvokesRegisteredCallback(t *testing.T) {
	d := New(NewRuntimeContext("Default"))
	ev := buttonEvent("stick", 1, true)

	var got []input.Event
	d.AddCallback("Default", ev.LookupKey(), func(e input.Event) { got = append(got, e) }, false)

	d.ProcessEvent(ev)
	if len(got) != 1 {
		t.Fatalf("callback invoked %d times, want 1", len(got))
	}
	if !got[0].Pressed {
		t.Error("callback should see the delivered event")
	}
}

func TestProcessEventModeOverride(t *testing.T) {
	d := New(NewRuntimeContext("Default"))
	ev := buttonEvent("stick", 1, true)

	calls := 0
	d.AddCallback("Combat", ev.LookupKey(), func(input.Event) { calls++ }, false)

	d.ProcessEvent(ev)
	if calls != 0 {
		t.Fatal("callback for another mode must not fire")
	}

	ev.Mode = "Combat"
	d.ProcessEvent(ev)
	if calls != 1 {
		t.Errorf("mode override not honored, calls = %d", calls)
	}
}

func TestPauseSemantics(t *testing.T) {
	d := New(NewRuntimeContext("Default"))
	ev := buttonEvent("stick", 2, true)

	regular, permanent := 0, 0
	d.AddCallback("Default", ev.LookupKey(), func(input.Event) { regular++ }, false)
	d.AddCallback("Default", ev.LookupKey(), func(input.Event) { permanent++ }, true)

	d.Pause()
	d.ProcessEvent(ev)
	if regular != 0 || permanent != 1 {
		t.Fatalf("paused dispatch ran regular=%d permanent=%d, want 0/1", regular, permanent)
	}

	d.Resume()
	d.ProcessEvent(ev)
	if regular != 1 || permanent != 2 {
		t.Errorf("resumed dispatch ran regular=%d permanent=%d, want 1/2", regular, permanent)
	}
}

func TestDisabledItemDropsSilently(t *testing.T) {
	d := New(NewRuntimeContext("Default"))
	ev := buttonEvent("stick", 3, true)

	calls := 0
	d.AddCallback("Default", ev.LookupKey(), func(input.Event) { calls++ }, false)
	d.SetItem("Default", &mode.InputItem{
		Device:  "stick",
		Type:    input.TypeJoystickButton,
		Ident:   3,
		Enabled: false,
	})

	d.ProcessEvent(ev)
	if calls != 0 {
		t.Error("disabled input must not invoke callbacks")
	}
	if d.Stats().Dropped != 1 {
		t.Errorf("dropped = %d, want 1", d.Stats().Dropped)
	}
}

func TestLatchedFirstMatchWins(t *testing.T) {
	d := New(NewRuntimeContext("Default"))

	a := key.ScanPair{Code: 0x1E}
	ctrl := key.ScanPair{Code: 0x1D}
	combo := key.Key{Pair: a, Latched: []key.ScanPair{ctrl}}
	plain := key.Key{Pair: a}

	comboCalls, plainCalls := 0, 0
	d.AddLatchedCallback("Default", combo, func(input.Event) { comboCalls++ }, false)
	d.AddLatchedCallback("Default", plain, func(input.Event) { plainCalls++ }, false)

	state := key.NewState()
	state.Set(a, true)
	ev := input.Event{
		Type: input.TypeKeyboard, Device: input.DeviceKeyboard,
		Ident: a, Pressed: true, Snapshot: state,
	}

	// Only A down: the combo does not match, the plain key does.
	d.ProcessEvent(ev)
	if comboCalls != 0 || plainCalls != 1 {
		t.Fatalf("A alone fired combo=%d plain=%d, want 0/1", comboCalls, plainCalls)
	}

	// A with Ctrl down: the combo matches first and the plain key
	// must not double-fire for the same raw event.
	state2 := key.NewState()
	state2.Set(a, true)
	state2.Set(ctrl, true)
	ev.Snapshot = state2
	d.ProcessEvent(ev)
	if comboCalls != 1 || plainCalls != 1 {
		t.Errorf("A+Ctrl fired combo=%d plain=%d, want 1/1", comboCalls, plainCalls)
	}
}

func TestLatchedFiresOnCompanionEvent(t *testing.T) {
	d := New(NewRuntimeContext("Default"))

	a := key.ScanPair{Code: 0x1E}
	ctrl := key.ScanPair{Code: 0x1D}
	combo := key.Key{Pair: a, Latched: []key.ScanPair{ctrl}}

	calls := 0
	d.AddLatchedCallback("Default", combo, func(input.Event) { calls++ }, false)

	// A goes down first; the combo is still incomplete.
	state := key.NewState()
	state.Set(a, true)
	d.ProcessEvent(input.Event{
		Type: input.TypeKeyboard, Device: input.DeviceKeyboard,
		Ident: a, Pressed: true, Snapshot: state,
	})
	if calls != 0 {
		t.Fatalf("incomplete combination fired %d times", calls)
	}

	// Ctrl completes it, so the raw event carries the companion pair,
	// not the primary.
	state2 := key.NewState()
	state2.Set(a, true)
	state2.Set(ctrl, true)
	d.ProcessEvent(input.Event{
		Type: input.TypeKeyboard, Device: input.DeviceKeyboard,
		Ident: ctrl, Pressed: true, Snapshot: state2,
	})
	if calls != 1 {
		t.Errorf("combination completed by the companion fired %d times, want 1", calls)
	}
}

func TestLatchedReleaseFires(t *testing.T) {
	d := New(NewRuntimeContext("Default"))

	a := key.ScanPair{Code: 0x1E}
	var seen []bool
	d.AddLatchedCallback("Default", key.Key{Pair: a}, func(e input.Event) { seen = append(seen, e.Pressed) }, false)

	state := key.NewState()
	state.Set(a, true)
	d.ProcessEvent(input.Event{Type: input.TypeKeyboard, Device: input.DeviceKeyboard, Ident: a, Pressed: true, Snapshot: state})

	// The release arrives after the key left the snapshot.
	d.ProcessEvent(input.Event{Type: input.TypeKeyboard, Device: input.DeviceKeyboard, Ident: a, Pressed: false, Snapshot: key.NewState()})

	if len(seen) != 2 || !seen[0] || seen[1] {
		t.Errorf("press states = %v, want [true false]", seen)
	}
}

func TestCallbackPanicContained(t *testing.T) {
	d := New(NewRuntimeContext("Default"))
	ev := buttonEvent("stick", 4, true)

	calls := 0
	d.AddCallback("Default", ev.LookupKey(), func(input.Event) { panic("bad action") }, false)
	d.AddCallback("Default", ev.LookupKey(), func(input.Event) { calls++ }, false)

	d.ProcessEvent(ev)
	if calls != 1 {
		t.Error("sibling callbacks must run after a panic")
	}
}

func TestChangeModeProtocol(t *testing.T) {
	ctx := NewRuntimeContext("Default")
	d := New(ctx)

	var persisted []string
	ctx.OnModePersist(func(m string) { persisted = append(persisted, m) })

	var mu sync.Mutex
	events := make(map[string][]input.Event)
	record := func(name string) Callback {
		return func(e input.Event) {
			mu.Lock()
			events[name] = append(events[name], e)
			mu.Unlock()
		}
	}
	exitKey := input.Key{Device: input.DeviceMode, Type: input.TypeModeControl, Ident: input.TransitionExit}
	enterKey := input.Key{Device: input.DeviceMode, Type: input.TypeModeControl, Ident: input.TransitionEnter}
	d.AddCallback("Default", exitKey, record("default-exit"), false)
	d.AddCallback("Combat", enterKey, record("combat-enter"), false)

	if err := d.ChangeMode("Combat"); err != nil {
		t.Fatalf("ChangeMode: %v", err)
	}
	if got := ctx.Mode(); got != "Combat" {
		t.Errorf("mode = %q, want Combat", got)
	}
	if len(persisted) != 1 || persisted[0] != "Combat" {
		t.Errorf("persisted = %v, want [Combat]", persisted)
	}

	mu.Lock()
	exitPresses := len(events["default-exit"])
	enterPresses := len(events["combat-enter"])
	mu.Unlock()
	if exitPresses != 1 || enterPresses != 1 {
		t.Fatalf("presses exit=%d enter=%d, want 1/1", exitPresses, enterPresses)
	}

	// The delayed releases follow against the respective modes.
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		done := len(events["default-exit"]) == 2 && len(events["combat-enter"]) == 2
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("delayed mode-control releases never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if events["default-exit"][1].Pressed || events["combat-enter"][1].Pressed {
		t.Error("second transition event should be a release")
	}
}

func TestChangeModeRejectsUnknown(t *testing.T) {
	ctx := NewRuntimeContext("Default")
	d := New(ctx)
	d.AddCallback("Default", input.Key{Device: "x"}, func(input.Event) {}, false)

	err := d.ChangeMode("Nope")
	if !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("ChangeMode = %v, want ErrUnknownMode", err)
	}
	if ctx.Mode() != "Default" {
		t.Error("failed change must retain the prior mode")
	}
}

func TestInstallProfileInheritsParentBindings(t *testing.T) {
	tree := mode.NewTree()
	if _, err := tree.Add("Default", ""); err != nil {
		t.Fatal(err)
	}
	child, err := tree.Add("Combat", "Default")
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	parent, _ := tree.Find("Default")
	c := action.NewContainer("fire")
	c.AddSet(action.ActionSet{action.SimpleAction("count", action.FuncFunctor(
		func(input.Event, *action.Value) (bool, error) {
			calls++
			return true, nil
		}))})
	parent.SetItem(&mode.InputItem{
		Device: "stick", Type: input.TypeJoystickButton, Ident: 1,
		Enabled: true, Containers: []*action.Container{c},
	})

	// The child defines nothing; it inherits the parent binding.
	_ = child

	d := New(NewRuntimeContext("Combat"))
	if err := d.InstallProfile(tree); err != nil {
		t.Fatalf("InstallProfile: %v", err)
	}

	d.ProcessEvent(buttonEvent("stick", 1, true))
	if calls != 1 {
		t.Errorf("inherited binding ran %d times, want 1", calls)
	}

	// Mode change into the empty-but-known child parent is accepted
	// thanks to keep-alive registration.
	if err := d.ChangeMode("Default"); err != nil {
		t.Errorf("ChangeMode to installed mode: %v", err)
	}
}

func TestPulserCancelOnClose(t *testing.T) {
	p := NewPulser()
	fired := make(chan struct{}, 2)
	p.After(5*time.Millisecond, func() { fired <- struct{}{} })
	p.After(time.Hour, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("short timer never fired")
	}

	p.Close()
	if p.Pending() != 0 {
		t.Error("Close should cancel outstanding timers")
	}
	p.After(time.Millisecond, func() { fired <- struct{}{} })
	select {
	case <-fired:
		t.Error("closed pulser must not schedule")
	case <-time.After(20 * time.Millisecond):
	}
}

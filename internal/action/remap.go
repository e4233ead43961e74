package action

import (
	"fmt"

	"github.com/kvance/remapd/internal/input"
)

// OutputSink receives remapped values. Implementations wrap a virtual
// output device; tests supply in-memory fakes.
type OutputSink interface {
	SetButton(device, button int, pressed bool) error
	SetAxis(device, axis int, value float64) error
	SetHat(device, hat int, direction int) error
}

// RemapAction forwards the processed input value to a slot on an
// output sink, translating between input kinds where the source and
// target differ.
type RemapAction struct {
	Sink   OutputSink
	Device int
	Type   input.Type
	Target int

	prio int
}

// NewRemapAction builds a remap targeting the given sink slot.
func NewRemapAction(sink OutputSink, device int, typ input.Type, target int) *RemapAction {
	return &RemapAction{Sink: sink, Device: device, Type: typ, Target: target}
}

func (a *RemapAction) Describe() string {
	return fmt.Sprintf("remap to device %d %s %d", a.Device, a.Type, a.Target)
}

func (a *RemapAction) Priority() int { return a.prio }

// Activation is nil; a remap runs on every edge and every axis sample
// under its default policy.
func (a *RemapAction) Activation() *ActivationCondition { return nil }

func (a *RemapAction) DefaultActivation() Comparison { return Always }

func (a *RemapAction) Functor() (Functor, error) {
	if a.Sink == nil {
		return nil, ErrNilSink
	}
	return remapFunctor{a}, nil
}

type remapFunctor struct {
	act *RemapAction
}

func (f remapFunctor) Process(ev input.Event, val *Value) (bool, error) {
	a := f.act
	switch a.Type {
	case input.TypeJoystickAxis:
		var v float64
		if ev.Type.IsAxis() {
			v = val.Current
		} else if val.Pressed {
			v = 1.0
		} else {
			v = -1.0
		}
		if err := a.Sink.SetAxis(a.Device, a.Target, v); err != nil {
			return false, fmt.Errorf("remap axis %d: %w", a.Target, err)
		}
	case input.TypeJoystickHat:
		dir := 0
		if ev.Type == input.TypeJoystickHat {
			dir = int(val.Current)
		}
		if err := a.Sink.SetHat(a.Device, a.Target, dir); err != nil {
			return false, fmt.Errorf("remap hat %d: %w", a.Target, err)
		}
	default:
		if err := a.Sink.SetButton(a.Device, a.Target, val.Pressed); err != nil {
			return false, fmt.Errorf("remap button %d: %w", a.Target, err)
		}
	}
	return true, nil
}

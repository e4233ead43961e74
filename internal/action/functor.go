package action

import (
	"errors"

	"github.com/kvance/remapd/internal/input"
)

// Sentinel errors for action construction and execution.
var (
	// ErrNoFunctor is returned when an action cannot build its functor.
	ErrNoFunctor = errors.New("action produced no functor")

	// ErrEmptyActionSet is returned when building from an empty set.
	ErrEmptyActionSet = errors.New("action set is empty")

	// ErrNilSink is returned when an output action has no sink.
	ErrNilSink = errors.New("output sink is nil")
)

// Value is the mutable value threaded through an execution graph run:
// the (possibly transformed) axis value and the derived pressed
// state. Conditions read it; transform actions may rewrite it for
// downstream nodes.
type Value struct {
	Current float64
	Pressed bool
}

// ValueFrom derives the initial pipeline value from an event.
func ValueFrom(ev input.Event) *Value {
	return &Value{Current: ev.Value, Pressed: ev.Pressed}
}

// Functor is an executable node in an execution graph. Process
// returns the node's boolean outcome: for a condition node, whether
// the condition holds; for an action node, whether execution
// succeeded. Functors must be safe for concurrent use, since the
// dispatcher executes callbacks on whichever source goroutine
// delivered the event.
type Functor interface {
	Process(ev input.Event, val *Value) (bool, error)
}

// FuncFunctor adapts a plain function to the Functor interface.
type FuncFunctor func(ev input.Event, val *Value) (bool, error)

// Process implements Functor.
func (f FuncFunctor) Process(ev input.Event, val *Value) (bool, error) {
	return f(ev, val)
}

// Comparison is a button-state activation policy.
type Comparison uint8

const (
	// Always activates regardless of button state.
	Always Comparison = iota

	// Pressed activates on press only.
	Pressed

	// Released activates on release only.
	Released
)

// String returns the policy name.
func (c Comparison) String() string {
	switch c {
	case Always:
		return "always"
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

// Action is one configured action within an action set.
type Action interface {
	// Describe returns a short human-readable description for logs.
	Describe() string

	// Priority orders actions within a set; lower runs first, ties
	// keep configuration order. The default priority is zero.
	Priority() int

	// Activation returns the action's own condition, nil for none.
	// Actions without an explicit condition get a synthesized one
	// from DefaultActivation.
	Activation() *ActivationCondition

	// DefaultActivation is the button policy used to synthesize a
	// condition when Activation is nil.
	DefaultActivation() Comparison

	// Functor builds the executable node for this action.
	Functor() (Functor, error)
}

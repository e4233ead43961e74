package action

import (
	"github.com/kvance/remapd/internal/input"
	"github.com/kvance/remapd/internal/input/key"
)

// Rule combines the sub-conditions of an ActivationCondition.
type Rule uint8

const (
	// RuleAll requires every sub-condition to hold.
	RuleAll Rule = iota

	// RuleAny requires at least one sub-condition to hold.
	RuleAny
)

// Condition is a single evaluable predicate over an event and the
// current pipeline value.
type Condition interface {
	Evaluate(ev input.Event, val *Value) bool
}

// ActivationCondition gates an action or a whole container: a list of
// conditions combined under a rule. It is itself a Functor so it can
// appear as a condition node in an execution graph.
type ActivationCondition struct {
	Conditions []Condition
	Rule       Rule
}

// Process implements Functor. An empty condition list holds.
func (a *ActivationCondition) Process(ev input.Event, val *Value) (bool, error) {
	return a.Evaluate(ev, val), nil
}

// Evaluate combines the sub-conditions under the rule.
func (a *ActivationCondition) Evaluate(ev input.Event, val *Value) bool {
	if len(a.Conditions) == 0 {
		return true
	}
	switch a.Rule {
	case RuleAny:
		for _, c := range a.Conditions {
			if c.Evaluate(ev, val) {
				return true
			}
		}
		return false
	default:
		for _, c := range a.Conditions {
			if !c.Evaluate(ev, val) {
				return false
			}
		}
		return true
	}
}

// InputCondition checks the triggering input's own press state
// against a button policy. It is the synthesized default condition
// for actions that do not configure one.
type InputCondition struct {
	Comparison Comparison
}

// Evaluate implements Condition.
func (c InputCondition) Evaluate(_ input.Event, val *Value) bool {
	switch c.Comparison {
	case Pressed:
		return val.Pressed
	case Released:
		return !val.Pressed
	default:
		return true
	}
}

// KeyCondition checks whether another key is held in the keyboard
// snapshot carried by the event.
type KeyCondition struct {
	Pair       key.ScanPair
	Comparison Comparison
}

// Evaluate implements Condition. Events without a snapshot never
// satisfy a Pressed comparison.
func (c KeyCondition) Evaluate(ev input.Event, _ *Value) bool {
	held := ev.Snapshot != nil && ev.Snapshot.Held(c.Pair.Code, c.Pair.Extended)
	switch c.Comparison {
	case Pressed:
		return held
	case Released:
		return !held
	default:
		return true
	}
}

// defaultActivation synthesizes the condition used for an action that
// configures none.
func defaultActivation(policy Comparison) *ActivationCondition {
	return &ActivationCondition{
		Conditions: []Condition{InputCondition{Comparison: policy}},
		Rule:       RuleAll,
	}
}

// DefaultActivationFor is the exported form used by the graph builder.
func DefaultActivationFor(policy Comparison) *ActivationCondition {
	return defaultActivation(policy)
}

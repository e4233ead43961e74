package action

import (
	"github.com/google/uuid"
)

// ActionSet is an ordered group of actions executed together. A
// container may carry several sets; each set compiles to its own
// execution graph.
type ActionSet []Action

// Container groups action sets bound to a single input, optionally
// gated by an activation condition and optionally driven through a
// virtual button that converts axis motion into press/release edges.
type Container struct {
	ID          uuid.UUID
	Description string

	// Activation, when non-nil, gates the whole container. Individual
	// actions may carry their own conditions on top of it.
	Activation *ActivationCondition

	ActionSets []ActionSet

	// VirtualButton converts axis values into button edges before the
	// sets run. Nil for plain button and hat inputs.
	VirtualButton *AxisButton
}

// NewContainer allocates a container with a fresh identifier.
func NewContainer(description string) *Container {
	return &Container{
		ID:          uuid.New(),
		Description: description,
	}
}

// AddSet appends an action set and returns the container for chaining.
func (c *Container) AddSet(set ActionSet) *Container {
	c.ActionSets = append(c.ActionSets, set)
	return c
}

// HasActions reports whether any set carries at least one action.
func (c *Container) HasActions() bool {
	for _, set := range c.ActionSets {
		if len(set) > 0 {
			return true
		}
	}
	return false
}

// SimpleAction builds an Action from a functor with a default
// always-run policy.
func SimpleAction(name string, f Functor) Action {
	return &simpleAction{name: name, policy: Always, fn: f}
}

// PressAction builds an Action whose default condition only passes on
// press edges.
func PressAction(name string, f Functor) Action {
	return &simpleAction{name: name, policy: Pressed, fn: f}
}

type simpleAction struct {
	name   string
	prio   int
	policy Comparison
	cond   *ActivationCondition
	fn     Functor
}

func (a *simpleAction) Describe() string                 { return a.name }
func (a *simpleAction) Priority() int                    { return a.prio }
func (a *simpleAction) Activation() *ActivationCondition { return a.cond }
func (a *simpleAction) DefaultActivation() Comparison    { return a.policy }

func (a *simpleAction) Functor() (Functor, error) {
	if a.fn == nil {
		return nil, ErrNoFunctor
	}
	return a.fn, nil
}

// WithPriority returns a copy of a simple action carrying the given
// priority. Lower priorities run earlier in a set.
func WithPriority(a Action, prio int) Action {
	if s, ok := a.(*simpleAction); ok {
		cp := *s
		cp.prio = prio
		return &cp
	}
	return a
}

// WithActivation returns a copy of a simple action gated by the given
// condition instead of its default policy.
func WithActivation(a Action, cond *ActivationCondition) Action {
	if s, ok := a.(*simpleAction); ok {
		cp := *s
		cp.cond = cond
		return &cp
	}
	return a
}

// Package graph compiles containers into executable functor
// sequences. A graph is a list of condition and action nodes joined
// by a transition table keyed on (node index, process result); a
// missing entry terminates the pass.
package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kvance/remapd/internal/action"
	"github.com/kvance/remapd/internal/input"
)

// ErrEmptyGraph is returned when a container compiles to no nodes.
var ErrEmptyGraph = errors.New("graph has no nodes")

// forcedReleaseDelay separates a forced virtual-button press from its
// synthesized release so downstream consumers observe both edges.
const forcedReleaseDelay = 50 * time.Millisecond

// Kind distinguishes node roles, mostly for debugging output.
type Kind uint8

const (
	KindCondition Kind = iota
	KindAction
	KindVirtualButton
)

func (k Kind) String() string {
	switch k {
	case KindCondition:
		return "condition"
	case KindAction:
		return "action"
	case KindVirtualButton:
		return "virtual-button"
	default:
		return "unknown"
	}
}

// Node is one step of a compiled graph.
type Node struct {
	Kind    Kind
	Label   string
	Functor action.Functor
}

type edge struct {
	index  int
	result bool
}

// Graph executes a compiled container. Process runs entirely on the
// calling goroutine; sources deliver events from their own loops.
type Graph struct {
	nodes       []Node
	transitions map[edge]int
	virtual     *action.AxisButton
	log         *slog.Logger
}

// Option configures graph construction.
type Option func(*Graph)

// WithLogger routes functor failures to the given logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *Graph) { g.log = log }
}

// Build compiles every action set of a container into one graph. The
// container's activation condition, when present, gates all sets; a
// virtual button, when present, runs first and stops the pass when no
// edge occurred.
func Build(c *action.Container, opts ...Option) (*Graph, error) {
	if c == nil || !c.HasActions() {
		return nil, action.ErrEmptyActionSet
	}

	g := &Graph{
		transitions: make(map[edge]int),
		virtual:     c.VirtualButton,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if c.VirtualButton != nil {
		g.append(Node{Kind: KindVirtualButton, Label: "axis button", Functor: c.VirtualButton})
	}
	if c.Activation != nil && len(c.Activation.Conditions) > 0 {
		g.append(Node{Kind: KindCondition, Label: "container condition", Functor: c.Activation})
	}

	for _, set := range c.ActionSets {
		if err := g.appendSet(set); err != nil {
			return nil, err
		}
	}
	if len(g.nodes) == 0 {
		return nil, ErrEmptyGraph
	}
	return g, nil
}

// BuildActionSet compiles a bare action set with no container-level
// gating. Used for internally synthesized bindings.
func BuildActionSet(set action.ActionSet, opts ...Option) (*Graph, error) {
	if len(set) == 0 {
		return nil, action.ErrEmptyActionSet
	}
	g := &Graph{
		transitions: make(map[edge]int),
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.appendSet(set); err != nil {
		return nil, err
	}
	return g, nil
}

// append links the previous node's success path to the new node.
func (g *Graph) append(n Node) int {
	idx := len(g.nodes)
	if idx > 0 {
		g.transitions[edge{idx - 1, true}] = idx
	}
	g.nodes = append(g.nodes, n)
	return idx
}

// appendSet adds condition/action node pairs for each action, stable
// sorted by ascending priority. A failed condition skips only its own
// action; action results never abort the pass.
func (g *Graph) appendSet(set action.ActionSet) error {
	ordered := make(action.ActionSet, len(set))
	copy(ordered, set)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	type pair struct{ cond, act int }
	pairs := make([]pair, 0, len(ordered))

	for _, a := range ordered {
		fn, err := a.Functor()
		if err != nil {
			return fmt.Errorf("action %s: %w", a.Describe(), err)
		}
		cond := a.Activation()
		if cond == nil {
			cond = action.DefaultActivationFor(a.DefaultActivation())
		}
		ci := g.append(Node{Kind: KindCondition, Label: a.Describe(), Functor: cond})
		ai := g.append(Node{Kind: KindAction, Label: a.Describe(), Functor: fn})
		pairs = append(pairs, pair{ci, ai})
	}

	// A false condition skips only the action it gates. Actions
	// proceed regardless of their result; a jump past the final node
	// falls off the list and ends the pass.
	for i, p := range pairs {
		next := len(g.nodes)
		if i+1 < len(pairs) {
			next = pairs[i+1].cond
		}
		g.transitions[edge{p.cond, false}] = next
		g.transitions[edge{p.act, false}] = p.act + 1
	}
	return nil
}

// Len reports the node count.
func (g *Graph) Len() int { return len(g.nodes) }

// Process runs the graph for one event. Functor errors and panics are
// logged and end the pass; they never propagate to the source loop.
// A virtual button that registered a forced press triggers a delayed
// second pass carrying the matching release.
func (g *Graph) Process(ev input.Event) {
	val := action.ValueFrom(ev)
	g.run(ev, val, 0)

	if g.virtual != nil && g.virtual.ConsumeForced() {
		time.Sleep(forcedReleaseDelay)
		g.virtual.ForceRelease(val)
		g.run(ev, val, 1)
	}
}

func (g *Graph) run(ev input.Event, val *action.Value, start int) {
	idx := start
	for idx >= 0 && idx < len(g.nodes) {
		node := g.nodes[idx]
		result, err := g.step(node, ev, val)
		if err != nil {
			g.log.Error("graph node failed",
				"node", node.Label,
				"kind", node.Kind.String(),
				"error", err)
			return
		}
		next, ok := g.transitions[edge{idx, result}]
		if !ok {
			return
		}
		idx = next
	}
}

func (g *Graph) step(n Node, ev input.Event, val *action.Value) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s node %s: %v", n.Kind, n.Label, r)
		}
	}()
	return n.Functor.Process(ev, val)
}

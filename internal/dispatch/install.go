package dispatch

import (
	"fmt"

	"github.com/kvance/remapd/internal/action/graph"
	"github.com/kvance/remapd/internal/input"
	"github.com/kvance/remapd/internal/mode"
)

// InstallProfile flattens a mode tree and fills the registries:
// parent bindings propagate to children without their own, every
// container compiles to an execution graph, and each mode receives a
// permanent keep-alive callback so it stays adoptable even while
// paused or empty. Compilation errors surface synchronously; nothing
// is partially registered on failure until the caller resets.
func (d *Dispatcher) InstallProfile(tree *mode.Tree) error {
	table := make(mode.Table[input.Key, *mode.InputItem])
	for _, name := range tree.Names() {
		m, _ := tree.Find(name)
		events := make(map[input.Key]*mode.InputItem)
		for _, it := range m.Items() {
			events[it.LookupKey()] = it
		}
		table[name] = events
	}

	if err := mode.Flatten(tree.Hierarchy(), table); err != nil {
		return fmt.Errorf("flatten mode hierarchy: %w", err)
	}

	for modeName, events := range table {
		d.addKeepAlive(modeName)
		for _, it := range events {
			d.SetItem(modeName, it)
			if !it.HasContainers() {
				continue
			}
			cb, err := d.compileItem(it)
			if err != nil {
				return fmt.Errorf("mode %s: %w", modeName, err)
			}
			d.registerItem(modeName, it, cb)
		}
	}
	return nil
}

// compileItem builds one graph per container and returns a callback
// running them in container order.
func (d *Dispatcher) compileItem(it *mode.InputItem) (Callback, error) {
	graphs := make([]*graph.Graph, 0, len(it.Containers))
	for _, c := range it.Containers {
		g, err := graph.Build(c, graph.WithLogger(d.log))
		if err != nil {
			return nil, fmt.Errorf("container %s: %w", c.Description, err)
		}
		graphs = append(graphs, g)
	}
	return func(ev input.Event) {
		for _, g := range graphs {
			g.Process(ev)
		}
	}, nil
}

func (d *Dispatcher) registerItem(modeName string, it *mode.InputItem, cb Callback) {
	switch {
	case it.Key != nil:
		d.AddLatchedCallback(modeName, *it.Key, cb, false)
	case it.Type == input.TypeMidi:
		if msgKey, ok := it.Ident.(string); ok {
			d.AddMidiCallback(modeName, msgKey, cb, false)
			return
		}
		d.AddCallback(modeName, it.LookupKey(), cb, false)
	case it.Type == input.TypeOSC:
		if msgKey, ok := it.Ident.(string); ok {
			d.AddOSCCallback(modeName, msgKey, cb, false)
			return
		}
		d.AddCallback(modeName, it.LookupKey(), cb, false)
	default:
		d.AddCallback(modeName, it.LookupKey(), cb, false)
	}
}

// addKeepAlive installs permanent no-op callbacks on the mode's
// transition events so an otherwise-empty mode still counts as known
// and mode changes into it are accepted.
func (d *Dispatcher) addKeepAlive(modeName string) {
	noop := func(input.Event) {}
	for _, tr := range []input.Transition{input.TransitionEnter, input.TransitionExit} {
		k := input.Key{Device: input.DeviceMode, Type: input.TypeModeControl, Ident: tr}
		d.AddCallback(modeName, k, noop, true)
	}
}

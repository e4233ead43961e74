package mode

import (
	"errors"
	"fmt"

	"github.com/kvance/remapd/internal/action"
	"github.com/kvance/remapd/internal/input"
	"github.com/kvance/remapd/internal/input/key"
)

// Sentinel errors for mode tree operations.
var (
	// ErrDuplicateMode is returned when adding a mode whose name is taken.
	ErrDuplicateMode = errors.New("mode name already exists")

	// ErrModeNotFound is returned when a named mode does not exist.
	ErrModeNotFound = errors.New("mode not found")

	// ErrCycle is returned when a hierarchy contains a cycle.
	ErrCycle = errors.New("mode hierarchy contains a cycle")
)

// InputItem is one physical or virtual input within one mode: the
// binding target that owns the ordered container list for that input.
type InputItem struct {
	// Device, Type and Ident identify the input this item binds.
	Device input.DeviceID
	Type   input.Type
	Ident  input.Ident

	// Mode is the name of the owning mode.
	Mode string

	// Enabled gates dispatch. A disabled item keeps its bindings but
	// the dispatcher drops matching events silently.
	Enabled bool

	// Containers is the ordered list of execution units.
	Containers []*action.Container

	// Key is set for keyboard and mouse items: the compound (possibly
	// latched) key this item responds to.
	Key *key.Key
}

// LookupKey returns the registry identity of the item's input.
func (it *InputItem) LookupKey() input.Key {
	return input.Key{Device: it.Device, Type: it.Type, Ident: it.Ident}
}

// HasContainers reports whether any container is bound.
func (it *InputItem) HasContainers() bool {
	return len(it.Containers) > 0
}

// Mode is a named node in the mode tree. A mode owns the input items
// defined at its level; items for inputs it does not define are
// inherited from ancestors during flattening.
type Mode struct {
	name     string
	parent   *Mode
	children []*Mode
	items    map[input.Key]*InputItem
}

// Name returns the mode's unique name.
func (m *Mode) Name() string { return m.name }

// Parent returns the parent mode, nil for a root.
func (m *Mode) Parent() *Mode { return m.parent }

// Children returns the direct child modes.
func (m *Mode) Children() []*Mode { return m.children }

// Item returns the input item bound for the given event identity, or
// nil when this mode does not define one.
func (m *Mode) Item(k input.Key) *InputItem {
	return m.items[k]
}

// Items returns all items defined at this mode.
func (m *Mode) Items() []*InputItem {
	out := make([]*InputItem, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	return out
}

// SetItem binds an input item at this mode, replacing any previous
// binding for the same input.
func (m *Mode) SetItem(it *InputItem) {
	it.Mode = m.name
	m.items[it.LookupKey()] = it
}

// Tree is the collection of modes for one profile. Mode names are
// unique across the whole tree. The runtime-mode and edit-mode
// cursors live with the runtime context, not here; the tree is pure
// structure.
type Tree struct {
	modes map[string]*Mode
	roots []*Mode
}

// NewTree creates an empty mode tree.
func NewTree() *Tree {
	return &Tree{modes: make(map[string]*Mode)}
}

// Add creates a mode under the named parent. An empty parent name
// creates a root mode.
func (t *Tree) Add(name, parent string) (*Mode, error) {
	if _, exists := t.modes[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateMode, name)
	}

	m := &Mode{name: name, items: make(map[input.Key]*InputItem)}
	if parent != "" {
		p, ok := t.modes[parent]
		if !ok {
			return nil, fmt.Errorf("%w: parent %s", ErrModeNotFound, parent)
		}
		m.parent = p
		p.children = append(p.children, m)
	} else {
		t.roots = append(t.roots, m)
	}
	t.modes[name] = m
	return m, nil
}

// Find returns the named mode.
func (t *Tree) Find(name string) (*Mode, bool) {
	m, ok := t.modes[name]
	return m, ok
}

// Exists reports whether a mode with the given name is in the tree.
func (t *Tree) Exists(name string) bool {
	_, ok := t.modes[name]
	return ok
}

// Names returns all mode names.
func (t *Tree) Names() []string {
	out := make([]string, 0, len(t.modes))
	for name := range t.modes {
		out = append(out, name)
	}
	return out
}

// Roots returns the top-level modes.
func (t *Tree) Roots() []*Mode { return t.roots }

// Hierarchy returns the nested parent-to-children mapping consumed by
// the flattening pass.
func (t *Tree) Hierarchy() Hierarchy {
	h := make(Hierarchy, len(t.roots))
	for _, root := range t.roots {
		h[root.name] = subtree(root)
	}
	return h
}

func subtree(m *Mode) Hierarchy {
	h := make(Hierarchy, len(m.children))
	for _, child := range m.children {
		h[child.name] = subtree(child)
	}
	return h
}

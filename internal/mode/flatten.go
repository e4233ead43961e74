package mode

import "fmt"

// Hierarchy is the nested parent-to-children mapping of mode names,
// as produced by Tree.Hierarchy.
type Hierarchy map[string]Hierarchy

// Table is one device's callback table: mode name to event identity
// to registered entries. The value type is opaque to the flattening
// pass; it copies references, never contents.
type Table[K comparable, V any] map[string]map[K]V

// Flatten copies every binding present in a parent mode into each
// child mode that does not already define that binding, recursively,
// parent-first. Children with their own binding are never
// overwritten, which makes the pass idempotent.
//
// A malformed hierarchy in which a mode name recurs along any path is
// rejected with ErrCycle before any table is modified twice for the
// same mode.
func Flatten[K comparable, V any](h Hierarchy, tables ...Table[K, V]) error {
	return flatten(h, tables, make(map[string]bool))
}

func flatten[K comparable, V any](h Hierarchy, tables []Table[K, V], visited map[string]bool) error {
	for parent, children := range h {
		if visited[parent] {
			return fmt.Errorf("%w: %s revisited", ErrCycle, parent)
		}
		visited[parent] = true

		for _, table := range tables {
			parentEvents, ok := table[parent]
			if !ok {
				continue
			}
			for child := range children {
				childEvents, ok := table[child]
				if !ok {
					childEvents = make(map[K]V, len(parentEvents))
					table[child] = childEvents
				}
				for ev, entries := range parentEvents {
					if _, defined := childEvents[ev]; !defined {
						childEvents[ev] = entries
					}
				}
			}
		}

		if err := flatten(children, tables, visited); err != nil {
			return err
		}
	}
	return nil
}

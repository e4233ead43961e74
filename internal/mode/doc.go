// Package mode implements the hierarchical mode tree: named modes
// with parent/child inheritance, the per-mode input items that carry
// action bindings, and the flattening pass that copies parent
// bindings down into children that lack their own.
//
// Flattening only ever fills gaps. A child that defines its own
// binding for an event keeps it, which makes the pass idempotent:
// running it twice yields the same tables as running it once.
package mode

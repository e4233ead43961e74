// Package action defines the executable side of a binding: containers
// and action sets as configured data, and the condition/action
// functors the execution graph runs when an input fires.
//
// Functors form a closed interface rather than a reflective
// capability check: every node the graph can execute implements
// Process, and the graph distinguishes condition nodes from action
// nodes structurally, at build time.
package action

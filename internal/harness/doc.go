// Package harness runs edit scripts against the engine and checks the
// backend calls they produce.
//
// A scenario loads a composition (or the default tree), drives the engine
// through a list of steps (set, add, delete, update, replace, begin, end)
// and evaluates assertions on the recorded ops, the store and the
// reference backend. Every run uses sequential ids, so traces are
// deterministic and can be compared against golden files.
//
// Nodes are named by references: an alias bound with "as", a node id, or
// "root", optionally followed by /type or /type[i] segments that select a
// child by node type. "root/noiseModule[1]" is the root's second module,
// "value/inputTransformations" the transformation list of the node bound
// as value.
package harness

// Package engine coordinates edits, change detection and commits.
//
// An Engine owns the live snapshot, the last committed snapshot and the
// pending change set. Every mutation runs in a mutate.Tx; when the Tx
// produced a different snapshot the engine swaps it in and runs a change
// cycle:
//
//  1. the batch depth is raised
//  2. the Tx's change records (or a structural diff) are classified and
//     merged into the pending set
//  3. dependent children of every node whose children changed are
//     recomputed, each through a nested change cycle
//  4. the depth is lowered; at depth zero the pending set is committed
//
// Committing plans coordinate-addressed ops, dispatches them to the
// backend, journals the result, then collects deleted entities. The
// snapshot swap caused by collection raises the post-commit flag, which
// makes the next change cycle a no-op.
//
// Callers group edits into one commit with Begin and End.
//
// The engine is single-writer and not safe for concurrent use.
package engine

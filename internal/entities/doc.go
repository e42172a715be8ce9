// Package entities implements the normalized entity store of the composition
// tree.
//
// A Snapshot holds every Node and Setting in two id-keyed persistent maps
// plus derived parent and owner indexes. Snapshots are immutable: each write
// returns a new Snapshot sharing structure with the old one, and a write that
// changes nothing returns the receiver. Callers detect change by comparing
// pointers.
//
// The store checks no tree invariants itself; mutators are trusted to keep
// the tree rooted and acyclic.
package entities

// Package commit turns a resolved change set into backend operations,
// issues them, and collects the entities they left unreachable.
package commit

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Ameobea/noise-asmjs/internal/entities"
	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/schema"
)

// ErrDetached is returned for nodes that do not reach the root.
var ErrDetached = errors.New("node is detached from the root")

// Coordinates returns the backend path of node id: at each level, the
// node's position among its parent's children minus the parent's index
// offset, root first. The root's path is empty.
//
// Offsets are evaluated against snap at every call; they depend on the
// parent's current settings and must not be cached across edits.
func Coordinates(snap *entities.Snapshot, reg *schema.Registry, id ir.NodeID) ([]int, error) {
	path := []int{}
	seen := make(map[ir.NodeID]bool)
	for cur := id; cur != ir.RootID; {
		if seen[cur] {
			return nil, fmt.Errorf("coordinates of %s: cycle at %s", id, cur)
		}
		seen[cur] = true

		parent, ok := snap.ParentOf(cur)
		if !ok {
			return nil, fmt.Errorf("coordinates of %s: %w", id, ErrDetached)
		}
		at := snap.IndexOf(parent, cur) - reg.IndexOffset(snap, parent)
		if at < 0 {
			return nil, fmt.Errorf("coordinates of %s: %s sits among the implicit children of %s", id, cur, parent)
		}
		path = append(path, at)
		cur = parent
	}
	if !snap.HasNode(ir.RootID) {
		return nil, fmt.Errorf("coordinates of %s: %w", id, ErrDetached)
	}
	slices.Reverse(path)
	return path, nil
}

// moduleOf returns the nearest node at or above id that the backend holds
// as a module: the root or a noise module.
func moduleOf(snap *entities.Snapshot, id ir.NodeID) (ir.NodeID, bool) {
	if isModule(snap, id) {
		return id, true
	}
	for _, a := range snap.Ancestors(id) {
		if isModule(snap, a) {
			return a, true
		}
	}
	return "", false
}

func isModule(snap *entities.Snapshot, id ir.NodeID) bool {
	n, ok := snap.Node(id)
	return ok && (n.Type == ir.TypeRoot || n.Type == ir.TypeNoiseModule)
}

// transformationAddress returns the coords and node index an input
// transformation call uses to reach module m: the path of m's parent and
// m's index in it, or the empty path and -1 for the root.
func transformationAddress(snap *entities.Snapshot, reg *schema.Registry, m ir.NodeID) ([]int, int, error) {
	path, err := Coordinates(snap, reg, m)
	if err != nil {
		return nil, 0, err
	}
	if len(path) == 0 {
		return []int{}, -1, nil
	}
	return path[:len(path)-1], path[len(path)-1], nil
}

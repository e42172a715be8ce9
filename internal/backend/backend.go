// Package backend defines the tree engine contract the commit translator
// drives, an IR codec for node definitions, and a reference in-memory tree
// that follows the engine's addressing rules.
package backend

import (
	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// Backend is the external tree engine. Every call is synchronous and returns
// a status code: ir.StatusOK on success, anything else on failure.
//
// Coordinates address a composed module by the backend-visible child
// indices on the path from the root; the empty path is the root.
type Backend interface {
	AddNode(coords []int, index int, def []byte) int
	DeleteNode(coords []int, index int) int
	ReplaceNode(coords []int, index int, def []byte) int
	SetGlobalConf(def []byte) int
	// nodeIndex selects a child of the module at coords; -1 selects that
	// module itself.
	AddInputTransformation(coords []int, nodeIndex int, def []byte) int
	DeleteInputTransformation(coords []int, nodeIndex, transformationIndex int) int
	ReplaceInputTransformation(coords []int, nodeIndex, transformationIndex int, def []byte) int
	ResetTree(def []byte) int
}

// Apply issues op against b and returns the status.
func Apply(b Backend, op ir.Op) int {
	switch op.Kind {
	case ir.OpAddNode:
		return b.AddNode(op.Coords, op.Index, op.Definition)
	case ir.OpDeleteNode:
		return b.DeleteNode(op.Coords, op.Index)
	case ir.OpReplaceNode:
		return b.ReplaceNode(op.Coords, op.Index, op.Definition)
	case ir.OpSetGlobalConf:
		return b.SetGlobalConf(op.Definition)
	case ir.OpAddInputTransformation:
		return b.AddInputTransformation(op.Coords, op.Index, op.Definition)
	case ir.OpDeleteInputTransformation:
		return b.DeleteInputTransformation(op.Coords, op.Index, op.TransformationIndex)
	case ir.OpReplaceInputTransformation:
		return b.ReplaceInputTransformation(op.Coords, op.Index, op.TransformationIndex, op.Definition)
	case ir.OpResetTree:
		return b.ResetTree(op.Definition)
	default:
		return ir.StatusError
	}
}

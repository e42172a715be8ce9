package ir

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// OpKind names a backend operation.
type OpKind string

// Backend operations. Every operation except reset_tree and set_global_conf
// is addressed by a coordinate path.
const (
	OpAddNode                    OpKind = "add_node"
	OpDeleteNode                 OpKind = "delete_node"
	OpReplaceNode                OpKind = "replace_node"
	OpSetGlobalConf              OpKind = "set_global_conf"
	OpAddInputTransformation     OpKind = "add_input_transformation"
	OpDeleteInputTransformation  OpKind = "delete_input_transformation"
	OpReplaceInputTransformation OpKind = "replace_input_transformation"
	OpResetTree                  OpKind = "reset_tree"
)

// OpKinds lists every backend operation kind.
var OpKinds = []OpKind{
	OpAddNode, OpDeleteNode, OpReplaceNode, OpSetGlobalConf,
	OpAddInputTransformation, OpDeleteInputTransformation,
	OpReplaceInputTransformation, OpResetTree,
}

// Known reports whether k is a backend operation kind.
func (k OpKind) Known() bool {
	return slices.Contains(OpKinds, k)
}

// Backend status codes.
const (
	StatusOK    = 0
	StatusError = 1
)

// Op is one backend operation produced by a commit.
//
// Coords is the path of the parent (or, for input transformations, of the
// owning module's parent); Index is the position within it. For input
// transformation ops Index is the owning module's index (-1 addresses the
// node at Coords itself) and TransformationIndex the position in its list.
type Op struct {
	Kind                OpKind          `json:"kind"`
	NodeID              NodeID          `json:"node_id"`
	Coords              []int           `json:"coords"`
	Index               int             `json:"index"`
	TransformationIndex int             `json:"transformation_index"`
	Definition          json.RawMessage `json:"definition,omitempty"`
	Status              int             `json:"status"`
}

// Failed reports whether the backend rejected the operation.
func (o Op) Failed() bool {
	return o.Status != StatusOK
}

// String renders the op without its definition payload. The format is stable
// and used for traces.
func (o Op) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s node=%s", o.Kind, o.NodeID)
	switch o.Kind {
	case OpResetTree, OpSetGlobalConf:
	case OpAddInputTransformation:
		fmt.Fprintf(&buf, " coords=%s index=%d", FormatCoords(o.Coords), o.Index)
	case OpDeleteInputTransformation, OpReplaceInputTransformation:
		fmt.Fprintf(&buf, " coords=%s index=%d transformation=%d", FormatCoords(o.Coords), o.Index, o.TransformationIndex)
	default:
		fmt.Fprintf(&buf, " coords=%s index=%d", FormatCoords(o.Coords), o.Index)
	}
	fmt.Fprintf(&buf, " status=%d", o.Status)
	return buf.String()
}

// FormatCoords renders a coordinate path as [a,b,c].
func FormatCoords(coords []int) string {
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = fmt.Sprintf("%d", c)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

package backend

import (
	"sync"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// Recorder is a Backend that records every call, forwarding to an inner
// backend when one is set. Calls of kinds marked with FailOn return
// ir.StatusError without being forwarded.
type Recorder struct {
	inner Backend

	mu     sync.Mutex
	calls  []ir.Op
	failOn map[ir.OpKind]bool
}

// NewRecorder returns a recorder forwarding to inner, which may be nil.
func NewRecorder(inner Backend) *Recorder {
	return &Recorder{inner: inner, failOn: map[ir.OpKind]bool{}}
}

// FailOn makes calls of the given kinds fail.
func (r *Recorder) FailOn(kinds ...ir.OpKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range kinds {
		r.failOn[k] = true
	}
}

// Calls returns the recorded calls with their statuses.
func (r *Recorder) Calls() []ir.Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.Op(nil), r.calls...)
}

// Reset forgets the recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *Recorder) record(op ir.Op, forward func(Backend) int) int {
	r.mu.Lock()
	fail := r.failOn[op.Kind]
	r.mu.Unlock()

	switch {
	case fail:
		op.Status = ir.StatusError
	case r.inner != nil:
		op.Status = forward(r.inner)
	default:
		op.Status = ir.StatusOK
	}

	r.mu.Lock()
	r.calls = append(r.calls, op)
	r.mu.Unlock()
	return op.Status
}

func coordsCopy(c []int) []int { return append([]int{}, c...) }

func (r *Recorder) AddNode(coords []int, index int, def []byte) int {
	op := ir.Op{Kind: ir.OpAddNode, Coords: coordsCopy(coords), Index: index, Definition: def}
	return r.record(op, func(b Backend) int { return b.AddNode(coords, index, def) })
}

func (r *Recorder) DeleteNode(coords []int, index int) int {
	op := ir.Op{Kind: ir.OpDeleteNode, Coords: coordsCopy(coords), Index: index}
	return r.record(op, func(b Backend) int { return b.DeleteNode(coords, index) })
}

func (r *Recorder) ReplaceNode(coords []int, index int, def []byte) int {
	op := ir.Op{Kind: ir.OpReplaceNode, Coords: coordsCopy(coords), Index: index, Definition: def}
	return r.record(op, func(b Backend) int { return b.ReplaceNode(coords, index, def) })
}

func (r *Recorder) SetGlobalConf(def []byte) int {
	op := ir.Op{Kind: ir.OpSetGlobalConf, Definition: def}
	return r.record(op, func(b Backend) int { return b.SetGlobalConf(def) })
}

func (r *Recorder) AddInputTransformation(coords []int, nodeIndex int, def []byte) int {
	op := ir.Op{Kind: ir.OpAddInputTransformation, Coords: coordsCopy(coords), Index: nodeIndex, Definition: def}
	return r.record(op, func(b Backend) int { return b.AddInputTransformation(coords, nodeIndex, def) })
}

func (r *Recorder) DeleteInputTransformation(coords []int, nodeIndex, transformationIndex int) int {
	op := ir.Op{Kind: ir.OpDeleteInputTransformation, Coords: coordsCopy(coords), Index: nodeIndex, TransformationIndex: transformationIndex}
	return r.record(op, func(b Backend) int {
		return b.DeleteInputTransformation(coords, nodeIndex, transformationIndex)
	})
}

func (r *Recorder) ReplaceInputTransformation(coords []int, nodeIndex, transformationIndex int, def []byte) int {
	op := ir.Op{Kind: ir.OpReplaceInputTransformation, Coords: coordsCopy(coords), Index: nodeIndex, TransformationIndex: transformationIndex, Definition: def}
	return r.record(op, func(b Backend) int {
		return b.ReplaceInputTransformation(coords, nodeIndex, transformationIndex, def)
	})
}

func (r *Recorder) ResetTree(def []byte) int {
	op := ir.Op{Kind: ir.OpResetTree, Definition: def}
	return r.record(op, func(b Backend) int { return b.ResetTree(def) })
}

package harness

import (
	"fmt"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// TraceEvent is one executed step and the backend calls it caused.
type TraceEvent struct {
	Step   int      `json:"step"`
	Action string   `json:"action"`
	Ops    []string `json:"ops"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every step ran and every assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Final is the reference backend's outline after the last step.
	Final string `json:"final"`

	// Ops lists every op issued after the initial load.
	Ops []ir.Op `json:"-"`

	// Composition is the store's tree after the last step.
	Composition ir.NodeDef `json:"-"`

	// LastSeq is the sequence number of the run's last commit.
	LastSeq int64 `json:"last_seq"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an error message and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// traceOp renders op without its node id or payload.
func traceOp(op ir.Op) string {
	switch op.Kind {
	case ir.OpResetTree, ir.OpSetGlobalConf:
		return fmt.Sprintf("%s status=%d", op.Kind, op.Status)
	case ir.OpDeleteInputTransformation, ir.OpReplaceInputTransformation:
		return fmt.Sprintf("%s coords=%s index=%d transformation=%d status=%d",
			op.Kind, ir.FormatCoords(op.Coords), op.Index, op.TransformationIndex, op.Status)
	default:
		return fmt.Sprintf("%s coords=%s index=%d status=%d",
			op.Kind, ir.FormatCoords(op.Coords), op.Index, op.Status)
	}
}

package commit

import (
	"log/slog"

	"github.com/Ameobea/noise-asmjs/internal/backend"
	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// Result is the outcome of dispatching a plan.
type Result struct {
	Ops    []ir.Op // with statuses
	Failed int
}

// Dispatch issues ops against b in order. A rejected op is logged and the
// remaining ops are still issued; nothing is rolled back.
func Dispatch(b backend.Backend, ops []ir.Op, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}
	res := Result{Ops: make([]ir.Op, len(ops))}
	for i, op := range ops {
		op.Status = backend.Apply(b, op)
		if op.Failed() {
			res.Failed++
			logger.Error("backend rejected operation",
				"op", op.String(),
				"status", op.Status,
				"position", i,
			)
		} else {
			logger.Debug("backend operation applied", "op", op.String())
		}
		res.Ops[i] = op
	}
	return res
}

package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Ameobea/noise-asmjs/internal/backend"
	"github.com/Ameobea/noise-asmjs/internal/compiler"
	"github.com/Ameobea/noise-asmjs/internal/engine"
	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/schema"
	"github.com/Ameobea/noise-asmjs/internal/testutil"
)

type runConfig struct {
	logger  *slog.Logger
	journal engine.Journal
	clock   *engine.Clock
	metrics *engine.Metrics
}

// RunOption configures a scenario run.
type RunOption func(*runConfig)

// WithLogger sets the logger handed to the engine, registry and backend.
// Runs are quiet by default.
func WithLogger(l *slog.Logger) RunOption {
	return func(c *runConfig) { c.logger = l }
}

// WithJournal records every commit of the run, including the initial load.
func WithJournal(j engine.Journal) RunOption {
	return func(c *runConfig) { c.journal = j }
}

// WithClock sets the commit sequence source, so a run can continue an
// existing journal.
func WithClock(c *engine.Clock) RunOption {
	return func(cfg *runConfig) { cfg.clock = c }
}

// WithMetrics counts the run's commits and backend calls in m.
func WithMetrics(m *engine.Metrics) RunOption {
	return func(cfg *runConfig) { cfg.metrics = m }
}

// run holds the live state of one scenario execution.
type run struct {
	engine *engine.Engine
	rec    *backend.Recorder
	tree   *backend.Tree
	refs   *resolver
	result *Result
}

// Run executes a scenario against a fresh engine and reference backend.
//
// Step failures and assertion failures are reported in the Result. The
// returned error is for setups that could not start: an unreadable
// composition or a rejected initial load.
func Run(ctx context.Context, s *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{logger: testutil.QuietLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	def := schema.DefaultTree()
	if s.Composition != "" {
		var err error
		def, err = compiler.LoadFile(s.Composition)
		if err != nil {
			return nil, fmt.Errorf("load composition: %w", err)
		}
	}

	tree := backend.NewTree(backend.WithTreeLogger(cfg.logger))
	rec := backend.NewRecorder(tree)
	rec.FailOn(s.FailOn...)

	engineOpts := []engine.Option{
		engine.WithLogger(cfg.logger),
		engine.WithRegistry(schema.NewRegistry(schema.WithLogger(cfg.logger))),
		// Deterministic ids keep traces reproducible.
		engine.WithIDs(testutil.NewSequentialIDs("n")),
		engine.WithStructuralDiff(s.StructuralDiff),
	}
	if cfg.journal != nil {
		engineOpts = append(engineOpts, engine.WithJournal(cfg.journal))
	}
	if cfg.clock != nil {
		engineOpts = append(engineOpts, engine.WithClock(cfg.clock))
	}
	if cfg.metrics != nil {
		engineOpts = append(engineOpts, engine.WithMetrics(cfg.metrics))
	}
	e := engine.New(rec, engineOpts...)
	if err := e.Load(ctx, def); err != nil {
		return nil, fmt.Errorf("load composition: %w", err)
	}
	rec.Reset()

	r := &run{engine: e, rec: rec, tree: tree, refs: newResolver(), result: NewResult()}
	for i, step := range s.Steps {
		if err := r.step(ctx, step); err != nil {
			r.result.AddError("step %d (%s): %v", i+1, step, err)
		}
		calls := rec.Calls()
		rec.Reset()
		ops := make([]string, len(calls))
		for j, op := range calls {
			ops[j] = traceOp(op)
		}
		r.result.Ops = append(r.result.Ops, calls...)
		r.result.Trace = append(r.result.Trace, TraceEvent{Step: i + 1, Action: step.String(), Ops: ops})
	}

	if d := e.Depth(); d > 0 {
		r.result.AddError("%d batch(es) left open", d)
	}
	r.result.Final = tree.Describe()
	if def, ok := e.Snapshot().Denormalize(ir.RootID); ok {
		r.result.Composition = def
	}
	if c, ok := e.LastCommit(); ok {
		r.result.LastSeq = c.Seq
	}

	for i, a := range s.Assertions {
		if err := r.check(a); err != nil {
			r.result.AddError("assertion %d (%s): %v", i+1, a.Type, err)
		}
	}
	return r.result, nil
}

func (r *run) step(ctx context.Context, step Step) error {
	e := r.engine
	switch step.Kind() {
	case "begin":
		e.Begin()
		return nil
	case "end":
		return e.End(ctx)
	case "set":
		id, err := r.refs.resolve(e.Snapshot(), step.Set.Node)
		if err != nil {
			return err
		}
		v, err := ir.ValueFromAny(step.Set.Value)
		if err != nil {
			return err
		}
		return e.SetSettingByKey(ctx, id, step.Set.Key, v)
	case "add":
		parent, err := r.refs.resolve(e.Snapshot(), step.Add.Parent)
		if err != nil {
			return err
		}
		def := schema.InputTransformationDef(step.Add.Transformation)
		if step.Add.Module != "" {
			def = schema.ModuleDef(step.Add.Module)
		}
		index := -1
		if step.Add.Index != nil {
			index = *step.Add.Index
		}
		id, ok := e.AddNode(ctx, parent, index, def)
		if !ok {
			return fmt.Errorf("add rejected")
		}
		r.refs.bind(step.Add.As, id)
		return nil
	case "delete":
		id, err := r.refs.resolve(e.Snapshot(), step.Delete.Node)
		if err != nil {
			return err
		}
		if _, ok := e.DeleteNode(ctx, id); !ok {
			return fmt.Errorf("delete rejected")
		}
		return nil
	case "update":
		id, err := r.refs.resolve(e.Snapshot(), step.Update.Node)
		if err != nil {
			return err
		}
		e.UpdateNode(ctx, id)
		return nil
	case "replace":
		id, err := r.refs.resolve(e.Snapshot(), step.Replace.Node)
		if err != nil {
			return err
		}
		nid, ok := e.ReplaceNode(ctx, id, schema.ModuleDef(step.Replace.Module))
		if !ok {
			return fmt.Errorf("replace rejected")
		}
		r.refs.bind(step.Replace.As, nid)
		return nil
	default:
		return fmt.Errorf("step has no single action")
	}
}

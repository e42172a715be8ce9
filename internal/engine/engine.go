package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ameobea/noise-asmjs/internal/backend"
	"github.com/Ameobea/noise-asmjs/internal/changes"
	"github.com/Ameobea/noise-asmjs/internal/commit"
	"github.com/Ameobea/noise-asmjs/internal/entities"
	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/mutate"
	"github.com/Ameobea/noise-asmjs/internal/schema"
)

var tracer = otel.Tracer("github.com/Ameobea/noise-asmjs/internal/engine")

// DefaultMaxCascadeDepth bounds how deeply dependent recomputation may
// nest before further dependents are skipped.
const DefaultMaxCascadeDepth = 64

// Journal receives every commit after it was dispatched.
type Journal interface {
	AppendCommit(ctx context.Context, c ir.Commit) error
}

// Engine is the coordinator between the store, the change detector and
// the backend. See the package documentation for the change cycle.
type Engine struct {
	reg     *schema.Registry
	backend backend.Backend
	ids     ir.IDGenerator
	logger  *slog.Logger
	clock   *Clock
	journal Journal
	metrics *Metrics

	structural bool
	maxCascade int

	snap      *entities.Snapshot
	committed *entities.Snapshot
	pending   changes.Pending

	depth      int
	cascade    int
	postCommit bool
	last       *ir.Commit
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRegistry sets the schema registry. Default: a registry logging to
// the engine's logger.
func WithRegistry(r *schema.Registry) Option {
	return func(e *Engine) { e.reg = r }
}

// WithIDs sets the id generator. Default: random UUIDs.
func WithIDs(g ir.IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithStructuralDiff makes change cycles classify a structural diff of the
// previous and next snapshots instead of the mutators' change records.
func WithStructuralDiff(on bool) Option {
	return func(e *Engine) { e.structural = on }
}

// WithMaxCascadeDepth bounds nested dependent recomputation.
func WithMaxCascadeDepth(n int) Option {
	return func(e *Engine) { e.maxCascade = n }
}

// WithJournal sets where commits are recorded.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithMetrics sets the Prometheus collectors commits are counted in.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock sets the clock commit sequence numbers come from.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an engine driving b. The store starts empty; call Load to
// install a tree.
func New(b backend.Backend, opts ...Option) *Engine {
	empty := entities.New()
	e := &Engine{
		backend:    b,
		ids:        ir.UUIDGenerator{},
		logger:     slog.Default(),
		clock:      NewClock(),
		maxCascade: DefaultMaxCascadeDepth,
		snap:       empty,
		committed:  empty,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.reg == nil {
		e.reg = schema.NewRegistry(schema.WithLogger(e.logger))
	}
	return e
}

// Snapshot returns the live snapshot.
func (e *Engine) Snapshot() *entities.Snapshot { return e.snap }

// Committed returns the snapshot the backend last received.
func (e *Engine) Committed() *entities.Snapshot { return e.committed }

// Registry returns the schema registry.
func (e *Engine) Registry() *schema.Registry { return e.reg }

// Pending resolves the uncommitted changes against the live snapshot.
func (e *Engine) Pending() changes.ChangeSet { return e.pending.ChangeSet(e.snap) }

// Depth returns the current batch depth.
func (e *Engine) Depth() int { return e.depth }

// LastCommit returns the most recent commit, if any.
func (e *Engine) LastCommit() (ir.Commit, bool) {
	if e.last == nil {
		return ir.Commit{}, false
	}
	return *e.last, true
}

// Load replaces the store with def and resets the backend to it. Missing
// ids, settings and implicit children are filled in first; children def
// spells out are never dropped. Pending changes are discarded. A rejected
// reset is reported, but the store keeps the filled tree.
func (e *Engine) Load(ctx context.Context, def ir.NodeDef) error {
	if def.Type != ir.TypeRoot {
		return &RuntimeError{Code: ErrCodeInvalidTree, Message: fmt.Sprintf("definition has type %q", def.Type)}
	}
	if e.depth > 0 {
		return &RuntimeError{Code: ErrCodeUnbalancedBatch, Message: "load inside an open batch"}
	}
	snap, root := entities.Load(def, e.ids)
	if root != ir.RootID {
		return &RuntimeError{Code: ErrCodeInvalidTree, Message: "root does not carry the root id", NodeID: string(root)}
	}
	tx := mutate.NewTx(snap, e.reg, e.ids, e.logger)
	tx.Fill(root)
	// Reloading the filled tree leaves out settings the fill unlinked.
	stored, _ := tx.Snapshot().Denormalize(root)
	snap, _ = entities.Load(stored, e.ids)
	data, err := backend.Encode(stored)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}

	ctx, span := tracer.Start(ctx, "engine.Load",
		trace.WithAttributes(attribute.Int("tree.nodes", snap.NodeCount())),
	)
	defer span.End()

	res := commit.Dispatch(e.backend, []ir.Op{{
		Kind: ir.OpResetTree, NodeID: root, Coords: []int{}, Definition: data,
	}}, e.logger)
	e.snap, e.committed = snap, snap
	e.pending.Reset()
	e.postCommit = false

	e.record(ctx, span, ir.Commit{
		Seq:    e.clock.Next(),
		Ops:    res.Ops,
		New:    []ir.NodeID{root},
		Failed: res.Failed,
	})
	if res.Failed > 0 {
		return &RuntimeError{Code: ErrCodeRejected, Message: "backend rejected the tree reset"}
	}
	return nil
}

// Begin opens a batch. Edits made before the matching End are committed
// together.
func (e *Engine) Begin() { e.depth++ }

// End closes a batch, committing when it was the outermost one.
func (e *Engine) End(ctx context.Context) error {
	if e.depth == 0 {
		return &RuntimeError{Code: ErrCodeUnbalancedBatch, Message: "End without Begin"}
	}
	e.exit(ctx)
	return nil
}

// Batch runs fn inside Begin and End.
func (e *Engine) Batch(ctx context.Context, fn func() error) error {
	e.Begin()
	err := fn()
	if endErr := e.End(ctx); err == nil {
		err = endErr
	}
	return err
}

// AddNode inserts def under parent at index. See mutate.Tx.AddNode.
func (e *Engine) AddNode(ctx context.Context, parent ir.NodeID, index int, def ir.NodeDef) (ir.NodeID, bool) {
	var id ir.NodeID
	var ok bool
	e.dispatch(ctx, func(tx *mutate.Tx) { id, ok = tx.AddNode(parent, index, def) })
	return id, ok
}

// DeleteNode unlinks id and returns its parent.
func (e *Engine) DeleteNode(ctx context.Context, id ir.NodeID) (ir.NodeID, bool) {
	var parent ir.NodeID
	var ok bool
	e.dispatch(ctx, func(tx *mutate.Tx) { parent, ok = tx.DeleteNode(id) })
	return parent, ok
}

// SetSetting replaces the value of setting id.
func (e *Engine) SetSetting(ctx context.Context, id ir.SettingID, value ir.Value) error {
	var err error
	e.dispatch(ctx, func(tx *mutate.Tx) { err = tx.SetSetting(id, value) })
	return err
}

// SetSettingByKey replaces the value of node id's setting named key.
func (e *Engine) SetSettingByKey(ctx context.Context, id ir.NodeID, key string, value ir.Value) error {
	var err error
	e.dispatch(ctx, func(tx *mutate.Tx) { err = tx.SetSettingByKey(id, key, value) })
	return err
}

// UpdateNode recomputes id.
func (e *Engine) UpdateNode(ctx context.Context, id ir.NodeID) {
	e.dispatch(ctx, func(tx *mutate.Tx) { tx.UpdateNode(id) })
}

// ReplaceNode swaps the subtree at id for def.
func (e *Engine) ReplaceNode(ctx context.Context, id ir.NodeID, def ir.NodeDef) (ir.NodeID, bool) {
	var nid ir.NodeID
	var ok bool
	e.dispatch(ctx, func(tx *mutate.Tx) { nid, ok = tx.ReplaceNode(id, def) })
	return nid, ok
}

func (e *Engine) dispatch(ctx context.Context, fn func(tx *mutate.Tx)) {
	tx := mutate.NewTx(e.snap, e.reg, e.ids, e.logger)
	fn(tx)
	e.setSnapshot(ctx, tx.Snapshot(), tx.Changes())
}

// setSnapshot swaps in next. An identical snapshot means nothing changed
// and no change cycle runs.
func (e *Engine) setSnapshot(ctx context.Context, next *entities.Snapshot, log []ir.Change) {
	if next == e.snap {
		return
	}
	prev := e.snap
	e.snap = next
	e.onChange(ctx, prev, next, log)
}

func (e *Engine) onChange(ctx context.Context, prev, next *entities.Snapshot, log []ir.Change) {
	e.depth++
	defer e.exit(ctx)

	if e.postCommit {
		e.postCommit = false
		return
	}
	if e.structural {
		log = changes.Diff(prev, next)
	}
	touched := e.pending.Add(log, next)
	e.propagate(ctx, touched)
}

// propagate recomputes the dependent children of nodes whose children
// changed.
func (e *Engine) propagate(ctx context.Context, touched []ir.NodeID) {
	for _, id := range touched {
		for _, c := range e.snap.Children(id) {
			if !e.reg.Lookup(c.Type).DependentOnParent {
				continue
			}
			if e.cascade >= e.maxCascade {
				err := newCascadeError(string(c.ID), e.cascade, e.maxCascade)
				e.logger.Error("skipping dependent recomputation", "parent", id, "error", err)
				e.metrics.recordCascadeLimit()
				continue
			}
			e.cascade++
			e.UpdateNode(ctx, c.ID)
			e.cascade--
		}
	}
}

func (e *Engine) exit(ctx context.Context) {
	e.depth--
	if e.depth > 0 || e.pending.Empty() {
		return
	}
	e.commit(ctx)
}

func (e *Engine) commit(ctx context.Context) {
	cs := e.pending.ChangeSet(e.snap)
	e.pending.Reset()
	if cs.Empty() {
		e.committed = e.snap
		return
	}

	ctx, span := tracer.Start(ctx, "engine.Commit",
		trace.WithAttributes(
			attribute.Int("changes.new", len(cs.New)),
			attribute.Int("changes.updated", len(cs.Updated)),
			attribute.Int("changes.deleted", len(cs.Deleted)),
		),
	)
	defer span.End()

	ops := commit.Plan(e.reg, e.committed, e.snap, cs, e.logger)
	res := commit.Dispatch(e.backend, ops, e.logger)

	before := e.snap.NodeCount()
	if collected := commit.Collect(e.snap, cs); collected != e.snap {
		e.postCommit = true
		e.setSnapshot(ctx, collected, nil)
	}
	e.committed = e.snap

	e.record(ctx, span, ir.Commit{
		Seq:       e.clock.Next(),
		Ops:       res.Ops,
		New:       cs.New,
		Updated:   cs.Updated,
		Deleted:   cs.DeletedIDs(),
		Failed:    res.Failed,
		Collected: before - e.snap.NodeCount(),
	})
}

func (e *Engine) record(ctx context.Context, span trace.Span, c ir.Commit) {
	fp, err := e.snap.Fingerprint()
	if err != nil {
		e.logger.Warn("unable to fingerprint store", "error", err)
	}
	c.Fingerprint = fp

	span.SetAttributes(
		attribute.Int64("commit.seq", c.Seq),
		attribute.Int("commit.ops", len(c.Ops)),
		attribute.Int("commit.failed", c.Failed),
	)
	if c.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d backend ops rejected", c.Failed))
	}

	e.metrics.recordCommit(c)
	e.last = &c
	e.logger.Debug("commit",
		"seq", c.Seq,
		"ops", len(c.Ops),
		"failed", c.Failed,
		"collected", c.Collected,
	)

	if e.journal == nil {
		return
	}
	if err := e.journal.AppendCommit(ctx, c); err != nil {
		span.RecordError(err)
		e.logger.Error("unable to journal commit", "seq", c.Seq, "error", err)
	}
}

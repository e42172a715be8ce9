package schema

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Ameobea/noise-asmjs/internal/entities"
	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// ChildPlan declares the implicit children a node needs created or removed
// for its current settings.
type ChildPlan struct {
	NewChildren       []ir.NodeDef
	DeletedChildTypes []ir.NodeType
}

// Empty reports whether the plan asks for nothing.
func (p ChildPlan) Empty() bool {
	return len(p.NewChildren) == 0 && len(p.DeletedChildTypes) == 0
}

// Descriptor is the behavior of one node type.
type Descriptor struct {
	Type        ir.NodeType
	Title       string
	Description string

	IsLeaf          Field[bool]
	VisibleSettings Field[[]string]
	NewChildren     Field[ChildPlan]
	// ChangedSettings recomputes settings that depend on other nodes, keyed
	// by the id of the setting to overwrite.
	ChangedSettings Field[map[ir.SettingID]ir.Setting]
	IndexOffset     Field[int]
	CanBeDeleted    bool

	// DependentOnParent nodes are recomputed when their parent's children
	// change.
	DependentOnParent bool

	// Slot orders implicit children ahead of backend-visible ones. Types
	// with Slot < 0 are visible to the backend.
	Slot int

	Settings map[string]SettingDefinition

	fallback bool
}

// Implicit reports whether nodes of this type are hidden from the backend's
// child indexing.
func (d *Descriptor) Implicit() bool { return d.Slot >= 0 }

// Fallback reports whether d stands in for an unknown node type.
func (d *Descriptor) Fallback() bool { return d.fallback }

func fallbackDescriptor(t ir.NodeType) *Descriptor {
	return &Descriptor{
		Type:            t,
		Title:           string(t),
		IsLeaf:          Const[bool]{V: true},
		VisibleSettings: Const[[]string]{},
		IndexOffset:     Const[int]{V: 0},
		Slot:            -1,
		fallback:        true,
	}
}

// Registry maps node types to descriptors.
type Registry struct {
	descriptors map[ir.NodeType]*Descriptor
	logger      *slog.Logger

	mu    sync.Mutex
	hooks []func(ir.Diagnostic)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger diagnostics are written to.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry returns a registry holding the built-in node types.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		descriptors: make(map[ir.NodeType]*Descriptor),
		logger:      slog.Default(),
	}
	for _, d := range builtinDescriptors() {
		r.descriptors[d.Type] = d
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnDiagnostic registers fn to be called for every reported diagnostic.
func (r *Registry) OnDiagnostic(fn func(ir.Diagnostic)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Report logs d and passes it to the registered hooks.
func (r *Registry) Report(d ir.Diagnostic) {
	r.logger.Warn("schema diagnostic",
		"code", d.Code,
		"node_id", d.NodeID,
		"message", d.Message,
	)
	r.mu.Lock()
	hooks := append([]func(ir.Diagnostic){}, r.hooks...)
	r.mu.Unlock()
	for _, fn := range hooks {
		fn(d)
	}
}

// Lookup returns the descriptor for t. Unknown types get the fallback
// descriptor and a diagnostic.
func (r *Registry) Lookup(t ir.NodeType) *Descriptor {
	if d, ok := r.descriptors[t]; ok {
		return d
	}
	r.Report(ir.Diagnostic{
		Code:    ir.DiagUnknownNodeType,
		Message: fmt.Sprintf("no descriptor for node type %q", t),
	})
	return fallbackDescriptor(t)
}

// Known reports whether t has a registered descriptor.
func (r *Registry) Known(t ir.NodeType) bool {
	_, ok := r.descriptors[t]
	return ok
}

// Definition returns the setting definition for key on nodes of type t.
func (r *Registry) Definition(t ir.NodeType, key string) (SettingDefinition, bool) {
	d, ok := r.descriptors[t]
	if !ok {
		return SettingDefinition{}, false
	}
	def, ok := d.Settings[key]
	return def, ok
}

// Context builds the evaluation context for node id in snap.
func (r *Registry) Context(snap *entities.Snapshot, id ir.NodeID, gen ir.IDGenerator) (Context, bool) {
	n, ok := snap.Node(id)
	if !ok {
		return Context{}, false
	}
	ctx := Context{
		Node:     n,
		Settings: snap.SettingsOf(id),
		Children: snap.Children(id),
		Snapshot: snap,
		IDs:      gen,
		report:   r.Report,
	}
	if pid, ok := snap.ParentOf(id); ok {
		if p, ok := snap.Node(pid); ok {
			ctx.Parent = &p
		}
	}
	return ctx, true
}

// IndexOffset returns the number of implicit leading children of node id,
// evaluated against its current settings. Missing nodes have offset 0.
func (r *Registry) IndexOffset(snap *entities.Snapshot, id ir.NodeID) int {
	ctx, ok := r.Context(snap, id, nil)
	if !ok {
		return 0
	}
	return Resolve(r.Lookup(ctx.Node.Type).IndexOffset, ctx)
}

// IsLeaf reports whether node id holds no backend-visible children.
func (r *Registry) IsLeaf(snap *entities.Snapshot, id ir.NodeID) bool {
	ctx, ok := r.Context(snap, id, nil)
	if !ok {
		return true
	}
	return Resolve(r.Lookup(ctx.Node.Type).IsLeaf, ctx)
}

// Package mutate applies logical edits to the entity store.
//
// Every mutator runs on a Tx, which owns the working snapshot and records a
// typed change for each store write. Mutators settle all derived
// consequences of an edit (required settings, implicit children, dependent
// setting values) before returning. A mutator whose target id no longer
// resolves is a no-op.
package mutate

import (
	"log/slog"
	"slices"

	"github.com/Ameobea/noise-asmjs/internal/entities"
	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/schema"
)

// Tx is a unit of work over one snapshot.
type Tx struct {
	snap   *entities.Snapshot
	reg    *schema.Registry
	ids    ir.IDGenerator
	logger *slog.Logger
	log    []ir.Change

	// keepChildren suppresses the unlinking half of child plans.
	keepChildren bool
}

// NewTx starts a transaction on snap. A nil logger uses slog.Default.
func NewTx(snap *entities.Snapshot, reg *schema.Registry, ids ir.IDGenerator, logger *slog.Logger) *Tx {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tx{snap: snap, reg: reg, ids: ids, logger: logger}
}

// Snapshot returns the working snapshot. It is the starting snapshot when
// nothing changed.
func (tx *Tx) Snapshot() *entities.Snapshot { return tx.snap }

// Changes returns the change records emitted so far, in write order.
func (tx *Tx) Changes() []ir.Change { return tx.log }

func (tx *Tx) emit(c ir.Change) { tx.log = append(tx.log, c) }

// putNode writes n and records how it differs from the stored node.
func (tx *Tx) putNode(n ir.Node) {
	before, existed := tx.snap.Node(n.ID)
	next := tx.snap.UpsertNode(n)
	if next == tx.snap {
		return
	}
	tx.snap = next

	if !existed {
		tx.emit(ir.Change{Kind: ir.ChangeNew, Path: ir.NodePath(n.ID, "")})
		return
	}
	if before.Type != n.Type {
		tx.emit(ir.Change{
			Kind:   ir.ChangeEdit,
			Path:   ir.NodePath(n.ID, ir.FieldType),
			Before: []string{string(before.Type)},
			After:  []string{string(n.Type)},
		})
	}
	if !slices.Equal(before.Settings, n.Settings) {
		tx.emit(ir.Change{
			Kind:   ir.ChangeEdit,
			Path:   ir.NodePath(n.ID, ir.FieldSettings),
			Before: ir.SettingIDStrings(before.Settings),
			After:  ir.SettingIDStrings(n.Settings),
		})
	}
	if !slices.Equal(before.Children, n.Children) {
		tx.emit(ir.Change{
			Kind:   ir.ChangeEdit,
			Path:   ir.NodePath(n.ID, ir.FieldChildren),
			Before: ir.NodeIDStrings(before.Children),
			After:  ir.NodeIDStrings(n.Children),
		})
	}
}

// putSetting writes st and records the edit.
func (tx *Tx) putSetting(st ir.Setting) {
	before, existed := tx.snap.Setting(st.ID)
	next := tx.snap.UpsertSetting(st)
	if next == tx.snap {
		return
	}
	tx.snap = next

	switch {
	case !existed:
		tx.emit(ir.Change{Kind: ir.ChangeNew, Path: ir.SettingPath(st.ID, "")})
	case before.Key != st.Key:
		tx.emit(ir.Change{Kind: ir.ChangeEdit, Path: ir.SettingPath(st.ID, ir.FieldKey)})
	default:
		tx.emit(ir.Change{Kind: ir.ChangeEdit, Path: ir.SettingPath(st.ID, ir.FieldValue)})
	}
}

// insert normalizes def into the store, unlinked, and returns its root id.
func (tx *Tx) insert(def ir.NodeDef) ir.NodeID {
	next, ins := tx.snap.Insert(def, tx.ids)
	tx.snap = next
	for _, id := range ins.Nodes {
		tx.emit(ir.Change{Kind: ir.ChangeNew, Path: ir.NodePath(id, "")})
	}
	for _, id := range ins.Settings {
		tx.emit(ir.Change{Kind: ir.ChangeNew, Path: ir.SettingPath(id, "")})
	}
	if len(ins.Renamed) > 0 {
		tx.logger.Debug("renamed colliding ids on insert", "root", ins.Root, "renamed", len(ins.Renamed))
	}
	return ins.Root
}

// slotIndex returns where a new child of type t goes in children: implicit
// types at their slot among the leading implicit children, visible types at
// the end.
func (tx *Tx) slotIndex(children []ir.NodeID, t ir.NodeType) int {
	d := tx.reg.Lookup(t)
	if !d.Implicit() {
		return len(children)
	}
	for i, c := range children {
		n, ok := tx.snap.Node(c)
		if !ok {
			continue
		}
		cd := tx.reg.Lookup(n.Type)
		if !cd.Implicit() || cd.Slot > d.Slot {
			return i
		}
	}
	return len(children)
}

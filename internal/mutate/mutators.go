package mutate

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// ErrValueKind is returned when a setting value does not fit its definition.
var ErrValueKind = errors.New("setting value rejected")

// AddNode inserts def as a child of parent at index and settles the new
// subtree. Backend-visible node types are kept behind the parent's implicit
// children; a negative index appends. It returns the id of the inserted
// node, or false when parent does not exist.
func (tx *Tx) AddNode(parent ir.NodeID, index int, def ir.NodeDef) (ir.NodeID, bool) {
	p, ok := tx.snap.Node(parent)
	if !ok {
		tx.logger.Warn("add: parent not found", "parent", parent)
		return "", false
	}

	lo := 0
	if !tx.reg.Lookup(def.Type).Implicit() {
		lo = tx.reg.IndexOffset(tx.snap, parent)
	}
	if index < 0 || index > len(p.Children) {
		index = len(p.Children)
	}
	index = min(max(index, lo), len(p.Children))

	id := tx.insert(def)
	p = p.Clone()
	p.Children = slices.Insert(p.Children, index, id)
	tx.putNode(p)

	tx.recomputeSubtree(id)
	return id, true
}

// DeleteNode unlinks id from its parent and returns the parent, which
// becomes the selection. The subtree stays in the store until the next
// commit collects it. The root and undeletable node types are refused.
func (tx *Tx) DeleteNode(id ir.NodeID) (ir.NodeID, bool) {
	n, ok := tx.snap.Node(id)
	if !ok {
		tx.logger.Debug("delete: node not found", "node_id", id)
		return "", false
	}
	parent, ok := tx.snap.ParentOf(id)
	if !ok {
		tx.logger.Warn("delete: node has no parent", "node_id", id)
		return "", false
	}
	if !tx.reg.Lookup(n.Type).CanBeDeleted {
		tx.logger.Warn("delete: node type cannot be deleted", "node_id", id, "type", n.Type)
		return parent, false
	}

	p, _ := tx.snap.Node(parent)
	p = p.Clone()
	p.Children = slices.DeleteFunc(p.Children, func(c ir.NodeID) bool { return c == id })
	tx.putNode(p)
	return parent, true
}

// SetSetting replaces the value of setting id and recomputes its owner.
// Unknown or unowned settings are ignored. A value of the wrong kind is
// rejected with ErrValueKind and the store is left as it was.
func (tx *Tx) SetSetting(id ir.SettingID, value ir.Value) error {
	st, ok := tx.snap.Setting(id)
	if !ok {
		tx.logger.Debug("set: setting not found", "setting_id", id)
		return nil
	}
	owner, ok := tx.snap.OwnerOf(id)
	if !ok {
		tx.logger.Debug("set: setting has no owner", "setting_id", id)
		return nil
	}
	n, _ := tx.snap.Node(owner)

	if def, ok := tx.reg.Definition(n.Type, st.Key); ok {
		if err := def.Check(value); err != nil {
			tx.reg.Report(ir.Diagnostic{Code: ir.DiagValueKind, NodeID: owner, Message: err.Error()})
			return fmt.Errorf("%w: %v", ErrValueKind, err)
		}
	}

	st.Value = value
	tx.putSetting(st)
	tx.recompute(owner)
	return nil
}

// SetSettingByKey sets the first setting named key on node id.
func (tx *Tx) SetSettingByKey(id ir.NodeID, key string, value ir.Value) error {
	ctx, ok := tx.reg.Context(tx.snap, id, tx.ids)
	if !ok {
		tx.logger.Debug("set: node not found", "node_id", id)
		return nil
	}
	st, ok := ctx.Setting(key)
	if !ok {
		tx.logger.Warn("set: node has no such setting", "node_id", id, "key", key)
		return nil
	}
	return tx.SetSetting(st.ID, value)
}

// UpdateNode recomputes id without changing any value. It propagates a
// parent's structural change to a dependent child.
func (tx *Tx) UpdateNode(id ir.NodeID) {
	tx.recompute(id)
}

// ReplaceNode swaps the subtree at id for def, at the same position. The
// old subtree is unlinked and collected at the next commit.
func (tx *Tx) ReplaceNode(id ir.NodeID, def ir.NodeDef) (ir.NodeID, bool) {
	parent, ok := tx.snap.ParentOf(id)
	if !ok {
		tx.logger.Warn("replace: node has no parent", "node_id", id)
		return "", false
	}
	p, _ := tx.snap.Node(parent)
	at := slices.Index(p.Children, id)

	nid := tx.insert(def)
	p = p.Clone()
	p.Children[at] = nid
	tx.putNode(p)

	tx.recomputeSubtree(nid)
	return nid, true
}

// Normalize recomputes every node reachable from id, top-down.
func (tx *Tx) Normalize(id ir.NodeID) {
	tx.recomputeSubtree(id)
}

// Fill recomputes like Normalize but never unlinks an existing child:
// missing settings and implicit children are created, children a schema
// would drop are kept.
func (tx *Tx) Fill(id ir.NodeID) {
	tx.keepChildren = true
	defer func() { tx.keepChildren = false }()
	tx.recomputeSubtree(id)
}

package mutate

import (
	"maps"
	"slices"

	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/schema"
)

// recompute settles node id against its descriptor: required settings,
// then implicit children, then dependent setting values. Running it twice
// in a row leaves the store unchanged the second time.
func (tx *Tx) recompute(id ir.NodeID) {
	ctx, ok := tx.reg.Context(tx.snap, id, tx.ids)
	if !ok {
		return
	}
	desc := tx.reg.Lookup(ctx.Node.Type)
	if desc.Fallback() {
		return
	}

	tx.reconcileSettings(ctx, desc)

	if ctx, ok = tx.reg.Context(tx.snap, id, tx.ids); !ok {
		return
	}
	plan := schema.Resolve(desc.NewChildren, ctx)
	if tx.keepChildren {
		plan.DeletedChildTypes = nil
	}
	created := tx.applyChildPlan(ctx, plan)
	for _, c := range created {
		tx.recomputeSubtree(c)
	}

	if ctx, ok = tx.reg.Context(tx.snap, id, tx.ids); !ok {
		return
	}
	changed := schema.Resolve(desc.ChangedSettings, ctx)
	for _, sid := range slices.Sorted(maps.Keys(changed)) {
		tx.putSetting(changed[sid])
	}
}

// recomputeSubtree recomputes id and then its children, top-down.
func (tx *Tx) recomputeSubtree(id ir.NodeID) {
	tx.recompute(id)
	n, ok := tx.snap.Node(id)
	if !ok {
		return
	}
	for _, c := range n.Children {
		tx.recomputeSubtree(c)
	}
}

// reconcileSettings creates visible settings the node lacks and unlinks the
// ones no longer visible. Unlinked settings stay in the store until GC.
func (tx *Tx) reconcileSettings(ctx schema.Context, desc *schema.Descriptor) {
	visible := schema.Resolve(desc.VisibleSettings, ctx)
	present := make(map[string]bool, len(ctx.Settings))

	node := ctx.Node.Clone()
	node.Settings = node.Settings[:0]
	for _, st := range ctx.Settings {
		if !slices.Contains(visible, st.Key) {
			continue
		}
		present[st.Key] = true
		node.Settings = append(node.Settings, st.ID)
	}

	for _, key := range visible {
		if present[key] {
			continue
		}
		def, ok := desc.Settings[key]
		if !ok {
			tx.logger.Warn("visible setting has no definition", "node_type", desc.Type, "key", key)
			continue
		}
		st := ir.Setting{ID: ir.NewSettingID(tx.ids), Key: key, Value: def.DefaultValue()}
		tx.putSetting(st)
		node.Settings = append(node.Settings, st.ID)
		present[key] = true
	}

	tx.putNode(node)
}

// applyChildPlan unlinks children of deleted types and inserts the new
// children at their slots. It returns the ids of the inserted subtrees.
func (tx *Tx) applyChildPlan(ctx schema.Context, plan schema.ChildPlan) []ir.NodeID {
	if plan.Empty() {
		return nil
	}
	node := ctx.Node.Clone()

	if len(plan.DeletedChildTypes) > 0 {
		kept := node.Children[:0]
		for _, c := range ctx.Children {
			if slices.Contains(plan.DeletedChildTypes, c.Type) {
				tx.logger.Debug("unlinking obsolete child", "parent", node.ID, "child", c.ID, "type", c.Type)
				continue
			}
			kept = append(kept, c.ID)
		}
		node.Children = kept
	}

	var created []ir.NodeID
	for _, def := range plan.NewChildren {
		id := tx.insert(def)
		at := tx.slotIndex(node.Children, def.Type)
		node.Children = slices.Insert(node.Children, at, id)
		created = append(created, id)
	}

	tx.putNode(node)
	return created
}

package commit

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ameobea/noise-asmjs/internal/backend"
	"github.com/Ameobea/noise-asmjs/internal/changes"
	"github.com/Ameobea/noise-asmjs/internal/entities"
	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/mutate"
	"github.com/Ameobea/noise-asmjs/internal/schema"
	"github.com/Ameobea/noise-asmjs/internal/testutil"
)

type fixture struct {
	reg       *schema.Registry
	ids       *testutil.SequentialIDs
	committed *entities.Snapshot
	tree      *backend.Tree
}

func newFixture(t *testing.T, def ir.NodeDef) *fixture {
	t.Helper()
	ids := testutil.NewSequentialIDs("k")
	snap, _ := entities.Load(def, ids)
	f := &fixture{
		reg:       schema.NewRegistry(schema.WithLogger(testutil.QuietLogger())),
		ids:       ids,
		committed: snap,
		tree:      backend.NewTree(backend.WithTreeLogger(testutil.QuietLogger())),
	}
	require.NoError(t, f.tree.Load(denormalize(t, snap)))
	return f
}

func denormalize(t *testing.T, snap *entities.Snapshot) ir.NodeDef {
	t.Helper()
	def, ok := snap.Denormalize(ir.RootID)
	require.True(t, ok)
	return def
}

// edit runs fn in a transaction on the committed store and classifies it.
func (f *fixture) edit(fn func(tx *mutate.Tx)) (*entities.Snapshot, changes.ChangeSet) {
	tx := mutate.NewTx(f.committed, f.reg, f.ids, testutil.QuietLogger())
	fn(tx)
	return tx.Snapshot(), changes.Classify(tx.Changes(), tx.Snapshot())
}

// commit plans and dispatches, requires every op to succeed and checks the
// backend now matches a tree built from scratch out of current.
func (f *fixture) commit(t *testing.T, current *entities.Snapshot, cs changes.ChangeSet) []ir.Op {
	t.Helper()
	ops := Plan(f.reg, f.committed, current, cs, testutil.QuietLogger())
	res := Dispatch(f.tree, ops, testutil.QuietLogger())
	require.Zero(t, res.Failed, "ops: %v", res.Ops)

	want := backend.NewTree(backend.WithTreeLogger(testutil.QuietLogger()))
	require.NoError(t, want.Load(denormalize(t, current)))
	if diff := cmp.Diff(want.Root(), f.tree.Root(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("backend diverged (-rebuilt +incremental):\n%s", diff)
	}
	assert.Equal(t, want.GlobalConf(), f.tree.GlobalConf())

	f.committed = Collect(current, cs)
	return res.Ops
}

func childrenOfType(snap *entities.Snapshot, parent ir.NodeID, typ ir.NodeType) []ir.NodeID {
	var out []ir.NodeID
	for _, c := range snap.Children(parent) {
		if c.Type == typ {
			out = append(out, c.ID)
		}
	}
	return out
}

func only(snap *entities.Snapshot, parent ir.NodeID, typ ir.NodeType) ir.NodeID {
	ids := childrenOfType(snap, parent, typ)
	if len(ids) != 1 {
		return ""
	}
	return ids[0]
}

func kinds(ops []ir.Op) []ir.OpKind {
	out := make([]ir.OpKind, len(ops))
	for i, op := range ops {
		out[i] = op.Kind
	}
	return out
}

func treeWithNestedComposite() ir.NodeDef {
	def := schema.DefaultTree()
	def.Children = append(def.Children, schema.ModuleDef(schema.ModuleComposed))
	return def
}

func TestCoordinates_SubtractOffsetAtEachLevel(t *testing.T) {
	f := newFixture(t, treeWithNestedComposite())
	snap := f.committed
	modules := childrenOfType(snap, ir.RootID, ir.TypeNoiseModule)
	require.Len(t, modules, 3)
	inner := only(snap, modules[2], ir.TypeNoiseModule)

	tests := []struct {
		name string
		id   ir.NodeID
		want []int
	}{
		{"root", ir.RootID, []int{}},
		{"first module", modules[0], []int{0}},
		{"composite", modules[2], []int{2}},
		{"inside composite", inner, []int{2, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coordinates(snap, f.reg, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoordinates_FollowCurrentSettings(t *testing.T) {
	// Leaf root: offset 2, so the module at position 2 is at 0.
	billow := schema.ModuleDef("Billow")
	billow.ID = "billow"
	def := ir.NodeDef{
		ID:       ir.RootID,
		Type:     ir.TypeRoot,
		Settings: []ir.SettingDef{{Key: schema.KeyModuleType, Value: ir.String("Billow")}},
		Children: []ir.NodeDef{schema.GlobalConfDef(), schema.InputTransformationsDef(), billow},
	}
	f := newFixture(t, def)

	got, err := Coordinates(f.committed, f.reg, "billow")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got)

	// Composed root: a scheme takes slot 2 and the offset grows to 3.
	current, _ := f.edit(func(tx *mutate.Tx) {
		require.NoError(t, tx.SetSettingByKey(ir.RootID, schema.KeyModuleType, ir.String(schema.ModuleComposed)))
	})
	got, err = Coordinates(current, f.reg, "billow")
	require.NoError(t, err)
	assert.Equal(t, 3, current.IndexOf(ir.RootID, "billow"))
	assert.Equal(t, []int{0}, got)
}

func TestCoordinates_Detached(t *testing.T) {
	f := newFixture(t, schema.DefaultTree())
	billow := childrenOfType(f.committed, ir.RootID, ir.TypeNoiseModule)[1]
	current, _ := f.edit(func(tx *mutate.Tx) { tx.DeleteNode(billow) })

	_, err := Coordinates(current, f.reg, billow)
	assert.True(t, errors.Is(err, ErrDetached))
}

func TestPlan_SettingChangeReplacesModule(t *testing.T) {
	f := newFixture(t, schema.DefaultTree())
	fbm := childrenOfType(f.committed, ir.RootID, ir.TypeNoiseModule)[0]

	current, cs := f.edit(func(tx *mutate.Tx) {
		require.NoError(t, tx.SetSettingByKey(fbm, "octaves", ir.Number(3)))
	})
	ops := f.commit(t, current, cs)

	require.Len(t, ops, 1)
	assert.Equal(t, ir.OpReplaceNode, ops[0].Kind)
	assert.Equal(t, fbm, ops[0].NodeID)
	assert.Equal(t, []int{}, ops[0].Coords)
	assert.Equal(t, 0, ops[0].Index)
	assert.Equal(t, "6", mustSetting(t, f.tree.Root().Children[1].Conf, "octaves"))
	assert.Equal(t, "3", mustSetting(t, f.tree.Root().Children[0].Conf, "octaves"))
}

func mustSetting(t *testing.T, conf map[string]string, key string) string {
	t.Helper()
	v, ok := conf[key]
	require.True(t, ok, "missing %q in %v", key, conf)
	return v
}

func TestPlan_DeletesAccountForEarlierDeletes(t *testing.T) {
	f := newFixture(t, schema.DefaultTree())
	modules := childrenOfType(f.committed, ir.RootID, ir.TypeNoiseModule)

	current, cs := f.edit(func(tx *mutate.Tx) {
		// Reverse order: the plan still deletes in tree order.
		tx.DeleteNode(modules[1])
		tx.DeleteNode(modules[0])
	})
	ops := f.commit(t, current, cs)

	require.Equal(t, []ir.OpKind{ir.OpDeleteNode, ir.OpDeleteNode}, kinds(ops))
	assert.Equal(t, modules[0], ops[0].NodeID)
	assert.Equal(t, 0, ops[0].Index)
	assert.Equal(t, modules[1], ops[1].NodeID)
	assert.Equal(t, 0, ops[1].Index, "shifted by the first delete")
	assert.Empty(t, f.tree.Root().Children)
}

func TestPlan_NewModuleIndices(t *testing.T) {
	f := newFixture(t, schema.DefaultTree())
	modules := childrenOfType(f.committed, ir.RootID, ir.TypeNoiseModule)

	var front, back ir.NodeID
	current, cs := f.edit(func(tx *mutate.Tx) {
		tx.DeleteNode(modules[0])
		front, _ = tx.AddNode(ir.RootID, 0, schema.ModuleDef("Value"))
		back, _ = tx.AddNode(ir.RootID, -1, schema.ModuleDef("Constant"))
	})
	ops := f.commit(t, current, cs)

	require.Equal(t, []ir.OpKind{ir.OpDeleteNode, ir.OpAddNode, ir.OpAddNode}, kinds(ops))
	assert.Equal(t, front, ops[1].NodeID)
	assert.Equal(t, 0, ops[1].Index, "clamped behind the implicit children")
	assert.Equal(t, back, ops[2].NodeID)
	assert.Equal(t, 2, ops[2].Index)

	var types []string
	for _, m := range f.tree.Root().Children {
		types = append(types, m.ModuleType)
	}
	assert.Equal(t, []string{"Value", "Billow", "Constant"}, types)
}

func TestPlan_SpawnedChildrenRideOnTheReplace(t *testing.T) {
	f := newFixture(t, schema.DefaultTree())
	billow := childrenOfType(f.committed, ir.RootID, ir.TypeNoiseModule)[1]

	current, cs := f.edit(func(tx *mutate.Tx) {
		require.NoError(t, tx.SetSettingByKey(billow, schema.KeyModuleType, ir.String(schema.ModuleComposed)))
	})
	require.Len(t, cs.New, 2, "scheme and default child")
	ops := f.commit(t, current, cs)

	require.Equal(t, []ir.OpKind{ir.OpReplaceNode}, kinds(ops))
	assert.Equal(t, 1, ops[0].Index)
	composed := f.tree.Root().Children[1]
	assert.Equal(t, "average", composed.Scheme)
	require.Len(t, composed.Children, 1)
	assert.Equal(t, "Fbm", composed.Children[0].ModuleType)
}

func TestPlan_NestedAddressing(t *testing.T) {
	f := newFixture(t, treeWithNestedComposite())
	composite := childrenOfType(f.committed, ir.RootID, ir.TypeNoiseModule)[2]
	inner := only(f.committed, composite, ir.TypeNoiseModule)

	current, cs := f.edit(func(tx *mutate.Tx) {
		require.NoError(t, tx.SetSettingByKey(inner, "frequency", ir.Number(4)))
		tx.AddNode(composite, -1, schema.ModuleDef("Worley"))
	})
	ops := f.commit(t, current, cs)

	require.Equal(t, []ir.OpKind{ir.OpReplaceNode, ir.OpAddNode}, kinds(ops))
	assert.Equal(t, []int{2}, ops[0].Coords)
	assert.Equal(t, 0, ops[0].Index)
	assert.Equal(t, []int{2}, ops[1].Coords)
	assert.Equal(t, 1, ops[1].Index)
}

func TestPlan_CollapsingCompositeReplacesOnly(t *testing.T) {
	f := newFixture(t, treeWithNestedComposite())
	composite := childrenOfType(f.committed, ir.RootID, ir.TypeNoiseModule)[2]
	logger, logs := testutil.CapturingLogger()

	current, cs := f.edit(func(tx *mutate.Tx) {
		require.NoError(t, tx.SetSettingByKey(composite, schema.KeyModuleType, ir.String("Billow")))
	})
	require.Len(t, cs.Deleted, 2, "scheme and child unlinked")

	ops := Plan(f.reg, f.committed, current, cs, logger)
	require.Equal(t, []ir.OpKind{ir.OpReplaceNode}, kinds(ops))
	assert.Equal(t, 2, ops[0].Index)
	assert.Contains(t, logs.String(), "not addressable")
}

func TestPlan_RootChangeResetsTree(t *testing.T) {
	f := newFixture(t, schema.DefaultTree())

	current, cs := f.edit(func(tx *mutate.Tx) {
		require.NoError(t, tx.SetSettingByKey(ir.RootID, schema.KeyModuleType, ir.String("Billow")))
	})
	ops := f.commit(t, current, cs)

	require.Equal(t, []ir.OpKind{ir.OpResetTree}, kinds(ops))
	assert.False(t, f.tree.Root().Composed())
	assert.Empty(t, f.tree.Root().Children)
}

func TestPlan_GlobalConf(t *testing.T) {
	f := newFixture(t, schema.DefaultTree())
	gc := only(f.committed, ir.RootID, ir.TypeGlobalConf)

	current, cs := f.edit(func(tx *mutate.Tx) {
		require.NoError(t, tx.SetSettingByKey(gc, "speed", ir.Number(0.02)))
	})
	ops := f.commit(t, current, cs)

	require.Equal(t, []ir.OpKind{ir.OpSetGlobalConf}, kinds(ops))
	assert.Equal(t, "0.02", f.tree.GlobalConf()["speed"])
}

func TestPlan_InputTransformations(t *testing.T) {
	f := newFixture(t, schema.DefaultTree())
	rootList := only(f.committed, ir.RootID, ir.TypeInputTransformations)
	zoom := only(f.committed, rootList, ir.TypeInputTransformation)
	billow := childrenOfType(f.committed, ir.RootID, ir.TypeNoiseModule)[1]
	billowList := only(f.committed, billow, ir.TypeInputTransformations)

	t.Run("append", func(t *testing.T) {
		current, cs := f.edit(func(tx *mutate.Tx) {
			tx.AddNode(billowList, -1, schema.InputTransformationDef("scaleAll"))
		})
		ops := f.commit(t, current, cs)

		require.Equal(t, []ir.OpKind{ir.OpAddInputTransformation}, kinds(ops))
		assert.Equal(t, []int{}, ops[0].Coords)
		assert.Equal(t, 1, ops[0].Index)
	})

	t.Run("insert before an existing one rebuilds the module", func(t *testing.T) {
		current, cs := f.edit(func(tx *mutate.Tx) {
			tx.AddNode(billowList, 0, schema.InputTransformationDef("honf"))
		})
		ops := f.commit(t, current, cs)

		require.Equal(t, []ir.OpKind{ir.OpReplaceNode}, kinds(ops))
		assert.Equal(t, billow, ops[0].NodeID)
		require.Len(t, f.tree.Root().Children[1].Transformations, 2)
		assert.Equal(t, "honf", f.tree.Root().Children[1].Transformations[0].Kind)
	})

	t.Run("edit on the root", func(t *testing.T) {
		current, cs := f.edit(func(tx *mutate.Tx) {
			require.NoError(t, tx.SetSettingByKey(zoom, "zoom", ir.Number(2)))
		})
		ops := f.commit(t, current, cs)

		require.Equal(t, []ir.OpKind{ir.OpReplaceInputTransformation}, kinds(ops))
		assert.Equal(t, -1, ops[0].Index)
		assert.Equal(t, 0, ops[0].TransformationIndex)
		assert.Equal(t, "2", f.tree.Root().Transformations[0].Conf["zoom"])
	})

	t.Run("delete", func(t *testing.T) {
		current, cs := f.edit(func(tx *mutate.Tx) { tx.DeleteNode(zoom) })
		ops := f.commit(t, current, cs)

		require.Equal(t, []ir.OpKind{ir.OpDeleteInputTransformation}, kinds(ops))
		assert.Equal(t, -1, ops[0].Index)
		assert.Empty(t, f.tree.Root().Transformations)
	})
}

func TestPlan_EventLogAndDiffAgree(t *testing.T) {
	f := newFixture(t, treeWithNestedComposite())
	modules := childrenOfType(f.committed, ir.RootID, ir.TypeNoiseModule)

	tx := mutate.NewTx(f.committed, f.reg, f.ids, testutil.QuietLogger())
	tx.DeleteNode(modules[0])
	require.NoError(t, tx.SetSettingByKey(modules[1], "seed", ir.String("abc")))
	tx.AddNode(modules[2], 0, schema.ModuleDef("Value"))
	current := tx.Snapshot()

	fromLog := changes.Classify(tx.Changes(), current)
	fromDiff := changes.Classify(changes.Diff(f.committed, current), current)

	logOps := Plan(f.reg, f.committed, current, fromLog, testutil.QuietLogger())
	diffOps := Plan(f.reg, f.committed, current, fromDiff, testutil.QuietLogger())
	assert.Equal(t, logOps, diffOps)
	assert.Equal(t, []ir.OpKind{ir.OpDeleteNode, ir.OpReplaceNode, ir.OpAddNode}, kinds(logOps))
}

func TestDispatch_ContinuesPastFailures(t *testing.T) {
	f := newFixture(t, schema.DefaultTree())
	modules := childrenOfType(f.committed, ir.RootID, ir.TypeNoiseModule)

	current, cs := f.edit(func(tx *mutate.Tx) {
		tx.DeleteNode(modules[0])
		tx.AddNode(ir.RootID, -1, schema.ModuleDef("Value"))
	})
	ops := Plan(f.reg, f.committed, current, cs, testutil.QuietLogger())

	rec := backend.NewRecorder(f.tree)
	rec.FailOn(ir.OpDeleteNode)
	res := Dispatch(rec, ops, testutil.QuietLogger())

	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Ops, 2)
	assert.True(t, res.Ops[0].Failed())
	assert.False(t, res.Ops[1].Failed())
	assert.Len(t, f.tree.Root().Children, 3, "add applied, delete never forwarded")
}

func TestPlan_SkipsNodesAmongImplicitChildren(t *testing.T) {
	bare := func(id ir.NodeID, moduleType string) ir.NodeDef {
		return ir.NodeDef{
			ID:       id,
			Type:     ir.TypeNoiseModule,
			Settings: []ir.SettingDef{{Key: schema.KeyModuleType, Value: ir.String(moduleType)}},
		}
	}
	// A composed root missing its implicit children puts its modules where
	// the backend expects none.
	def := ir.NodeDef{
		ID:       ir.RootID,
		Type:     ir.TypeRoot,
		Settings: []ir.SettingDef{{Key: schema.KeyModuleType, Value: ir.String(schema.ModuleComposed)}},
		Children: []ir.NodeDef{bare("billow", "Billow"), bare("worley", "Worley")},
	}
	ids := testutil.NewSequentialIDs("k")
	committed, _ := entities.Load(def, ids)
	reg := schema.NewRegistry(schema.WithLogger(testutil.QuietLogger()))

	tx := mutate.NewTx(committed, reg, ids, testutil.QuietLogger())
	require.NoError(t, tx.SetSettingByKey("worley", schema.KeyModuleType, ir.String("Fbm")))
	current := tx.Snapshot()
	cs := changes.Classify(tx.Changes(), current)
	require.Contains(t, cs.Updated, ir.NodeID("worley"))

	logger, logs := testutil.CapturingLogger()
	ops := Plan(reg, committed, current, cs, logger)

	for _, op := range ops {
		assert.GreaterOrEqual(t, op.Index, 0, "%s for %s", op.Kind, op.NodeID)
		assert.NotEqual(t, ir.NodeID("worley"), op.NodeID)
	}
	assert.Contains(t, logs.String(), "unable to address replace")
	assert.Contains(t, logs.String(), "among its implicit children")
}

func TestCollect(t *testing.T) {
	f := newFixture(t, schema.DefaultTree())
	modules := childrenOfType(f.committed, ir.RootID, ir.TypeNoiseModule)

	t.Run("nothing to collect", func(t *testing.T) {
		assert.Same(t, f.committed, Collect(f.committed, changes.ChangeSet{}))
	})

	t.Run("deleted subtree", func(t *testing.T) {
		current, cs := f.edit(func(tx *mutate.Tx) { tx.DeleteNode(modules[1]) })
		nodes, settings := current.Descendants(modules[1])

		next := Collect(current, cs)
		for _, id := range nodes {
			assert.False(t, next.HasNode(id))
		}
		for _, id := range settings {
			assert.False(t, next.HasSetting(id))
		}
		assert.Equal(t, current.NodeCount()-len(nodes), next.NodeCount())
	})

	t.Run("discarded before commit", func(t *testing.T) {
		var id ir.NodeID
		current, cs := f.edit(func(tx *mutate.Tx) {
			id, _ = tx.AddNode(ir.RootID, -1, schema.ModuleDef("Value"))
			tx.DeleteNode(id)
		})
		require.Empty(t, cs.New)

		next := Collect(current, cs)
		assert.False(t, next.HasNode(id))
		assert.Equal(t, f.committed.NodeCount(), next.NodeCount())
		assert.Equal(t, f.committed.SettingCount(), next.SettingCount())
	})

	t.Run("nested delete under a deleted module", func(t *testing.T) {
		g := newFixture(t, treeWithNestedComposite())
		composite := childrenOfType(g.committed, ir.RootID, ir.TypeNoiseModule)[2]
		inner := only(g.committed, composite, ir.TypeNoiseModule)
		require.NotEmpty(t, inner)
		nodes, settings := g.committed.Descendants(inner)

		current, cs := g.edit(func(tx *mutate.Tx) {
			tx.DeleteNode(inner)
			tx.DeleteNode(composite)
		})
		require.Equal(t, []ir.NodeID{composite}, cs.DeletedIDs())

		next := Collect(current, cs)
		assert.False(t, next.HasNode(composite))
		for _, id := range nodes {
			assert.False(t, next.HasNode(id))
		}
		for _, id := range settings {
			assert.False(t, next.HasSetting(id))
		}
	})

	t.Run("dropped settings", func(t *testing.T) {
		current, cs := f.edit(func(tx *mutate.Tx) {
			require.NoError(t, tx.SetSettingByKey(modules[0], schema.KeyModuleType, ir.String("Value")))
		})
		require.Len(t, cs.Dropped, 4, "fractal settings")

		next := Collect(current, cs)
		for _, sid := range cs.Dropped {
			assert.False(t, next.HasSetting(sid))
		}
		assert.Equal(t, current.SettingCount()-4, next.SettingCount())
	})
}

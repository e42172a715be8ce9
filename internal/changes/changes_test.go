package changes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ameobea/noise-asmjs/internal/entities"
	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/mutate"
	"github.com/Ameobea/noise-asmjs/internal/schema"
	"github.com/Ameobea/noise-asmjs/internal/testutil"
)

type env struct {
	reg  *schema.Registry
	ids  *testutil.SequentialIDs
	base *entities.Snapshot
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ids := testutil.NewSequentialIDs("c")
	snap, _ := entities.Load(schema.DefaultTree(), ids)
	return &env{
		reg:  schema.NewRegistry(schema.WithLogger(testutil.QuietLogger())),
		ids:  ids,
		base: snap,
	}
}

func (e *env) tx() *mutate.Tx {
	return mutate.NewTx(e.base, e.reg, e.ids, testutil.QuietLogger())
}

func (e *env) modules() []ir.NodeID {
	var out []ir.NodeID
	for _, c := range e.base.Children(ir.RootID) {
		if c.Type == ir.TypeNoiseModule {
			out = append(out, c.ID)
		}
	}
	return out
}

func composedModule() ir.NodeDef {
	return ir.NodeDef{
		Type:     ir.TypeNoiseModule,
		Settings: []ir.SettingDef{{Key: schema.KeyModuleType, Value: ir.String(schema.ModuleComposed)}},
	}
}

func TestClassify_EmptyLog(t *testing.T) {
	e := newEnv(t)
	cs := Classify(nil, e.base)

	assert.True(t, cs.Empty())
	assert.Empty(t, cs.Touched)
}

func TestClassify_NewSubtreeReducedToRoot(t *testing.T) {
	e := newEnv(t)
	tx := e.tx()
	id, ok := tx.AddNode(ir.RootID, -1, composedModule())
	require.True(t, ok)

	// module -> composed children -> their transformation wrappers
	nodes, _ := tx.Snapshot().Descendants(id)
	require.GreaterOrEqual(t, len(nodes), 5)

	cs := Classify(tx.Changes(), tx.Snapshot())

	assert.Equal(t, []ir.NodeID{id}, cs.New)
	assert.Empty(t, cs.Updated, "parent gains a child but is not updated")
	assert.Equal(t, []ir.NodeID{ir.RootID}, cs.Touched)
}

func TestClassify_SettingMarksOwnerUpdated(t *testing.T) {
	e := newEnv(t)
	target := e.modules()[0]
	tx := e.tx()
	require.NoError(t, tx.SetSettingByKey(target, "octaves", ir.Number(2)))

	cs := Classify(tx.Changes(), tx.Snapshot())

	assert.Equal(t, []ir.NodeID{target}, cs.Updated)
	assert.Empty(t, cs.New)
	assert.Empty(t, cs.Deleted)
}

func TestClassify_DeleteRecordsParentAndIndex(t *testing.T) {
	e := newEnv(t)
	target := e.modules()[1]
	tx := e.tx()
	_, ok := tx.DeleteNode(target)
	require.True(t, ok)

	cs := Classify(tx.Changes(), tx.Snapshot())

	assert.Equal(t, []Deleted{{ID: target, Parent: ir.RootID, Index: 4}}, cs.Deleted)
	assert.Empty(t, cs.Updated)
}

func TestClassify_NestedDeletesReducedToRoot(t *testing.T) {
	e := newEnv(t)
	tx := e.tx()
	outer, _ := tx.AddNode(ir.RootID, -1, composedModule())
	e.base = tx.Snapshot()

	var inner ir.NodeID
	for _, c := range e.base.Children(outer) {
		if c.Type == ir.TypeNoiseModule {
			inner = c.ID
		}
	}
	require.NotEmpty(t, inner)

	tx = e.tx()
	_, ok := tx.DeleteNode(inner)
	require.True(t, ok)
	_, ok = tx.DeleteNode(outer)
	require.True(t, ok)

	cs := Classify(tx.Changes(), tx.Snapshot())

	assert.Equal(t, []ir.NodeID{outer}, cs.DeletedIDs())
	assert.ElementsMatch(t, []ir.NodeID{inner, outer}, cs.Unlinked, "both still need collecting")
}

func TestPending_CreatedThenDeletedCancels(t *testing.T) {
	e := newEnv(t)
	var p Pending

	tx := e.tx()
	id, _ := tx.AddNode(ir.RootID, -1, schema.ModuleDef("Value"))
	p.Add(tx.Changes(), tx.Snapshot())
	e.base = tx.Snapshot()

	tx = e.tx()
	_, ok := tx.DeleteNode(id)
	require.True(t, ok)
	p.Add(tx.Changes(), tx.Snapshot())

	cs := p.ChangeSet(tx.Snapshot())
	assert.Empty(t, cs.New)
	assert.Empty(t, cs.Deleted)
	assert.Equal(t, []ir.NodeID{id}, cs.Discarded, "still needs collecting")
	assert.Equal(t, []ir.NodeID{ir.RootID}, cs.Touched)
}

func TestPending_UpdatedExcludesNewAndDeleted(t *testing.T) {
	e := newEnv(t)
	var p Pending
	victim := e.modules()[0]

	tx := e.tx()
	id, _ := tx.AddNode(ir.RootID, -1, schema.ModuleDef("Value"))
	require.NoError(t, tx.SetSettingByKey(id, "seed", ir.String("abc")))
	require.NoError(t, tx.SetSettingByKey(victim, "octaves", ir.Number(1)))
	_, ok := tx.DeleteNode(victim)
	require.True(t, ok)
	p.Add(tx.Changes(), tx.Snapshot())

	cs := p.ChangeSet(tx.Snapshot())

	assert.Equal(t, []ir.NodeID{id}, cs.New)
	assert.Equal(t, []ir.NodeID{victim}, cs.DeletedIDs())
	assert.Empty(t, cs.Updated)
}

func TestPending_DroppedSettings(t *testing.T) {
	e := newEnv(t)
	target := e.modules()[0]
	before := e.base.SettingsOf(target)

	tx := e.tx()
	require.NoError(t, tx.SetSettingByKey(target, schema.KeyModuleType, ir.String("Constant")))
	cs := Classify(tx.Changes(), tx.Snapshot())

	var dropped []ir.SettingID
	for _, st := range before {
		if st.Key != schema.KeyModuleType {
			dropped = append(dropped, st.ID)
		}
	}
	assert.ElementsMatch(t, dropped, cs.Dropped)
	assert.Equal(t, []ir.NodeID{target}, cs.Updated)
}

func TestPending_MergeAndReset(t *testing.T) {
	e := newEnv(t)
	target := e.modules()[0]
	tx := e.tx()
	require.NoError(t, tx.SetSettingByKey(target, "octaves", ir.Number(2)))

	var a, b Pending
	b.Add(tx.Changes(), tx.Snapshot())
	a.Merge(&b)

	assert.False(t, a.Empty())
	assert.Equal(t, []ir.NodeID{target}, a.ChangeSet(tx.Snapshot()).Updated)

	a.Reset()
	assert.True(t, a.Empty())
}

func TestDiff_IdenticalSnapshots(t *testing.T) {
	e := newEnv(t)
	assert.Empty(t, Diff(e.base, e.base))

	again, _ := entities.Load(schema.DefaultTree(), testutil.NewSequentialIDs("c"))
	assert.Empty(t, Diff(e.base, again))
}

func TestDiff_MatchesEventLog(t *testing.T) {
	e := newEnv(t)
	mods := e.modules()
	tx := e.tx()
	_, _ = tx.AddNode(ir.RootID, 3, composedModule())
	require.NoError(t, tx.SetSettingByKey(mods[0], "frequency", ir.Number(4)))
	_, _ = tx.DeleteNode(mods[1])
	require.NoError(t, tx.SetSettingByKey(mods[0], schema.KeyModuleType, ir.String("Worley")))

	fromLog := Classify(tx.Changes(), tx.Snapshot())
	fromDiff := Classify(Diff(e.base, tx.Snapshot()), tx.Snapshot())

	assert.ElementsMatch(t, fromLog.New, fromDiff.New)
	assert.ElementsMatch(t, fromLog.Updated, fromDiff.Updated)
	// Indices differ: the log records positions mid-edit, the diff against prev.
	assert.ElementsMatch(t, fromLog.DeletedIDs(), fromDiff.DeletedIDs())
	assert.ElementsMatch(t, fromLog.Touched, fromDiff.Touched)
	assert.ElementsMatch(t, fromLog.Dropped, fromDiff.Dropped)
}

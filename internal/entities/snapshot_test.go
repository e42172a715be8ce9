package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/testutil"
)

func sampleDef() ir.NodeDef {
	return ir.NodeDef{
		ID:   ir.RootID,
		Type: ir.TypeRoot,
		Settings: []ir.SettingDef{
			{ID: "root-type", Key: "moduleType", Value: ir.String("Composed")},
		},
		Children: []ir.NodeDef{
			{
				ID:   "scheme",
				Type: ir.TypeCompositionScheme,
				Settings: []ir.SettingDef{
					{ID: "scheme-kind", Key: "compositionScheme", Value: ir.String("weightedAverage")},
					{ID: "scheme-weights", Key: "weights", Value: ir.WeightMap{"m1": 1, "m2": 0.5}},
				},
			},
			{
				ID:       "m1",
				Type:     ir.TypeNoiseModule,
				Settings: []ir.SettingDef{{ID: "m1-type", Key: "moduleType", Value: ir.String("Fbm")}},
			},
			{
				ID:       "m2",
				Type:     ir.TypeNoiseModule,
				Settings: []ir.SettingDef{{ID: "m2-type", Key: "moduleType", Value: ir.String("Composed")}},
				Children: []ir.NodeDef{
					{ID: "m2a", Type: ir.TypeNoiseModule, Settings: []ir.SettingDef{{ID: "m2a-type", Key: "moduleType", Value: ir.String("Billow")}}},
				},
			},
		},
	}
}

func loadSample(t *testing.T) *Snapshot {
	t.Helper()
	snap, root := Load(sampleDef(), testutil.NewSequentialIDs("gen"))
	require.Equal(t, ir.RootID, root)
	return snap
}

func TestUpsertNode_NewSnapshotOnChange(t *testing.T) {
	s0 := New()
	s1 := s0.UpsertNode(ir.Node{ID: "a", Type: ir.TypeNoiseModule})

	assert.NotSame(t, s0, s1)
	assert.False(t, s0.HasNode("a"), "older snapshot must not see the write")
	assert.True(t, s1.HasNode("a"))
}

func TestUpsertNode_NoOpReturnsReceiver(t *testing.T) {
	s1 := New().UpsertNode(ir.Node{ID: "a", Type: ir.TypeNoiseModule, Children: []ir.NodeID{"b"}})
	s2 := s1.UpsertNode(ir.Node{ID: "a", Type: ir.TypeNoiseModule, Children: []ir.NodeID{"b"}})

	assert.Same(t, s1, s2)
}

func TestUpsertNode_StoredNodeIsIsolated(t *testing.T) {
	children := []ir.NodeID{"b"}
	s := New().UpsertNode(ir.Node{ID: "a", Type: ir.TypeNoiseModule, Children: children})
	children[0] = "mutated"

	n, ok := s.Node("a")
	require.True(t, ok)
	assert.Equal(t, []ir.NodeID{"b"}, n.Children)
}

func TestUpsertSetting_NoOpAndChange(t *testing.T) {
	s1 := New().UpsertSetting(ir.Setting{ID: "s", Key: "seed", Value: ir.String("abc")})
	s2 := s1.UpsertSetting(ir.Setting{ID: "s", Key: "seed", Value: ir.String("abc")})
	s3 := s2.UpsertSetting(ir.Setting{ID: "s", Key: "seed", Value: ir.String("xyz")})

	assert.Same(t, s1, s2)
	assert.NotSame(t, s2, s3)
	st, _ := s3.Setting("s")
	assert.Equal(t, ir.String("xyz"), st.Value)
}

func TestParentAndOwnerIndexes(t *testing.T) {
	snap := loadSample(t)

	p, ok := snap.ParentOf("m2a")
	require.True(t, ok)
	assert.Equal(t, ir.NodeID("m2"), p)

	_, ok = snap.ParentOf(ir.RootID)
	assert.False(t, ok, "root has no parent")

	owner, ok := snap.OwnerOf("scheme-weights")
	require.True(t, ok)
	assert.Equal(t, ir.NodeID("scheme"), owner)

	assert.Equal(t, 2, snap.IndexOf(ir.RootID, "m2"))
	assert.Equal(t, -1, snap.IndexOf(ir.RootID, "m2a"))
}

func TestUpsertNode_UnlinksRemovedChildren(t *testing.T) {
	snap := loadSample(t)
	root, _ := snap.Node(ir.RootID)
	edited := root.Clone()
	edited.Children = edited.Children[:2]

	next := snap.UpsertNode(edited)

	_, ok := next.ParentOf("m2")
	assert.False(t, ok, "m2 detached")
	assert.True(t, next.HasNode("m2"), "detached node stays resolvable")
	assert.False(t, next.Attached("m2a"))
	assert.True(t, next.Attached("m1"))
}

func TestRemoveNodes(t *testing.T) {
	snap := loadSample(t)
	next := snap.RemoveNodes("m2a", "missing")

	assert.False(t, next.HasNode("m2a"))
	assert.True(t, snap.HasNode("m2a"))
	// The setting is untouched but no longer owned.
	assert.True(t, next.HasSetting("m2a-type"))
	_, owned := next.OwnerOf("m2a-type")
	assert.False(t, owned)
}

func TestRemoveNodes_MissingIsNoOp(t *testing.T) {
	snap := loadSample(t)
	assert.Same(t, snap, snap.RemoveNodes("missing"))
	assert.Same(t, snap, snap.RemoveSettings("missing"))
}

func TestDescendants(t *testing.T) {
	snap := loadSample(t)
	nodes, settings := snap.Descendants("m2")

	assert.Equal(t, []ir.NodeID{"m2", "m2a"}, nodes)
	assert.ElementsMatch(t, []ir.SettingID{"m2-type", "m2a-type"}, settings)
}

func TestDenormalizeRoundTrip(t *testing.T) {
	snap := loadSample(t)
	def, ok := snap.Denormalize(ir.RootID)
	require.True(t, ok)

	again, _ := Load(def, testutil.NewSequentialIDs("other"))
	f1, err := snap.Fingerprint()
	require.NoError(t, err)
	f2, err := again.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
}

func TestInsert_GeneratesMissingIDs(t *testing.T) {
	gen := testutil.NewSequentialIDs("gen")
	snap, ins := New().Insert(ir.NodeDef{
		Type:     ir.TypeNoiseModule,
		Settings: []ir.SettingDef{{Key: "moduleType", Value: ir.String("Fbm")}},
	}, gen)

	assert.Equal(t, ir.NodeID("gen-0001"), ins.Root)
	assert.Equal(t, []ir.SettingID{"gen-0002"}, ins.Settings)
	assert.True(t, snap.HasNode("gen-0001"))
}

func TestInsert_RootTypeTakesReservedID(t *testing.T) {
	_, ins := New().Insert(ir.NodeDef{Type: ir.TypeRoot}, testutil.NewSequentialIDs(""))
	assert.Equal(t, ir.RootID, ins.Root)
}

func TestInsert_RenamesCollidingIDsAndWeights(t *testing.T) {
	snap := loadSample(t)
	fragment := ir.NodeDef{
		ID:   "m2",
		Type: ir.TypeNoiseModule,
		Children: []ir.NodeDef{
			{
				ID:   "scheme",
				Type: ir.TypeCompositionScheme,
				Settings: []ir.SettingDef{
					{ID: "scheme-weights", Key: "weights", Value: ir.WeightMap{"m1": 2}},
				},
			},
			{ID: "m1", Type: ir.TypeNoiseModule},
		},
	}

	next, ins := snap.Insert(fragment, testutil.NewSequentialIDs("fresh"))

	require.Len(t, ins.Renamed, 3)
	newM1 := ins.Renamed["m1"]
	require.NotEmpty(t, newM1)

	weightsID := ins.Settings[0]
	assert.NotEqual(t, ir.SettingID("scheme-weights"), weightsID)
	st, ok := next.Setting(weightsID)
	require.True(t, ok)
	assert.True(t, ir.ValuesEqual(ir.WeightMap{newM1: 2}, st.Value))

	// The original entities are untouched.
	orig, _ := next.Setting("scheme-weights")
	assert.True(t, ir.ValuesEqual(ir.WeightMap{"m1": 1, "m2": 0.5}, orig.Value))
}

func TestFingerprint_ChangesWithContent(t *testing.T) {
	snap := loadSample(t)
	f1, err := snap.Fingerprint()
	require.NoError(t, err)

	next := snap.UpsertSetting(ir.Setting{ID: "m1-type", Key: "moduleType", Value: ir.String("Billow")})
	f2, err := next.Fingerprint()
	require.NoError(t, err)

	assert.NotEqual(t, f1, f2)
}

func TestNodeIDsSorted(t *testing.T) {
	snap := loadSample(t)
	ids := snap.NodeIDs()

	assert.Equal(t, []ir.NodeID{ir.RootID, "m1", "m2", "m2a", "scheme"}, ids)
	assert.Equal(t, 5, snap.NodeCount())
	assert.Equal(t, 6, snap.SettingCount())
}

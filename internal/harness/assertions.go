package harness

import (
	"fmt"
	"slices"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/Ameobea/noise-asmjs/internal/backend"
	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/schema"
	"github.com/Ameobea/noise-asmjs/internal/testutil"
)

func (r *run) check(a Assertion) error {
	switch a.Type {
	case AssertOpCount:
		return r.checkOpCount(a)
	case AssertOpOrder:
		return r.checkOpOrder(a)
	case AssertFailedOps:
		return r.checkFailedOps(a)
	case AssertModuleCount:
		return r.checkModuleCount(a)
	case AssertSetting:
		return r.checkSetting(a)
	case AssertWeightsMatch:
		return r.checkWeightsMatch(a)
	case AssertBackendMatches:
		return r.checkBackendMatches()
	case AssertDescribe:
		if r.result.Final != a.Expect {
			return fmt.Errorf("backend outline:\n%s\nwant:\n%s", r.result.Final, a.Expect)
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (r *run) checkOpCount(a Assertion) error {
	n := 0
	for _, op := range r.result.Ops {
		if a.Kind == "" || op.Kind == a.Kind {
			n++
		}
	}
	if n != *a.Count {
		if a.Kind == "" {
			return fmt.Errorf("got %d ops, want %d", n, *a.Count)
		}
		return fmt.Errorf("got %d %s ops, want %d", n, a.Kind, *a.Count)
	}
	return nil
}

// checkOpOrder passes when Kinds occur in order, not necessarily adjacent.
func (r *run) checkOpOrder(a Assertion) error {
	next := 0
	for _, op := range r.result.Ops {
		if next < len(a.Kinds) && op.Kind == a.Kinds[next] {
			next++
		}
	}
	if next < len(a.Kinds) {
		return fmt.Errorf("%s not found after %v", a.Kinds[next], a.Kinds[:next])
	}
	return nil
}

func (r *run) checkFailedOps(a Assertion) error {
	n := 0
	for _, op := range r.result.Ops {
		if op.Status != ir.StatusOK {
			n++
		}
	}
	if n != *a.Count {
		return fmt.Errorf("got %d failed ops, want %d", n, *a.Count)
	}
	return nil
}

func (r *run) childIDs(ref string, typ ir.NodeType) ([]ir.NodeID, error) {
	snap := r.engine.Snapshot()
	id, err := r.refs.resolve(snap, ref)
	if err != nil {
		return nil, err
	}
	var out []ir.NodeID
	for _, c := range snap.Children(id) {
		if c.Type == typ {
			out = append(out, c.ID)
		}
	}
	return out, nil
}

func (r *run) checkModuleCount(a Assertion) error {
	modules, err := r.childIDs(a.Node, ir.TypeNoiseModule)
	if err != nil {
		return err
	}
	if len(modules) != *a.Count {
		return fmt.Errorf("%s has %d modules, want %d", a.Node, len(modules), *a.Count)
	}
	return nil
}

func (r *run) checkSetting(a Assertion) error {
	snap := r.engine.Snapshot()
	id, err := r.refs.resolve(snap, a.Node)
	if err != nil {
		return err
	}
	want, err := ir.ValueFromAny(a.Value)
	if err != nil {
		return err
	}
	for _, st := range snap.SettingsOf(id) {
		if st.Key != a.Key {
			continue
		}
		if !ir.ValuesEqual(st.Value, want) {
			return fmt.Errorf("%s.%s = %s, want %s", a.Node, a.Key, ir.FormatValue(st.Value), ir.FormatValue(want))
		}
		return nil
	}
	return fmt.Errorf("%s has no setting %q", a.Node, a.Key)
}

// checkWeightsMatch requires the weight map of a weighted scheme to hold
// exactly the module's child modules.
func (r *run) checkWeightsMatch(a Assertion) error {
	schemes, err := r.childIDs(a.Node, ir.TypeCompositionScheme)
	if err != nil {
		return err
	}
	if len(schemes) == 0 {
		return fmt.Errorf("%s has no composition scheme", a.Node)
	}
	var weights ir.WeightMap
	for _, st := range r.engine.Snapshot().SettingsOf(schemes[0]) {
		if w, ok := st.Value.(ir.WeightMap); ok && st.Key == schema.KeyWeights {
			weights = w
		}
	}
	if weights == nil {
		return fmt.Errorf("%s scheme has no weights", a.Node)
	}

	modules, err := r.childIDs(a.Node, ir.TypeNoiseModule)
	if err != nil {
		return err
	}
	slices.Sort(modules)
	if diff := cmp.Diff(modules, weights.SortedKeys(), cmpopts.EquateEmpty()); diff != "" {
		return fmt.Errorf("weight keys differ from modules (-modules +weights):\n%s", diff)
	}
	return nil
}

// checkBackendMatches rebuilds a tree from the store and compares it to
// the incrementally maintained backend.
func (r *run) checkBackendMatches() error {
	def, ok := r.engine.Snapshot().Denormalize(ir.RootID)
	if !ok {
		return fmt.Errorf("store has no root")
	}
	want := backend.NewTree(backend.WithTreeLogger(testutil.QuietLogger()))
	if err := want.Load(def); err != nil {
		return fmt.Errorf("rebuild from store: %w", err)
	}
	if diff := cmp.Diff(want.Root(), r.tree.Root()); diff != "" {
		return fmt.Errorf("backend differs from store (-store +backend):\n%s", diff)
	}
	if diff := cmp.Diff(want.GlobalConf(), r.tree.GlobalConf()); diff != "" {
		return fmt.Errorf("global conf differs (-store +backend):\n%s", diff)
	}
	return nil
}

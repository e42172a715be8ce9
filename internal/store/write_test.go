package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/schema"
)

func TestAppendCommit_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := createTestCommit(t, 1)
	c.Ops = append(c.Ops,
		ir.Op{Kind: ir.OpDeleteInputTransformation, NodeID: "t-1", Coords: []int{0, 2}, Index: 1, TransformationIndex: 3, Status: ir.StatusError},
	)
	c.Updated = []ir.NodeID{ir.RootID}
	c.Deleted = []ir.NodeID{"gone"}
	c.Failed = 1
	c.Collected = 4

	if err := s.AppendCommit(ctx, c); err != nil {
		t.Fatalf("AppendCommit() failed: %v", err)
	}

	got, err := s.ReadCommits(ctx, 0)
	if err != nil {
		t.Fatalf("ReadCommits() failed: %v", err)
	}
	if diff := cmp.Diff([]ir.Commit{c}, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("commit mismatch (-want +got):\n%s", diff)
	}
}

func TestAppendCommit_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := createTestCommit(t, 7)
	for i := 0; i < 2; i++ {
		if err := s.AppendCommit(ctx, c); err != nil {
			t.Fatalf("AppendCommit() attempt %d failed: %v", i, err)
		}
	}

	var commits, ops int
	s.db.QueryRow("SELECT COUNT(*) FROM commits").Scan(&commits)
	s.db.QueryRow("SELECT COUNT(*) FROM commit_ops").Scan(&ops)
	if commits != 1 || ops != 1 {
		t.Errorf("got %d commits and %d ops, want 1 and 1", commits, ops)
	}
}

func TestAppendCommit_NoOps(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.AppendCommit(ctx, ir.Commit{Seq: 1, Collected: 2, Fingerprint: "fp"}); err != nil {
		t.Fatalf("AppendCommit() failed: %v", err)
	}
	got, err := s.ReadCommits(ctx, 1)
	if err != nil {
		t.Fatalf("ReadCommits() failed: %v", err)
	}
	if len(got) != 1 || len(got[0].Ops) != 0 || got[0].Collected != 2 {
		t.Errorf("ReadCommits() = %+v", got)
	}
}

func TestSaveComposition_Replaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.SaveComposition(ctx, "default", schema.DefaultTree(), 1)
	if err != nil {
		t.Fatalf("SaveComposition() failed: %v", err)
	}

	def := schema.DefaultTree()
	def.Children = def.Children[:4]
	second, err := s.SaveComposition(ctx, "default", def, 2)
	if err != nil {
		t.Fatalf("SaveComposition() second save failed: %v", err)
	}
	if first == second {
		t.Error("hash did not change with the definition")
	}

	list, err := s.ListCompositions(ctx)
	if err != nil {
		t.Fatalf("ListCompositions() failed: %v", err)
	}
	want := []CompositionInfo{{Name: "default", Hash: second, Nodes: def.Count(), SavedSeq: 2}}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveComposition_EmptyName(t *testing.T) {
	s := createTestStore(t)
	if _, err := s.SaveComposition(context.Background(), "", schema.DefaultTree(), 0); err == nil {
		t.Error("SaveComposition() accepted an empty name")
	}
}

func TestDeleteComposition(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveComposition(ctx, "a", schema.DefaultTree(), 0); err != nil {
		t.Fatalf("SaveComposition() failed: %v", err)
	}
	if err := s.DeleteComposition(ctx, "a"); err != nil {
		t.Fatalf("DeleteComposition() failed: %v", err)
	}
	if err := s.DeleteComposition(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteComposition() = %v, want ErrNotFound", err)
	}
}

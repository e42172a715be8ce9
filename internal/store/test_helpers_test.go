package store

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/Ameobea/noise-asmjs/internal/backend"
	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/schema"
)

// createTestStore opens a store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func encodedDef(t *testing.T, def ir.NodeDef) json.RawMessage {
	t.Helper()
	data, err := backend.Encode(def)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	return data
}

// createTestCommit returns a commit adding one Value module to the root.
func createTestCommit(t *testing.T, seq int64) ir.Commit {
	t.Helper()
	return ir.Commit{
		Seq: seq,
		Ops: []ir.Op{{
			Kind:       ir.OpAddNode,
			NodeID:     "n-1",
			Coords:     []int{},
			Index:      0,
			Definition: encodedDef(t, schema.ModuleDef("Value")),
		}},
		New:         []ir.NodeID{"n-1", "n-2"},
		Fingerprint: "fp",
	}
}

package store

import (
	"encoding/json"
	"fmt"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

func marshalIDs(ids []ir.NodeID) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(ir.NodeIDStrings(ids))
	if err != nil {
		return "", fmt.Errorf("marshal ids: %w", err)
	}
	return string(data), nil
}

func unmarshalIDs(data string) ([]ir.NodeID, error) {
	var raw []string
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal ids: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]ir.NodeID, len(raw))
	for i, s := range raw {
		out[i] = ir.NodeID(s)
	}
	return out, nil
}

func marshalCoords(coords []int) (string, error) {
	if coords == nil {
		coords = []int{}
	}
	data, err := json.Marshal(coords)
	if err != nil {
		return "", fmt.Errorf("marshal coords: %w", err)
	}
	return string(data), nil
}

func unmarshalCoords(data string) ([]int, error) {
	coords := []int{}
	if err := json.Unmarshal([]byte(data), &coords); err != nil {
		return nil, fmt.Errorf("unmarshal coords: %w", err)
	}
	return coords, nil
}

// marshalDefinition stores a node definition as canonical JSON so equal
// definitions are stored byte-identically.
func marshalDefinition(def ir.NodeDef) (string, error) {
	data, err := ir.MarshalCanonical(ir.DefinitionObject(def))
	if err != nil {
		return "", fmt.Errorf("marshal definition: %w", err)
	}
	return string(data), nil
}

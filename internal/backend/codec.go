package backend

import (
	"encoding/json"
	"fmt"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// IRNode is the definition format the tree engine parses. Setting values are
// strings; weight maps become JSON arrays in sibling module order.
type IRNode struct {
	Type     string      `json:"type"`
	Settings []IRSetting `json:"settings"`
	Children []IRNode    `json:"children"`
}

// IRSetting is a key and its string-encoded value.
type IRSetting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Setting returns the value of the first setting named key.
func (n IRNode) Setting(key string) (string, bool) {
	for _, s := range n.Settings {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

// ChildrenOfType returns the children with the given type, in order.
func (n IRNode) ChildrenOfType(t ir.NodeType) []IRNode {
	var out []IRNode
	for _, c := range n.Children {
		if c.Type == string(t) {
			out = append(out, c)
		}
	}
	return out
}

// ToIR converts a node definition to the engine's format.
func ToIR(def ir.NodeDef) (IRNode, error) {
	return toIR(def, nil)
}

func toIR(def ir.NodeDef, parent *ir.NodeDef) (IRNode, error) {
	node := IRNode{
		Type:     string(def.Type),
		Settings: make([]IRSetting, 0, len(def.Settings)),
		Children: make([]IRNode, 0, len(def.Children)),
	}
	for _, s := range def.Settings {
		v, err := encodeValue(s.Value, parent)
		if err != nil {
			return IRNode{}, fmt.Errorf("node %s setting %q: %w", def.ID, s.Key, err)
		}
		node.Settings = append(node.Settings, IRSetting{Key: s.Key, Value: v})
	}
	for _, c := range def.Children {
		child, err := toIR(c, &def)
		if err != nil {
			return IRNode{}, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func encodeValue(v ir.Value, parent *ir.NodeDef) (string, error) {
	w, ok := v.(ir.WeightMap)
	if !ok {
		if v == nil {
			return "", fmt.Errorf("missing value")
		}
		return ir.FormatValue(v), nil
	}

	var order []ir.NodeID
	if parent != nil {
		for _, c := range parent.Children {
			if c.Type == ir.TypeNoiseModule {
				order = append(order, c.ID)
			}
		}
	} else {
		order = w.SortedKeys()
	}
	weights := make([]float64, len(order))
	for i, id := range order {
		weights[i] = w[id]
	}
	data, err := json.Marshal(weights)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Encode renders def as the JSON payload of an add, replace or reset call.
func Encode(def ir.NodeDef) ([]byte, error) {
	node, err := ToIR(def)
	if err != nil {
		return nil, err
	}
	return json.Marshal(node)
}

// Decode parses a payload produced by Encode.
func Decode(data []byte) (IRNode, error) {
	var node IRNode
	if err := json.Unmarshal(data, &node); err != nil {
		return IRNode{}, fmt.Errorf("decode definition: %w", err)
	}
	if node.Type == "" {
		return IRNode{}, fmt.Errorf("decode definition: missing type")
	}
	return node, nil
}

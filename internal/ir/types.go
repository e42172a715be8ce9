package ir

import "fmt"

// NodeID identifies a Node in the entity store.
type NodeID string

// SettingID identifies a Setting in the entity store.
type SettingID string

// RootID is the reserved id of the tree root. The root has no parent.
const RootID NodeID = "00000000-0000-0000-0000-000000000000"

// NodeType is the type tag of a Node. It selects the node's schema descriptor.
type NodeType string

// Known node types.
const (
	TypeRoot                 NodeType = "root"
	TypeGlobalConf           NodeType = "globalConf"
	TypeNoiseModule          NodeType = "noiseModule"
	TypeCompositionScheme    NodeType = "compositionScheme"
	TypeInputTransformations NodeType = "inputTransformations"
	TypeInputTransformation  NodeType = "inputTransformation"
)

// NodeTypes lists every known node type in declaration order.
var NodeTypes = []NodeType{
	TypeRoot,
	TypeGlobalConf,
	TypeNoiseModule,
	TypeCompositionScheme,
	TypeInputTransformations,
	TypeInputTransformation,
}

// Known reports whether t is one of the fixed node types.
func (t NodeType) Known() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Node is a vertex of the composition tree as held by the entity store.
//
// Settings and Children reference other entities by id. Values stored in a
// snapshot are shared between snapshots and must be treated as read-only;
// use Clone before modifying.
type Node struct {
	ID       NodeID
	Type     NodeType
	Settings []SettingID
	Children []NodeID
}

// Clone returns a copy of n whose slices can be modified freely.
func (n Node) Clone() Node {
	return Node{
		ID:       n.ID,
		Type:     n.Type,
		Settings: append([]SettingID(nil), n.Settings...),
		Children: append([]NodeID(nil), n.Children...),
	}
}

// Equal reports whether two nodes hold the same id, type and references.
func (n Node) Equal(o Node) bool {
	if n.ID != o.ID || n.Type != o.Type {
		return false
	}
	if len(n.Settings) != len(o.Settings) || len(n.Children) != len(o.Children) {
		return false
	}
	for i := range n.Settings {
		if n.Settings[i] != o.Settings[i] {
			return false
		}
	}
	for i := range n.Children {
		if n.Children[i] != o.Children[i] {
			return false
		}
	}
	return true
}

// Setting is a single named configuration value owned by exactly one Node.
type Setting struct {
	ID    SettingID
	Key   string
	Value Value
}

// Equal reports whether two settings are identical.
func (s Setting) Equal(o Setting) bool {
	return s.ID == o.ID && s.Key == o.Key && ValuesEqual(s.Value, o.Value)
}

func (s Setting) String() string {
	return fmt.Sprintf("%s=%s", s.Key, FormatValue(s.Value))
}

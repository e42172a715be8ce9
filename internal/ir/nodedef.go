package ir

import (
	"encoding/json"
	"fmt"
)

// NodeDef is the nested, denormalized form of a subtree. It seeds the initial
// tree, describes loaded or shared compositions, and is the unit sent to the
// backend for add and replace operations.
type NodeDef struct {
	ID       NodeID       `json:"id,omitempty"`
	Type     NodeType     `json:"type"`
	Settings []SettingDef `json:"settings"`
	Children []NodeDef    `json:"children"`
}

// SettingDef is a setting inside a NodeDef.
type SettingDef struct {
	ID    SettingID `json:"id,omitempty"`
	Key   string    `json:"key"`
	Value Value     `json:"value"`
}

// MarshalJSON implements json.Marshaler for SettingDef.
func (s SettingDef) MarshalJSON() ([]byte, error) {
	value, err := MarshalValue(s.Value)
	if err != nil {
		return nil, fmt.Errorf("setting %q: %w", s.Key, err)
	}
	return json.Marshal(struct {
		ID    SettingID       `json:"id,omitempty"`
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}{s.ID, s.Key, value})
}

// UnmarshalJSON implements json.Unmarshaler for SettingDef.
func (s *SettingDef) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    SettingID       `json:"id"`
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Key == "" {
		return fmt.Errorf("setting %q: missing key", raw.ID)
	}
	value, err := UnmarshalValue(raw.Value)
	if err != nil {
		return fmt.Errorf("setting %q: %w", raw.Key, err)
	}
	*s = SettingDef{ID: raw.ID, Key: raw.Key, Value: value}
	return nil
}

// Setting returns the first setting with the given key.
func (d NodeDef) Setting(key string) (SettingDef, bool) {
	for _, s := range d.Settings {
		if s.Key == key {
			return s, true
		}
	}
	return SettingDef{}, false
}

// Walk visits d and its descendants in pre-order. Returning false from fn
// stops descent into that node's children.
func (d NodeDef) Walk(fn func(NodeDef) bool) {
	if !fn(d) {
		return
	}
	for _, child := range d.Children {
		child.Walk(fn)
	}
}

// Count returns the number of nodes in the subtree rooted at d.
func (d NodeDef) Count() int {
	n := 0
	d.Walk(func(NodeDef) bool {
		n++
		return true
	})
	return n
}

// ParseNodeDef decodes a JSON NodeDef document.
func ParseNodeDef(data []byte) (NodeDef, error) {
	var def NodeDef
	if err := json.Unmarshal(data, &def); err != nil {
		return NodeDef{}, fmt.Errorf("parse node definition: %w", err)
	}
	return def, nil
}

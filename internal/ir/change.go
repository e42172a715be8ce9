package ir

import (
	"fmt"
	"strings"
)

// ChangeKind is the kind of an elementary store edit.
type ChangeKind int

const (
	// ChangeNew records an entity that did not exist before.
	ChangeNew ChangeKind = iota
	// ChangeEdit records a field of an existing entity being replaced.
	ChangeEdit
	// ChangeDelete records an entity leaving the store.
	ChangeDelete
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeNew:
		return "New"
	case ChangeEdit:
		return "Edit"
	case ChangeDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// Collection names the entity map a change path points into.
type Collection string

const (
	CollectionNodes    Collection = "nodes"
	CollectionSettings Collection = "settings"
)

// Fields of a Node or Setting that an Edit can target.
const (
	FieldChildren = "children"
	FieldSettings = "settings"
	FieldType     = "type"
	FieldValue    = "value"
	FieldKey      = "key"
)

// Path locates a change: collection, entity id, and optionally a field.
type Path struct {
	Collection Collection
	ID         string
	Field      string
}

func (p Path) String() string {
	parts := []string{string(p.Collection), p.ID}
	if p.Field != "" {
		parts = append(parts, p.Field)
	}
	return strings.Join(parts, ".")
}

// NodePath builds a path to a node or one of its fields.
func NodePath(id NodeID, field string) Path {
	return Path{Collection: CollectionNodes, ID: string(id), Field: field}
}

// SettingPath builds a path to a setting or one of its fields.
func SettingPath(id SettingID, field string) Path {
	return Path{Collection: CollectionSettings, ID: string(id), Field: field}
}

// Change is one typed record in the edit log.
//
// For list edits (node children or settings) Before and After hold the ids
// before and after the edit, in order.
type Change struct {
	Kind   ChangeKind
	Path   Path
	Before []string
	After  []string
}

func (c Change) String() string {
	if c.Before != nil || c.After != nil {
		return fmt.Sprintf("%s %s %v -> %v", c.Kind, c.Path, c.Before, c.After)
	}
	return fmt.Sprintf("%s %s", c.Kind, c.Path)
}

// NodeIDStrings converts node ids to the string form used in Change lists.
func NodeIDStrings(ids []NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// SettingIDStrings converts setting ids to the string form used in Change lists.
func SettingIDStrings(ids []SettingID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

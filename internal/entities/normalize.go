package entities

import (
	"fmt"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// Inserted reports what Insert added to the store.
type Inserted struct {
	Root     ir.NodeID
	Nodes    []ir.NodeID // pre-order
	Settings []ir.SettingID
	// Renamed maps ids from the definition that were already taken to the
	// fresh ids they were stored under.
	Renamed map[ir.NodeID]ir.NodeID
}

// Insert normalizes def into the store without linking it to a parent.
//
// Missing ids are generated. Ids that already exist in the store, or repeat
// within def, are replaced by fresh ones and weight maps referring to them
// are rewritten. A root-typed node takes the reserved root id when it is
// free.
func (s *Snapshot) Insert(def ir.NodeDef, gen ir.IDGenerator) (*Snapshot, Inserted) {
	result := Inserted{Renamed: make(map[ir.NodeID]ir.NodeID)}
	usedNodes := make(map[ir.NodeID]bool)
	usedSettings := make(map[ir.SettingID]bool)

	nodeID := func(d ir.NodeDef) ir.NodeID {
		id := d.ID
		if id == "" && d.Type == ir.TypeRoot {
			id = ir.RootID
		}
		if id == "" || s.HasNode(id) || usedNodes[id] {
			fresh := ir.NewNodeID(gen)
			if id != "" {
				result.Renamed[id] = fresh
			}
			id = fresh
		}
		usedNodes[id] = true
		return id
	}
	settingID := func(sd ir.SettingDef) ir.SettingID {
		id := sd.ID
		if id == "" || s.HasSetting(id) || usedSettings[id] {
			id = ir.NewSettingID(gen)
		}
		usedSettings[id] = true
		return id
	}

	next := s
	var insert func(d ir.NodeDef) ir.NodeID
	insert = func(d ir.NodeDef) ir.NodeID {
		id := nodeID(d)
		result.Nodes = append(result.Nodes, id)

		node := ir.Node{ID: id, Type: d.Type}
		for _, sd := range d.Settings {
			sid := settingID(sd)
			next = next.UpsertSetting(ir.Setting{ID: sid, Key: sd.Key, Value: sd.Value})
			node.Settings = append(node.Settings, sid)
			result.Settings = append(result.Settings, sid)
		}
		for _, child := range d.Children {
			node.Children = append(node.Children, insert(child))
		}
		next = next.UpsertNode(node)
		return id
	}
	result.Root = insert(def)

	if len(result.Renamed) > 0 {
		for _, sid := range result.Settings {
			st, _ := next.Setting(sid)
			w, ok := st.Value.(ir.WeightMap)
			if !ok {
				continue
			}
			rewritten := make(ir.WeightMap, len(w))
			for k, v := range w {
				if renamed, ok := result.Renamed[k]; ok {
					k = renamed
				}
				rewritten[k] = v
			}
			st.Value = rewritten
			next = next.UpsertSetting(st)
		}
	}

	return next, result
}

// Load builds a fresh snapshot holding only def.
func Load(def ir.NodeDef, gen ir.IDGenerator) (*Snapshot, ir.NodeID) {
	snap, ins := New().Insert(def, gen)
	return snap, ins.Root
}

// Denormalize rebuilds the nested definition of the subtree rooted at id.
// Ids that do not resolve are skipped.
func (s *Snapshot) Denormalize(id ir.NodeID) (ir.NodeDef, bool) {
	n, ok := s.nodePtr(id)
	if !ok {
		return ir.NodeDef{}, false
	}
	def := ir.NodeDef{
		ID:       n.ID,
		Type:     n.Type,
		Settings: make([]ir.SettingDef, 0, len(n.Settings)),
		Children: make([]ir.NodeDef, 0, len(n.Children)),
	}
	for _, sid := range n.Settings {
		st, ok := s.Setting(sid)
		if !ok {
			continue
		}
		def.Settings = append(def.Settings, ir.SettingDef{ID: st.ID, Key: st.Key, Value: st.Value})
	}
	for _, c := range n.Children {
		if child, ok := s.Denormalize(c); ok {
			def.Children = append(def.Children, child)
		}
	}
	return def, true
}

// Fingerprint hashes the full store contents, attached or not. Two snapshots
// with equal fingerprints hold byte-identical entities.
func (s *Snapshot) Fingerprint() (string, error) {
	nodes := make(map[string]any, s.nodes.Len())
	for _, id := range s.NodeIDs() {
		n, _ := s.nodePtr(id)
		nodes[string(id)] = map[string]any{
			"type":     string(n.Type),
			"settings": ir.SettingIDStrings(n.Settings),
			"children": ir.NodeIDStrings(n.Children),
		}
	}
	settings := make(map[string]any, s.settings.Len())
	for _, id := range s.SettingIDs() {
		st, _ := s.settingPtr(id)
		if st.Value == nil {
			return "", fmt.Errorf("fingerprint: setting %s has no value", id)
		}
		settings[string(id)] = map[string]any{
			"key":   st.Key,
			"value": st.Value,
		}
	}
	canonical, err := ir.MarshalCanonical(map[string]any{
		"nodes":    nodes,
		"settings": settings,
	})
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return ir.HashWithDomain(ir.DomainSnapshot, canonical), nil
}

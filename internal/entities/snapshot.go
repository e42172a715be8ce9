package entities

import (
	"slices"

	"src.elv.sh/pkg/persistent/hash"
	"src.elv.sh/pkg/persistent/hashmap"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// All map keys are plain strings so one equality and hash pair serves every
// index.
func equalKey(k1, k2 any) bool { return k1.(string) == k2.(string) }
func hashKey(k any) uint32     { return hash.String(k.(string)) }

var emptyMap = hashmap.New(equalKey, hashKey)

// Snapshot is an immutable view of the entity store.
type Snapshot struct {
	nodes    hashmap.Map // NodeID -> *ir.Node
	settings hashmap.Map // SettingID -> *ir.Setting
	parents  hashmap.Map // child NodeID -> parent NodeID
	owners   hashmap.Map // SettingID -> owning NodeID
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{
		nodes:    emptyMap,
		settings: emptyMap,
		parents:  emptyMap,
		owners:   emptyMap,
	}
}

func (s *Snapshot) with(fn func(next *Snapshot)) *Snapshot {
	next := *s
	fn(&next)
	return &next
}

func (s *Snapshot) nodePtr(id ir.NodeID) (*ir.Node, bool) {
	v, ok := s.nodes.Index(string(id))
	if !ok {
		return nil, false
	}
	return v.(*ir.Node), true
}

func (s *Snapshot) settingPtr(id ir.SettingID) (*ir.Setting, bool) {
	v, ok := s.settings.Index(string(id))
	if !ok {
		return nil, false
	}
	return v.(*ir.Setting), true
}

// Node returns the node with the given id. The returned value shares its
// slices with the snapshot and must not be modified.
func (s *Snapshot) Node(id ir.NodeID) (ir.Node, bool) {
	n, ok := s.nodePtr(id)
	if !ok {
		return ir.Node{}, false
	}
	return *n, true
}

// Setting returns the setting with the given id.
func (s *Snapshot) Setting(id ir.SettingID) (ir.Setting, bool) {
	st, ok := s.settingPtr(id)
	if !ok {
		return ir.Setting{}, false
	}
	return *st, true
}

// HasNode reports whether id resolves in the snapshot.
func (s *Snapshot) HasNode(id ir.NodeID) bool {
	return hashmap.HasKey(s.nodes, string(id))
}

// HasSetting reports whether id resolves in the snapshot.
func (s *Snapshot) HasSetting(id ir.SettingID) bool {
	return hashmap.HasKey(s.settings, string(id))
}

// NodeCount returns the number of nodes held, attached or not.
func (s *Snapshot) NodeCount() int { return s.nodes.Len() }

// SettingCount returns the number of settings held, owned or not.
func (s *Snapshot) SettingCount() int { return s.settings.Len() }

// UpsertNode stores n, replacing any node with the same id.
// The parent and owner indexes follow n's children and settings lists.
func (s *Snapshot) UpsertNode(n ir.Node) *Snapshot {
	old, existed := s.nodePtr(n.ID)
	if existed && old.Equal(n) {
		return s
	}
	stored := n.Clone()

	return s.with(func(next *Snapshot) {
		next.nodes = next.nodes.Assoc(string(n.ID), &stored)

		if existed {
			for _, c := range old.Children {
				if !slices.Contains(stored.Children, c) && next.parentIs(c, n.ID) {
					next.parents = next.parents.Dissoc(string(c))
				}
			}
			for _, sid := range old.Settings {
				if !slices.Contains(stored.Settings, sid) && next.ownerIs(sid, n.ID) {
					next.owners = next.owners.Dissoc(string(sid))
				}
			}
		}
		for _, c := range stored.Children {
			next.parents = next.parents.Assoc(string(c), string(n.ID))
		}
		for _, sid := range stored.Settings {
			next.owners = next.owners.Assoc(string(sid), string(n.ID))
		}
	})
}

// UpsertSetting stores st, replacing any setting with the same id.
func (s *Snapshot) UpsertSetting(st ir.Setting) *Snapshot {
	if old, ok := s.settingPtr(st.ID); ok && old.Equal(st) {
		return s
	}
	stored := st
	if w, ok := st.Value.(ir.WeightMap); ok {
		stored.Value = w.Clone()
	}
	return s.with(func(next *Snapshot) {
		next.settings = next.settings.Assoc(string(st.ID), &stored)
	})
}

// RemoveNodes drops the given nodes and their index entries. Settings and
// children they reference are left in place. Missing ids are ignored.
func (s *Snapshot) RemoveNodes(ids ...ir.NodeID) *Snapshot {
	next := s
	for _, id := range ids {
		n, ok := next.nodePtr(id)
		if !ok {
			continue
		}
		next = next.with(func(nx *Snapshot) {
			nx.nodes = nx.nodes.Dissoc(string(id))
			nx.parents = nx.parents.Dissoc(string(id))
			for _, c := range n.Children {
				if nx.parentIs(c, id) {
					nx.parents = nx.parents.Dissoc(string(c))
				}
			}
			for _, sid := range n.Settings {
				if nx.ownerIs(sid, id) {
					nx.owners = nx.owners.Dissoc(string(sid))
				}
			}
		})
	}
	return next
}

// RemoveSettings drops the given settings. Missing ids are ignored.
func (s *Snapshot) RemoveSettings(ids ...ir.SettingID) *Snapshot {
	next := s
	for _, id := range ids {
		if !next.HasSetting(id) {
			continue
		}
		next = next.with(func(nx *Snapshot) {
			nx.settings = nx.settings.Dissoc(string(id))
			nx.owners = nx.owners.Dissoc(string(id))
		})
	}
	return next
}

func (s *Snapshot) parentIs(child, parent ir.NodeID) bool {
	p, ok := s.parents.Index(string(child))
	return ok && p.(string) == string(parent)
}

func (s *Snapshot) ownerIs(setting ir.SettingID, owner ir.NodeID) bool {
	o, ok := s.owners.Index(string(setting))
	return ok && o.(string) == string(owner)
}

// NodeIDs returns every node id in ascending order.
func (s *Snapshot) NodeIDs() []ir.NodeID {
	ids := make([]ir.NodeID, 0, s.nodes.Len())
	for it := s.nodes.Iterator(); it.HasElem(); it.Next() {
		k, _ := it.Elem()
		ids = append(ids, ir.NodeID(k.(string)))
	}
	slices.Sort(ids)
	return ids
}

// SettingIDs returns every setting id in ascending order.
func (s *Snapshot) SettingIDs() []ir.SettingID {
	ids := make([]ir.SettingID, 0, s.settings.Len())
	for it := s.settings.Iterator(); it.HasElem(); it.Next() {
		k, _ := it.Elem()
		ids = append(ids, ir.SettingID(k.(string)))
	}
	slices.Sort(ids)
	return ids
}

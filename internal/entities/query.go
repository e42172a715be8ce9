package entities

import (
	"slices"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// ParentOf returns the node whose children list contains id.
// The root and detached nodes have no parent.
func (s *Snapshot) ParentOf(id ir.NodeID) (ir.NodeID, bool) {
	p, ok := s.parents.Index(string(id))
	if !ok {
		return "", false
	}
	return ir.NodeID(p.(string)), true
}

// OwnerOf returns the node whose settings list contains id.
func (s *Snapshot) OwnerOf(id ir.SettingID) (ir.NodeID, bool) {
	o, ok := s.owners.Index(string(id))
	if !ok {
		return "", false
	}
	return ir.NodeID(o.(string)), true
}

// IndexOf returns the position of child in parent's children list, or -1.
func (s *Snapshot) IndexOf(parent, child ir.NodeID) int {
	p, ok := s.nodePtr(parent)
	if !ok {
		return -1
	}
	return slices.Index(p.Children, child)
}

// Children resolves id's children in order, skipping ids that do not resolve.
func (s *Snapshot) Children(id ir.NodeID) []ir.Node {
	n, ok := s.nodePtr(id)
	if !ok {
		return nil
	}
	out := make([]ir.Node, 0, len(n.Children))
	for _, c := range n.Children {
		if child, ok := s.Node(c); ok {
			out = append(out, child)
		}
	}
	return out
}

// SettingsOf resolves id's settings in order, skipping ids that do not resolve.
func (s *Snapshot) SettingsOf(id ir.NodeID) []ir.Setting {
	n, ok := s.nodePtr(id)
	if !ok {
		return nil
	}
	out := make([]ir.Setting, 0, len(n.Settings))
	for _, sid := range n.Settings {
		if st, ok := s.Setting(sid); ok {
			out = append(out, st)
		}
	}
	return out
}

// Ancestors returns id's ancestors, nearest first, ending at the topmost
// node reachable through parent links.
func (s *Snapshot) Ancestors(id ir.NodeID) []ir.NodeID {
	var out []ir.NodeID
	seen := map[ir.NodeID]bool{id: true}
	for cur := id; ; {
		p, ok := s.ParentOf(cur)
		if !ok || seen[p] {
			return out
		}
		seen[p] = true
		out = append(out, p)
		cur = p
	}
}

// Attached reports whether id is the root or reaches it through parents.
func (s *Snapshot) Attached(id ir.NodeID) bool {
	if !s.HasNode(id) {
		return false
	}
	if id == ir.RootID {
		return true
	}
	anc := s.Ancestors(id)
	return len(anc) > 0 && anc[len(anc)-1] == ir.RootID
}

// Descendants returns every node id in the subtree rooted at id (id
// included, pre-order) and every setting id those nodes reference.
func (s *Snapshot) Descendants(id ir.NodeID) ([]ir.NodeID, []ir.SettingID) {
	var nodes []ir.NodeID
	var settings []ir.SettingID
	seen := make(map[ir.NodeID]bool)

	var walk func(ir.NodeID)
	walk = func(cur ir.NodeID) {
		if seen[cur] {
			return
		}
		seen[cur] = true
		n, ok := s.nodePtr(cur)
		if !ok {
			return
		}
		nodes = append(nodes, cur)
		settings = append(settings, n.Settings...)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(id)
	return nodes, settings
}

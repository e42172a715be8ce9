// Package changes classifies store edits into the new, updated and deleted
// node sets a commit translates into backend operations.
package changes

import (
	"slices"

	"github.com/Ameobea/noise-asmjs/internal/entities"
	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// Deleted records a node unlinked from its parent, with the index it held
// before the edit.
type Deleted struct {
	ID     ir.NodeID `json:"id"`
	Parent ir.NodeID `json:"parent"`
	Index  int       `json:"index"`
}

// ChangeSet is the net effect of the edits since the last commit.
//
// New and Deleted hold subtree roots only. Updated never overlaps New or
// Deleted. Touched lists pre-existing nodes whose children list changed;
// they are not updated by that alone. Dropped lists settings unlinked from
// their node. Discarded lists subtrees created and unlinked again before
// reaching the backend; they only need collecting. Unlinked lists every
// pre-existing node unlinked and not linked back, nested ones included, so
// that collection reaches subtrees Deleted leaves out.
type ChangeSet struct {
	New       []ir.NodeID    `json:"new,omitempty"`
	Updated   []ir.NodeID    `json:"updated,omitempty"`
	Deleted   []Deleted      `json:"deleted,omitempty"`
	Touched   []ir.NodeID    `json:"touched,omitempty"`
	Dropped   []ir.SettingID `json:"dropped,omitempty"`
	Discarded []ir.NodeID    `json:"discarded,omitempty"`
	Unlinked  []ir.NodeID    `json:"unlinked,omitempty"`
}

// Empty reports whether the set asks for no backend work and no collection.
func (c ChangeSet) Empty() bool {
	return len(c.New) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0 &&
		len(c.Dropped) == 0 && len(c.Discarded) == 0 && len(c.Unlinked) == 0
}

// DeletedIDs returns the ids of the deleted subtree roots.
func (c ChangeSet) DeletedIDs() []ir.NodeID {
	out := make([]ir.NodeID, len(c.Deleted))
	for i, d := range c.Deleted {
		out[i] = d.ID
	}
	return out
}

// orderedSet keeps first-insertion order.
type orderedSet[T comparable] struct {
	items []T
	index map[T]bool
}

func (s *orderedSet[T]) add(v T) bool {
	if s.index == nil {
		s.index = make(map[T]bool)
	}
	if s.index[v] {
		return false
	}
	s.index[v] = true
	s.items = append(s.items, v)
	return true
}

func (s *orderedSet[T]) remove(v T) {
	if !s.index[v] {
		return
	}
	delete(s.index, v)
	s.items = slices.DeleteFunc(s.items, func(x T) bool { return x == v })
}

func (s *orderedSet[T]) has(v T) bool { return s.index[v] }

func (s *orderedSet[T]) len() int { return len(s.items) }

// Pending accumulates classified edits between commits. The zero value is
// ready to use.
type Pending struct {
	created   orderedSet[ir.NodeID]
	updated   orderedSet[ir.NodeID]
	touched   orderedSet[ir.NodeID]
	dropped   orderedSet[ir.SettingID]
	discarded orderedSet[ir.NodeID]
	deleted   []Deleted
}

// Empty reports whether nothing is pending.
func (p *Pending) Empty() bool {
	return p.created.len() == 0 && p.updated.len() == 0 && len(p.deleted) == 0 &&
		p.dropped.len() == 0 && p.discarded.len() == 0
}

// Reset forgets everything pending.
func (p *Pending) Reset() {
	*p = Pending{}
}

// Merge folds another pending set into p.
func (p *Pending) Merge(o *Pending) {
	for _, id := range o.created.items {
		p.created.add(id)
	}
	for _, id := range o.updated.items {
		p.updated.add(id)
	}
	for _, id := range o.touched.items {
		p.touched.add(id)
	}
	for _, id := range o.dropped.items {
		p.dropped.add(id)
	}
	for _, id := range o.discarded.items {
		p.discarded.add(id)
	}
	for _, d := range o.deleted {
		p.addDeleted(d)
	}
}

func (p *Pending) addDeleted(d Deleted) {
	// A node created and unlinked since the last commit never reached the
	// backend.
	if p.created.has(d.ID) {
		p.created.remove(d.ID)
		p.discarded.add(d.ID)
		return
	}
	for _, existing := range p.deleted {
		if existing.ID == d.ID {
			return
		}
	}
	p.deleted = append(p.deleted, d)
}

// ChangeSet resolves the pending edits against snap, the latest snapshot.
func (p *Pending) ChangeSet(snap *entities.Snapshot) ChangeSet {
	var cs ChangeSet

	deletedIDs := make(map[ir.NodeID]bool, len(p.deleted))
	for _, d := range p.deleted {
		deletedIDs[d.ID] = true
	}
	for _, d := range p.deleted {
		if snap.Attached(d.ID) {
			// Re-linked after being unlinked.
			continue
		}
		cs.Unlinked = append(cs.Unlinked, d.ID)
		if deletedIDs[d.Parent] || anyAncestorIn(snap, d.Parent, deletedIDs) {
			continue
		}
		cs.Deleted = append(cs.Deleted, d)
	}

	for _, id := range p.created.items {
		if !snap.Attached(id) {
			continue
		}
		if anyAncestorIn(snap, id, p.created.index) {
			continue
		}
		cs.New = append(cs.New, id)
	}

	for _, id := range p.updated.items {
		if p.created.has(id) || deletedIDs[id] || !snap.HasNode(id) {
			continue
		}
		cs.Updated = append(cs.Updated, id)
	}

	for _, id := range p.touched.items {
		if snap.HasNode(id) && !p.created.has(id) {
			cs.Touched = append(cs.Touched, id)
		}
	}
	cs.Dropped = append(cs.Dropped, p.dropped.items...)
	for _, id := range p.discarded.items {
		if !snap.Attached(id) {
			cs.Discarded = append(cs.Discarded, id)
		}
	}
	return cs
}

func anyAncestorIn(snap *entities.Snapshot, id ir.NodeID, set map[ir.NodeID]bool) bool {
	for _, a := range snap.Ancestors(id) {
		if set[a] {
			return true
		}
	}
	return false
}

package changes

import (
	"slices"

	"github.com/Ameobea/noise-asmjs/internal/entities"
	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// Add classifies log, the edits that produced snap, and folds them into p.
// It returns the nodes whose children list changed in this log, in order.
func (p *Pending) Add(log []ir.Change, snap *entities.Snapshot) []ir.NodeID {
	var touched orderedSet[ir.NodeID]

	for _, c := range log {
		switch c.Path.Collection {
		case ir.CollectionNodes:
			id := ir.NodeID(c.Path.ID)
			switch {
			case c.Kind == ir.ChangeNew:
				p.created.add(id)
			case c.Kind != ir.ChangeEdit:
				// Deletes come from collection and carry no intent.
			case c.Path.Field == ir.FieldChildren:
				p.childrenEdit(id, c.Before, c.After)
				touched.add(id)
			case c.Path.Field == ir.FieldSettings:
				for _, sid := range c.Before {
					if !slices.Contains(c.After, sid) {
						p.dropped.add(ir.SettingID(sid))
					}
				}
				p.updated.add(id)
			default:
				p.updated.add(id)
			}

		case ir.CollectionSettings:
			if c.Kind == ir.ChangeDelete {
				continue
			}
			if owner, ok := snap.OwnerOf(ir.SettingID(c.Path.ID)); ok {
				p.updated.add(owner)
			}
		}
	}

	for _, id := range touched.items {
		p.touched.add(id)
	}
	return touched.items
}

func (p *Pending) childrenEdit(parent ir.NodeID, before, after []string) {
	for i, c := range before {
		if !slices.Contains(after, c) {
			p.addDeleted(Deleted{ID: ir.NodeID(c), Parent: parent, Index: i})
		}
	}
	for _, c := range after {
		if !slices.Contains(before, c) {
			p.created.add(ir.NodeID(c))
		}
	}
}

// Classify resolves a single log against the snapshot it produced.
func Classify(log []ir.Change, snap *entities.Snapshot) ChangeSet {
	var p Pending
	p.Add(log, snap)
	return p.ChangeSet(snap)
}

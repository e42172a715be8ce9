package commit

import (
	"slices"

	"github.com/Ameobea/noise-asmjs/internal/changes"
	"github.com/Ameobea/noise-asmjs/internal/entities"
	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// Collect removes what cs left unreachable: the subtrees of unlinked and
// discarded nodes, and dropped settings no node owns any more. Anything
// that was linked back in meanwhile is kept. It returns snap itself when
// there was nothing to remove.
func Collect(snap *entities.Snapshot, cs changes.ChangeSet) *entities.Snapshot {
	next := snap
	roots := append(slices.Clone(cs.Unlinked), cs.Discarded...)
	for _, root := range roots {
		if !next.HasNode(root) || next.Attached(root) {
			continue
		}
		nodes, _ := next.Descendants(root)
		var dead []ir.NodeID
		var settings []ir.SettingID
		for _, id := range nodes {
			if next.Attached(id) {
				continue
			}
			n, _ := next.Node(id)
			dead = append(dead, id)
			settings = append(settings, n.Settings...)
		}
		next = next.RemoveNodes(dead...).RemoveSettings(settings...)
	}
	for _, sid := range cs.Dropped {
		if _, owned := next.OwnerOf(sid); !owned {
			next = next.RemoveSettings(sid)
		}
	}
	return next
}

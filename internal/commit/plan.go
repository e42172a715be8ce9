package commit

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Ameobea/noise-asmjs/internal/backend"
	"github.com/Ameobea/noise-asmjs/internal/changes"
	"github.com/Ameobea/noise-asmjs/internal/entities"
	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/schema"
)

// Plan translates cs into backend operations.
//
// committed is the store as of the previous commit, which is what the
// backend mirrors; current is the store now. Deletes are issued first,
// then replacements, then additions. Each op is addressed against a
// mirror of the backend that advances as ops are planned, so indices stay
// valid while earlier ops shift siblings.
//
// Changes the backend has no call for are promoted to a replacement of
// the module that owns them, and any op inside a subtree that is itself
// replaced or added is dropped. A replaced root becomes a single reset.
func Plan(reg *schema.Registry, committed, current *entities.Snapshot, cs changes.ChangeSet, logger *slog.Logger) []ir.Op {
	if logger == nil {
		logger = slog.Default()
	}
	p := &planner{
		reg:       reg,
		committed: committed,
		current:   current,
		mirror:    committed,
		logger:    logger,
		news:      make(map[ir.NodeID]bool, len(cs.New)),
	}
	for _, id := range cs.New {
		p.news[id] = true
	}

	for _, d := range cs.Deleted {
		p.promoteDeleted(d)
	}
	for _, id := range cs.Updated {
		p.promoteUpdated(id)
	}
	for _, id := range cs.New {
		p.promoteNew(id)
	}

	if p.replace.has(ir.RootID) || p.add.has(ir.RootID) {
		return p.reset()
	}
	p.subsume()

	p.planDeletes()
	p.planUpdates()
	p.planNews()
	return p.ops
}

type idSet struct {
	items []ir.NodeID
	index map[ir.NodeID]bool
}

func (s *idSet) add(id ir.NodeID) {
	if s.index == nil {
		s.index = make(map[ir.NodeID]bool)
	}
	if !s.index[id] {
		s.index[id] = true
		s.items = append(s.items, id)
	}
}

func (s *idSet) has(id ir.NodeID) bool { return s.index[id] }

func (s *idSet) filter(keep func(ir.NodeID) bool) {
	kept := s.items[:0]
	for _, id := range s.items {
		if keep(id) {
			kept = append(kept, id)
		} else {
			delete(s.index, id)
		}
	}
	s.items = kept
}

type planner struct {
	reg                        *schema.Registry
	committed, current, mirror *entities.Snapshot
	logger                     *slog.Logger
	news                       map[ir.NodeID]bool

	replace    idSet // modules
	add        idSet // modules
	remove     []changes.Deleted
	globalConf ir.NodeID
	trReplace  idSet
	trAdd      idSet
	trRemove   []changes.Deleted

	ops []ir.Op
}

// nodeType looks id up in the current store, then in the committed one.
func (p *planner) nodeType(id ir.NodeID) (ir.NodeType, bool) {
	if n, ok := p.current.Node(id); ok {
		return n.Type, true
	}
	if n, ok := p.committed.Node(id); ok {
		return n.Type, true
	}
	return "", false
}

func (p *planner) replaceOwner(id ir.NodeID) {
	m, ok := moduleOf(p.current, id)
	if !ok {
		p.logger.Warn("commit: no owning module", "node_id", id)
		return
	}
	p.replace.add(m)
}

func (p *planner) promoteUpdated(id ir.NodeID) {
	t, _ := p.nodeType(id)
	switch t {
	case ir.TypeRoot, ir.TypeNoiseModule:
		p.replace.add(id)
	case ir.TypeGlobalConf:
		p.globalConf = id
	case ir.TypeCompositionScheme, ir.TypeInputTransformations:
		p.replaceOwner(id)
	case ir.TypeInputTransformation:
		p.trReplace.add(id)
	default:
		p.logger.Warn("commit: update has no backend counterpart", "node_id", id, "type", t)
	}
}

func (p *planner) promoteNew(id ir.NodeID) {
	t, _ := p.nodeType(id)
	switch t {
	case ir.TypeRoot:
		p.replace.add(id)
	case ir.TypeNoiseModule:
		p.add.add(id)
	case ir.TypeGlobalConf:
		p.globalConf = id
	case ir.TypeCompositionScheme, ir.TypeInputTransformations:
		p.replaceOwner(id)
	case ir.TypeInputTransformation:
		if p.appended(id) {
			p.trAdd.add(id)
		} else {
			p.replaceOwner(id)
		}
	default:
		p.logger.Warn("commit: new node has no backend counterpart", "node_id", id, "type", t)
	}
}

// appended reports whether every transformation after id is new as well,
// so the backend can take it as an append.
func (p *planner) appended(id ir.NodeID) bool {
	wrapper, ok := p.current.ParentOf(id)
	if !ok {
		return false
	}
	w, _ := p.current.Node(wrapper)
	at := slices.Index(w.Children, id)
	for _, sib := range w.Children[at+1:] {
		if !p.news[sib] {
			return false
		}
	}
	return true
}

func (p *planner) promoteDeleted(d changes.Deleted) {
	t, _ := p.nodeType(d.ID)
	switch t {
	case ir.TypeNoiseModule:
		p.remove = append(p.remove, d)
	case ir.TypeInputTransformation:
		p.trRemove = append(p.trRemove, d)
	default:
		// Implicit children are not addressable; the owner is rebuilt.
		p.logger.Warn("commit: delete is not addressable, replacing owner",
			"node_id", d.ID, "type", t, "parent", d.Parent)
		p.replaceOwner(d.Parent)
	}
}

// covered reports whether id lies strictly inside a subtree that is
// replaced or added whole.
func (p *planner) covered(id ir.NodeID) bool {
	for _, a := range p.current.Ancestors(id) {
		if p.replace.has(a) || p.add.has(a) {
			return true
		}
	}
	return false
}

// coveredAt reports whether id itself or one of its ancestors is rebuilt.
func (p *planner) coveredAt(id ir.NodeID) bool {
	return p.replace.has(id) || p.add.has(id) || p.covered(id)
}

func (p *planner) subsume() {
	attached := func(id ir.NodeID) bool {
		if !p.current.Attached(id) {
			p.logger.Debug("commit: skipping detached node", "node_id", id)
			return false
		}
		return true
	}
	// Decide from the unfiltered sets so a dropped op cannot unshadow
	// its own descendants.
	var drop idSet
	for _, id := range append(slices.Clone(p.replace.items), p.add.items...) {
		if !attached(id) || p.covered(id) {
			drop.add(id)
		}
	}
	p.replace.filter(func(id ir.NodeID) bool { return !drop.has(id) })
	p.add.filter(func(id ir.NodeID) bool { return !drop.has(id) })

	p.remove = slices.DeleteFunc(p.remove, func(d changes.Deleted) bool { return p.coveredAt(d.Parent) })
	p.trRemove = slices.DeleteFunc(p.trRemove, func(d changes.Deleted) bool { return p.coveredAt(d.Parent) })
	p.trReplace.filter(func(id ir.NodeID) bool { return attached(id) && !p.covered(id) })
	p.trAdd.filter(func(id ir.NodeID) bool { return attached(id) && !p.covered(id) })
	if p.globalConf != "" && (!p.current.Attached(p.globalConf) || p.covered(p.globalConf)) {
		p.globalConf = ""
	}
}

func (p *planner) reset() []ir.Op {
	def, err := p.definition(ir.RootID)
	if err != nil {
		p.logger.Error("commit: unable to encode tree", "error", err)
		return nil
	}
	return []ir.Op{{Kind: ir.OpResetTree, NodeID: ir.RootID, Coords: []int{}, Definition: def}}
}

func (p *planner) definition(id ir.NodeID) ([]byte, error) {
	def, ok := p.current.Denormalize(id)
	if !ok {
		return nil, fmt.Errorf("node %s not found", id)
	}
	return backend.Encode(def)
}

// preorder numbers the nodes reachable from the root.
func preorder(snap *entities.Snapshot) map[ir.NodeID]int {
	order := make(map[ir.NodeID]int)
	var walk func(ir.NodeID)
	walk = func(id ir.NodeID) {
		if _, seen := order[id]; seen {
			return
		}
		n, ok := snap.Node(id)
		if !ok {
			return
		}
		order[id] = len(order)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(ir.RootID)
	return order
}

func byOrder(order map[ir.NodeID]int) func(a, b ir.NodeID) int {
	rank := func(id ir.NodeID) int {
		if r, ok := order[id]; ok {
			return r
		}
		return len(order)
	}
	return func(a, b ir.NodeID) int { return cmp.Compare(rank(a), rank(b)) }
}

// childIndex converts a position among parent's children in the mirror to
// the backend's index, which does not count implicit children.
func (p *planner) childIndex(parent ir.NodeID, pos int) (int, error) {
	at := pos - p.reg.IndexOffset(p.mirror, parent)
	if at < 0 {
		return 0, fmt.Errorf("position %d of %s is among its implicit children", pos, parent)
	}
	return at, nil
}

func (p *planner) skip(msg string, id ir.NodeID, err error) {
	p.logger.Warn("commit: "+msg, "node_id", id, "error", err)
}

func (p *planner) planDeletes() {
	type del struct {
		changes.Deleted
		transformation bool
	}
	var all []del
	for _, d := range p.remove {
		all = append(all, del{Deleted: d})
	}
	for _, d := range p.trRemove {
		all = append(all, del{Deleted: d, transformation: true})
	}
	less := byOrder(preorder(p.committed))
	slices.SortStableFunc(all, func(a, b del) int { return less(a.ID, b.ID) })

	for _, d := range all {
		at := p.mirror.IndexOf(d.Parent, d.ID)
		if at < 0 {
			p.skip("deleted node is not in the backend", d.ID, nil)
			continue
		}
		if d.transformation {
			m, ok := p.mirror.ParentOf(d.Parent)
			if !ok {
				p.skip("transformation list has no module", d.ID, nil)
				continue
			}
			coords, nodeIndex, err := transformationAddress(p.mirror, p.reg, m)
			if err != nil {
				p.skip("unable to address transformation", d.ID, err)
				continue
			}
			p.ops = append(p.ops, ir.Op{
				Kind: ir.OpDeleteInputTransformation, NodeID: d.ID,
				Coords: coords, Index: nodeIndex, TransformationIndex: at,
			})
		} else {
			coords, err := Coordinates(p.mirror, p.reg, d.Parent)
			if err != nil {
				p.skip("unable to address delete", d.ID, err)
				continue
			}
			index, err := p.childIndex(d.Parent, at)
			if err != nil {
				p.skip("unable to address delete", d.ID, err)
				continue
			}
			p.ops = append(p.ops, ir.Op{
				Kind: ir.OpDeleteNode, NodeID: d.ID,
				Coords: coords, Index: index,
			})
		}
		p.mirror = unlink(p.mirror, d.Parent, d.ID)
	}
}

func (p *planner) planUpdates() {
	targets := slices.Concat(p.replace.items, p.trReplace.items)
	if p.globalConf != "" {
		targets = append(targets, p.globalConf)
	}
	slices.SortStableFunc(targets, byOrder(preorder(p.current)))

	for _, id := range targets {
		def, err := p.definition(id)
		if err != nil {
			p.skip("unable to encode definition", id, err)
			continue
		}
		parent, _ := p.current.ParentOf(id)

		switch {
		case id == p.globalConf:
			p.ops = append(p.ops, ir.Op{Kind: ir.OpSetGlobalConf, NodeID: id, Coords: []int{}, Definition: def})

		case p.trReplace.has(id):
			at := p.mirror.IndexOf(parent, id)
			m, ok := p.mirror.ParentOf(parent)
			if at < 0 || !ok {
				p.skip("replaced transformation is not in the backend", id, nil)
				continue
			}
			coords, nodeIndex, err := transformationAddress(p.mirror, p.reg, m)
			if err != nil {
				p.skip("unable to address transformation", id, err)
				continue
			}
			p.ops = append(p.ops, ir.Op{
				Kind: ir.OpReplaceInputTransformation, NodeID: id,
				Coords: coords, Index: nodeIndex, TransformationIndex: at, Definition: def,
			})

		default:
			at := p.mirror.IndexOf(parent, id)
			if at < 0 {
				p.skip("replaced node is not in the backend", id, nil)
				continue
			}
			coords, err := Coordinates(p.mirror, p.reg, parent)
			if err != nil {
				p.skip("unable to address replace", id, err)
				continue
			}
			index, err := p.childIndex(parent, at)
			if err != nil {
				p.skip("unable to address replace", id, err)
				continue
			}
			p.ops = append(p.ops, ir.Op{
				Kind: ir.OpReplaceNode, NodeID: id,
				Coords: coords, Index: index, Definition: def,
			})
		}
		p.mirror = graft(p.mirror, p.current, id)
	}
}

func (p *planner) planNews() {
	targets := slices.Concat(p.add.items, p.trAdd.items)
	slices.SortStableFunc(targets, byOrder(preorder(p.current)))

	for _, id := range targets {
		def, err := p.definition(id)
		if err != nil {
			p.skip("unable to encode definition", id, err)
			continue
		}
		parent, _ := p.current.ParentOf(id)
		if !p.mirror.HasNode(parent) {
			p.skip("parent is not in the backend", id, nil)
			continue
		}
		pos := p.insertPos(parent, id)

		if p.trAdd.has(id) {
			m, ok := p.mirror.ParentOf(parent)
			if !ok {
				p.skip("transformation list has no module", id, nil)
				continue
			}
			coords, nodeIndex, err := transformationAddress(p.mirror, p.reg, m)
			if err != nil {
				p.skip("unable to address transformation", id, err)
				continue
			}
			p.ops = append(p.ops, ir.Op{
				Kind: ir.OpAddInputTransformation, NodeID: id,
				Coords: coords, Index: nodeIndex, TransformationIndex: pos, Definition: def,
			})
		} else {
			coords, err := Coordinates(p.mirror, p.reg, parent)
			if err != nil {
				p.skip("unable to address add", id, err)
				continue
			}
			index, err := p.childIndex(parent, pos)
			if err != nil {
				p.skip("unable to address add", id, err)
				continue
			}
			p.ops = append(p.ops, ir.Op{
				Kind: ir.OpAddNode, NodeID: id,
				Coords: coords, Index: index, Definition: def,
			})
		}
		p.mirror = graft(link(p.mirror, parent, id, pos), p.current, id)
	}
}

// insertPos is the position id takes among parent's children in the
// mirror: one past every sibling preceding it that the backend already has.
func (p *planner) insertPos(parent, id ir.NodeID) int {
	cur, _ := p.current.Node(parent)
	mir, _ := p.mirror.Node(parent)
	pos := 0
	for _, sib := range cur.Children {
		if sib == id {
			break
		}
		if slices.Contains(mir.Children, sib) {
			pos++
		}
	}
	return pos
}

func unlink(snap *entities.Snapshot, parent, id ir.NodeID) *entities.Snapshot {
	n, ok := snap.Node(parent)
	if !ok {
		return snap
	}
	n = n.Clone()
	n.Children = slices.DeleteFunc(n.Children, func(c ir.NodeID) bool { return c == id })
	return snap.UpsertNode(n)
}

func link(snap *entities.Snapshot, parent, id ir.NodeID, pos int) *entities.Snapshot {
	n, ok := snap.Node(parent)
	if !ok {
		return snap
	}
	n = n.Clone()
	n.Children = slices.Insert(n.Children, min(pos, len(n.Children)), id)
	return snap.UpsertNode(n)
}

// graft copies the subtree at id from src into dst.
func graft(dst, src *entities.Snapshot, id ir.NodeID) *entities.Snapshot {
	nodes, settings := src.Descendants(id)
	for _, sid := range settings {
		if st, ok := src.Setting(sid); ok {
			dst = dst.UpsertSetting(st)
		}
	}
	for _, nid := range nodes {
		if n, ok := src.Node(nid); ok {
			dst = dst.UpsertNode(n)
		}
	}
	return dst
}

package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Ameobea/noise-asmjs/internal/entities"
	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// resolver turns node references into ids against the current snapshot.
type resolver struct {
	aliases map[string]ir.NodeID
}

func newResolver() *resolver {
	return &resolver{aliases: map[string]ir.NodeID{"root": ir.RootID}}
}

func (r *resolver) bind(alias string, id ir.NodeID) {
	if alias != "" {
		r.aliases[alias] = id
	}
}

// resolve walks ref: a head (alias, "root" or node id) followed by
// /type or /type[i] segments.
func (r *resolver) resolve(snap *entities.Snapshot, ref string) (ir.NodeID, error) {
	segments := strings.Split(ref, "/")
	head := segments[0]

	id, ok := r.aliases[head]
	if !ok {
		id = ir.NodeID(head)
	}
	if !snap.HasNode(id) {
		return "", fmt.Errorf("%s: unknown node %q", ref, head)
	}

	for _, seg := range segments[1:] {
		typ, index, err := parseSegment(seg)
		if err != nil {
			return "", fmt.Errorf("%s: %w", ref, err)
		}
		var matches []ir.NodeID
		for _, c := range snap.Children(id) {
			if c.Type == typ {
				matches = append(matches, c.ID)
			}
		}
		if index >= len(matches) {
			return "", fmt.Errorf("%s: %s has %d %s children", ref, id, len(matches), typ)
		}
		id = matches[index]
	}
	return id, nil
}

func parseSegment(seg string) (ir.NodeType, int, error) {
	name, rest, indexed := strings.Cut(seg, "[")
	if name == "" {
		return "", 0, fmt.Errorf("empty segment")
	}
	if !indexed {
		return ir.NodeType(name), 0, nil
	}
	num, ok := strings.CutSuffix(rest, "]")
	if !ok {
		return "", 0, fmt.Errorf("segment %q: missing ]", seg)
	}
	i, err := strconv.Atoi(num)
	if err != nil || i < 0 {
		return "", 0, fmt.Errorf("segment %q: bad index", seg)
	}
	return ir.NodeType(name), i, nil
}

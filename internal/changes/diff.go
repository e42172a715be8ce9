package changes

import (
	"slices"

	"github.com/Ameobea/noise-asmjs/internal/entities"
	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// Diff compares two snapshots entity by entity and returns the edits that
// turn prev into next, in id order: nodes first, then settings.
// Identical snapshots yield no edits.
func Diff(prev, next *entities.Snapshot) []ir.Change {
	if prev == next {
		return nil
	}
	var out []ir.Change

	for _, id := range next.NodeIDs() {
		n, _ := next.Node(id)
		old, existed := prev.Node(id)
		if !existed {
			out = append(out, ir.Change{Kind: ir.ChangeNew, Path: ir.NodePath(id, "")})
			continue
		}
		if old.Type != n.Type {
			out = append(out, ir.Change{
				Kind:   ir.ChangeEdit,
				Path:   ir.NodePath(id, ir.FieldType),
				Before: []string{string(old.Type)},
				After:  []string{string(n.Type)},
			})
		}
		if !slices.Equal(old.Settings, n.Settings) {
			out = append(out, ir.Change{
				Kind:   ir.ChangeEdit,
				Path:   ir.NodePath(id, ir.FieldSettings),
				Before: ir.SettingIDStrings(old.Settings),
				After:  ir.SettingIDStrings(n.Settings),
			})
		}
		if !slices.Equal(old.Children, n.Children) {
			out = append(out, ir.Change{
				Kind:   ir.ChangeEdit,
				Path:   ir.NodePath(id, ir.FieldChildren),
				Before: ir.NodeIDStrings(old.Children),
				After:  ir.NodeIDStrings(n.Children),
			})
		}
	}
	for _, id := range prev.NodeIDs() {
		if !next.HasNode(id) {
			out = append(out, ir.Change{Kind: ir.ChangeDelete, Path: ir.NodePath(id, "")})
		}
	}

	for _, id := range next.SettingIDs() {
		st, _ := next.Setting(id)
		old, existed := prev.Setting(id)
		switch {
		case !existed:
			out = append(out, ir.Change{Kind: ir.ChangeNew, Path: ir.SettingPath(id, "")})
		case old.Key != st.Key:
			out = append(out, ir.Change{Kind: ir.ChangeEdit, Path: ir.SettingPath(id, ir.FieldKey)})
		case !ir.ValuesEqual(old.Value, st.Value):
			out = append(out, ir.Change{Kind: ir.ChangeEdit, Path: ir.SettingPath(id, ir.FieldValue)})
		}
	}
	for _, id := range prev.SettingIDs() {
		if !next.HasSetting(id) {
			out = append(out, ir.Change{Kind: ir.ChangeDelete, Path: ir.SettingPath(id, "")})
		}
	}
	return out
}

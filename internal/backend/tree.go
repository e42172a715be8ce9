package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

const moduleComposed = "Composed"

// Module is a node of the reference tree: a leaf noise module, or a composed
// module combining its children.
type Module struct {
	ModuleType      string
	Conf            map[string]string
	Scheme          string
	Weights         []float64
	Transformations []Transformation
	Children        []*Module
}

// Composed reports whether the module holds children.
func (m *Module) Composed() bool { return m.ModuleType == moduleComposed }

// Transformation is an input transformation of a module.
type Transformation struct {
	Kind string
	Conf map[string]string
}

var errEmptyTree = errors.New("tree has no root")

// Tree is an in-memory stand-in for the tree engine. It keeps the tree
// shape and configuration and applies the engine's addressing rules:
// coordinates only traverse composed modules, and every index is checked
// against the target's child count.
type Tree struct {
	root   *Module
	conf   map[string]string
	logger *slog.Logger
}

// TreeOption configures a Tree.
type TreeOption func(*Tree)

// WithTreeLogger sets the logger rejected operations are reported to.
func WithTreeLogger(l *slog.Logger) TreeOption {
	return func(t *Tree) { t.logger = l }
}

// NewTree returns an empty tree. Every operation other than ResetTree and
// SetGlobalConf fails until a root is set.
func NewTree(opts ...TreeOption) *Tree {
	t := &Tree{conf: map[string]string{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Root returns the root module, or nil.
func (t *Tree) Root() *Module { return t.root }

// GlobalConf returns a copy of the global configuration.
func (t *Tree) GlobalConf() map[string]string { return maps.Clone(t.conf) }

func (t *Tree) status(op string, err error) int {
	if err != nil {
		t.logger.Error("backend operation failed", "op", op, "error", err)
		return ir.StatusError
	}
	return ir.StatusOK
}

// traverse walks coords from the root through composed modules.
func (t *Tree) traverse(coords []int) (*Module, error) {
	if t.root == nil {
		return nil, errEmptyTree
	}
	cur := t.root
	for depth, i := range coords {
		if !cur.Composed() {
			return nil, fmt.Errorf("coords %s: depth %d is a leaf", ir.FormatCoords(coords), depth)
		}
		if i < 0 || i >= len(cur.Children) {
			return nil, fmt.Errorf("coords %s: index %d out of range at depth %d (%d children)",
				ir.FormatCoords(coords), i, depth, len(cur.Children))
		}
		cur = cur.Children[i]
	}
	return cur, nil
}

func (t *Tree) composedAt(coords []int) (*Module, error) {
	m, err := t.traverse(coords)
	if err != nil {
		return nil, err
	}
	if !m.Composed() {
		return nil, fmt.Errorf("coords %s: target is a leaf", ir.FormatCoords(coords))
	}
	return m, nil
}

func (t *Tree) AddNode(coords []int, index int, def []byte) int {
	return t.status("add_node", t.addNode(coords, index, def))
}

func (t *Tree) addNode(coords []int, index int, def []byte) error {
	m, err := decodeModule(def)
	if err != nil {
		return err
	}
	parent, err := t.composedAt(coords)
	if err != nil {
		return err
	}
	if index < 0 || index > len(parent.Children) {
		return fmt.Errorf("add at index %d: parent has %d children", index, len(parent.Children))
	}
	parent.Children = slices.Insert(parent.Children, index, m)
	return nil
}

func (t *Tree) DeleteNode(coords []int, index int) int {
	return t.status("delete_node", t.deleteNode(coords, index))
}

func (t *Tree) deleteNode(coords []int, index int) error {
	parent, err := t.composedAt(coords)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(parent.Children) {
		return fmt.Errorf("delete at index %d: parent has %d children", index, len(parent.Children))
	}
	parent.Children = slices.Delete(parent.Children, index, index+1)
	return nil
}

func (t *Tree) ReplaceNode(coords []int, index int, def []byte) int {
	return t.status("replace_node", t.replaceNode(coords, index, def))
}

func (t *Tree) replaceNode(coords []int, index int, def []byte) error {
	// Build first so a bad definition leaves the old node in place.
	if _, err := decodeModule(def); err != nil {
		return err
	}
	if err := t.deleteNode(coords, index); err != nil {
		return err
	}
	return t.addNode(coords, index, def)
}

func (t *Tree) SetGlobalConf(def []byte) int {
	return t.status("set_global_conf", t.setGlobalConf(def))
}

func (t *Tree) setGlobalConf(def []byte) error {
	node, err := Decode(def)
	if err != nil {
		return err
	}
	if node.Type != string(ir.TypeGlobalConf) {
		return fmt.Errorf("global conf definition has type %q", node.Type)
	}
	t.conf = settingMap(node)
	return nil
}

// transformationTarget resolves the module whose transformations an input
// transformation call addresses.
func (t *Tree) transformationTarget(coords []int, nodeIndex int) (*Module, error) {
	m, err := t.traverse(coords)
	if err != nil {
		return nil, err
	}
	if nodeIndex == -1 {
		return m, nil
	}
	if !m.Composed() {
		return nil, fmt.Errorf("coords %s: cannot select child %d of a leaf", ir.FormatCoords(coords), nodeIndex)
	}
	if nodeIndex < 0 || nodeIndex >= len(m.Children) {
		return nil, fmt.Errorf("child %d out of range (%d children)", nodeIndex, len(m.Children))
	}
	return m.Children[nodeIndex], nil
}

func (t *Tree) AddInputTransformation(coords []int, nodeIndex int, def []byte) int {
	return t.status("add_input_transformation", func() error {
		tr, err := decodeTransformation(def)
		if err != nil {
			return err
		}
		m, err := t.transformationTarget(coords, nodeIndex)
		if err != nil {
			return err
		}
		m.Transformations = append(m.Transformations, tr)
		return nil
	}())
}

func (t *Tree) DeleteInputTransformation(coords []int, nodeIndex, transformationIndex int) int {
	return t.status("delete_input_transformation", func() error {
		m, err := t.transformationTarget(coords, nodeIndex)
		if err != nil {
			return err
		}
		if transformationIndex < 0 || transformationIndex >= len(m.Transformations) {
			return fmt.Errorf("transformation %d out of range (%d transformations)", transformationIndex, len(m.Transformations))
		}
		m.Transformations = slices.Delete(m.Transformations, transformationIndex, transformationIndex+1)
		return nil
	}())
}

func (t *Tree) ReplaceInputTransformation(coords []int, nodeIndex, transformationIndex int, def []byte) int {
	return t.status("replace_input_transformation", func() error {
		tr, err := decodeTransformation(def)
		if err != nil {
			return err
		}
		m, err := t.transformationTarget(coords, nodeIndex)
		if err != nil {
			return err
		}
		if transformationIndex < 0 || transformationIndex >= len(m.Transformations) {
			return fmt.Errorf("transformation %d out of range (%d transformations)", transformationIndex, len(m.Transformations))
		}
		m.Transformations[transformationIndex] = tr
		return nil
	}())
}

func (t *Tree) ResetTree(def []byte) int {
	return t.status("reset_tree", t.resetTree(def))
}

func (t *Tree) resetTree(def []byte) error {
	node, err := Decode(def)
	if err != nil {
		return err
	}
	root, err := buildModule(node)
	if err != nil {
		return err
	}
	conf := map[string]string{}
	if gcs := node.ChildrenOfType(ir.TypeGlobalConf); len(gcs) > 0 {
		conf = settingMap(gcs[0])
	}
	t.root, t.conf = root, conf
	return nil
}

// Load resets the tree to def.
func (t *Tree) Load(def ir.NodeDef) error {
	data, err := Encode(def)
	if err != nil {
		return err
	}
	return t.resetTree(data)
}

func decodeModule(def []byte) (*Module, error) {
	node, err := Decode(def)
	if err != nil {
		return nil, err
	}
	return buildModule(node)
}

func buildModule(node IRNode) (*Module, error) {
	if node.Type != string(ir.TypeNoiseModule) && node.Type != string(ir.TypeRoot) {
		return nil, fmt.Errorf("cannot build a module from a %q node", node.Type)
	}
	moduleType, ok := node.Setting("moduleType")
	if !ok {
		return nil, fmt.Errorf("%s node has no moduleType", node.Type)
	}

	m := &Module{ModuleType: moduleType, Conf: settingMap(node)}
	delete(m.Conf, "moduleType")

	for _, wrapper := range node.ChildrenOfType(ir.TypeInputTransformations) {
		for _, c := range wrapper.Children {
			tr, err := buildTransformation(c)
			if err != nil {
				return nil, err
			}
			m.Transformations = append(m.Transformations, tr)
		}
	}

	if !m.Composed() {
		return m, nil
	}
	schemes := node.ChildrenOfType(ir.TypeCompositionScheme)
	if len(schemes) == 0 {
		return nil, errors.New("composed module has no composition scheme")
	}
	scheme, ok := schemes[0].Setting("compositionScheme")
	if !ok {
		return nil, errors.New("composition scheme has no compositionScheme setting")
	}
	m.Scheme = scheme
	if raw, ok := schemes[0].Setting("weights"); ok && scheme == "weightedAverage" {
		if err := json.Unmarshal([]byte(raw), &m.Weights); err != nil {
			return nil, fmt.Errorf("unable to parse weights %q: %w", raw, err)
		}
	}
	for _, c := range node.ChildrenOfType(ir.TypeNoiseModule) {
		child, err := buildModule(c)
		if err != nil {
			return nil, err
		}
		m.Children = append(m.Children, child)
	}
	return m, nil
}

func decodeTransformation(def []byte) (Transformation, error) {
	node, err := Decode(def)
	if err != nil {
		return Transformation{}, err
	}
	return buildTransformation(node)
}

func buildTransformation(node IRNode) (Transformation, error) {
	if node.Type != string(ir.TypeInputTransformation) {
		return Transformation{}, fmt.Errorf("cannot build a transformation from a %q node", node.Type)
	}
	kind, ok := node.Setting("inputTransformationType")
	if !ok {
		return Transformation{}, errors.New("input transformation has no inputTransformationType")
	}
	conf := settingMap(node)
	delete(conf, "inputTransformationType")
	return Transformation{Kind: kind, Conf: conf}, nil
}

func settingMap(node IRNode) map[string]string {
	out := make(map[string]string, len(node.Settings))
	for _, s := range node.Settings {
		if _, dup := out[s.Key]; !dup {
			out[s.Key] = s.Value
		}
	}
	return out
}

// Describe renders the tree as an indented outline.
func (t *Tree) Describe() string {
	if t.root == nil {
		return "(empty)\n"
	}
	var b strings.Builder
	var walk func(m *Module, depth int)
	walk = func(m *Module, depth int) {
		fmt.Fprintf(&b, "%s%s", strings.Repeat("  ", depth), m.ModuleType)
		if m.Composed() {
			fmt.Fprintf(&b, " (%s", m.Scheme)
			if len(m.Weights) > 0 {
				fmt.Fprintf(&b, " %v", m.Weights)
			}
			b.WriteString(")")
		}
		for _, tr := range m.Transformations {
			fmt.Fprintf(&b, " +%s", tr.Kind)
		}
		b.WriteString("\n")
		for _, c := range m.Children {
			walk(c, depth+1)
		}
	}
	walk(t.root, 0)
	return b.String()
}

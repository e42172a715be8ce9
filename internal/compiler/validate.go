package compiler

import (
	"fmt"
	"slices"

	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/schema"
)

// Validation codes (E200-E299)
const (
	ErrNotRoot            = "E200" // top-level node is not a root with the root id
	ErrUnknownNodeType    = "E201" // no descriptor for the node type
	ErrDuplicateNodeID    = "E202" // node id used twice
	ErrDuplicateSetting   = "E203" // setting key repeated on one node
	ErrUnknownSetting     = "E204" // key not defined for the node type
	ErrSettingValue       = "E205" // wrong value kind or not an allowed option
	ErrDuplicateImplicit  = "E206" // more than one child of an implicit type
	ErrMisplacedNode      = "E207" // node type not allowed under its parent
	ErrMissingScheme      = "E208" // composed module without a composition scheme
	ErrWeightsMismatch    = "E209" // weight keys differ from sibling module ids
	ErrMissingModuleType  = "E210" // module without a moduleType setting
	ErrMissingGlobalConf  = "E211" // root without a global configuration
	ErrEmptyComposition   = "E212" // composed module without child modules
	ErrChildrenOnLeaf     = "E213" // leaf module holding child modules
	ErrMissingTransformer = "E214" // input transformation without a type
)

// Severity ranks validation findings. Warnings describe data the engine
// tolerates; errors describe data the backend would reject.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError is one validation finding.
type ValidationError struct {
	Path     string   `json:"path"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// HasErrors reports whether any finding is an error.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// allowedParents lists where each known node type may appear.
var allowedParents = map[ir.NodeType][]ir.NodeType{
	ir.TypeGlobalConf:           {ir.TypeRoot},
	ir.TypeNoiseModule:          {ir.TypeRoot, ir.TypeNoiseModule},
	ir.TypeCompositionScheme:    {ir.TypeRoot, ir.TypeNoiseModule},
	ir.TypeInputTransformations: {ir.TypeRoot, ir.TypeNoiseModule},
	ir.TypeInputTransformation:  {ir.TypeInputTransformations},
}

var implicitTypes = []ir.NodeType{ir.TypeGlobalConf, ir.TypeInputTransformations, ir.TypeCompositionScheme}

// Validate checks def against the node schema. Returns all findings (does
// not fail-fast), in pre-order.
func Validate(def ir.NodeDef, reg *schema.Registry) []ValidationError {
	v := &validator{reg: reg, ids: map[ir.NodeID]string{}}

	if def.Type != ir.TypeRoot {
		v.add("root", ErrNotRoot, SeverityError, "top-level node has type %q, want %q", def.Type, ir.TypeRoot)
	} else if def.ID != "" && def.ID != ir.RootID {
		v.add("root", ErrNotRoot, SeverityError, "root id %q is not the reserved root id", def.ID)
	}
	if def.Type == ir.TypeRoot && !hasChild(def, ir.TypeGlobalConf) {
		v.add("root", ErrMissingGlobalConf, SeverityWarning, "root has no global configuration; defaults are created on the first edit")
	}

	v.node(def, nil, "root")
	return v.errs
}

type validator struct {
	reg  *schema.Registry
	ids  map[ir.NodeID]string
	errs []ValidationError
}

func (v *validator) add(path, code string, sev Severity, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Path:     path,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Severity: sev,
	})
}

func (v *validator) node(def ir.NodeDef, parent *ir.NodeDef, path string) {
	if def.ID != "" {
		if first, dup := v.ids[def.ID]; dup {
			v.add(path, ErrDuplicateNodeID, SeverityError, "id %q already used at %s", def.ID, first)
		} else {
			v.ids[def.ID] = path
		}
	}

	known := v.reg.Known(def.Type)
	if !known {
		v.add(path, ErrUnknownNodeType, SeverityWarning, "unknown node type %q is treated as an opaque leaf", def.Type)
	}
	if parent != nil && known {
		if allowed, ok := allowedParents[def.Type]; ok && !slices.Contains(allowed, parent.Type) {
			v.add(path, ErrMisplacedNode, SeverityError, "%s cannot be a child of %s", def.Type, parent.Type)
		}
	}

	v.settings(def, parent, path)

	switch def.Type {
	case ir.TypeRoot, ir.TypeNoiseModule:
		v.module(def, path)
	case ir.TypeInputTransformation:
		if _, ok := def.Setting(schema.KeyInputTransformationType); !ok {
			v.add(path, ErrMissingTransformer, SeverityError, "input transformation has no %s setting", schema.KeyInputTransformationType)
		}
	}

	for _, t := range implicitTypes {
		if n := countChildren(def, t); n > 1 {
			v.add(path, ErrDuplicateImplicit, SeverityError, "%d %s children, want at most one", n, t)
		}
	}

	for i, c := range def.Children {
		v.node(c, &def, fmt.Sprintf("%s.children[%d]", path, i))
	}
}

func (v *validator) settings(def ir.NodeDef, parent *ir.NodeDef, path string) {
	seen := map[string]bool{}
	for _, s := range def.Settings {
		spath := path + ".settings." + s.Key
		if seen[s.Key] {
			v.add(spath, ErrDuplicateSetting, SeverityWarning, "duplicate setting; the first one is used")
			continue
		}
		seen[s.Key] = true

		if !v.reg.Known(def.Type) {
			continue
		}
		sd, ok := v.reg.Definition(def.Type, s.Key)
		if !ok {
			v.add(spath, ErrUnknownSetting, SeverityWarning, "%s nodes have no setting %q", def.Type, s.Key)
			continue
		}
		if err := sd.Check(s.Value); err != nil {
			v.add(spath, ErrSettingValue, SeverityError, "%v", err)
			continue
		}
		if s.Key == schema.KeyWeights && parent != nil {
			v.weights(s.Value.(ir.WeightMap), def, *parent, spath)
		}
	}
}

func (v *validator) module(def ir.NodeDef, path string) {
	mt, ok := def.Setting(schema.KeyModuleType)
	if !ok {
		v.add(path, ErrMissingModuleType, SeverityError, "module has no %s setting", schema.KeyModuleType)
		return
	}
	modules := countChildren(def, ir.TypeNoiseModule)
	if mt.Value != ir.String(schema.ModuleComposed) {
		if modules > 0 {
			v.add(path, ErrChildrenOnLeaf, SeverityError, "%v module holds %d child modules", ir.FormatValue(mt.Value), modules)
		}
		return
	}
	if !hasChild(def, ir.TypeCompositionScheme) {
		v.add(path, ErrMissingScheme, SeverityError, "composed module has no composition scheme")
	}
	if modules == 0 {
		v.add(path, ErrEmptyComposition, SeverityWarning, "composed module has no child modules")
	}
}

// weights compares a weight map with the modules next to its scheme.
func (v *validator) weights(w ir.WeightMap, scheme, parent ir.NodeDef, path string) {
	if st, ok := scheme.Setting(schema.KeyCompositionScheme); !ok || st.Value != ir.String(schema.SchemeWeightedAverage) {
		return
	}
	var siblings []ir.NodeID
	for _, c := range parent.Children {
		if c.Type == ir.TypeNoiseModule {
			siblings = append(siblings, c.ID)
		}
	}
	for _, id := range siblings {
		if id == "" {
			v.add(path, ErrWeightsMismatch, SeverityWarning, "sibling modules without ids cannot be weighted; weights are recomputed on the first edit")
			return
		}
		if _, ok := w[id]; !ok {
			v.add(path, ErrWeightsMismatch, SeverityWarning, "no weight for module %q", id)
		}
	}
	for _, id := range w.SortedKeys() {
		if !slices.Contains(siblings, id) {
			v.add(path, ErrWeightsMismatch, SeverityWarning, "weight for %q, which is not a sibling module", id)
		}
	}
}

func hasChild(def ir.NodeDef, t ir.NodeType) bool {
	return countChildren(def, t) > 0
}

func countChildren(def ir.NodeDef, t ir.NodeType) int {
	n := 0
	for _, c := range def.Children {
		if c.Type == t {
			n++
		}
	}
	return n
}

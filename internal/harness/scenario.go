package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// Scenario is an edit script with assertions.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Composition is the path of the composition to load, relative to the
	// scenario file. Empty loads the default tree.
	Composition string `yaml:"composition,omitempty"`

	// StructuralDiff runs the engine in structural diff mode.
	StructuralDiff bool `yaml:"structural_diff,omitempty"`

	// FailOn lists op kinds the backend rejects.
	FailOn []ir.OpKind `yaml:"fail_on,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one edit. Exactly one field is set.
type Step struct {
	Set     *SetStep     `yaml:"set,omitempty"`
	Add     *AddStep     `yaml:"add,omitempty"`
	Delete  *NodeStep    `yaml:"delete,omitempty"`
	Update  *NodeStep    `yaml:"update,omitempty"`
	Replace *ReplaceStep `yaml:"replace,omitempty"`
	Begin   bool         `yaml:"begin,omitempty"`
	End     bool         `yaml:"end,omitempty"`
}

// SetStep sets the setting Key of Node.
type SetStep struct {
	Node  string `yaml:"node"`
	Key   string `yaml:"key"`
	Value any    `yaml:"value"`
}

// AddStep adds a default noise module, or an input transformation, under
// Parent. A nil Index appends.
type AddStep struct {
	Parent         string `yaml:"parent"`
	Index          *int   `yaml:"index,omitempty"`
	Module         string `yaml:"module,omitempty"`
	Transformation string `yaml:"transformation,omitempty"`
	As             string `yaml:"as,omitempty"`
}

// NodeStep names the node a delete or update acts on.
type NodeStep struct {
	Node string `yaml:"node"`
}

// ReplaceStep swaps Node for a default module of type Module.
type ReplaceStep struct {
	Node   string `yaml:"node"`
	Module string `yaml:"module"`
	As     string `yaml:"as,omitempty"`
}

// Kind names the step's action.
func (s Step) Kind() string {
	var kinds []string
	if s.Set != nil {
		kinds = append(kinds, "set")
	}
	if s.Add != nil {
		kinds = append(kinds, "add")
	}
	if s.Delete != nil {
		kinds = append(kinds, "delete")
	}
	if s.Update != nil {
		kinds = append(kinds, "update")
	}
	if s.Replace != nil {
		kinds = append(kinds, "replace")
	}
	if s.Begin {
		kinds = append(kinds, "begin")
	}
	if s.End {
		kinds = append(kinds, "end")
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// String describes the step for traces.
func (s Step) String() string {
	switch s.Kind() {
	case "set":
		v, err := ir.ValueFromAny(s.Set.Value)
		if err != nil {
			return fmt.Sprintf("set %s %s=?", s.Set.Node, s.Set.Key)
		}
		return fmt.Sprintf("set %s %s=%s", s.Set.Node, s.Set.Key, ir.FormatValue(v))
	case "add":
		what := s.Add.Module
		if what == "" {
			what = s.Add.Transformation
		}
		if s.Add.Index != nil {
			return fmt.Sprintf("add %s to %s at %d", what, s.Add.Parent, *s.Add.Index)
		}
		return fmt.Sprintf("add %s to %s", what, s.Add.Parent)
	case "delete":
		return "delete " + s.Delete.Node
	case "update":
		return "update " + s.Update.Node
	case "replace":
		return fmt.Sprintf("replace %s with %s", s.Replace.Node, s.Replace.Module)
	default:
		return s.Kind()
	}
}

// Assertion checks the state after the last step.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Node is a node reference (module_count, setting, weights_match).
	Node string `yaml:"node,omitempty"`

	// Kind filters op_count to one op kind.
	Kind ir.OpKind `yaml:"kind,omitempty"`

	// Kinds is the expected op order (op_order).
	Kinds []ir.OpKind `yaml:"kinds,omitempty"`

	// Count is the expected number (op_count, module_count, failed_ops).
	Count *int `yaml:"count,omitempty"`

	// Key and Value are the expected setting (setting).
	Key   string `yaml:"key,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Expect is the expected backend outline (describe).
	Expect string `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertOpCount        = "op_count"
	AssertOpOrder        = "op_order"
	AssertFailedOps      = "failed_ops"
	AssertModuleCount    = "module_count"
	AssertSetting        = "setting"
	AssertWeightsMatch   = "weights_match"
	AssertBackendMatches = "backend_matches"
	AssertDescribe       = "describe"
)

// LoadScenario reads and parses a scenario YAML file. A relative
// composition path is resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Composition != "" && !filepath.IsAbs(s.Composition) {
		s.Composition = filepath.Join(filepath.Dir(path), s.Composition)
	}
	if s.Composition != "" {
		if _, err := os.Stat(s.Composition); err != nil {
			return nil, fmt.Errorf("invalid scenario: composition: %w", err)
		}
	}
	return s, nil
}

// ParseScenario decodes and checks a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for _, k := range s.FailOn {
		if !k.Known() {
			return fmt.Errorf("fail_on: unknown op kind %q", k)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(&s.Assertions[i]); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Kind() {
	case "":
		return fmt.Errorf("exactly one action is required")
	case "set":
		if step.Set.Node == "" || step.Set.Key == "" {
			return fmt.Errorf("set: node and key are required")
		}
		if _, err := ir.ValueFromAny(step.Set.Value); err != nil {
			return fmt.Errorf("set: %w", err)
		}
	case "add":
		if step.Add.Parent == "" {
			return fmt.Errorf("add: parent is required")
		}
		if (step.Add.Module == "") == (step.Add.Transformation == "") {
			return fmt.Errorf("add: exactly one of module and transformation is required")
		}
	case "delete":
		if step.Delete.Node == "" {
			return fmt.Errorf("delete: node is required")
		}
	case "update":
		if step.Update.Node == "" {
			return fmt.Errorf("update: node is required")
		}
	case "replace":
		if step.Replace.Node == "" || step.Replace.Module == "" {
			return fmt.Errorf("replace: node and module are required")
		}
	}
	return nil
}

func validateAssertion(a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertOpCount, AssertFailedOps:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("%s: non-negative count is required", a.Type)
		}
	case AssertOpOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("op_order: kinds list is required")
		}
	case AssertModuleCount:
		if a.Node == "" || a.Count == nil {
			return fmt.Errorf("module_count: node and count are required")
		}
	case AssertSetting:
		if a.Node == "" || a.Key == "" || a.Value == nil {
			return fmt.Errorf("setting: node, key and value are required")
		}
	case AssertWeightsMatch:
		if a.Node == "" {
			return fmt.Errorf("weights_match: node is required")
		}
	case AssertBackendMatches:
	case AssertDescribe:
		if a.Expect == "" {
			return fmt.Errorf("describe: expect is required")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

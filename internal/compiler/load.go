package compiler

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

//go:embed composition.cue
var compositionSchema string

// Format is a composition file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// DetectFormat picks the format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unrecognized composition file extension %q", filepath.Ext(path))
	}
}

// LoadFile reads and parses the composition at path.
func LoadFile(path string) (ir.NodeDef, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return ir.NodeDef{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.NodeDef{}, fmt.Errorf("read composition: %w", err)
	}
	return Parse(data, format, path)
}

// Parse decodes a composition document. filename is only used in error
// positions.
func Parse(data []byte, format Format, filename string) (ir.NodeDef, error) {
	switch format {
	case FormatJSON:
		return ir.ParseNodeDef(data)
	case FormatYAML:
		return parseYAML(data)
	case FormatCUE:
		return parseCUE(data, filename)
	default:
		return ir.NodeDef{}, fmt.Errorf("unsupported composition format %q", format)
	}
}

type yamlNode struct {
	ID       string        `yaml:"id"`
	Type     string        `yaml:"type"`
	Settings []yamlSetting `yaml:"settings"`
	Children []yamlNode    `yaml:"children"`
}

type yamlSetting struct {
	ID    string `yaml:"id"`
	Key   string `yaml:"key"`
	Value any    `yaml:"value"`
}

func parseYAML(data []byte) (ir.NodeDef, error) {
	var root yamlNode
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&root); err != nil {
		return ir.NodeDef{}, fmt.Errorf("parse YAML composition: %w", err)
	}
	return root.toDef("root")
}

func (n yamlNode) toDef(path string) (ir.NodeDef, error) {
	if n.Type == "" {
		return ir.NodeDef{}, &CompileError{Field: path, Message: "type is required"}
	}
	def := ir.NodeDef{ID: ir.NodeID(n.ID), Type: ir.NodeType(n.Type)}
	for _, s := range n.Settings {
		if s.Key == "" {
			return ir.NodeDef{}, &CompileError{Field: path + ".settings", Message: "setting key is required"}
		}
		if s.Value == nil {
			return ir.NodeDef{}, &CompileError{Field: path + ".settings." + s.Key, Message: "value is required"}
		}
		v, err := ir.ValueFromAny(s.Value)
		if err != nil {
			return ir.NodeDef{}, &CompileError{Field: path + ".settings." + s.Key, Message: err.Error()}
		}
		def.Settings = append(def.Settings, ir.SettingDef{ID: ir.SettingID(s.ID), Key: s.Key, Value: v})
	}
	for i, c := range n.Children {
		child, err := c.toDef(fmt.Sprintf("%s.children[%d]", path, i))
		if err != nil {
			return ir.NodeDef{}, err
		}
		def.Children = append(def.Children, child)
	}
	return def, nil
}

func parseCUE(data []byte, filename string) (ir.NodeDef, error) {
	ctx := cuecontext.New()
	schemaVal := ctx.CompileString(compositionSchema, cue.Filename("composition.cue"))
	if err := schemaVal.Err(); err != nil {
		return ir.NodeDef{}, fmt.Errorf("compile composition schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return ir.NodeDef{}, formatCUEError(err)
	}
	comp := v.LookupPath(cue.ParsePath("composition"))
	if !comp.Exists() {
		return ir.NodeDef{}, &CompileError{
			Field:   "composition",
			Message: "composition is required",
			Pos:     v.Pos(),
		}
	}

	unified := schemaVal.LookupPath(cue.ParsePath("#Composition")).Unify(comp)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return ir.NodeDef{}, formatCUEError(err)
	}
	out, err := unified.MarshalJSON()
	if err != nil {
		return ir.NodeDef{}, formatCUEError(err)
	}
	return ir.ParseNodeDef(out)
}

package schema

import (
	"fmt"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// ModuleComposed is the module type whose node holds child modules.
const ModuleComposed = "Composed"

// Composition schemes.
const (
	SchemeAverage         = "average"
	SchemeWeightedAverage = "weightedAverage"
)

// Setting keys with behavior attached to them.
const (
	KeyModuleType              = "moduleType"
	KeyCompositionScheme       = "compositionScheme"
	KeyWeights                 = "weights"
	KeyInputTransformationType = "inputTransformationType"
)

// SettingDefinition describes one setting key: its value kind, default and,
// for enumerations, the allowed values.
type SettingDefinition struct {
	Key     string
	Title   string
	Kind    ir.ValueKind
	Default ir.Value
	Options []string
}

// Check reports whether v is acceptable for the setting.
func (d SettingDefinition) Check(v ir.Value) error {
	if ir.KindOf(v) != d.Kind {
		return fmt.Errorf("setting %q expects %s, got %s", d.Key, d.Kind, ir.KindOf(v))
	}
	if len(d.Options) == 0 {
		return nil
	}
	s := string(v.(ir.String))
	for _, opt := range d.Options {
		if opt == s {
			return nil
		}
	}
	return fmt.Errorf("setting %q: %q is not one of %v", d.Key, s, d.Options)
}

// DefaultValue returns a copy of the default, safe to store.
func (d SettingDefinition) DefaultValue() ir.Value {
	if w, ok := d.Default.(ir.WeightMap); ok {
		return w.Clone()
	}
	return d.Default
}

// ModuleType describes a noise module variant.
type ModuleType struct {
	Key          string
	Name         string
	Capabilities []Capability
}

// Capability is a group of settings a module type supports.
type Capability string

const (
	CapMultiFractal Capability = "MultiFractal"
	CapSeedable     Capability = "Seedable"
	CapRidged       Capability = "Ridged"
	CapWorley       Capability = "Worley"
	CapConstant     Capability = "Constant"
)

var capabilityKeys = map[Capability][]string{
	CapMultiFractal: {"octaves", "frequency", "lacunarity", "persistence"},
	CapSeedable:     {"seed"},
	CapRidged:       {"attenuation"},
	CapWorley:       {"rangeFunction", "enableRange", "worleyFrequency", "displacement"},
	CapConstant:     {"constant"},
}

var fractal = []Capability{CapMultiFractal, CapSeedable}

// ModuleTypes lists the supported noise module variants.
var ModuleTypes = []ModuleType{
	{Key: "Fbm", Name: "Fractional Brownian Noise", Capabilities: fractal},
	{Key: "Worley", Name: "Worley Noise", Capabilities: []Capability{CapSeedable, CapWorley}},
	{Key: "OpenSimplex", Name: "OpenSimplex Noise", Capabilities: []Capability{CapSeedable}},
	{Key: "Billow", Name: "Billow Noise", Capabilities: fractal},
	{Key: "HybridMulti", Name: "Hybrid Multifractal Noise", Capabilities: fractal},
	{Key: "SuperSimplex", Name: "Super Simplex Noise", Capabilities: []Capability{CapSeedable}},
	{Key: "Value", Name: "Value Noise", Capabilities: []Capability{CapSeedable}},
	{Key: "RidgedMulti", Name: "Ridged Multifractal Noise", Capabilities: []Capability{CapMultiFractal, CapSeedable, CapRidged}},
	{Key: "BasicMulti", Name: "Basic Multifractal Noise", Capabilities: fractal},
	{Key: "Constant", Name: "Constant Value", Capabilities: []Capability{CapConstant}},
	{Key: ModuleComposed, Name: "Composed Noise Module"},
}

// LookupModuleType finds a module type by key.
func LookupModuleType(key string) (ModuleType, bool) {
	for _, mt := range ModuleTypes {
		if mt.Key == key {
			return mt, true
		}
	}
	return ModuleType{}, false
}

// SettingKeys returns the capability setting keys of the module type, in
// capability order.
func (m ModuleType) SettingKeys() []string {
	var keys []string
	for _, c := range m.Capabilities {
		keys = append(keys, capabilityKeys[c]...)
	}
	return keys
}

func moduleTypeKeys() []string {
	keys := make([]string, len(ModuleTypes))
	for i, mt := range ModuleTypes {
		keys[i] = mt.Key
	}
	return keys
}

// InputTransformationType describes an input transformation variant.
type InputTransformationType struct {
	Key      string
	Name     string
	Settings []string
}

// InputTransformationTypes lists the supported transformation variants.
var InputTransformationTypes = []InputTransformationType{
	{Key: "zoomScale", Name: "Zoom/Scale", Settings: []string{"speed", "zoom"}},
	{Key: "honf", Name: "Higher Order Noise Function", Settings: []string{"replacedDim"}},
	{Key: "scaleAll", Name: "Scale All", Settings: []string{"scaleFactor"}},
}

func transformationTypeKeys() []string {
	keys := make([]string, len(InputTransformationTypes))
	for i, tt := range InputTransformationTypes {
		keys[i] = tt.Key
	}
	return keys
}

// RangeFunctions lists the distance functions a Worley module accepts.
var RangeFunctions = []string{"euclidean", "euclideanSquared", "manhattan", "chebyshev", "quadratic"}

// DefaultSeed is the seed given to new seedable modules.
const DefaultSeed = "cXEL5v9dTsCgCnkgdd43XWZS6Q9c44AD"

func defs(list ...SettingDefinition) map[string]SettingDefinition {
	out := make(map[string]SettingDefinition, len(list))
	for _, d := range list {
		out[d.Key] = d
	}
	return out
}

var moduleSettings = defs(
	SettingDefinition{Key: KeyModuleType, Title: "Module Type", Kind: ir.KindString, Default: ir.String("Fbm"), Options: moduleTypeKeys()},
	SettingDefinition{Key: "octaves", Title: "Octaves", Kind: ir.KindNumber, Default: ir.Number(6)},
	SettingDefinition{Key: "frequency", Title: "Frequency", Kind: ir.KindNumber, Default: ir.Number(1)},
	SettingDefinition{Key: "lacunarity", Title: "Lacunarity", Kind: ir.KindNumber, Default: ir.Number(2)},
	SettingDefinition{Key: "persistence", Title: "Persistence", Kind: ir.KindNumber, Default: ir.Number(0.5)},
	SettingDefinition{Key: "seed", Title: "Seed", Kind: ir.KindString, Default: ir.String(DefaultSeed)},
	SettingDefinition{Key: "attenuation", Title: "Attenuation", Kind: ir.KindNumber, Default: ir.Number(2)},
	SettingDefinition{Key: "rangeFunction", Title: "Range Function", Kind: ir.KindString, Default: ir.String("euclidean"), Options: RangeFunctions},
	SettingDefinition{Key: "enableRange", Title: "Enable Range", Kind: ir.KindBool, Default: ir.Bool(false)},
	SettingDefinition{Key: "worleyFrequency", Title: "Frequency", Kind: ir.KindNumber, Default: ir.Number(1)},
	SettingDefinition{Key: "displacement", Title: "Displacement", Kind: ir.KindNumber, Default: ir.Number(0)},
	SettingDefinition{Key: "constant", Title: "Constant", Kind: ir.KindNumber, Default: ir.Number(0)},
)

var schemeSettings = defs(
	SettingDefinition{Key: KeyCompositionScheme, Title: "Composition Scheme", Kind: ir.KindString, Default: ir.String(SchemeAverage), Options: []string{SchemeAverage, SchemeWeightedAverage}},
	SettingDefinition{Key: KeyWeights, Title: "Weights", Kind: ir.KindWeightMap, Default: ir.WeightMap{}},
)

var globalConfSettings = defs(
	SettingDefinition{Key: "speed", Title: "Speed", Kind: ir.KindNumber, Default: ir.Number(0.008)},
	SettingDefinition{Key: "zoom", Title: "Zoom", Kind: ir.KindNumber, Default: ir.Number(0.015)},
	SettingDefinition{Key: "colorFunction", Title: "Color Function", Kind: ir.KindString, Default: ir.String("default")},
)

var transformationSettings = defs(
	SettingDefinition{Key: KeyInputTransformationType, Title: "Transformation Type", Kind: ir.KindString, Default: ir.String("zoomScale"), Options: transformationTypeKeys()},
	SettingDefinition{Key: "speed", Title: "Speed", Kind: ir.KindNumber, Default: ir.Number(1)},
	SettingDefinition{Key: "zoom", Title: "Zoom", Kind: ir.KindNumber, Default: ir.Number(1)},
	SettingDefinition{Key: "replacedDim", Title: "Replaced Dimension", Kind: ir.KindString, Default: ir.String("z"), Options: []string{"x", "y", "z"}},
	SettingDefinition{Key: "scaleFactor", Title: "Scale Factor", Kind: ir.KindNumber, Default: ir.Number(1)},
)

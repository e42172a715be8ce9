package schema

import (
	"maps"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// Implicit child slots, in the order they lead a parent's children list.
const (
	SlotGlobalConf = iota
	SlotInputTransformations
	SlotCompositionScheme
)

func builtinDescriptors() []*Descriptor {
	return []*Descriptor{
		moduleDescriptor(ir.TypeRoot),
		moduleDescriptor(ir.TypeNoiseModule),
		compositionSchemeDescriptor(),
		globalConfDescriptor(),
		inputTransformationsDescriptor(),
		inputTransformationDescriptor(),
	}
}

func composed(ctx Context) bool {
	return ctx.StringValue(KeyModuleType, "") == ModuleComposed
}

// moduleDescriptor describes the root and noise modules. The root is a noise
// module that also owns the global configuration.
func moduleDescriptor(t ir.NodeType) *Descriptor {
	isRoot := t == ir.TypeRoot
	base := 1
	title := "Noise Module"
	if isRoot {
		base = 2
		title = "Root"
	}

	return &Descriptor{
		Type:        t,
		Title:       title,
		Description: "A noise module; composed modules combine their children with a composition scheme.",
		IsLeaf: Func[bool](func(ctx Context) bool {
			return !composed(ctx)
		}),
		VisibleSettings: Func[[]string](func(ctx Context) []string {
			keys := []string{KeyModuleType}
			if mt, ok := LookupModuleType(ctx.StringValue(KeyModuleType, "")); ok {
				keys = append(keys, mt.SettingKeys()...)
			}
			return keys
		}),
		NewChildren: Func[ChildPlan](func(ctx Context) ChildPlan {
			var plan ChildPlan
			if isRoot && !ctx.HasChild(ir.TypeGlobalConf) {
				plan.NewChildren = append(plan.NewChildren, GlobalConfDef())
			}
			if !ctx.HasChild(ir.TypeInputTransformations) {
				plan.NewChildren = append(plan.NewChildren, InputTransformationsDef())
			}
			if !composed(ctx) {
				plan.DeletedChildTypes = []ir.NodeType{ir.TypeCompositionScheme, ir.TypeNoiseModule}
				return plan
			}
			if !ctx.HasChild(ir.TypeCompositionScheme) {
				plan.NewChildren = append(plan.NewChildren,
					CompositionSchemeDef(SchemeAverage),
					ModuleDef("Fbm"),
				)
			}
			return plan
		}),
		IndexOffset: Func[int](func(ctx Context) int {
			if composed(ctx) {
				return base + 1
			}
			return base
		}),
		CanBeDeleted: !isRoot,
		Slot:         -1,
		Settings:     moduleSettings,
	}
}

func compositionSchemeDescriptor() *Descriptor {
	weighted := func(ctx Context) bool {
		return ctx.StringValue(KeyCompositionScheme, "") == SchemeWeightedAverage
	}

	return &Descriptor{
		Type:        ir.TypeCompositionScheme,
		Title:       "Composition Scheme",
		Description: "How a composed module combines the outputs of its children.",
		IsLeaf:      Const[bool]{V: true},
		VisibleSettings: Func[[]string](func(ctx Context) []string {
			if weighted(ctx) {
				return []string{KeyCompositionScheme, KeyWeights}
			}
			return []string{KeyCompositionScheme}
		}),
		ChangedSettings: Func[map[ir.SettingID]ir.Setting](func(ctx Context) map[ir.SettingID]ir.Setting {
			if !weighted(ctx) {
				return nil
			}
			st, ok := ctx.Setting(KeyWeights)
			if !ok {
				return nil
			}
			current, _ := st.Value.(ir.WeightMap)
			next := make(ir.WeightMap)
			for _, id := range ctx.Siblings(ir.TypeNoiseModule) {
				next[id] = current[id]
			}
			if maps.Equal(current, next) {
				return nil
			}
			st.Value = next
			return map[ir.SettingID]ir.Setting{st.ID: st}
		}),
		IndexOffset:       Const[int]{V: 0},
		DependentOnParent: true,
		Slot:              SlotCompositionScheme,
		Settings:          schemeSettings,
	}
}

func globalConfDescriptor() *Descriptor {
	return &Descriptor{
		Type:            ir.TypeGlobalConf,
		Title:           "Global Configuration",
		Description:     "Settings that apply to the whole composition.",
		IsLeaf:          Const[bool]{V: true},
		VisibleSettings: Const[[]string]{V: []string{"speed", "zoom", "colorFunction"}},
		IndexOffset:     Const[int]{V: 0},
		Slot:            SlotGlobalConf,
		Settings:        globalConfSettings,
	}
}

func inputTransformationsDescriptor() *Descriptor {
	return &Descriptor{
		Type:            ir.TypeInputTransformations,
		Title:           "Input Transformations",
		Description:     "Transformations applied to a module's input coordinates, in order.",
		IsLeaf:          Const[bool]{V: false},
		VisibleSettings: Const[[]string]{},
		IndexOffset:     Const[int]{V: 0},
		Slot:            SlotInputTransformations,
	}
}

func inputTransformationDescriptor() *Descriptor {
	return &Descriptor{
		Type:   ir.TypeInputTransformation,
		Title:  "Input Transformation",
		IsLeaf: Const[bool]{V: true},
		VisibleSettings: Func[[]string](func(ctx Context) []string {
			keys := []string{KeyInputTransformationType}
			kind := ctx.StringValue(KeyInputTransformationType, "")
			for _, tt := range InputTransformationTypes {
				if tt.Key == kind {
					keys = append(keys, tt.Settings...)
				}
			}
			return keys
		}),
		IndexOffset:  Const[int]{V: 0},
		CanBeDeleted: true,
		Slot:         -1,
		Settings:     transformationSettings,
	}
}

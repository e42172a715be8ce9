package schema

import "github.com/Ameobea/noise-asmjs/internal/ir"

func settingDefs(table map[string]SettingDefinition, keys ...string) []ir.SettingDef {
	out := make([]ir.SettingDef, 0, len(keys))
	for _, key := range keys {
		def, ok := table[key]
		if !ok {
			continue
		}
		out = append(out, ir.SettingDef{Key: key, Value: def.DefaultValue()})
	}
	return out
}

// ModuleDef returns a noise module of the given type with default settings.
// Composed modules get a default composition scheme and one Fbm child.
func ModuleDef(moduleType string) ir.NodeDef {
	def := ir.NodeDef{
		Type:     ir.TypeNoiseModule,
		Settings: []ir.SettingDef{{Key: KeyModuleType, Value: ir.String(moduleType)}},
		Children: []ir.NodeDef{InputTransformationsDef()},
	}
	if mt, ok := LookupModuleType(moduleType); ok {
		def.Settings = append(def.Settings, settingDefs(moduleSettings, mt.SettingKeys()...)...)
	}
	if moduleType == ModuleComposed {
		def.Children = append(def.Children, CompositionSchemeDef(SchemeAverage), ModuleDef("Fbm"))
	}
	return def
}

// CompositionSchemeDef returns a composition scheme node. Weighted schemes
// start with an empty weight map that recomputation fills in.
func CompositionSchemeDef(scheme string) ir.NodeDef {
	keys := []string{KeyCompositionScheme}
	if scheme == SchemeWeightedAverage {
		keys = append(keys, KeyWeights)
	}
	settings := settingDefs(schemeSettings, keys...)
	settings[0].Value = ir.String(scheme)
	return ir.NodeDef{Type: ir.TypeCompositionScheme, Settings: settings}
}

// GlobalConfDef returns a global configuration node with default settings.
func GlobalConfDef() ir.NodeDef {
	return ir.NodeDef{
		Type:     ir.TypeGlobalConf,
		Settings: settingDefs(globalConfSettings, "speed", "zoom", "colorFunction"),
	}
}

// InputTransformationsDef returns a transformation wrapper holding children.
func InputTransformationsDef(children ...ir.NodeDef) ir.NodeDef {
	return ir.NodeDef{Type: ir.TypeInputTransformations, Children: children}
}

// InputTransformationDef returns an input transformation of the given kind
// with default settings.
func InputTransformationDef(kind string) ir.NodeDef {
	keys := []string{}
	for _, tt := range InputTransformationTypes {
		if tt.Key == kind {
			keys = tt.Settings
		}
	}
	settings := append(
		[]ir.SettingDef{{Key: KeyInputTransformationType, Value: ir.String(kind)}},
		settingDefs(transformationSettings, keys...)...,
	)
	return ir.NodeDef{Type: ir.TypeInputTransformation, Settings: settings}
}

// DefaultTree returns the composition loaded when nothing else is given:
// an averaged Fbm and Billow pair, slightly zoomed.
func DefaultTree() ir.NodeDef {
	zoom := InputTransformationDef("zoomScale")
	for i := range zoom.Settings {
		if zoom.Settings[i].Key == "zoom" {
			zoom.Settings[i].Value = ir.Number(1.1)
		}
	}

	root := ModuleDef(ModuleComposed)
	root.ID = ir.RootID
	root.Type = ir.TypeRoot
	root.Children = []ir.NodeDef{
		GlobalConfDef(),
		InputTransformationsDef(zoom),
		CompositionSchemeDef(SchemeAverage),
		ModuleDef("Fbm"),
		ModuleDef("Billow"),
	}
	return root
}

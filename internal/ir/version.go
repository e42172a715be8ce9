package ir

// Version constants for persisted definitions and the engine.
const (
	// DefinitionVersion is the NodeDef document format version.
	DefinitionVersion = "1"

	// EngineVersion is the composition engine version.
	EngineVersion = "0.3.0"
)

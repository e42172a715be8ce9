// Package compiler loads composition files and checks them against the
// node schema before they reach the engine.
//
// Compositions are node definition trees written as JSON, YAML or CUE.
// JSON and YAML documents hold the root node directly; CUE files declare it
// in a top-level composition field, which is unified with the embedded
// #Composition definition so structural mistakes are reported with source
// positions.
//
// Validate runs the semantic checks that need the schema registry: known
// node types, setting kinds and options, placement of implicit children,
// and weight maps that match their sibling modules.
package compiler

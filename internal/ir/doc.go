// Package ir provides the shared vocabulary of the composition engine.
//
// It holds identifiers, node type tags, setting values, the nested NodeDef
// literal, the typed change records emitted by mutators, and the backend
// operation records produced by commits. All other internal packages import
// ir; ir imports nothing internal.
//
// Key constraints:
//   - Setting values are a closed set: String, Number, Bool, WeightMap
//   - NodeDef JSON uses camelCase keys matching the composition file format
//   - Canonical JSON (sorted keys, NFC strings) is the only encoding used for
//     fingerprints and content ids
package ir

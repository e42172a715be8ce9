// Package schema maps node type tags to behavior descriptors.
//
// A Descriptor answers, for a node in its current context: is it a leaf,
// which settings must it carry, which implicit children must exist or go,
// which settings depend on its siblings, can the user delete it, and how many
// leading children the backend does not see. Fields that may depend on the
// node's settings are Field values, resolved uniformly by Resolve.
//
// Unknown types resolve to a fallback descriptor and emit a diagnostic.
package schema

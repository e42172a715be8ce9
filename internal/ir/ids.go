package ir

import "github.com/google/uuid"

// IDGenerator produces ids for newly created nodes and settings.
//
// Implementations:
//   - UUIDGenerator: random v4 UUIDs for production
//   - testutil.SequentialIDs: predictable ids for tests and golden traces
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator generates random (v4) UUIDs.
type UUIDGenerator struct{}

// NewID returns a new random UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// NewNodeID draws a node id from gen.
func NewNodeID(gen IDGenerator) NodeID {
	return NodeID(gen.NewID())
}

// NewSettingID draws a setting id from gen.
func NewSettingID(gen IDGenerator) SettingID {
	return SettingID(gen.NewID())
}

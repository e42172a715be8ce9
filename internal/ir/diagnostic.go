package ir

import "fmt"

// DiagnosticCode classifies data problems that are tolerated but reported.
type DiagnosticCode string

const (
	// DiagUnknownNodeType: a node carries a type with no schema descriptor.
	DiagUnknownNodeType DiagnosticCode = "unknown_node_type"
	// DiagDuplicateSetting: a node holds more than one setting with a key.
	DiagDuplicateSetting DiagnosticCode = "duplicate_setting"
	// DiagValueKind: a setting value does not match its definition's kind.
	DiagValueKind DiagnosticCode = "value_kind"
	// DiagDetached: a node's ancestor chain does not reach the root.
	DiagDetached DiagnosticCode = "detached"
)

// Diagnostic describes a tolerated data inconsistency.
type Diagnostic struct {
	Code    DiagnosticCode `json:"code"`
	NodeID  NodeID         `json:"node_id,omitempty"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	if d.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", d.Code, d.NodeID, d.Message)
	}
	return fmt.Sprintf("[%s] %s", d.Code, d.Message)
}

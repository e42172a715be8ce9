package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is an engine-level failure with a category and the node it
// concerns.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string
	NodeID  string
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeCascadeDepth: dependent recomputation nested past the limit.
	ErrCodeCascadeDepth RuntimeErrorCode = "CASCADE_DEPTH"

	// ErrCodeUnbalancedBatch: End without a matching Begin.
	ErrCodeUnbalancedBatch RuntimeErrorCode = "UNBALANCED_BATCH"

	// ErrCodeRejected: the backend refused a tree reset.
	ErrCodeRejected RuntimeErrorCode = "BACKEND_REJECTED"

	// ErrCodeInvalidTree: a loaded definition is not a tree root.
	ErrCodeInvalidTree RuntimeErrorCode = "INVALID_TREE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.NodeID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is a RuntimeError with the given code.
func IsCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == code
}

func newCascadeError(node string, depth, limit int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCascadeDepth,
		Message: fmt.Sprintf("dependent recomputation nested too deep (%d >= %d)", depth, limit),
		NodeID:  node,
		Details: map[string]string{
			"depth": fmt.Sprintf("%d", depth),
			"limit": fmt.Sprintf("%d", limit),
		},
	}
}

// Package errs carries the Go-level error model that sits alongside the
// IR-level error values defined in pkg/ir (§7). Grounded on
// backend/pkg/models/errors.go: a closed set of sentinel errors plus
// struct error types supporting errors.Unwrap, and a ValidationError/
// ValidationErrors pair that renders a JSON-pointer-style path with a
// message (§4.3).
package errs

import (
	"errors"
	"strings"
)

// Host-level sentinel errors: conditions the engine itself raises, never
// values a document's own operators produce. This package has no
// conversion to an IR-level error value; pkg/ir has the matching
// ErrorCode set for callers that build one.
var (
	ErrStepBudgetExceeded = errors.New("step budget exceeded")
	ErrUnknownOperator    = errors.New("unknown operator")
	ErrUnknownEffect      = errors.New("unknown effect")
	ErrDuplicateOperator  = errors.New("operator already registered")
	ErrDuplicateEffect    = errors.New("effect already registered")
	ErrUnknownChannel     = errors.New("unknown channel")
	ErrChannelClosed      = errors.New("channel is closed")
	ErrUnknownTask        = errors.New("unknown task")
	ErrDuplicateTask      = errors.New("task already spawned")
	ErrCancelled          = errors.New("task cancelled")
	ErrTimeout            = errors.New("operation timed out")
	ErrSuspensionReused   = errors.New("suspension already resumed")
	ErrDeadlockDetected   = errors.New("deadlock detected")
	ErrArityMismatch      = errors.New("argument count mismatch")
)

// ValidationError is one structural diagnostic, carrying a JSON-pointer-
// style path into the document and a human message (§4.3).
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Path + ": " + e.Message
}

// ValidationErrors is the non-empty diagnostic list validate(D) returns
// when D is invalid.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	if len(es) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// NodeError carries a document node id alongside the underlying cause,
// the way the teacher's ExecutionError carries a node id alongside an
// execution id.
type NodeError struct {
	NodeID string
	Err    error
}

func (e *NodeError) Error() string {
	return "node " + e.NodeID + ": " + e.Err.Error()
}

func (e *NodeError) Unwrap() error { return e.Err }

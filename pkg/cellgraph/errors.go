package cellgraph

import (
	"errors"
	"fmt"
)

var (
	ErrBrokenDependency      = errors.New("broken dependency")
	ErrIllegalRoleTransition = errors.New("illegal role transition")
	ErrAnalysis              = errors.New("analysis collaborator failed")
	ErrMalformedInput        = errors.New("malformed input")
	ErrIndexOutOfRange       = errors.New("cell index out of range")
	ErrStaleRefinement       = errors.New("stale refinement")
	ErrNotFunctionCell       = errors.New("not a function cell")
	ErrUnknownVariable       = errors.New("unknown variable")
)

// BrokenDependencyError is returned when a mutation would leave a later
// cell without a writer for a variable it reads. Cell is the reader's index
// before the mutation; Source is the cell whose removal or change broke it.
type BrokenDependencyError struct {
	Variable string
	Cell     int
	Source   int
}

func (e *BrokenDependencyError) Error() string {
	return fmt.Sprintf("broken dependency: cell %d reads %q from cell %d", e.Cell, e.Variable, e.Source)
}

func (e *BrokenDependencyError) Unwrap() error { return ErrBrokenDependency }

// IllegalRoleTransitionError is returned by strict role changes.
type IllegalRoleTransitionError struct {
	Cell int
	From Role
	To   Role
}

func (e *IllegalRoleTransitionError) Error() string {
	return fmt.Sprintf("illegal role transition: cell %d cannot change from %s to %s", e.Cell, e.From, e.To)
}

func (e *IllegalRoleTransitionError) Unwrap() error { return ErrIllegalRoleTransition }

// AnalysisError wraps a failure of an external collaborator during Op.
type AnalysisError struct {
	Op    string
	Cause error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s: analysis failed: %v", e.Op, e.Cause)
}

func (e *AnalysisError) Unwrap() []error { return []error{ErrAnalysis, e.Cause} }

// InputError reports rejected caller input. Kind is one of the package
// sentinels.
type InputError struct {
	Kind error
	Msg  string
}

func (e *InputError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *InputError) Unwrap() error { return e.Kind }

func malformedf(format string, args ...any) error {
	return &InputError{Kind: ErrMalformedInput, Msg: fmt.Sprintf(format, args...)}
}

func unknownf(format string, args ...any) error {
	return &InputError{Kind: ErrUnknownVariable, Msg: fmt.Sprintf(format, args...)}
}

func outOfRange(i, n int) error {
	return &InputError{Kind: ErrIndexOutOfRange, Msg: fmt.Sprintf("index %d, %d cells", i, n)}
}

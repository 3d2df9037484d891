package statespace

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned when an operation is recognized but not
// implemented, such as smoothing.
var ErrUnsupported = errors.New("operation not supported")

// StructuralError reports an invalid model structure: duplicate state
// elements, a process with no measures, a missing batch input and the
// like. It is always raised at definition or batch-build time, never
// from inside the filtering recursion.
type StructuralError struct {
	msg string
}

// Structuralf creates new StructuralError from the given format and arguments.
func Structuralf(format string, args ...any) *StructuralError {
	return &StructuralError{msg: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	return e.msg
}

// DuplicateAssignmentError reports a design-matrix cell assigned more
// than once without an explicit overwrite.
type DuplicateAssignmentError struct {
	Row string
	Col string
}

// Error implements the error interface.
func (e *DuplicateAssignmentError) Error() string {
	return fmt.Sprintf("cell (%q, %q) has already been assigned", e.Row, e.Col)
}

// DimensionError reports a shape mismatch between supplied data and
// the model: wrong measure count, non-positive horizon, mismatched
// batch sizes.
type DimensionError struct {
	msg string
}

// Dimensionf creates new DimensionError from the given format and arguments.
func Dimensionf(format string, args ...any) *DimensionError {
	return &DimensionError{msg: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *DimensionError) Error() string {
	return e.msg
}

package tristate

import (
	"errors"
	"fmt"
)

var (
	// ErrFunctionInvocation is the sentinel for every function or method failure.
	// It always aborts the evaluation of the current record.
	ErrFunctionInvocation = errors.New("function invocation failed")
	// ErrTypeCoercion is returned when a leaf compares incompatible types.  Under
	// lenient coercion the leaf is treated as FALSE instead.
	ErrTypeCoercion = errors.New("type coercion error")
	// ErrIndeterminateResult is returned by strict coercion when the root of the
	// tree could not be decided.
	ErrIndeterminateResult = errors.New("indeterminate result under strict coercion")
	// ErrUnrecognizedMarker is returned when classifying a marker-shaped subtree
	// whose reserved name is unknown.  The interpreter never surfaces it.
	ErrUnrecognizedMarker = errors.New("unrecognized marker")
	// ErrInvalidPattern is returned when a regex literal does not compile.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrStrictWithIncomplete is a configuration error: strict coercion cannot be
	// used while fields are configured as incomplete.
	ErrStrictWithIncomplete = errors.New("strict coercion requires an empty incomplete field set")
)

// InvocationError wraps a failure raised while calling a function or a chained
// method.
type InvocationError struct {
	// Namespace is empty for methods.
	Namespace string
	Name      string
	Err       error
}

func (e *InvocationError) Error() string {
	if e.Namespace == "" {
		return fmt.Sprintf("%s: method %s: %v", ErrFunctionInvocation, e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %s:%s: %v", ErrFunctionInvocation, e.Namespace, e.Name, e.Err)
}

func (e *InvocationError) Unwrap() []error {
	return []error{ErrFunctionInvocation, e.Err}
}

// CoercionError reports a comparison between values that cannot be ordered or
// matched against each other.
type CoercionError struct {
	Op    Operator
	Left  any
	Right any
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("%s: cannot apply %s to %v (%T) and %v (%T)", ErrTypeCoercion, e.Op, e.Left, e.Left, e.Right, e.Right)
}

func (e *CoercionError) Unwrap() error {
	return ErrTypeCoercion
}

func newCoercionError(op Operator, left, right any) error {
	return &CoercionError{Op: op, Left: left, Right: right}
}

var (
	// ErrParse is returned when predicate text is not valid syntax.
	ErrParse = errors.New("parse error")
	// ErrUnsupportedExpression is returned for valid syntax that has no
	// predicate tree equivalent, eg. comprehensions or ternaries.
	ErrUnsupportedExpression = errors.New("unsupported expression")
)

// ParseError reports a failure to turn predicate text into a tree.
type ParseError struct {
	Expr string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v in %q", e.Err, e.Expr)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

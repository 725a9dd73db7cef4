package tristate

import (
	"fmt"
	"strings"
)

// Coercion selects how the root outcome is mapped to a match.
type Coercion int8

const (
	// CoercionDefault selects Strict when no fields are incomplete and Lenient
	// otherwise.
	CoercionDefault Coercion = iota
	// CoercionStrict requires a determinate root, and surfaces type coercion
	// errors at leaves.
	CoercionStrict
	// CoercionLenient matches INDETERMINATE provisionally, and reads leaves that
	// fail type coercion as FALSE.
	CoercionLenient
)

// ParseCoercion parses "strict", "lenient", or an empty string (the default).
func ParseCoercion(s string) (Coercion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return CoercionDefault, nil
	case "strict":
		return CoercionStrict, nil
	case "lenient":
		return CoercionLenient, nil
	default:
		return CoercionDefault, fmt.Errorf("unknown coercion policy %q", s)
	}
}

func (c Coercion) String() string {
	switch c {
	case CoercionStrict:
		return "strict"
	case CoercionLenient:
		return "lenient"
	default:
		return "default"
	}
}

// resolve picks the concrete policy for the number of incomplete fields.
func (c Coercion) resolve(incomplete int) (Coercion, error) {
	switch c {
	case CoercionDefault:
		if incomplete == 0 {
			return CoercionStrict, nil
		}
		return CoercionLenient, nil
	case CoercionStrict:
		if incomplete > 0 {
			return c, ErrStrictWithIncomplete
		}
		return c, nil
	case CoercionLenient:
		return c, nil
	default:
		return c, fmt.Errorf("unknown coercion policy %d", c)
	}
}

// Result is the caller-visible result of evaluating a tree against a record.
type Result struct {
	// Outcome is the tri-state value at the root.
	Outcome Outcome
	// Matched is the coerced boolean.
	Matched bool
	// Provisional is set when the match relied on INDETERMINATE and must be
	// re-verified against complete data.
	Provisional bool
	// Hits are the values that satisfied matching leaves, in evaluation order.
	Hits []ValueTuple
}

// Coerce maps a root outcome to a Result.  Strict coercion returns
// ErrIndeterminateResult for an INDETERMINATE root.
func (c Coercion) Coerce(o Outcome) (Result, error) {
	switch o {
	case True:
		return Result{Outcome: o, Matched: true}, nil
	case False:
		return Result{Outcome: o}, nil
	case Indeterminate:
		if c == CoercionStrict {
			return Result{Outcome: o}, ErrIndeterminateResult
		}
		return Result{Outcome: o, Matched: true, Provisional: true}, nil
	default:
		return Result{}, fmt.Errorf("unknown outcome %d", o)
	}
}

package tristate

import (
	"fmt"
	"strings"
)

// Value is anything an expression can produce while being evaluated: a field's
// FunctionalSet, the Absent sentinel, a Literal, an opaque Collection returned by
// a function, or an Auxiliary payload from the Context.
//
// The marker method keeps the set of values closed to this package.
type Value interface {
	value()
}

type absent struct{}

func (absent) value() {}

func (absent) String() string { return "<absent>" }

// Absent is returned when a name has no binding.  Looking up an unknown name is
// never an error.
var Absent Value = absent{}

// IsAbsent reports whether v is the Absent sentinel (or nil).
func IsAbsent(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(absent)
	return ok
}

// Literal is a scalar produced by the query text or by a function: string,
// int64, float64, bool, nil, or a []any list of those.
type Literal struct {
	V any
}

func (Literal) value() {}

func (l Literal) String() string {
	switch v := l.V.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", `\'`) + "'"
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = Literal{V: item}.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Collection is an ordered, typed-at-runtime list returned by functions that
// do not produce field values, eg. the group keys of grouped matches.
type Collection []any

func (Collection) value() {}

// Auxiliary wraps a non-field payload bound in the Context, such as term
// offsets used by proximity functions.
type Auxiliary struct {
	Name    string
	Payload any
}

func (Auxiliary) value() {}

func (*FunctionalSet) value() {}

// truthy reduces a value to a classical boolean the way a standalone function
// or identifier is read inside a boolean tree: collections match when they are
// non-empty.
func truthy(v Value) (bool, error) {
	switch val := v.(type) {
	case nil, absent:
		return false, nil
	case *FunctionalSet:
		return val.Size() > 0, nil
	case Collection:
		return len(val) > 0, nil
	case Auxiliary:
		return val.Payload != nil, nil
	case Literal:
		switch lit := val.V.(type) {
		case bool:
			return lit, nil
		case nil:
			return false, nil
		case []any:
			return len(lit) > 0, nil
		default:
			if n, ok := toNumber(lit); ok {
				return n != 0, nil
			}
			return false, newCoercionError(OpTruthy, lit, true)
		}
	default:
		return false, newCoercionError(OpTruthy, v, true)
	}
}

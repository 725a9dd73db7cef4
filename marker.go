package tristate

import (
	"fmt"
	"strings"
)

// MarkerKind is the semantics attached to a marker subtree.
type MarkerKind int8

const (
	// BoundedRange is an existential interval check over one field.
	BoundedRange MarkerKind = iota + 1
	// Delayed is a scheduling hint for upstream stages.  It evaluates normally.
	Delayed
	// ValuePlaceholder returns the assigned literal directly.
	ValuePlaceholder
	// Dropped was removed administratively and can never cause a match.
	Dropped
	// Eval forces immediate evaluation.  It evaluates normally.
	Eval
)

// Reserved marker labels, as produced upstream in `((_Label_ = true) && (source))`.
const (
	LabelBounded = "_Bounded_"
	LabelDelayed = "_Delayed_"
	LabelValue   = "_Value_"
	LabelDrop    = "_Drop_"
	LabelEval    = "_Eval_"
)

var markerLabels = map[string]MarkerKind{
	LabelBounded: BoundedRange,
	LabelDelayed: Delayed,
	LabelValue:   ValuePlaceholder,
	LabelDrop:    Dropped,
	LabelEval:    Eval,
}

func (k MarkerKind) String() string {
	switch k {
	case BoundedRange:
		return "BoundedRange"
	case Delayed:
		return "Delayed"
	case ValuePlaceholder:
		return "ValuePlaceholder"
	case Dropped:
		return "Dropped"
	case Eval:
		return "Eval"
	default:
		return "Unknown"
	}
}

// Label returns the reserved name used to encode the marker.
func (k MarkerKind) Label() string {
	for label, kind := range markerLabels {
		if kind == k {
			return label
		}
	}
	return ""
}

// IsReservedName reports whether name has the reserved marker shape: a leading
// and trailing underscore around a non-empty label.
func IsReservedName(name string) bool {
	return len(name) > 2 && strings.HasPrefix(name, "_") && strings.HasSuffix(name, "_")
}

// Marker is a recognized marker subtree.
type Marker struct {
	Kind  MarkerKind
	Label string
	// Value is the literal assigned to the reserved name.  Only ValuePlaceholder
	// uses it.
	Value bool
	// Source is the wrapped subtree with the assignment removed.
	Source Node
}

// ClassifyMarker inspects a conjunction for a reserved-name assignment child.
//
// ok is false when the conjunction holds no assignment, in which case it is an
// ordinary AND.  When an assignment is present but its name is not a known
// label, or the assigned value is not a boolean literal, the returned error
// wraps ErrUnrecognizedMarker and callers fall back to generic evaluation.
func ClassifyMarker(n *AndNode) (m Marker, ok bool, err error) {
	if n == nil {
		return Marker{}, false, nil
	}

	var (
		assignment *Assignment
		rest       = make([]Node, 0, len(n.Children))
	)
	for _, child := range n.Children {
		if a, isAssign := child.(*Assignment); isAssign && assignment == nil {
			assignment = a
			continue
		}
		rest = append(rest, child)
	}
	if assignment == nil {
		return Marker{}, false, nil
	}

	kind, known := markerLabels[assignment.Name]
	if !known {
		return Marker{}, true, fmt.Errorf("%w: %q", ErrUnrecognizedMarker, assignment.Name)
	}

	lit, isLit := assignment.Value.(*LiteralNode)
	if !isLit {
		return Marker{}, true, fmt.Errorf("%w: %s is not assigned a literal", ErrUnrecognizedMarker, assignment.Name)
	}
	value, isBool := lit.Value.(bool)
	if !isBool {
		return Marker{}, true, fmt.Errorf("%w: %s is assigned %v", ErrUnrecognizedMarker, assignment.Name, lit.Value)
	}

	m = Marker{Kind: kind, Label: assignment.Name, Value: value}
	switch len(rest) {
	case 0:
	case 1:
		m.Source = rest[0]
	default:
		m.Source = &AndNode{Children: rest}
	}
	return m, true, nil
}

// Range is the interval encoded by a bounded range marker.
type Range struct {
	Field string

	Lower          any
	LowerInclusive bool
	Upper          any
	UpperInclusive bool
}

// Numeric reports whether both bounds are numbers.  Numeric ranges only admit
// values that can be read as numbers.
func (r Range) Numeric() bool {
	_, lo := toNumber(r.Lower)
	_, hi := toNumber(r.Upper)
	return lo && hi
}

// Contains reports whether the tuple lies within the range.
func (r Range) Contains(t ValueTuple) bool {
	var lower, upper int
	if r.Numeric() {
		n, ok := t.num, t.numeric
		if !ok {
			parsed, err := parseNumber(t.normalized)
			if err != nil {
				return false
			}
			n = parsed
		}
		lo, _ := toNumber(r.Lower)
		hi, _ := toNumber(r.Upper)
		lower, upper = compareFloat(n, lo), compareFloat(n, hi)
	} else {
		lower = strings.Compare(t.normalized, boundString(r.Lower))
		upper = strings.Compare(t.normalized, boundString(r.Upper))
	}

	if lower < 0 || (lower == 0 && !r.LowerInclusive) {
		return false
	}
	if upper > 0 || (upper == 0 && !r.UpperInclusive) {
		return false
	}
	return true
}

func (r Range) String() string {
	left, right := "(", ")"
	if r.LowerInclusive {
		left = "["
	}
	if r.UpperInclusive {
		right = "]"
	}
	return fmt.Sprintf("%s in %s%v, %v%s", r.Field, left, r.Lower, r.Upper, right)
}

func boundString(v any) string {
	if n, ok := toNumber(v); ok {
		return formatNumber(n)
	}
	return fmt.Sprintf("%v", v)
}

// RangeOf reads the interval from the source of a bounded range marker.  The
// source must be a conjunction of exactly one lower and one upper comparison
// against literals over the same field; anything else is reported as !ok so
// that the subtree is evaluated generically.
func RangeOf(source Node) (Range, bool) {
	and, ok := source.(*AndNode)
	if !ok || len(and.Children) != 2 {
		return Range{}, false
	}

	var (
		r                    Range
		haveLower, haveUpper bool
	)
	for _, child := range and.Children {
		field, op, literal, ok := fieldComparison(child)
		if !ok {
			return Range{}, false
		}
		if r.Field != "" && r.Field != field {
			return Range{}, false
		}
		r.Field = field

		switch op {
		case OpGreater, OpGreaterEquals:
			if haveLower {
				return Range{}, false
			}
			haveLower = true
			r.Lower, r.LowerInclusive = literal, op == OpGreaterEquals
		case OpLess, OpLessEquals:
			if haveUpper {
				return Range{}, false
			}
			haveUpper = true
			r.Upper, r.UpperInclusive = literal, op == OpLessEquals
		default:
			return Range{}, false
		}
	}
	return r, haveLower && haveUpper
}

// fieldComparison normalizes `field op literal` and `literal op field` to the
// former.
func fieldComparison(n Node) (field string, op Operator, literal any, ok bool) {
	cmp, isCmp := n.(*CompareNode)
	if !isCmp {
		return "", "", nil, false
	}
	if id, isID := cmp.Left.(*Identifier); isID {
		if lit, isLit := cmp.Right.(*LiteralNode); isLit {
			return id.Name, cmp.Op, lit.Value, true
		}
	}
	if id, isID := cmp.Right.(*Identifier); isID {
		if lit, isLit := cmp.Left.(*LiteralNode); isLit {
			return id.Name, cmp.Op.Swap(), lit.Value, true
		}
	}
	return "", "", nil, false
}

package tristate

import (
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// compareValues decides `left op right` with existential semantics over sets:
// the comparison holds when any member satisfies it.  op must be a positive
// operator (== or relational); negations are evaluated by the caller as the
// negation of the positive form.  Neither side may be Absent.
//
// The returned tuples are the members that satisfied the comparison.
func compareValues(op Operator, left, right Value) (bool, []ValueTuple, error) {
	lset, lIsSet := left.(*FunctionalSet)
	rset, rIsSet := right.(*FunctionalSet)

	switch {
	case lIsSet && rIsSet:
		return compareSets(op, lset, rset)
	case lIsSet:
		return compareSetScalar(op, lset, right)
	case rIsSet:
		return compareSetScalar(op.Swap(), rset, left)
	}

	if coll, ok := collectionOf(left); ok {
		return compareSetScalar(op, SetOf("", coll...), right)
	}
	if coll, ok := collectionOf(right); ok {
		return compareSetScalar(op.Swap(), SetOf("", coll...), left)
	}

	a, aok := left.(Literal)
	b, bok := right.(Literal)
	if !aok || !bok {
		return false, nil, newCoercionError(op, left, right)
	}
	matched, err := compareScalars(op, a.V, b.V)
	return matched, nil, err
}

// collectionOf returns the items of a collection-like value that is not a
// FunctionalSet.
func collectionOf(v Value) ([]any, bool) {
	switch val := v.(type) {
	case Collection:
		return val, true
	case Literal:
		list, ok := val.V.([]any)
		return list, ok
	}
	return nil, false
}

func compareSets(op Operator, left, right *FunctionalSet) (bool, []ValueTuple, error) {
	if op == OpEquals {
		hits := left.Intersect(right)
		return len(hits) > 0, hits, nil
	}

	var (
		hits    []ValueTuple
		ordered bool
	)
	for _, l := range left.Tuples() {
		for _, r := range right.Tuples() {
			c, ok := compareToThreshold(l, r)
			if !ok {
				continue
			}
			ordered = true
			if op.holds(c) {
				hits = append(hits, l, r)
				break
			}
		}
	}
	if !ordered && left.Size() > 0 && right.Size() > 0 {
		return false, nil, newCoercionError(op, left, right)
	}
	return len(hits) > 0, hits, nil
}

func compareSetScalar(op Operator, set *FunctionalSet, other Value) (bool, []ValueTuple, error) {
	if items, ok := collectionOf(other); ok {
		// `F == [a, b]` holds when F has any of the listed values.
		var hits []ValueTuple
		for _, item := range items {
			_, found, err := compareSetScalar(op, set, Literal{V: item})
			if err != nil {
				return false, nil, err
			}
			hits = append(hits, found...)
		}
		return len(hits) > 0, hits, nil
	}

	lit, ok := other.(Literal)
	if !ok {
		return false, nil, newCoercionError(op, set, other)
	}

	switch lit.V.(type) {
	case string, bool, ValueTuple:
	default:
		if _, numeric := toNumber(lit.V); !numeric {
			return false, nil, newCoercionError(op, set, lit.V)
		}
	}

	if op == OpEquals {
		hits := set.Matching(lit.V)
		return len(hits) > 0, hits, nil
	}

	if _, isBool := lit.V.(bool); isBool {
		return false, nil, newCoercionError(op, set, lit.V)
	}

	var (
		hits    []ValueTuple
		ordered bool
	)
	for _, t := range set.Tuples() {
		c, ok := compareToThreshold(t, lit.V)
		if !ok {
			continue
		}
		ordered = true
		if op.holds(c) {
			hits = append(hits, t)
		}
	}
	if !ordered && set.Size() > 0 {
		return false, nil, newCoercionError(op, set, lit.V)
	}
	return len(hits) > 0, hits, nil
}

// compareScalars compares two literals.  Numbers compare numerically, and a
// string is read as a number when compared against one.
func compareScalars(op Operator, a, b any) (bool, error) {
	if an, ok := toNumber(a); ok {
		bn, ok := numberOf(b)
		if !ok {
			return false, newCoercionError(op, a, b)
		}
		return op.holds(compareFloat(an, bn)), nil
	}
	if bn, ok := toNumber(b); ok {
		an, ok := numberOf(a)
		if !ok {
			return false, newCoercionError(op, a, b)
		}
		return op.holds(compareFloat(an, bn)), nil
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return false, newCoercionError(op, a, b)
		}
		return op.holds(strings.Compare(av, bv)), nil
	case bool:
		bv, ok := b.(bool)
		if !ok || op != OpEquals {
			return false, newCoercionError(op, a, b)
		}
		return av == bv, nil
	default:
		return false, newCoercionError(op, a, b)
	}
}

func numberOf(v any) (float64, bool) {
	if n, ok := toNumber(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok {
		n, err := parseNumber(s)
		return n, err == nil
	}
	return 0, false
}

// matchValue reports whether any member of v fully matches re.  Sets match on
// a member's display or normalized form.
func matchValue(re *regexp2.Regexp, v Value) (bool, []ValueTuple, error) {
	switch val := v.(type) {
	case *FunctionalSet:
		var hits []ValueTuple
		for _, t := range val.Tuples() {
			ok, err := MatchTuple(re, t)
			if err != nil {
				return false, nil, err
			}
			if ok {
				hits = append(hits, t)
			}
		}
		return len(hits) > 0, hits, nil
	case Collection:
		return matchValue(re, SetOf("", val...))
	case Literal:
		switch lit := val.V.(type) {
		case string:
			ok, err := re.MatchString(lit)
			return ok, nil, err
		case bool:
			ok, err := re.MatchString(strconv.FormatBool(lit))
			return ok, nil, err
		case []any:
			return matchValue(re, SetOf("", lit...))
		default:
			if n, ok := toNumber(lit); ok {
				ok, err := re.MatchString(formatNumber(n))
				return ok, nil, err
			}
		}
	}
	return false, nil, newCoercionError(OpRegexMatch, v, re.String())
}

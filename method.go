package tristate

import (
	"fmt"
)

// method is a built-in method callable on a field or on a function result, eg.
// `SPEED.max()` or `f:matches(F).size()`.
type method struct {
	// aggregate methods compute over the values present in the record, so an
	// incomplete target yields a determinate result.  Selections such as
	// valuesForGroups keep the target's incompleteness.
	aggregate bool
	arity     [2]int
	call      func(target Value, args []Value) (Value, error)
}

var methods = map[string]method{
	"size":               {aggregate: true, arity: [2]int{0, 0}, call: methodSize},
	"min":                {aggregate: true, arity: [2]int{0, 0}, call: methodMin},
	"max":                {aggregate: true, arity: [2]int{0, 0}, call: methodMax},
	"greaterThan":        {aggregate: true, arity: [2]int{1, 1}, call: methodGreaterThan},
	"compareWith":        {aggregate: true, arity: [2]int{2, 2}, call: methodCompareWith},
	"valuesForGroups":    {arity: [2]int{1, -1}, call: methodValuesForGroups},
	"getValuesForGroups": {arity: [2]int{1, -1}, call: methodValuesForGroups},
}

func isMethod(name string) bool {
	_, ok := methods[name]
	return ok
}

// invokeMethod calls a built-in method.  Failures, including unknown names and
// panics, are returned as *InvocationError.
func invokeMethod(name string, target Value, args []Value) (result Value, aggregate bool, err error) {
	m, ok := methods[name]
	if !ok {
		return nil, false, &InvocationError{Name: name, Err: fmt.Errorf("unknown method")}
	}
	if len(args) < m.arity[0] || (m.arity[1] >= 0 && len(args) > m.arity[1]) {
		return nil, false, &InvocationError{Name: name, Err: fmt.Errorf("unexpected argument count %d", len(args))}
	}

	defer func() {
		if rec := recover(); rec != nil {
			result, aggregate = nil, false
			err = &InvocationError{Name: name, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	result, err = m.call(target, args)
	if err != nil {
		return nil, false, &InvocationError{Name: name, Err: err}
	}
	return result, m.aggregate, nil
}

// asSet views a value as a FunctionalSet.  ok is false for Absent.
func asSet(v Value) (*FunctionalSet, bool, error) {
	switch val := v.(type) {
	case nil, absent:
		return nil, false, nil
	case *FunctionalSet:
		return val, true, nil
	case Collection:
		return SetOf("", val...), true, nil
	case Literal:
		switch lit := val.V.(type) {
		case nil:
			return EmptySet(), true, nil
		case []any:
			return SetOf("", lit...), true, nil
		default:
			return SetOf("", lit), true, nil
		}
	default:
		return nil, false, fmt.Errorf("%T is not a collection", v)
	}
}

// scalarOf reads a single value from an argument.
func scalarOf(v Value) (any, error) {
	switch val := v.(type) {
	case Literal:
		return val.V, nil
	case *FunctionalSet:
		if val.Size() == 1 {
			t, _ := val.Min()
			return t, nil
		}
		return nil, fmt.Errorf("expected a single value, got %d", val.Size())
	case Collection:
		if len(val) == 1 {
			return val[0], nil
		}
		return nil, fmt.Errorf("expected a single value, got %d", len(val))
	default:
		return nil, fmt.Errorf("expected a single value, got %T", v)
	}
}

func methodSize(target Value, _ []Value) (Value, error) {
	switch val := target.(type) {
	case nil, absent:
		return Literal{V: int64(0)}, nil
	case *FunctionalSet:
		return Literal{V: int64(val.Size())}, nil
	case Collection:
		return Literal{V: int64(len(val))}, nil
	case Literal:
		switch lit := val.V.(type) {
		case nil:
			return Literal{V: int64(0)}, nil
		case []any:
			return Literal{V: int64(len(lit))}, nil
		case string:
			return Literal{V: int64(len(lit))}, nil
		default:
			return Literal{V: int64(1)}, nil
		}
	default:
		return nil, fmt.Errorf("cannot size %T", target)
	}
}

func methodMin(target Value, _ []Value) (Value, error) {
	set, ok, err := asSet(target)
	if err != nil || !ok {
		return Absent, err
	}
	if t, ok := set.Min(); ok {
		return NewFunctionalSet(t), nil
	}
	return Absent, nil
}

func methodMax(target Value, _ []Value) (Value, error) {
	set, ok, err := asSet(target)
	if err != nil || !ok {
		return Absent, err
	}
	if t, ok := set.Max(); ok {
		return NewFunctionalSet(t), nil
	}
	return Absent, nil
}

func methodGreaterThan(target Value, args []Value) (Value, error) {
	return compareWith(target, args[0], OpGreater)
}

func methodCompareWith(target Value, args []Value) (Value, error) {
	raw, err := scalarOf(args[1])
	if err != nil {
		return nil, err
	}
	var op Operator
	switch v := raw.(type) {
	case string:
		op, _ = ParseOperator(v)
	case ValueTuple:
		op, _ = ParseOperator(v.Display())
	}
	if !op.IsRelational() && op != OpEquals && op != OpNotEquals {
		return nil, fmt.Errorf("unsupported operator %v", raw)
	}
	return compareWith(target, args[0], op)
}

func compareWith(target, threshold Value, op Operator) (Value, error) {
	set, ok, err := asSet(target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return EmptySet(), nil
	}
	th, err := scalarOf(threshold)
	if err != nil {
		return nil, err
	}
	return set.CompareWith(th, op), nil
}

func methodValuesForGroups(target Value, args []Value) (Value, error) {
	set, ok, err := asSet(target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return EmptySet(), nil
	}

	var groups []string
	for _, arg := range args {
		keys, err := groupKeys(arg)
		if err != nil {
			return nil, err
		}
		groups = append(groups, keys...)
	}
	return set.ValuesForGroups(groups...), nil
}

func groupKeys(v Value) ([]string, error) {
	switch val := v.(type) {
	case nil, absent:
		return nil, nil
	case *FunctionalSet:
		keys := make([]string, 0, val.Size())
		for _, t := range val.Tuples() {
			keys = append(keys, t.Normalized())
		}
		return keys, nil
	case Collection:
		keys := make([]string, len(val))
		for i, item := range val {
			keys[i] = boundString(item)
		}
		return keys, nil
	case Literal:
		if list, ok := val.V.([]any); ok {
			return groupKeys(Collection(list))
		}
		return []string{boundString(val.V)}, nil
	default:
		return nil, fmt.Errorf("cannot read group keys from %T", v)
	}
}

package tristate

import (
	"errors"
	"fmt"
)

// Options configures an Interpreter.
type Options struct {
	// IncompleteFields are fields whose stored values cannot conclusively answer
	// truth-valued predicates.
	IncompleteFields []string
	// Coercion selects the root policy.  The default is strict when
	// IncompleteFields is empty and lenient otherwise.
	Coercion Coercion
	// Registry resolves namespace:name function calls.  A nil registry makes
	// every function call fail.
	Registry *Registry
	// Patterns caches compiled regular expressions.  If nil, a cache with the
	// default options is created.
	Patterns *PatternCache
}

// Interpreter evaluates predicate trees against per-record Contexts.
//
// An Interpreter holds no per-evaluation state: it is safe for concurrent use
// by any number of goroutines, each evaluating its own Context.  Evaluation is
// a pure function of the tree, the Context, and the Interpreter's options.
type Interpreter struct {
	incomplete map[string]struct{}
	coercion   Coercion
	registry   *Registry
	patterns   *PatternCache
}

// NewInterpreter validates opts and returns an Interpreter.  It returns
// ErrStrictWithIncomplete if strict coercion is requested with incomplete
// fields.
func NewInterpreter(opts Options) (*Interpreter, error) {
	incomplete := make(map[string]struct{}, len(opts.IncompleteFields))
	for _, f := range opts.IncompleteFields {
		incomplete[f] = struct{}{}
	}

	coercion, err := opts.Coercion.resolve(len(incomplete))
	if err != nil {
		return nil, err
	}

	if opts.Patterns == nil {
		opts.Patterns = NewPatternCache(PatternCacheOptions{})
	}

	return &Interpreter{
		incomplete: incomplete,
		coercion:   coercion,
		registry:   opts.Registry,
		patterns:   opts.Patterns,
	}, nil
}

// Coercion returns the resolved root policy.
func (i *Interpreter) Coercion() Coercion {
	return i.coercion
}

// IsIncomplete reports whether field is configured as incomplete.
func (i *Interpreter) IsIncomplete(field string) bool {
	_, ok := i.incomplete[field]
	return ok
}

// Evaluate evaluates root against ctx and coerces the outcome.
//
// Function and method failures are returned as *InvocationError, and invalid
// patterns as ErrInvalidPattern, regardless of policy.  Under strict coercion a
// leaf comparing incompatible types returns a *CoercionError and an
// INDETERMINATE root returns ErrIndeterminateResult.
func (i *Interpreter) Evaluate(root Node, ctx *Context) (Result, error) {
	ev := &evaluation{Interpreter: i, ctx: ctx}
	out, err := ev.eval(root)
	if err != nil {
		return Result{}, err
	}

	res, err := i.coercion.Coerce(out)
	if err != nil {
		return res, err
	}
	if res.Matched {
		res.Hits = dedupeHits(ev.hits)
	}
	return res, nil
}

// Outcome evaluates root against ctx and returns the tri-state outcome without
// applying the root policy.
func (i *Interpreter) Outcome(root Node, ctx *Context) (Outcome, error) {
	ev := &evaluation{Interpreter: i, ctx: ctx}
	return ev.eval(root)
}

// evaluation is the state of one Evaluate call.
type evaluation struct {
	*Interpreter
	ctx  *Context
	hits []ValueTuple
}

// eval evaluates a node.  Hits recorded by a subtree that evaluates FALSE are
// discarded.
func (e *evaluation) eval(n Node) (Outcome, error) {
	mark := len(e.hits)
	out, err := e.dispatch(n)
	if err != nil || out == False {
		e.hits = e.hits[:mark]
	}
	return out, err
}

func (e *evaluation) dispatch(n Node) (Outcome, error) {
	switch node := n.(type) {
	case *AndNode:
		return e.evalAnd(node)
	case *OrNode:
		result := False
		for _, child := range node.Children {
			out, err := e.eval(child)
			if err != nil {
				return False, err
			}
			result = Or(result, out)
		}
		return result, nil
	case *NotNode:
		if dropped(node.Child) {
			return False, nil
		}
		mark := len(e.hits)
		out, err := e.eval(node.Child)
		e.hits = e.hits[:mark]
		return Not(out), err
	case *CompareNode:
		return e.leaf(node, e.evalCompare)
	case *Assignment:
		return e.leaf(node.Value, e.evalTruthy)
	case *Identifier, *LiteralNode, *FunctionCall, *MethodCall:
		return e.leaf(node, e.evalTruthy)
	case nil:
		return False, fmt.Errorf("nil node")
	default:
		return False, fmt.Errorf("unsupported node %T", n)
	}
}

// leaf evaluates a leaf predicate.  Under lenient coercion, a leaf that fails
// type coercion is FALSE.
func (e *evaluation) leaf(n Node, fn func(Node) (Outcome, error)) (Outcome, error) {
	out, err := fn(n)
	if err != nil && e.coercion == CoercionLenient && isCoercionError(err) {
		return False, nil
	}
	return out, err
}

func isCoercionError(err error) bool {
	return errors.Is(err, ErrTypeCoercion) && !errors.Is(err, ErrFunctionInvocation)
}

func (e *evaluation) evalAnd(n *AndNode) (Outcome, error) {
	// An unrecognized marker is evaluated as an ordinary conjunction in which
	// the assignment reads as its literal.
	if m, ok, err := ClassifyMarker(n); ok && err == nil {
		return e.evalMarker(m)
	}

	result := True
	for _, child := range n.Children {
		out, err := e.eval(child)
		if err != nil {
			return False, err
		}
		result = And(result, out)
	}
	return result, nil
}

// dropped reports whether n is FALSE only because of a dropped subtree: a
// dropped marker, a conjunction holding one, a disjunction of them, or a
// negation of any of these.  Negating such a node is also FALSE.
func dropped(n Node) bool {
	switch node := n.(type) {
	case *NotNode:
		return dropped(node.Child)
	case *AndNode:
		if m, ok, err := ClassifyMarker(node); ok && err == nil {
			switch m.Kind {
			case Dropped:
				return true
			case Delayed, Eval:
				return m.Source != nil && dropped(m.Source)
			default:
				return false
			}
		}
		for _, child := range node.Children {
			if dropped(child) {
				return true
			}
		}
		return false
	case *OrNode:
		for _, child := range node.Children {
			if !dropped(child) {
				return false
			}
		}
		return len(node.Children) > 0
	default:
		return false
	}
}

func (e *evaluation) evalMarker(m Marker) (Outcome, error) {
	switch m.Kind {
	case Dropped:
		return False, nil
	case ValuePlaceholder:
		return OutcomeOf(m.Value), nil
	case BoundedRange:
		if r, ok := RangeOf(m.Source); ok {
			return e.evalRange(r), nil
		}
	}
	if m.Source == nil {
		return True, nil
	}
	return e.eval(m.Source)
}

func (e *evaluation) evalRange(r Range) Outcome {
	set, ok := e.ctx.Lookup(r.Field).(*FunctionalSet)
	if !ok {
		return False
	}
	if e.IsIncomplete(r.Field) {
		return Indeterminate
	}

	matched := false
	for _, t := range set.Tuples() {
		if r.Contains(t) {
			e.hits = append(e.hits, t)
			matched = true
		}
	}
	return OutcomeOf(matched)
}

func (e *evaluation) evalCompare(n Node) (Outcome, error) {
	cmp := n.(*CompareNode)
	positive := cmp.Op.Positive()
	if positive == OpRegexMatch {
		return e.evalRegex(cmp)
	}

	if isNullLiteral(cmp.Right) || isNullLiteral(cmp.Left) {
		return e.evalNull(cmp)
	}

	left, lincomplete, err := e.evalValue(cmp.Left)
	if err != nil {
		return False, err
	}
	right, rincomplete, err := e.evalValue(cmp.Right)
	if err != nil {
		return False, err
	}

	if IsAbsent(left) || IsAbsent(right) {
		return OutcomeOf(cmp.Op.IsNegation()), nil
	}
	if lincomplete || rincomplete {
		return Indeterminate, nil
	}

	matched, hits, err := compareValues(positive, left, right)
	if err != nil {
		return False, err
	}
	if cmp.Op.IsNegation() {
		return OutcomeOf(!matched), nil
	}
	e.hits = append(e.hits, hits...)
	return OutcomeOf(matched), nil
}

func isNullLiteral(n Node) bool {
	lit, ok := n.(*LiteralNode)
	return ok && lit.Value == nil
}

// evalNull answers `F == null` and `F != null`, which test for the presence of
// a binding.
func (e *evaluation) evalNull(cmp *CompareNode) (Outcome, error) {
	other := cmp.Left
	if isNullLiteral(cmp.Left) {
		other = cmp.Right
	}
	if cmp.Op != OpEquals && cmp.Op != OpNotEquals {
		return False, newCoercionError(cmp.Op, other.String(), nil)
	}

	v, _, err := e.evalValue(other)
	if err != nil {
		return False, err
	}
	present := !IsAbsent(v)
	if lit, ok := v.(Literal); ok && lit.V == nil {
		present = false
	}
	if cmp.Op == OpEquals {
		return OutcomeOf(!present), nil
	}
	return OutcomeOf(present), nil
}

func (e *evaluation) evalRegex(cmp *CompareNode) (Outcome, error) {
	pv, _, err := e.evalValue(cmp.Right)
	if err != nil {
		return False, err
	}
	raw, err := scalarOf(pv)
	if err != nil {
		return False, newCoercionError(cmp.Op, cmp.Left.String(), pv)
	}
	var pattern string
	switch p := raw.(type) {
	case string:
		pattern = p
	case ValueTuple:
		pattern = p.Display()
	default:
		return False, newCoercionError(cmp.Op, cmp.Left.String(), raw)
	}

	// Patterns compile before the target is inspected so that a malformed
	// pattern fails the same way for every record.
	re, err := e.patterns.Compile(pattern)
	if err != nil {
		return False, err
	}

	target, incomplete, err := e.evalValue(cmp.Left)
	if err != nil {
		return False, err
	}
	if IsAbsent(target) {
		return OutcomeOf(cmp.Op.IsNegation()), nil
	}
	if incomplete {
		return Indeterminate, nil
	}

	matched, hits, err := matchValue(re, target)
	if err != nil {
		return False, err
	}
	if cmp.Op.IsNegation() {
		return OutcomeOf(!matched), nil
	}
	e.hits = append(e.hits, hits...)
	return OutcomeOf(matched), nil
}

// evalTruthy reads a value-producing node as a boolean: a field or function
// result matches when it is non-empty.
func (e *evaluation) evalTruthy(n Node) (Outcome, error) {
	v, incomplete, err := e.evalValue(n)
	if err != nil {
		return False, err
	}
	if IsAbsent(v) {
		return False, nil
	}
	if incomplete {
		return Indeterminate, nil
	}

	ok, err := truthy(v)
	if err != nil {
		return False, err
	}
	if set, isSet := v.(*FunctionalSet); isSet && ok {
		e.hits = append(e.hits, set.Tuples()...)
	}
	return OutcomeOf(ok), nil
}

// evalValue resolves a node to a value without reducing it to a boolean.  The
// returned flag is set when the value derives from a present incomplete field
// and has not since been reduced by an aggregate method.
func (e *evaluation) evalValue(n Node) (Value, bool, error) {
	switch node := n.(type) {
	case *Identifier:
		v := e.ctx.Lookup(node.Name)
		if IsAbsent(v) {
			return e.ctx.LookupAuxiliary(node.Name), false, nil
		}
		return v, e.IsIncomplete(node.Name), nil

	case *LiteralNode:
		return Literal{V: node.Value}, false, nil

	case *FunctionCall:
		args, incomplete, err := e.evalArgs(node.Args)
		if err != nil {
			return nil, false, err
		}
		v, err := e.registry.Invoke(e.ctx, node.Namespace, node.Name, args)
		if err != nil {
			return nil, false, err
		}
		return v, incomplete, nil

	case *MethodCall:
		// ns.f(...) on a namespace that was not configured parses as a method
		// call on the field ns.
		if id, ok := node.Target.(*Identifier); ok && !e.ctx.Has(id.Name) && !isMethod(node.Name) {
			return nil, false, &InvocationError{
				Namespace: id.Name,
				Name:      node.Name,
				Err:       fmt.Errorf("unknown namespace %q", id.Name),
			}
		}
		target, incomplete, err := e.evalValue(node.Target)
		if err != nil {
			return nil, false, err
		}
		args, _, err := e.evalArgs(node.Args)
		if err != nil {
			return nil, false, err
		}
		v, aggregate, err := invokeMethod(node.Name, target, args)
		if err != nil {
			return nil, false, err
		}
		return v, incomplete && !aggregate, nil

	default:
		// A boolean subtree used as an argument.
		out, err := e.eval(n)
		if err != nil {
			return nil, false, err
		}
		return Literal{V: out == True}, out == Indeterminate, nil
	}
}

func (e *evaluation) evalArgs(nodes []Node) ([]Value, bool, error) {
	var incomplete bool
	args := make([]Value, len(nodes))
	for i, n := range nodes {
		v, inc, err := e.evalValue(n)
		if err != nil {
			return nil, false, err
		}
		args[i] = v
		incomplete = incomplete || inc
	}
	return args, incomplete, nil
}

func dedupeHits(hits []ValueTuple) []ValueTuple {
	if len(hits) == 0 {
		return nil
	}
	type key struct{ field, normalized string }
	seen := make(map[key]struct{}, len(hits))
	out := make([]ValueTuple, 0, len(hits))
	for _, t := range hits {
		k := key{t.field, t.normalized}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}

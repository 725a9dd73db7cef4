package tristate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	celast "github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// NewEnv returns the CEL environment used to parse predicates.  Macros are
// cleared: predicates never expand into comprehensions.
func NewEnv() (*cel.Env, error) {
	return cel.NewEnv(cel.ClearMacros())
}

// CELParser parses predicate text into a CEL AST.  Implementations may lift
// literals out of the text, in which case the lifted values are returned.
type CELParser interface {
	Parse(expr string) (*cel.Ast, *cel.Issues, LiftedArgs)
}

// EnvParser returns a CELParser which parses each expression with env, without
// caching.
func EnvParser(env *cel.Env) CELParser {
	return envParser{env: env}
}

type envParser struct {
	env *cel.Env
}

func (e envParser) Parse(expr string) (*cel.Ast, *cel.Issues, LiftedArgs) {
	ast, issues := e.env.Parse(expr)
	return ast, issues, nil
}

// TreeParser turns predicate text into a Node tree.
type TreeParser interface {
	Parse(ctx context.Context, expr string) (Node, error)
}

// NewTreeParser returns a TreeParser.  Member calls whose receiver is one of
// namespaces, eg. `content.phrase(TEXT, 'a b')`, become function calls; all
// other member calls become method calls.
func NewTreeParser(cp CELParser, namespaces ...string) TreeParser {
	ns := make(map[string]struct{}, len(namespaces))
	for _, n := range namespaces {
		ns[n] = struct{}{}
	}
	return &parser{cel: cp, namespaces: ns}
}

type parser struct {
	cel        CELParser
	namespaces map[string]struct{}
}

func (p *parser) Parse(ctx context.Context, expr string) (Node, error) {
	ast, issues, vars := p.cel.Parse(expr)
	if issues != nil && issues.Err() != nil {
		return nil, &ParseError{Expr: expr, Err: fmt.Errorf("%w: %s", ErrParse, issues.Err())}
	}
	if ast == nil {
		return nil, &ParseError{Expr: expr, Err: ErrParse}
	}

	t := translator{vars: vars, namespaces: p.namespaces}
	n, err := t.node(ast.NativeRep().Expr())
	if err != nil {
		return nil, &ParseError{Expr: expr, Err: err}
	}
	return n, nil
}

// translator converts CEL expressions into Nodes.
type translator struct {
	vars       LiftedArgs
	namespaces map[string]struct{}
}

func (t translator) node(e celast.Expr) (Node, error) {
	switch e.Kind() {
	case celast.CallKind:
		return t.call(e)
	case celast.IdentKind:
		return &Identifier{Name: e.AsIdent()}, nil
	case celast.LiteralKind:
		v, err := literalValue(e.AsLiteral())
		if err != nil {
			return nil, err
		}
		return &LiteralNode{Value: v}, nil
	case celast.SelectKind:
		return t.selection(e)
	case celast.ListKind:
		items := make([]any, 0, len(e.AsList().Elements()))
		for _, el := range e.AsList().Elements() {
			n, err := t.node(el)
			if err != nil {
				return nil, err
			}
			lit, ok := n.(*LiteralNode)
			if !ok {
				return nil, fmt.Errorf("%w: list elements must be literals", ErrUnsupportedExpression)
			}
			items = append(items, lit.Value)
		}
		return &LiteralNode{Value: items}, nil
	default:
		return nil, fmt.Errorf("%w: expression kind %d", ErrUnsupportedExpression, e.Kind())
	}
}

// selection handles `a.b.c`: either a lifted literal (vars.a) or a dotted
// field name.
func (t translator) selection(e celast.Expr) (Node, error) {
	var parts []string
	item := e
	for item.Kind() == celast.SelectKind {
		sel := item.AsSelect()
		if sel.IsTestOnly() {
			return nil, fmt.Errorf("%w: has()", ErrUnsupportedExpression)
		}
		parts = append(parts, sel.FieldName())
		item = sel.Operand()
	}
	if item.Kind() != celast.IdentKind {
		return nil, fmt.Errorf("%w: selection on a non-identifier", ErrUnsupportedExpression)
	}
	parts = append(parts, item.AsIdent())

	// Reverse into reading order.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	name := strings.Join(parts, ".")

	if t.vars != nil && strings.HasPrefix(name, VarPrefix) {
		if val, ok := t.vars.Get(strings.TrimPrefix(name, VarPrefix)); ok {
			return &LiteralNode{Value: val}, nil
		}
	}
	return &Identifier{Name: name}, nil
}

func (t translator) call(e celast.Expr) (Node, error) {
	call := e.AsCall()
	args := call.Args()

	switch call.FunctionName() {
	case operators.LogicalAnd:
		children, err := t.flatten(args, func(n Node) ([]Node, bool) {
			and, ok := n.(*AndNode)
			if !ok || hasAssignment(and) {
				return nil, false
			}
			return and.Children, true
		})
		if err != nil {
			return nil, err
		}
		return &AndNode{Children: children}, nil

	case operators.LogicalOr:
		children, err := t.flatten(args, func(n Node) ([]Node, bool) {
			or, ok := n.(*OrNode)
			if !ok {
				return nil, false
			}
			return or.Children, true
		})
		if err != nil {
			return nil, err
		}
		return &OrNode{Children: children}, nil

	case operators.LogicalNot:
		child, err := t.node(args[0])
		if err != nil {
			return nil, err
		}
		// !F.matches(p) is the negated regex leaf F !~ p.
		if cmp, ok := child.(*CompareNode); ok && cmp.Op == OpRegexMatch && isMatchesCall(args[0]) {
			cmp.Op = OpRegexNotMatch
			return cmp, nil
		}
		return &NotNode{Child: child}, nil

	case operators.Equals:
		if a, ok := t.assignment(args); ok {
			return a, nil
		}
		return t.compare(OpEquals, args)
	case operators.NotEquals:
		return t.compare(OpNotEquals, args)
	case operators.Less:
		return t.compare(OpLess, args)
	case operators.LessEquals:
		return t.compare(OpLessEquals, args)
	case operators.Greater:
		return t.compare(OpGreater, args)
	case operators.GreaterEquals:
		return t.compare(OpGreaterEquals, args)
	case operators.In:
		// `F in ['a', 'b']` holds when F has any listed value.
		return t.compare(OpEquals, args)

	case operators.Negate:
		n, err := t.node(args[0])
		if err != nil {
			return nil, err
		}
		if lit, ok := n.(*LiteralNode); ok {
			switch v := lit.Value.(type) {
			case int64:
				return &LiteralNode{Value: -v}, nil
			case float64:
				return &LiteralNode{Value: -v}, nil
			}
		}
		return nil, fmt.Errorf("%w: negation of %s", ErrUnsupportedExpression, n)
	}

	if !call.IsMemberFunction() {
		return nil, fmt.Errorf("%w: function %s", ErrUnsupportedExpression, call.FunctionName())
	}

	target := call.Target()
	if target.Kind() == celast.IdentKind {
		if _, ok := t.namespaces[target.AsIdent()]; ok {
			fnArgs, err := t.nodes(args)
			if err != nil {
				return nil, err
			}
			return &FunctionCall{Namespace: target.AsIdent(), Name: call.FunctionName(), Args: fnArgs}, nil
		}
	}

	recv, err := t.node(target)
	if err != nil {
		return nil, err
	}
	if call.FunctionName() == "matches" && len(args) == 1 {
		pattern, err := t.node(args[0])
		if err != nil {
			return nil, err
		}
		return &CompareNode{Op: OpRegexMatch, Left: recv, Right: pattern}, nil
	}

	methodArgs, err := t.nodes(args)
	if err != nil {
		return nil, err
	}
	return &MethodCall{Target: recv, Name: call.FunctionName(), Args: methodArgs}, nil
}

// assignment recognizes `_Label_ == true`, the encoding of a marker
// assignment.
func (t translator) assignment(args []celast.Expr) (*Assignment, bool) {
	if len(args) != 2 || args[0].Kind() != celast.IdentKind || !IsReservedName(args[0].AsIdent()) {
		return nil, false
	}
	n, err := t.node(args[1])
	if err != nil {
		return nil, false
	}
	lit, ok := n.(*LiteralNode)
	if !ok {
		return nil, false
	}
	if _, ok := lit.Value.(bool); !ok {
		return nil, false
	}
	return &Assignment{Name: args[0].AsIdent(), Value: lit}, true
}

func (t translator) compare(op Operator, args []celast.Expr) (Node, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%w: %s with %d arguments", ErrUnsupportedExpression, op, len(args))
	}
	left, err := t.node(args[0])
	if err != nil {
		return nil, err
	}
	right, err := t.node(args[1])
	if err != nil {
		return nil, err
	}
	return &CompareNode{Op: op, Left: left, Right: right}, nil
}

func (t translator) nodes(exprs []celast.Expr) ([]Node, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	out := make([]Node, len(exprs))
	for i, e := range exprs {
		n, err := t.node(e)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// flatten translates the operands of an n-ary operator.  CEL balances chains
// of && and || into binary trees; splice returns the children to inline.
func (t translator) flatten(args []celast.Expr, splice func(Node) ([]Node, bool)) ([]Node, error) {
	var children []Node
	for _, arg := range args {
		n, err := t.node(arg)
		if err != nil {
			return nil, err
		}
		if inner, ok := splice(n); ok {
			children = append(children, inner...)
			continue
		}
		children = append(children, n)
	}
	return children, nil
}

func hasAssignment(n *AndNode) bool {
	for _, c := range n.Children {
		if _, ok := c.(*Assignment); ok {
			return true
		}
	}
	return false
}

func isMatchesCall(e celast.Expr) bool {
	return e.Kind() == celast.CallKind && e.AsCall().FunctionName() == "matches" && e.AsCall().IsMemberFunction()
}

func literalValue(v ref.Val) (any, error) {
	switch val := v.(type) {
	case types.Null:
		return nil, nil
	case types.Bytes:
		return string(val), nil
	case types.Uint:
		return int64(val), nil
	case types.String, types.Int, types.Double, types.Bool:
		return val.Value(), nil
	default:
		return nil, fmt.Errorf("%w: literal of type %s", ErrUnsupportedExpression, v.Type().TypeName())
	}
}

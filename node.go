package tristate

import (
	"strings"
)

// Node is a parsed predicate tree.  The set of node kinds is a fixed contract
// with the parser; the marker method prevents external types from implementing
// Node so that the interpreter's type switch stays exhaustive.
type Node interface {
	node()
	// String returns the expression in the upstream textual form.
	String() string
}

// Operator is a comparison operator used by comparison leaves and by the
// compareWith method.
type Operator string

const (
	OpEquals        Operator = "=="
	OpNotEquals     Operator = "!="
	OpRegexMatch    Operator = "=~"
	OpRegexNotMatch Operator = "!~"
	OpLess          Operator = "<"
	OpLessEquals    Operator = "<="
	OpGreater       Operator = ">"
	OpGreaterEquals Operator = ">="

	// OpTruthy is only used when reporting coercion errors for values read as
	// booleans.
	OpTruthy Operator = "bool"
)

// ParseOperator returns the operator for its textual form.
func ParseOperator(s string) (Operator, bool) {
	op := Operator(strings.TrimSpace(s))
	switch op {
	case OpEquals, OpNotEquals, OpRegexMatch, OpRegexNotMatch,
		OpLess, OpLessEquals, OpGreater, OpGreaterEquals:
		return op, true
	}
	return "", false
}

// IsRelational reports whether the operator orders its operands.
func (o Operator) IsRelational() bool {
	switch o {
	case OpLess, OpLessEquals, OpGreater, OpGreaterEquals:
		return true
	}
	return false
}

// IsNegation reports whether the operator is the negation of a positive
// predicate, ie. != and !~.
func (o Operator) IsNegation() bool {
	return o == OpNotEquals || o == OpRegexNotMatch
}

// Positive returns the positive form of a negated operator.
func (o Operator) Positive() Operator {
	switch o {
	case OpNotEquals:
		return OpEquals
	case OpRegexNotMatch:
		return OpRegexMatch
	default:
		return o
	}
}

// Swap returns the operator to use when exchanging the operands, so that
// `5 < F` can be evaluated as `F > 5`.
func (o Operator) Swap() Operator {
	switch o {
	case OpLess:
		return OpGreater
	case OpLessEquals:
		return OpGreaterEquals
	case OpGreater:
		return OpLess
	case OpGreaterEquals:
		return OpLessEquals
	default:
		return o
	}
}

// holds reports whether a three-way comparison result satisfies the operator.
func (o Operator) holds(c int) bool {
	switch o {
	case OpEquals:
		return c == 0
	case OpNotEquals:
		return c != 0
	case OpLess:
		return c < 0
	case OpLessEquals:
		return c <= 0
	case OpGreater:
		return c > 0
	case OpGreaterEquals:
		return c >= 0
	default:
		return false
	}
}

// AndNode is an n-ary conjunction.
type AndNode struct {
	Children []Node
}

// OrNode is an n-ary disjunction.
type OrNode struct {
	Children []Node
}

// NotNode negates its child.
type NotNode struct {
	Child Node
}

// CompareNode is a leaf predicate such as `F == 'x'`, `F =~ 'a.*'`, `F1 == F2`,
// or a comparison over a function or method result, eg. `F.size() > 2`.
type CompareNode struct {
	Op    Operator
	Left  Node
	Right Node
}

// Identifier names a field or an auxiliary binding in the Context.
type Identifier struct {
	Name string
}

// LiteralNode is a constant in the query text.
type LiteralNode struct {
	Value any
}

// Assignment is the reserved-name assignment used to encode markers, eg.
// `_Bounded_ = true`.
type Assignment struct {
	Name  string
	Value Node
}

// FunctionCall invokes namespace:name(args...).
type FunctionCall struct {
	Namespace string
	Name      string
	Args      []Node
}

// MethodCall invokes a method on the value of Target, eg. `F.size()`.
type MethodCall struct {
	Target Node
	Name   string
	Args   []Node
}

func (*AndNode) node()      {}
func (*OrNode) node()       {}
func (*NotNode) node()      {}
func (*CompareNode) node()  {}
func (*Identifier) node()   {}
func (*LiteralNode) node()  {}
func (*Assignment) node()   {}
func (*FunctionCall) node() {}
func (*MethodCall) node()   {}

func (n *AndNode) String() string { return joinNodes(n.Children, " && ") }
func (n *OrNode) String() string  { return joinNodes(n.Children, " || ") }
func (n *NotNode) String() string { return "!(" + n.Child.String() + ")" }

func (n *CompareNode) String() string {
	return n.Left.String() + " " + string(n.Op) + " " + n.Right.String()
}

func (n *Identifier) String() string  { return n.Name }
func (n *LiteralNode) String() string { return Literal{V: n.Value}.String() }

func (n *Assignment) String() string {
	return "(" + n.Name + " = " + n.Value.String() + ")"
}

func (n *FunctionCall) String() string {
	return n.Namespace + ":" + n.Name + "(" + joinArgs(n.Args) + ")"
}

func (n *MethodCall) String() string {
	return n.Target.String() + "." + n.Name + "(" + joinArgs(n.Args) + ")"
}

func joinNodes(nodes []Node, sep string) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func joinArgs(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

// Helpers for building trees by hand, mostly used by tests and callers that
// construct queries programmatically.

// NewAnd returns a conjunction of the given nodes.
func NewAnd(children ...Node) *AndNode { return &AndNode{Children: children} }

// NewOr returns a disjunction of the given nodes.
func NewOr(children ...Node) *OrNode { return &OrNode{Children: children} }

// NewNot returns the negation of child.
func NewNot(child Node) *NotNode { return &NotNode{Child: child} }

// NewCompare returns `field op literal`.
func NewCompare(field string, op Operator, literal any) *CompareNode {
	return &CompareNode{Op: op, Left: &Identifier{Name: field}, Right: &LiteralNode{Value: literal}}
}

// NewFieldCompare returns `left op right` over two fields.
func NewFieldCompare(left string, op Operator, right string) *CompareNode {
	return &CompareNode{Op: op, Left: &Identifier{Name: left}, Right: &Identifier{Name: right}}
}

// NewMarker wraps source with the reserved assignment `(label = true)`.
func NewMarker(label string, source Node) *AndNode {
	return NewMarkerValue(label, true, source)
}

// NewMarkerValue wraps source with `(label = value)`.
func NewMarkerValue(label string, value bool, source Node) *AndNode {
	return &AndNode{Children: []Node{
		&Assignment{Name: label, Value: &LiteralNode{Value: value}},
		source,
	}}
}

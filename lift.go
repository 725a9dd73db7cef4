package tristate

import (
	"strings"
)

// VarPrefix is the identifier prefix lifted literals are replaced with.
const VarPrefix = "vars."

// liftNames are the variable names assigned to lifted literals, in order.
// Literals beyond the last name are left in place.
var liftNames = []string{
	"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m",
	"n", "o", "p", "q", "r", "s", "t", "u", "v", "w", "x", "y", "z",
}

// LiftedArgs holds the literals lifted out of an expression, eg. for
// `FOO == 'bar'` rewritten as `FOO == vars.a`, Get("a") returns "bar".
type LiftedArgs interface {
	Get(name string) (any, bool)
	Map() map[string]any
}

// liftLiterals replaces quoted string literals with variables, so that
// expressions which differ only in their literals share one parsed AST.
//
// Expressions containing escape sequences, raw or byte strings, or triple
// quotes are returned unchanged with nil args: their literal text is not the
// literal's value.
func liftLiterals(expr string) (string, LiftedArgs) {
	// TODO: Lift numeric literals out of expressions.
	if strings.ContainsRune(expr, '\\') || strings.Contains(expr, `'''`) || strings.Contains(expr, `"""`) {
		return expr, nil
	}

	l := lifter{
		expr: expr,
		args: offsetArgs{expr: expr, vars: map[string]argSpan{}},
	}
	lifted, ok := l.lift()
	if !ok {
		return expr, nil
	}
	return lifted, l.args
}

type lifter struct {
	expr string
	idx  int
	out  strings.Builder
	args offsetArgs
}

func (l *lifter) lift() (string, bool) {
	for l.idx < len(l.expr) {
		char := l.expr[l.idx]
		l.idx++

		if char != '"' && char != '\'' {
			l.out.WriteByte(char)
			continue
		}
		if l.prefixed() {
			return "", false
		}

		start := l.idx
		end := strings.IndexByte(l.expr[start:], char)
		if end < 0 {
			// Unterminated; leave it for the parser to report.
			return "", false
		}
		l.idx = start + end + 1
		l.add(argSpan{start, end}, char)
	}
	return l.out.String(), true
}

// prefixed reports whether the quote just consumed opens a raw or byte string.
func (l *lifter) prefixed() bool {
	if l.idx < 2 {
		return false
	}
	switch l.expr[l.idx-2] {
	case 'r', 'R', 'b', 'B':
		return l.idx < 3 || !isIdentByte(l.expr[l.idx-3])
	}
	return false
}

func (l *lifter) add(span argSpan, quote byte) {
	n := len(l.args.vars)
	if n >= len(liftNames) {
		l.out.WriteByte(quote)
		l.out.WriteString(span.get(l.expr))
		l.out.WriteByte(quote)
		return
	}
	name := liftNames[n]
	l.args.vars[name] = span
	l.out.WriteString(VarPrefix + name)
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '.' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// offsetArgs refers to lifted literals by their position in the original
// expression rather than copying them out.
type offsetArgs struct {
	expr string
	vars map[string]argSpan
}

func (o offsetArgs) Map() map[string]any {
	res := make(map[string]any, len(o.vars))
	for k, v := range o.vars {
		res[k] = v.get(o.expr)
	}
	return res
}

func (o offsetArgs) Get(key string) (any, bool) {
	span, ok := o.vars[key]
	if !ok {
		return nil, false
	}
	return span.get(o.expr), true
}

// argSpan is the offset and length of a literal within an expression.
type argSpan [2]int

func (a argSpan) get(expr string) string {
	return expr[a[0] : a[0]+a[1]]
}

package tristate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// FieldBinding maps a JSONPath in a record document to a field name.
type FieldBinding struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	// Grouped names each matched value NAME.<index>, so that values found
	// together can be correlated with valuesForGroups.
	Grouped bool `yaml:"grouped"`
}

// ParseFieldBinding parses `NAME=PATH`, or `NAME[]=PATH` for a grouped field.
func ParseFieldBinding(s string) (FieldBinding, error) {
	name, path, ok := strings.Cut(s, "=")
	if !ok || name == "" || path == "" {
		return FieldBinding{}, fmt.Errorf("invalid field binding %q: expected NAME=PATH", s)
	}
	b := FieldBinding{Name: name, Path: path}
	if trimmed, grouped := strings.CutSuffix(name, "[]"); grouped {
		b.Name, b.Grouped = trimmed, true
	}
	return b, nil
}

// Binder builds Contexts from decoded JSON documents.  A Binder is safe for
// concurrent use.
type Binder struct {
	bindings []compiledBinding
}

type compiledBinding struct {
	FieldBinding
	expr jp.Expr
}

// NewBinder compiles the paths of bindings.
func NewBinder(bindings []FieldBinding) (*Binder, error) {
	b := &Binder{bindings: make([]compiledBinding, len(bindings))}
	for i, fb := range bindings {
		x, err := jp.ParseString(fb.Path)
		if err != nil {
			return nil, fmt.Errorf("field %s: invalid path %q: %w", fb.Name, fb.Path, err)
		}
		b.bindings[i] = compiledBinding{FieldBinding: fb, expr: x}
	}
	return b, nil
}

// Bind builds the Context for one document.  Fields whose path matches
// nothing are left unbound, so they read as absent.
func (b *Binder) Bind(doc any) *Context {
	ctx := NewContext()
	for _, fb := range b.bindings {
		values := flattenValues(fb.expr.Get(doc))
		if len(values) == 0 {
			continue
		}
		tuples := make([]ValueTuple, 0, len(values))
		for i, v := range values {
			field := fb.Name
			if fb.Grouped {
				field = fb.Name + "." + strconv.Itoa(i)
			}
			tuples = append(tuples, documentTuple(field, v, i))
		}
		ctx.Bind(fb.Name, tuples...)
	}
	return ctx
}

// ContextFromDocument is a convenience for NewBinder followed by Bind.
func ContextFromDocument(doc any, bindings []FieldBinding) (*Context, error) {
	b, err := NewBinder(bindings)
	if err != nil {
		return nil, err
	}
	return b.Bind(doc), nil
}

// ParseDocument decodes a JSON document.
func ParseDocument(data []byte) (any, error) {
	return oj.Parse(data)
}

// flattenValues expands arrays so that a path selecting a list binds each of
// its elements.
func flattenValues(in []any) []any {
	var out []any
	for _, v := range in {
		if list, ok := v.([]any); ok {
			out = append(out, flattenValues(list)...)
			continue
		}
		if v == nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func documentTuple(field string, v any, offset int) ValueTuple {
	src := &Attribute{Offset: offset}
	if n, ok := toNumber(v); ok {
		return NewNumericTuple(field, "", n, src)
	}
	var display string
	switch val := v.(type) {
	case string:
		display = val
	case bool:
		display = strconv.FormatBool(val)
	default:
		display = oj.JSON(val)
	}
	return NewValueTuple(field, display, strings.ToLower(display), src)
}

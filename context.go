package tristate

import (
	"sort"
)

// Context binds field names to the values observed for one record, plus
// auxiliary payloads consumed by specific functions. A Context is built once
// per record immediately before evaluation and must not be modified while an
// evaluation is running.
type Context struct {
	fields map[string]*FunctionalSet
	aux    map[string]any
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{
		fields: map[string]*FunctionalSet{},
		aux:    map[string]any{},
	}
}

// Bind adds tuples to the named field, merging with any values already bound.
func (c *Context) Bind(field string, tuples ...ValueTuple) *Context {
	if existing, ok := c.fields[field]; ok && existing.Size() > 0 {
		tuples = append(existing.Tuples(), tuples...)
	}
	c.fields[field] = NewFunctionalSet(tuples...)
	return c
}

// BindValues binds native values to the named field using TupleOf.
func (c *Context) BindValues(field string, values ...any) *Context {
	tuples := make([]ValueTuple, len(values))
	for i, v := range values {
		tuples[i] = TupleOf(field, v)
	}
	return c.Bind(field, tuples...)
}

// BindSet binds a prebuilt set to the named field, replacing any prior binding.
func (c *Context) BindSet(field string, set *FunctionalSet) *Context {
	if set == nil {
		set = EmptySet()
	}
	c.fields[field] = set
	return c
}

// BindAuxiliary binds a non-field payload, eg. term offsets.
func (c *Context) BindAuxiliary(name string, payload any) *Context {
	c.aux[name] = payload
	return c
}

// Lookup returns the field's FunctionalSet, or Absent if the field is not
// bound.  Lookup never fails.
func (c *Context) Lookup(field string) Value {
	if c == nil {
		return Absent
	}
	if set, ok := c.fields[field]; ok {
		return set
	}
	return Absent
}

// LookupAuxiliary returns the named auxiliary binding, or Absent.
func (c *Context) LookupAuxiliary(name string) Value {
	if c == nil {
		return Absent
	}
	if payload, ok := c.aux[name]; ok {
		return Auxiliary{Name: name, Payload: payload}
	}
	return Absent
}

// Has reports whether the field is bound.
func (c *Context) Has(field string) bool {
	if c == nil {
		return false
	}
	_, ok := c.fields[field]
	return ok
}

// Fields returns the bound field names in sorted order.
func (c *Context) Fields() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.fields))
	for name := range c.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Intersect resolves a field-to-field equality.  It returns the tuples from
// both fields whose normalized values are shared, and false if either field is
// not bound.
func (c *Context) Intersect(left, right string) ([]ValueTuple, bool) {
	l, lok := c.Lookup(left).(*FunctionalSet)
	r, rok := c.Lookup(right).(*FunctionalSet)
	if !lok || !rok {
		return nil, false
	}
	return l.Intersect(r), true
}

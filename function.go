package tristate

import (
	"fmt"
	"sort"
	"sync"
)

// Namespaces observed upstream.  The set is extensible through Register.
const (
	NamespaceContent  = "content"
	NamespaceFilter   = "filter"
	NamespaceGrouping = "grouping"
)

// Call carries the arguments of one function invocation.  Field arguments are
// passed as their FunctionalSet (or Absent), never reduced to booleans, so
// functions can inspect every value and its provenance.
type Call struct {
	Namespace string
	Name      string
	Args      []Value
	// Context is the record being evaluated.  Functions must treat it as
	// read-only.
	Context *Context
}

// Function is an externally supplied capability.  It may return a
// *FunctionalSet (a hit set, which is TRUE when non-empty), a Collection, or a
// Literal.  Returned errors and panics are surfaced as *InvocationError.
type Function func(call Call) (Value, error)

// Registry resolves (namespace, name) pairs to functions.  A Registry is
// typically populated once at startup and then shared read-only across
// evaluations.
type Registry struct {
	lock sync.RWMutex
	fns  map[string]map[string]Function
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{fns: map[string]map[string]Function{}}
}

// Register adds fn as namespace:name, replacing any previous registration.
func (r *Registry) Register(namespace, name string, fn Function) *Registry {
	r.lock.Lock()
	defer r.lock.Unlock()

	ns, ok := r.fns[namespace]
	if !ok {
		ns = map[string]Function{}
		r.fns[namespace] = ns
	}
	ns[name] = fn
	return r
}

// Namespaces returns the registered namespaces, sorted.
func (r *Registry) Namespaces() []string {
	if r == nil {
		return nil
	}
	r.lock.RLock()
	defer r.lock.RUnlock()

	names := make([]string, 0, len(r.fns))
	for ns := range r.fns {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the function registered as namespace:name.
func (r *Registry) Lookup(namespace, name string) (Function, error) {
	if r == nil {
		return nil, fmt.Errorf("unknown namespace %q", namespace)
	}
	r.lock.RLock()
	defer r.lock.RUnlock()

	ns, ok := r.fns[namespace]
	if !ok {
		return nil, fmt.Errorf("unknown namespace %q", namespace)
	}
	fn, ok := ns[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	return fn, nil
}

// Invoke calls namespace:name with args.  Every failure, including unknown
// names and panics raised by the function, is returned as an *InvocationError.
func (r *Registry) Invoke(ctx *Context, namespace, name string, args []Value) (result Value, err error) {
	fn, err := r.Lookup(namespace, name)
	if err != nil {
		return nil, &InvocationError{Namespace: namespace, Name: name, Err: err}
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = &InvocationError{Namespace: namespace, Name: name, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	result, err = fn(Call{Namespace: namespace, Name: name, Args: args, Context: ctx})
	if err != nil {
		return nil, &InvocationError{Namespace: namespace, Name: name, Err: err}
	}
	if result == nil {
		result = Absent
	}
	return result, nil
}

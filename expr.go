// Package tristate evaluates boolean predicate trees against per-record field
// bindings using three-valued logic: TRUE, FALSE, and INDETERMINATE.
//
// INDETERMINATE arises for fields configured as incomplete, whose stored values
// cannot conclusively answer truth-valued predicates.  A root policy then maps
// the outcome to a match, flagging matches that relied on INDETERMINATE as
// provisional.
package tristate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inngest/tristate/internal/logging"
)

// Evaluable is anything holding predicate text.
type Evaluable interface {
	// Expression returns an expression as a raw string.
	Expression() string
}

// Expression is predicate text.
type Expression string

func (e Expression) Expression() string { return string(e) }

// Engine wires a parser, an interpreter, and a record binder from one Config.
// It is safe for concurrent use.
type Engine struct {
	cfg     Config
	parser  TreeParser
	cache   *CachingParser
	interp  *Interpreter
	binder  *Binder
	metrics *Metrics
	log     *slog.Logger
}

// EngineOptions are the collaborators of an Engine that do not come from a
// Config.
type EngineOptions struct {
	Registry *Registry
	Metrics  *Metrics
	Logger   *slog.Logger
}

// NewEngine validates cfg and builds an Engine.  Namespaces registered in the
// registry are parsed as function namespaces in addition to cfg.Namespaces.
func NewEngine(cfg Config, opts EngineOptions) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	env, err := NewEnv()
	if err != nil {
		return nil, fmt.Errorf("creating cel env: %w", err)
	}

	binder, err := NewBinder(cfg.Fields)
	if err != nil {
		return nil, err
	}

	iopts, err := cfg.InterpreterOptions(opts.Registry, opts.Metrics)
	if err != nil {
		return nil, err
	}
	interp, err := NewInterpreter(iopts)
	if err != nil {
		iopts.Patterns.Stop()
		return nil, err
	}

	namespaces := append(append([]string{}, cfg.Namespaces...), opts.Registry.Namespaces()...)
	cp := NewCachingParser(env, nil, opts.Metrics)

	log := logging.Default(opts.Logger).With("component", "engine")
	log.Debug("engine created",
		"coercion", interp.Coercion().String(),
		"incomplete_fields", cfg.IncompleteFields,
		"namespaces", namespaces,
	)

	return &Engine{
		cfg:     cfg,
		parser:  NewTreeParser(cp, namespaces...),
		cache:   cp,
		interp:  interp,
		binder:  binder,
		metrics: opts.Metrics,
		log:     log,
	}, nil
}

// Interpreter returns the engine's interpreter.
func (e *Engine) Interpreter() *Interpreter { return e.interp }

// Binder returns the binder built from the config's fields.
func (e *Engine) Binder() *Binder { return e.binder }

// Parse parses an expression into a tree.
func (e *Engine) Parse(ctx context.Context, eval Evaluable) (Node, error) {
	return e.parser.Parse(ctx, eval.Expression())
}

// Evaluate parses eval and evaluates it against one record.
func (e *Engine) Evaluate(ctx context.Context, eval Evaluable, rec *Context) (Result, error) {
	root, err := e.Parse(ctx, eval)
	if err != nil {
		return Result{}, err
	}
	return e.interp.Evaluate(root, rec)
}

// Scan parses eval and evaluates it against every record.
func (e *Engine) Scan(ctx context.Context, eval Evaluable, records []Record) ([]RecordResult, ScanStats, error) {
	root, err := e.Parse(ctx, eval)
	if err != nil {
		return nil, ScanStats{}, err
	}
	s := NewScanner(e.interp, ScannerOptions{
		Workers: e.cfg.Scan.Workers,
		Logger:  e.log,
		Metrics: e.metrics,
	})
	return s.Scan(ctx, root, records)
}

// Close releases the engine's caches.
func (e *Engine) Close() {
	e.cache.Stop()
	e.interp.patterns.Stop()
}

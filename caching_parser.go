package tristate

import (
	"sync/atomic"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/karlseguin/ccache/v2"
)

const (
	DefaultParserCacheSize = 1_000
	DefaultParserCacheTTL  = time.Hour
)

// NewCachingParser returns a CELParser which lifts quoted literals out of the
// expression as variables and caches the parsed AST of the lifted text, so
// that expressions differing only in literals are parsed once.
//
// A nil cache creates one holding DefaultParserCacheSize expressions.
func NewCachingParser(env *cel.Env, cache *ccache.Cache, metrics *Metrics) *CachingParser {
	if cache == nil {
		cache = ccache.New(ccache.Configure().MaxSize(DefaultParserCacheSize))
	}
	return &CachingParser{
		env:     env,
		cache:   cache,
		metrics: metrics,
	}
}

// CachingParser is a CELParser backed by a bounded cache.  It is safe for
// concurrent use.
type CachingParser struct {
	// cache holds ParsedCelExpr values keyed by lifted expression text.
	cache   *ccache.Cache
	env     *cel.Env
	metrics *Metrics

	hits   int64
	misses int64
}

func (c *CachingParser) Parse(expr string) (*cel.Ast, *cel.Issues, LiftedArgs) {
	expr, vars := liftLiterals(expr)

	if item := c.cache.Get(expr); item != nil && !item.Expired() {
		if p, ok := item.Value().(ParsedCelExpr); ok {
			atomic.AddInt64(&c.hits, 1)
			c.metrics.parserLookup(true)
			return p.AST, p.Issues, vars
		}
	}

	ast, issues := c.env.Parse(expr)
	c.cache.Set(expr, ParsedCelExpr{
		Expr:   expr,
		AST:    ast,
		Issues: issues,
	}, DefaultParserCacheTTL)

	atomic.AddInt64(&c.misses, 1)
	c.metrics.parserLookup(false)
	return ast, issues, vars
}

func (c *CachingParser) Hits() int64 {
	return atomic.LoadInt64(&c.hits)
}

func (c *CachingParser) Misses() int64 {
	return atomic.LoadInt64(&c.misses)
}

// Stop releases the cache's background worker.
func (c *CachingParser) Stop() {
	c.cache.Stop()
}

// ParsedCelExpr is a cached parse result.
type ParsedCelExpr struct {
	Expr   string
	AST    *cel.Ast
	Issues *cel.Issues
}

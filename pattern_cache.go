package tristate

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dlclark/regexp2"
	"github.com/karlseguin/ccache/v2"
)

const (
	DefaultPatternCacheSize = 10_000
	DefaultPatternCacheTTL  = 10 * time.Minute

	// PatternOptions are the options every regex leaf compiles with:
	// case-insensitive, with `.` matching newlines.
	PatternOptions = regexp2.IgnoreCase | regexp2.Singleline
)

// PatternCacheOptions configures a PatternCache.
type PatternCacheOptions struct {
	// MaxSize bounds the number of compiled patterns held.
	MaxSize int64
	// TTL is how long a compiled pattern is kept after insertion.
	TTL time.Duration
	// Metrics, if set, records hits and misses.
	Metrics *Metrics
}

// PatternCache is a bounded, TTL-evicting cache of compiled regular
// expressions, shared by every evaluation of a query.  It is safe for
// concurrent use.
type PatternCache struct {
	cache   *ccache.Cache
	ttl     time.Duration
	metrics *Metrics

	hits   int64
	misses int64
}

type cachedPattern struct {
	pattern string
	re      *regexp2.Regexp
}

// NewPatternCache returns a new cache.  Zero options select the defaults.
func NewPatternCache(opts PatternCacheOptions) *PatternCache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultPatternCacheSize
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultPatternCacheTTL
	}
	prune := uint32(opts.MaxSize / 10)
	if prune == 0 {
		prune = 1
	}
	return &PatternCache{
		cache:   ccache.New(ccache.Configure().MaxSize(opts.MaxSize).ItemsToPrune(prune)),
		ttl:     opts.TTL,
		metrics: opts.Metrics,
	}
}

// Compile returns the compiled form of pattern, anchored so that the whole
// value must match.
func (p *PatternCache) Compile(pattern string) (*regexp2.Regexp, error) {
	// Every pattern is keyed by its hash.  The stored pattern is compared on
	// each hit so that collisions recompile instead of matching the wrong regex.
	key := strconv.FormatUint(xxhash.Sum64String(pattern), 36)

	if item := p.cache.Get(key); item != nil && !item.Expired() {
		if cached, ok := item.Value().(cachedPattern); ok && cached.pattern == pattern {
			atomic.AddInt64(&p.hits, 1)
			p.metrics.patternHit()
			return cached.re, nil
		}
	}

	atomic.AddInt64(&p.misses, 1)
	p.metrics.patternMiss()

	re, err := regexp2.Compile(`\A(?:`+pattern+`)\z`, PatternOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}
	p.cache.Set(key, cachedPattern{pattern: pattern, re: re}, p.ttl)
	return re, nil
}

// MatchTuple reports whether the display or normalized form of t fully matches
// re.
func MatchTuple(re *regexp2.Regexp, t ValueTuple) (bool, error) {
	ok, err := re.MatchString(t.display)
	if err != nil || ok {
		return ok, err
	}
	if t.normalized == t.display {
		return false, nil
	}
	return re.MatchString(t.normalized)
}

// Len returns the number of compiled patterns currently held.  Eviction runs
// in the background, so Len may briefly exceed MaxSize after a burst of misses.
func (p *PatternCache) Len() int {
	return p.cache.ItemCount()
}

func (p *PatternCache) Hits() int64 {
	return atomic.LoadInt64(&p.hits)
}

func (p *PatternCache) Misses() int64 {
	return atomic.LoadInt64(&p.misses)
}

// Stop releases the cache's background worker.
func (p *PatternCache) Stop() {
	p.cache.Stop()
}

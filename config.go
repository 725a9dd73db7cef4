package tristate

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file configuration of an evaluator.
//
//	incomplete_fields: [FIELD_A]
//	coercion: lenient
//	pattern_cache:
//	  max_size: 10000
//	  ttl: 10m
//	scan:
//	  workers: 8
//	namespaces: [content, filter, grouping]
//	fields:
//	  - name: FOO
//	    path: $.foo[*]
type Config struct {
	// IncompleteFields are fields that cannot conclusively answer truth-valued
	// predicates.
	IncompleteFields []string `yaml:"incomplete_fields"`
	// Coercion is "strict", "lenient", or empty for the default.
	Coercion string `yaml:"coercion"`

	PatternCache PatternCacheConfig `yaml:"pattern_cache"`
	Scan         ScanConfig         `yaml:"scan"`

	// Namespaces are the receivers parsed as function namespaces.
	Namespaces []string `yaml:"namespaces"`
	// Fields bind record document paths to field names.
	Fields []FieldBinding `yaml:"fields"`
}

// PatternCacheConfig configures the compiled pattern cache.
type PatternCacheConfig struct {
	MaxSize int64         `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
}

// ScanConfig configures multi-record scans.
type ScanConfig struct {
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		PatternCache: PatternCacheConfig{
			MaxSize: DefaultPatternCacheSize,
			TTL:     DefaultPatternCacheTTL,
		},
		Scan: ScanConfig{
			Workers: DefaultScanWorkers,
		},
		Namespaces: []string{NamespaceContent, NamespaceFilter, NamespaceGrouping},
	}
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses the config file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(data)
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	coercion, err := ParseCoercion(c.Coercion)
	if err != nil {
		return err
	}
	if _, err := coercion.resolve(len(c.IncompleteFields)); err != nil {
		return err
	}
	if c.PatternCache.MaxSize < 0 {
		return errors.New("pattern_cache.max_size must not be negative")
	}
	if c.PatternCache.TTL < 0 {
		return errors.New("pattern_cache.ttl must not be negative")
	}
	if c.Scan.Workers < 0 {
		return errors.New("scan.workers must not be negative")
	}
	for i, f := range c.Fields {
		if f.Name == "" || f.Path == "" {
			return fmt.Errorf("fields[%d]: name and path are required", i)
		}
	}
	return nil
}

// InterpreterOptions returns Options for NewInterpreter.  The pattern cache
// is built from the config; the registry is supplied by the caller.
func (c Config) InterpreterOptions(registry *Registry, metrics *Metrics) (Options, error) {
	coercion, err := ParseCoercion(c.Coercion)
	if err != nil {
		return Options{}, err
	}
	return Options{
		IncompleteFields: c.IncompleteFields,
		Coercion:         coercion,
		Registry:         registry,
		Patterns: NewPatternCache(PatternCacheOptions{
			MaxSize: c.PatternCache.MaxSize,
			TTL:     c.PatternCache.TTL,
			Metrics: metrics,
		}),
	}, nil
}

package tristate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	recordMatched     = "matched"
	recordProvisional = "provisional"
	recordNotMatched  = "not_matched"
	recordError       = "error"
)

// Metrics are the Prometheus collectors for evaluation.  A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Records        *prometheus.CounterVec
	PatternLookups *prometheus.CounterVec
	ParserLookups  *prometheus.CounterVec
	ScanDuration   prometheus.Histogram
}

// NewMetrics registers the collectors with reg.  A nil reg creates
// unregistered collectors, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tristate",
			Name:      "records_evaluated_total",
			Help:      "Records evaluated, by outcome.",
		}, []string{"outcome"}),
		PatternLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tristate",
			Name:      "pattern_cache_lookups_total",
			Help:      "Compiled pattern cache lookups, by result.",
		}, []string{"result"}),
		ParserLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tristate",
			Name:      "parser_cache_lookups_total",
			Help:      "Parsed expression cache lookups, by result.",
		}, []string{"result"}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tristate",
			Name:      "scan_duration_seconds",
			Help:      "Duration of multi-record scans.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) record(label string) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues(label).Inc()
}

func (m *Metrics) patternHit() {
	if m == nil {
		return
	}
	m.PatternLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) patternMiss() {
	if m == nil {
		return
	}
	m.PatternLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) parserLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.ParserLookups.WithLabelValues("hit").Inc()
		return
	}
	m.ParserLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) observeScan(seconds float64) {
	if m == nil {
		return
	}
	m.ScanDuration.Observe(seconds)
}

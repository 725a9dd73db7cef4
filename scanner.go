package tristate

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/inngest/tristate/internal/logging"
	"github.com/sourcegraph/conc/pool"
)

// DefaultScanWorkers is used when no worker count is configured.
var DefaultScanWorkers = runtime.GOMAXPROCS(0)

// Record is one candidate record with its pre-materialized bindings.
type Record struct {
	ID      string
	Context *Context
}

// RecordResult is the result of evaluating one record.  Err is set when the
// record was skipped.
type RecordResult struct {
	ID     string
	Result Result
	Err    error
}

// ScanStats summarizes a scan.
type ScanStats struct {
	ID          uuid.UUID
	Records     int
	Matched     int
	Provisional int
	Failed      int
	Duration    time.Duration
}

// ScannerOptions configures a Scanner.
type ScannerOptions struct {
	Workers int
	Logger  *slog.Logger
	Metrics *Metrics
}

// Scanner evaluates one tree against many records concurrently.
type Scanner struct {
	interp  *Interpreter
	workers int
	log     *slog.Logger
	metrics *Metrics
}

// NewScanner returns a Scanner sharing interp across its workers.
func NewScanner(interp *Interpreter, opts ScannerOptions) *Scanner {
	if opts.Workers <= 0 {
		opts.Workers = DefaultScanWorkers
	}
	return &Scanner{
		interp:  interp,
		workers: opts.Workers,
		log:     logging.Default(opts.Logger).With("component", "scanner"),
		metrics: opts.Metrics,
	}
}

// Scan evaluates root against every record.  Results are returned in input
// order.  A record whose evaluation fails is logged and skipped, with the error
// in its RecordResult; it never stops the scan.
//
// Cancelling ctx stops evaluating records that have not yet started; Scan then
// returns the partial results together with ctx's error.
func (s *Scanner) Scan(ctx context.Context, root Node, records []Record) ([]RecordResult, ScanStats, error) {
	stats := ScanStats{ID: uuid.New(), Records: len(records)}
	log := s.log.With("scan_id", stats.ID.String())
	log.Info("scan started", "records", len(records), "workers", s.workers, "query", root.String())

	start := time.Now()
	results := make([]RecordResult, len(records))

	p := pool.New().WithMaxGoroutines(s.workers)
	for i, rec := range records {
		if ctx.Err() != nil {
			results[i] = RecordResult{ID: rec.ID, Err: ctx.Err()}
			continue
		}
		p.Go(func() {
			if err := ctx.Err(); err != nil {
				results[i] = RecordResult{ID: rec.ID, Err: err}
				return
			}
			res, err := s.interp.Evaluate(root, rec.Context)
			results[i] = RecordResult{ID: rec.ID, Result: res, Err: err}
		})
	}
	p.Wait()

	for _, r := range results {
		switch {
		case r.Err != nil:
			if errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded) {
				continue
			}
			stats.Failed++
			s.metrics.record(recordError)
			log.Warn("skipping record", "id", r.ID, "error", r.Err)
		case r.Result.Provisional:
			stats.Matched++
			stats.Provisional++
			s.metrics.record(recordProvisional)
		case r.Result.Matched:
			stats.Matched++
			s.metrics.record(recordMatched)
		default:
			s.metrics.record(recordNotMatched)
		}
	}

	stats.Duration = time.Since(start)
	s.metrics.observeScan(stats.Duration.Seconds())
	log.Info("scan finished",
		"matched", stats.Matched,
		"provisional", stats.Provisional,
		"failed", stats.Failed,
		"duration", stats.Duration,
	)
	return results, stats, ctx.Err()
}

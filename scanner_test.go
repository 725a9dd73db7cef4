package tristate

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestScanner(t *testing.T) {
	reg := testRegistry()
	i := newInterpreter(t, Options{IncompleteFields: []string{"FIELD_A"}, Registry: reg})
	tree := NewOr(NewCompare("FOO", OpEquals, "bar"), NewCompare("FIELD_A", OpEquals, "x"))

	records := []Record{
		{ID: "match", Context: NewContext().BindValues("FOO", "bar")},
		{ID: "provisional", Context: NewContext().BindValues("FIELD_A", "y")},
		{ID: "miss", Context: NewContext().BindValues("FOO", "baz")},
		{ID: "empty", Context: NewContext()},
	}

	t.Run("It evaluates every record in order", func(t *testing.T) {
		metrics := NewMetrics(prometheus.NewRegistry())
		s := NewScanner(i, ScannerOptions{Workers: 2, Metrics: metrics})

		results, stats, err := s.Scan(context.Background(), tree, records)
		require.NoError(t, err)
		require.Len(t, results, len(records))
		for n, r := range results {
			require.Equal(t, records[n].ID, r.ID)
			require.NoError(t, r.Err)
		}

		require.True(t, results[0].Result.Matched)
		require.False(t, results[0].Result.Provisional)
		require.True(t, results[1].Result.Provisional)
		require.False(t, results[2].Result.Matched)
		require.False(t, results[3].Result.Matched)

		require.NotEqual(t, uuid.Nil, stats.ID)
		require.Equal(t, 4, stats.Records)
		require.Equal(t, 2, stats.Matched)
		require.Equal(t, 1, stats.Provisional)
		require.Equal(t, 0, stats.Failed)

		require.EqualValues(t, 1, testutil.ToFloat64(metrics.Records.WithLabelValues(recordMatched)))
		require.EqualValues(t, 1, testutil.ToFloat64(metrics.Records.WithLabelValues(recordProvisional)))
		require.EqualValues(t, 2, testutil.ToFloat64(metrics.Records.WithLabelValues(recordNotMatched)))
		require.EqualValues(t, 1, testutil.CollectAndCount(metrics.ScanDuration))
	})

	t.Run("It skips records that fail", func(t *testing.T) {
		failing := NewOr(
			NewCompare("FOO", OpEquals, "bar"),
			&FunctionCall{Namespace: NamespaceFilter, Name: "includeText", Args: []Node{ident("FOO"), lit("bar")}},
			&FunctionCall{Namespace: NamespaceFilter, Name: "broken"},
		)
		s := NewScanner(i, ScannerOptions{})

		results, stats, err := s.Scan(context.Background(), failing, records)
		require.NoError(t, err)
		require.Equal(t, len(records), stats.Failed)
		for _, r := range results {
			require.ErrorIs(t, r.Err, ErrFunctionInvocation)
		}
	})

	t.Run("It stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		many := make([]Record, 100)
		for n := range many {
			many[n] = Record{ID: fmt.Sprintf("r%d", n), Context: NewContext()}
		}

		results, stats, err := NewScanner(i, ScannerOptions{Workers: 1}).Scan(ctx, tree, many)
		require.ErrorIs(t, err, context.Canceled)
		require.Len(t, results, len(many))
		require.Equal(t, 0, stats.Failed)
		for _, r := range results {
			require.ErrorIs(t, r.Err, context.Canceled)
		}
	})

	t.Run("It handles no records", func(t *testing.T) {
		results, stats, err := NewScanner(i, ScannerOptions{}).Scan(context.Background(), tree, nil)
		require.NoError(t, err)
		require.Empty(t, results)
		require.Equal(t, 0, stats.Records)
	})
}

package tristate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyMarker(t *testing.T) {
	source := NewCompare("FOO", OpEquals, "bar")

	t.Run("It ignores conjunctions without an assignment", func(t *testing.T) {
		_, ok, err := ClassifyMarker(NewAnd(source, source))
		require.NoError(t, err)
		require.False(t, ok)

		_, ok, err = ClassifyMarker(nil)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("It recognizes every label", func(t *testing.T) {
		for _, kind := range []MarkerKind{BoundedRange, Delayed, ValuePlaceholder, Dropped, Eval} {
			m, ok, err := ClassifyMarker(NewMarker(kind.Label(), source))
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, kind, m.Kind)
			require.Equal(t, kind.Label(), m.Label)
			require.True(t, m.Value)
			require.Equal(t, source, m.Source)
		}
	})

	t.Run("It keeps the remaining conjuncts as the source", func(t *testing.T) {
		other := NewCompare("ZEE", OpEquals, "x")
		n := &AndNode{Children: []Node{source, &Assignment{Name: LabelEval, Value: lit(true)}, other}}
		m, ok, err := ClassifyMarker(n)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, Eval, m.Kind)
		require.Equal(t, NewAnd(source, other), m.Source)
	})

	t.Run("It reads the assigned value", func(t *testing.T) {
		m, ok, err := ClassifyMarker(NewMarkerValue(LabelValue, false, source))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, ValuePlaceholder, m.Kind)
		require.False(t, m.Value)
	})

	t.Run("It reports unknown labels and values", func(t *testing.T) {
		_, ok, err := ClassifyMarker(NewMarker("_Hole_", source))
		require.True(t, ok)
		require.ErrorIs(t, err, ErrUnrecognizedMarker)

		n := &AndNode{Children: []Node{&Assignment{Name: LabelDrop, Value: lit("yes")}, source}}
		_, ok, err = ClassifyMarker(n)
		require.True(t, ok)
		require.ErrorIs(t, err, ErrUnrecognizedMarker)

		n = &AndNode{Children: []Node{&Assignment{Name: LabelDrop, Value: ident("FOO")}, source}}
		_, _, err = ClassifyMarker(n)
		require.ErrorIs(t, err, ErrUnrecognizedMarker)
	})

	t.Run("It recognizes reserved names", func(t *testing.T) {
		require.True(t, IsReservedName("_Bounded_"))
		require.True(t, IsReservedName("_Hole_"))
		require.False(t, IsReservedName("__"))
		require.False(t, IsReservedName("_FOO"))
		require.False(t, IsReservedName("FOO"))
	})
}

func TestRangeOf(t *testing.T) {
	t.Run("It reads both bounds", func(t *testing.T) {
		r, ok := RangeOf(NewAnd(NewCompare("S", OpGreaterEquals, 1.2), NewCompare("S", OpLess, 1.5)))
		require.True(t, ok)
		require.Equal(t, Range{Field: "S", Lower: 1.2, LowerInclusive: true, Upper: 1.5}, r)
		require.True(t, r.Numeric())
		require.Equal(t, "S in [1.2, 1.5)", r.String())
	})

	t.Run("It reads bounds in either order and orientation", func(t *testing.T) {
		upper := &CompareNode{Op: OpGreaterEquals, Left: lit(int64(10)), Right: ident("S")}
		lower := NewCompare("S", OpGreater, int64(1))
		r, ok := RangeOf(NewAnd(upper, lower))
		require.True(t, ok)
		require.Equal(t, Range{Field: "S", Lower: int64(1), Upper: int64(10), UpperInclusive: true}, r)
	})

	t.Run("It rejects malformed ranges", func(t *testing.T) {
		tests := []struct {
			name string
			node Node
		}{
			{"single comparison", NewCompare("S", OpGreater, 1)},
			{"two lower bounds", NewAnd(NewCompare("S", OpGreater, 1), NewCompare("S", OpGreater, 2))},
			{"different fields", NewAnd(NewCompare("S", OpGreater, 1), NewCompare("T", OpLess, 2))},
			{"equality", NewAnd(NewCompare("S", OpGreater, 1), NewCompare("S", OpEquals, 2))},
			{"three comparisons", NewAnd(NewCompare("S", OpGreater, 1), NewCompare("S", OpLess, 2), NewCompare("S", OpLess, 3))},
			{"field to field", NewAnd(NewFieldCompare("S", OpGreater, "T"), NewCompare("S", OpLess, 2))},
		}
		for _, test := range tests {
			_, ok := RangeOf(test.node)
			require.False(t, ok, test.name)
		}
	})
}

func TestRange_Contains(t *testing.T) {
	t.Run("It honors inclusive and exclusive numeric bounds", func(t *testing.T) {
		r := Range{Field: "S", Lower: 1, LowerInclusive: true, Upper: 2}
		require.True(t, r.Contains(TupleOf("S", 1)))
		require.True(t, r.Contains(TupleOf("S", 1.5)))
		require.False(t, r.Contains(TupleOf("S", 2)))
		require.False(t, r.Contains(TupleOf("S", 0.5)))
	})

	t.Run("It reads numeric text in numeric ranges", func(t *testing.T) {
		r := Range{Field: "S", Lower: 1, Upper: 20, UpperInclusive: true}
		require.True(t, r.Contains(TupleOf("S", "9")))
		require.False(t, r.Contains(TupleOf("S", "abc")))
	})

	t.Run("It compares text ranges on the normalized form", func(t *testing.T) {
		r := Range{Field: "S", Lower: "b", LowerInclusive: true, Upper: "d"}
		require.True(t, r.Contains(TupleOf("S", "Banana")))
		require.True(t, r.Contains(TupleOf("S", "cherry")))
		require.False(t, r.Contains(TupleOf("S", "apple")))
		require.False(t, r.Contains(TupleOf("S", "d")))
	})
}

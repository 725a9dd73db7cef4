package tristate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Attribute is the provenance of a value as it was read from the store.  It is
// opaque to the interpreter and passed through to functions that need it.
type Attribute struct {
	// Visibility is the security marking of the originating entry.
	Visibility string
	// Timestamp is the time the originating entry was written.
	Timestamp time.Time
	// Offset is the position of the value within its source, when known.
	Offset int
}

// ValueTuple is one observed occurrence of a field within a record.  Tuples are
// immutable once constructed.
type ValueTuple struct {
	field      string
	display    string
	normalized string

	num     float64
	numeric bool

	source *Attribute
}

// NewValueTuple creates a textual tuple.
func NewValueTuple(field, display, normalized string, source *Attribute) ValueTuple {
	return ValueTuple{
		field:      field,
		display:    display,
		normalized: normalized,
		source:     source,
	}
}

// NewNumericTuple creates a tuple whose values are ordered numerically.  The
// normalized form is the shortest decimal representation of n.
func NewNumericTuple(field, display string, n float64, source *Attribute) ValueTuple {
	if display == "" {
		display = formatNumber(n)
	}
	return ValueTuple{
		field:      field,
		display:    display,
		normalized: formatNumber(n),
		num:        n,
		numeric:    true,
		source:     source,
	}
}

// TupleOf builds a tuple from a native Go value, choosing numeric ordering for
// integers and floats.
func TupleOf(field string, v any) ValueTuple {
	if n, ok := toNumber(v); ok {
		return NewNumericTuple(field, "", n, nil)
	}
	str := fmt.Sprintf("%v", v)
	return NewValueTuple(field, str, strings.ToLower(str), nil)
}

// Field returns the field name, including any grouping context (eg. "AGE.0").
func (v ValueTuple) Field() string { return v.field }

// Display returns the value as it should be shown to users.
func (v ValueTuple) Display() string { return v.display }

// Normalized returns the comparable form of the value.
func (v ValueTuple) Normalized() string { return v.normalized }

// Numeric returns the numeric form of the value, if the tuple is numeric.
func (v ValueTuple) Numeric() (float64, bool) { return v.num, v.numeric }

// Source returns the originating attribute, which may be nil.
func (v ValueTuple) Source() *Attribute { return v.source }

// BaseField returns the field name without any grouping context.
func (v ValueTuple) BaseField() string {
	if idx := strings.IndexByte(v.field, '.'); idx > 0 {
		return v.field[:idx]
	}
	return v.field
}

// Group returns the grouping context of the field name, ie. everything after
// the first period, or an empty string for ungrouped fields.
func (v ValueTuple) Group() string {
	if idx := strings.IndexByte(v.field, '.'); idx > 0 {
		return v.field[idx+1:]
	}
	return ""
}

func (v ValueTuple) String() string {
	return v.field + ":" + v.display
}

// compareTuples orders tuples by value: numeric values sort before text,
// numbers compare numerically, text by its normalized form.  Numeric ties are
// broken on the normalized form.  Tuples comparing equal are the same member.
func compareTuples(a, b ValueTuple) int {
	switch {
	case a.numeric && b.numeric:
		if c := compareFloat(a.num, b.num); c != 0 {
			return c
		}
	case a.numeric:
		return -1
	case b.numeric:
		return 1
	}
	return strings.Compare(a.normalized, b.normalized)
}

// compareInstances orders tuples by value and then by field instance, so that
// equal values seen under AGE.0 and AGE.1 stay apart.
func compareInstances(a, b ValueTuple) int {
	if c := compareTuples(a, b); c != 0 {
		return c
	}
	return strings.Compare(a.field, b.field)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// toNumber converts native numeric types to float64.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// parseNumber reads a numeric value stored as text.
func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

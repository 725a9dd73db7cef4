package tristate

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/tidwall/btree"
)

// FunctionalSet is the deduplicated collection of values observed for a single
// field within a single record.
//
// Tuples are stored in a B-tree under a type-aware order (see compareTuples), so
// min, max, and threshold subsets never need to sort.  Membership is answered by
// an index of xxhash'd normalized and display forms; the hash keeps memory
// predictable for long values, and buckets are re-checked against the real
// string so collisions cannot produce false matches.
//
// Two tuples are the same member when their normalized values are equal; the
// first one added wins.  Grouped instances (AGE.0, AGE.1) are kept separately
// so that group-correlated lookups still see every instance.
//
// A FunctionalSet is immutable once constructed and safe for concurrent reads.
type FunctionalSet struct {
	tree  *btree.BTreeG[ValueTuple]
	index map[uint64][]ValueTuple

	// grouped holds every grouped instance, or nil when there are none.
	grouped *btree.BTreeG[ValueTuple]
}

var emptySet = NewFunctionalSet()

// EmptySet returns the shared empty set.
func EmptySet() *FunctionalSet {
	return emptySet
}

// NewFunctionalSet builds a set from the given tuples, dropping duplicates.
func NewFunctionalSet(tuples ...ValueTuple) *FunctionalSet {
	tree := btree.NewBTreeGOptions(lessTuple, btree.Options{NoLocks: true})
	var grouped *btree.BTreeG[ValueTuple]
	for _, t := range tuples {
		if _, ok := tree.Get(t); !ok {
			tree.Set(t)
		}
		if t.Group() == "" {
			continue
		}
		if grouped == nil {
			grouped = btree.NewBTreeGOptions(lessInstance, btree.Options{NoLocks: true})
		}
		grouped.Set(t)
	}

	fs := &FunctionalSet{
		tree:    tree,
		index:   make(map[uint64][]ValueTuple, tree.Len()),
		grouped: grouped,
	}
	tree.Scan(func(t ValueTuple) bool {
		fs.addIndex(t.normalized, t)
		if t.display != t.normalized {
			fs.addIndex(t.display, t)
		}
		return true
	})
	return fs
}

// SetOf is a convenience constructor building tuples from native values for a
// single field.
func SetOf(field string, values ...any) *FunctionalSet {
	tuples := make([]ValueTuple, len(values))
	for i, v := range values {
		tuples[i] = TupleOf(field, v)
	}
	return NewFunctionalSet(tuples...)
}

func lessTuple(a, b ValueTuple) bool {
	return compareTuples(a, b) < 0
}

func lessInstance(a, b ValueTuple) bool {
	return compareInstances(a, b) < 0
}

func (f *FunctionalSet) addIndex(key string, t ValueTuple) {
	h := xxhash.Sum64String(key)
	f.index[h] = append(f.index[h], t)
}

// Size returns the number of distinct members.
func (f *FunctionalSet) Size() int {
	if f == nil {
		return 0
	}
	return f.tree.Len()
}

// Tuples returns the members in ascending order.
func (f *FunctionalSet) Tuples() []ValueTuple {
	if f == nil || f.tree.Len() == 0 {
		return nil
	}
	return f.tree.Items()
}

// Min returns the smallest member.  ok is false for an empty set.
func (f *FunctionalSet) Min() (ValueTuple, bool) {
	if f == nil {
		return ValueTuple{}, false
	}
	return f.tree.Min()
}

// Max returns the largest member.  ok is false for an empty set.
func (f *FunctionalSet) Max() (ValueTuple, bool) {
	if f == nil {
		return ValueTuple{}, false
	}
	return f.tree.Max()
}

// Contains reports whether any member equals v.  Strings match a member's
// normalized or display form; numbers match numerically, or against the
// normalized form of textual members.
func (f *FunctionalSet) Contains(v any) bool {
	return len(f.Matching(v)) > 0
}

// Matching returns the members that equal v, using the same rules as Contains.
func (f *FunctionalSet) Matching(v any) []ValueTuple {
	if f == nil {
		return nil
	}

	var key string
	switch val := v.(type) {
	case ValueTuple:
		key = val.normalized
	case string:
		key = val
	case bool:
		key = strconv.FormatBool(val)
	default:
		n, ok := toNumber(v)
		if !ok {
			return nil
		}
		key = formatNumber(n)
	}

	var found []ValueTuple
	for _, t := range f.index[xxhash.Sum64String(key)] {
		if t.normalized == key || t.display == key {
			found = append(found, t)
		}
	}
	return found
}

// Intersect returns the members of f whose normalized value is also held by
// other.  This backs field-to-field equality.
func (f *FunctionalSet) Intersect(other *FunctionalSet) []ValueTuple {
	if f.Size() == 0 || other.Size() == 0 {
		return nil
	}
	var found []ValueTuple
	f.tree.Scan(func(t ValueTuple) bool {
		for _, o := range other.index[xxhash.Sum64String(t.normalized)] {
			if o.normalized == t.normalized {
				found = append(found, t, o)
				break
			}
		}
		return true
	})
	return found
}

// GreaterThan returns the members strictly greater than threshold.
func (f *FunctionalSet) GreaterThan(threshold any) *FunctionalSet {
	return f.CompareWith(threshold, OpGreater)
}

// CompareWith returns the members that satisfy `member op threshold`.  Members
// that cannot be compared with threshold are never included, so the operation
// is total.
func (f *FunctionalSet) CompareWith(threshold any, op Operator) *FunctionalSet {
	if f.Size() == 0 {
		return EmptySet()
	}

	var matched []ValueTuple
	collect := func(t ValueTuple) bool {
		c, ok := compareToThreshold(t, threshold)
		if ok && op.holds(c) {
			matched = append(matched, t)
		}
		return true
	}

	n, numeric := toNumber(threshold)
	switch {
	case numeric && (op == OpGreater || op == OpGreaterEquals):
		// Numeric members are stored before text, in order; begin the walk
		// at the threshold instead of the minimum.
		f.tree.Ascend(ValueTuple{num: n, numeric: true}, collect)
	default:
		f.tree.Scan(collect)
	}
	return NewFunctionalSet(matched...)
}

// ValuesForGroups returns the values of grouped field instances whose trailing
// group context is one of groups, eg. AGE.0 for group "0".
func (f *FunctionalSet) ValuesForGroups(groups ...string) *FunctionalSet {
	if f == nil || f.grouped == nil || len(groups) == 0 {
		return EmptySet()
	}
	var matched []ValueTuple
	f.grouped.Scan(func(t ValueTuple) bool {
		group := t.Group()
		for _, g := range groups {
			if group == g || strings.HasSuffix(group, "."+g) {
				matched = append(matched, t)
				break
			}
		}
		return true
	})
	return NewFunctionalSet(matched...)
}

func (f *FunctionalSet) String() string {
	parts := make([]string, 0, f.Size())
	for _, t := range f.Tuples() {
		parts = append(parts, t.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// compareToThreshold compares a member against a scalar.  ok is false when the
// two cannot be ordered against each other.
func compareToThreshold(t ValueTuple, threshold any) (int, bool) {
	if n, ok := toNumber(threshold); ok {
		if t.numeric {
			return compareFloat(t.num, n), true
		}
		parsed, err := parseNumber(t.normalized)
		if err != nil {
			return 0, false
		}
		return compareFloat(parsed, n), true
	}

	switch th := threshold.(type) {
	case string:
		if t.numeric {
			parsed, err := parseNumber(th)
			if err != nil {
				return 0, false
			}
			return compareFloat(t.num, parsed), true
		}
		return strings.Compare(t.normalized, th), true
	case ValueTuple:
		if th.numeric {
			return compareToThreshold(t, th.num)
		}
		return compareToThreshold(t, th.normalized)
	default:
		return 0, false
	}
}

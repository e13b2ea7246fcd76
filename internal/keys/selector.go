package keys

import (
	"github.com/tessera-db/tessera/pkg/types"
)

// SelectorKind discriminates the clustering-row selector forms. Explicit
// row sets and slices are mutually exclusive within one statement.
type SelectorKind int

const (
	// SelectRows targets an explicit finite set of clustering tuples.
	SelectRows SelectorKind = iota

	// SelectSlice targets a contiguous clustering range.
	SelectSlice

	// SelectStatic targets the static row only (no clustering).
	SelectStatic
)

// Slice is a contiguous range over clustering keys, bounded by
// inclusive/exclusive start and end markers over a clustering prefix.
type Slice struct {
	// Prefix is the fixed equality prefix shared by both bounds.
	Prefix []types.Value

	Start Bound
	End   Bound
}

// IsEmpty reports whether the slice normalizes to an empty range: both
// bounds set on the same column with start after end, or equal values
// with an exclusive end.
func (s Slice) IsEmpty() (bool, error) {
	if s.Start.Unbounded || s.End.Unbounded {
		return false, nil
	}
	c, err := s.Start.Value.Compare(s.End.Value)
	if err != nil {
		return false, err
	}
	if c > 0 {
		return true, nil
	}
	if c == 0 && !(s.Start.Inclusive && s.End.Inclusive) {
		return true, nil
	}
	return false, nil
}

// ClusteringSelector names the rows a statement targets within each
// resolved partition: an explicit tuple set, one slice, or the static row.
type ClusteringSelector struct {
	Kind SelectorKind

	// Rows holds the explicit clustering tuples (SelectRows). A table
	// with no clustering columns yields one empty tuple.
	Rows [][]types.Value

	// Slice holds the range (SelectSlice).
	Slice Slice
}

// RowSelector returns a selector over explicit clustering tuples.
func RowSelector(rows ...[]types.Value) ClusteringSelector {
	return ClusteringSelector{Kind: SelectRows, Rows: rows}
}

// SliceSelector returns a selector over one contiguous clustering range.
func SliceSelector(s Slice) ClusteringSelector {
	return ClusteringSelector{Kind: SelectSlice, Slice: s}
}

// StaticSelector returns the static-row marker selector.
func StaticSelector() ClusteringSelector {
	return ClusteringSelector{Kind: SelectStatic}
}

// RowCount returns how many distinct rows the selector names. Slices
// count as unbounded (-1).
func (cs ClusteringSelector) RowCount() int {
	switch cs.Kind {
	case SelectRows:
		return len(cs.Rows)
	case SelectStatic:
		return 1
	default:
		return -1
	}
}

// Package keys resolves bound key predicates into concrete partition keys
// and clustering-row selectors for a statement.
package keys

import (
	"github.com/tessera-db/tessera/pkg/types"
)

// RestrictionKind discriminates the supported key predicates.
type RestrictionKind int

const (
	// RestrictionEQ binds a column to exactly one value.
	RestrictionEQ RestrictionKind = iota

	// RestrictionIN binds a column to a finite set of values. Only the
	// last partition-key component may carry an IN restriction.
	RestrictionIN

	// RestrictionRange binds a column to a contiguous bound pair. Only
	// valid on the trailing restricted clustering column.
	RestrictionRange
)

// Bound is one end of a range restriction. A zero Bound (no value,
// Inclusive false) on a range means the end is open.
type Bound struct {
	Value     types.Value
	Inclusive bool
	Unbounded bool
}

// Restriction is a predicate bound to one key column. Restrictions are
// built once per prepared statement and are immutable thereafter.
type Restriction struct {
	Column string
	Kind   RestrictionKind

	// Values carries the bound value (EQ) or value set (IN).
	Values []types.Value

	// Start/End carry the bound pair for range restrictions.
	Start Bound
	End   Bound
}

// EQ returns an equality restriction on the column.
func EQ(column string, value types.Value) Restriction {
	return Restriction{Column: column, Kind: RestrictionEQ, Values: []types.Value{value}}
}

// IN returns a membership restriction on the column.
func IN(column string, values ...types.Value) Restriction {
	return Restriction{Column: column, Kind: RestrictionIN, Values: values}
}

// Range returns a range restriction on the column.
func Range(column string, start, end Bound) Restriction {
	return Restriction{Column: column, Kind: RestrictionRange, Start: start, End: end}
}

// GTE returns an inclusive lower bound.
func GTE(v types.Value) Bound { return Bound{Value: v, Inclusive: true} }

// GT returns an exclusive lower bound.
func GT(v types.Value) Bound { return Bound{Value: v} }

// LTE returns an inclusive upper bound.
func LTE(v types.Value) Bound { return Bound{Value: v, Inclusive: true} }

// LT returns an exclusive upper bound.
func LT(v types.Value) Bound { return Bound{Value: v} }

// Open returns an unbounded end.
func Open() Bound { return Bound{Unbounded: true} }

// RestrictionSet holds the restrictions of one statement, keyed by column.
type RestrictionSet struct {
	byColumn map[string]Restriction
}

// NewRestrictionSet builds a set from the given restrictions. A column may
// carry at most one restriction; later duplicates overwrite earlier ones
// (the parser rejects duplicates before the engine sees them).
func NewRestrictionSet(restrictions ...Restriction) RestrictionSet {
	byColumn := make(map[string]Restriction, len(restrictions))
	for _, r := range restrictions {
		byColumn[r.Column] = r
	}
	return RestrictionSet{byColumn: byColumn}
}

// Get returns the restriction bound to the column, if any.
func (rs RestrictionSet) Get(column string) (Restriction, bool) {
	r, ok := rs.byColumn[column]
	return r, ok
}

// HasClusteringRestriction reports whether any of the given clustering
// columns carries a restriction.
func (rs RestrictionSet) HasClusteringRestriction(clustering []types.ColumnDef) bool {
	for _, c := range clustering {
		if _, ok := rs.byColumn[c.Name]; ok {
			return true
		}
	}
	return false
}

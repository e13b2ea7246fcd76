package keys

import (
	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/pkg/types"
)

// Resolver converts a statement's bound restrictions into the exact
// partition keys and clustering rows the statement targets.
type Resolver struct {
	schema *types.TableSchema
}

// NewResolver creates a resolver for the given table schema.
func NewResolver(schema *types.TableSchema) *Resolver {
	return &Resolver{schema: schema}
}

// ClusteringOptions control how the clustering selector is derived.
type ClusteringOptions struct {
	// OnlyStatic is true when the statement touches static columns only;
	// with no clustering restriction present this selects the static row.
	OnlyStatic bool

	// RequireFull requires every clustering column to be restricted
	// (inserts and updates). Deletes leave it false: an unrestricted
	// clustering suffix widens the target to a contiguous range.
	RequireFull bool
}

// PartitionKeys resolves the partition-key restrictions into the ordered
// list of target partition keys. Every partition-key column must carry a
// restriction; only the last component may carry IN, which expands into
// the cross product with the fixed prefix.
func (r *Resolver) PartitionKeys(rs RestrictionSet) ([]PartitionKey, error) {
	pkCols := r.schema.PartitionKeyColumns()

	prefix := make([]types.Value, 0, len(pkCols))
	for i, col := range pkCols {
		restr, ok := rs.Get(col.Name)
		if !ok {
			return nil, errors.NewValidationError(errors.CodeMissingKeyComponent,
				"missing mandatory PRIMARY KEY part %s", col.Name)
		}
		last := i == len(pkCols)-1

		switch restr.Kind {
		case RestrictionEQ:
			prefix = append(prefix, restr.Values[0])
		case RestrictionIN:
			if !last {
				return nil, errors.NewValidationError(errors.CodeInvalidOperation,
					"IN is only supported on the last partition key column, not %s", col.Name)
			}
			keys := make([]PartitionKey, 0, len(restr.Values))
			for _, v := range restr.Values {
				tuple := make([]types.Value, len(prefix), len(prefix)+1)
				copy(tuple, prefix)
				keys = append(keys, NewPartitionKey(append(tuple, v)))
			}
			return keys, nil
		default:
			return nil, errors.NewValidationError(errors.CodeInvalidOperation,
				"invalid restriction on partition key column %s", col.Name)
		}
	}

	return []PartitionKey{NewPartitionKey(prefix)}, nil
}

// Clustering resolves the clustering restrictions into a row selector.
// Restricted clustering columns must form an unbroken prefix; equalities
// and IN expand into explicit tuples, a trailing range yields a slice,
// and the two forms never mix within one statement.
func (r *Resolver) Clustering(rs RestrictionSet, opts ClusteringOptions) (ClusteringSelector, error) {
	ckCols := r.schema.ClusteringColumns()

	if opts.OnlyStatic && !rs.HasClusteringRestriction(ckCols) {
		return StaticSelector(), nil
	}

	tuples := [][]types.Value{{}}
	var firstEmpty string

	for _, col := range ckCols {
		restr, ok := rs.Get(col.Name)
		if !ok {
			if firstEmpty == "" {
				firstEmpty = col.Name
			}
			if opts.RequireFull && !r.schema.Compact {
				return ClusteringSelector{}, errors.NewValidationError(errors.CodeMissingClusteringComponent,
					"missing mandatory PRIMARY KEY part %s", col.Name)
			}
			continue
		}
		if firstEmpty != "" {
			return ClusteringSelector{}, errors.NewValidationError(errors.CodeMissingClusteringComponent,
				"missing PRIMARY KEY part %s since %s is set", firstEmpty, col.Name)
		}

		switch restr.Kind {
		case RestrictionEQ:
			for i := range tuples {
				tuples[i] = append(tuples[i], restr.Values[0])
			}
		case RestrictionIN:
			expanded := make([][]types.Value, 0, len(tuples)*len(restr.Values))
			for _, t := range tuples {
				for _, v := range restr.Values {
					next := make([]types.Value, len(t), len(t)+1)
					copy(next, t)
					expanded = append(expanded, append(next, v))
				}
			}
			tuples = expanded
		case RestrictionRange:
			// A slice carries a single fixed prefix; combining it with a
			// multi-valued tuple set has no single-range meaning.
			if len(tuples) != 1 {
				return ClusteringSelector{}, errors.NewValidationError(errors.CodeMixedClusteringForm,
					"slice restriction on %s cannot be combined with multi-valued clustering restrictions", col.Name)
			}
			if r.hasRestrictionAfter(rs, col.Name) {
				return ClusteringSelector{}, errors.NewValidationError(errors.CodeMixedClusteringForm,
					"slice restriction on %s must be the last restricted clustering column", col.Name)
			}
			return SliceSelector(Slice{
				Prefix: tuples[0],
				Start:  restr.Start,
				End:    restr.End,
			}), nil
		}
	}

	// An unrestricted clustering suffix on the relaxed path (deletes)
	// targets the whole contiguous range under the restricted prefix.
	if firstEmpty != "" && len(ckCols) > 0 {
		if len(tuples) == 1 {
			return SliceSelector(Slice{Prefix: tuples[0], Start: Open(), End: Open()}), nil
		}
		return ClusteringSelector{}, errors.NewValidationError(errors.CodeMixedClusteringForm,
			"multi-valued clustering restrictions require the full clustering key")
	}

	return RowSelector(tuples...), nil
}

func (r *Resolver) hasRestrictionAfter(rs RestrictionSet, column string) bool {
	seen := false
	for _, col := range r.schema.ClusteringColumns() {
		if seen {
			if _, ok := rs.Get(col.Name); ok {
				return true
			}
		}
		if col.Name == column {
			seen = true
		}
	}
	return false
}

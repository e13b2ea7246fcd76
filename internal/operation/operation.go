// Package operation models the typed per-column mutations of a prepared
// modification statement. Operations form a closed tagged-variant set;
// each variant declares whether it must read the column's prior value
// before it can be applied.
package operation

import (
	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/pkg/types"
)

// Kind discriminates the operation variants.
type Kind int

const (
	// OpSet assigns a value to the column; a null value deletes it.
	OpSet Kind = iota

	// OpListAppend appends elements to a list column.
	OpListAppend

	// OpListPrepend prepends elements to a list column.
	OpListPrepend

	// OpListRemoveByValue removes all list elements equal to any of the
	// given values. Needs the stored list to locate them.
	OpListRemoveByValue

	// OpListSetByIndex overwrites the list element at an index. Needs the
	// stored list to address the element.
	OpListSetByIndex

	// OpListDiscardByIndex removes the list element at an index. Needs
	// the stored list to address the element.
	OpListDiscardByIndex

	// OpMapPut puts key/value entries into a map column.
	OpMapPut

	// OpSetAdd adds elements to a set column.
	OpSetAdd

	// OpSetRemove removes elements from a set column.
	OpSetRemove

	// OpCounterIncrement adds a delta to a counter column. Deltas are
	// resolved by the storage layer, never read back here.
	OpCounterIncrement
)

func (k Kind) String() string {
	switch k {
	case OpSet:
		return "set"
	case OpListAppend:
		return "list_append"
	case OpListPrepend:
		return "list_prepend"
	case OpListRemoveByValue:
		return "list_remove_by_value"
	case OpListSetByIndex:
		return "list_set_by_index"
	case OpListDiscardByIndex:
		return "list_discard_by_index"
	case OpMapPut:
		return "map_put"
	case OpSetAdd:
		return "set_add"
	case OpSetRemove:
		return "set_remove"
	case OpCounterIncrement:
		return "counter_increment"
	default:
		return "unknown"
	}
}

// CellKind tells the storage layer how a written cell merges into the
// stored state. Read-dependent operations are resolved to plain assigns
// before they reach storage.
type CellKind int

const (
	CellAssign CellKind = iota
	CellTombstone
	CellListAppend
	CellListPrepend
	CellSetAdd
	CellSetRemove
	CellMapPut
	CellCounterDelta
)

// RowWriter receives the cells an operation produces. Implemented by the
// update package's row builder.
type RowWriter interface {
	WriteCell(column string, kind CellKind, value types.Value)
}

// Operation is one typed mutation of one column.
type Operation struct {
	// Column is the target column definition.
	Column types.ColumnDef

	// Kind selects the variant.
	Kind Kind

	// Value is the bound value expression: the assigned value, the
	// elements to append/add/remove, the map entries, or the counter
	// delta.
	Value types.Value

	// Index addresses the list element for by-index variants.
	Index int
}

// RequiresRead reports whether the operation's result depends on the
// column's current stored value.
func (op Operation) RequiresRead() bool {
	switch op.Kind {
	case OpListRemoveByValue, OpListSetByIndex, OpListDiscardByIndex:
		return true
	default:
		return false
	}
}

// Apply writes the operation's cells into the row writer. prior is the
// column's current value; it must be non-nil exactly when RequiresRead is
// true and may be the null value when the column has no stored data.
func (op Operation) Apply(w RowWriter, prior *types.Value) error {
	if op.RequiresRead() && prior == nil {
		return errors.NewInvariantError(errors.CodeMissingSnapshot,
			"operation %s on %s requires a prior-value snapshot", op.Kind, op.Column.Name)
	}

	switch op.Kind {
	case OpSet:
		if op.Value.IsNull {
			w.WriteCell(op.Column.Name, CellTombstone, types.Null(op.Column.Type))
		} else {
			w.WriteCell(op.Column.Name, CellAssign, op.Value)
		}

	case OpListAppend:
		w.WriteCell(op.Column.Name, CellListAppend, op.Value)

	case OpListPrepend:
		w.WriteCell(op.Column.Name, CellListPrepend, op.Value)

	case OpListRemoveByValue:
		// Removing from a null or empty list is a no-op: the column
		// stays unset rather than becoming an empty list.
		if prior.IsNull || len(prior.List) == 0 {
			return nil
		}
		kept := make([]types.Value, 0, len(prior.List))
		for _, elem := range prior.List {
			removed := false
			for _, victim := range op.Value.List {
				if elem.Equal(victim) {
					removed = true
					break
				}
			}
			if !removed {
				kept = append(kept, elem)
			}
		}
		w.WriteCell(op.Column.Name, CellAssign, types.NewList(kept...))

	case OpListSetByIndex:
		next, err := op.listAt(prior)
		if err != nil {
			return err
		}
		next[op.Index] = op.Value
		w.WriteCell(op.Column.Name, CellAssign, types.NewList(next...))

	case OpListDiscardByIndex:
		next, err := op.listAt(prior)
		if err != nil {
			return err
		}
		next = append(next[:op.Index], next[op.Index+1:]...)
		w.WriteCell(op.Column.Name, CellAssign, types.NewList(next...))

	case OpMapPut:
		w.WriteCell(op.Column.Name, CellMapPut, op.Value)

	case OpSetAdd:
		w.WriteCell(op.Column.Name, CellSetAdd, op.Value)

	case OpSetRemove:
		w.WriteCell(op.Column.Name, CellSetRemove, op.Value)

	case OpCounterIncrement:
		w.WriteCell(op.Column.Name, CellCounterDelta, op.Value)

	default:
		return errors.NewValidationError(errors.CodeInvalidOperation,
			"unknown operation kind %d on %s", op.Kind, op.Column.Name)
	}

	return nil
}

// listAt validates the by-index target and returns a mutable copy of the
// stored list.
func (op Operation) listAt(prior *types.Value) ([]types.Value, error) {
	if prior.IsNull || len(prior.List) == 0 {
		return nil, errors.NewValidationError(errors.CodeInvalidOperation,
			"attempted to %s on index %d of unset list column %s", op.Kind, op.Index, op.Column.Name)
	}
	if op.Index < 0 || op.Index >= len(prior.List) {
		return nil, errors.NewValidationError(errors.CodeInvalidOperation,
			"list index %d out of bounds for column %s (size %d)", op.Index, op.Column.Name, len(prior.List))
	}
	next := make([]types.Value, len(prior.List))
	copy(next, prior.List)
	return next, nil
}

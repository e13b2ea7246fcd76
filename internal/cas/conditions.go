package cas

import (
	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/pkg/types"
)

// ConditionOperator compares a stored column value to an expected value.
type ConditionOperator string

const (
	OpEQ ConditionOperator = "="
	OpNE ConditionOperator = "!="
	OpLT ConditionOperator = "<"
	OpLE ConditionOperator = "<="
	OpGT ConditionOperator = ">"
	OpGE ConditionOperator = ">="
)

// ColumnCondition is one IF comparison on a non-key column.
type ColumnCondition struct {
	Column   types.ColumnDef
	Operator ConditionOperator
	Expected types.Value
}

// holds evaluates the condition against the stored value. A missing
// column counts as null: equal only to null, ordered before everything.
func (c ColumnCondition) holds(stored types.Value) (bool, error) {
	switch c.Operator {
	case OpEQ:
		return stored.Equal(c.Expected), nil
	case OpNE:
		return !stored.Equal(c.Expected), nil
	}

	if stored.IsNull || c.Expected.IsNull {
		// Ordered comparisons against null never hold.
		return false, nil
	}
	cmp, err := stored.Compare(c.Expected)
	if err != nil {
		return false, errors.NewValidationError(errors.CodeInvalidOperation,
			"condition on %s: %v", c.Column.Name, err)
	}
	switch c.Operator {
	case OpLT:
		return cmp < 0, nil
	case OpLE:
		return cmp <= 0, nil
	case OpGT:
		return cmp > 0, nil
	case OpGE:
		return cmp >= 0, nil
	default:
		return false, errors.NewValidationError(errors.CodeInvalidOperation,
			"unknown condition operator %q", string(c.Operator))
	}
}

// conditionsKind discriminates the three mutually exclusive condition
// forms of a statement.
type conditionsKind int

const (
	condNone conditionsKind = iota
	condIfExists
	condIfNotExists
	condColumns
)

// Conditions is the tagged union over a statement's condition forms:
// no conditions, the EXISTS/NOT-EXISTS sentinel, or a non-empty ordered
// list of column conditions. Illegal combinations are unrepresentable.
type Conditions struct {
	kind    conditionsKind
	columns []ColumnCondition
}

// NoConditions marks an unconditional statement.
func NoConditions() Conditions { return Conditions{kind: condNone} }

// IfExists marks an IF EXISTS statement.
func IfExists() Conditions { return Conditions{kind: condIfExists} }

// IfNotExists marks an IF NOT EXISTS statement.
func IfNotExists() Conditions { return Conditions{kind: condIfNotExists} }

// IfColumns marks a statement with column conditions, in statement order.
func IfColumns(conds ...ColumnCondition) Conditions {
	return Conditions{kind: condColumns, columns: conds}
}

// IsEmpty reports whether the statement carries no conditions.
func (c Conditions) IsEmpty() bool { return c.kind == condNone }

// IsExistenceOnly reports whether the statement uses the EXISTS or
// NOT-EXISTS sentinel (and therefore names no columns).
func (c Conditions) IsExistenceOnly() bool {
	return c.kind == condIfExists || c.kind == condIfNotExists
}

// Columns returns the condition columns in statement order, first
// occurrence winning for duplicates. Nil for sentinel forms.
func (c Conditions) Columns() []types.ColumnDef {
	if c.kind != condColumns {
		return nil
	}
	var defs []types.ColumnDef
	seen := make(map[string]bool)
	for _, cc := range c.columns {
		if !seen[cc.Column.Name] {
			seen[cc.Column.Name] = true
			defs = append(defs, cc.Column)
		}
	}
	return defs
}

// Evaluate checks the conditions against the row snapshot. EXISTS holds
// iff the row exists; NOT-EXISTS iff it does not; column conditions hold
// iff every comparison holds, with missing columns reading as null.
func (c Conditions) Evaluate(row *types.RowSnapshot) (bool, error) {
	exists := row != nil

	switch c.kind {
	case condNone:
		return true, nil
	case condIfExists:
		return exists, nil
	case condIfNotExists:
		return !exists, nil
	default:
		for _, cc := range c.columns {
			ok, err := cc.holds(row.Cell(cc.Column.Name, cc.Column.Type))
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}

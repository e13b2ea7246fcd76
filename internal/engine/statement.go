package engine

import (
	"github.com/tessera-db/tessera/internal/cas"
	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/internal/keys"
	"github.com/tessera-db/tessera/internal/operation"
	"github.com/tessera-db/tessera/pkg/types"
)

// StatementKind distinguishes the three write statement forms. The kind
// decides how strictly the clustering key must be restricted.
type StatementKind int

const (
	StatementInsert StatementKind = iota
	StatementUpdate
	StatementDelete
)

func (k StatementKind) String() string {
	switch k {
	case StatementInsert:
		return "INSERT"
	case StatementUpdate:
		return "UPDATE"
	case StatementDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Attributes are the optional write metadata a statement carries. A nil
// Timestamp means the engine assigns one at execution time.
type Attributes struct {
	// Timestamp is the explicit write timestamp in microseconds.
	Timestamp *int64

	// TTL is the cell time-to-live in seconds; zero means no expiry.
	TTL int32
}

// Statement is one validated write statement, ready to execute any
// number of times. Validation that does not depend on bound values or
// cluster state happens once, in NewStatement.
type Statement struct {
	Kind         StatementKind
	Schema       *types.TableSchema
	Restrictions keys.RestrictionSet
	Operations   *operation.Set
	Conditions   cas.Conditions
	Attributes   Attributes
}

// NewStatement validates the statement against its table schema.
func NewStatement(kind StatementKind, schema *types.TableSchema,
	restrictions keys.RestrictionSet, ops *operation.Set,
	conds cas.Conditions, attrs Attributes) (*Statement, error) {

	if ops == nil {
		ops = operation.NewSet()
	}

	if err := validateColumns(schema, ops, conds); err != nil {
		return nil, err
	}
	if err := validateCounterRules(schema, ops, conds, attrs); err != nil {
		return nil, err
	}
	if !conds.IsEmpty() && attrs.Timestamp != nil {
		return nil, errors.NewValidationError(errors.CodeConditionForbidsTimestamp,
			"cannot provide custom timestamp for conditional updates")
	}

	return &Statement{
		Kind:         kind,
		Schema:       schema,
		Restrictions: restrictions,
		Operations:   ops,
		Conditions:   conds,
		Attributes:   attrs,
	}, nil
}

// HasConditions reports whether the statement takes the conditional path.
func (s *Statement) HasConditions() bool { return !s.Conditions.IsEmpty() }

// DeleteRow reports whether the statement tombstones whole rows rather
// than individual cells.
func (s *Statement) DeleteRow() bool {
	return s.Kind == StatementDelete && s.Operations.Len() == 0
}

// clusteringOptions derives how the statement's clustering restrictions
// resolve. Inserts and updates name their rows exactly; deletes may leave
// a clustering suffix open and widen to a range. A statement touching
// static columns only does not need any clustering restriction.
func (s *Statement) clusteringOptions() keys.ClusteringOptions {
	return keys.ClusteringOptions{
		OnlyStatic: s.Operations.Len() > 0 &&
			s.Operations.AppliesToStaticColumns() &&
			!s.Operations.AppliesToRegularColumns(),
		RequireFull: s.Kind != StatementDelete,
	}
}

func validateColumns(schema *types.TableSchema, ops *operation.Set, conds cas.Conditions) error {
	for _, op := range ops.All() {
		col, ok := schema.Column(op.Column.Name)
		if !ok {
			return errors.NewSchemaError(errors.CodeUnknownColumn,
				"undefined column name %s in table %s", op.Column.Name, schema.QualifiedName())
		}
		if col.IsPrimaryKey() {
			return errors.NewValidationError(errors.CodeInvalidOperation,
				"PRIMARY KEY part %s found in SET clause", op.Column.Name)
		}
	}
	for _, col := range conds.Columns() {
		if _, ok := schema.Column(col.Name); !ok {
			return errors.NewSchemaError(errors.CodeUnknownColumn,
				"undefined column name %s in table %s", col.Name, schema.QualifiedName())
		}
	}
	return nil
}

// validateCounterRules enforces the counter-table restrictions: counter
// columns only move by increments, never conditionally, and never with
// custom write metadata.
func validateCounterRules(schema *types.TableSchema, ops *operation.Set,
	conds cas.Conditions, attrs Attributes) error {

	if schema.IsCounter() {
		if !conds.IsEmpty() {
			return errors.NewValidationError(errors.CodeCounterForbidsConditions,
				"conditional updates are not supported on counter tables")
		}
		if attrs.Timestamp != nil {
			return errors.NewValidationError(errors.CodeCounterForbidsAttributes,
				"cannot provide custom timestamp for counter updates")
		}
		if attrs.TTL != 0 {
			return errors.NewValidationError(errors.CodeCounterForbidsAttributes,
				"cannot provide custom TTL for counter updates")
		}
		for _, op := range ops.All() {
			if op.Kind != operation.OpCounterIncrement {
				return errors.NewValidationError(errors.CodeInvalidOperation,
					"cannot set the value of counter column %s", op.Column.Name)
			}
		}
		return nil
	}

	for _, op := range ops.All() {
		if op.Kind == operation.OpCounterIncrement {
			return errors.NewValidationError(errors.CodeInvalidOperation,
				"invalid operation for non counter column %s", op.Column.Name)
		}
	}
	return nil
}

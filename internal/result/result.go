// Package result shapes execution outcomes into tabular result sets.
// Plain writes return no rows; conditional writes always return at least
// the applied flag, plus the rejecting row state on failure.
package result

import (
	"github.com/tessera-db/tessera/internal/cas"
	"github.com/tessera-db/tessera/internal/keys"
	"github.com/tessera-db/tessera/pkg/types"
)

// AppliedColumn is the flag column every conditional result leads with.
const AppliedColumn = "[applied]"

// ColumnSpec describes one result column.
type ColumnSpec struct {
	Keyspace string
	Table    string
	Name     string
	Type     types.DataType
}

// ResultSet is a tabular execution result. A nil ResultSet is the void
// result of an unconditional write.
type ResultSet struct {
	Columns []ColumnSpec
	Rows    [][]types.Value
}

// ForCasOutcome builds the conditional-write result. The applied flag is
// always the first column. On rejection the evidence columns follow: the
// explicitly named condition columns in statement order, or every table
// column for the existence-only forms.
func ForCasOutcome(schema *types.TableSchema, key keys.PartitionKey, conds cas.Conditions, outcome *cas.Outcome) *ResultSet {
	appliedSpec := ColumnSpec{
		Keyspace: schema.Keyspace,
		Table:    schema.Name,
		Name:     AppliedColumn,
		Type:     types.TypeBoolean,
	}

	if outcome.Applied {
		return &ResultSet{
			Columns: []ColumnSpec{appliedSpec},
			Rows:    [][]types.Value{{types.NewBool(true)}},
		}
	}

	evidence := evidenceColumns(schema, conds)
	if outcome.Evidence == nil {
		// The row does not exist: there is no state to show, only the
		// verdict.
		return &ResultSet{
			Columns: []ColumnSpec{appliedSpec},
			Rows:    [][]types.Value{{types.NewBool(false)}},
		}
	}

	columns := make([]ColumnSpec, 0, len(evidence)+1)
	columns = append(columns, appliedSpec)
	row := make([]types.Value, 0, len(evidence)+1)
	row = append(row, types.NewBool(false))
	for _, col := range evidence {
		columns = append(columns, ColumnSpec{
			Keyspace: schema.Keyspace,
			Table:    schema.Name,
			Name:     col.Name,
			Type:     col.Type,
		})
		row = append(row, evidenceValue(schema, key, outcome.Evidence, col))
	}
	return &ResultSet{Columns: columns, Rows: [][]types.Value{row}}
}

// evidenceColumns picks which columns a rejection reports. Existence-only
// conditions name no columns, so the whole row is shown.
func evidenceColumns(schema *types.TableSchema, conds cas.Conditions) []types.ColumnDef {
	if cols := conds.Columns(); cols != nil {
		return cols
	}
	return schema.Columns
}

// evidenceValue resolves one column of the rejecting row. Key columns
// come from the statement's own targets, everything else from the read.
func evidenceValue(schema *types.TableSchema, key keys.PartitionKey, row *types.RowSnapshot, col types.ColumnDef) types.Value {
	switch col.Kind {
	case types.KindPartitionKey:
		for i, pk := range schema.PartitionKeyColumns() {
			if pk.Name == col.Name && i < len(key.Values) {
				return key.Values[i]
			}
		}
	case types.KindClustering:
		for i, ck := range schema.ClusteringColumns() {
			if ck.Name == col.Name && i < len(row.Clustering) {
				return row.Clustering[i]
			}
		}
	default:
		return row.Cell(col.Name, col.Type)
	}
	return types.Null(col.Type)
}

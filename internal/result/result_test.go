package result

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tessera-db/tessera/internal/cas"
	"github.com/tessera-db/tessera/internal/keys"
	"github.com/tessera-db/tessera/pkg/types"
)

func resultSchema() *types.TableSchema {
	return &types.TableSchema{
		Keyspace: "ks",
		Name:     "t",
		Columns: []types.ColumnDef{
			{Name: "pk", Kind: types.KindPartitionKey, Type: types.TypeText},
			{Name: "ck", Kind: types.KindClustering, Type: types.TypeBigint},
			{Name: "v", Kind: types.KindRegular, Type: types.TypeBigint},
			{Name: "w", Kind: types.KindRegular, Type: types.TypeText},
		},
	}
}

var resultKey = keys.NewPartitionKey([]types.Value{types.NewText("a")})

func TestForCasOutcome_Applied(t *testing.T) {
	rs := ForCasOutcome(resultSchema(), resultKey, cas.IfExists(), &cas.Outcome{Applied: true})

	require.Len(t, rs.Columns, 1)
	require.Equal(t, AppliedColumn, rs.Columns[0].Name)
	require.Equal(t, types.TypeBoolean, rs.Columns[0].Type)
	require.Len(t, rs.Rows, 1)
	require.True(t, rs.Rows[0][0].Equal(types.NewBool(true)))
}

func TestForCasOutcome_RejectedWithConditionColumns(t *testing.T) {
	schema := resultSchema()
	conds := cas.IfColumns(cas.ColumnCondition{
		Column:   types.ColumnDef{Name: "v", Kind: types.KindRegular, Type: types.TypeBigint},
		Operator: cas.OpEQ,
		Expected: types.NewBigint(0),
	})
	evidence := &types.RowSnapshot{
		Clustering: []types.Value{types.NewBigint(7)},
		Cells:      map[string]types.Value{"v": types.NewBigint(5)},
	}

	rs := ForCasOutcome(schema, resultKey, conds, &cas.Outcome{Applied: false, Evidence: evidence})

	require.Len(t, rs.Columns, 2, "applied flag plus the one condition column")
	require.Equal(t, AppliedColumn, rs.Columns[0].Name)
	require.Equal(t, "v", rs.Columns[1].Name)
	require.Len(t, rs.Rows, 1)
	require.True(t, rs.Rows[0][0].Equal(types.NewBool(false)))
	require.True(t, rs.Rows[0][1].Equal(types.NewBigint(5)))
}

func TestForCasOutcome_RejectedExistenceShowsWholeRow(t *testing.T) {
	schema := resultSchema()
	evidence := &types.RowSnapshot{
		Clustering: []types.Value{types.NewBigint(7)},
		Cells:      map[string]types.Value{"v": types.NewBigint(5)},
	}

	rs := ForCasOutcome(schema, resultKey, cas.IfNotExists(), &cas.Outcome{Applied: false, Evidence: evidence})

	require.Len(t, rs.Columns, 5, "applied flag plus every table column")
	names := make([]string, 0, len(rs.Columns))
	for _, c := range rs.Columns {
		names = append(names, c.Name)
	}
	require.Equal(t, []string{AppliedColumn, "pk", "ck", "v", "w"}, names)

	row := rs.Rows[0]
	require.True(t, row[0].Equal(types.NewBool(false)))
	require.True(t, row[1].Equal(types.NewText("a")), "partition key comes from the statement target")
	require.True(t, row[2].Equal(types.NewBigint(7)))
	require.True(t, row[3].Equal(types.NewBigint(5)))
	require.True(t, row[4].IsNull, "unset columns read as null")
}

func TestForCasOutcome_RejectedWithoutEvidenceRow(t *testing.T) {
	conds := cas.IfColumns(cas.ColumnCondition{
		Column:   types.ColumnDef{Name: "v", Kind: types.KindRegular, Type: types.TypeBigint},
		Operator: cas.OpEQ,
		Expected: types.NewBigint(0),
	})

	rs := ForCasOutcome(resultSchema(), resultKey, conds, &cas.Outcome{Applied: false})

	require.Len(t, rs.Columns, 1, "no row state to show when the row does not exist")
	require.True(t, rs.Rows[0][0].Equal(types.NewBool(false)))
}

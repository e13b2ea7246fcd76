package update

import (
	"testing"

	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/internal/keys"
	"github.com/tessera-db/tessera/internal/operation"
	"github.com/tessera-db/tessera/pkg/types"
)

func testSchema() *types.TableSchema {
	return &types.TableSchema{
		Keyspace: "ks",
		Name:     "t",
		Columns: []types.ColumnDef{
			{Name: "pk", Kind: types.KindPartitionKey, Type: types.TypeBigint},
			{Name: "ck", Kind: types.KindClustering, Type: types.TypeBigint},
			{Name: "v", Kind: types.KindRegular, Type: types.TypeBigint},
			{Name: "l", Kind: types.KindRegular, Type: types.TypeList},
			{Name: "s", Kind: types.KindStatic, Type: types.TypeText},
		},
	}
}

func pk(v int64) keys.PartitionKey {
	return keys.NewPartitionKey([]types.Value{types.NewBigint(v)})
}

func ck(v int64) []types.Value {
	return []types.Value{types.NewBigint(v)}
}

func setV(v int64) operation.Operation {
	return operation.Operation{
		Column: types.ColumnDef{Name: "v", Kind: types.KindRegular, Type: types.TypeBigint},
		Kind:   operation.OpSet,
		Value:  types.NewBigint(v),
	}
}

func TestBuild_OneUpdatePerPartition(t *testing.T) {
	schema := testSchema()
	p := Params{Operations: operation.NewSet(setV(1)), Timestamp: 100}

	updates, err := Build(schema, []keys.PartitionKey{pk(1), pk(2)}, keys.RowSelector(ck(1)), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2", len(updates))
	}
	for _, u := range updates {
		if len(u.Rows) != 1 {
			t.Errorf("partition %v: got %d rows, want 1", u.Key.Values, len(u.Rows))
		}
		if u.Rows[0].Timestamp != 100 {
			t.Errorf("timestamp not propagated: %d", u.Rows[0].Timestamp)
		}
	}
}

func TestBuild_RepeatedKeysCoalesce(t *testing.T) {
	schema := testSchema()
	collector := NewCollector(schema)
	p := Params{Operations: operation.NewSet(setV(1)), Timestamp: 1}

	if err := AddTo(collector, []keys.PartitionKey{pk(1)}, keys.RowSelector(ck(1)), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := AddTo(collector, []keys.PartitionKey{pk(1)}, keys.RowSelector(ck(2)), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updates := collector.Updates()
	if len(updates) != 1 {
		t.Fatalf("same partition must coalesce into one update, got %d", len(updates))
	}
	if len(updates[0].Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(updates[0].Rows))
	}
}

func TestBuild_MultiRowDelete(t *testing.T) {
	schema := testSchema()
	p := Params{Operations: operation.NewSet(), DeleteRow: true, Timestamp: 5}

	updates, err := Build(schema, []keys.PartitionKey{pk(1)}, keys.RowSelector(ck(1), ck(2), ck(3)), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	if len(updates[0].Rows) != 3 {
		t.Fatalf("got %d row deletions, want 3", len(updates[0].Rows))
	}
	for _, row := range updates[0].Rows {
		if !row.Deleted {
			t.Error("delete statement must tombstone whole rows")
		}
	}
}

func TestBuild_EmptySliceIsNoOp(t *testing.T) {
	schema := testSchema()
	slice := keys.Slice{Start: keys.GTE(types.NewBigint(9)), End: keys.LT(types.NewBigint(1))}
	p := Params{Operations: operation.NewSet(), DeleteRow: true, Timestamp: 5}

	updates, err := Build(schema, []keys.PartitionKey{pk(1)}, keys.SliceSelector(slice), p)
	if err != nil {
		t.Fatalf("empty slice must be a legal no-op, got error: %v", err)
	}
	if len(updates) != 0 {
		t.Fatalf("got %d updates, want 0", len(updates))
	}
}

func TestBuild_SliceDeleteProducesRangeTombstone(t *testing.T) {
	schema := testSchema()
	slice := keys.Slice{Start: keys.GTE(types.NewBigint(1)), End: keys.LTE(types.NewBigint(9))}
	p := Params{Operations: operation.NewSet(), DeleteRow: true, Timestamp: 5}

	updates, err := Build(schema, []keys.PartitionKey{pk(1)}, keys.SliceSelector(slice), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 1 || len(updates[0].Ranges) != 1 {
		t.Fatalf("expected one range tombstone, got %+v", updates)
	}
	if updates[0].Ranges[0].Timestamp != 5 {
		t.Error("range tombstone must carry the statement timestamp")
	}
}

func TestBuild_SliceOnNonDeleteRejected(t *testing.T) {
	schema := testSchema()
	slice := keys.Slice{Start: keys.GTE(types.NewBigint(1)), End: keys.Open()}
	p := Params{Operations: operation.NewSet(setV(1)), Timestamp: 5}

	_, err := Build(schema, []keys.PartitionKey{pk(1)}, keys.SliceSelector(slice), p)
	if errors.GetCode(err) != errors.CodeInvalidOperation {
		t.Fatalf("got %v, want %s", err, errors.CodeInvalidOperation)
	}
}

func TestBuild_StaticRow(t *testing.T) {
	schema := testSchema()
	setS := operation.Operation{
		Column: types.ColumnDef{Name: "s", Kind: types.KindStatic, Type: types.TypeText},
		Kind:   operation.OpSet,
		Value:  types.NewText("hello"),
	}
	p := Params{Operations: operation.NewSet(setS), Timestamp: 7}

	updates, err := Build(schema, []keys.PartitionKey{pk(1)}, keys.StaticSelector(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 1 || len(updates[0].Rows) != 1 {
		t.Fatalf("expected exactly one static row, got %+v", updates)
	}
	if !updates[0].Rows[0].Static {
		t.Error("row must be marked static")
	}
}

func TestBuild_ReadDependentOpUsesSnapshot(t *testing.T) {
	schema := testSchema()
	discard := operation.Operation{
		Column: types.ColumnDef{Name: "l", Kind: types.KindRegular, Type: types.TypeList},
		Kind:   operation.OpListDiscardByIndex,
		Index:  0,
	}
	key := pk(1)
	prior := map[string]*types.PartitionSnapshot{
		key.ID(): {
			Rows: []types.RowSnapshot{{
				Clustering: ck(1),
				Cells:      map[string]types.Value{"l": types.NewList(types.NewBigint(7), types.NewBigint(8))},
			}},
		},
	}
	p := Params{Operations: operation.NewSet(discard), Timestamp: 1, Prior: prior, HasPrior: true}

	updates, err := Build(schema, []keys.PartitionKey{key}, keys.RowSelector(ck(1)), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cells := updates[0].Rows[0].Cells
	if len(cells) != 1 {
		t.Fatalf("got %d cells, want 1", len(cells))
	}
	want := types.NewList(types.NewBigint(8))
	if !cells[0].Value.Equal(want) {
		t.Errorf("got %v, want %v", cells[0].Value, want)
	}
}

func TestBuild_ReadDependentOpWithoutSnapshotFails(t *testing.T) {
	schema := testSchema()
	discard := operation.Operation{
		Column: types.ColumnDef{Name: "l", Kind: types.KindRegular, Type: types.TypeList},
		Kind:   operation.OpListRemoveByValue,
		Value:  types.NewList(types.NewBigint(1)),
	}
	p := Params{Operations: operation.NewSet(discard), Timestamp: 1}

	_, err := Build(schema, []keys.PartitionKey{pk(1)}, keys.RowSelector(ck(1)), p)
	if errors.GetCode(err) != errors.CodeMissingSnapshot {
		t.Fatalf("got %v, want %s", err, errors.CodeMissingSnapshot)
	}
}

func TestBuild_PrimaryKeyOnlyInsertMaterializesRow(t *testing.T) {
	schema := testSchema()
	p := Params{Operations: operation.NewSet(), Timestamp: 1}

	updates, err := Build(schema, []keys.PartitionKey{pk(1)}, keys.RowSelector(ck(1)), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 1 || len(updates[0].Rows) != 1 {
		t.Fatal("a primary-key-only write must still materialize the row")
	}
	if updates[0].Rows[0].Deleted || len(updates[0].Rows[0].Cells) != 0 {
		t.Error("materialized row must be a live row with no cells")
	}
}

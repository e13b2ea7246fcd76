package reconcile

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/internal/keys"
	"github.com/tessera-db/tessera/pkg/types"
)

type fakeReader struct {
	snapshots map[string]*types.PartitionSnapshot
	columns   []string
	calls     int
	err       error
}

func (f *fakeReader) ReadPartition(ctx context.Context, schema *types.TableSchema, key keys.PartitionKey, sel keys.ClusteringSelector, columns []string, cl types.ConsistencyLevel) (*types.PartitionSnapshot, error) {
	f.calls++
	f.columns = columns
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshots[key.ID()], nil
}

func reconcileSchema() *types.TableSchema {
	return &types.TableSchema{
		Keyspace: "ks",
		Name:     "t",
		Columns: []types.ColumnDef{
			{Name: "pk", Kind: types.KindPartitionKey, Type: types.TypeText},
			{Name: "tags", Kind: types.KindRegular, Type: types.TypeList},
		},
	}
}

func TestReconciler_FetchPerPartition(t *testing.T) {
	keyA := keys.NewPartitionKey([]types.Value{types.NewText("a")})
	keyB := keys.NewPartitionKey([]types.Value{types.NewText("b")})

	reader := &fakeReader{
		snapshots: map[string]*types.PartitionSnapshot{
			keyA.ID(): {Rows: []types.RowSnapshot{{
				Cells: map[string]types.Value{"tags": types.NewList(types.NewText("x"))},
			}}},
		},
	}
	r := New(reader)

	prior, err := r.Fetch(context.Background(), reconcileSchema(),
		[]keys.PartitionKey{keyA, keyB}, keys.RowSelector(nil), []string{"tags"}, types.ConsistencyQuorum)
	require.NoError(t, err)
	require.Equal(t, 2, reader.calls)
	require.Equal(t, []string{"tags"}, reader.columns)

	require.Len(t, prior[keyA.ID()].Rows, 1)
	require.NotNil(t, prior[keyB.ID()], "missing partitions map to empty snapshots")
	require.True(t, prior[keyB.ID()].IsEmpty())
}

func TestReconciler_RejectsWriteOnlyConsistency(t *testing.T) {
	r := New(&fakeReader{})
	key := keys.NewPartitionKey([]types.Value{types.NewText("a")})

	for _, cl := range []types.ConsistencyLevel{types.ConsistencyAny, types.ConsistencyEachQuorum} {
		t.Run(string(cl), func(t *testing.T) {
			_, err := r.Fetch(context.Background(), reconcileSchema(),
				[]keys.PartitionKey{key}, keys.RowSelector(nil), nil, cl)
			require.Error(t, err)
			require.Equal(t, errors.CodeUnsupportedReadConsistency, errors.GetCode(err))
		})
	}
}

func TestReconciler_ReadErrorIsRetryable(t *testing.T) {
	reader := &fakeReader{err: fmt.Errorf("replica down")}
	r := New(reader)
	key := keys.NewPartitionKey([]types.Value{types.NewText("a")})

	_, err := r.Fetch(context.Background(), reconcileSchema(),
		[]keys.PartitionKey{key}, keys.RowSelector(nil), nil, types.ConsistencyOne)
	require.Error(t, err)
	require.True(t, errors.IsRetryable(err))
}

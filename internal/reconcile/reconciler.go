// Package reconcile fetches the reconciled prior state that
// read-dependent operations (list updates by index or value) consume
// before the update builder runs.
package reconcile

import (
	"context"

	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/internal/keys"
	"github.com/tessera-db/tessera/pkg/types"
)

// Reader is the read path the reconciler drives. Implementations merge
// replica responses into one reconciled snapshot per partition; a
// partition with no live data returns an empty (or nil) snapshot, not an
// error.
type Reader interface {
	ReadPartition(ctx context.Context, schema *types.TableSchema, key keys.PartitionKey, sel keys.ClusteringSelector, columns []string, cl types.ConsistencyLevel) (*types.PartitionSnapshot, error)
}

// Reconciler performs the pre-write read for statements whose operation
// set requires prior values.
type Reconciler struct {
	reader Reader
}

// New creates a reconciler over the given read path.
func New(reader Reader) *Reconciler {
	return &Reconciler{reader: reader}
}

// Fetch reads the targeted rows of every partition at the statement's
// consistency level, restricted to the given columns. The result maps
// partition-key IDs to snapshots; partitions with no data map to empty
// snapshots so the builder can tell "read found nothing" from "no read".
func (r *Reconciler) Fetch(ctx context.Context, schema *types.TableSchema, pks []keys.PartitionKey, sel keys.ClusteringSelector, columns []string, cl types.ConsistencyLevel) (map[string]*types.PartitionSnapshot, error) {
	if err := cl.ValidateForRead(); err != nil {
		return nil, errors.NewValidationError(errors.CodeUnsupportedReadConsistency,
			"write operation requires a read but consistency %s is not supported on reads", cl)
	}

	prior := make(map[string]*types.PartitionSnapshot, len(pks))
	for _, key := range pks {
		snapshot, err := r.reader.ReadPartition(ctx, schema, key, sel, columns, cl)
		if err != nil {
			return nil, errors.NewBoundaryError(errors.CodeUnavailable, "pre-write read failed", err)
		}
		if snapshot == nil {
			snapshot = &types.PartitionSnapshot{}
		}
		prior[key.ID()] = snapshot
	}
	return prior, nil
}

package update

import (
	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/internal/keys"
	"github.com/tessera-db/tessera/internal/operation"
	"github.com/tessera-db/tessera/pkg/types"
)

// Params carries the per-execution inputs of the update builder.
type Params struct {
	// Operations is the statement's operation set.
	Operations *operation.Set

	// DeleteRow marks delete statements with no column operations: the
	// targeted rows (or ranges) are tombstoned whole.
	DeleteRow bool

	// Timestamp is the write timestamp in microseconds.
	Timestamp int64

	// TTL is the cell time-to-live in seconds; zero means no expiry.
	TTL int32

	// Prior holds the reconciled prior state by partition-key ID. A nil
	// map means no read was performed; missing entries are empty
	// snapshots.
	Prior map[string]*types.PartitionSnapshot

	// HasPrior distinguishes "read performed, nothing found" from "no
	// read performed".
	HasPrior bool
}

// Build applies the operation set against the resolved keys and
// clustering selector and returns one PartitionUpdate per target
// partition, coalesced by partition key.
func Build(schema *types.TableSchema, pks []keys.PartitionKey, sel keys.ClusteringSelector, p Params) ([]*PartitionUpdate, error) {
	collector := NewCollector(schema)
	if err := AddTo(collector, pks, sel, p); err != nil {
		return nil, err
	}
	return collector.Updates(), nil
}

// AddTo applies one statement's mutations into a shared collector, so a
// caller executing several sub-operations against the same table can
// merge them into one mutation per partition.
func AddTo(collector *Collector, pks []keys.PartitionKey, sel keys.ClusteringSelector, p Params) error {
	switch sel.Kind {
	case keys.SelectSlice:
		return addSlice(collector, pks, sel.Slice, p)
	case keys.SelectStatic:
		return addRows(collector, pks, nil, true, p)
	default:
		return addRows(collector, pks, sel.Rows, false, p)
	}
}

func addSlice(collector *Collector, pks []keys.PartitionKey, slice keys.Slice, p Params) error {
	if !p.DeleteRow {
		return errors.NewValidationError(errors.CodeInvalidOperation,
			"range selections are only supported by delete statements")
	}

	empty, err := slice.IsEmpty()
	if err != nil {
		return errors.NewValidationError(errors.CodeInvalidOperation, "invalid slice bounds: %v", err)
	}
	// A slice that normalizes to nothing is a legal no-op.
	if empty {
		return nil
	}

	for _, key := range pks {
		collector.Get(key).AddRangeTombstone(RangeTombstone{Slice: slice, Timestamp: p.Timestamp})
	}
	return nil
}

func addRows(collector *Collector, pks []keys.PartitionKey, clusterings [][]types.Value, staticOnly bool, p Params) error {
	for _, key := range pks {
		upd := collector.Get(key)

		if staticOps := p.Operations.Static(); len(staticOps) > 0 || staticOnly {
			row := RowUpdate{Static: true, Timestamp: p.Timestamp, TTL: p.TTL}
			if err := applyOps(&row, staticOps, key, nil, true, p); err != nil {
				return err
			}
			if len(row.Cells) > 0 || staticOnly {
				upd.AddRow(row)
			}
		}

		if staticOnly {
			continue
		}

		for _, clustering := range clusterings {
			row := RowUpdate{Clustering: clustering, Timestamp: p.Timestamp, TTL: p.TTL}
			if p.DeleteRow {
				row.Deleted = true
				upd.AddRow(row)
				continue
			}
			if err := applyOps(&row, p.Operations.Regular(), key, clustering, false, p); err != nil {
				return err
			}
			// A row with no cells still materializes the primary key
			// (primary-key-only inserts, compact layouts without a row
			// marker).
			upd.AddRow(row)
		}
	}
	return nil
}

func applyOps(row *RowUpdate, ops []operation.Operation, key keys.PartitionKey, clustering []types.Value, static bool, p Params) error {
	for _, op := range ops {
		var prior *types.Value
		if op.RequiresRead() && p.HasPrior {
			snapshot := p.Prior[key.ID()]
			var snapRow *types.RowSnapshot
			if static {
				if snapshot != nil {
					snapRow = snapshot.Static
				}
			} else {
				snapRow = snapshot.Row(clustering)
			}
			v := snapRow.Cell(op.Column.Name, op.Column.Type)
			prior = &v
		}
		// With no reconciled state, prior stays nil and Operation.Apply
		// reports the missing-snapshot invariant.
		if err := op.Apply(row, prior); err != nil {
			return err
		}
	}
	return nil
}

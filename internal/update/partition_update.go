// Package update builds the per-partition mutation batches a statement
// produces: one PartitionUpdate per target partition, holding the row
// changes and range deletions to hand to the replication boundary.
package update

import (
	"github.com/tessera-db/tessera/internal/keys"
	"github.com/tessera-db/tessera/internal/operation"
	"github.com/tessera-db/tessera/pkg/types"
)

// Cell is one written column value plus how it merges into stored state.
type Cell struct {
	Column string
	Kind   operation.CellKind
	Value  types.Value
}

// RowUpdate is the mutation of one row: its clustering tuple (empty for
// the static row), the written cells, and the write metadata. Deleted
// marks a whole-row tombstone.
type RowUpdate struct {
	Clustering []types.Value
	Static     bool
	Cells      []Cell
	Deleted    bool

	// Timestamp is the write timestamp in microseconds.
	Timestamp int64

	// TTL is the cell time-to-live in seconds; zero means no expiry.
	TTL int32
}

// WriteCell implements operation.RowWriter.
func (r *RowUpdate) WriteCell(column string, kind operation.CellKind, value types.Value) {
	r.Cells = append(r.Cells, Cell{Column: column, Kind: kind, Value: value})
}

// RangeTombstone deletes a contiguous clustering range within a
// partition. An empty prefix with open bounds deletes the partition.
type RangeTombstone struct {
	Slice     keys.Slice
	Timestamp int64
}

// PartitionUpdate is the mutation unit for one partition. It is built
// incrementally by the update builder and must not be modified after it
// is handed to the replication boundary.
type PartitionUpdate struct {
	Schema *types.TableSchema
	Key    keys.PartitionKey

	Rows   []RowUpdate
	Ranges []RangeTombstone
}

// AddRow appends a row mutation.
func (u *PartitionUpdate) AddRow(row RowUpdate) {
	u.Rows = append(u.Rows, row)
}

// AddRangeTombstone appends a range deletion.
func (u *PartitionUpdate) AddRangeTombstone(rt RangeTombstone) {
	u.Ranges = append(u.Ranges, rt)
}

// IsEmpty reports whether the update carries no mutations at all.
func (u *PartitionUpdate) IsEmpty() bool {
	return len(u.Rows) == 0 && len(u.Ranges) == 0
}

// TriggerHook augments an update with derived mutations (e.g. triggers)
// before it is committed. The hook is a pure function and must not change
// the target partition key.
type TriggerHook func(*PartitionUpdate) (*PartitionUpdate, error)

// Collector coalesces updates by partition key, so repeated target
// partitions across sub-operations of one statement leave the engine as
// a single mutation per partition. Insertion order of first touch is
// preserved.
type Collector struct {
	schema  *types.TableSchema
	order   []string
	updates map[string]*PartitionUpdate
}

// NewCollector creates a collector for the given table.
func NewCollector(schema *types.TableSchema) *Collector {
	return &Collector{
		schema:  schema,
		updates: make(map[string]*PartitionUpdate),
	}
}

// Get returns the update for the key, creating it on first touch.
func (c *Collector) Get(key keys.PartitionKey) *PartitionUpdate {
	id := key.ID()
	if u, ok := c.updates[id]; ok {
		return u
	}
	u := &PartitionUpdate{Schema: c.schema, Key: key}
	c.updates[id] = u
	c.order = append(c.order, id)
	return u
}

// Updates returns the non-empty collected updates in first-touch order.
func (c *Collector) Updates() []*PartitionUpdate {
	out := make([]*PartitionUpdate, 0, len(c.order))
	for _, id := range c.order {
		if u := c.updates[id]; !u.IsEmpty() {
			out = append(out, u)
		}
	}
	return out
}

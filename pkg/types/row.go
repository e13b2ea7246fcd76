package types

// RowSnapshot is the materialized current state of one row, as returned
// by a replica or consensus read. A missing column is simply absent from
// Cells and reads as null.
type RowSnapshot struct {
	// Clustering is the row's clustering tuple; empty for tables without
	// clustering columns and for the static row.
	Clustering []Value `json:"clustering"`

	// Cells maps column name to the stored value.
	Cells map[string]Value `json:"cells"`
}

// Cell returns the stored value of a column, or the null value of the
// given type if the column has no stored data.
func (r *RowSnapshot) Cell(column string, t DataType) Value {
	if r == nil {
		return Null(t)
	}
	if v, ok := r.Cells[column]; ok {
		return v
	}
	return Null(t)
}

// PartitionSnapshot is the current state of one partition: its static row
// (if any) and the regular rows that matched the read.
type PartitionSnapshot struct {
	Static *RowSnapshot  `json:"static,omitempty"`
	Rows   []RowSnapshot `json:"rows"`
}

// Row returns the snapshot row with the given clustering tuple, or nil.
func (p *PartitionSnapshot) Row(clustering []Value) *RowSnapshot {
	if p == nil {
		return nil
	}
	for i := range p.Rows {
		if TupleEqual(p.Rows[i].Clustering, clustering) {
			return &p.Rows[i]
		}
	}
	return nil
}

// IsEmpty reports whether the snapshot holds no rows at all.
func (p *PartitionSnapshot) IsEmpty() bool {
	return p == nil || (p.Static == nil && len(p.Rows) == 0)
}

// Package types provides the core data types shared across the Tessera
// write engine: table schemas, typed cell values and consistency levels.
package types

// ColumnKind classifies a column's role within a table.
type ColumnKind int

const (
	// KindPartitionKey columns determine physical data placement.
	KindPartitionKey ColumnKind = iota

	// KindClustering columns order rows within a partition.
	KindClustering

	// KindRegular columns hold per-row data.
	KindRegular

	// KindStatic columns hold one value shared by all rows of a partition.
	KindStatic
)

func (k ColumnKind) String() string {
	switch k {
	case KindPartitionKey:
		return "partition_key"
	case KindClustering:
		return "clustering"
	case KindRegular:
		return "regular"
	case KindStatic:
		return "static"
	default:
		return "unknown"
	}
}

// ColumnDef defines a single column in a table schema.
type ColumnDef struct {
	// Name is the column name
	Name string `json:"name" yaml:"name"`

	// Kind is the column's role: partition key, clustering, regular, static
	Kind ColumnKind `json:"kind" yaml:"kind"`

	// Type is the column's data type
	Type DataType `json:"type" yaml:"type"`
}

// IsPrimaryKey reports whether the column is part of the primary key.
func (c ColumnDef) IsPrimaryKey() bool {
	return c.Kind == KindPartitionKey || c.Kind == KindClustering
}

// TableSchema describes a table: ordered partition-key columns, ordered
// clustering columns, and the regular/static column set. Schemas are
// immutable and owned by the schema provider; the engine only reads them.
type TableSchema struct {
	// Keyspace is the keyspace the table belongs to
	Keyspace string `json:"keyspace" yaml:"keyspace"`

	// Name is the table name
	Name string `json:"name" yaml:"name"`

	// Columns lists every column in declaration order. Partition-key and
	// clustering columns are ordered by their key position.
	Columns []ColumnDef `json:"columns" yaml:"columns"`

	// Compact marks legacy dense layouts that carry no row marker
	Compact bool `json:"compact,omitempty" yaml:"compact,omitempty"`
}

// PartitionKeyColumns returns the partition-key columns in key order.
func (s *TableSchema) PartitionKeyColumns() []ColumnDef {
	return s.columnsOfKind(KindPartitionKey)
}

// ClusteringColumns returns the clustering columns in key order.
func (s *TableSchema) ClusteringColumns() []ColumnDef {
	return s.columnsOfKind(KindClustering)
}

// RegularColumns returns the regular (non-key, non-static) columns.
func (s *TableSchema) RegularColumns() []ColumnDef {
	return s.columnsOfKind(KindRegular)
}

// StaticColumns returns the static columns.
func (s *TableSchema) StaticColumns() []ColumnDef {
	return s.columnsOfKind(KindStatic)
}

func (s *TableSchema) columnsOfKind(kind ColumnKind) []ColumnDef {
	var defs []ColumnDef
	for _, c := range s.Columns {
		if c.Kind == kind {
			defs = append(defs, c)
		}
	}
	return defs
}

// Column looks up a column definition by name. The second return value
// reports whether the column exists.
func (s *TableSchema) Column(name string) (ColumnDef, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// IsCounter reports whether the table is a counter table.
func (s *TableSchema) IsCounter() bool {
	for _, c := range s.Columns {
		if (c.Kind == KindRegular || c.Kind == KindStatic) && c.Type == TypeCounter {
			return true
		}
	}
	return false
}

// QualifiedName returns "keyspace.table".
func (s *TableSchema) QualifiedName() string {
	return s.Keyspace + "." + s.Name
}

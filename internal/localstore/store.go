// Package localstore is the single-node SQLite-backed store. It serves
// every boundary the engine needs on one node: schema lookup, the plain
// write path, the reconciliation read and the consensus cycle.
package localstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tessera-db/tessera/internal/cas"
	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/internal/keys"
	"github.com/tessera-db/tessera/internal/operation"
	"github.com/tessera-db/tessera/internal/update"
	"github.com/tessera-db/tessera/pkg/types"
)

// Store holds tables, rows and consensus state in one SQLite database.
// Row payloads are Snappy-compressed JSON cell maps keyed by column.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// Open opens (or creates) the store at path. ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("localstore: failed to open database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("localstore: failed to apply %q: %w", pragma, err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS schemas (
			keyspace   TEXT NOT NULL,
			name       TEXT NOT NULL,
			definition BLOB NOT NULL,
			PRIMARY KEY (keyspace, name)
		) WITHOUT ROWID`,
		`CREATE TABLE IF NOT EXISTS rows (
			keyspace   TEXT NOT NULL,
			tbl        TEXT NOT NULL,
			pk         BLOB NOT NULL,
			clustering BLOB NOT NULL,
			static     INTEGER NOT NULL,
			cells      BLOB NOT NULL,
			PRIMARY KEY (keyspace, tbl, pk, static, clustering)
		) WITHOUT ROWID`,
		`CREATE TABLE IF NOT EXISTS paxos (
			keyspace     TEXT NOT NULL,
			tbl          TEXT NOT NULL,
			pk           BLOB NOT NULL,
			ballot_ts    INTEGER NOT NULL,
			ballot_nonce BLOB NOT NULL,
			PRIMARY KEY (keyspace, tbl, pk)
		) WITHOUT ROWID`,
	}
	for _, ddl := range schema {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("localstore: failed to create tables: %w", err)
		}
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTable registers (or replaces) a table schema.
func (s *Store) CreateTable(ctx context.Context, schema *types.TableSchema) error {
	payload, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("localstore: failed to marshal schema: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO schemas (keyspace, name, definition) VALUES (?, ?, ?)`,
		schema.Keyspace, schema.Name, snappy.Encode(nil, payload))
	if err != nil {
		return fmt.Errorf("localstore: failed to store schema: %w", err)
	}
	return nil
}

// Lookup implements engine.SchemaProvider.
func (s *Store) Lookup(keyspace, table string) (*types.TableSchema, error) {
	var compressed []byte
	err := s.db.QueryRow(
		`SELECT definition FROM schemas WHERE keyspace = ? AND name = ?`,
		keyspace, table).Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, errors.NewSchemaError(errors.CodeUnknownTable,
			"unconfigured table %s.%s", keyspace, table)
	}
	if err != nil {
		return nil, fmt.Errorf("localstore: failed to load schema: %w", err)
	}
	payload, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("localstore: failed to decompress schema: %w", err)
	}
	var schema types.TableSchema
	if err := json.Unmarshal(payload, &schema); err != nil {
		return nil, fmt.Errorf("localstore: failed to unmarshal schema: %w", err)
	}
	return &schema, nil
}

// storedCell is one persisted column value with its write metadata.
type storedCell struct {
	Value     types.Value `json:"value"`
	Timestamp int64       `json:"ts"`
	ExpiresAt int64       `json:"expires,omitempty"`
}

type cellMap map[string]storedCell

// Apply implements engine.ReplicationBoundary. On a single node the
// consistency level is validated upstream and has no replica fan-out.
func (s *Store) Apply(ctx context.Context, updates []*update.PartitionUpdate, cl types.ConsistencyLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("localstore: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, upd := range updates {
		if err := s.applyUpdate(ctx, tx, upd); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("localstore: failed to commit: %w", err)
	}
	return nil
}

func (s *Store) applyUpdate(ctx context.Context, tx *sql.Tx, upd *update.PartitionUpdate) error {
	for _, rt := range upd.Ranges {
		if err := s.deleteRange(ctx, tx, upd, rt); err != nil {
			return err
		}
	}
	for _, row := range upd.Rows {
		if err := s.applyRow(ctx, tx, upd, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyRow(ctx context.Context, tx *sql.Tx, upd *update.PartitionUpdate, row update.RowUpdate) error {
	schema := upd.Schema
	pk := []byte(upd.Key.ID())
	ck, err := encodeTuple(row.Clustering)
	if err != nil {
		return err
	}
	static := boolToInt(row.Static)

	if row.Deleted {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM rows WHERE keyspace = ? AND tbl = ? AND pk = ? AND static = ? AND clustering = ?`,
			schema.Keyspace, schema.Name, pk, static, ck)
		if err != nil {
			return fmt.Errorf("localstore: failed to delete row: %w", err)
		}
		return nil
	}

	cells, err := s.loadCells(ctx, tx, schema, pk, static, ck)
	if err != nil {
		return err
	}
	if cells == nil {
		cells = make(cellMap)
	}

	var expiresAt int64
	if row.TTL > 0 {
		expiresAt = s.now().Add(time.Duration(row.TTL) * time.Second).UnixMicro()
	}
	for _, cell := range row.Cells {
		mergeCell(cells, cell, row.Timestamp, expiresAt)
	}

	payload, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("localstore: failed to marshal cells: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO rows (keyspace, tbl, pk, clustering, static, cells) VALUES (?, ?, ?, ?, ?, ?)`,
		schema.Keyspace, schema.Name, pk, ck, static, snappy.Encode(nil, payload))
	if err != nil {
		return fmt.Errorf("localstore: failed to store row: %w", err)
	}
	return nil
}

func (s *Store) loadCells(ctx context.Context, tx *sql.Tx, schema *types.TableSchema, pk []byte, static int, ck []byte) (cellMap, error) {
	var compressed []byte
	err := tx.QueryRowContext(ctx,
		`SELECT cells FROM rows WHERE keyspace = ? AND tbl = ? AND pk = ? AND static = ? AND clustering = ?`,
		schema.Keyspace, schema.Name, pk, static, ck).Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("localstore: failed to load row: %w", err)
	}
	return decodeCells(compressed)
}

func decodeCells(compressed []byte) (cellMap, error) {
	payload, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("localstore: failed to decompress row: %w", err)
	}
	var cells cellMap
	if err := json.Unmarshal(payload, &cells); err != nil {
		return nil, fmt.Errorf("localstore: failed to unmarshal row: %w", err)
	}
	return cells, nil
}

// mergeCell folds one written cell into the stored cell map. Assigns and
// tombstones resolve last-write-wins on timestamp; collection edits and
// counter deltas fold into the current value.
func mergeCell(cells cellMap, c update.Cell, ts, expiresAt int64) {
	cur, exists := cells[c.Column]

	put := func(v types.Value) {
		cells[c.Column] = storedCell{Value: v, Timestamp: ts, ExpiresAt: expiresAt}
	}

	switch c.Kind {
	case operation.CellAssign:
		if !exists || ts >= cur.Timestamp {
			put(c.Value)
		}

	case operation.CellTombstone:
		if !exists || ts >= cur.Timestamp {
			delete(cells, c.Column)
		}

	case operation.CellListAppend:
		base := currentList(cur, exists)
		put(types.Value{Type: c.Value.Type, List: append(base, c.Value.List...)})

	case operation.CellListPrepend:
		base := currentList(cur, exists)
		merged := make([]types.Value, 0, len(c.Value.List)+len(base))
		merged = append(merged, c.Value.List...)
		merged = append(merged, base...)
		put(types.Value{Type: c.Value.Type, List: merged})

	case operation.CellSetAdd:
		base := currentList(cur, exists)
		for _, elem := range c.Value.List {
			if !containsValue(base, elem) {
				base = append(base, elem)
			}
		}
		put(types.Value{Type: types.TypeSet, List: base})

	case operation.CellSetRemove:
		base := currentList(cur, exists)
		kept := base[:0]
		for _, elem := range base {
			if !containsValue(c.Value.List, elem) {
				kept = append(kept, elem)
			}
		}
		put(types.Value{Type: types.TypeSet, List: kept})

	case operation.CellMapPut:
		var base []types.MapEntry
		if exists && !cur.Value.IsNull {
			base = append(base, cur.Value.Map...)
		}
		for _, entry := range c.Value.Map {
			replaced := false
			for i := range base {
				if base[i].Key.Equal(entry.Key) {
					base[i].Value = entry.Value
					replaced = true
					break
				}
			}
			if !replaced {
				base = append(base, entry)
			}
		}
		put(types.Value{Type: types.TypeMap, Map: base})

	case operation.CellCounterDelta:
		total := c.Value.Int
		if exists && !cur.Value.IsNull {
			total += cur.Value.Int
		}
		put(types.NewCounter(total))
	}
}

func currentList(cur storedCell, exists bool) []types.Value {
	if !exists || cur.Value.IsNull {
		return nil
	}
	base := make([]types.Value, len(cur.Value.List))
	copy(base, cur.Value.List)
	return base
}

func containsValue(list []types.Value, v types.Value) bool {
	for _, elem := range list {
		if elem.Equal(v) {
			return true
		}
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeTuple(tuple []types.Value) ([]byte, error) {
	if tuple == nil {
		tuple = []types.Value{}
	}
	payload, err := json.Marshal(tuple)
	if err != nil {
		return nil, fmt.Errorf("localstore: failed to encode clustering tuple: %w", err)
	}
	return payload, nil
}

func decodeTuple(payload []byte) ([]types.Value, error) {
	var tuple []types.Value
	if err := json.Unmarshal(payload, &tuple); err != nil {
		return nil, fmt.Errorf("localstore: failed to decode clustering tuple: %w", err)
	}
	return tuple, nil
}

// deleteRange removes every regular row of the partition whose clustering
// tuple falls inside the tombstoned slice. A slice with no prefix and open
// bounds tombstones the whole partition, static row included.
func (s *Store) deleteRange(ctx context.Context, tx *sql.Tx, upd *update.PartitionUpdate, rt update.RangeTombstone) error {
	schema := upd.Schema
	pk := []byte(upd.Key.ID())

	if coversPartition(rt.Slice) {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM rows WHERE keyspace = ? AND tbl = ? AND pk = ?`,
			schema.Keyspace, schema.Name, pk)
		if err != nil {
			return fmt.Errorf("localstore: failed to delete partition: %w", err)
		}
		return nil
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT clustering FROM rows WHERE keyspace = ? AND tbl = ? AND pk = ? AND static = 0`,
		schema.Keyspace, schema.Name, pk)
	if err != nil {
		return fmt.Errorf("localstore: failed to scan partition: %w", err)
	}
	var victims [][]byte
	for rows.Next() {
		var ck []byte
		if err := rows.Scan(&ck); err != nil {
			rows.Close()
			return fmt.Errorf("localstore: failed to scan clustering: %w", err)
		}
		tuple, err := decodeTuple(ck)
		if err != nil {
			rows.Close()
			return err
		}
		in, err := sliceContains(rt.Slice, tuple)
		if err != nil {
			rows.Close()
			return err
		}
		if in {
			victims = append(victims, ck)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("localstore: partition scan failed: %w", err)
	}
	rows.Close()

	for _, ck := range victims {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM rows WHERE keyspace = ? AND tbl = ? AND pk = ? AND static = 0 AND clustering = ?`,
			schema.Keyspace, schema.Name, pk, ck)
		if err != nil {
			return fmt.Errorf("localstore: failed to delete range row: %w", err)
		}
	}
	return nil
}

// coversPartition reports whether the slice spans every row of the
// partition.
func coversPartition(sl keys.Slice) bool {
	return len(sl.Prefix) == 0 && sl.Start.Unbounded && sl.End.Unbounded
}

// sliceContains reports whether the clustering tuple falls inside the
// slice: it must extend the slice's fixed prefix and sit within the bound
// pair on the first unfixed component.
func sliceContains(sl keys.Slice, clustering []types.Value) (bool, error) {
	if len(clustering) < len(sl.Prefix) {
		return false, nil
	}
	if !types.TupleEqual(sl.Prefix, clustering[:len(sl.Prefix)]) {
		return false, nil
	}
	rest := clustering[len(sl.Prefix):]
	if len(rest) == 0 {
		return true, nil
	}
	next := rest[0]

	if !sl.Start.Unbounded {
		c, err := next.Compare(sl.Start.Value)
		if err != nil {
			return false, fmt.Errorf("localstore: unorderable slice bound: %w", err)
		}
		if c < 0 || (c == 0 && !sl.Start.Inclusive) {
			return false, nil
		}
	}
	if !sl.End.Unbounded {
		c, err := next.Compare(sl.End.Value)
		if err != nil {
			return false, fmt.Errorf("localstore: unorderable slice bound: %w", err)
		}
		if c > 0 || (c == 0 && !sl.End.Inclusive) {
			return false, nil
		}
	}
	return true, nil
}

// ReadPartition implements reconcile.Reader.
func (s *Store) ReadPartition(ctx context.Context, schema *types.TableSchema, key keys.PartitionKey, sel keys.ClusteringSelector, columns []string, cl types.ConsistencyLevel) (*types.PartitionSnapshot, error) {
	return s.readPartition(ctx, schema, key, sel, columns)
}

// LinearizableRead implements cas.ConsensusBoundary's read half. With a
// single node the local read is already linearizable under the store lock.
func (s *Store) LinearizableRead(ctx context.Context, schema *types.TableSchema, key keys.PartitionKey, sel keys.ClusteringSelector) (*types.PartitionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readPartition(ctx, schema, key, sel, nil)
}

func (s *Store) readPartition(ctx context.Context, schema *types.TableSchema, key keys.PartitionKey, sel keys.ClusteringSelector, columns []string) (*types.PartitionSnapshot, error) {
	pk := []byte(key.ID())
	rows, err := s.db.QueryContext(ctx,
		`SELECT clustering, static, cells FROM rows WHERE keyspace = ? AND tbl = ? AND pk = ?`,
		schema.Keyspace, schema.Name, pk)
	if err != nil {
		return nil, fmt.Errorf("localstore: failed to read partition: %w", err)
	}
	defer rows.Close()

	nowMicros := s.now().UnixMicro()
	snapshot := &types.PartitionSnapshot{}
	for rows.Next() {
		var ck, compressed []byte
		var static int
		if err := rows.Scan(&ck, &static, &compressed); err != nil {
			return nil, fmt.Errorf("localstore: failed to scan row: %w", err)
		}
		tuple, err := decodeTuple(ck)
		if err != nil {
			return nil, err
		}
		cells, err := decodeCells(compressed)
		if err != nil {
			return nil, err
		}

		row := types.RowSnapshot{Cells: liveCells(cells, columns, nowMicros)}
		if static == 1 {
			snapshot.Static = &row
			continue
		}
		row.Clustering = tuple

		selected, err := rowSelected(sel, tuple)
		if err != nil {
			return nil, err
		}
		if selected {
			snapshot.Rows = append(snapshot.Rows, row)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("localstore: partition read failed: %w", err)
	}

	sort.SliceStable(snapshot.Rows, func(i, j int) bool {
		c, err := types.TupleCompare(snapshot.Rows[i].Clustering, snapshot.Rows[j].Clustering)
		return err == nil && c < 0
	})
	return snapshot, nil
}

func rowSelected(sel keys.ClusteringSelector, tuple []types.Value) (bool, error) {
	switch sel.Kind {
	case keys.SelectStatic:
		return false, nil
	case keys.SelectSlice:
		return sliceContains(sel.Slice, tuple)
	default:
		for _, want := range sel.Rows {
			if types.TupleEqual(want, tuple) {
				return true, nil
			}
		}
		return false, nil
	}
}

// liveCells projects the stored cells onto the requested columns, dropping
// expired ones. A nil column list keeps everything.
func liveCells(cells cellMap, columns []string, nowMicros int64) map[string]types.Value {
	out := make(map[string]types.Value, len(cells))
	for name, cell := range cells {
		if cell.ExpiresAt > 0 && cell.ExpiresAt <= nowMicros {
			continue
		}
		if columns != nil && !containsString(columns, name) {
			continue
		}
		out[name] = cell.Value
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Propose implements cas.ConsensusBoundary's commit half: the proposal is
// accepted and applied unless a higher ballot has already been promised
// for the partition.
func (s *Store) Propose(ctx context.Context, ballot cas.Ballot, upd *update.PartitionUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("localstore: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	schema := upd.Schema
	pk := []byte(upd.Key.ID())

	var storedTS int64
	var storedNonce []byte
	err = tx.QueryRowContext(ctx,
		`SELECT ballot_ts, ballot_nonce FROM paxos WHERE keyspace = ? AND tbl = ? AND pk = ?`,
		schema.Keyspace, schema.Name, pk).Scan(&storedTS, &storedNonce)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("localstore: failed to load ballot: %w", err)
	}
	if err == nil {
		if storedTS > ballot.Timestamp ||
			(storedTS == ballot.Timestamp && bytes.Compare(storedNonce, ballot.Nonce[:]) > 0) {
			return false, nil
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO paxos (keyspace, tbl, pk, ballot_ts, ballot_nonce) VALUES (?, ?, ?, ?, ?)`,
		schema.Keyspace, schema.Name, pk, ballot.Timestamp, ballot.Nonce[:])
	if err != nil {
		return false, fmt.Errorf("localstore: failed to store ballot: %w", err)
	}

	if err := s.applyUpdate(ctx, tx, upd); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("localstore: failed to commit proposal: %w", err)
	}
	return true, nil
}

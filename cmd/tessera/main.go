// Package main implements the tessera binary: a single-node runner for
// the write engine. It registers table schemas and executes JSON-described
// write statements against the local store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/tessera-db/tessera/internal/cas"
	"github.com/tessera-db/tessera/internal/config"
	"github.com/tessera-db/tessera/internal/engine"
	"github.com/tessera-db/tessera/internal/keys"
	"github.com/tessera-db/tessera/internal/localstore"
	"github.com/tessera-db/tessera/internal/operation"
	"github.com/tessera-db/tessera/internal/result"
	"github.com/tessera-db/tessera/pkg/types"
)

type flags struct {
	configPath  string
	envPath     string
	createTable string
	execPath    string
	consistency string
}

func main() {
	f := parseFlags()

	if f.envPath != "" {
		if err := godotenv.Load(f.envPath); err != nil {
			log.Fatalf("Failed to load env file %s: %v", f.envPath, err)
		}
	}

	cfg := config.DefaultConfig()
	if f.configPath != "" {
		loaded, err := config.LoadFromFile(f.configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to prepare data directory: %v", err)
	}

	store, err := localstore.Open(cfg.StorePath())
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()
	log.Printf("Store opened at: %s", cfg.StorePath())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Execution.RequestTimeout)
	defer cancel()

	if f.createTable != "" {
		if err := createTable(ctx, store, f.createTable); err != nil {
			log.Fatalf("Failed to create table: %v", err)
		}
		return
	}
	if f.execPath == "" {
		log.Fatalf("Nothing to do: pass -create-table or -exec")
	}

	cl := cfg.Execution.DefaultConsistency
	if f.consistency != "" {
		cl = types.ConsistencyLevel(strings.ToUpper(f.consistency))
	}

	eng := engine.New(store, store, store, store, nil)
	if err := execStatements(ctx, eng, f.execPath, engine.Options{
		Consistency:       cl,
		SerialConsistency: cfg.Execution.SerialConsistency,
	}); err != nil {
		log.Fatalf("Execution failed: %v", err)
	}
}

func parseFlags() flags {
	f := flags{}
	flag.StringVar(&f.configPath, "config", "", "Path to config file (YAML or JSON)")
	flag.StringVar(&f.envPath, "env", "", "Path to .env file with TESSERA_ overrides")
	flag.StringVar(&f.createTable, "create-table", "", "Path to a table schema JSON file to register")
	flag.StringVar(&f.execPath, "exec", "", "Path to a JSON file of statements to execute")
	flag.StringVar(&f.consistency, "consistency", "", "Consistency level override")
	flag.Parse()
	return f
}

func createTable(ctx context.Context, store *localstore.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	var schema types.TableSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return fmt.Errorf("failed to parse schema file: %w", err)
	}
	if err := store.CreateTable(ctx, &schema); err != nil {
		return err
	}
	log.Printf("Registered table %s", schema.QualifiedName())
	return nil
}

// statementDoc is the JSON wire form of one write statement.
type statementDoc struct {
	Kind     string         `json:"kind"`
	Keyspace string         `json:"keyspace"`
	Table    string         `json:"table"`
	Where    []whereDoc     `json:"where"`
	Set      []operationDoc `json:"set"`
	If       *conditionDoc  `json:"if"`

	Timestamp *int64 `json:"timestamp"`
	TTL       int32  `json:"ttl"`
}

type whereDoc struct {
	Column string        `json:"column"`
	Op     string        `json:"op"`
	Value  *types.Value  `json:"value"`
	Values []types.Value `json:"values"`
}

type operationDoc struct {
	Column string       `json:"column"`
	Op     string       `json:"op"`
	Value  *types.Value `json:"value"`
	Index  int          `json:"index"`
}

type conditionDoc struct {
	Exists    bool           `json:"exists"`
	NotExists bool           `json:"not_exists"`
	Columns   []columnCondDoc `json:"columns"`
}

type columnCondDoc struct {
	Column string      `json:"column"`
	Op     string      `json:"op"`
	Value  types.Value `json:"value"`
}

func execStatements(ctx context.Context, eng *engine.Engine, path string, opts engine.Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read statements file: %w", err)
	}
	var docs []statementDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("failed to parse statements file: %w", err)
	}

	for i, doc := range docs {
		stmt, err := buildStatement(eng, doc)
		if err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
		rs, err := eng.Execute(ctx, stmt, opts)
		if err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
		printResult(i, rs)
	}
	return nil
}

func buildStatement(eng *engine.Engine, doc statementDoc) (*engine.Statement, error) {
	kind, err := statementKind(doc.Kind)
	if err != nil {
		return nil, err
	}
	schema, err := lookupSchema(eng, doc)
	if err != nil {
		return nil, err
	}

	restrictions := make([]keys.Restriction, 0, len(doc.Where))
	for _, w := range doc.Where {
		r, err := buildRestriction(w)
		if err != nil {
			return nil, err
		}
		restrictions = append(restrictions, r)
	}

	ops := make([]operation.Operation, 0, len(doc.Set))
	for _, o := range doc.Set {
		op, err := buildOperation(schema, o)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}

	conds, err := buildConditions(schema, doc.If)
	if err != nil {
		return nil, err
	}

	return engine.NewStatement(kind, schema,
		keys.NewRestrictionSet(restrictions...),
		operation.NewSet(ops...),
		conds,
		engine.Attributes{Timestamp: doc.Timestamp, TTL: doc.TTL})
}

// lookupSchema goes through the engine's schema provider so unknown
// tables fail with the engine's own error.
func lookupSchema(eng *engine.Engine, doc statementDoc) (*types.TableSchema, error) {
	stmt, err := eng.Prepare(engine.StatementUpdate, doc.Keyspace, doc.Table,
		keys.NewRestrictionSet(), nil, cas.NoConditions(), engine.Attributes{})
	if err != nil {
		return nil, err
	}
	return stmt.Schema, nil
}

func statementKind(kind string) (engine.StatementKind, error) {
	switch strings.ToLower(kind) {
	case "insert":
		return engine.StatementInsert, nil
	case "update":
		return engine.StatementUpdate, nil
	case "delete":
		return engine.StatementDelete, nil
	default:
		return 0, fmt.Errorf("unknown statement kind %q", kind)
	}
}

func buildRestriction(w whereDoc) (keys.Restriction, error) {
	switch strings.ToLower(w.Op) {
	case "eq", "":
		if w.Value == nil {
			return keys.Restriction{}, fmt.Errorf("eq restriction on %s needs a value", w.Column)
		}
		return keys.EQ(w.Column, *w.Value), nil
	case "in":
		return keys.IN(w.Column, w.Values...), nil
	case "gt", "gte", "lt", "lte":
		if w.Value == nil {
			return keys.Restriction{}, fmt.Errorf("range restriction on %s needs a value", w.Column)
		}
		switch strings.ToLower(w.Op) {
		case "gt":
			return keys.Range(w.Column, keys.GT(*w.Value), keys.Open()), nil
		case "gte":
			return keys.Range(w.Column, keys.GTE(*w.Value), keys.Open()), nil
		case "lt":
			return keys.Range(w.Column, keys.Open(), keys.LT(*w.Value)), nil
		default:
			return keys.Range(w.Column, keys.Open(), keys.LTE(*w.Value)), nil
		}
	default:
		return keys.Restriction{}, fmt.Errorf("unknown restriction op %q on %s", w.Op, w.Column)
	}
}

func buildOperation(schema *types.TableSchema, o operationDoc) (operation.Operation, error) {
	col, ok := schema.Column(o.Column)
	if !ok {
		return operation.Operation{}, fmt.Errorf("unknown column %q", o.Column)
	}

	var kind operation.Kind
	switch strings.ToLower(o.Op) {
	case "set", "":
		kind = operation.OpSet
	case "list_append":
		kind = operation.OpListAppend
	case "list_prepend":
		kind = operation.OpListPrepend
	case "list_remove":
		kind = operation.OpListRemoveByValue
	case "list_set_index":
		kind = operation.OpListSetByIndex
	case "list_discard_index":
		kind = operation.OpListDiscardByIndex
	case "map_put":
		kind = operation.OpMapPut
	case "set_add":
		kind = operation.OpSetAdd
	case "set_remove":
		kind = operation.OpSetRemove
	case "incr":
		kind = operation.OpCounterIncrement
	default:
		return operation.Operation{}, fmt.Errorf("unknown operation %q on %s", o.Op, o.Column)
	}

	value := types.Null(col.Type)
	if o.Value != nil {
		value = *o.Value
	}
	return operation.Operation{Column: col, Kind: kind, Value: value, Index: o.Index}, nil
}

func buildConditions(schema *types.TableSchema, doc *conditionDoc) (cas.Conditions, error) {
	if doc == nil {
		return cas.NoConditions(), nil
	}
	if doc.Exists {
		return cas.IfExists(), nil
	}
	if doc.NotExists {
		return cas.IfNotExists(), nil
	}

	conds := make([]cas.ColumnCondition, 0, len(doc.Columns))
	for _, c := range doc.Columns {
		col, ok := schema.Column(c.Column)
		if !ok {
			return cas.Conditions{}, fmt.Errorf("unknown condition column %q", c.Column)
		}
		op, err := conditionOperator(c.Op)
		if err != nil {
			return cas.Conditions{}, err
		}
		conds = append(conds, cas.ColumnCondition{Column: col, Operator: op, Expected: c.Value})
	}
	return cas.IfColumns(conds...), nil
}

func conditionOperator(op string) (cas.ConditionOperator, error) {
	switch op {
	case "=", "eq", "":
		return cas.OpEQ, nil
	case "!=", "ne":
		return cas.OpNE, nil
	case "<", "lt":
		return cas.OpLT, nil
	case "<=", "le":
		return cas.OpLE, nil
	case ">", "gt":
		return cas.OpGT, nil
	case ">=", "ge":
		return cas.OpGE, nil
	default:
		return "", fmt.Errorf("unknown condition operator %q", op)
	}
}

func printResult(i int, rs *result.ResultSet) {
	if rs == nil {
		log.Printf("statement %d: applied", i)
		return
	}
	for _, row := range rs.Rows {
		parts := make([]string, len(rs.Columns))
		for j, col := range rs.Columns {
			parts[j] = fmt.Sprintf("%s=%s", col.Name, row[j])
		}
		log.Printf("statement %d: %s", i, strings.Join(parts, " "))
	}
}

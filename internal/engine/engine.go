// Package engine executes validated write statements: it resolves the
// target keys, performs any required pre-write read, builds the
// per-partition mutations and routes them through the plain replication
// path or the conditional consensus path.
package engine

import (
	"context"
	"log"
	"time"

	"github.com/tessera-db/tessera/internal/cas"
	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/internal/keys"
	"github.com/tessera-db/tessera/internal/operation"
	"github.com/tessera-db/tessera/internal/reconcile"
	"github.com/tessera-db/tessera/internal/result"
	"github.com/tessera-db/tessera/internal/update"
	"github.com/tessera-db/tessera/pkg/types"
)

// SchemaProvider resolves table schemas by name. Lookup returns an error
// carrying CodeUnknownTable when the table does not exist.
type SchemaProvider interface {
	Lookup(keyspace, table string) (*types.TableSchema, error)
}

// ReplicationBoundary is the unconditional write path: it distributes the
// built mutations to replicas at the requested consistency level.
type ReplicationBoundary interface {
	Apply(ctx context.Context, updates []*update.PartitionUpdate, cl types.ConsistencyLevel) error
}

// Options carry the per-execution settings of one statement run.
type Options struct {
	// Consistency is the write (or CAS commit) consistency level.
	Consistency types.ConsistencyLevel

	// SerialConsistency orders the CAS rounds of conditional statements.
	// Empty defaults to SERIAL; ignored for plain writes.
	SerialConsistency types.ConsistencyLevel
}

// Engine executes write statements against the boundaries it is wired to.
type Engine struct {
	schemas     SchemaProvider
	replication ReplicationBoundary
	reconciler  *reconcile.Reconciler
	executor    *cas.Executor
	triggers    update.TriggerHook
	now         func() time.Time
}

// New wires an engine. reader and consensus may be the same object when
// one store serves both paths; triggers may be nil.
func New(schemas SchemaProvider, replication ReplicationBoundary,
	reader reconcile.Reader, consensus cas.ConsensusBoundary,
	triggers update.TriggerHook) *Engine {

	return &Engine{
		schemas:     schemas,
		replication: replication,
		reconciler:  reconcile.New(reader),
		executor:    cas.NewExecutor(consensus, triggers),
		triggers:    triggers,
		now:         time.Now,
	}
}

// Prepare looks up the table and validates a statement against it.
func (e *Engine) Prepare(kind StatementKind, keyspace, table string,
	restrictions keys.RestrictionSet, ops *operation.Set,
	conds cas.Conditions, attrs Attributes) (*Statement, error) {

	schema, err := e.schemas.Lookup(keyspace, table)
	if err != nil {
		return nil, err
	}
	return NewStatement(kind, schema, restrictions, ops, conds, attrs)
}

// Execute runs one statement. Unconditional writes return a nil result
// set; conditional writes always return the applied flag, plus the
// rejecting row state on failure.
func (e *Engine) Execute(ctx context.Context, stmt *Statement, opts Options) (*result.ResultSet, error) {
	if opts.Consistency == "" {
		return nil, errors.NewValidationError(errors.CodeEmptyConsistency,
			"invalid empty consistency level")
	}

	resolver := keys.NewResolver(stmt.Schema)
	pks, err := resolver.PartitionKeys(stmt.Restrictions)
	if err != nil {
		return nil, err
	}
	sel, err := resolver.Clustering(stmt.Restrictions, stmt.clusteringOptions())
	if err != nil {
		return nil, err
	}

	if stmt.HasConditions() {
		return e.executeConditional(ctx, stmt, pks, sel, opts)
	}
	if err := e.executePlain(ctx, stmt, pks, sel, opts.Consistency); err != nil {
		return nil, err
	}
	return nil, nil
}

func (e *Engine) executePlain(ctx context.Context, stmt *Statement,
	pks []keys.PartitionKey, sel keys.ClusteringSelector, cl types.ConsistencyLevel) error {

	if stmt.Schema.IsCounter() {
		if err := cl.ValidateCounterForWrite(); err != nil {
			return errors.NewValidationError(errors.CodeInvalidConsistency, "%v", err)
		}
	} else if err := cl.ValidateForWrite(); err != nil {
		return errors.NewValidationError(errors.CodeInvalidConsistency, "%v", err)
	}

	params := update.Params{
		Operations: stmt.Operations,
		DeleteRow:  stmt.DeleteRow(),
		Timestamp:  e.writeTimestamp(stmt),
		TTL:        stmt.Attributes.TTL,
	}

	if stmt.Operations.RequiresRead() {
		prior, err := e.reconciler.Fetch(ctx, stmt.Schema, pks, sel, stmt.Operations.ReadColumns(), cl)
		if err != nil {
			return err
		}
		params.Prior = prior
		params.HasPrior = true
	}

	updates, err := update.Build(stmt.Schema, pks, sel, params)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}
	if e.triggers != nil {
		for i, upd := range updates {
			augmented, err := e.triggers(upd)
			if err != nil {
				return errors.NewExecutionError(errors.CodeUnavailable, "trigger hook failed", err)
			}
			updates[i] = augmented
		}
	}

	if err := e.replication.Apply(ctx, updates, cl); err != nil {
		return errors.NewBoundaryError(errors.CodeUnavailable, "write failed", err)
	}
	log.Printf("engine: applied %s to %d partition(s) of %s at %s",
		stmt.Kind, len(updates), stmt.Schema.QualifiedName(), cl)
	return nil
}

func (e *Engine) executeConditional(ctx context.Context, stmt *Statement,
	pks []keys.PartitionKey, sel keys.ClusteringSelector, opts Options) (*result.ResultSet, error) {

	if err := opts.Consistency.ValidateForWrite(); err != nil {
		return nil, errors.NewValidationError(errors.CodeInvalidConsistency, "%v", err)
	}
	serial := opts.SerialConsistency
	if serial == "" {
		serial = types.ConsistencySerial
	}
	if !serial.IsSerial() {
		return nil, errors.NewValidationError(errors.CodeInvalidConsistency,
			"invalid consistency for conditional update, must be one of SERIAL or LOCAL_SERIAL but was %s", serial)
	}

	req, err := cas.NewRequest(stmt.Schema, pks, sel, stmt.Conditions,
		stmt.Operations, stmt.DeleteRow(), stmt.Attributes.TTL)
	if err != nil {
		return nil, err
	}

	outcome, err := e.executor.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Printf("engine: conditional %s on %s applied=%v",
		stmt.Kind, stmt.Schema.QualifiedName(), outcome.Applied)
	return result.ForCasOutcome(stmt.Schema, req.Key, stmt.Conditions, outcome), nil
}

// writeTimestamp picks the statement's write timestamp: the client's
// explicit choice when given, the coordinator clock otherwise.
func (e *Engine) writeTimestamp(stmt *Statement) int64 {
	if stmt.Attributes.Timestamp != nil {
		return *stmt.Attributes.Timestamp
	}
	return e.now().UnixMicro()
}

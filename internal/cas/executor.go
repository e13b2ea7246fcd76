package cas

import (
	"context"

	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/internal/keys"
	"github.com/tessera-db/tessera/internal/update"
	"github.com/tessera-db/tessera/pkg/types"
)

// ConsensusBoundary is the consensus layer the executor drives: a
// linearizable read of one row's full current state, and a single-round
// proposal ordered by ballot. The multi-phase promise protocol, if any,
// lives behind this interface.
type ConsensusBoundary interface {
	// LinearizableRead returns the current state of the selected row
	// under consensus. The snapshot holds at most the static row and the
	// one selected regular row.
	LinearizableRead(ctx context.Context, schema *types.TableSchema, key keys.PartitionKey, sel keys.ClusteringSelector) (*types.PartitionSnapshot, error)

	// Propose submits the update under the ballot. It returns false when
	// the proposal was superseded by a higher ballot.
	Propose(ctx context.Context, ballot Ballot, upd *update.PartitionUpdate) (bool, error)
}

// Outcome is the result of one CAS cycle. On rejection, Evidence carries
// the row state that made the conditions fail (nil when the row does not
// exist).
type Outcome struct {
	Applied  bool
	Evidence *types.RowSnapshot
}

// Executor runs the read-evaluate-commit cycle of a conditional
// statement. The cycle is abortable until the proposal is submitted;
// after that the outcome is always observed.
type Executor struct {
	consensus ConsensusBoundary
	ballots   *BallotGenerator
	triggers  update.TriggerHook
}

// NewExecutor creates an executor. triggers may be nil.
func NewExecutor(consensus ConsensusBoundary, triggers update.TriggerHook) *Executor {
	return &Executor{
		consensus: consensus,
		ballots:   NewBallotGenerator(),
		triggers:  triggers,
	}
}

// Execute runs one CAS cycle for the request. The consensus read doubles
// as the prior-value snapshot for read-dependent operations, so the
// conditional path never performs a separate reconciliation read.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Outcome, error) {
	// Reading
	snapshot, err := e.consensus.LinearizableRead(ctx, req.Schema, req.Key, req.selector())
	if err != nil {
		return nil, errors.NewBoundaryError(errors.CodeUnavailable, "consensus read failed", err)
	}
	row, err := targetRow(req, snapshot)
	if err != nil {
		return nil, err
	}

	// Evaluating
	ok, err := req.Conditions.Evaluate(row)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Outcome{Applied: false, Evidence: row}, nil
	}

	// Proposing. The ballot's timestamp is the mutation's write
	// timestamp, so a committed proposal is ordered exactly like its
	// ballot.
	ballot := e.ballots.Next()
	upd, err := e.buildUpdate(req, snapshot, ballot.Timestamp)
	if err != nil {
		return nil, err
	}
	if e.triggers != nil {
		augmented, err := e.triggers(upd)
		if err != nil {
			return nil, errors.NewExecutionError(errors.CodeUnavailable, "trigger hook failed", err)
		}
		if augmented.Key.ID() != upd.Key.ID() {
			return nil, errors.NewInvariantError(errors.CodeUnexpected,
				"trigger hook changed the target partition key")
		}
		upd = augmented
	}

	// Last abort point: once the proposal goes out we must observe its
	// outcome.
	if err := ctx.Err(); err != nil {
		return nil, errors.NewExecutionError(errors.CodeTimeout, "cas cycle cancelled before proposing", err)
	}

	accepted, err := e.consensus.Propose(ctx, ballot, upd)
	if err != nil {
		return nil, errors.NewBoundaryError(errors.CodeUnavailable, "consensus proposal failed", err)
	}
	if !accepted {
		// Superseded by a competing ballot: the condition may have
		// changed, so reread and report a normal rejection.
		return e.rejectedAfterSupersede(ctx, req)
	}

	// Committed
	return &Outcome{Applied: true}, nil
}

func (e *Executor) rejectedAfterSupersede(ctx context.Context, req *Request) (*Outcome, error) {
	snapshot, err := e.consensus.LinearizableRead(ctx, req.Schema, req.Key, req.selector())
	if err != nil {
		return nil, errors.NewBoundaryError(errors.CodeProposalSuperseded,
			"proposal superseded and reread failed", err)
	}
	row, err := targetRow(req, snapshot)
	if err != nil {
		return nil, err
	}
	return &Outcome{Applied: false, Evidence: row}, nil
}

func (e *Executor) buildUpdate(req *Request, snapshot *types.PartitionSnapshot, timestamp int64) (*update.PartitionUpdate, error) {
	params := update.Params{
		Operations: req.Operations,
		DeleteRow:  req.DeleteRow,
		Timestamp:  timestamp,
		TTL:        req.TTL,
		Prior:      map[string]*types.PartitionSnapshot{req.Key.ID(): snapshot},
		HasPrior:   true,
	}
	updates, err := update.Build(req.Schema, []keys.PartitionKey{req.Key}, req.selector(), params)
	if err != nil {
		return nil, err
	}
	if len(updates) != 1 {
		return nil, errors.NewInvariantError(errors.CodeUnexpected,
			"cas build produced %d partition updates, want exactly 1", len(updates))
	}
	return updates[0], nil
}

// targetRow extracts the single row the request addresses from the read
// snapshot, enforcing the single-row invariant.
func targetRow(req *Request, snapshot *types.PartitionSnapshot) (*types.RowSnapshot, error) {
	if snapshot == nil {
		return nil, nil
	}
	if len(snapshot.Rows) > 1 {
		return nil, errors.NewInvariantError(errors.CodeMultipleSnapshots,
			"consensus read returned %d rows for a single-row cas request", len(snapshot.Rows))
	}
	if req.Static {
		return snapshot.Static, nil
	}
	return snapshot.Row(req.Clustering), nil
}

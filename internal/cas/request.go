package cas

import (
	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/internal/keys"
	"github.com/tessera-db/tessera/internal/operation"
	"github.com/tessera-db/tessera/pkg/types"
)

// Request is one compare-and-swap cycle's input: exactly one partition
// key, at most one clustering row, the conditions to check, and the
// pending update to commit when they hold. Built fresh per execution.
type Request struct {
	Schema *types.TableSchema
	Key    keys.PartitionKey

	// Clustering is the single target row's clustering tuple; ignored
	// when Static is set.
	Clustering []types.Value
	Static     bool

	Conditions Conditions
	Operations *operation.Set

	// DeleteRow marks conditional deletes with no column operations.
	DeleteRow bool

	// TTL is the cell time-to-live in seconds; zero means no expiry.
	TTL int32
}

// NewRequest validates the single-row invariant and builds the request.
// Multi-key (IN) and slice selections are incompatible with conditional
// statements and are rejected before any network interaction.
func NewRequest(schema *types.TableSchema,
	pks []keys.PartitionKey,
	sel keys.ClusteringSelector,
	conds Conditions,
	ops *operation.Set,
	deleteRow bool,
	ttl int32) (*Request, error) {

	if len(pks) != 1 {
		return nil, errors.NewValidationError(errors.CodeCasMultiRowUnsupported,
			"IN on the partition key is not supported with conditional statements")
	}

	req := &Request{
		Schema:     schema,
		Key:        pks[0],
		Conditions: conds,
		Operations: ops,
		DeleteRow:  deleteRow,
		TTL:        ttl,
	}

	switch sel.Kind {
	case keys.SelectStatic:
		req.Static = true
	case keys.SelectRows:
		if len(sel.Rows) != 1 {
			return nil, errors.NewValidationError(errors.CodeCasMultiRowUnsupported,
				"IN on clustering columns is not supported with conditional statements")
		}
		req.Clustering = sel.Rows[0]
	default:
		return nil, errors.NewValidationError(errors.CodeCasMultiRowUnsupported,
			"range selections are not supported with conditional statements")
	}

	return req, nil
}

// selector returns the single-row clustering selector of the request.
func (r *Request) selector() keys.ClusteringSelector {
	if r.Static {
		return keys.StaticSelector()
	}
	return keys.RowSelector(r.Clustering)
}

package stage

import (
	"context"

	"ticketsync/internal/ledger"
)

// Processor describes the contract the worker pool needs from each stage.
//
// Process runs outside the ledger lock and returns the terminal status to
// commit for id. A returned error is logged by the pool and committed as
// Empty. Evaluate inspects local artifacts only and is used by the finalizer
// to resolve abandoned claims.
type Processor interface {
	Stage() ledger.Stage
	Process(ctx context.Context, id int64) (ledger.Status, error)
	Evaluate(ctx context.Context, id int64) ledger.Status
	HealthCheck(ctx context.Context) Health
}

// Evaluator adapts p to the ledger finalizer callback.
func Evaluator(p Processor) ledger.Evaluator {
	return p.Evaluate
}

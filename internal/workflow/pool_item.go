package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ticketsync/internal/ledger"
	"ticketsync/internal/logging"
	"ticketsync/internal/services"
)

// processItem runs the stage for one claimed ticket and commits its outcome.
func (p *Pool) processItem(ctx context.Context, worker int, id int64) {
	itemCtx := services.WithRequestID(services.WithItemID(ctx, id), uuid.NewString())
	logger := logging.WithContext(itemCtx, p.logger)
	p.recordClaim(id)

	start := time.Now()
	logger.Debug("ticket claimed", logging.String(logging.FieldEventType, "claim"))
	status, err := p.safeProcess(itemCtx, id)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("interrupted; claim left for the finalizer",
				logging.String(logging.FieldEventType, "claim_interrupted"),
				logging.Error(err),
			)
			return
		}
		logging.WarnWithContext(logger, "stage failed; recording empty", "stage_failure",
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "rerun the stage after clearing the ticket's status to retry"),
			logging.String(logging.FieldImpact, "ticket is recorded as having nothing to enrich"),
		)
		p.setLastError(err)
		status = ledger.Empty()
	}
	status = ledger.Resolve(status)

	if err := p.store.SetStatus(itemCtx, id, p.Stage(), status); err != nil {
		p.setLastError(err)
		if ctx.Err() != nil {
			return
		}
		logging.ErrorWithContext(logger, "failed to commit stage outcome", "commit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the finalizer resolves this claim when the pool exits"),
		)
		return
	}
	p.recordOutcome(status, err != nil)
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("status", status.String()),
		logging.Duration("stage_duration", time.Since(start)),
	)
}

// safeProcess converts a processor panic into an error.
func (p *Pool) safeProcess(ctx context.Context, id int64) (status ledger.Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			status = ledger.Empty()
			err = fmt.Errorf("stage %s panicked on ticket %d: %v", p.Stage(), id, r)
		}
	}()
	return p.proc.Process(ctx, id)
}

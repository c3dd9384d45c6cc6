package workflow

import (
	"context"
	"log/slog"

	"ticketsync/internal/ledger"
	"ticketsync/internal/logging"
	"ticketsync/internal/stage"
)

// Finalize resolves every InProgress claim of proc's stage using its
// evaluator. It is idempotent; a second call resolves nothing.
func Finalize(ctx context.Context, store ledger.Store, proc stage.Processor, logger *slog.Logger) (int, error) {
	logger = logging.NewComponentLogger(logger, "finalizer")
	updated, err := store.Finalize(ctx, proc.Stage(), stage.Evaluator(proc))
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		logger.Info("resolved lingering claims",
			logging.String(logging.FieldEventType, "finalize"),
			logging.String(logging.FieldStage, string(proc.Stage())),
			logging.Int("updated", updated),
		)
	}
	return updated, nil
}

package stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"ticketsync/internal/artifact"
	"ticketsync/internal/ledger"
	"ticketsync/internal/services"
)

// AwaitTicket waits up to timeout for the producer's artifact for id. A
// missing artifact after the wait is reported as ErrNotFound so the caller
// commits Empty.
func AwaitTicket(ctx context.Context, artifacts *artifact.Store, stage ledger.Stage, id int64, timeout time.Duration) (*artifact.Ticket, error) {
	ticket, err := artifacts.Wait(ctx, id, timeout)
	if err == nil {
		return ticket, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, services.ErrNotFound) {
		return nil, services.Wrap(services.ErrNotFound, string(stage), "await artifact",
			fmt.Sprintf("Ticket %d artifact never appeared; the producer may have failed to fetch it", id), err)
	}
	return nil, err
}

// ArtifactDirHealth reports whether the artifact directory is usable.
func ArtifactDirHealth(stage ledger.Stage, artifacts *artifact.Store) Health {
	if artifacts == nil {
		return Unhealthy(stage, "artifact store not configured")
	}
	if err := checkDir(artifacts.Dir()); err != nil {
		return Unhealthy(stage, err.Error())
	}
	return Healthy(stage)
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("artifact directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("artifact directory %s is not a directory", dir)
	}
	return nil
}

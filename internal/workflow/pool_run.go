package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ticketsync/internal/logging"
	"ticketsync/internal/services"
)

// Run starts the workers, waits for them to exit, and then finalizes the
// stage. It returns the run's counters. Cancelling ctx stops claiming; the
// finalizer still runs.
func (p *Pool) Run(ctx context.Context) (Counts, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return Counts{}, errors.New("pool already running")
	}
	p.running = true
	p.counts = Counts{}
	p.abandoned = 0
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	if health := p.proc.HealthCheck(ctx); !health.Ready {
		return Counts{}, services.Wrap(services.ErrConfiguration, string(p.Stage()), "health check", health.Detail, nil)
	}

	start := time.Now()
	p.logger.Info("pool started",
		logging.String(logging.FieldEventType, "pool_start"),
		logging.Int("workers", p.opts.Workers),
		logging.Duration("poll_interval", p.opts.PollInterval),
	)

	var wg sync.WaitGroup
	wg.Add(p.opts.Workers)
	for i := 1; i <= p.opts.Workers; i++ {
		go func(worker int) {
			defer wg.Done()
			p.runWorker(services.WithWorker(services.WithStage(ctx, string(p.Stage())), worker), worker)
		}(i)
	}
	wg.Wait()

	finalized, err := Finalize(context.WithoutCancel(ctx), p.store, p.proc, p.logger)
	p.mu.Lock()
	p.counts.Finalized = finalized
	counts := p.counts
	abandoned, lastErr := p.abandoned, p.lastErr
	p.mu.Unlock()
	if err != nil {
		return counts, fmt.Errorf("finalize %s: %w", p.Stage(), err)
	}
	if abandoned == p.opts.Workers && ctx.Err() == nil {
		return counts, services.Wrap(services.ErrTransient, string(p.Stage()), "claim",
			"every worker gave up on an unavailable ledger", lastErr)
	}

	p.logger.Info("pool finished",
		logging.String(logging.FieldEventType, "pool_complete"),
		logging.Int("claimed", counts.Claimed),
		logging.Int("done", counts.Done),
		logging.Int("empty", counts.Empty),
		logging.Int("failed", counts.Failed),
		logging.Int("finalized", counts.Finalized),
		logging.Duration("elapsed", time.Since(start)),
	)
	return counts, ctx.Err()
}

func (p *Pool) runWorker(ctx context.Context, worker int) {
	logger := logging.WithContext(ctx, p.logger)
	p.adjustActive(1)
	defer p.adjustActive(-1)

	emptyChecks := 0
	claimErrors := 0
	for {
		if ctx.Err() != nil {
			return
		}

		id, ok, err := p.store.ClaimNext(ctx, p.Stage())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			claimErrors++
			if claimErrors >= p.opts.ClaimErrors {
				logging.ErrorWithContext(logger, "worker stopping; ledger unavailable", "worker_claim_exit",
					logging.Error(err),
					logging.Int("claim_errors", claimErrors),
					logging.String(logging.FieldErrorHint, "check the ledger file and its lock marker are writable"),
				)
				p.recordAbandon(err)
				return
			}
			p.handleClaimError(ctx, err)
			continue
		}
		claimErrors = 0
		if !ok {
			emptyChecks++
			if p.opts.Policy.ShouldStop(ctx, emptyChecks) {
				logger.Info("worker stopping; no work left",
					logging.String(logging.FieldEventType, "worker_idle_exit"),
					logging.Int("empty_checks", emptyChecks),
				)
				return
			}
			p.waitForWork(ctx)
			continue
		}

		emptyChecks = 0
		p.processItem(ctx, worker, id)
	}
}

func (p *Pool) handleClaimError(ctx context.Context, err error) {
	p.setLastError(err)
	logging.ErrorWithContext(logging.WithContext(ctx, p.logger), "failed to claim next ticket", "claim_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the ledger file and its lock marker are writable"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(p.opts.ErrorRetry):
	}
}

func (p *Pool) waitForWork(ctx context.Context) {
	var wake <-chan struct{}
	if p.opts.Wake != nil {
		wake = p.opts.Wake.C()
	}
	timer := time.NewTimer(p.opts.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-wake:
	case <-timer.C:
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ticketsync/internal/ledger"
	"ticketsync/internal/logging"
	"ticketsync/internal/producer"
	"ticketsync/internal/source"
	"ticketsync/internal/stage"
	"ticketsync/internal/statusapi"
	"ticketsync/internal/workflow"
)

// Options select what one Run covers.
type Options struct {
	// TicketIDs replaces the configured id source when set.
	TicketIDs []int64
	// Limit caps the producer's id list; zero uses source.limit.
	Limit int
	// SkipProducer drains the ledger without adding tickets.
	SkipProducer bool
	// Stages defaults to every stage.
	Stages []ledger.Stage
}

// StageReport is the outcome of one pool.
type StageReport struct {
	Stage    ledger.Stage    `json:"stage"`
	Counts   workflow.Counts `json:"counts"`
	Duration time.Duration   `json:"duration"`
	Error    string          `json:"error,omitempty"`
}

// Report summarizes a Run.
type Report struct {
	Producer *producer.Result `json:"producer,omitempty"`
	Stages   []StageReport    `json:"stages"`
	Summary  ledger.Summary   `json:"summary"`
	Duration time.Duration    `json:"duration"`
}

// Run executes the producer and the requested stage pools concurrently and
// returns once every pool has exited and finalized.
func Run(ctx context.Context, c *Components, opts Options) (Report, error) {
	start := time.Now()
	logger := logging.NewComponentLogger(c.Logger, "pipeline")
	stages := opts.Stages
	if len(stages) == 0 {
		stages = ledger.Stages()
	}

	var client source.Client
	if !opts.SkipProducer {
		var err error
		if client, err = c.SourceClient(opts.TicketIDs); err != nil {
			return Report{}, err
		}
		c.clearFlags(logger)
	}
	processors := make([]stage.Processor, 0, len(stages))
	for _, stg := range stages {
		proc, err := c.Processor(stg)
		if err != nil {
			return Report{}, err
		}
		processors = append(processors, proc)
	}

	if bind := c.Config.Status.Bind; bind != "" {
		server := statusapi.NewServer(c.Store, c.Tracker, c.Config.Status.Token, c.Logger)
		if _, err := server.Start(ctx, bind); err != nil {
			return Report{}, fmt.Errorf("start status api: %w", err)
		}
		defer server.Stop()
	}

	existing, err := c.Store.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("read ledger: %w", err)
	}
	c.notify(ctx, "run started", func(ctx context.Context) error {
		return c.Notifier.NotifyRunStarted(ctx, len(existing))
	})
	logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.Int("records", len(existing)),
		logging.Int("stages", len(processors)),
		logging.Bool("producer", client != nil),
	)

	report := Report{Stages: make([]StageReport, len(processors))}
	group, groupCtx := errgroup.WithContext(ctx)

	if client != nil {
		group.Go(func() error {
			result, err := c.produce(groupCtx, client, opts.Limit)
			report.Producer = &result
			return err
		})
	}

	for i, proc := range processors {
		delay := time.Duration(0)
		if client != nil {
			delay = c.stageDelay(proc.Stage())
		}
		pool := c.Pool(proc)
		group.Go(func() error {
			report.Stages[i].Stage = proc.Stage()
			if err := source.SleepWithContext(groupCtx, delay); err != nil {
				return err
			}
			stageStart := time.Now()
			counts, err := pool.Run(groupCtx)
			report.Stages[i].Counts = counts
			report.Stages[i].Duration = time.Since(stageStart)
			if err != nil {
				report.Stages[i].Error = err.Error()
				return fmt.Errorf("%s pool: %w", proc.Stage(), err)
			}
			c.notify(groupCtx, "stage completed", func(ctx context.Context) error {
				return c.Notifier.NotifyStageCompleted(ctx, string(proc.Stage()), counts.Done, counts.Empty, counts.Failed, report.Stages[i].Duration)
			})
			return nil
		})
	}

	runErr := group.Wait()

	// The summary is read even after cancellation so callers can report progress.
	records, err := c.Store.List(context.WithoutCancel(ctx))
	if err != nil && runErr == nil {
		runErr = fmt.Errorf("read ledger: %w", err)
	}
	report.Summary = ledger.Summarize(records)
	report.Duration = time.Since(start)

	notifyCtx := context.WithoutCancel(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		c.notify(notifyCtx, "run error", func(ctx context.Context) error {
			return c.Notifier.NotifyError(ctx, runErr, "pipeline run")
		})
	}
	c.notify(notifyCtx, "run completed", func(ctx context.Context) error {
		return c.Notifier.NotifyRunCompleted(ctx, report.Summary.Records, report.Summary.Complete(), report.Duration)
	})
	logger.Info("pipeline finished",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.Int("records", report.Summary.Records),
		logging.Bool("complete", report.Summary.Complete()),
		logging.Duration("elapsed", report.Duration),
	)
	return report, runErr
}

// Produce runs only the producer, for deployments that start each component
// as its own process.
func Produce(ctx context.Context, c *Components, opts Options) (producer.Result, error) {
	client, err := c.SourceClient(opts.TicketIDs)
	if err != nil {
		return producer.Result{}, err
	}
	c.clearFlags(logging.NewComponentLogger(c.Logger, "pipeline"))
	return c.produce(ctx, client, opts.Limit)
}

// Consume drains one stage with its worker pool until the termination policy
// stops every worker, then finalizes the stage.
func Consume(ctx context.Context, c *Components, stg ledger.Stage) (workflow.Counts, error) {
	proc, err := c.Processor(stg)
	if err != nil {
		return workflow.Counts{}, err
	}
	start := time.Now()
	counts, err := c.Pool(proc).Run(ctx)
	if err == nil {
		c.notify(ctx, "stage completed", func(ctx context.Context) error {
			return c.Notifier.NotifyStageCompleted(ctx, string(stg), counts.Done, counts.Empty, counts.Failed, time.Since(start))
		})
	}
	return counts, err
}

// Finalize resolves every InProgress claim of stg without claiming new work.
func Finalize(ctx context.Context, c *Components, stg ledger.Stage) (int, error) {
	proc, err := c.Processor(stg)
	if err != nil {
		return 0, err
	}
	return workflow.Finalize(ctx, c.Store, proc, c.Logger)
}

func (c *Components) produce(ctx context.Context, client source.Client, limit int) (producer.Result, error) {
	result, err := c.Producer(client, limit).Run(ctx)
	if errors.Is(err, producer.ErrNoTickets) {
		logging.WarnWithContext(c.Logger, "producer found no tickets", "producer_empty",
			logging.String(logging.FieldErrorHint, "check source.ticket_csv or the Freshdesk account"),
		)
		return result, c.Flags.MarkAllComplete(context.WithoutCancel(ctx))
	}
	if err != nil {
		return result, fmt.Errorf("producer: %w", err)
	}
	c.notify(ctx, "producer completed", func(ctx context.Context) error {
		return c.Notifier.NotifyProducerCompleted(ctx, result.Added, result.Failed)
	})
	return result, nil
}

// clearFlags removes flags left by an earlier run, which would otherwise
// shorten this run's idle tail.
func (c *Components) clearFlags(logger *slog.Logger) {
	if err := c.Flags.ClearAll(); err != nil {
		logging.WarnWithContext(logger, "failed to clear completion flags", "completion_flag_clear_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "consumers may stop before the producer finishes"),
		)
	}
}

// stageDelay mirrors staggered consumer start-up: the independent stages wait
// for the producer's first batches and the dependent stage waits for the
// stage it reads.
func (c *Components) stageDelay(stg ledger.Stage) time.Duration {
	delay := time.Duration(c.Config.Pipeline.ConsumerDelaySeconds) * time.Second
	if _, dependent := stg.Prerequisite(); dependent {
		delay += time.Duration(c.Config.Pipeline.DependentDelaySeconds) * time.Second
	}
	return delay
}

func (c *Components) notify(ctx context.Context, label string, send func(context.Context) error) {
	if err := send(ctx); err != nil {
		logging.WarnWithContext(c.Logger, "notification failed", "notification_failed",
			logging.String("notification", label),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

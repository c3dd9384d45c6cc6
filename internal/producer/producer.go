// Package producer fetches tickets from the source, writes one artifact per
// ticket, and appends skeleton records to the ledger in batches.
//
// Workers may already be claiming while the producer runs; each merged batch
// wakes idle in-process workers, and the completion flags are marked once the
// id list is exhausted so consumers can shorten their idle tail.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ticketsync/internal/artifact"
	"ticketsync/internal/ledger"
	"ticketsync/internal/logging"
	"ticketsync/internal/services"
	"ticketsync/internal/source"
)

// ErrNoTickets reports an empty id source.
var ErrNoTickets = errors.New("no ticket ids found")

// Notifier is signalled after every merge that added records.
type Notifier interface {
	Notify()
}

// CompletionMarker marks the producer finished for every stage.
type CompletionMarker interface {
	MarkAllComplete(ctx context.Context) error
}

// Options tune batching.
type Options struct {
	BatchSize   int
	Concurrency int
	// Limit caps the number of listed ids; zero means all.
	Limit int
}

// Result summarizes one producer run.
type Result struct {
	Listed   int           `json:"listed"`
	Skipped  int           `json:"skipped"`
	Fetched  int           `json:"fetched"`
	Failed   int           `json:"failed"`
	Added    int           `json:"added"`
	Batches  int           `json:"batches"`
	Duration time.Duration `json:"duration"`
}

// Producer seeds the ledger.
type Producer struct {
	client    source.Client
	store     ledger.Store
	artifacts *artifact.Store
	notifier  Notifier
	flags     CompletionMarker
	opts      Options
	logger    *slog.Logger
}

// New builds a Producer. notifier and flags may be nil.
func New(client source.Client, store ledger.Store, artifacts *artifact.Store, notifier Notifier, flags CompletionMarker, opts Options, logger *slog.Logger) *Producer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = opts.BatchSize
	}
	return &Producer{
		client:    client,
		store:     store,
		artifacts: artifacts,
		notifier:  notifier,
		flags:     flags,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "producer"),
	}
}

// Run lists ticket ids, fetches the ones not yet in the ledger, and merges
// their skeleton records batch by batch.
func (p *Producer) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var result Result

	ids, err := p.client.ListTicketIDs(ctx)
	if err != nil {
		return result, fmt.Errorf("list ticket ids: %w", err)
	}
	if p.opts.Limit > 0 && len(ids) > p.opts.Limit {
		ids = ids[:p.opts.Limit]
	}
	result.Listed = len(ids)
	if len(ids) == 0 {
		return result, services.Wrap(services.ErrValidation, "producer", "list", "source listed nothing", ErrNoTickets)
	}

	pending, err := p.pending(ctx, ids)
	if err != nil {
		return result, err
	}
	result.Skipped = len(ids) - len(pending)
	p.logger.Info("producer starting",
		logging.String(logging.FieldEventType, "producer_start"),
		logging.Int("listed", result.Listed),
		logging.Int("already_in_ledger", result.Skipped),
		logging.Int("batch_size", p.opts.BatchSize),
	)

	for offset := 0; offset < len(pending); offset += p.opts.BatchSize {
		batch := pending[offset:min(offset+p.opts.BatchSize, len(pending))]
		result.Batches++
		records, failed, err := p.fetchBatch(ctx, batch)
		result.Failed += failed
		result.Fetched += len(records)
		if err != nil {
			return result, err
		}
		added, err := p.store.Merge(ctx, records)
		if err != nil {
			return result, fmt.Errorf("merge batch %d: %w", result.Batches, err)
		}
		result.Added += len(added)
		if len(added) > 0 && p.notifier != nil {
			p.notifier.Notify()
		}
		p.logger.Info("batch merged",
			logging.String(logging.FieldEventType, "batch_merged"),
			logging.Int("batch", result.Batches),
			logging.Int("tickets", len(batch)),
			logging.Int("added", len(added)),
			logging.Int("failed", failed),
		)
	}

	if p.flags != nil {
		if err := p.flags.MarkAllComplete(ctx); err != nil {
			p.logger.Warn("completion flags not written", logging.Error(err))
		}
	}
	result.Duration = time.Since(start)
	p.logger.Info("producer finished",
		logging.String(logging.FieldEventType, "producer_complete"),
		logging.Int("added", result.Added),
		logging.Int("failed", result.Failed),
		logging.Duration("elapsed", result.Duration),
	)
	return result, nil
}

// pending drops ids the ledger already tracks, preserving order and
// removing duplicates.
func (p *Producer) pending(ctx context.Context, ids []int64) ([]int64, error) {
	existing, err := p.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	seen := make(map[int64]struct{}, len(existing)+len(ids))
	for _, rec := range existing {
		seen[rec.TicketID] = struct{}{}
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// fetchBatch fetches every ticket in batch concurrently and returns the
// skeleton records in batch order. A ticket that cannot be fetched is logged
// and left out of the ledger.
func (p *Producer) fetchBatch(ctx context.Context, batch []int64) ([]ledger.Record, int, error) {
	slots := make([]*ledger.Record, len(batch))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.opts.Concurrency)
	for i, id := range batch {
		eg.Go(func() error {
			rec, err := p.fetchOne(gctx, id)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logging.WarnWithContext(p.logger, "ticket not fetched", "ticket_fetch_failed",
					logging.Int64(logging.FieldItemID, id),
					logging.Error(err),
					logging.ErrorKind(err),
					logging.String(logging.FieldErrorHint, "rerun the producer; tickets already in the ledger are skipped"),
					logging.String(logging.FieldImpact, "ticket is not added to the ledger"),
				)
				return nil
			}
			slots[i] = rec
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	records := make([]ledger.Record, 0, len(batch))
	failed := 0
	for _, rec := range slots {
		if rec == nil {
			failed++
			continue
		}
		records = append(records, *rec)
	}
	return records, failed, nil
}

func (p *Producer) fetchOne(ctx context.Context, id int64) (*ledger.Record, error) {
	ticket, err := p.client.FetchTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, services.Wrap(services.ErrNotFound, "producer", "fetch", fmt.Sprintf("ticket %d returned no data", id), nil)
	}
	if ticket.ID == 0 {
		ticket.ID = id
	}
	if ticket.ID != id {
		return nil, services.Wrap(services.ErrValidation, "producer", "fetch",
			fmt.Sprintf("requested ticket %d but source returned %d", id, ticket.ID), nil)
	}
	if err := p.artifacts.Write(ticket); err != nil {
		return nil, err
	}
	rec := ledger.NewRecord(id, ticket.CreatedAt, ticket.CreatedBy())
	return &rec, nil
}

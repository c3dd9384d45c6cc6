package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ticketsync/internal/artifact"
	"ticketsync/internal/attachments"
	"ticketsync/internal/completion"
	"ticketsync/internal/config"
	"ticketsync/internal/conversations"
	"ticketsync/internal/ledger"
	"ticketsync/internal/ledgeraccess"
	"ticketsync/internal/logging"
	"ticketsync/internal/notifications"
	"ticketsync/internal/producer"
	"ticketsync/internal/services"
	"ticketsync/internal/source"
	"ticketsync/internal/stage"
	"ticketsync/internal/storage"
	"ticketsync/internal/tracker"
	"ticketsync/internal/workflow"
)

// Components holds the collaborators shared by every part of a run. It is
// built once and is not safe for concurrent construction of processors.
type Components struct {
	Config    *config.Config
	Store     ledger.Store
	Artifacts *artifact.Store
	Sink      storage.Sink
	Tracker   *tracker.Tracker
	Flags     *completion.Flags
	Notifier  notifications.Service
	Wake      *workflow.Broadcaster
	Logger    *slog.Logger

	remote     *source.Freshdesk
	downloader *source.Downloader
}

// Build opens the ledger, storage sink, and tracker described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "build", "config is nil", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "build", "create directories", err)
	}

	store, err := ledgeraccess.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	sink, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	attachmentsTracker, err := tracker.Open(cfg.Paths.TrackerFile, logger)
	if err != nil {
		_ = sink.Close()
		_ = store.Close()
		return nil, err
	}

	return &Components{
		Config:    cfg,
		Store:     store,
		Artifacts: artifact.NewStore(cfg.Paths.ArtifactDir).WithPollInterval(cfg.Workflow.PollInterval()),
		Sink:      sink,
		Tracker:   attachmentsTracker,
		Flags:     completion.NewFlags(cfg, logger),
		Notifier:  notifications.NewService(cfg),
		Wake:      workflow.NewBroadcaster(),
		Logger:    logger,
	}, nil
}

// Close releases the ledger, sink, and tracker.
func (c *Components) Close() error {
	if c == nil {
		return nil
	}
	return errors.Join(c.Tracker.Close(), c.Sink.Close(), c.Store.Close())
}

func (c *Components) sourceConfig() source.Config {
	return source.Config{
		BaseURL:    c.Config.Source.BaseURL,
		APIKey:     c.Config.Source.APIKey,
		Timeout:    c.Config.Source.Timeout(),
		MaxRetries: c.Config.Source.MaxRetries,
		Logger:     c.Logger,
	}
}

func (c *Components) freshdesk() (*source.Freshdesk, error) {
	if c.remote != nil {
		return c.remote, nil
	}
	if err := c.Config.ValidateSource(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "source", "freshdesk is not configured", err)
	}
	remote, err := source.NewFreshdesk(c.sourceConfig())
	if err != nil {
		return nil, err
	}
	c.remote = remote
	return remote, nil
}

func (c *Components) attachmentDownloader() (*source.Downloader, error) {
	if c.downloader != nil {
		return c.downloader, nil
	}
	downloader, err := source.NewDownloader(c.sourceConfig(), c.Sink)
	if err != nil {
		return nil, err
	}
	c.downloader = downloader
	return downloader, nil
}

// SourceClient returns the producer's ticket source. Explicit ids win over
// the configured CSV, which wins over listing tickets from Freshdesk.
func (c *Components) SourceClient(ids []int64) (source.Client, error) {
	remote, err := c.freshdesk()
	if err != nil {
		return nil, err
	}
	switch {
	case len(ids) > 0:
		return source.Compose(source.StaticLister(ids), remote), nil
	case c.Config.Source.TicketCSV != "":
		return source.Compose(source.CSVLister{Path: c.Config.Source.TicketCSV}, remote), nil
	default:
		return remote, nil
	}
}

// Producer builds the producer for client. A zero limit falls back to
// source.limit.
func (c *Components) Producer(client source.Client, limit int) *producer.Producer {
	if limit <= 0 {
		limit = c.Config.Source.Limit
	}
	return producer.New(client, c.Store, c.Artifacts, c.Wake, c.Flags, producer.Options{
		BatchSize:   c.Config.Source.BatchSize,
		Concurrency: c.Config.Source.Concurrency,
		Limit:       limit,
	}, c.Logger)
}

// Processor builds the stage processor for stg.
func (c *Components) Processor(stg ledger.Stage) (stage.Processor, error) {
	switch stg {
	case ledger.StageConversations:
		return conversations.New(c.Artifacts, c.Config.Workflow.ConversationArtifactWait(), c.Logger), nil
	case ledger.StageAttachments, ledger.StageConversationAttachments:
		remote, err := c.freshdesk()
		if err != nil {
			return nil, err
		}
		downloader, err := c.attachmentDownloader()
		if err != nil {
			return nil, err
		}
		deps := attachments.Dependencies{
			Artifacts:  c.Artifacts,
			Fetcher:    remote,
			Downloader: downloader,
			Sink:       c.Sink,
			Tracker:    c.Tracker,
			Ledger:     c.Store,
			Wait:       c.Config.Workflow.ArtifactWait(),
			Logger:     c.Logger,
		}
		if stg == ledger.StageAttachments {
			return attachments.NewTicketProcessor(deps), nil
		}
		return attachments.NewConversationProcessor(deps), nil
	default:
		return nil, services.Wrap(services.ErrValidation, "pipeline", "processor", fmt.Sprintf("unknown stage %q", stg), nil)
	}
}

// Pool builds the worker pool for proc using the configured pool size and
// termination policy.
func (c *Components) Pool(proc stage.Processor) *workflow.Pool {
	stg := proc.Stage()
	return workflow.NewPool(c.Store, proc, workflow.PoolOptions{
		Workers:      c.workers(stg),
		PollInterval: c.Config.Workflow.PollInterval(),
		ErrorRetry:   c.Config.Workflow.ErrorRetryDelay(),
		ClaimErrors:  c.Config.Workflow.MaxClaimErrors,
		Policy:       completion.NewPolicy(c.Config, stg, c.Flags),
		Wake:         c.Wake,
		Logger:       c.Logger,
	})
}

func (c *Components) workers(stg ledger.Stage) int {
	switch stg {
	case ledger.StageAttachments:
		return c.Config.Workers.Attachments
	case ledger.StageConversations:
		return c.Config.Workers.Conversations
	default:
		return c.Config.Workers.ConversationAttachments
	}
}

package attachments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ticketsync/internal/artifact"
	"ticketsync/internal/ledger"
	"ticketsync/internal/logging"
	"ticketsync/internal/services"
	"ticketsync/internal/source"
	"ticketsync/internal/stage"
	"ticketsync/internal/storage"
	"ticketsync/internal/textutil"
	"ticketsync/internal/tracker"
)

const conversationFilePrefix = "conv_"

// Downloader copies one remote file into the storage sink under key.
type Downloader interface {
	Download(ctx context.Context, link, key string) (bool, error)
}

// Recorder persists attachment locations.
type Recorder interface {
	Add(ctx context.Context, entries ...tracker.Record) error
}

// StatusReader reads committed ledger statuses.
type StatusReader interface {
	StageStatus(ctx context.Context, id int64, stage ledger.Stage) (ledger.Status, error)
}

// Dependencies are the collaborators shared by both attachment stages.
type Dependencies struct {
	Artifacts  *artifact.Store
	Fetcher    source.Fetcher
	Downloader Downloader
	Sink       storage.Sink
	Tracker    Recorder
	Ledger     StatusReader
	Wait       time.Duration
	Logger     *slog.Logger
}

// Processor downloads one kind of attachment for claimed tickets.
type Processor struct {
	stage      ledger.Stage
	kind       string
	filePrefix string
	list       func(*artifact.Ticket) []artifact.Attachment

	deps   Dependencies
	logger *slog.Logger
	now    func() time.Time
}

// NewTicketProcessor builds the ticket attachments stage.
func NewTicketProcessor(deps Dependencies) *Processor {
	return newProcessor(ledger.StageAttachments, artifact.TypeTicketAttachment, "", (*artifact.Ticket).TicketAttachments, deps)
}

// NewConversationProcessor builds the conversation attachments stage. It
// requires deps.Ledger for the conversations short-circuit.
func NewConversationProcessor(deps Dependencies) *Processor {
	return newProcessor(ledger.StageConversationAttachments, artifact.TypeConversationAttachment, conversationFilePrefix,
		(*artifact.Ticket).ConversationAttachments, deps)
}

func newProcessor(stg ledger.Stage, kind, prefix string, list func(*artifact.Ticket) []artifact.Attachment, deps Dependencies) *Processor {
	return &Processor{
		stage:      stg,
		kind:       kind,
		filePrefix: prefix,
		list:       list,
		deps:       deps,
		logger:     logging.NewComponentLogger(deps.Logger, string(stg)),
		now:        time.Now,
	}
}

// Stage returns the ledger stage this processor resolves.
func (p *Processor) Stage() ledger.Stage {
	return p.stage
}

// Process downloads the ticket's attachments and returns the outcome.
func (p *Processor) Process(ctx context.Context, id int64) (ledger.Status, error) {
	logger := logging.WithContext(ctx, p.logger)

	inherit, err := p.prerequisiteEmpty(ctx, id)
	if err != nil {
		return ledger.Empty(), err
	}
	if inherit {
		logger.Info("prerequisite stage empty; inheriting", logging.String(logging.FieldEventType, "short_circuit"))
		return ledger.Empty(), nil
	}

	ticket, err := stage.AwaitTicket(ctx, p.deps.Artifacts, p.stage, id, p.deps.Wait)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			logger.Info("ticket artifact missing; nothing to download",
				logging.String(logging.FieldEventType, "artifact_missing"),
				logging.Duration("waited", p.deps.Wait),
			)
			return ledger.Empty(), nil
		}
		return ledger.Empty(), err
	}

	attachments := p.list(ticket)
	if len(attachments) == 0 {
		logger.Debug("no attachments listed", logging.String(logging.FieldEventType, "no_sub_items"))
		return ledger.Empty(), nil
	}

	mapping := p.attempt(ctx, id, attachments)
	if len(mapping) == 0 && ctx.Err() == nil {
		mapping = p.refresh(ctx, id)
	}
	if len(mapping) == 0 {
		logger.Info("no attachments stored",
			logging.String(logging.FieldEventType, "no_successful_downloads"),
			logging.Int("listed", len(attachments)),
		)
		return ledger.Empty(), nil
	}
	logger.Info("attachments stored",
		logging.String(logging.FieldEventType, "sub_items_done"),
		logging.Int("stored", len(mapping)),
		logging.Int("listed", len(attachments)),
	)
	return ledger.Done(mapping), nil
}

// prerequisiteEmpty reports whether the prerequisite stage already committed
// Empty for id. Stages without a prerequisite always report false.
func (p *Processor) prerequisiteEmpty(ctx context.Context, id int64) (bool, error) {
	prereq, ok := p.stage.Prerequisite()
	if !ok {
		return false, nil
	}
	if p.deps.Ledger == nil {
		return false, services.Wrap(services.ErrConfiguration, string(p.stage), "short-circuit",
			"ledger reader required for prerequisite check", nil)
	}
	status, err := p.deps.Ledger.StageStatus(ctx, id, prereq)
	if err != nil {
		return false, fmt.Errorf("read %s status: %w", prereq, err)
	}
	return status.IsEmpty(), nil
}

// refresh re-fetches the ticket once, rewrites its artifact, and repeats the
// download pass with the fresh links.
func (p *Processor) refresh(ctx context.Context, id int64) map[string]string {
	logger := logging.WithContext(ctx, p.logger)
	if p.deps.Fetcher == nil {
		return nil
	}
	ticket, err := p.deps.Fetcher.FetchTicket(ctx, id)
	if err != nil {
		logging.WarnWithContext(logger, "attachment link refresh failed", "refresh_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check Freshdesk credentials and rate limits"),
			logging.String(logging.FieldImpact, "ticket resolves to empty for this stage"),
		)
		return nil
	}
	if err := p.deps.Artifacts.Write(ticket); err != nil {
		logger.Warn("refreshed artifact not persisted", logging.Error(err))
	}
	logger.Info("retrying downloads with refreshed links", logging.String(logging.FieldEventType, "refresh"))
	return p.attempt(ctx, id, p.list(ticket))
}

// attempt runs one download pass and returns the stored attachment ids.
func (p *Processor) attempt(ctx context.Context, id int64, attachments []artifact.Attachment) map[string]string {
	logger := logging.WithContext(ctx, p.logger)
	mapping := make(map[string]string, len(attachments))
	var tracked []tracker.Record
	for _, att := range attachments {
		if ctx.Err() != nil {
			break
		}
		if !att.Downloadable() {
			continue
		}
		key := p.key(id, att)
		stored, err := p.store(ctx, att, key)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, services.ErrExpiredLink) {
				level = slog.LevelDebug
			}
			logger.Log(ctx, level, "attachment not stored",
				logging.String("attachment_id", att.Key()),
				logging.String("key", key),
				logging.Error(err),
				logging.ErrorKind(err),
			)
			continue
		}
		if !stored {
			continue
		}
		mapping[att.Key()] = ledger.Timestamp(p.now())
		tracked = append(tracked, tracker.Record{
			TicketID:       id,
			FreshdeskURL:   att.SourceURL(),
			SavedLocation:  p.deps.Sink.Location(key),
			StorageType:    p.deps.Sink.Type(),
			AttachmentID:   att.Key(),
			AttachmentName: att.Name,
			AttachmentType: p.kind,
		})
	}
	if p.deps.Tracker != nil && len(tracked) > 0 {
		if err := p.deps.Tracker.Add(ctx, tracked...); err != nil {
			logger.Warn("attachment locations not tracked", logging.Int("count", len(tracked)), logging.Error(err))
		}
	}
	return mapping
}

// store copies att to key unless the sink already holds it.
func (p *Processor) store(ctx context.Context, att artifact.Attachment, key string) (bool, error) {
	exists, err := p.deps.Sink.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}
	return p.deps.Downloader.Download(ctx, att.SourceURL(), key)
}

// key is the sink location for att under ticket id.
func (p *Processor) key(id int64, att artifact.Attachment) string {
	return storage.Key(id, p.filePrefix+textutil.SanitizeFileName(att.Name))
}

// Evaluate resolves an abandoned claim from the local artifact and the sink.
// Only attachments the sink already holds count as done. It runs under the
// ledger lock and so never reads the ledger.
func (p *Processor) Evaluate(ctx context.Context, id int64) ledger.Status {
	ticket, err := p.deps.Artifacts.Read(id)
	if err != nil || p.deps.Sink == nil {
		return ledger.Empty()
	}
	stamp := ledger.Timestamp(p.now())
	mapping := make(map[string]string)
	for _, att := range p.list(ticket) {
		if !att.Downloadable() {
			continue
		}
		if exists, err := p.deps.Sink.Exists(ctx, p.key(id, att)); err == nil && exists {
			mapping[att.Key()] = stamp
		}
	}
	if len(mapping) == 0 {
		return ledger.Empty()
	}
	return ledger.Done(mapping)
}

// HealthCheck verifies the stage's collaborators are wired.
func (p *Processor) HealthCheck(_ context.Context) stage.Health {
	switch {
	case p.deps.Sink == nil:
		return stage.Unhealthy(p.stage, "storage sink not configured")
	case p.deps.Downloader == nil:
		return stage.Unhealthy(p.stage, "downloader not configured")
	}
	if _, ok := p.stage.Prerequisite(); ok && p.deps.Ledger == nil {
		return stage.Unhealthy(p.stage, "ledger reader not configured")
	}
	return stage.ArtifactDirHealth(p.stage, p.deps.Artifacts)
}

var _ stage.Processor = (*Processor)(nil)

// Package conversations implements the conversations stage: it records one
// completion timestamp per conversation found in the ticket artifact. The
// stage performs no remote work; its committed Empty lets the conversation
// attachments stage skip tickets without replies.
package conversations

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ticketsync/internal/artifact"
	"ticketsync/internal/ledger"
	"ticketsync/internal/logging"
	"ticketsync/internal/services"
	"ticketsync/internal/stage"
)

// Processor resolves the conversations stage.
type Processor struct {
	artifacts *artifact.Store
	wait      time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// New builds the conversations stage. wait bounds how long a claimed ticket
// waits for the producer's artifact.
func New(artifacts *artifact.Store, wait time.Duration, logger *slog.Logger) *Processor {
	return &Processor{
		artifacts: artifacts,
		wait:      wait,
		logger:    logging.NewComponentLogger(logger, string(ledger.StageConversations)),
		now:       time.Now,
	}
}

// Stage returns ledger.StageConversations.
func (p *Processor) Stage() ledger.Stage {
	return ledger.StageConversations
}

// Process maps every conversation id of the ticket to the current time.
func (p *Processor) Process(ctx context.Context, id int64) (ledger.Status, error) {
	logger := logging.WithContext(ctx, p.logger)
	ticket, err := stage.AwaitTicket(ctx, p.artifacts, ledger.StageConversations, id, p.wait)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			logger.Info("ticket artifact missing; no conversations",
				logging.String(logging.FieldEventType, "artifact_missing"),
				logging.Duration("waited", p.wait),
			)
			return ledger.Empty(), nil
		}
		return ledger.Empty(), err
	}
	status := ledger.DoneAt(ticket.ConversationIDs(), p.now())
	logger.Info("conversations recorded",
		logging.String(logging.FieldEventType, "sub_items_done"),
		logging.Int("conversations", status.Len()),
	)
	return status, nil
}

// Evaluate resolves an abandoned claim from the artifact without waiting.
func (p *Processor) Evaluate(_ context.Context, id int64) ledger.Status {
	ticket, err := p.artifacts.Read(id)
	if err != nil {
		return ledger.Empty()
	}
	return ledger.DoneAt(ticket.ConversationIDs(), p.now())
}

// HealthCheck verifies the artifact directory is usable.
func (p *Processor) HealthCheck(_ context.Context) stage.Health {
	return stage.ArtifactDirHealth(ledger.StageConversations, p.artifacts)
}

var _ stage.Processor = (*Processor)(nil)

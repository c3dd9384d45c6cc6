package completion

import (
	"context"

	"ticketsync/internal/config"
	"ticketsync/internal/ledger"
)

// Policy decides when an idle worker stops. Without the completion flag a
// worker stops after MaxEmptyChecks consecutive empty claims. With it, the
// lower CompletedEmptyChecks applies once the producer is done.
type Policy struct {
	Stage                ledger.Stage
	MaxEmptyChecks       int
	CompletedEmptyChecks int
	Flags                *Flags
}

// NewPolicy builds the policy for stage from cfg. flags may be nil to ignore
// the completion side channel.
func NewPolicy(cfg *config.Config, stage ledger.Stage, flags *Flags) Policy {
	p := Policy{
		Stage:                stage,
		MaxEmptyChecks:       cfg.Workflow.MaxEmptyChecks,
		CompletedEmptyChecks: cfg.Workflow.CompletedEmptyChecks,
	}
	if cfg.Workflow.UseCompletionFlag {
		p.Flags = flags
	}
	return p
}

// Limit returns the consecutive empty-claim threshold in effect now.
func (p Policy) Limit(ctx context.Context) int {
	if p.Flags != nil && p.Flags.IsComplete(ctx, p.Stage) {
		return p.CompletedEmptyChecks
	}
	return p.MaxEmptyChecks
}

// ShouldStop reports whether a worker that saw emptyChecks consecutive empty
// claims should exit.
func (p Policy) ShouldStop(ctx context.Context, emptyChecks int) bool {
	return emptyChecks >= p.Limit(ctx)
}

package statusapi

import (
	"context"
	"fmt"
	"time"

	"ticketsync/internal/ledger"
	"ticketsync/internal/tracker"
)

// AttachmentLister lists tracked attachment locations.
type AttachmentLister interface {
	List(ctx context.Context) ([]tracker.Record, error)
}

// Health is the /health payload.
type Health struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
}

// Summary is the /api/summary payload.
type Summary struct {
	GeneratedAt string           `json:"generated_at" yaml:"generated_at"`
	Complete    bool             `json:"complete" yaml:"complete"`
	Ledger      ledger.Summary   `json:"ledger" yaml:"ledger"`
	Attachments *tracker.Summary `json:"attachments,omitempty" yaml:"attachments,omitempty"`
}

// RecordResponse wraps one ledger record.
type RecordResponse struct {
	Record ledger.Record `json:"record"`
}

// RecordListResponse wraps every ledger record.
type RecordListResponse struct {
	Records []ledger.Record `json:"records"`
}

// BuildSummary aggregates committed ledger state and, when attachments is
// non-nil, the attachment tracker.
func BuildSummary(ctx context.Context, store ledger.Store, attachments AttachmentLister) (Summary, error) {
	records, err := store.List(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list ledger: %w", err)
	}
	summary := Summary{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Ledger:      ledger.Summarize(records),
	}
	summary.Complete = summary.Ledger.Complete()
	if attachments != nil {
		tracked, err := attachments.List(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("list tracker: %w", err)
		}
		agg := tracker.Summarize(tracked)
		summary.Attachments = &agg
	}
	return summary, nil
}

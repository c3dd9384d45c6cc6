// Package tracker records where every downloaded attachment was saved. The
// tracker is a second JSON document guarded by its own lock, so the stages
// can append to it without holding the ledger lock.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ticketsync/internal/filelock"
	"ticketsync/internal/fileutil"
	"ticketsync/internal/logging"
	"ticketsync/internal/services"
)

// Record is one tracked attachment location.
type Record struct {
	TicketID       int64  `json:"ticket_id"`
	FreshdeskURL   string `json:"freshdesk_url"`
	SavedLocation  string `json:"saved_location"`
	StorageType    string `json:"storage_type"`
	RecordedAt     string `json:"recorded_at"`
	AttachmentID   string `json:"attachment_id,omitempty"`
	AttachmentName string `json:"attachment_name,omitempty"`
	AttachmentType string `json:"attachment_type,omitempty"`
}

func (r Record) identity() string {
	return r.AttachmentType + "/" + r.AttachmentID
}

// Summary aggregates tracked attachments.
type Summary struct {
	Total         int            `json:"total" yaml:"total"`
	UniqueTickets int            `json:"unique_tickets" yaml:"unique_tickets"`
	ByType        map[string]int `json:"by_type" yaml:"by_type"`
	LatestAt      string         `json:"latest_at,omitempty" yaml:"latest_at,omitempty"`
}

// Tracker appends attachment records to a lock-guarded JSON array.
type Tracker struct {
	path   string
	lock   *filelock.Lock
	logger *slog.Logger
	now    func() time.Time
}

// Open returns a Tracker for path; the document is created on first write.
func Open(path string, logger *slog.Logger) (*Tracker, error) {
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "tracker", "open", "tracker path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create tracker directory: %w", err)
	}
	return &Tracker{
		path:   path,
		lock:   filelock.New(path + ".lock"),
		logger: logging.NewComponentLogger(logger, "tracker"),
		now:    time.Now,
	}, nil
}

// Close releases the lock descriptor.
func (t *Tracker) Close() error {
	return t.lock.Close()
}

func (t *Tracker) read() []Record {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			t.logger.Warn("tracker unreadable; treating as empty", logging.String("path", t.path), logging.Error(err))
		}
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		logging.WarnWithContext(t.logger, "tracker unparsable; treating as empty", "tracker_corrupt",
			logging.String("path", t.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "restore attachment_urls.json from backup"),
		)
		return nil
	}
	return records
}

// Add records entries, replacing any earlier entry for the same attachment id
// and type. Entries without a RecordedAt are stamped with the current time.
func (t *Tracker) Add(ctx context.Context, entries ...Record) error {
	if len(entries) == 0 {
		return nil
	}
	stamp := t.now().UTC().Format(time.RFC3339)
	return t.lock.With(ctx, func() error {
		records := t.read()
		index := make(map[string]int, len(records))
		for i, rec := range records {
			if rec.AttachmentID != "" {
				index[rec.identity()] = i
			}
		}
		for _, entry := range entries {
			if entry.RecordedAt == "" {
				entry.RecordedAt = stamp
			}
			if entry.AttachmentID != "" {
				if i, ok := index[entry.identity()]; ok {
					records[i] = entry
					continue
				}
				index[entry.identity()] = len(records)
			}
			records = append(records, entry)
		}
		if records == nil {
			records = []Record{}
		}
		if err := fileutil.WriteJSONAtomic(t.path, records); err != nil {
			return fmt.Errorf("write tracker: %w", err)
		}
		return nil
	})
}

// List returns every tracked record.
func (t *Tracker) List(ctx context.Context) ([]Record, error) {
	var records []Record
	err := t.lock.With(ctx, func() error {
		records = t.read()
		return nil
	})
	return records, err
}

// ByTicket returns the records for one ticket.
func (t *Tracker) ByTicket(ctx context.Context, ticketID int64) ([]Record, error) {
	records, err := t.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, rec := range records {
		if rec.TicketID == ticketID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Summarize counts tracked attachments by type and ticket.
func Summarize(records []Record) Summary {
	summary := Summary{Total: len(records), ByType: map[string]int{}}
	tickets := map[int64]struct{}{}
	for _, rec := range records {
		tickets[rec.TicketID] = struct{}{}
		kind := rec.AttachmentType
		if kind == "" {
			kind = "untyped"
		}
		summary.ByType[kind]++
		if rec.RecordedAt > summary.LatestAt {
			summary.LatestAt = rec.RecordedAt
		}
	}
	summary.UniqueTickets = len(tickets)
	return summary
}

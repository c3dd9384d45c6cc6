package ledger

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

	"ticketsync/internal/filelock"
	"ticketsync/internal/fileutil"
	"ticketsync/internal/logging"
	"ticketsync/internal/services"
)

// FileStore keeps the ledger as one JSON array on disk. Every operation is a
// single read-mutate-write under a lock on "<path>.lock".
type FileStore struct {
	path   string
	lock   *filelock.Lock
	logger *slog.Logger
}

// OpenFile returns a FileStore for path. The document itself is created on
// the first write.
func OpenFile(path string, logger *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "open", "ledger path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	return &FileStore{
		path:   path,
		lock:   filelock.New(path + ".lock"),
		logger: logging.NewComponentLogger(logger, "ledger"),
	}, nil
}

// Path returns the ledger document path.
func (s *FileStore) Path() string {
	return s.path
}

// Close releases the lock marker descriptor.
func (s *FileStore) Close() error {
	return s.lock.Close()
}

// read loads the document. A missing or unparsable document yields an empty
// ledger so the claim protocol stays available; the next write replaces it.
func (s *FileStore) read() []Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(s.logger, "ledger unreadable; treating as empty", "ledger_unreadable",
				logging.String("path", s.path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check file permissions on the ledger document"),
				logging.String(logging.FieldImpact, "claims see no records until the next write"),
			)
		}
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		logging.WarnWithContext(s.logger, "ledger unparsable; treating as empty", "ledger_corrupt",
			logging.String("path", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "restore the ledger from backup or let the producer rebuild it"),
			logging.String(logging.FieldImpact, "existing progress is ignored and overwritten on the next write"),
		)
		return nil
	}
	return records
}

func (s *FileStore) write(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	if err := fileutil.WriteJSONAtomic(s.path, records); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// update runs mutate inside one critical section and persists the result
// when mutate reports a change.
func (s *FileStore) update(ctx context.Context, mutate func(records []Record) ([]Record, bool, error)) error {
	return s.lock.With(ctx, func() error {
		records, changed, err := mutate(s.read())
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return s.write(records)
	})
}

// Merge appends records whose TicketID is not yet present.
func (s *FileStore) Merge(ctx context.Context, incoming []Record) ([]int64, error) {
	if len(incoming) == 0 {
		return nil, nil
	}
	var added []int64
	err := s.update(ctx, func(records []Record) ([]Record, bool, error) {
		seen := make(map[int64]struct{}, len(records)+len(incoming))
		for _, rec := range records {
			seen[rec.TicketID] = struct{}{}
		}
		for _, rec := range incoming {
			if _, ok := seen[rec.TicketID]; ok {
				continue
			}
			seen[rec.TicketID] = struct{}{}
			records = append(records, rec.Clone())
			added = append(added, rec.TicketID)
		}
		return records, len(added) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// ClaimNext marks the first Unset record for stage as InProgress.
func (s *FileStore) ClaimNext(ctx context.Context, stage Stage) (int64, bool, error) {
	if !stage.Valid() {
		return 0, false, fmt.Errorf("unknown stage %q", stage)
	}
	var (
		claimed int64
		found   bool
	)
	err := s.update(ctx, func(records []Record) ([]Record, bool, error) {
		for i := range records {
			if records[i].Status(stage).IsUnset() {
				records[i].SetStatus(stage, InProgress())
				claimed = records[i].TicketID
				found = true
				return records, true, nil
			}
		}
		return records, false, nil
	})
	if err != nil {
		return 0, false, err
	}
	return claimed, found, nil
}

// SetStatus writes a terminal status for id.
func (s *FileStore) SetStatus(ctx context.Context, id int64, stage Stage, status Status) error {
	if err := ValidateTerminal(stage, status); err != nil {
		return err
	}
	return s.update(ctx, func(records []Record) ([]Record, bool, error) {
		for i := range records {
			if records[i].TicketID == id {
				records[i].SetStatus(stage, status)
				return records, true, nil
			}
		}
		return records, false, services.Wrap(services.ErrNotFound, "ledger", "set status", fmt.Sprintf("ticket %d not in ledger", id), nil)
	})
}

// Finalize resolves every InProgress field of stage using eval.
func (s *FileStore) Finalize(ctx context.Context, stage Stage, eval Evaluator) (int, error) {
	if !stage.Valid() {
		return 0, fmt.Errorf("unknown stage %q", stage)
	}
	updated := 0
	err := s.update(ctx, func(records []Record) ([]Record, bool, error) {
		for i := range records {
			if !records[i].Status(stage).IsInProgress() {
				continue
			}
			records[i].SetStatus(stage, Resolve(eval(ctx, records[i].TicketID)))
			updated++
		}
		return records, updated > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// Get returns the record for id or nil when absent.
func (s *FileStore) Get(ctx context.Context, id int64) (*Record, error) {
	var found *Record
	err := s.lock.With(ctx, func() error {
		for _, rec := range s.read() {
			if rec.TicketID == id {
				clone := rec.Clone()
				found = &clone
				return nil
			}
		}
		return nil
	})
	return found, err
}

// StageStatus returns the committed status of id for stage.
func (s *FileStore) StageStatus(ctx context.Context, id int64, stage Stage) (Status, error) {
	rec, err := s.Get(ctx, id)
	if err != nil || rec == nil {
		return Unset(), err
	}
	return rec.Status(stage), nil
}

// List returns every record in insertion order.
func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	var records []Record
	err := s.lock.With(ctx, func() error {
		records = s.read()
		return nil
	})
	return records, err
}

var _ Store = (*FileStore)(nil)

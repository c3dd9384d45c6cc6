// Package completion implements the producer completion side channel and the
// worker termination policy that reads it.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"ticketsync/internal/config"
	"ticketsync/internal/filelock"
	"ticketsync/internal/fileutil"
	"ticketsync/internal/ledger"
	"ticketsync/internal/logging"
)

// Flag is the on-disk completion marker for one stage.
type Flag struct {
	ProducerComplete bool   `json:"producer_complete"`
	Timestamp        string `json:"timestamp"`
	Stage            string `json:"stage"`
}

// Flags reads and writes per-stage completion flags.
type Flags struct {
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
}

// NewFlags returns a Flags rooted at cfg.Paths.CompletionDir.
func NewFlags(cfg *config.Config, logger *slog.Logger) *Flags {
	return &Flags{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "completion"),
		now:    time.Now,
	}
}

// Path returns the flag document for stage.
func (f *Flags) Path(stage ledger.Stage) string {
	return f.cfg.CompletionFlagPath(string(stage))
}

func (f *Flags) lock(stage ledger.Stage) *filelock.Lock {
	return filelock.New(strings.TrimSuffix(f.Path(stage), ".json") + ".lock")
}

// MarkComplete records that the producer finished adding work for stage.
func (f *Flags) MarkComplete(ctx context.Context, stage ledger.Stage) error {
	lock := f.lock(stage)
	defer lock.Close()
	flag := Flag{
		ProducerComplete: true,
		Timestamp:        ledger.Timestamp(f.now()),
		Stage:            string(stage),
	}
	err := lock.With(ctx, func() error {
		return fileutil.WriteJSONAtomic(f.Path(stage), flag)
	})
	if err != nil {
		return fmt.Errorf("mark %s complete: %w", stage, err)
	}
	f.logger.Info("producer marked complete", logging.String(logging.FieldStage, string(stage)))
	return nil
}

// MarkAllComplete marks every stage complete.
func (f *Flags) MarkAllComplete(ctx context.Context) error {
	var errs []error
	for _, stage := range ledger.Stages() {
		if err := f.MarkComplete(ctx, stage); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsComplete reports whether the producer marked stage complete. Any read
// failure counts as not complete.
func (f *Flags) IsComplete(ctx context.Context, stage ledger.Stage) bool {
	path := f.Path(stage)
	if !fileutil.Exists(path) {
		return false
	}
	lock := f.lock(stage)
	defer lock.Close()
	var flag Flag
	err := lock.With(ctx, func() error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &flag)
	})
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) && ctx.Err() == nil {
			f.logger.Warn("completion flag unreadable",
				logging.String(logging.FieldStage, string(stage)),
				logging.Error(err),
			)
		}
		return false
	}
	return flag.ProducerComplete
}

// Clear removes the flag for stage so a fresh run starts not complete.
func (f *Flags) Clear(stage ledger.Stage) error {
	if err := os.Remove(f.Path(stage)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear %s completion flag: %w", stage, err)
	}
	return nil
}

// ClearAll removes every stage flag.
func (f *Flags) ClearAll() error {
	var errs []error
	for _, stage := range ledger.Stages() {
		if err := f.Clear(stage); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"ticketsync/internal/fileutil"
	"ticketsync/internal/services"
)

// DefaultPollInterval is the sleep between existence checks in Wait.
const DefaultPollInterval = 500 * time.Millisecond

// Store reads and writes ticket artifacts under one directory.
type Store struct {
	dir          string
	pollInterval time.Duration
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, pollInterval: DefaultPollInterval}
}

// WithPollInterval overrides the wait poll interval.
func (s *Store) WithPollInterval(d time.Duration) *Store {
	if d > 0 {
		s.pollInterval = d
	}
	return s
}

// Dir returns the artifact directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the artifact location for ticket id.
func (s *Store) Path(id int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("ticket_%d_complete.json", id))
}

// Exists reports whether the artifact for id is present.
func (s *Store) Exists(id int64) bool {
	return fileutil.Exists(s.Path(id))
}

// Write atomically replaces the artifact for ticket.ID.
func (s *Store) Write(ticket *Ticket) error {
	if ticket == nil || ticket.ID <= 0 {
		return services.Wrap(services.ErrValidation, "artifact", "write", "ticket id is required", nil)
	}
	if err := fileutil.WriteJSONAtomic(s.Path(ticket.ID), ticket); err != nil {
		return services.Wrap(services.ErrTransient, "artifact", "write", fmt.Sprintf("ticket %d", ticket.ID), err)
	}
	return nil
}

// Read loads the artifact for id. A missing artifact yields ErrNotFound and a
// malformed one ErrValidation.
func (s *Store) Read(id int64) (*Ticket, error) {
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "artifact", "read", fmt.Sprintf("ticket %d artifact missing", id), nil)
		}
		return nil, services.Wrap(services.ErrTransient, "artifact", "read", fmt.Sprintf("ticket %d", id), err)
	}
	var ticket Ticket
	if len(data) > 0 {
		if err := json.Unmarshal(data, &ticket); err != nil {
			return nil, services.Wrap(services.ErrValidation, "artifact", "decode", fmt.Sprintf("ticket %d artifact malformed", id), err)
		}
	}
	if ticket.ID == 0 {
		ticket.ID = id
	}
	return &ticket, nil
}

// Wait polls for the artifact until it appears, timeout elapses, or ctx is
// done. Expiry of the wait yields ErrNotFound; ctx cancellation yields ctx.Err().
func (s *Store) Wait(ctx context.Context, id int64, timeout time.Duration) (*Ticket, error) {
	path := s.Path(id)
	if fileutil.Exists(path) || timeout <= 0 {
		return s.Read(id)
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			if fileutil.Exists(path) {
				return s.Read(id)
			}
			return nil, services.Wrap(services.ErrTimeout, "artifact", "wait",
				fmt.Sprintf("ticket %d artifact not found after %s", id, timeout), services.ErrNotFound)
		case <-ticker.C:
			if fileutil.Exists(path) {
				return s.Read(id)
			}
		}
	}
}

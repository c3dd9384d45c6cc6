package ledger

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidStatus is returned when SetStatus receives a non-terminal value.
var ErrInvalidStatus = errors.New("status must be done or empty")

// Evaluator re-derives a final status for an abandoned claim by inspecting
// durable side effects only. It must not repeat the stage's external work.
type Evaluator func(ctx context.Context, id int64) Status

// Store is the coordination ledger contract shared by every backend.
type Store interface {
	// Merge appends records whose TicketID is absent and returns the ids added.
	// Existing records and their progress are left untouched.
	Merge(ctx context.Context, records []Record) ([]int64, error)
	// ClaimNext marks the first record (in insertion order) whose stage is
	// Unset as InProgress and returns its id. ok is false when nothing is
	// claimable.
	ClaimNext(ctx context.Context, stage Stage) (id int64, ok bool, err error)
	// SetStatus writes a terminal status for id. Unset and InProgress values
	// are rejected with ErrInvalidStatus.
	SetStatus(ctx context.Context, id int64, stage Stage, status Status) error
	// Finalize resolves every InProgress field of stage with eval in a single
	// critical section and returns how many records changed.
	Finalize(ctx context.Context, stage Stage, eval Evaluator) (int, error)
	// Get returns the record for id, or nil when absent.
	Get(ctx context.Context, id int64) (*Record, error)
	// StageStatus returns the committed status of id for stage (Unset when absent).
	StageStatus(ctx context.Context, id int64, stage Stage) (Status, error)
	// List returns a snapshot of every record in insertion order.
	List(ctx context.Context) ([]Record, error)
	Close() error
}

// ValidateTerminal checks the arguments every SetStatus implementation accepts.
func ValidateTerminal(stage Stage, status Status) error {
	if !stage.Valid() {
		return fmt.Errorf("unknown stage %q", stage)
	}
	if !status.IsTerminal() {
		return ErrInvalidStatus
	}
	return nil
}

// Resolve maps an evaluator result onto a terminal status; anything that is
// not Done or Empty resolves to Empty.
func Resolve(status Status) Status {
	if status.IsTerminal() {
		return status
	}
	return Empty()
}

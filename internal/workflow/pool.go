package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ticketsync/internal/ledger"
	"ticketsync/internal/logging"
	"ticketsync/internal/stage"
)

// Terminator decides when an idle worker exits.
type Terminator interface {
	ShouldStop(ctx context.Context, emptyChecks int) bool
}

// MaxEmptyChecks is a Terminator with a fixed threshold.
type MaxEmptyChecks int

// ShouldStop reports whether emptyChecks reached the threshold.
func (m MaxEmptyChecks) ShouldStop(_ context.Context, emptyChecks int) bool {
	return emptyChecks >= int(m)
}

// PoolOptions configure a Pool.
type PoolOptions struct {
	Workers      int
	PollInterval time.Duration
	// ErrorRetry is the back-off after a ledger I/O failure.
	ErrorRetry time.Duration
	// ClaimErrors is how many consecutive claim failures a worker tolerates
	// before it exits.
	ClaimErrors int
	Policy      Terminator
	// Wake, when set, lets idle workers resume before the poll interval.
	Wake   *Broadcaster
	Logger *slog.Logger
}

// Pool drains one stage of the ledger with a fixed number of workers.
type Pool struct {
	store ledger.Store
	proc  stage.Processor
	opts  PoolOptions

	logger *slog.Logger

	mu      sync.RWMutex
	running bool
	active  int
	counts  Counts
	lastErr error
	lastID  int64
	// abandoned counts workers that exited on repeated claim failures.
	abandoned int
}

// NewPool builds a Pool for proc.Stage().
func NewPool(store ledger.Store, proc stage.Processor, opts PoolOptions) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.ClaimErrors <= 0 {
		opts.ClaimErrors = 10
	}
	if opts.Policy == nil {
		opts.Policy = MaxEmptyChecks(60)
	}
	return &Pool{
		store:  store,
		proc:   proc,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "workflow-"+string(proc.Stage())+"-pool"),
	}
}

// Stage returns the stage this pool drains.
func (p *Pool) Stage() ledger.Stage {
	return p.proc.Stage()
}

package workflow_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ticketsync/internal/config"
	"ticketsync/internal/ledger"
	"ticketsync/internal/logging"
	"ticketsync/internal/stage"
	"ticketsync/internal/testsupport"
	"ticketsync/internal/workflow"
)

var backends = []string{config.BackendJSON, config.BackendSQLite}

// stubProcessor records every Process call and delegates the outcome to fn.
type stubProcessor struct {
	stage  ledger.Stage
	fn     func(ctx context.Context, id int64) (ledger.Status, error)
	eval   func(id int64) ledger.Status
	health stage.Health

	mu    sync.Mutex
	calls map[int64]int
}

func newStub(fn func(ctx context.Context, id int64) (ledger.Status, error)) *stubProcessor {
	return &stubProcessor{
		stage:  ledger.StageAttachments,
		fn:     fn,
		health: stage.Healthy(ledger.StageAttachments),
		calls:  make(map[int64]int),
	}
}

func (s *stubProcessor) Stage() ledger.Stage { return s.stage }

func (s *stubProcessor) Process(ctx context.Context, id int64) (ledger.Status, error) {
	s.mu.Lock()
	s.calls[id]++
	s.mu.Unlock()
	return s.fn(ctx, id)
}

func (s *stubProcessor) Evaluate(_ context.Context, id int64) ledger.Status {
	if s.eval == nil {
		return ledger.Empty()
	}
	return s.eval(id)
}

func (s *stubProcessor) HealthCheck(context.Context) stage.Health { return s.health }

func (s *stubProcessor) callCount(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

func (s *stubProcessor) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// unavailableStore fails every claim while delegating everything else.
type unavailableStore struct {
	ledger.Store
	finalizeCalls atomic.Int32
}

func (s *unavailableStore) ClaimNext(context.Context, ledger.Stage) (int64, bool, error) {
	return 0, false, errors.New("ledger: no space left on device")
}

func (s *unavailableStore) Finalize(ctx context.Context, stg ledger.Stage, eval ledger.Evaluator) (int, error) {
	s.finalizeCalls.Add(1)
	return s.Store.Finalize(ctx, stg, eval)
}

func doneWith(id int64) ledger.Status {
	return ledger.DoneAt([]string{"a" + strconv.FormatInt(id, 10)}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func newPool(store ledger.Store, proc stage.Processor, workers int, policy workflow.Terminator) *workflow.Pool {
	return workflow.NewPool(store, proc, workflow.PoolOptions{
		Workers:      workers,
		PollInterval: time.Millisecond,
		ErrorRetry:   time.Millisecond,
		Policy:       policy,
		Logger:       logging.NewNop(),
	})
}

func openStore(t *testing.T, backend string) ledger.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithBackend(backend))
	return testsupport.MustOpenStore(t, cfg)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

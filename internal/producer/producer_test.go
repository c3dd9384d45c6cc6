package producer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"ticketsync/internal/artifact"
	"ticketsync/internal/ledger"
	"ticketsync/internal/services"
	"ticketsync/internal/testsupport"
)

type fakeClient struct {
	ids     []int64
	missing map[int64]bool

	mu      sync.Mutex
	fetched []int64
}

func (c *fakeClient) ListTicketIDs(context.Context) ([]int64, error) {
	return c.ids, nil
}

func (c *fakeClient) FetchTicket(ctx context.Context, id int64) (*artifact.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.fetched = append(c.fetched, id)
	c.mu.Unlock()
	if c.missing[id] {
		return nil, services.Wrap(services.ErrNotFound, "source", "fetch", "gone", nil)
	}
	requester := id * 10
	return &artifact.Ticket{ID: id, CreatedAt: "2024-01-01T00:00:00Z", RequesterID: &requester}, nil
}

type countingNotifier struct{ n atomic.Int32 }

func (c *countingNotifier) Notify() { c.n.Add(1) }

type flagRecorder struct{ marked int }

func (f *flagRecorder) MarkAllComplete(context.Context) error {
	f.marked++
	return nil
}

func newProducer(t *testing.T, client *fakeClient, opts Options) (*Producer, ledger.Store, *countingNotifier, *flagRecorder) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &countingNotifier{}
	flags := &flagRecorder{}
	p := New(client, store, artifact.NewStore(cfg.Paths.ArtifactDir), notifier, flags, opts, nil)
	return p, store, notifier, flags
}

func TestRunMergesBatchesInOrder(t *testing.T) {
	client := &fakeClient{ids: []int64{5, 3, 9, 1, 7}}
	p, store, notifier, flags := newProducer(t, client, Options{BatchSize: 2, Concurrency: 2})

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Added != 5 || result.Batches != 3 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var order []int64
	for _, rec := range records {
		order = append(order, rec.TicketID)
		for _, stage := range ledger.Stages() {
			if !rec.Status(stage).IsUnset() {
				t.Fatalf("ticket %d %s should be Unset", rec.TicketID, stage)
			}
		}
	}
	want := []int64{5, 3, 9, 1, 7}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("insertion order = %v, want %v", order, want)
		}
	}
	if records[0].CreatedWhen != "2024-01-01T00:00:00Z" || records[0].CreatedBy != "50" {
		t.Fatalf("skeleton fields not copied: %+v", records[0])
	}
	if !p.artifacts.Exists(9) {
		t.Fatal("expected artifact for ticket 9")
	}
	if notifier.n.Load() != 3 {
		t.Fatalf("expected one notification per batch, got %d", notifier.n.Load())
	}
	if flags.marked != 1 {
		t.Fatalf("expected completion flags marked once, got %d", flags.marked)
	}
}

func TestRunSkipsKnownAndDuplicateIDs(t *testing.T) {
	client := &fakeClient{ids: []int64{1, 2, 2, 3}}
	p, store, _, _ := newProducer(t, client, Options{BatchSize: 10})
	testsupport.SeedRecords(t, store, 1)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Skipped != 2 || result.Added != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	for _, id := range client.fetched {
		if id == 1 {
			t.Fatal("ticket already in the ledger must not be fetched")
		}
	}
}

func TestRunLeavesFailedFetchesOut(t *testing.T) {
	client := &fakeClient{ids: []int64{1, 2, 3}, missing: map[int64]bool{2: true}}
	p, store, _, _ := newProducer(t, client, Options{BatchSize: 3})

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed != 1 || result.Added != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if rec, _ := store.Get(context.Background(), 2); rec != nil {
		t.Fatal("failed ticket must not be merged")
	}
}

func TestRunHonoursLimit(t *testing.T) {
	client := &fakeClient{ids: []int64{1, 2, 3, 4}}
	p, _, _, _ := newProducer(t, client, Options{BatchSize: 2, Limit: 3})
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Listed != 3 || result.Added != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunWithoutIDs(t *testing.T) {
	p, _, _, flags := newProducer(t, &fakeClient{}, Options{})
	_, err := p.Run(context.Background())
	if !errors.Is(err, ErrNoTickets) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrNoTickets, got %v", err)
	}
	if flags.marked != 0 {
		t.Fatal("flags must not be marked when nothing was produced")
	}
}

func TestRunCancelledDoesNotMarkComplete(t *testing.T) {
	client := &fakeClient{ids: []int64{1, 2}}
	p, _, _, flags := newProducer(t, client, Options{BatchSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Run(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if flags.marked != 0 {
		t.Fatal("cancelled run must not mark completion")
	}
}

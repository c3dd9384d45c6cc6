// Package ledgertest holds the behavioural contract every ledger.Store
// backend must satisfy. Backend packages call Run from their own tests.
package ledgertest

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"ticketsync/internal/ledger"
	"ticketsync/internal/services"
)

// Opener returns a fresh, empty store.
type Opener func(t *testing.T) ledger.Store

// Run executes the contract suite against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Helper()
	t.Run("MergeIsIdempotent", func(t *testing.T) { testMergeIsIdempotent(t, open(t)) })
	t.Run("ClaimFollowsInsertionOrder", func(t *testing.T) { testClaimOrder(t, open(t)) })
	t.Run("ConcurrentClaimsAreExclusive", func(t *testing.T) { testConcurrentClaims(t, open(t)) })
	t.Run("ConcurrentSetStatusLosesNothing", func(t *testing.T) { testNoLostUpdates(t, open(t)) })
	t.Run("SetStatusRejectsNonTerminal", func(t *testing.T) { testSetStatusValidation(t, open(t)) })
	t.Run("FinalizeResolvesAbandonedClaims", func(t *testing.T) { testFinalize(t, open(t)) })
	t.Run("EndToEndScenario", func(t *testing.T) { testEndToEnd(t, open(t)) })
}

func skeletons(ids ...int64) []ledger.Record {
	out := make([]ledger.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, ledger.NewRecord(id, "2024-01-01T00:00:00Z", "100"))
	}
	return out
}

func mustMerge(t *testing.T, store ledger.Store, ids ...int64) []int64 {
	t.Helper()
	added, err := store.Merge(context.Background(), skeletons(ids...))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	return added
}

func mustClaim(t *testing.T, store ledger.Store, stage ledger.Stage) (int64, bool) {
	t.Helper()
	id, ok, err := store.ClaimNext(context.Background(), stage)
	if err != nil {
		t.Fatalf("ClaimNext(%s): %v", stage, err)
	}
	return id, ok
}

func mustStatus(t *testing.T, store ledger.Store, id int64, stage ledger.Stage) ledger.Status {
	t.Helper()
	status, err := store.StageStatus(context.Background(), id, stage)
	if err != nil {
		t.Fatalf("StageStatus(%d, %s): %v", id, stage, err)
	}
	return status
}

func testMergeIsIdempotent(t *testing.T, store ledger.Store) {
	if added := mustMerge(t, store, 1, 2); !slices.Equal(added, []int64{1, 2}) {
		t.Fatalf("first merge added %v", added)
	}
	id, ok := mustClaim(t, store, ledger.StageAttachments)
	if !ok || id != 1 {
		t.Fatalf("claim = %d,%v want 1,true", id, ok)
	}
	if added := mustMerge(t, store, 1, 2, 3, 3); !slices.Equal(added, []int64{3}) {
		t.Fatalf("second merge added %v, want [3]", added)
	}
	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if !mustStatus(t, store, 1, ledger.StageAttachments).IsInProgress() {
		t.Fatal("merge must preserve existing progress")
	}
	if rec := records[0]; rec.CreatedWhen != "2024-01-01T00:00:00Z" || rec.CreatedBy != "100" {
		t.Fatalf("producer fields lost: %+v", rec)
	}
}

func testClaimOrder(t *testing.T, store ledger.Store) {
	if id, ok := mustClaim(t, store, ledger.StageConversations); ok {
		t.Fatalf("empty ledger returned claim %d", id)
	}
	mustMerge(t, store, 30, 10, 20)
	var got []int64
	for {
		id, ok := mustClaim(t, store, ledger.StageConversations)
		if !ok {
			break
		}
		got = append(got, id)
	}
	if !slices.Equal(got, []int64{30, 10, 20}) {
		t.Fatalf("claim order = %v, want insertion order", got)
	}
	if !mustStatus(t, store, 10, ledger.StageAttachments).IsUnset() {
		t.Fatal("claiming one stage must not touch another")
	}
	if !mustStatus(t, store, 999, ledger.StageAttachments).IsUnset() {
		t.Fatal("absent record should report Unset")
	}
	rec, err := store.Get(context.Background(), 999)
	if err != nil || rec != nil {
		t.Fatalf("Get(absent) = %v, %v", rec, err)
	}
}

func testConcurrentClaims(t *testing.T, store ledger.Store) {
	const total = 40
	ids := make([]int64, total)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	mustMerge(t, store, ids...)

	var (
		mu      sync.Mutex
		claimed = map[int64]int{}
		wg      sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				id, ok, err := store.ClaimNext(context.Background(), ledger.StageAttachments)
				if err != nil {
					t.Errorf("ClaimNext: %v", err)
					return
				}
				if !ok {
					return
				}
				mu.Lock()
				claimed[id]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != total {
		t.Fatalf("claimed %d distinct ids, want %d", len(claimed), total)
	}
	for id, n := range claimed {
		if n != 1 {
			t.Fatalf("ticket %d claimed %d times", id, n)
		}
	}
}

func testNoLostUpdates(t *testing.T, store ledger.Store) {
	const total = 20
	ids := make([]int64, total)
	for i := range ids {
		ids[i] = int64(i + 100)
	}
	mustMerge(t, store, ids...)

	var wg sync.WaitGroup
	for _, stage := range ledger.Stages() {
		for _, id := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				status := ledger.DoneAt([]string{string(stage)}, time.Unix(0, 0))
				if err := store.SetStatus(context.Background(), id, stage, status); err != nil {
					t.Errorf("SetStatus(%d,%s): %v", id, stage, err)
				}
			}()
		}
	}
	wg.Wait()

	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, rec := range records {
		for _, stage := range ledger.Stages() {
			if status := rec.Status(stage); !status.IsDone() || status.Items()[string(stage)] == "" {
				t.Fatalf("ticket %d %s lost update: %v", rec.TicketID, stage, status)
			}
		}
	}
}

func testSetStatusValidation(t *testing.T, store ledger.Store) {
	mustMerge(t, store, 5)
	ctx := context.Background()
	for _, bad := range []ledger.Status{ledger.Unset(), ledger.InProgress()} {
		if err := store.SetStatus(ctx, 5, ledger.StageAttachments, bad); !errors.Is(err, ledger.ErrInvalidStatus) {
			t.Fatalf("SetStatus(%v) err = %v, want ErrInvalidStatus", bad, err)
		}
	}
	if err := store.SetStatus(ctx, 404, ledger.StageAttachments, ledger.Empty()); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("SetStatus(absent) err = %v, want ErrNotFound", err)
	}
	if err := store.SetStatus(ctx, 5, ledger.StageAttachments, ledger.Empty()); err != nil {
		t.Fatalf("SetStatus(Empty): %v", err)
	}
	if !mustStatus(t, store, 5, ledger.StageAttachments).IsEmpty() {
		t.Fatal("expected Empty after SetStatus")
	}
}

func testFinalize(t *testing.T, store ledger.Store) {
	mustMerge(t, store, 1, 2, 3, 4)
	ctx := context.Background()
	// 1 and 2 abandoned in progress, 3 resolved normally, 4 never claimed.
	for i := 0; i < 3; i++ {
		mustClaim(t, store, ledger.StageAttachments)
	}
	if err := store.SetStatus(ctx, 3, ledger.StageAttachments, ledger.Empty()); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	var evaluated []int64
	eval := func(_ context.Context, id int64) ledger.Status {
		evaluated = append(evaluated, id)
		switch id {
		case 1:
			return ledger.Done(map[string]string{"a1": "2024-01-01T00:00:00Z"})
		case 2:
			return ledger.InProgress()
		default:
			return ledger.Empty()
		}
	}
	n, err := store.Finalize(ctx, ledger.StageAttachments, eval)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if n != 2 || !slices.Equal(evaluated, []int64{1, 2}) {
		t.Fatalf("Finalize updated %d evaluated %v, want 2 [1 2]", n, evaluated)
	}
	if got := mustStatus(t, store, 1, ledger.StageAttachments); !got.IsDone() || got.Items()["a1"] == "" {
		t.Fatalf("ticket 1 = %v, want done mapping", got)
	}
	if !mustStatus(t, store, 2, ledger.StageAttachments).IsEmpty() {
		t.Fatal("non-terminal evaluator result must resolve to Empty")
	}
	if !mustStatus(t, store, 4, ledger.StageAttachments).IsUnset() {
		t.Fatal("finalize must not touch Unset records")
	}

	n, err = store.Finalize(ctx, ledger.StageAttachments, eval)
	if err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
	if n != 0 {
		t.Fatalf("second Finalize updated %d, want 0", n)
	}
}

func testEndToEnd(t *testing.T, store ledger.Store) {
	mustMerge(t, store, 7)
	id, ok := mustClaim(t, store, ledger.StageAttachments)
	if !ok || id != 7 {
		t.Fatalf("claim = %d,%v want 7,true", id, ok)
	}
	if !mustStatus(t, store, 7, ledger.StageAttachments).IsInProgress() {
		t.Fatal("claimed record must be InProgress")
	}
	want := map[string]string{"101": "2024-01-01T00:00:00Z"}
	if err := store.SetStatus(context.Background(), 7, ledger.StageAttachments, ledger.Done(want)); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	rec, err := store.Get(context.Background(), 7)
	if err != nil || rec == nil {
		t.Fatalf("Get: %v %v", rec, err)
	}
	if got := rec.Status(ledger.StageAttachments); !got.Equal(ledger.Done(want)) {
		t.Fatalf("status = %v, want done(%v)", got, want)
	}
	if id, ok := mustClaim(t, store, ledger.StageAttachments); ok {
		t.Fatalf("second claim returned %d, want none", id)
	}
}

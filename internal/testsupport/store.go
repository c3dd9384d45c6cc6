package testsupport

import (
	"context"
	"testing"

	"ticketsync/internal/config"
	"ticketsync/internal/ledger"
	"ticketsync/internal/ledgeraccess"
	"ticketsync/internal/logging"
)

// MustOpenStore opens the configured ledger backend and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) ledger.Store {
	t.Helper()

	store, err := ledgeraccess.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("ledgeraccess.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// SeedRecords merges skeleton records for ids into store.
func SeedRecords(t testing.TB, store ledger.Store, ids ...int64) {
	t.Helper()

	records := make([]ledger.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, ledger.NewRecord(id, "2024-01-01T00:00:00Z", "1"))
	}
	if _, err := store.Merge(context.Background(), records); err != nil {
		t.Fatalf("store.Merge: %v", err)
	}
}

// MustStatus returns the committed status of id for stage.
func MustStatus(t testing.TB, store ledger.Store, id int64, stage ledger.Stage) ledger.Status {
	t.Helper()

	status, err := store.StageStatus(context.Background(), id, stage)
	if err != nil {
		t.Fatalf("store.StageStatus: %v", err)
	}
	return status
}

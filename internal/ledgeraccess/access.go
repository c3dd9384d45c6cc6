// Package ledgeraccess opens the configured ledger backend and provides a
// read-only view that prefers a running status endpoint over direct access.
package ledgeraccess

import (
	"context"
	"fmt"
	"log/slog"

	"ticketsync/internal/config"
	"ticketsync/internal/ledger"
	"ticketsync/internal/ledger/sqlitestore"
	"ticketsync/internal/statusapi"
)

// Open returns the ledger.Store selected by cfg.Ledger.Backend.
func Open(cfg *config.Config, logger *slog.Logger) (ledger.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("open ledger: config is nil")
	}
	switch cfg.Ledger.Backend {
	case config.BackendSQLite:
		store, err := sqlitestore.Open(cfg.LedgerPath(), logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendJSON, "":
		store, err := ledger.OpenFile(cfg.LedgerPath(), logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("open ledger: unsupported backend %q", cfg.Ledger.Backend)
	}
}

// Access provides read-only progress views regardless of backing.
type Access interface {
	Summary(ctx context.Context) (statusapi.Summary, error)
	Describe(ctx context.Context, id int64) (*ledger.Record, error)
	List(ctx context.Context) ([]ledger.Record, error)
}

// NewStoreAccess returns an Access backed by direct ledger access.
func NewStoreAccess(store ledger.Store, attachments statusapi.AttachmentLister) Access {
	return &storeAccess{store: store, attachments: attachments}
}

type storeAccess struct {
	store       ledger.Store
	attachments statusapi.AttachmentLister
}

func (a *storeAccess) Summary(ctx context.Context) (statusapi.Summary, error) {
	return statusapi.BuildSummary(ctx, a.store, a.attachments)
}

func (a *storeAccess) Describe(ctx context.Context, id int64) (*ledger.Record, error) {
	return a.store.Get(ctx, id)
}

func (a *storeAccess) List(ctx context.Context) ([]ledger.Record, error) {
	return a.store.List(ctx)
}

var _ Access = (*statusapi.Client)(nil)

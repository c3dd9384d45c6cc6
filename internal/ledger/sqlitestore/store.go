// Package sqlitestore implements the coordination ledger on an embedded
// SQLite database. Claims and finalization run inside IMMEDIATE
// transactions so concurrent workers and processes serialize on the
// database write lock instead of a sidecar lock file.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"ticketsync/internal/ledger"
	"ticketsync/internal/logging"
	"ticketsync/internal/services"
)

// Store is a ledger.Store backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open creates or connects to the ledger database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "open", "ledger database path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection per process; other processes wait on busy_timeout.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, path: path, logger: logging.NewComponentLogger(logger, "ledger")}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func dsn(path string) string {
	query := url.Values{}
	query.Add("_pragma", "journal_mode(WAL)")
	query.Add("_pragma", "busy_timeout(5000)")
	query.Add("_pragma", "synchronous(NORMAL)")
	query.Set("_txlock", "immediate")
	return "file:" + path + "?" + query.Encode()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func column(stage ledger.Stage) (string, error) {
	if !stage.Valid() {
		return "", fmt.Errorf("unknown stage %q", stage)
	}
	return string(stage), nil
}

func encodeStatus(status ledger.Status) (any, error) {
	if status.IsUnset() {
		return nil, nil
	}
	data, err := json.Marshal(status)
	if err != nil {
		return nil, fmt.Errorf("encode status: %w", err)
	}
	return string(data), nil
}

func decodeStatus(raw sql.NullString) ledger.Status {
	if !raw.Valid {
		return ledger.Unset()
	}
	var status ledger.Status
	if err := json.Unmarshal([]byte(raw.String), &status); err != nil {
		return ledger.Unset()
	}
	return status
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// withTx runs fn in a write transaction, retrying when the database is busy.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Merge inserts records whose ticket id is not yet present.
func (s *Store) Merge(ctx context.Context, records []ledger.Record) ([]int64, error) {
	if len(records) == 0 {
		return nil, nil
	}
	var added []int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		added = added[:0]
		stamp := now()
		for _, rec := range records {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO records (ticket_id, created_when, created_by, updated_at)
                 VALUES (?, ?, ?, ?)
                 ON CONFLICT(ticket_id) DO NOTHING`,
				rec.TicketID, rec.CreatedWhen, rec.CreatedBy, stamp,
			)
			if err != nil {
				return fmt.Errorf("insert ticket %d: %w", rec.TicketID, err)
			}
			if n, err := res.RowsAffected(); err == nil && n > 0 {
				added = append(added, rec.TicketID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// ClaimNext marks the lowest-sequence Unset record for stage as InProgress.
func (s *Store) ClaimNext(ctx context.Context, stage ledger.Stage) (int64, bool, error) {
	col, err := column(stage)
	if err != nil {
		return 0, false, err
	}
	marker, _ := encodeStatus(ledger.InProgress())
	var (
		id    int64
		found bool
	)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		found = false
		row := tx.QueryRowContext(ctx,
			`SELECT ticket_id FROM records WHERE `+col+` IS NULL ORDER BY seq LIMIT 1`)
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("select claimable: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE records SET `+col+` = ?, updated_at = ? WHERE ticket_id = ?`,
			marker, now(), id,
		); err != nil {
			return fmt.Errorf("claim ticket %d: %w", id, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return id, found, nil
}

// SetStatus writes a terminal status for id.
func (s *Store) SetStatus(ctx context.Context, id int64, stage ledger.Stage, status ledger.Status) error {
	if err := ledger.ValidateTerminal(stage, status); err != nil {
		return err
	}
	col, _ := column(stage)
	value, err := encodeStatus(status)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE records SET `+col+` = ?, updated_at = ? WHERE ticket_id = ?`,
			value, now(), id,
		)
		if err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return services.Wrap(services.ErrNotFound, "ledger", "set status", fmt.Sprintf("ticket %d not in ledger", id), nil)
		}
		return nil
	})
}

// Finalize resolves every InProgress field of stage inside one transaction.
func (s *Store) Finalize(ctx context.Context, stage ledger.Stage, eval ledger.Evaluator) (int, error) {
	col, err := column(stage)
	if err != nil {
		return 0, err
	}
	marker, _ := encodeStatus(ledger.InProgress())
	updated := 0
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		updated = 0
		rows, err := tx.QueryContext(ctx,
			`SELECT ticket_id FROM records WHERE `+col+` = ? ORDER BY seq`, marker)
		if err != nil {
			return fmt.Errorf("select in-progress: %w", err)
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return fmt.Errorf("scan in-progress: %w", err)
			}
			ids = append(ids, id)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		for _, id := range ids {
			value, err := encodeStatus(ledger.Resolve(eval(ctx, id)))
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE records SET `+col+` = ?, updated_at = ? WHERE ticket_id = ?`,
				value, now(), id,
			); err != nil {
				return fmt.Errorf("finalize ticket %d: %w", id, err)
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		s.logger.Debug("finalized abandoned claims",
			logging.String(logging.FieldStage, string(stage)),
			logging.Int("count", updated),
		)
	}
	return updated, nil
}

const recordColumns = `ticket_id, created_when, created_by, attachments, conversations, conversation_attachments`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (ledger.Record, error) {
	var (
		id                   int64
		createdWhen, creator string
		att, conv, convAtt   sql.NullString
	)
	if err := row.Scan(&id, &createdWhen, &creator, &att, &conv, &convAtt); err != nil {
		return ledger.Record{}, err
	}
	rec := ledger.NewRecord(id, createdWhen, creator)
	for stage, raw := range map[ledger.Stage]sql.NullString{
		ledger.StageAttachments:             att,
		ledger.StageConversations:           conv,
		ledger.StageConversationAttachments: convAtt,
	} {
		if status := decodeStatus(raw); !status.IsUnset() {
			rec.SetStatus(stage, status)
		}
	}
	return rec, nil
}

// Get returns the record for id or nil when absent.
func (s *Store) Get(ctx context.Context, id int64) (*ledger.Record, error) {
	var rec ledger.Record
	err := retryOnBusy(ctx, func() error {
		var scanErr error
		rec, scanErr = scanRecord(s.db.QueryRowContext(ctx,
			`SELECT `+recordColumns+` FROM records WHERE ticket_id = ?`, id))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %d: %w", id, err)
	}
	return &rec, nil
}

// StageStatus returns the committed status of id for stage.
func (s *Store) StageStatus(ctx context.Context, id int64, stage ledger.Stage) (ledger.Status, error) {
	if _, err := column(stage); err != nil {
		return ledger.Unset(), err
	}
	rec, err := s.Get(ctx, id)
	if err != nil || rec == nil {
		return ledger.Unset(), err
	}
	return rec.Status(stage), nil
}

// List returns every record in insertion order.
func (s *Store) List(ctx context.Context) ([]ledger.Record, error) {
	var records []ledger.Record
	err := retryOnBusy(ctx, func() error {
		records = records[:0]
		rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM records ORDER BY seq`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

var _ ledger.Store = (*Store)(nil)

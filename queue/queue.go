// Package queue implements the durable local submission queue backed by
// SQLite.
//
// Inspections captured while the device is offline are appended here and
// drained later, oldest first. Rows are immutable once written: the only
// operations are append, list, count and remove. There is no visibility
// timeout — drains are serialized by the caller, so claims are never
// contended.
//
// Expected schema (created automatically by EnsureTable):
//
//	CREATE TABLE IF NOT EXISTS pending_submissions (
//	    id          TEXT PRIMARY KEY,
//	    payload     BLOB NOT NULL,
//	    created_at  INTEGER NOT NULL  -- milliseconds since epoch
//	);
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LucaslFerrari/App-Inspecao/dbopen"
	"github.com/LucaslFerrari/App-Inspecao/idgen"
)

// Item is a queued submission.
type Item struct {
	ID        string
	Payload   []byte
	CreatedAt time.Time
}

// Options configures queue behaviour.
type Options struct {
	// IDs generates local identifiers for enqueued items.
	// Default: idgen.Local() ("<unix-millis>-<suffix>", time-sortable).
	IDs idgen.Generator
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.IDs == nil {
		o.IDs = idgen.Local()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Q is the queue handle.
type Q struct {
	db   *sql.DB
	opts Options
}

// New creates a queue handle over an already-open database.
// Call EnsureTable once at startup.
func New(db *sql.DB, opts Options) *Q {
	opts.defaults()
	return &Q{db: db, opts: opts}
}

// Open opens (or creates) the queue database at path and ensures the table
// exists. Failures are wrapped in ErrStorageUnavailable so callers can
// degrade gracefully when the local disk is unusable.
func Open(path string, opts Options) (*Q, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	q := New(db, opts)
	if err := q.EnsureTable(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return q, nil
}

// Close closes the underlying database.
func (q *Q) Close() error {
	return q.db.Close()
}

// EnsureTable creates the pending_submissions table if it doesn't exist.
func (q *Q) EnsureTable(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pending_submissions (
			id          TEXT PRIMARY KEY,
			payload     BLOB NOT NULL,
			created_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_pending_created ON pending_submissions (created_at);
	`)
	if err != nil {
		return fmt.Errorf("%w: ensure table: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Enqueue appends a payload and returns the generated local id.
func (q *Q) Enqueue(ctx context.Context, payload []byte) (string, error) {
	id := q.opts.IDs()
	now := time.Now().UnixMilli()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO pending_submissions (id, payload, created_at) VALUES (?,?,?)`,
		id, payload, now,
	)
	if err != nil {
		return "", fmt.Errorf("%w: enqueue: %v", ErrStorageUnavailable, err)
	}
	q.opts.Logger.Info("queue: submission enqueued", "id", id, "bytes", len(payload))
	return id, nil
}

// ListAll returns every queued item, oldest first. The slice is non-nil
// even when the queue is empty.
func (q *Q) ListAll(ctx context.Context) ([]Item, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, payload, created_at FROM pending_submissions
		ORDER BY created_at ASC, rowid ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		var creAt int64
		if err := rows.Scan(&it.ID, &it.Payload, &creAt); err != nil {
			return nil, fmt.Errorf("%w: list scan: %v", ErrStorageUnavailable, err)
		}
		it.CreatedAt = time.UnixMilli(creAt)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list rows: %v", ErrStorageUnavailable, err)
	}
	return items, nil
}

// RemoveMany deletes the given ids, each independently; a missing id is not
// an error, and a failure on one id does not stop the others. The ids here
// are submissions the server already accepted, so every one that can be
// removed must be. Returns the number of rows actually removed alongside
// the joined per-id errors, if any.
func (q *Q) RemoveMany(ctx context.Context, ids []string) (int, error) {
	removed := 0
	var errs []error
	for _, id := range ids {
		res, err := q.db.ExecContext(ctx,
			`DELETE FROM pending_submissions WHERE id = ?`, id,
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: remove %s: %v", ErrStorageUnavailable, id, err))
			continue
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += int(n)
		}
	}
	return removed, errors.Join(errs...)
}

// Count returns the number of queued items.
func (q *Q) Count(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_submissions`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrStorageUnavailable, err)
	}
	return n, nil
}

// Purge deletes every queued item.
func (q *Q) Purge(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM pending_submissions`)
	if err != nil {
		return fmt.Errorf("%w: purge: %v", ErrStorageUnavailable, err)
	}
	return nil
}

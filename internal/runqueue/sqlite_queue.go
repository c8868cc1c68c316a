package runqueue

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLiteQueue is a durable Queue backed by SQLite, so start requests survive
// process restarts. It uses simple FIFO semantics based on an
// auto-incrementing id and is safe for concurrent consumers: a dequeued row
// is claimed and deleted in one transaction.
//
// It expects an *sql.DB using a SQLite driver (for example,
// "modernc.org/sqlite") and can share the database with a journal store.
type SQLiteQueue struct {
	db           *sql.DB
	pollInterval time.Duration
}

// NewSQLiteQueue initializes the start_requests table in the given database
// and returns a new queue.
func NewSQLiteQueue(db *sql.DB) (*SQLiteQueue, error) {
	q := &SQLiteQueue{
		db:           db,
		pollInterval: 20 * time.Millisecond,
	}
	if err := q.initSchema(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *SQLiteQueue) initSchema() error {
	_, err := q.db.Exec(`
		CREATE TABLE IF NOT EXISTS start_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			task_name TEXT NOT NULL,
			args BLOB,
			enqueued_at INTEGER NOT NULL
		);
	`)
	return err
}

// Ensure SQLiteQueue implements Queue.
var _ Queue = (*SQLiteQueue)(nil)

func (q *SQLiteQueue) Enqueue(ctx context.Context, req StartRequest) error {
	args, err := EncodeArgs(req.Args)
	if err != nil {
		return err
	}

	enqueuedAt := req.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now()
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO start_requests (run_id, task_name, args, enqueued_at)
		VALUES (?, ?, ?, ?)`,
		req.RunID,
		req.TaskName,
		args,
		enqueuedAt.UnixNano(),
	)
	return err
}

func (q *SQLiteQueue) Dequeue(ctx context.Context) (*StartRequest, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		tx, err := q.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}

		var (
			id         int64
			req        StartRequest
			args       []byte
			enqueuedAt int64
		)
		row := tx.QueryRowContext(ctx, `
			SELECT id, run_id, task_name, args, enqueued_at
			FROM start_requests
			ORDER BY id
			LIMIT 1`)
		err = row.Scan(&id, &req.RunID, &req.TaskName, &args, &enqueuedAt)
		if err != nil {
			_ = tx.Rollback()
			if errors.Is(err, sql.ErrNoRows) {
				// Nothing available: sleep a bit and retry.
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(q.pollInterval):
					continue
				}
			}
			return nil, err
		}

		// Delete the row we just claimed; zero rows affected means another
		// consumer won the race for it.
		res, err := tx.ExecContext(ctx, `DELETE FROM start_requests WHERE id = ?`, id)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}

		decoded, err := DecodeArgs(args)
		if err != nil {
			return nil, err
		}
		req.Args = decoded
		req.EnqueuedAt = time.Unix(0, enqueuedAt)
		return &req, nil
	}
}

func (q *SQLiteQueue) Len() int {
	var n int
	if err := q.db.QueryRow(`SELECT COUNT(*) FROM start_requests`).Scan(&n); err != nil {
		return 0
	}
	return n
}

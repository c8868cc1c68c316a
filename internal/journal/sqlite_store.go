package journal

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/mharju/stepline/pkg/flow"
)

// SQLiteStore is a Store backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing the
// driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the required schema in the given database and
// returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			task_name TEXT NOT NULL,
			status TEXT NOT NULL,
			results BLOB,
			error TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS run_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			task_name TEXT NOT NULL DEFAULT '',
			step INTEGER NOT NULL DEFAULT -1,
			step_name TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_run_events_run_id ON run_events(run_id, id);
	`)
	return err
}

func (s *SQLiteStore) SaveRun(run *flow.RunRecord) error {
	results, err := EncodeValues(run.Results)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, task_name, status, results, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.TaskName,
		string(run.Status),
		results,
		run.Error,
		run.StartedAt.UnixNano(),
		nanosOrZero(run.FinishedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return s.UpdateRun(run)
	}
	return err
}

func (s *SQLiteStore) UpdateRun(run *flow.RunRecord) error {
	results, err := EncodeValues(run.Results)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`
		UPDATE runs
		SET task_name = ?, status = ?, results = ?, error = ?, started_at = ?, finished_at = ?
		WHERE id = ?`,
		run.TaskName,
		string(run.Status),
		results,
		run.Error,
		run.StartedAt.UnixNano(),
		nanosOrZero(run.FinishedAt),
		run.RunID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (s *SQLiteStore) GetRun(id string) (*flow.RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, task_name, status, results, error, started_at, finished_at
		FROM runs WHERE id = ?`, id)

	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(filter flow.RunFilter) ([]*flow.RunRecord, error) {
	query := `
		SELECT id, task_name, status, results, error, started_at, finished_at
		FROM runs`
	var (
		conds []string
		args  []any
	)
	if filter.TaskName != "" {
		conds = append(conds, "task_name = ?")
		args = append(args, filter.TaskName)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY started_at ASC, id ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*flow.RunRecord
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, run)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev flow.RunEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_events (run_id, at, type, task_name, step, step_name, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID,
		at.UnixNano(),
		string(ev.Type),
		ev.TaskName,
		ev.Step,
		ev.StepName,
		ev.Detail,
	)
	return err
}

func (s *SQLiteStore) ListEvents(ctx context.Context, runID string) ([]flow.RunEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, at, type, task_name, step, step_name, detail
		FROM run_events
		WHERE run_id = ?
		ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []flow.RunEvent
	for rows.Next() {
		var (
			ev  flow.RunEvent
			at  int64
			typ string
		)
		if err := rows.Scan(&ev.RunID, &at, &typ, &ev.TaskName, &ev.Step, &ev.StepName, &ev.Detail); err != nil {
			return nil, err
		}
		ev.At = time.Unix(0, at)
		ev.Type = flow.EventType(typ)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanRun(scan func(dest ...any) error) (*flow.RunRecord, error) {
	var (
		run        flow.RunRecord
		status     string
		results    []byte
		startedAt  int64
		finishedAt int64
	)
	if err := scan(&run.RunID, &run.TaskName, &status, &results, &run.Error, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	values, err := DecodeValues(results)
	if err != nil {
		return nil, err
	}

	run.Status = flow.Status(status)
	run.Results = values
	run.StartedAt = time.Unix(0, startedAt)
	if finishedAt != 0 {
		run.FinishedAt = time.Unix(0, finishedAt)
	}
	return &run, nil
}

func nanosOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

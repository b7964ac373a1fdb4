package storage

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chhz0/superv/types"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS task_results (
			task_id TEXT PRIMARY KEY,
			worker_id TEXT NOT NULL,
			success INTEGER NOT NULL,
			result BLOB,
			error TEXT,
			duration_ms INTEGER NOT NULL,
			reported_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_results_success ON task_results(success);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveResult(ctx context.Context, res *types.TaskResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO task_results
		(task_id, worker_id, success, result, error, duration_ms, reported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.TaskID, res.WorkerID, res.Success, []byte(res.Result),
		res.Error, res.DurationMs, res.ReportedAt,
	)
	return err
}

func (s *SQLiteStore) GetResult(ctx context.Context, taskID string) (*types.TaskResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT task_id, worker_id, success, result, error, duration_ms, reported_at
		FROM task_results WHERE task_id = ?`, taskID)

	var res types.TaskResult
	var result []byte
	var reportedAt time.Time
	err := row.Scan(&res.TaskID, &res.WorkerID, &res.Success, &result,
		&res.Error, &res.DurationMs, &reportedAt)
	if err == sql.ErrNoRows {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	res.Result = result
	res.ReportedAt = reportedAt
	return &res, nil
}

func (s *SQLiteStore) CountByOutcome(ctx context.Context) (int, int, error) {
	var completed, failed int
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(CASE WHEN success = 1 THEN 1 END),
			COUNT(CASE WHEN success = 0 THEN 1 END)
		FROM task_results`).Scan(&completed, &failed)
	if err != nil {
		return 0, 0, err
	}
	return completed, failed, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

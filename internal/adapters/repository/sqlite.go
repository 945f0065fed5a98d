package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/okian/roster/internal/domain/batch"
	"github.com/okian/roster/internal/domain/exporterr"
	"github.com/okian/roster/pkg/logger"
	"github.com/okian/roster/pkg/metrics"
)

const defaultMaxList = 50

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		event_id    INTEGER NOT NULL,
		team_id     INTEGER,
		status      TEXT NOT NULL,
		total       INTEGER NOT NULL DEFAULT 0,
		done        INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		not_run     INTEGER NOT NULL DEFAULT 0,
		halt_reason TEXT NOT NULL DEFAULT '',
		started_at  DATETIME NOT NULL,
		finished_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		run_id     TEXT NOT NULL,
		job_id     INTEGER NOT NULL,
		team_id    INTEGER NOT NULL,
		team_name  TEXT NOT NULL,
		target     TEXT NOT NULL DEFAULT '',
		state      TEXT NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		message    TEXT NOT NULL DEFAULT '',
		warnings   INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, job_id)
	)`,
	`CREATE TABLE IF NOT EXISTS job_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT NOT NULL,
		job_id     INTEGER NOT NULL,
		from_state TEXT NOT NULL,
		to_state   TEXT NOT NULL,
		error      TEXT NOT NULL DEFAULT '',
		at         DATETIME NOT NULL
	)`,
}

// SQLiteStore is a Store backed by one sqlite file.
type SQLiteStore struct {
	db      *sql.DB
	maxList int
	logger  logger.Logger
}

var _ Store = (*SQLiteStore)(nil)

// Open opens or creates the history database at path. ":memory:" keeps the
// history for the life of the process.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// One connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, maxList: defaultMaxList}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("repository")
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate history: %w", err)
		}
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// StartRun implements Store.
func (s *SQLiteStore) StartRun(ctx context.Context, run RunRecord, jobs []JobRecord) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, event_id, team_id, status, total, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, run.EventID, nullInt(run.TeamID), StatusRunning, len(jobs), run.StartedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for _, j := range jobs {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO jobs (run_id, job_id, team_id, team_name, target, state, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				run.ID, j.JobID, j.TeamID, j.TeamName, j.Target, batch.Pending.String(), run.StartedAt.UTC())
			if err != nil {
				return fmt.Errorf("insert job %d: %w", j.JobID, err)
			}
		}
		return nil
	})
}

// Emit records a job transition. Failures are logged, never returned, so a
// history problem cannot fail an export.
func (s *SQLiteStore) Emit(ctx context.Context, e batch.Event) {
	ctx = context.WithoutCancel(ctx)
	errText := ""
	if e.Err != nil {
		errText = e.Err.Error()
	}
	err := s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (run_id, job_id, team_id, team_name, target, state, error_kind, message, warnings, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (run_id, job_id) DO UPDATE SET
			     state = excluded.state,
			     error_kind = excluded.error_kind,
			     message = excluded.message,
			     warnings = excluded.warnings,
			     updated_at = excluded.updated_at`,
			e.RunID, e.JobID, e.TeamID, e.TeamName, e.Target, e.To.String(),
			exporterr.Kind(e.Err), exporterr.Message(e.Err), len(e.Warnings), e.At.UTC())
		if err != nil {
			return fmt.Errorf("upsert job: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO job_events (run_id, job_id, from_state, to_state, error, at) VALUES (?, ?, ?, ?, ?, ?)`,
			e.RunID, e.JobID, e.From.String(), e.To.String(), errText, e.At.UTC())
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.RecordErrorByComponent("repository", "write")
		s.logger.Warn(ctx, "could not record job event",
			logger.String("run_id", e.RunID),
			logger.Int("job_id", e.JobID),
			logger.Error(err),
		)
	}
}

// FinishRun implements Store.
func (s *SQLiteStore) FinishRun(ctx context.Context, sum batch.Summary) error {
	halt := ""
	if sum.HaltReason != nil {
		halt = exporterr.Message(sum.HaltReason)
	}
	finished := sum.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	ctx = context.WithoutCancel(ctx)
	return s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE runs SET status = ?, done = ?, failed = ?, not_run = ?, halt_reason = ?, finished_at = ?
			 WHERE id = ?`,
			sum.Outcome(), sum.Done, sum.Failed, sum.NotRun, halt, finished.UTC(), sum.RunID)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, sum.RunID)
		}
		return nil
	})
}

// ListRuns implements Store. A zero limit means the configured maximum.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if limit == 0 || limit > s.maxList {
		limit = s.maxList
	}
	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun implements Store.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (RunRecord, []JobRecord, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return RunRecord{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, team_id, team_name, target, state, error_kind, message, warnings, updated_at
		 FROM jobs WHERE run_id = ? ORDER BY job_id`, id)
	if err != nil {
		return RunRecord{}, nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var j JobRecord
		if err := rows.Scan(&j.JobID, &j.TeamID, &j.TeamName, &j.Target, &j.State,
			&j.ErrorKind, &j.Message, &j.Warnings, &j.UpdatedAt); err != nil {
			return RunRecord{}, nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return run, jobs, rows.Err()
}

const selectRun = `SELECT id, event_id, team_id, status, total, done, failed, not_run, halt_reason, started_at, finished_at FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var (
		r        RunRecord
		teamID   sql.Null[int64]
		finished sql.Null[time.Time]
	)
	err := row.Scan(&r.ID, &r.EventID, &teamID, &r.Status, &r.Total, &r.Done, &r.Failed,
		&r.NotRun, &r.HaltReason, &r.StartedAt, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan run: %w", err)
	}
	if teamID.Valid {
		r.TeamID = &teamID.V
	}
	if finished.Valid {
		r.FinishedAt = &finished.V
	}
	return r, nil
}

func (s *SQLiteStore) write(ctx context.Context, fn func(tx *sql.Tx) error) error {
	start := time.Now()
	defer func() {
		metrics.RecordHistoryWriteLatency(float64(time.Since(start).Milliseconds()))
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullInt(v *int64) sql.Null[int64] {
	if v == nil {
		return sql.Null[int64]{}
	}
	return sql.Null[int64]{V: *v, Valid: true}
}

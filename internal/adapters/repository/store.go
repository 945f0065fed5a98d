// Package repository keeps the history of export runs and their jobs.
package repository

import (
	"context"
	"time"

	"github.com/okian/roster/internal/domain/batch"
)

// Run statuses as stored.
const (
	StatusRunning = "running"
)

// RunRecord is one stored run.
type RunRecord struct {
	ID         string     `json:"run_id"`
	EventID    int64      `json:"event_id"`
	TeamID     *int64     `json:"team_id,omitempty"`
	Status     string     `json:"status"`
	Total      int        `json:"total"`
	Done       int        `json:"done"`
	Failed     int        `json:"failed"`
	NotRun     int        `json:"not_run"`
	HaltReason string     `json:"halt_reason,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// JobRecord is the latest known state of one job.
type JobRecord struct {
	JobID     int       `json:"job_id"`
	TeamID    int64     `json:"team_id"`
	TeamName  string    `json:"team_name"`
	Target    string    `json:"target,omitempty"`
	State     string    `json:"state"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	Warnings  int       `json:"warnings"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store records runs as they happen. It is also a batch.Sink.
type Store interface {
	batch.Sink

	// StartRun stores a new run with all of its jobs pending.
	StartRun(ctx context.Context, run RunRecord, jobs []JobRecord) error
	// FinishRun stores the final counts of a run.
	FinishRun(ctx context.Context, s batch.Summary) error
	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	// GetRun returns a run and its jobs in job order.
	// Returns ErrNotFound for an unknown id.
	GetRun(ctx context.Context, id string) (RunRecord, []JobRecord, error)
	Close() error
}

// Package batch models one export run: its jobs, their state machine, the
// cancellation flag and the status stream.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/roster/internal/domain/exporterr"
	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/internal/domain/naming"
)

// Queue is the FIFO of pending jobs. TryDequeue must run admit and the pop in
// one critical section and leave the head in place when admit refuses it.
// Close stops further dequeues and returns the items that never left.
type Queue interface {
	Enqueue(job *Job) bool
	TryDequeue(admit func(*Job) bool) (*Job, bool)
	Close() []*Job
	Len() int
}

// Summary is the outcome of a run.
type Summary struct {
	RunID      string
	Total      int
	Done       int
	Failed     int
	NotRun     int
	Cancelled  bool
	Halted     bool
	HaltReason error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeHalted    = "halted"
)

// Outcome labels how the run ended.
func (s Summary) Outcome() string {
	switch {
	case s.Cancelled:
		return OutcomeCancelled
	case s.Halted:
		return OutcomeHalted
	default:
		return OutcomeCompleted
	}
}

// Snapshot is a point-in-time view of a run and its jobs.
type Snapshot struct {
	Summary
	Rendering int
	Finished  bool
	Jobs      []JobStatus
}

// Run owns the jobs of one batch. Claim, Complete, Cancel and Halt are safe
// for concurrent use.
type Run struct {
	id    string
	queue Queue
	sinks []Sink
	used  *naming.UsedSet
	now   func() time.Time

	mu         sync.Mutex
	jobs       []*Job
	rendering  int
	cancelled  bool
	haltReason error
	startedAt  time.Time
	finishedAt time.Time
	finished   bool
	done       chan struct{}
}

// NewRun builds one job per roster, in order, and enqueues them all. Output
// names are reserved here so collision suffixes follow team order. Empty
// rosters and teams without a usable identity get no name and fail when
// claimed.
func NewRun(id string, q Queue, rosters []model.TeamRoster, opts ...Option) (*Run, error) {
	if q == nil {
		return nil, ErrNoQueue
	}
	r := &Run{
		id:    id,
		queue: q,
		now:   time.Now,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.used == nil {
		r.used = naming.NewUsedSet()
	}
	r.startedAt = r.now()

	r.jobs = make([]*Job, 0, len(rosters))
	for i := range rosters {
		job := &Job{ID: i, Roster: rosters[i], state: Pending}
		if job.Roster.Empty() {
			job.skip = fmt.Errorf("team %d: %w", job.Roster.TeamID, exporterr.ErrEmptyRoster)
		} else {
			name, err := naming.Reserve(r.used, job.Roster.TeamName, job.Roster.TeamIDString())
			if err != nil {
				job.skip = err
			}
			job.Target = name
		}
		r.jobs = append(r.jobs, job)
	}
	for _, job := range r.jobs {
		if !q.Enqueue(job) {
			return nil, fmt.Errorf("enqueue job %d: queue closed", job.ID)
		}
	}
	if len(r.jobs) == 0 {
		r.mu.Lock()
		r.finishLocked()
		r.mu.Unlock()
	}
	return r, nil
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Jobs returns the jobs in enqueue order.
func (r *Run) Jobs() []*Job { return r.jobs }

// Claim moves the next pending job to Rendering and hands it to the caller.
// It returns false once the queue is drained or the run was cancelled or
// halted; a job is never handed out twice.
func (r *Run) Claim(ctx context.Context) (*Job, bool) {
	var at time.Time
	job, ok := r.queue.TryDequeue(func(j *Job) bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.stoppedLocked() || j.state != Pending {
			return false
		}
		at = r.now()
		j.state = Rendering
		j.startedAt = at
		r.rendering++
		return true
	})
	if !ok {
		return nil, false
	}
	r.emit(ctx, Event{
		RunID:    r.id,
		JobID:    job.ID,
		TeamID:   job.Roster.TeamID,
		TeamName: job.Roster.TeamName,
		Target:   job.Target,
		From:     Pending,
		To:       Rendering,
		At:       at,
	})
	return job, true
}

// Complete moves a rendering job to Done when err is nil and Failed
// otherwise. A batch-fatal err halts the run.
func (r *Run) Complete(ctx context.Context, job *Job, err error, warnings []error) error {
	to := Done
	if err != nil {
		to = Failed
	}

	r.mu.Lock()
	if job == nil || job.ID < 0 || job.ID >= len(r.jobs) || r.jobs[job.ID] != job {
		r.mu.Unlock()
		return ErrUnknownJob
	}
	if !CanTransition(job.state, to) {
		from := job.state
		r.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	at := r.now()
	job.state = to
	job.err = err
	job.warnings = append(job.warnings, warnings...)
	job.finishedAt = at
	r.rendering--
	halt := exporterr.IsBatchFatal(err) && !r.stoppedLocked()
	if halt {
		r.haltReason = err
	}
	r.mu.Unlock()

	r.emit(ctx, Event{
		RunID:    r.id,
		JobID:    job.ID,
		TeamID:   job.Roster.TeamID,
		TeamName: job.Roster.TeamName,
		Target:   job.Target,
		From:     Rendering,
		To:       to,
		Err:      err,
		Warnings: warnings,
		At:       at,
	})

	if halt {
		r.queue.Close()
	}
	r.mu.Lock()
	r.maybeFinishLocked()
	r.mu.Unlock()
	return nil
}

// Cancel sets the cancelled flag. Jobs already rendering finish; pending jobs
// stay pending and are reported as not run. It returns the number of jobs
// that will never start. A finished run keeps its outcome.
func (r *Run) Cancel() int {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return 0
	}
	r.cancelled = true
	r.mu.Unlock()
	return r.drain()
}

// Halt stops new job starts because of a batch-level error. The first reason
// wins, a cancelled run is not marked halted and a finished run keeps its
// outcome.
func (r *Run) Halt(reason error) int {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return 0
	}
	if r.haltReason == nil && !r.cancelled {
		r.haltReason = reason
	}
	r.mu.Unlock()
	return r.drain()
}

// drain closes the queue and returns how many jobs are left pending. No claim
// can succeed after the close, so the count is final.
func (r *Run) drain() int {
	r.queue.Close()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maybeFinishLocked()
	n := 0
	for _, j := range r.jobs {
		if j.state == Pending {
			n++
		}
	}
	return n
}

// Cancelled reports whether Cancel was called.
func (r *Run) Cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// Done is closed once no job is rendering and none can start.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes or ctx ends.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish marks the run finished once nothing is rendering. The worker pool
// calls it after its workers exit, which covers a drained queue.
func (r *Run) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rendering == 0 {
		r.finishLocked()
	}
}

// Summary returns counts by outcome.
func (r *Run) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaryLocked()
}

// Snapshot returns the summary and a copy of every job.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{
		Summary:   r.summaryLocked(),
		Rendering: r.rendering,
		Finished:  r.finished,
		Jobs:      make([]JobStatus, len(r.jobs)),
	}
	for i, j := range r.jobs {
		s.Jobs[i] = j.status()
	}
	return s
}

func (r *Run) summaryLocked() Summary {
	s := Summary{
		RunID:      r.id,
		Total:      len(r.jobs),
		Cancelled:  r.cancelled,
		Halted:     r.haltReason != nil,
		HaltReason: r.haltReason,
		StartedAt:  r.startedAt,
		FinishedAt: r.finishedAt,
	}
	for _, j := range r.jobs {
		switch j.state {
		case Done:
			s.Done++
		case Failed:
			s.Failed++
		case Pending:
			if r.finished || r.stoppedLocked() {
				s.NotRun++
			}
		}
	}
	return s
}

func (r *Run) stoppedLocked() bool {
	return r.cancelled || r.haltReason != nil
}

func (r *Run) maybeFinishLocked() {
	if r.finished || r.rendering > 0 {
		return
	}
	if r.stoppedLocked() {
		r.finishLocked()
		return
	}
	for _, j := range r.jobs {
		if !j.state.Terminal() {
			return
		}
	}
	r.finishLocked()
}

func (r *Run) finishLocked() {
	if r.finished {
		return
	}
	r.finished = true
	r.finishedAt = r.now()
	close(r.done)
}

func (r *Run) emit(ctx context.Context, e Event) {
	for _, s := range r.sinks {
		s.Emit(ctx, e)
	}
}

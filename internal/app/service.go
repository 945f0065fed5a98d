// Package service runs roster exports: it fetches rows for an event, builds
// the per-team rosters and drives one batch run per request through a fixed
// pool of render workers.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/roster/internal/adapters/mq/queue"
	"github.com/okian/roster/internal/adapters/mq/worker"
	"github.com/okian/roster/internal/adapters/render"
	"github.com/okian/roster/internal/adapters/repository"
	"github.com/okian/roster/internal/domain/batch"
	"github.com/okian/roster/internal/domain/exporterr"
	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/internal/domain/naming"
	"github.com/okian/roster/internal/domain/roster"
	"github.com/okian/roster/pkg/logger"
	"github.com/okian/roster/pkg/metrics"
)

const defaultRetainedRuns = 64

// RosterSource reads roster rows and event branding.
type RosterSource interface {
	FetchRoster(ctx context.Context, eventID int64, teamID *int64) ([]model.RosterRow, error)
	FetchPartnerLogo(ctx context.Context, eventID int64) (string, error)
}

// DocumentRenderer writes one document into its output directory.
type DocumentRenderer interface {
	Render(ctx context.Context, doc render.Document, target string) (render.Result, error)
	OutputDir() string
}

// Request selects what one run exports.
type Request struct {
	EventID int64  `json:"event_id"`
	TeamID  *int64 `json:"team_id,omitempty"`
}

// Validate checks the identifiers are usable.
func (r Request) Validate() error {
	if r.EventID <= 0 {
		return fmt.Errorf("%w: event_id must be positive", ErrInvalidRequest)
	}
	if r.TeamID != nil && *r.TeamID <= 0 {
		return fmt.Errorf("%w: team_id must be positive", ErrInvalidRequest)
	}
	return nil
}

// Stats is a point-in-time view of the service.
type Stats struct {
	Enabled    bool `json:"enabled"`
	Workers    int  `json:"workers"`
	ActiveRuns int  `json:"active_runs"`
	KnownRuns  int  `json:"known_runs"`
	Rendering  int  `json:"rendering"`
}

type runEntry struct {
	run      *batch.Run
	req      Request
	renderer worker.Renderer
}

// Service implements the export operations used by the HTTP API and the CLI.
type Service struct {
	source   RosterSource
	renderer DocumentRenderer
	history  repository.Store
	sinks    []batch.Sink

	workerCount int
	enabled     bool
	retained    int
	newID       func() string
	logger      logger.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.RWMutex
	runs    map[string]*runEntry
	order   []string
	stopped bool
}

// New constructs a Service. Exporting is enabled unless WithEnabled(false)
// is given.
func New(source RosterSource, renderer DocumentRenderer, opts ...Option) *Service {
	s := &Service{
		source:      source,
		renderer:    renderer,
		workerCount: worker.DefaultWorkerCount,
		enabled:     true,
		retained:    defaultRetainedRuns,
		newID:       uuid.NewString,
		runs:        make(map[string]*runEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.baseCtx, s.stop = context.WithCancel(context.Background())
	return s
}

// Enabled reports whether exports may run.
func (s *Service) Enabled() bool { return s.enabled }

// Export runs one batch to completion and returns its summary. Cancelling
// ctx cancels the run: in-flight renders finish, pending jobs never start.
// The error is non-nil when the batch could not start or was halted by a
// batch-level failure.
func (s *Service) Export(ctx context.Context, req Request, sinks ...batch.Sink) (batch.Summary, error) {
	entry, err := s.prepare(ctx, req, sinks)
	if err != nil {
		return batch.Summary{}, err
	}
	sum := s.execute(ctx, entry)
	if sum.Halted {
		return sum, fmt.Errorf("run %s halted: %w", sum.RunID, sum.HaltReason)
	}
	return sum, nil
}

// Start prepares a batch and renders it in the background. It returns the
// run id once every job is queued.
func (s *Service) Start(ctx context.Context, req Request) (string, error) {
	entry, err := s.prepare(ctx, req, nil)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		entry.run.Cancel()
		s.execute(s.baseCtx, entry)
		return "", ErrStopped
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		s.execute(s.baseCtx, entry)
	}()
	return entry.run.ID(), nil
}

// Cancel signals Cancel-All for a run and returns how many jobs will never
// start. Cancelling a finished run is a no-op.
func (s *Service) Cancel(ctx context.Context, runID string) (int, error) {
	entry, err := s.lookup(runID)
	if err != nil {
		return 0, err
	}
	n := entry.run.Cancel()
	s.logger.Info(ctx, "run cancelled", logger.String("run_id", runID), logger.Int("not_run", n))
	return n, nil
}

// Snapshot returns the live state of a run known to this process.
func (s *Service) Snapshot(runID string) (batch.Snapshot, error) {
	entry, err := s.lookup(runID)
	if err != nil {
		return batch.Snapshot{}, err
	}
	return entry.run.Snapshot(), nil
}

// Wait blocks until the run finishes or ctx ends.
func (s *Service) Wait(ctx context.Context, runID string) error {
	entry, err := s.lookup(runID)
	if err != nil {
		return err
	}
	return entry.run.Wait(ctx)
}

// ListRuns returns stored runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]repository.RunRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.ListRuns(ctx, limit)
}

// GetRun returns a stored run and its jobs.
func (s *Service) GetRun(ctx context.Context, runID string) (repository.RunRecord, []repository.JobRecord, error) {
	if s.history == nil {
		return repository.RunRecord{}, nil, ErrHistoryDisabled
	}
	return s.history.GetRun(ctx, runID)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Enabled: s.enabled, Workers: s.workerCount, KnownRuns: len(s.runs)}
	for _, e := range s.runs {
		snap := e.run.Snapshot()
		if !snap.Finished {
			st.ActiveRuns++
		}
		st.Rendering += snap.Rendering
	}
	return st
}

// Stop cancels every active run and waits for background runs to drain or
// ctx to end. No new runs are accepted afterwards.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// prepare fetches and shapes the rows and registers a queued run. Failures
// here are batch-level: no job is created.
func (s *Service) prepare(ctx context.Context, req Request, extra []batch.Sink) (*runEntry, error) {
	if !s.enabled {
		return nil, ErrExportDisabled
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return nil, ErrStopped
	}

	rows, err := s.source.FetchRoster(ctx, req.EventID, req.TeamID)
	if err != nil {
		s.logger.Error(ctx, "could not fetch roster", logger.Int64("event_id", req.EventID), logger.Error(err))
		metrics.RecordErrorByComponent("service", exporterr.Kind(err))
		return nil, fmt.Errorf("fetch roster for event %d: %w", req.EventID, err)
	}
	if err := roster.VerifyOrder(rows); err != nil {
		s.logger.Warn(ctx, "roster rows out of order", logger.Int64("event_id", req.EventID), logger.Error(err))
	}
	teams, err := roster.Aggregate(rows)
	if err != nil {
		s.logger.Error(ctx, "malformed roster", logger.Int64("event_id", req.EventID), logger.Error(err))
		metrics.RecordErrorByComponent("service", exporterr.Kind(err))
		return nil, err
	}
	roster.SortTeams(teams)

	logo, logoErr := s.source.FetchPartnerLogo(ctx, req.EventID)
	if logoErr != nil {
		logoErr = fmt.Errorf("%w: partner logo lookup: %w", exporterr.ErrMissingAsset, logoErr)
		s.logger.Warn(ctx, exporterr.MsgMissingLogo, logger.Int64("event_id", req.EventID), logger.Error(logoErr))
	}

	sinks := []batch.Sink{logSink{logger: s.logger}, metricsSink{}}
	if s.history != nil {
		sinks = append(sinks, s.history)
	}
	sinks = append(sinks, s.sinks...)
	sinks = append(sinks, extra...)

	id := s.newID()
	run, err := batch.NewRun(id, queue.NewInMemoryQueue[*batch.Job](queue.WithMetrics(true)), teams,
		batch.WithSinks(sinks...),
		batch.WithUsedNames(s.existingNames(ctx)...),
	)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	s.recordStart(ctx, run, req)

	entry := &runEntry{run: run, req: req, renderer: s.jobRenderer(logo, logoErr)}
	s.register(entry)
	s.logger.Info(ctx, "run queued",
		logger.String("run_id", id),
		logger.Int64("event_id", req.EventID),
		logger.Int("teams", len(teams)),
		logger.Int("rows", len(rows)),
	)
	return entry, nil
}

// execute drains the run with the worker pool and records its outcome.
func (s *Service) execute(ctx context.Context, e *runEntry) batch.Summary {
	start := time.Now()
	ctx = logger.ContextWith(ctx, logger.String("run_id", e.run.ID()))
	metrics.RecordRunStarted()
	worker.NewPool(e.run, e.renderer,
		worker.WithWorkerCount(s.workerCount),
		worker.WithPoolLogger(s.logger.Named("pool")),
	).Run(ctx)

	sum := e.run.Summary()
	metrics.RecordRunFinished(sum.Outcome(), float64(time.Since(start).Milliseconds()))
	if s.history != nil {
		if err := s.history.FinishRun(ctx, sum); err != nil {
			s.logger.Warn(ctx, "could not record run outcome", logger.Error(err))
		}
	}

	fields := []logger.Field{
		logger.String("outcome", sum.Outcome()),
		logger.Int("total", sum.Total),
		logger.Int("done", sum.Done),
		logger.Int("failed", sum.Failed),
		logger.Int("not_run", sum.NotRun),
	}
	if sum.Halted {
		s.logger.Error(ctx, exporterr.Message(sum.HaltReason), append(fields, logger.Error(sum.HaltReason))...)
	} else {
		s.logger.Info(ctx, "run finished", fields...)
	}
	return sum
}

func (s *Service) jobRenderer(logo string, logoErr error) worker.Renderer {
	return worker.RendererFunc(func(ctx context.Context, job *batch.Job) ([]error, error) {
		res, err := s.renderer.Render(ctx, render.Document{Roster: job.Roster, PartnerLogo: logo}, job.Target)
		warnings := res.Warnings
		if logoErr != nil {
			warnings = append([]error{logoErr}, warnings...)
		}
		return warnings, err
	})
}

// existingNames lists documents already in the output directory so a new run
// never overwrites them.
func (s *Service) existingNames(ctx context.Context) []string {
	entries, err := os.ReadDir(s.renderer.OutputDir())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn(ctx, "could not list output directory", logger.Error(err))
		}
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), naming.Suffix) {
			names = append(names, e.Name())
		}
	}
	return names
}

func (s *Service) recordStart(ctx context.Context, run *batch.Run, req Request) {
	if s.history == nil {
		return
	}
	snap := run.Snapshot()
	jobs := make([]repository.JobRecord, 0, len(snap.Jobs))
	for _, j := range snap.Jobs {
		jobs = append(jobs, repository.JobRecord{JobID: j.ID, TeamID: j.TeamID, TeamName: j.TeamName, Target: j.Target})
	}
	err := s.history.StartRun(ctx, repository.RunRecord{
		ID:        run.ID(),
		EventID:   req.EventID,
		TeamID:    req.TeamID,
		StartedAt: snap.StartedAt,
	}, jobs)
	if err != nil {
		s.logger.Warn(ctx, "could not record run start", logger.String("run_id", run.ID()), logger.Error(err))
	}
}

func (s *Service) register(e *runEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[e.run.ID()] = e
	s.order = append(s.order, e.run.ID())

	// Forget the oldest finished runs beyond the retention limit.
	for i := 0; len(s.runs) > s.retained && i < len(s.order); {
		id := s.order[i]
		select {
		case <-s.runs[id].run.Done():
			delete(s.runs, id)
			s.order = append(s.order[:i], s.order[i+1:]...)
		default:
			i++
		}
	}
}

func (s *Service) lookup(runID string) (*runEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return e, nil
}

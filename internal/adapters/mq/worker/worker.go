// Package worker renders export jobs with a fixed pool of workers pulling
// from one run.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/roster/internal/domain/batch"
	"github.com/okian/roster/internal/domain/exporterr"
	"github.com/okian/roster/pkg/logger"
	"github.com/okian/roster/pkg/metrics"
)

// DefaultWorkerCount is the number of jobs rendered in parallel.
const DefaultWorkerCount = 3

// Source hands out jobs and records their outcome. *batch.Run implements it.
type Source interface {
	Claim(ctx context.Context) (*batch.Job, bool)
	Complete(ctx context.Context, job *batch.Job, err error, warnings []error) error
	Cancel() int
	Finish()
}

// Renderer writes one job's document to its target. Warnings do not fail the
// job.
type Renderer interface {
	Render(ctx context.Context, job *batch.Job) (warnings []error, err error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, job *batch.Job) ([]error, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, job *batch.Job) ([]error, error) {
	return f(ctx, job)
}

// InMemoryWorker claims jobs one at a time until the source has none left.
type InMemoryWorker struct {
	source   Source
	renderer Renderer
	name     string
	logger   logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(source Source, renderer Renderer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		source:   source,
		renderer: renderer,
		name:     "worker",
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run claims and processes jobs until none can start or ctx is done. A job
// that has been claimed always runs to completion: ctx cancellation is not
// passed into the render.
func (w *InMemoryWorker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, ok := w.source.Claim(ctx)
		if !ok {
			return
		}
		w.process(ctx, job)
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job *batch.Job) {
	var (
		warnings []error
		err      error
	)
	if skip := job.Skip(); skip != nil {
		err = skip
	} else {
		warnings, err = w.render(context.WithoutCancel(ctx), job)
	}

	if err != nil {
		kind := exporterr.Kind(err)
		metrics.RecordErrorByComponent("worker", kind)
		w.logger.Warn(ctx, "job failed",
			logger.Int("job_id", job.ID),
			logger.Int64("team_id", job.Roster.TeamID),
			logger.String("kind", kind),
			logger.Error(err),
		)
	}
	for _, warn := range warnings {
		w.logger.Warn(ctx, "job warning",
			logger.Int64("team_id", job.Roster.TeamID),
			logger.String("kind", exporterr.Kind(warn)),
			logger.Error(warn),
		)
	}

	if cerr := w.source.Complete(ctx, job, err, warnings); cerr != nil {
		w.logger.Error(ctx, "could not record job outcome",
			logger.Int("job_id", job.ID),
			logger.Error(cerr),
		)
	}
}

func (w *InMemoryWorker) render(ctx context.Context, job *batch.Job) (warnings []error, err error) {
	start := time.Now()
	metrics.IncJobsRendering()
	defer func() {
		metrics.DecJobsRendering()
		metrics.RecordRenderLatency(float64(time.Since(start).Milliseconds()))
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", exporterr.ErrRenderEngine, r)
		}
	}()

	warnings, err = w.renderer.Render(ctx, job)
	if err != nil && !errors.Is(err, exporterr.ErrDiskFull) && !errors.Is(err, exporterr.ErrRenderEngine) &&
		!errors.Is(err, exporterr.ErrMissingAsset) {
		err = fmt.Errorf("%w: %w", exporterr.ErrRenderEngine, err)
	}
	return warnings, err
}

// Pool runs a fixed number of workers against one source.
type Pool struct {
	source      Source
	renderer    Renderer
	workerCount int
	logger      logger.Logger
}

// NewPool creates a worker pool with DefaultWorkerCount workers.
func NewPool(source Source, renderer Renderer, opts ...PoolOption) *Pool {
	p := &Pool{
		source:      source,
		renderer:    renderer,
		workerCount: DefaultWorkerCount,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("worker-pool")
	}
	return p
}

// Run starts the workers and blocks until every one has exited. Cancelling
// ctx cancels the source: rendering jobs finish, pending jobs never start.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	stop := make(chan struct{})
	watcherDone := make(chan struct{})

	go func() {
		defer close(watcherDone)
		select {
		case <-stop:
		case <-ctx.Done():
			// Workers that already exited leave nothing to cancel.
			select {
			case <-stop:
				return
			default:
			}
			n := p.source.Cancel()
			p.logger.Info(ctx, "context done, cancelling run", logger.Int("not_run", n))
		}
	}()

	metrics.AddWorkerActiveCount(p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		w := NewInMemoryWorker(p.source, p.renderer,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger.Named("worker-"+strconv.Itoa(i))),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Claims ignore ctx so a finished job is still recorded.
			w.Run(context.WithoutCancel(ctx))
		}()
	}
	wg.Wait()
	close(stop)
	<-watcherDone
	metrics.AddWorkerActiveCount(-p.workerCount)
	p.source.Finish()
}

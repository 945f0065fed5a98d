package service

import (
	"github.com/okian/roster/internal/adapters/repository"
	"github.com/okian/roster/internal/domain/batch"
	"github.com/okian/roster/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount overrides the number of parallel renders. Production runs
// always use three.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHistory records every run in store.
func WithHistory(store repository.Store) Option {
	return func(s *Service) {
		s.history = store
	}
}

// WithSinks adds status sinks to every run.
func WithSinks(sinks ...batch.Sink) Option {
	return func(s *Service) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// WithEnabled turns exporting on or off. See config.Config.ExportEnabled.
func WithEnabled(enabled bool) Option {
	return func(s *Service) {
		s.enabled = enabled
	}
}

// WithIDGenerator replaces the run id source.
func WithIDGenerator(next func() string) Option {
	return func(s *Service) {
		if next != nil {
			s.newID = next
		}
	}
}

// WithRetainedRuns sets how many finished runs stay available to Snapshot.
func WithRetainedRuns(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retained = n
		}
	}
}

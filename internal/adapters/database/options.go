package database

import (
	"context"
	"time"

	"github.com/okian/roster/pkg/logger"
)

// Option applies a configuration option to the Source.
type Option func(*Source)

// WithQueryTimeout bounds each query attempt.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.queryTimeout = d
		}
	}
}

// WithRetries sets the total number of attempts for a query.
func WithRetries(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.retries = n
		}
	}
}

// WithBackoffBase sets the delay before the second attempt; it doubles for
// each attempt after that.
func WithBackoffBase(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.backoffBase = d
		}
	}
}

// WithAssetBaseURL sets the host that relative logo paths resolve against.
func WithAssetBaseURL(base string) Option {
	return func(s *Source) {
		if base != "" {
			s.assetBase = base
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Source) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

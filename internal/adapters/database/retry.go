package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/okian/roster/internal/domain/exporterr"
	"github.com/okian/roster/pkg/logger"
	"github.com/okian/roster/pkg/metrics"
)

// SQLSTATE codes worth another attempt. Class 08 (connection exception) is
// matched by prefix.
var transientCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"53300": {}, // too_many_connections
	"57P01": {}, // admin_shutdown
	"57P03": {}, // cannot_connect_now
}

// IsTransient reports whether err may succeed on a fresh attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) == 5 && pgErr.Code[:2] == "08" {
			return true
		}
		_, ok := transientCodes[pgErr.Code]
		return ok
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED)
}

// withRetry runs fn up to s.retries times. Each attempt gets its own
// timeout; waits grow as base * 2^(attempt-1). Any failure that survives the
// policy is wrapped in ErrTransientDB, since the batch cannot start without
// its rows either way.
func (s *Source) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var last error
	for attempt := 1; attempt <= s.retries; attempt++ {
		actx, cancel := context.WithTimeout(ctx, s.queryTimeout)
		start := time.Now()
		err := fn(actx)
		cancel()
		metrics.RecordDBQueryLatency(op, float64(time.Since(start).Milliseconds()))
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		last = err
		if !IsTransient(err) {
			metrics.RecordErrorByComponent("database", "permanent")
			return fmt.Errorf("%w: %s: %w", exporterr.ErrTransientDB, op, err)
		}
		if attempt == s.retries {
			break
		}

		delay := s.backoffBase << (attempt - 1)
		metrics.RecordDBRetry()
		s.logger.Warn(ctx, "query failed, retrying",
			logger.String("op", op),
			logger.Int("attempt", attempt),
			logger.Duration("backoff", delay),
			logger.Error(err),
		)
		if err := s.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	metrics.RecordErrorByComponent("database", "retries_exhausted")
	return fmt.Errorf("%w: %s failed after %d attempts: %w", exporterr.ErrTransientDB, op, s.retries, last)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

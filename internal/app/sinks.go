package service

import (
	"context"

	"github.com/okian/roster/internal/domain/batch"
	"github.com/okian/roster/internal/domain/exporterr"
	"github.com/okian/roster/pkg/logger"
	"github.com/okian/roster/pkg/metrics"
)

// metricsSink counts transitions, failures and warnings.
type metricsSink struct{}

func (metricsSink) Emit(_ context.Context, e batch.Event) {
	metrics.RecordJobTransition(e.To.String())
	if e.To == batch.Failed {
		metrics.RecordJobFailure(exporterr.Kind(e.Err))
	}
	for _, w := range e.Warnings {
		metrics.RecordJobWarning(exporterr.Kind(w))
	}
}

// logSink writes every transition at debug level.
type logSink struct {
	logger logger.Logger
}

func (l logSink) Emit(ctx context.Context, e batch.Event) {
	fields := []logger.Field{
		logger.String("run_id", e.RunID),
		logger.Int64("team_id", e.TeamID),
		logger.String("from", e.From.String()),
		logger.String("to", e.To.String()),
	}
	if e.Err != nil {
		fields = append(fields, logger.String("kind", exporterr.Kind(e.Err)))
	}
	l.logger.Debug(ctx, "job transition", fields...)
}

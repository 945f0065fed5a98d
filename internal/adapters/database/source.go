// Package database reads roster rows and event branding from postgres.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/pkg/logger"
	"github.com/okian/roster/pkg/metrics"
)

// Default policy for roster queries.
const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultQueryTimeout   = 60 * time.Second
	DefaultRetries        = 3
	DefaultBackoffBase    = 750 * time.Millisecond
)

// Querier is the subset of *pgxpool.Pool the source needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Source runs the fixed roster queries with per-attempt timeouts and retries.
type Source struct {
	db           Querier
	queryTimeout time.Duration
	retries      int
	backoffBase  time.Duration
	assetBase    string
	sleep        func(ctx context.Context, d time.Duration) error
	logger       logger.Logger
}

// NewSource wraps db.
func NewSource(db Querier, opts ...Option) *Source {
	s := &Source{
		db:           db,
		queryTimeout: DefaultQueryTimeout,
		retries:      DefaultRetries,
		backoffBase:  DefaultBackoffBase,
		assetBase:    model.DefaultAssetBase,
		sleep:        sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("database")
	}
	return s
}

// Open creates a pool for dsn. Every new connection gives up after
// connectTimeout.
func Open(ctx context.Context, dsn string, connectTimeout time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	cfg.ConnConfig.ConnectTimeout = connectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return pool, nil
}

// FetchRoster returns the rows for an event, optionally for one team, in
// (team_id, user_id) order.
func (s *Source) FetchRoster(ctx context.Context, eventID int64, teamID *int64) ([]model.RosterRow, error) {
	if s.db == nil {
		return nil, ErrNoPool
	}
	var out []model.RosterRow
	err := s.withRetry(ctx, "roster", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, rosterQuery, eventID, teamID)
		if err != nil {
			return err
		}
		collected, err := pgx.CollectRows(rows, scanRosterRow)
		if err != nil {
			return err
		}
		out = collected
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordDBRowsFetched(len(out))
	return out, nil
}

// FetchPartnerLogo returns the event partner's logo URL resolved against the
// asset host, or "" when the event has no partner logo.
func (s *Source) FetchPartnerLogo(ctx context.Context, eventID int64) (string, error) {
	if s.db == nil {
		return "", ErrNoPool
	}
	var logo string
	err := s.withRetry(ctx, "partner_logo", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, partnerLogoQuery, eventID)
		if err != nil {
			return err
		}
		raw, err := pgx.CollectOneRow(rows, pgx.RowTo[*string])
		if errors.Is(err, pgx.ErrNoRows) {
			logo = ""
			return nil
		}
		if err != nil {
			return err
		}
		if raw != nil {
			logo = model.AssetURL(s.assetBase, *raw)
		}
		return nil
	})
	return logo, err
}

// Ping checks connectivity under the same retry policy as queries.
func (s *Source) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrNoPool
	}
	return s.withRetry(ctx, "ping", func(ctx context.Context) error {
		return s.db.Ping(ctx)
	})
}

func scanRosterRow(row pgx.CollectableRow) (model.RosterRow, error) {
	var r model.RosterRow
	err := row.Scan(
		&r.EventID, &r.EventName, &r.TeamName, &r.TeamID, &r.Division,
		&r.UserID, &r.Name, &r.UsertypeID, &r.Phone, &r.Email,
		&r.ProfilePic, &r.JerseyNum, &r.Birthday,
	)
	if err != nil {
		return r, fmt.Errorf("%w: %w", ErrScanRow, err)
	}
	return r, nil
}

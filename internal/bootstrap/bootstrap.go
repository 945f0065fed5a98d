// Package bootstrap builds the export stack shared by the service and the
// CLI from a loaded Config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/roster/internal/adapters/database"
	"github.com/okian/roster/internal/adapters/render"
	"github.com/okian/roster/internal/adapters/repository"
	service "github.com/okian/roster/internal/app"
	"github.com/okian/roster/internal/config"
	"github.com/okian/roster/internal/license"
	"github.com/okian/roster/pkg/logger"
)

// Stack holds the wired components. Source is nil when exporting is
// disabled; History is nil when no history path is configured.
type Stack struct {
	Service  *service.Service
	Source   *database.Source
	Renderer *render.FileRenderer
	History  *repository.SQLiteStore

	pool   *pgxpool.Pool
	logger logger.Logger
}

// Option configures Build.
type Option func(*settings)

type settings struct {
	logger      logger.Logger
	finder      *license.Finder
	serviceOpts []service.Option
	noHistory   bool
}

// WithLogger sets the logger components are named from.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLicenseFinder overrides the license lookup roots.
func WithLicenseFinder(f license.Finder) Option {
	return func(s *settings) { s.finder = &f }
}

// WithServiceOptions passes extra options to service.New.
func WithServiceOptions(opts ...service.Option) Option {
	return func(s *settings) { s.serviceOpts = append(s.serviceOpts, opts...) }
}

// WithoutHistory skips the sqlite run history even when a path is set.
func WithoutHistory() Option {
	return func(s *settings) { s.noHistory = true }
}

// Build resolves the license, connects the roster database when exporting
// is enabled and assembles the service. Close releases what Build opened.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*Stack, error) {
	set := settings{}
	for _, opt := range opts {
		opt(&set)
	}
	if set.logger == nil {
		set.logger = logger.Get()
	}
	st := &Stack{logger: set.logger}

	finder := license.Finder{}
	if set.finder != nil {
		finder = *set.finder
	}
	finder.Key, finder.File = cfg.LicenseKey, cfg.LicenseFile
	key, src, err := finder.Find()
	switch {
	case err == nil:
		cfg.LicenseKey = key
		set.logger.Info(ctx, "license key found", logger.String("source", string(src)))
	case errors.Is(err, license.ErrNotFound):
		set.logger.Warn(ctx, "no license key; exporting disabled", logger.Any("searched", finder.Paths()))
	default:
		return nil, err
	}

	enabled := cfg.ExportEnabled()
	if enabled {
		pool, err := database.Open(ctx, cfg.DSN(), cfg.DBConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
		}
		st.pool = pool
		st.Source = database.NewSource(pool,
			database.WithQueryTimeout(cfg.DBQueryTimeout),
			database.WithRetries(cfg.DBRetries),
			database.WithBackoffBase(cfg.DBBackoffBase),
			database.WithAssetBaseURL(cfg.AssetBaseURL),
			database.WithLogger(set.logger.Named("database")),
		)
	} else if cfg.DSN() == "" {
		set.logger.Warn(ctx, "no database credentials; exporting disabled")
	}

	engineOpts := []render.EngineOption{
		render.WithTimeout(cfg.RenderTimeout),
		render.WithPageSize(cfg.PageSize),
	}
	if cfg.RenderArgs != nil {
		engineOpts = append(engineOpts, render.WithArgs(cfg.RenderArgs...))
	}
	st.Renderer, err = render.NewFileRenderer(render.NewCommandEngine(cfg.RenderCommand, engineOpts...), cfg.OutputDir,
		render.WithPageRows(cfg.FirstPageRows, cfg.NextPageRows),
		render.WithAssetBaseURL(cfg.AssetBaseURL),
		render.WithPartnerLogoPath(cfg.PartnerLogoPath),
		render.WithFooterLogoPath(cfg.FooterLogoPath),
		render.WithLogger(set.logger.Named("render")),
	)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: %w", ErrRenderer, err)
	}

	svcOpts := []service.Option{
		service.WithEnabled(enabled),
		service.WithLogger(set.logger.Named("service")),
	}
	if cfg.HistoryPath != "" && !set.noHistory {
		st.History, err = repository.Open(ctx, cfg.HistoryPath, repository.WithLogger(set.logger.Named("repository")))
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("%w: %w", ErrHistory, err)
		}
		svcOpts = append(svcOpts, service.WithHistory(st.History))
	}
	svcOpts = append(svcOpts, set.serviceOpts...)

	var source service.RosterSource
	if st.Source != nil {
		source = st.Source
	}
	st.Service = service.New(source, st.Renderer, svcOpts...)
	return st, nil
}

// Close releases the database pool and the history store.
func (s *Stack) Close() {
	if s.History != nil {
		if err := s.History.Close(); err != nil {
			s.logger.Warn(context.Background(), "close history", logger.Error(err))
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

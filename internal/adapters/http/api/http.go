// Package api serves the export batch API over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/roster/internal/adapters/http/documents"
	"github.com/okian/roster/internal/adapters/http/swagger"
	"github.com/okian/roster/internal/adapters/repository"
	service "github.com/okian/roster/internal/app"
	"github.com/okian/roster/internal/domain/batch"
	"github.com/okian/roster/internal/domain/exporterr"
	"github.com/okian/roster/pkg/logger"
	"github.com/okian/roster/pkg/metrics"
)

// Dependencies required by HTTP handlers. *service.Service implements it.
type Dependencies interface {
	Start(ctx context.Context, req service.Request) (string, error)
	Cancel(ctx context.Context, runID string) (int, error)
	Snapshot(runID string) (batch.Snapshot, error)
	ListRuns(ctx context.Context, limit int) ([]repository.RunRecord, error)
	GetRun(ctx context.Context, runID string) (repository.RunRecord, []repository.JobRecord, error)
}

// Server wires HTTP routes for the export API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	exportsHandler *ExportsHandler
	documents      *documents.Handler
	logger         logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPinger makes /healthz report database reachability.
func WithPinger(p Pinger) Option {
	return func(s *Server) {
		s.healthHandler.pinger = p
	}
}

// WithDocumentsDir serves rendered documents from dir under /documents.
func WithDocumentsDir(dir string) Option {
	return func(s *Server) {
		if dir != "" {
			s.documents = documents.NewHandler(dir)
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		exportsHandler: NewExportsHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	s.exportsHandler.logger = s.logger
	return s
}

// Handler returns the router serving every route.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	swagger.Register(r)
	if s.documents != nil {
		documents.Register(r, s.documents)
	}

	r.Route("/api/v1/exports", func(r chi.Router) {
		r.Post("/", MetricsMiddleware(s.exportsHandler.HandleCreate, "exports_create"))
		r.Get("/", MetricsMiddleware(s.exportsHandler.HandleList, "exports_list"))
		r.Get("/{runID}", MetricsMiddleware(s.exportsHandler.HandleGet, "exports_get"))
		r.Post("/{runID}/cancel", MetricsMiddleware(s.exportsHandler.HandleCancel, "exports_cancel"))
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps service and pipeline errors to a status and the
// operator-facing message.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrInvalidLimit), errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrRunNotFound), errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrHistoryDisabled):
		writeError(w, http.StatusNotFound, "history_disabled", err)
	case errors.Is(err, service.ErrExportDisabled):
		writeError(w, http.StatusServiceUnavailable, "export_disabled", err)
	case errors.Is(err, service.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, exporterr.ErrTransientDB):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Code: exporterr.Kind(err), Message: exporterr.Message(err)})
	case errors.Is(err, exporterr.ErrMalformedRow):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Code: exporterr.Kind(err), Message: exporterr.Message(err)})
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

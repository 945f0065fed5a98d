package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/roster/internal/adapters/repository"
	service "github.com/okian/roster/internal/app"
	"github.com/okian/roster/internal/domain/batch"
	"github.com/okian/roster/internal/domain/exporterr"
	"github.com/okian/roster/pkg/logger"
)

const maxBodyBytes = 1 << 16

// ExportsHandler serves /api/v1/exports.
type ExportsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewExportsHandler creates a new exports handler.
func NewExportsHandler(deps Dependencies) *ExportsHandler {
	return &ExportsHandler{deps: deps, logger: logger.Get().Named("api")}
}

type createResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

type cancelResponse struct {
	RunID  string `json:"run_id"`
	NotRun int    `json:"not_run"`
}

type jobView struct {
	JobID     int        `json:"job_id"`
	TeamID    int64      `json:"team_id"`
	TeamName  string     `json:"team_name"`
	Target    string     `json:"target,omitempty"`
	State     string     `json:"state"`
	ErrorKind string     `json:"error_kind,omitempty"`
	Message   string     `json:"message,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"finished_at,omitempty"`
}

type runView struct {
	RunID      string     `json:"run_id"`
	Status     string     `json:"status"`
	Total      int        `json:"total"`
	Done       int        `json:"done"`
	Failed     int        `json:"failed"`
	NotRun     int        `json:"not_run"`
	Rendering  int        `json:"rendering"`
	HaltReason string     `json:"halt_reason,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Jobs       []jobView  `json:"jobs"`
}

// HandleCreate handles POST /api/v1/exports with {"event_id":1,"team_id":2}.
func (h *ExportsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req service.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeDomainError(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	id, err := h.deps.Start(r.Context(), req)
	if err != nil {
		h.logger.Warn(r.Context(), "export not started", logger.Int64("event_id", req.EventID), logger.Error(err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, createResponse{RunID: id, Status: repository.StatusRunning})
}

// HandleList handles GET /api/v1/exports?limit=N from the run history.
func (h *ExportsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeDomainError(w, ErrInvalidLimit)
			return
		}
		limit = n
	}
	runs, err := h.deps.ListRuns(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if runs == nil {
		runs = []repository.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleGet handles GET /api/v1/exports/{runID}. Runs still known to this
// process are served live; older ones come from the history.
func (h *ExportsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	snap, err := h.deps.Snapshot(runID)
	if err == nil {
		writeJSON(w, http.StatusOK, snapshotView(snap))
		return
	}
	if !errors.Is(err, service.ErrRunNotFound) {
		writeDomainError(w, err)
		return
	}
	run, jobs, herr := h.deps.GetRun(r.Context(), runID)
	if herr != nil {
		if errors.Is(herr, service.ErrHistoryDisabled) {
			herr = err
		}
		writeDomainError(w, herr)
		return
	}
	writeJSON(w, http.StatusOK, recordView(run, jobs))
}

// HandleCancel handles POST /api/v1/exports/{runID}/cancel.
func (h *ExportsHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	n, err := h.deps.Cancel(r.Context(), runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, cancelResponse{RunID: runID, NotRun: n})
}

func snapshotView(s batch.Snapshot) runView {
	v := runView{
		RunID:     s.RunID,
		Status:    repository.StatusRunning,
		Total:     s.Total,
		Done:      s.Done,
		Failed:    s.Failed,
		NotRun:    s.NotRun,
		Rendering: s.Rendering,
		StartedAt: s.StartedAt,
		Jobs:      make([]jobView, 0, len(s.Jobs)),
	}
	if s.Finished {
		v.Status = s.Outcome()
		v.FinishedAt = timePtr(s.FinishedAt)
	}
	if s.HaltReason != nil {
		v.HaltReason = exporterr.Message(s.HaltReason)
	}
	for _, j := range s.Jobs {
		jv := jobView{
			JobID:     j.ID,
			TeamID:    j.TeamID,
			TeamName:  j.TeamName,
			Target:    j.Target,
			State:     j.State.String(),
			ErrorKind: exporterr.Kind(j.Err),
			Message:   exporterr.Message(j.Err),
			StartedAt: timePtr(j.StartedAt),
			EndedAt:   timePtr(j.FinishedAt),
		}
		for _, warn := range j.Warnings {
			jv.Warnings = append(jv.Warnings, exporterr.Message(warn))
		}
		v.Jobs = append(v.Jobs, jv)
	}
	return v
}

func recordView(run repository.RunRecord, jobs []repository.JobRecord) runView {
	v := runView{
		RunID:      run.ID,
		Status:     run.Status,
		Total:      run.Total,
		Done:       run.Done,
		Failed:     run.Failed,
		NotRun:     run.NotRun,
		HaltReason: run.HaltReason,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Jobs:       make([]jobView, 0, len(jobs)),
	}
	for _, j := range jobs {
		jv := jobView{
			JobID:     j.JobID,
			TeamID:    j.TeamID,
			TeamName:  j.TeamName,
			Target:    j.Target,
			State:     j.State,
			ErrorKind: j.ErrorKind,
			Message:   j.Message,
		}
		if j.Warnings > 0 {
			jv.Warnings = []string{fmt.Sprintf("%d warning(s)", j.Warnings)}
		}
		v.Jobs = append(v.Jobs, jv)
	}
	return v
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/internal/recorder"
	"github.com/wonny/tickerflow/internal/scheduler"
	"github.com/wonny/tickerflow/pkg/logger"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// Trigger starts a named job in the background
type Trigger interface {
	RunJob(jobName string) error
}

// RunHandler handles run history endpoints
// ⭐ SSOT: 실행 이력 API 핸들러는 이 구조체에서만
type RunHandler struct {
	history recorder.Reader
	trigger Trigger
	jobName string
	logger  *logger.Logger
}

// NewRunHandler creates a new run handler. jobName is the job started by POST /api/runs.
func NewRunHandler(history recorder.Reader, trigger Trigger, jobName string, log *logger.Logger) *RunHandler {
	return &RunHandler{
		history: history,
		trigger: trigger,
		jobName: jobName,
		logger:  log,
	}
}

// ListRuns returns recent runs, newest first
// GET /api/runs?limit=20
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.history.LatestRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// LatestRun returns the newest run
// GET /api/runs/latest
func (h *RunHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	runs, err := h.history.LatestRuns(r.Context(), 1)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve latest run")
		return
	}
	if len(runs) == 0 {
		respondError(w, http.StatusNotFound, "No runs recorded")
		return
	}

	respondJSON(w, http.StatusOK, runs[0])
}

// LatestMovers returns the top movers of the newest successful run
// GET /api/movers/latest
func (h *RunHandler) LatestMovers(w http.ResponseWriter, r *http.Request) {
	runID, movers, err := h.history.LatestMovers(r.Context())
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No successful runs recorded")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest movers")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve movers")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"gainers": movers.Gainers,
		"losers":  movers.Losers,
	})
}

// TriggerRun starts a pipeline run in the background
// POST /api/runs
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	err := h.trigger.RunJob(h.jobName)
	if errors.Is(err, scheduler.ErrJobRunning) {
		respondError(w, http.StatusConflict, "A run is already in progress")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to trigger run")
		respondError(w, http.StatusInternalServerError, "Failed to trigger run")
		return
	}

	h.logger.WithField("job", h.jobName).Info("Run triggered via API")
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"job":    h.jobName,
	})
}

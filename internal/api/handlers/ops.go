package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/scheduler"
	"github.com/wonny/factorscore/internal/selection"
	"github.com/wonny/factorscore/pkg/database"
	"github.com/wonny/factorscore/pkg/logger"
)

// RunReader reads run audit rows
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*contracts.RunSummary, error)
}

// HealthChecker pings the score store
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// JobStatsProvider exposes scheduler statistics
type JobStatsProvider interface {
	GetJobStats() map[string]scheduler.JobStats
}

// OpsHandler serves operational endpoints: health, run audit, scheduler stats
// ⭐ SSOT: 운영 API 핸들러는 여기서만 (점수 조회 API는 없음)
type OpsHandler struct {
	runs   RunReader
	db     HealthChecker
	jobs   JobStatsProvider
	logger *logger.Logger
}

// NewOpsHandler creates a new ops handler. Any dependency may be nil.
func NewOpsHandler(runs RunReader, db HealthChecker, jobs JobStatsProvider, log *logger.Logger) *OpsHandler {
	return &OpsHandler{
		runs:   runs,
		db:     db,
		jobs:   jobs,
		logger: log,
	}
}

// Health reports service status; 503 when the database is configured and down
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"service": "factorscore",
	}

	if h.db != nil {
		status, err := h.db.HealthCheck(r.Context())
		resp["database"] = status
		if err != nil {
			h.logger.WithError(err).Warn("Health check failed")
			resp["status"] = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRun returns one run audit row
// GET /api/runs/{run_id}
func (h *OpsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run store not configured")
		return
	}

	runID := mux.Vars(r)["run_id"]
	summary, err := h.runs.GetRun(r.Context(), runID)
	if errors.Is(err, selection.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("run_id", runID).Error("Failed to get run")
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// ListJobs returns scheduler statistics sorted by job name
// GET /api/scheduler/jobs
func (h *OpsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	stats := make([]scheduler.JobStats, 0)
	if h.jobs != nil {
		for _, s := range h.jobs.GetJobStats() {
			stats = append(stats, s)
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].JobName < stats[j].JobName })

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  stats,
		"count": len(stats),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

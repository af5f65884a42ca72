package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/user/jobscraper-service/internal/delivery/http/request"
	"github.com/user/jobscraper-service/internal/delivery/http/response"
	"github.com/user/jobscraper-service/internal/entity"
	"github.com/user/jobscraper-service/internal/usecase"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	runs      usecase.RunManager
	providers []entity.ProviderTag
	checks    map[string]Pinger
	logger    *zap.Logger
}

// NewHandler creates the API handler. checks may be empty when no storage
// is configured.
func NewHandler(runs usecase.RunManager, providers []entity.ProviderTag, checks map[string]Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		runs:      runs,
		providers: providers,
		checks:    checks,
		logger:    logger,
	}
}

func (h *Handler) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	var req request.StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	runID, err := h.runs.Start(r.Context(), req.ToSearchSpec())
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrInvalidSearchSpec):
			h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, usecase.ErrRunInProgress):
			h.writeJSONError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, usecase.ErrShuttingDown):
			h.writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
		default:
			h.logger.Error("failed to start run", zap.Error(err))
			h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusAccepted, response.StartRunResponse{
		Status:  "success",
		Message: "Run started",
		RunID:   runID,
	})
}

func (h *Handler) HandleCurrentRun(w http.ResponseWriter, r *http.Request) {
	snap, err := h.runs.Current()
	if err != nil {
		h.writeRunError(w, "", err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewRunStatus(snap))
}

func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	snap, err := h.runs.Snapshot(r.Context(), runID)
	if err != nil {
		h.writeRunError(w, runID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewRunStatus(snap))
}

func (h *Handler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	recs, err := h.runs.Records(r.Context(), runID)
	if err != nil {
		h.writeRunError(w, runID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.JobsResponse{RunID: runID, Count: len(recs), Jobs: recs})
}

func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	recs, err := h.runs.Records(r.Context(), runID)
	if err != nil {
		h.writeRunError(w, runID, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="jobs-%s-%s.csv"`, runID, time.Now().UTC().Format("20060102-150405")))
	w.WriteHeader(http.StatusOK)
	if err := usecase.WriteCSV(w, recs, h.providers); err != nil {
		h.logger.Error("failed to write CSV export", zap.String("run_id", runID), zap.Error(err))
	}
}

func (h *Handler) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	recs, err := h.runs.Records(r.Context(), runID)
	if err != nil {
		h.writeRunError(w, runID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, usecase.Analyze(recs, h.providers))
}

func (h *Handler) HandleStopRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := h.runs.Stop(runID); err != nil {
		h.writeRunError(w, runID, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, response.ActionResponse{Status: "success", Message: "Stop requested"})
}

func (h *Handler) HandleClearVerification(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := h.runs.ClearVerification(runID); err != nil {
		h.writeRunError(w, runID, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, response.ActionResponse{Status: "success", Message: "Verification marked as cleared"})
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := map[string]string{"status": "ok"}
	healthy := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			healthStatus[name] = "unhealthy"
			healthy = false
			h.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			continue
		}
		healthStatus[name] = "healthy"
	}

	if !healthy {
		healthStatus["status"] = "degraded"
		h.writeJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	h.writeJSON(w, http.StatusOK, healthStatus)
}

func (h *Handler) writeRunError(w http.ResponseWriter, runID string, err error) {
	switch {
	case errors.Is(err, usecase.ErrRunNotFound):
		h.writeJSONError(w, "Run not found", http.StatusNotFound)
	case errors.Is(err, usecase.ErrRunNotActive):
		h.writeJSONError(w, "Run is not active", http.StatusConflict)
	default:
		h.logger.Error("run lookup failed", zap.String("run_id", runID), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

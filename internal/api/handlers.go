package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/opsgridstack/opsgrid-orchestrator/internal/engine"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/escalation"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/models"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/services"
)

type handler struct {
	svc    *services.PipelineService
	logger *slog.Logger
}

func (h *handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", h.root)
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /events", h.listEvents)
	mux.HandleFunc("POST /pipeline/run", h.runPipeline)
	mux.HandleFunc("GET /pipeline/runs", h.listRuns)
	mux.HandleFunc("GET /pipeline/runs/{id}", h.getRun)
	mux.HandleFunc("GET /escalations", h.listPendingEscalations)
	mux.HandleFunc("GET /escalations/all", h.listAllEscalations)
	mux.HandleFunc("POST /escalations/{id}/resolve", h.resolveEscalation)
	mux.HandleFunc("GET /analyze/{event_id}", h.analyzeEvent)
	mux.HandleFunc("GET /dashboard/summary", h.dashboardSummary)
	return mux
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"service": "opsgrid-orchestrator",
		"status":  "operational",
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *handler) listEvents(w http.ResponseWriter, r *http.Request) {
	signals, err := h.svc.CollectSignals(r.Context())
	if err != nil {
		h.writeError(w, http.StatusBadGateway, "signal collection failed: "+err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(signals),
		"events": signals,
	})
}

func (h *handler) runPipeline(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.RunOnce(r.Context())
	if err != nil {
		var ce *engine.CollectionError
		if errors.As(err, &ce) {
			h.writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	runs := h.svc.ListRuns()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count": len(runs),
		"runs":  runs,
	})
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.GetRun(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

func (h *handler) listPendingEscalations(w http.ResponseWriter, r *http.Request) {
	records := h.svc.ListPendingEscalations()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(records),
		"escalations": records,
	})
}

func (h *handler) listAllEscalations(w http.ResponseWriter, r *http.Request) {
	records := h.svc.ListAllEscalations()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(records),
		"escalations": records,
	})
}

type resolveRequest struct {
	Resolution string `json:"resolution"`
	ResolvedBy string `json:"resolved_by"`
}

func (h *handler) resolveEscalation(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ResolvedBy == "" {
		req.ResolvedBy = "operator"
	}

	rec, err := h.svc.ResolveEscalation(r.PathValue("id"), models.Resolution(req.Resolution), req.ResolvedBy)
	if err != nil {
		switch {
		case errors.Is(err, escalation.ErrNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, escalation.ErrInvalidResolution):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, escalation.ErrAlreadyResolved):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *handler) analyzeEvent(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.svc.AnalyzeSignal(r.Context(), r.PathValue("event_id"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSignalNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		default:
			h.writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	h.writeJSON(w, http.StatusOK, analysis)
}

func (h *handler) dashboardSummary(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Summary())
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response", slog.String("error", err.Error()))
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

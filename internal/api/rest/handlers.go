// Package rest exposes the compliance pipeline over HTTP.
package rest

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/davidleathers/compliance-guard-backend/internal/domain/compliance"
	"github.com/davidleathers/compliance-guard-backend/internal/errors"
	"github.com/davidleathers/compliance-guard-backend/internal/memorybank"
	"github.com/davidleathers/compliance-guard-backend/internal/metrics"
	"github.com/davidleathers/compliance-guard-backend/internal/service/workflow"
	"github.com/davidleathers/compliance-guard-backend/internal/session"
)

const defaultLookbackDays = 90

// Handler holds the service dependencies for the API endpoints.
type Handler struct {
	orchestrator *workflow.Orchestrator
	bank         *memorybank.Bank
	sessions     session.Store
	registry     *metrics.Registry
	logger       *zap.Logger
}

// NewHandler wires the endpoints to the orchestration core. The metrics
// registry is optional.
func NewHandler(orchestrator *workflow.Orchestrator, bank *memorybank.Bank, sessions session.Store, registry *metrics.Registry, logger *zap.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		bank:         bank,
		sessions:     sessions,
		registry:     registry,
		logger:       logger.Named("api"),
	}
}

// RegisterRoutes attaches all endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/compliance/checks", h.handleComplianceCheck)
	mux.HandleFunc("GET /api/v1/companies/{id}/history", h.handleCompanyHistory)
	mux.HandleFunc("GET /api/v1/companies/{id}/trends", h.handleCompanyTrends)
	mux.HandleFunc("GET /api/v1/companies/{id}/sessions", h.handleCompanySessions)
	mux.HandleFunc("GET /api/v1/benchmarks", h.handleBenchmarks)
	mux.HandleFunc("GET /api/v1/regulations/{name}", h.handleRegulation)
	mux.HandleFunc("GET /api/v1/workflows", h.handleWorkflowHistory)
	mux.HandleFunc("GET /api/v1/sessions", h.handleActiveSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.handleSession)
	mux.HandleFunc("GET /api/v1/stages/metrics", h.handleStageMetrics)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleComplianceCheck(w http.ResponseWriter, r *http.Request) {
	var profile compliance.CompanyProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST_BODY", "request body is not valid JSON")
		return
	}

	result, err := h.orchestrator.ExecuteComplianceCheck(r.Context(), &profile)
	if err != nil {
		h.logger.Warn("compliance check failed",
			zap.String("company_id", profile.CompanyID),
			zap.Error(err))
		h.writeAppError(w, err)
		return
	}

	if h.registry != nil {
		run := result.WorkflowMetrics
		h.registry.ObserveCheck(string(run.Status), run.Duration, run.FinalScore, run.RiskScore)
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCompanyHistory(w http.ResponseWriter, r *http.Request) {
	companyID := r.PathValue("id")
	lookback := defaultLookbackDays
	if raw := r.URL.Query().Get("lookback_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LOOKBACK", "lookback_days must be a positive integer")
			return
		}
		lookback = parsed
	}

	history := h.bank.RetrieveHistory(companyID, lookback)
	writeJSON(w, http.StatusOK, map[string]any{
		"company_id":    companyID,
		"lookback_days": lookback,
		"entries":       history,
	})
}

func (h *Handler) handleCompanyTrends(w http.ResponseWriter, r *http.Request) {
	trends, err := h.bank.Trends(r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (h *Handler) handleCompanySessions(w http.ResponseWriter, r *http.Request) {
	records := h.sessions.SessionsForCompany(r.Context(), r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]any{"sessions": records})
}

func (h *Handler) handleBenchmarks(w http.ResponseWriter, r *http.Request) {
	industry := r.URL.Query().Get("industry")
	regulation := r.URL.Query().Get("regulation")
	if industry == "" || regulation == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMETER", "industry and regulation query parameters are required")
		return
	}
	writeJSON(w, http.StatusOK, h.bank.IndustryBenchmark(industry, regulation))
}

// handleRegulation serves the static regulation knowledge base. A miss is a
// 404 carrying the enumerated valid keys.
func (h *Handler) handleRegulation(w http.ResponseWriter, r *http.Request) {
	lookup := compliance.LookupRegulation(r.PathValue("name"))
	status := http.StatusOK
	if !lookup.Found {
		status = http.StatusNotFound
	}
	writeJSON(w, status, lookup)
}

func (h *Handler) handleWorkflowHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"runs": h.orchestrator.RunHistory()})
}

func (h *Handler) handleActiveSessions(w http.ResponseWriter, r *http.Request) {
	records := h.sessions.Active(r.Context())
	if h.registry != nil {
		h.registry.ActiveSessions.Set(float64(len(records)))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": records})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	record, ok := h.sessions.Get(r.Context(), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "no session with that id")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleStageMetrics(w http.ResponseWriter, r *http.Request) {
	stageMetrics := h.orchestrator.StageMetrics()
	if h.registry != nil {
		for name, m := range stageMetrics {
			h.registry.SetStageCounters(name, m.RequestsProcessed, m.ErrorCount)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stages": stageMetrics})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	bankMetrics := h.bank.Metrics()
	if h.registry != nil {
		h.registry.MemoryEntries.Set(float64(bankMetrics.CurrentEntries))
		h.registry.Compactions.Set(float64(bankMetrics.CompactionsPerformed))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"memory_health": bankMetrics.MemoryHealth,
		"entries":       bankMetrics.CurrentEntries,
	})
}

// writeAppError maps application error codes onto HTTP statuses.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case "INVALID_COMPANY_PROFILE":
		status = http.StatusBadRequest
	case "NO_HISTORY":
		status = http.StatusNotFound
	case "MONITORING_ACTIVE":
		status = http.StatusConflict
	case "STAGE_FAILED":
		status = http.StatusBadGateway
	}
	writeError(w, status, appErr.Code, appErr.Message)
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

package compliancehandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clinic/internal/domain/compliance"
	"clinic/internal/transport/http/api"
	"clinic/internal/transport/http/middleware"
	"clinic/internal/transport/http/shared"
)

// Engine is the slice of the compliance service the console needs.
type Engine interface {
	ListPendingRequests(ctx context.Context) ([]compliance.DataSubjectRequest, error)
	ListComplianceIssues(ctx context.Context) ([]compliance.ComplianceIssue, error)
	ApproveRequest(ctx context.Context, requestID string) (*compliance.DataSubjectRequest, error)
	RejectRequest(ctx context.Context, requestID, reason string) (*compliance.DataSubjectRequest, error)
	ApplyComplianceAction(ctx context.Context, customerID string, action compliance.Action) (compliance.OperationResult, error)
	RunRetention(ctx context.Context) (compliance.RunStats, error)
	LastRun() (compliance.RunStats, bool)
	ListRetentionRuns(ctx context.Context, limit int) ([]compliance.RetentionRun, error)
	DownloadExport(ctx context.Context, exportID, token string) ([]byte, string, error)
	Policies() []compliance.RetentionPolicy
}

type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, entityType, entityID, requestID, ip string, before, after any) error
}

type Handler struct {
	Engine Engine
	Audit  AuditRecorder
}

func NewHandler(engine Engine, auditor AuditRecorder) *Handler {
	return &Handler{Engine: engine, Audit: auditor}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/compliance", func(r chi.Router) {
		// Export downloads authenticate with the one-time token mailed to
		// the subject, not an operator session.
		r.Get("/exports/{exportID}/download", h.handleDownloadExport)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOperator)
			r.Get("/requests", h.handleListRequests)
			r.Post("/requests/{requestID}/approve", h.handleApproveRequest)
			r.Post("/requests/{requestID}/reject", h.handleRejectRequest)
			r.Get("/issues", h.handleListIssues)
			r.Get("/policies", h.handleListPolicies)
			r.Post("/subjects/{customerID}/action", h.handleApplyAction)
			r.Post("/retention/run", h.handleRunRetention)
			r.Get("/retention/runs", h.handleListRetentionRuns)
			r.Get("/retention/last-run", h.handleLastRun)
		})
	})
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Engine.ListPendingRequests(r.Context())
	if err != nil {
		failFromError(w, r, "request_list_failed", err)
		return
	}
	api.Success(w, requests, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	updated, err := h.Engine.ApproveRequest(r.Context(), requestID)
	if err != nil {
		failFromError(w, r, "request_approve_failed", err)
		return
	}
	h.record(r, "compliance.request.approve", "data_subject_request", requestID, updated)
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	updated, err := h.Engine.RejectRequest(r.Context(), requestID, payload.Reason)
	if err != nil {
		failFromError(w, r, "request_reject_failed", err)
		return
	}
	h.record(r, "compliance.request.reject", "data_subject_request", requestID, updated)
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := h.Engine.ListComplianceIssues(r.Context())
	if err != nil {
		failFromError(w, r, "issue_list_failed", err)
		return
	}
	api.Success(w, issues, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Engine.Policies(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApplyAction(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	var payload struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	result, err := h.Engine.ApplyComplianceAction(r.Context(), customerID, compliance.Action(payload.Action))
	if err != nil {
		failFromError(w, r, "action_apply_failed", err)
		return
	}
	h.record(r, "compliance.action.apply", "customer", customerID, map[string]any{"action": payload.Action, "detail": result.Detail})
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRunRetention(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.RunRetention(r.Context())
	if err != nil {
		failFromError(w, r, "retention_run_failed", err)
		return
	}
	h.record(r, "compliance.retention.run", "retention_run", "", stats)
	api.Success(w, stats, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRetentionRuns(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 20, 100)
	runs, err := h.Engine.ListRetentionRuns(r.Context(), page.Limit)
	if err != nil {
		failFromError(w, r, "retention_runs_failed", err)
		return
	}
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleLastRun(w http.ResponseWriter, r *http.Request) {
	stats, ok := h.Engine.LastRun()
	if !ok {
		api.Fail(w, http.StatusNotFound, "no_runs", "no retention run has executed yet", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, stats, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	exportID := chi.URLParam(r, "exportID")
	token := r.URL.Query().Get("token")
	if token == "" {
		api.Fail(w, http.StatusBadRequest, "missing_token", "download token is required", middleware.GetRequestID(r.Context()))
		return
	}

	data, filename, err := h.Engine.DownloadExport(r.Context(), exportID, token)
	if err != nil {
		failFromError(w, r, "export_download_failed", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	if _, err := w.Write(data); err != nil {
		slog.Warn("export download write failed", "exportId", exportID, "err", err)
	}
}

func (h *Handler) record(r *http.Request, action, entityType, entityID string, after any) {
	if h.Audit == nil {
		return
	}
	operator, _ := middleware.GetOperator(r.Context())
	if err := h.Audit.Record(r.Context(), operator.OperatorID, action, entityType, entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, after); err != nil {
		slog.Warn("audit "+action+" failed", "err", err)
	}
}

func failFromError(w http.ResponseWriter, r *http.Request, code string, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, compliance.ErrValidation):
		api.Fail(w, http.StatusBadRequest, code, err.Error(), requestID)
	case errors.Is(err, compliance.ErrNotFound):
		api.Fail(w, http.StatusNotFound, code, err.Error(), requestID)
	case errors.Is(err, compliance.ErrConflict):
		api.Fail(w, http.StatusConflict, code, err.Error(), requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, code, err.Error(), requestID)
	}
}

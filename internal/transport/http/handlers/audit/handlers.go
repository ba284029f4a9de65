package audithandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clinic/internal/domain/audit"
	"clinic/internal/transport/http/api"
	"clinic/internal/transport/http/middleware"
	"clinic/internal/transport/http/shared"
)

type Lister interface {
	List(ctx context.Context, filter audit.Filter, limit, offset int) ([]audit.Event, error)
}

type Handler struct {
	Audit Lister
}

func NewHandler(lister Lister) *Handler {
	return &Handler{Audit: lister}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Use(middleware.RequireOperator)
		r.Get("/events", h.handleListEvents)
	})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)
	filter := audit.Filter{
		Action:     r.URL.Query().Get("action"),
		EntityType: r.URL.Query().Get("entityType"),
		ActorID:    r.URL.Query().Get("actorId"),
	}

	events, err := h.Audit.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "unable to list audit events", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, events, middleware.GetRequestID(r.Context()))
}

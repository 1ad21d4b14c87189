package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/daison12006013/docms/internal/platform/httpx"
	"github.com/daison12006013/docms/internal/rbac"
	"github.com/daison12006013/docms/internal/shared"
)

// Handler exposes the activity timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermAuditRead))
		r.Get("/", h.listTimeline)
	})
}

func (h *Handler) listTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filters{
		Entity: q.Get("entity"),
		Action: q.Get("action"),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PageSize, _ = strconv.Atoi(q.Get("per_page"))
	if raw := q.Get("actor_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.Actor = &id
		}
	}

	entries, pagination, err := h.service.Timeline(r.Context(), f)
	if err != nil {
		h.logger.Error("list audit timeline failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries, "pagination": pagination})
}

package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sealine-erp/sealine-erp/internal/authz"
	"github.com/sealine-erp/sealine-erp/internal/platform/httpx"
)

// Handler exposes the audit trail under /api/admin/audit.
type Handler struct {
	repo   *Repository
	gate   *authz.Gate
	logger *slog.Logger
}

// NewHandler constructs the audit API handler.
func NewHandler(repo *Repository, gate *authz.Gate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{repo: repo, gate: gate, logger: logger}
}

// Routes mounts the audit trail read API.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(authz.ModuleAdmin, authz.ViewAccess))
		r.Get("/", h.list)
	})
}

type entryResponse struct {
	ID         int64          `json:"id"`
	ActorID    int64          `json:"actor_id"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	actorID, _ := strconv.ParseInt(q.Get("actor_id"), 10, 64)

	entries, err := h.repo.List(r.Context(), limit, offset, Filters{
		Entity:   q.Get("entity"),
		EntityID: q.Get("entity_id"),
		ActorID:  actorID,
	})
	if err != nil {
		h.logger.Error("audit api", slog.Any("error", err))
		httpx.Fail(w, httpx.CodeUnexpected, "")
		return
	}
	out := make([]entryResponse, len(entries))
	for i, e := range entries {
		out[i] = entryResponse{
			ID:         e.ID,
			ActorID:    e.ActorID,
			Action:     e.Action,
			Entity:     e.Entity,
			EntityID:   e.EntityID,
			Meta:       e.Meta,
			OccurredAt: e.OccurredAt,
		}
	}
	httpx.JSON(w, http.StatusOK, out)
}

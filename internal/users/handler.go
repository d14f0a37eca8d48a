package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sealine-erp/sealine-erp/internal/authz"
	"github.com/sealine-erp/sealine-erp/internal/platform/httpx"
)

// Handler exposes account management under /api/admin/users.
type Handler struct {
	service  *Service
	gate     *authz.Gate
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs the users API handler.
func NewHandler(service *Service, gate *authz.Gate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, gate: gate, validate: validator.New(), logger: logger}
}

// Routes mounts the admin-gated user management API.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(authz.ModuleAdmin, authz.ViewAccess))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(authz.ModuleAdmin, authz.EditAccess))
		r.Post("/", h.create)
		r.Put("/{id}/roles", h.assignRoles)
		r.Put("/{id}/active", h.setActive)
	})
}

type createUserRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Name     string   `json:"name" validate:"required,max=255"`
	Password string   `json:"password" validate:"required,min=8"`
	Roles    []string `json:"roles"`
}

type rolesRequest struct {
	Roles []string `json:"roles" validate:"required"`
}

type activeRequest struct {
	Active bool `json:"active"`
}

type userResponse struct {
	ID            int64    `json:"id"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	Roles         []string `json:"roles"`
	IsSystemAdmin bool     `json:"is_system_admin"`
	IsActive      bool     `json:"is_active"`
}

func toUserResponse(user User) userResponse {
	roles := make([]string, len(user.Roles))
	for i, role := range user.Roles {
		roles[i] = string(role)
	}
	return userResponse{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		Roles:         roles,
		IsSystemAdmin: user.IsSystemAdmin,
		IsActive:      user.IsActive,
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Fail(w, httpx.CodeNotFound, "user not found")
	case errors.Is(err, ErrValidation):
		httpx.Fail(w, httpx.CodeValidationFailed, err.Error())
	case errors.Is(err, ErrDuplicateEmail):
		httpx.Fail(w, httpx.CodeConflict, err.Error())
	default:
		h.logger.Error("users api", slog.Any("error", err))
		httpx.Fail(w, httpx.CodeUnexpected, "")
	}
}

func userID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNotFound
	}
	return id, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]userResponse, len(list))
	for i, user := range list {
		out[i] = toUserResponse(user)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, httpx.CodeValidationFailed, err.Error())
		return
	}
	user, err := h.service.CreateUser(r.Context(), req.Email, req.Name, req.Password, req.Roles)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) assignRoles(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req rolesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	user, err := h.service.AssignRoles(r.Context(), id, req.Roles)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req activeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	if err := h.service.SetActive(r.Context(), id, req.Active); err != nil {
		h.respondError(w, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(user))
}

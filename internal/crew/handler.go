package crew

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sealine-erp/sealine-erp/internal/authz"
	"github.com/sealine-erp/sealine-erp/internal/platform/httpx"
	"github.com/sealine-erp/sealine-erp/internal/shared"
)

// Handler exposes seafarer records under /api/crew.
type Handler struct {
	service  *Service
	gate     *authz.Gate
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs the crew API handler.
func NewHandler(service *Service, gate *authz.Gate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, gate: gate, validate: validator.New(), logger: logger}
}

// Routes mounts the crew module behind its gate.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(authz.ModuleCrew, authz.ViewAccess))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(authz.ModuleCrew, authz.EditAccess))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
	})
}

type seafarerRequest struct {
	FullName    string     `json:"full_name" validate:"required,max=255"`
	Rank        string     `json:"rank" validate:"required,max=64"`
	Nationality string     `json:"nationality" validate:"omitempty,max=64"`
	PassportNo  string     `json:"passport_no" validate:"omitempty,max=32"`
	DateOfBirth time.Time  `json:"date_of_birth"`
	VesselName  string     `json:"vessel_name" validate:"omitempty,max=255"`
	SignOnDate  *time.Time `json:"sign_on_date,omitempty"`
	SignOffDate *time.Time `json:"sign_off_date,omitempty"`
	IsActive    bool       `json:"is_active"`
}

type seafarerResponse struct {
	ID          int64      `json:"id"`
	FullName    string     `json:"full_name"`
	Rank        string     `json:"rank"`
	Nationality string     `json:"nationality,omitempty"`
	PassportNo  string     `json:"passport_no,omitempty"`
	DateOfBirth time.Time  `json:"date_of_birth"`
	VesselName  string     `json:"vessel_name,omitempty"`
	SignOnDate  *time.Time `json:"sign_on_date,omitempty"`
	SignOffDate *time.Time `json:"sign_off_date,omitempty"`
	IsActive    bool       `json:"is_active"`
}

type crewListResponse struct {
	Items      []seafarerResponse `json:"items"`
	Pagination shared.Pagination  `json:"pagination"`
}

func toSeafarerResponse(s Seafarer) seafarerResponse {
	return seafarerResponse{
		ID:          s.ID,
		FullName:    s.FullName,
		Rank:        s.Rank,
		Nationality: s.Nationality,
		PassportNo:  s.PassportNo,
		DateOfBirth: s.DateOfBirth,
		VesselName:  s.VesselName,
		SignOnDate:  s.SignOnDate,
		SignOffDate: s.SignOffDate,
		IsActive:    s.IsActive,
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Fail(w, httpx.CodeNotFound, "seafarer not found")
	case errors.Is(err, ErrValidation):
		httpx.Fail(w, httpx.CodeValidationFailed, err.Error())
	default:
		h.logger.Error("crew api", slog.Any("error", err))
		httpx.Fail(w, httpx.CodeUnexpected, "")
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	records, pagination, err := h.service.List(r.Context(), page, perPage, q.Get("q"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	items := make([]seafarerResponse, len(records))
	for i, s := range records {
		items[i] = toSeafarerResponse(s)
	}
	httpx.JSON(w, http.StatusOK, crewListResponse{Items: items, Pagination: pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respondError(w, ErrNotFound)
		return
	}
	s, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSeafarerResponse(s))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req seafarerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, httpx.CodeValidationFailed, err.Error())
		return
	}
	s, err := h.service.Create(r.Context(), fromRequest(req, 0))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSeafarerResponse(s))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respondError(w, ErrNotFound)
		return
	}
	var req seafarerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, httpx.CodeValidationFailed, err.Error())
		return
	}
	s, err := h.service.Update(r.Context(), fromRequest(req, id))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSeafarerResponse(s))
}

func fromRequest(req seafarerRequest, id int64) Seafarer {
	return Seafarer{
		ID:          id,
		FullName:    req.FullName,
		Rank:        req.Rank,
		Nationality: req.Nationality,
		PassportNo:  req.PassportNo,
		DateOfBirth: req.DateOfBirth,
		VesselName:  req.VesselName,
		SignOnDate:  req.SignOnDate,
		SignOffDate: req.SignOffDate,
		IsActive:    req.IsActive,
	}
}

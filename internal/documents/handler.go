package documents

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sealine-erp/sealine-erp/internal/authz"
	"github.com/sealine-erp/sealine-erp/internal/platform/httpx"
)

// Handler exposes the document lifecycle as a JSON API under /api/documents.
type Handler struct {
	service  *Service
	gate     *authz.Gate
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs the documents API handler.
func NewHandler(service *Service, gate *authz.Gate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:  service,
		gate:     gate,
		validate: validator.New(),
		logger:   logger,
	}
}

// Routes mounts the API. Reads require view access, transitions require edit
// access; acknowledgement only requires authentication because its ownership
// rule (recipient acknowledges for themselves) lives in the service.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(authz.ModuleDocuments, authz.ViewAccess))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/history", h.history)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(authz.ModuleDocuments, authz.EditAccess))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Post("/{id}/submit", h.submit)
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
		r.Post("/{id}/distribute", h.distribute)
		r.Delete("/{id}", h.retire)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Authenticated())
		r.Post("/{id}/acknowledge", h.acknowledge)
	})
}

// actor derives the acting principal from the gated identity.
func (h *Handler) actor(r *http.Request) Actor {
	ident := authz.IdentityFromContext(r.Context())
	if ident == nil {
		return Actor{}
	}
	var role authz.Role
	if len(ident.Roles) > 0 {
		role = ident.Roles[0]
	}
	canEdit := ident.IsSystemAdmin ||
		h.gate.Evaluator().CanAccess(ident.Roles, authz.ModuleDocuments, authz.EditAccess)
	return Actor{ID: ident.UserID, Role: role, CanEdit: canEdit}
}

func documentID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return id, nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Fail(w, httpx.CodeNotFound, "document not found")
	case errors.Is(err, ErrValidation):
		httpx.Fail(w, httpx.CodeValidationFailed, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Fail(w, httpx.CodeInvalidTransition, err.Error())
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyAcknowledged):
		httpx.Fail(w, httpx.CodeConflict, err.Error())
	case errors.Is(err, ErrNotAllowed), errors.Is(err, ErrSelfApproval):
		httpx.Fail(w, httpx.CodeForbidden, err.Error())
	default:
		h.logger.Error("documents api", slog.Any("error", err))
		httpx.Fail(w, httpx.CodeUnexpected, "")
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Fail(w, httpx.CodeValidationFailed, "invalid request body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Fail(w, httpx.CodeValidationFailed, err.Error())
		return false
	}
	return true
}

// decodeOptional tolerates an absent body, for transitions where remarks are
// optional.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil && !errors.Is(err, io.EOF) {
		httpx.Fail(w, httpx.CodeValidationFailed, "invalid request body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Fail(w, httpx.CodeValidationFailed, err.Error())
		return false
	}
	return true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	filters := ListFilters{
		Status:     q.Get("status"),
		Department: q.Get("department"),
		Search:     q.Get("q"),
	}
	docs, total, err := h.service.List(r.Context(), limit, offset, filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	items := make([]documentResponse, len(docs))
	for i, doc := range docs {
		items[i] = toDocumentResponse(doc)
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	view, err := h.service.History(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toHistoryResponse(view))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	doc, err := h.service.Create(r.Context(), h.actor(r), CreateInput{
		Code:            req.Code,
		Title:           req.Title,
		DocumentType:    req.DocumentType,
		Department:      req.Department,
		RetentionMonths: req.RetentionMonths,
		EffectiveDate:   req.EffectiveDate,
		ContentURL:      req.ContentURL,
		FileName:        req.FileName,
		FileSize:        req.FileSize,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	doc, err := h.service.Update(r.Context(), h.actor(r), id, UpdateInput{
		Title:           req.Title,
		DocumentType:    req.DocumentType,
		Department:      req.Department,
		RetentionMonths: req.RetentionMonths,
		EffectiveDate:   req.EffectiveDate,
		ContentURL:      req.ContentURL,
		FileName:        req.FileName,
		FileSize:        req.FileSize,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	doc, err := h.service.SubmitForApproval(r.Context(), h.actor(r), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req remarksRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	doc, err := h.service.Approve(r.Context(), h.actor(r), id, req.Remarks)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req remarksRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	doc, err := h.service.Reject(r.Context(), h.actor(r), id, req.Remarks)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) distribute(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req distributeRequest
	if !h.decode(w, r, &req) {
		return
	}
	idemKey := r.Header.Get("Idempotency-Key")
	doc, records, err := h.service.Distribute(r.Context(), h.actor(r), id, req.RecipientIDs, idemKey)
	if err != nil {
		h.respondError(w, err)
		return
	}
	distributions := make([]distributionResponse, len(records))
	for i, rec := range records {
		distributions[i] = distributionResponse{
			ID:            rec.ID,
			RecipientID:   rec.RecipientID,
			DistributedAt: rec.DistributedAt,
		}
	}
	httpx.JSON(w, http.StatusOK, struct {
		Document      documentResponse       `json:"document"`
		Distributions []distributionResponse `json:"distributions"`
	}{toDocumentResponse(doc), distributions})
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req remarksRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	record, err := h.service.Acknowledge(r.Context(), h.actor(r), id, req.Remarks)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, distributionResponse{
		ID:             record.ID,
		RecipientID:    record.RecipientID,
		DistributedAt:  record.DistributedAt,
		AcknowledgedAt: record.AcknowledgedAt,
		Remarks:        record.Remarks,
	})
}

func (h *Handler) retire(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	doc, err := h.service.Retire(r.Context(), h.actor(r), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(doc))
}

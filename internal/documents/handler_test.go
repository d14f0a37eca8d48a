package documents

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sealine-erp/sealine-erp/internal/authz"
)

// switchableResolver lets a test act as different callers against one router.
type switchableResolver struct {
	ident *authz.Identity
}

func (s *switchableResolver) Resolve(ctx context.Context, r *http.Request) (*authz.Identity, error) {
	return s.ident, nil
}

func newTestRouter(t *testing.T) (*chi.Mux, *switchableResolver, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	svc := newTestService(repo)
	resolver := &switchableResolver{}
	eval := authz.NewEvaluator(authz.NewRegistry(authz.DefaultGrants()), slog.Default())
	gate := authz.NewGate(resolver, eval, slog.Default())
	handler := NewHandler(svc, gate, slog.Default())

	r := chi.NewRouter()
	r.Route("/api/documents", handler.Routes)
	return r, resolver, repo
}

func doJSON(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func apiErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

var (
	qmrIdent      = &authz.Identity{UserID: 10, Email: "qmr@sealine.example", Roles: []authz.Role{authz.RoleQMR}}
	directorIdent = &authz.Identity{UserID: 20, Email: "director@sealine.example", Roles: []authz.Role{authz.RoleDirector}}
	staffIdent    = &authz.Identity{UserID: 30, Email: "staff@sealine.example", Roles: []authz.Role{authz.RoleStaff}}
	crewIdent     = &authz.Identity{UserID: 2, Email: "bosun@sealine.example", Roles: []authz.Role{authz.RoleCrew}}
)

const createBody = `{"code":"SL-QMS-001","title":"Garbage Management Plan","document_type":"procedure","department":"quality","retention_months":60}`

func TestAPIRequiresAuthentication(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/documents", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "UNAUTHENTICATED", apiErrorCode(t, rec))
}

func TestAPIViewerCannotCreate(t *testing.T) {
	router, resolver, _ := newTestRouter(t)
	resolver.ident = staffIdent

	rec := doJSON(t, router, http.MethodGet, "/api/documents", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/documents", createBody)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "FORBIDDEN", apiErrorCode(t, rec))
}

func TestAPICrewDeniedOnDocuments(t *testing.T) {
	router, resolver, _ := newTestRouter(t)
	resolver.ident = crewIdent

	rec := doJSON(t, router, http.MethodGet, "/api/documents", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPICreateValidation(t *testing.T) {
	router, resolver, _ := newTestRouter(t)
	resolver.ident = qmrIdent

	rec := doJSON(t, router, http.MethodPost, "/api/documents", `{"title":"no code"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_FAILED", apiErrorCode(t, rec))
}

func TestAPIUnknownDocumentIs404(t *testing.T) {
	router, resolver, _ := newTestRouter(t)
	resolver.ident = qmrIdent

	rec := doJSON(t, router, http.MethodGet, "/api/documents/not-a-uuid", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", apiErrorCode(t, rec))
}

func TestAPIFullLifecycle(t *testing.T) {
	router, resolver, _ := newTestRouter(t)

	// QMR authors the document.
	resolver.ident = qmrIdent
	rec := doJSON(t, router, http.MethodPost, "/api/documents", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, StatusDraft, created.Status)
	base := "/api/documents/" + created.ID

	rec = doJSON(t, router, http.MethodPost, base+"/submit", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// The submitter cannot approve their own document.
	rec = doJSON(t, router, http.MethodPost, base+"/approve", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	// A distribution attempt out of order is an invalid transition.
	rec = doJSON(t, router, http.MethodPost, base+"/distribute", `{"recipient_ids":[1,2]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_TRANSITION", apiErrorCode(t, rec))

	// The director approves and distributes, with a duplicate recipient.
	resolver.ident = directorIdent
	rec = doJSON(t, router, http.MethodPost, base+"/approve", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, base+"/distribute", `{"recipient_ids":[2,3,2]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var distributed struct {
		Document      documentResponse       `json:"document"`
		Distributions []distributionResponse `json:"distributions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &distributed))
	require.Equal(t, StatusDistributed, distributed.Document.Status)
	require.Len(t, distributed.Distributions, 2)

	// A crew recipient acknowledges despite having no documents grant.
	resolver.ident = crewIdent
	rec = doJSON(t, router, http.MethodPost, base+"/acknowledge", `{"remarks":"read"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, base+"/acknowledge", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "CONFLICT", apiErrorCode(t, rec))

	// History shows four transitions; acknowledgement stays per-record.
	resolver.ident = qmrIdent
	rec = doJSON(t, router, http.MethodGet, base+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Entries, 4)
	require.Len(t, history.Distributions, 2)
}

func TestAPIRejectLoop(t *testing.T) {
	router, resolver, _ := newTestRouter(t)

	resolver.ident = qmrIdent
	rec := doJSON(t, router, http.MethodPost, "/api/documents", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	base := "/api/documents/" + created.ID

	rec = doJSON(t, router, http.MethodPost, base+"/submit", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resolver.ident = directorIdent
	rec = doJSON(t, router, http.MethodPost, base+"/reject", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_FAILED", apiErrorCode(t, rec))

	rec = doJSON(t, router, http.MethodPost, base+"/reject", `{"remarks":"wrong retention"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var rejected documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rejected))
	require.Equal(t, StatusDraft, rejected.Status)
}

func TestAPIRetire(t *testing.T) {
	router, resolver, _ := newTestRouter(t)
	resolver.ident = qmrIdent

	rec := doJSON(t, router, http.MethodPost, "/api/documents", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, router, http.MethodDelete, "/api/documents/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var retired documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &retired))
	require.Equal(t, StatusRetired, retired.Status)
	require.NotNil(t, retired.DeletedAt)
}

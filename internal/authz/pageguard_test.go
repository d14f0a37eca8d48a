package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func servePage(t *testing.T, gate *Gate, cfg PageConfig, target string) *httptest.ResponseRecorder {
	t.Helper()
	handler := gate.Page(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestPageRedirectsAnonymousToSignIn(t *testing.T) {
	gate := newTestGate(nil, nil)

	rec := servePage(t, gate, PageConfig{}, "/quality/reports?tab=open")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/auth/login?next=%2Fquality%2Freports%3Ftab%3Dopen", rec.Header().Get("Location"))
}

func TestPageCrewRedirectedToPortal(t *testing.T) {
	gate := newTestGate(&Identity{UserID: 5, Roles: []Role{RoleCrew}}, nil)

	rec := servePage(t, gate, PageConfig{RedirectIfCrew: "/portal"}, "/dashboard")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/portal", rec.Header().Get("Location"))
}

func TestPageOfficeRedirectedOffPortal(t *testing.T) {
	gate := newTestGate(&Identity{UserID: 6, Roles: []Role{RoleStaff}}, nil)

	rec := servePage(t, gate, PageConfig{RedirectIfOffice: "/dashboard"}, "/portal")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestPageAllowListDeniesWithFallbackRedirect(t *testing.T) {
	gate := newTestGate(&Identity{UserID: 6, Roles: []Role{RoleStaff}}, nil)

	cfg := PageConfig{AllowedRoles: []Role{RoleDirector, RoleQMR}}
	rec := servePage(t, gate, cfg, "/admin/users")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, DefaultFallbackPath, rec.Header().Get("Location"))

	cfg.RedirectOnDisallowed = "/quality"
	rec = servePage(t, gate, cfg, "/admin/users")
	require.Equal(t, "/quality", rec.Header().Get("Location"))
}

func TestPageAllowListAdmits(t *testing.T) {
	gate := newTestGate(&Identity{UserID: 2, Roles: []Role{RoleQMR}}, nil)

	rec := servePage(t, gate, PageConfig{AllowedRoles: []Role{RoleQMR}}, "/quality")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPageSystemAdminBypassesAllowList(t *testing.T) {
	gate := newTestGate(&Identity{UserID: 1, IsSystemAdmin: true}, nil)

	rec := servePage(t, gate, PageConfig{AllowedRoles: []Role{RoleDirector}}, "/admin/users")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPageFamilyRedirectBeatsAllowList(t *testing.T) {
	// A crew role is redirected to the portal even when the allow-list
	// would otherwise admit another role the user also holds.
	gate := newTestGate(&Identity{UserID: 8, Roles: []Role{RoleQMR, RoleCrew}}, nil)

	cfg := PageConfig{AllowedRoles: []Role{RoleQMR}, RedirectIfCrew: "/portal"}
	rec := servePage(t, gate, cfg, "/quality")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/portal", rec.Header().Get("Location"))
}

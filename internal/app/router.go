package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sealine-erp/sealine-erp/internal/audit"
	"github.com/sealine-erp/sealine-erp/internal/auth"
	"github.com/sealine-erp/sealine-erp/internal/authz"
	"github.com/sealine-erp/sealine-erp/internal/crew"
	"github.com/sealine-erp/sealine-erp/internal/documents"
	"github.com/sealine-erp/sealine-erp/internal/observability"
	"github.com/sealine-erp/sealine-erp/internal/shared"
	"github.com/sealine-erp/sealine-erp/internal/users"
	"github.com/sealine-erp/sealine-erp/internal/view"
	"github.com/sealine-erp/sealine-erp/jobs"
	"github.com/sealine-erp/sealine-erp/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Gate           *authz.Gate

	AuthHandler      *auth.Handler
	DocumentsHandler *documents.Handler
	UsersHandler     *users.Handler
	CrewHandler      *crew.Handler
	AuditHandler     *audit.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Sealine defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Landing page for unauthenticated visitors.
	r.Get("/welcome", func(w http.ResponseWriter, r *http.Request) {
		params.renderPage(w, r, "pages/landing.html", "Sealine", nil)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			http.Redirect(w, r, "/welcome", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Office pages. Crew-family identities bounce to the portal before the
	// allow-list runs.
	r.Group(func(r chi.Router) {
		r.Use(params.Gate.Page(authz.PageConfig{RedirectIfCrew: "/portal"}))
		r.Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
			params.renderPage(w, r, "pages/dashboard.html", "Dashboard", nil)
		})
	})
	r.Group(func(r chi.Router) {
		r.Use(params.Gate.Page(authz.PageConfig{
			AllowedRoles:   []authz.Role{authz.RoleQMR, authz.RoleDirector},
			RedirectIfCrew: "/portal",
		}))
		r.Get("/quality", func(w http.ResponseWriter, r *http.Request) {
			params.renderPage(w, r, "pages/quality.html", "Quality", nil)
		})
	})
	r.Group(func(r chi.Router) {
		r.Use(params.Gate.Page(authz.PageConfig{
			AllowedRoles:   []authz.Role{authz.RoleDirector},
			RedirectIfCrew: "/portal",
		}))
		r.Get("/admin/users", func(w http.ResponseWriter, r *http.Request) {
			params.renderPage(w, r, "pages/admin_users.html", "User Administration", nil)
		})
	})

	// Crew portal. Office identities bounce back to the dashboard.
	r.Group(func(r chi.Router) {
		r.Use(params.Gate.Page(authz.PageConfig{RedirectIfOffice: "/dashboard"}))
		r.Get("/portal", func(w http.ResponseWriter, r *http.Request) {
			params.renderPage(w, r, "pages/portal.html", "Crew Portal", nil)
		})
	})

	r.Route("/api/documents", params.DocumentsHandler.Routes)
	r.Route("/api/crew", params.CrewHandler.Routes)
	r.Route("/api/admin/users", params.UsersHandler.Routes)
	r.Route("/api/admin/audit", params.AuditHandler.Routes)

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

func (p RouterParams) renderPage(w http.ResponseWriter, r *http.Request, page, title string, extra map[string]any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := p.CSRFManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	data := map[string]any{}
	for k, v := range extra {
		data[k] = v
	}
	if ident := authz.IdentityFromContext(r.Context()); ident != nil {
		data["Identity"] = ident
	}
	if p.Config != nil {
		data["AppEnv"] = p.Config.AppEnv
	}
	td := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := p.Templates.Render(w, page, td); err != nil {
		p.Logger.Error("render page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers so
// browsers keep assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}

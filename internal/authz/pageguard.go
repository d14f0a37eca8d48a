package authz

import (
	"log/slog"
	"net/http"
	"net/url"
)

const (
	// SignInPath receives unauthenticated page navigators. The original
	// path travels along for post-login restoration.
	SignInPath = "/auth/login"
	// DefaultFallbackPath receives authenticated navigators whose role is
	// disallowed for a page section.
	DefaultFallbackPath = "/dashboard"
)

// PageConfig declares the page policy for a section. If AllowedRoles is
// empty any authenticated caller passes. Family redirects are evaluated
// before the explicit allow-list.
type PageConfig struct {
	AllowedRoles         []Role
	RedirectIfCrew       string
	RedirectIfOffice     string
	RedirectOnDisallowed string
}

// Page enforces the page policy: redirects instead of error bodies. The
// guard performs no persistence and leaves the response body untouched.
func (g *Gate) Page(cfg PageConfig) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(cfg.AllowedRoles))
	for _, role := range cfg.AllowedRoles {
		allowed[role] = struct{}{}
	}
	fallback := cfg.RedirectOnDisallowed
	if fallback == "" {
		fallback = DefaultFallbackPath
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := g.resolve(r)
			if ident == nil {
				target := SignInPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}

			// Family redirects come before the allow-list.
			if cfg.RedirectIfCrew != "" && HasCrewRole(ident.Roles) {
				http.Redirect(w, r, cfg.RedirectIfCrew, http.StatusSeeOther)
				return
			}
			if cfg.RedirectIfOffice != "" && !HasCrewRole(ident.Roles) {
				http.Redirect(w, r, cfg.RedirectIfOffice, http.StatusSeeOther)
				return
			}

			if len(allowed) > 0 && !ident.IsSystemAdmin {
				permitted := false
				for _, role := range ident.Roles {
					if _, ok := allowed[role]; ok {
						permitted = true
						break
					}
				}
				if !permitted {
					g.logger.Warn("page section denied",
						slog.Int64("user_id", ident.UserID),
						slog.String("path", r.URL.Path),
					)
					http.Redirect(w, r, fallback, http.StatusSeeOther)
					return
				}
			}

			ctx := ContextWithIdentity(r.Context(), ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Package authz implements the role based permission engine gating every
// API route and page section: a static grant registry, an evaluator and the
// request gate middleware.
package authz

import "context"

// Role is a validated role identifier. Roles partition into two fixed
// families: office roles may reach back-office modules, crew roles are
// confined to the crew portal.
type Role string

const (
	RoleDirector   Role = "DIRECTOR"
	RoleHR         Role = "HR"
	RoleQMR        Role = "QMR"
	RoleStaff      Role = "STAFF"
	RoleCrew       Role = "CREW"
	RoleCrewPortal Role = "CREW_PORTAL"
)

// ParseRole validates a raw role value. Unknown values are reported rather
// than failing, so stray session data degrades to zero grants.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleDirector, RoleHR, RoleQMR, RoleStaff, RoleCrew, RoleCrewPortal:
		return Role(raw), true
	default:
		return "", false
	}
}

// IsCrewFamily reports whether the role belongs to the crew family.
func (r Role) IsCrewFamily() bool {
	return r == RoleCrew || r == RoleCrewPortal
}

// IsOfficeFamily reports whether the role belongs to the office family.
func (r Role) IsOfficeFamily() bool {
	switch r {
	case RoleDirector, RoleHR, RoleQMR, RoleStaff:
		return true
	default:
		return false
	}
}

// HasCrewRole reports whether any crew-family role is present. A single crew
// role excludes the caller from office modules regardless of other roles.
func HasCrewRole(roles []Role) bool {
	for _, r := range roles {
		if r.IsCrewFamily() {
			return true
		}
	}
	return false
}

// Module identifies an independently gated functional area.
type Module string

const (
	ModuleCrew           Module = "crew"
	ModuleCompliance     Module = "compliance"
	ModuleHR             Module = "hr"
	ModuleQuality        Module = "quality"
	ModuleAdmin          Module = "admin"
	ModuleDispatches     Module = "dispatches"
	ModuleDocuments      Module = "documents"
	ModuleProcurement    Module = "procurement"
	ModuleAppraisals     Module = "appraisals"
	ModuleCommunications Module = "communications"
	ModuleSuppliers      Module = "suppliers"
	ModuleCrewPortal     Module = "crewportal"
)

// IsOffice reports whether the module belongs to the back-office area.
func (m Module) IsOffice() bool {
	return m != ModuleCrewPortal
}

// AccessLevel is the ordered permission tier for a module. Edit access
// implies view access by ordering.
type AccessLevel int

const (
	NoAccess AccessLevel = iota
	ViewAccess
	EditAccess
)

// String returns the canonical level name.
func (l AccessLevel) String() string {
	switch l {
	case ViewAccess:
		return "VIEW_ACCESS"
	case EditAccess:
		return "EDIT_ACCESS"
	default:
		return "NO_ACCESS"
	}
}

// Grant associates a role with a module and an access level.
type Grant struct {
	Role   Role
	Module Module
	Level  AccessLevel
}

// Identity describes the resolved caller of a request. Roles outside the
// known enumeration are dropped during resolution.
type Identity struct {
	UserID        int64
	Email         string
	Roles         []Role
	IsSystemAdmin bool
}

type identityContextKey struct{}

// ContextWithIdentity stores the resolved identity in context.
func ContextWithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, ident)
}

// IdentityFromContext extracts the resolved identity from context.
func IdentityFromContext(ctx context.Context) *Identity {
	ident, _ := ctx.Value(identityContextKey{}).(*Identity)
	return ident
}

package authz

// Registry is the immutable role-to-grant table, loaded once per process and
// shared across all callers without locking. Lookups are O(1) per
// (role, module) pair to keep authorization off the request's critical path.
type Registry struct {
	grants map[Role]map[Module]AccessLevel
}

// NewRegistry builds a Registry from an explicit grant table. Duplicate
// grants keep the highest level.
func NewRegistry(grants []Grant) *Registry {
	table := make(map[Role]map[Module]AccessLevel)
	for _, g := range grants {
		modules, ok := table[g.Role]
		if !ok {
			modules = make(map[Module]AccessLevel)
			table[g.Role] = modules
		}
		if g.Level > modules[g.Module] {
			modules[g.Module] = g.Level
		}
	}
	return &Registry{grants: table}
}

// Level returns the access level a single role holds on a module. Unknown
// roles yield NoAccess.
func (r *Registry) Level(role Role, module Module) AccessLevel {
	return r.grants[role][module]
}

// Grants returns a copy of the grant set for a role. Total: unknown roles
// map to an empty set.
func (r *Registry) Grants(role Role) map[Module]AccessLevel {
	out := make(map[Module]AccessLevel, len(r.grants[role]))
	for module, level := range r.grants[role] {
		out[module] = level
	}
	return out
}

// DefaultGrants is the shipped grant table for the Sealine back office.
func DefaultGrants() []Grant {
	officeModules := []Module{
		ModuleCrew, ModuleCompliance, ModuleHR, ModuleQuality, ModuleAdmin,
		ModuleDispatches, ModuleDocuments, ModuleProcurement, ModuleAppraisals,
		ModuleCommunications, ModuleSuppliers,
	}

	var grants []Grant

	// Directors hold edit access everywhere in the office area.
	for _, m := range officeModules {
		grants = append(grants, Grant{Role: RoleDirector, Module: m, Level: EditAccess})
	}

	grants = append(grants,
		Grant{Role: RoleHR, Module: ModuleCrew, Level: EditAccess},
		Grant{Role: RoleHR, Module: ModuleHR, Level: EditAccess},
		Grant{Role: RoleHR, Module: ModuleAppraisals, Level: EditAccess},
		Grant{Role: RoleHR, Module: ModuleCommunications, Level: EditAccess},
		Grant{Role: RoleHR, Module: ModuleCompliance, Level: ViewAccess},
		Grant{Role: RoleHR, Module: ModuleQuality, Level: ViewAccess},
		Grant{Role: RoleHR, Module: ModuleDocuments, Level: ViewAccess},
		Grant{Role: RoleHR, Module: ModuleDispatches, Level: ViewAccess},

		Grant{Role: RoleQMR, Module: ModuleQuality, Level: EditAccess},
		Grant{Role: RoleQMR, Module: ModuleDocuments, Level: EditAccess},
		Grant{Role: RoleQMR, Module: ModuleCompliance, Level: EditAccess},
		Grant{Role: RoleQMR, Module: ModuleCrew, Level: ViewAccess},
		Grant{Role: RoleQMR, Module: ModuleHR, Level: ViewAccess},
		Grant{Role: RoleQMR, Module: ModuleSuppliers, Level: ViewAccess},

		Grant{Role: RoleStaff, Module: ModuleDispatches, Level: EditAccess},
		Grant{Role: RoleStaff, Module: ModuleCommunications, Level: EditAccess},
		Grant{Role: RoleStaff, Module: ModuleCrew, Level: ViewAccess},
		Grant{Role: RoleStaff, Module: ModuleCompliance, Level: ViewAccess},
		Grant{Role: RoleStaff, Module: ModuleQuality, Level: ViewAccess},
		Grant{Role: RoleStaff, Module: ModuleDocuments, Level: ViewAccess},
		Grant{Role: RoleStaff, Module: ModuleProcurement, Level: ViewAccess},
		Grant{Role: RoleStaff, Module: ModuleSuppliers, Level: ViewAccess},

		Grant{Role: RoleCrew, Module: ModuleCrewPortal, Level: ViewAccess},
		Grant{Role: RoleCrewPortal, Module: ModuleCrewPortal, Level: EditAccess},
	)

	return grants
}

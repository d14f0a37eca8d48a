package authz

import "log/slog"

// Evaluator decides allow/deny for a caller's role set against a module and
// required access level.
type Evaluator struct {
	registry *Registry
	logger   *slog.Logger
}

// NewEvaluator constructs an Evaluator over the given registry.
func NewEvaluator(registry *Registry, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{registry: registry, logger: logger}
}

// CanAccess reports whether the effective roles reach the required level on
// the module. Grants are additive across roles: the maximum granted level
// wins. An empty role set yields NoAccess everywhere, never an error. A crew
// family role excludes the caller from every office module regardless of any
// other grants present.
func (e *Evaluator) CanAccess(roles []Role, module Module, required AccessLevel) bool {
	if required <= NoAccess {
		return true
	}
	if module.IsOffice() && HasCrewRole(roles) {
		return false
	}
	max := NoAccess
	for _, role := range roles {
		if level := e.registry.Level(role, module); level > max {
			max = level
		}
	}
	return max >= required
}

// Allow applies the full decision for a resolved identity. The system
// administrator override short-circuits to allow and is logged distinctly
// from normal grants so the audit trail can tell the two apart.
func (e *Evaluator) Allow(ident Identity, module Module, required AccessLevel) bool {
	if ident.IsSystemAdmin {
		e.logger.Info("system admin override",
			slog.Int64("user_id", ident.UserID),
			slog.String("module", string(module)),
			slog.String("required", required.String()),
		)
		return true
	}
	return e.CanAccess(ident.Roles, module, required)
}

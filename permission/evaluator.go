package permission

// Evaluator answers permission and role checks for the current principal.
// Stateless over the frozen table; callers pass the principal's role on
// every query.
//
// In local (single-user) mode every check returns true and the effective
// role is pinned to admin. That mode is an explicit construction-time
// switch, never a fallback.
type Evaluator struct {
	table     *Table
	localMode bool
}

// NewEvaluator builds an evaluator over the table. localMode bypasses all
// checks.
func NewEvaluator(table *Table, localMode bool) *Evaluator {
	return &Evaluator{table: table, localMode: localMode}
}

// LocalMode reports whether the bypass switch is on.
func (e *Evaluator) LocalMode() bool { return e.localMode }

// EffectiveRole returns the role checks are evaluated against: the given
// role in hosted mode, admin in local mode.
func (e *Evaluator) EffectiveRole(role string) string {
	if e.localMode {
		return RoleAdmin
	}
	return role
}

// HasPermission reports whether the role grants the permission. An empty
// role (no session) is false in hosted mode.
func (e *Evaluator) HasPermission(role string, perm Permission) bool {
	if e.localMode {
		return true
	}
	if role == "" {
		return false
	}
	return e.table.HasPermission(role, perm)
}

// PermissionNames returns the effective role's permission names in bit
// order. Local mode reports the full admin set.
func (e *Evaluator) PermissionNames(role string) []string {
	effective := e.EffectiveRole(role)
	if effective == "" {
		return nil
	}
	perms := e.table.Permissions(effective)
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, string(p))
	}
	return names
}

// HasRole reports whether the role's rank meets the required rank. An empty
// role (no session) is false in hosted mode.
func (e *Evaluator) HasRole(role, required string) bool {
	if e.localMode {
		return true
	}
	if role == "" {
		return false
	}
	have := RoleRank(role)
	want := RoleRank(required)
	if want == RankNone {
		return false
	}
	return have >= want
}

package permission

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Role names, ranked viewer < editor < admin.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

// Permission names, matching the backend's RBAC table byte for byte so
// server-issued permission lists line up with local checks.
const (
	ManageUsers Permission = "manage_users"
	InviteUsers Permission = "invite_users"
	ViewUsers   Permission = "view_users"

	CreateWorkspace Permission = "create_workspace"
	ViewWorkspace   Permission = "view_workspace"
	EditWorkspace   Permission = "edit_workspace"
	DeleteWorkspace Permission = "delete_workspace"

	CreateCollection Permission = "create_collection"
	ViewCollection   Permission = "view_collection"
	EditCollection   Permission = "edit_collection"
	DeleteCollection Permission = "delete_collection"

	CreateRequest Permission = "create_request"
	ViewRequest   Permission = "view_request"
	EditRequest   Permission = "edit_request"
	DeleteRequest Permission = "delete_request"
	SendRequest   Permission = "send_request"

	CreateEnvironment Permission = "create_environment"
	ViewEnvironment   Permission = "view_environment"
	EditEnvironment   Permission = "edit_environment"
	DeleteEnvironment Permission = "delete_environment"

	ViewAuditLogs Permission = "view_audit_logs"
	ManageSystem  Permission = "manage_system"
)

// Permission is a named capability.
type Permission string

// Rank orders roles; a higher rank implies every lower rank.
type Rank int

const (
	// RankNone is the rank of an unknown role or no session.
	RankNone Rank = iota
	// RankViewer is an exported rank constant.
	RankViewer
	// RankEditor is an exported rank constant.
	RankEditor
	// RankAdmin is an exported rank constant.
	RankAdmin
)

var roleRanks = map[string]Rank{
	RoleViewer: RankViewer,
	RoleEditor: RankEditor,
	RoleAdmin:  RankAdmin,
}

// RoleRank returns the rank of a role name, RankNone for unknown roles.
func RoleRank(role string) Rank {
	return roleRanks[role]
}

// Table is the static role → permission mapping, built once and frozen.
type Table struct {
	registry *Registry

	mu     sync.RWMutex
	masks  map[string]Mask64
	frozen bool
}

// NewTable creates an empty table over a fresh registry.
func NewTable() *Table {
	return &Table{
		registry: NewRegistry(),
		masks:    make(map[string]Mask64),
	}
}

// Grant registers perms (first use assigns bits) and adds them to the role's
// mask. Must be called before [Table.Freeze].
func (t *Table) Grant(role string, perms ...Permission) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return errors.New("permission table frozen")
	}
	if _, ok := roleRanks[role]; !ok {
		return errors.New("unknown role: " + role)
	}

	mask := t.masks[role]
	for _, perm := range perms {
		bit, ok := t.registry.Bit(string(perm))
		if !ok {
			var err error
			bit, err = t.registry.Register(string(perm))
			if err != nil {
				return err
			}
		}
		mask.Set(bit)
	}
	t.masks[role] = mask
	return nil
}

// Freeze seals the table and its registry.
func (t *Table) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
	t.registry.Freeze()
}

// HasPermission reports whether the role's mask carries the permission.
func (t *Table) HasPermission(role string, perm Permission) bool {
	bit, ok := t.registry.Bit(string(perm))
	if !ok {
		return false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	mask, ok := t.masks[role]
	if !ok {
		return false
	}
	return mask.Has(bit)
}

// Permissions returns the role's granted permission names in bit order.
func (t *Table) Permissions(role string) []Permission {
	t.mu.RLock()
	mask, ok := t.masks[role]
	t.mu.RUnlock()
	if !ok {
		return nil
	}

	var perms []Permission
	for bit := 0; bit < t.registry.Count(); bit++ {
		if mask.Has(bit) {
			name, _ := t.registry.Name(bit)
			perms = append(perms, Permission(name))
		}
	}
	return perms
}

// VerifyHierarchy checks the cumulative-permission invariant: for every pair
// of roles r1 ≤ r2, each permission granted at r1 must be granted at r2.
// Returns a descriptive error naming the first violation found.
func (t *Table) VerifyHierarchy() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	roles := make([]string, 0, len(t.masks))
	for role := range t.masks {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool {
		return roleRanks[roles[i]] < roleRanks[roles[j]]
	})

	for i := 0; i < len(roles); i++ {
		for j := i + 1; j < len(roles); j++ {
			lower := t.masks[roles[i]]
			higher := t.masks[roles[j]]
			if higher.ContainsAll(lower) {
				continue
			}
			missing := lower &^ higher
			for bit := 0; bit < 64; bit++ {
				if missing.Has(bit) {
					name, _ := t.registry.Name(bit)
					return fmt.Errorf(
						"permission %q granted to %s but not to higher-ranked %s",
						name, roles[i], roles[j],
					)
				}
			}
		}
	}
	return nil
}

// DefaultTable builds the studio's role/permission table.
func DefaultTable() *Table {
	t := NewTable()

	viewer := []Permission{
		ViewWorkspace,
		ViewCollection,
		ViewRequest,
		SendRequest,
		ViewEnvironment,
	}
	editor := append(append([]Permission{}, viewer...),
		CreateWorkspace, EditWorkspace, DeleteWorkspace,
		CreateCollection, EditCollection, DeleteCollection,
		CreateRequest, EditRequest, DeleteRequest,
		CreateEnvironment, EditEnvironment, DeleteEnvironment,
	)
	admin := append(append([]Permission{}, editor...),
		ManageUsers, InviteUsers, ViewUsers,
		ViewAuditLogs, ManageSystem,
	)

	// Grant can only fail on registry exhaustion or a frozen table; neither
	// is reachable while building the default table.
	_ = t.Grant(RoleViewer, viewer...)
	_ = t.Grant(RoleEditor, editor...)
	_ = t.Grant(RoleAdmin, admin...)
	t.Freeze()
	return t
}

package permission

import (
	"testing"
)

func TestEvaluatorHostedMode(t *testing.T) {
	e := NewEvaluator(DefaultTable(), false)

	if e.HasPermission("", ViewCollection) {
		t.Fatal("no session must have no permissions")
	}
	if !e.HasPermission(RoleViewer, ViewCollection) {
		t.Fatal("viewer must view collections")
	}
	if e.HasPermission(RoleViewer, ManageUsers) {
		t.Fatal("viewer must not manage users")
	}

	if !e.HasRole(RoleAdmin, RoleEditor) {
		t.Fatal("admin rank must satisfy editor requirement")
	}
	if e.HasRole(RoleViewer, RoleEditor) {
		t.Fatal("viewer rank must not satisfy editor requirement")
	}
	if e.HasRole(RoleAdmin, "ghost") {
		t.Fatal("unknown required role must never be satisfied")
	}
	if e.HasRole("", RoleViewer) {
		t.Fatal("no session must satisfy no role requirement")
	}

	if got := e.EffectiveRole(RoleEditor); got != RoleEditor {
		t.Fatalf("hosted effective role = %q, want editor", got)
	}
}

func TestEvaluatorLocalMode(t *testing.T) {
	e := NewEvaluator(DefaultTable(), true)

	if !e.LocalMode() {
		t.Fatal("local mode flag lost")
	}
	if got := e.EffectiveRole(""); got != RoleAdmin {
		t.Fatalf("local effective role = %q, want admin", got)
	}
	if !e.HasPermission("", ManageSystem) {
		t.Fatal("local mode must grant everything")
	}
	if !e.HasRole("", RoleAdmin) {
		t.Fatal("local mode must satisfy every role requirement")
	}
}

func TestPermissionNames(t *testing.T) {
	e := NewEvaluator(DefaultTable(), false)

	if names := e.PermissionNames(""); names != nil {
		t.Fatalf("no session must report no permissions, got %v", names)
	}

	viewer := e.PermissionNames(RoleViewer)
	admin := e.PermissionNames(RoleAdmin)
	if len(viewer) == 0 || len(admin) == 0 {
		t.Fatal("expected non-empty permission lists")
	}
	if len(admin) <= len(viewer) {
		t.Fatal("admin must hold strictly more permissions than viewer")
	}

	adminSet := make(map[string]bool, len(admin))
	for _, name := range admin {
		adminSet[name] = true
	}
	for _, name := range viewer {
		if !adminSet[name] {
			t.Fatalf("viewer permission %q missing from admin set", name)
		}
	}

	local := NewEvaluator(DefaultTable(), true)
	if got := local.PermissionNames(""); len(got) != len(admin) {
		t.Fatalf("local mode must report the admin set, got %d names", len(got))
	}
}

package rbac

import (
	"slices"
	"testing"
)

func TestCatalogNamesAreUnique(t *testing.T) {
	seen := make(map[string]struct{}, len(Catalog))
	for _, entry := range Catalog {
		if _, ok := seen[entry.Name]; ok {
			t.Fatalf("duplicate catalog role %s", entry.Name)
		}
		seen[entry.Name] = struct{}{}
		if !entry.Scope.Valid() {
			t.Fatalf("role %s has invalid scope %q", entry.Name, entry.Scope)
		}
	}
	if len(Catalog) != 6 {
		t.Fatalf("expected six seeded roles, got %d", len(Catalog))
	}
}

func TestNormalizeRoleName(t *testing.T) {
	cases := map[string]string{
		"Event Admin":  RoleEventAdmin,
		"Admin":        RoleEventAdmin,
		"Responder":    RoleResponder,
		"Reporter":     RoleReporter,
		"System Admin": RoleSystemAdmin,
		"SuperAdmin":   RoleSystemAdmin,
		"Org Admin":    RoleOrgAdmin,
		"Org Viewer":   RoleOrgViewer,
		"event_admin":  RoleEventAdmin,
		" Responder ":  RoleResponder,
		"Unknown Role": "Unknown Role",
	}
	for input, want := range cases {
		if got := NormalizeRoleName(input); got != want {
			t.Fatalf("NormalizeRoleName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeRoleNamesDeduplicates(t *testing.T) {
	got := NormalizeRoleNames([]string{"Event Admin", "Admin", "event_admin", "Responder"})
	want := []string{RoleEventAdmin, RoleResponder}
	if !slices.Equal(got, want) {
		t.Fatalf("NormalizeRoleNames = %v, want %v", got, want)
	}
}

func TestDisplayRoleNameRoundTrip(t *testing.T) {
	for _, entry := range Catalog {
		display := DisplayRoleName(entry.Name)
		if display == "" {
			t.Fatalf("missing display name for %s", entry.Name)
		}
		if NormalizeRoleName(display) != entry.Name {
			t.Fatalf("display name %q does not normalize back to %s", display, entry.Name)
		}
	}
}

func TestRoleScope(t *testing.T) {
	if scope, ok := RoleScope(RoleOrgAdmin); !ok || scope != ScopeOrganization {
		t.Fatalf("RoleScope(org_admin) = %v, %v", scope, ok)
	}
	if _, ok := RoleScope("nonexistent"); ok {
		t.Fatalf("expected unknown role to report !ok")
	}
}

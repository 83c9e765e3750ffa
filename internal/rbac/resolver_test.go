package rbac

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"
)

// fakeStore keeps catalog roles and assignments in memory, enforcing the
// same uniqueness rule as the user_roles constraint.
type fakeStore struct {
	roles       map[string]Role
	assignments []Assignment
	failWith    error
}

func newFakeStore() *fakeStore {
	roles := make(map[string]Role, len(Catalog))
	for _, entry := range Catalog {
		roles[entry.Name] = Role{
			ID:        "role-" + entry.Name,
			Name:      entry.Name,
			Scope:     entry.Scope,
			Level:     entry.Level,
			CreatedAt: time.Now(),
		}
	}
	return &fakeStore{roles: roles}
}

func (s *fakeStore) grant(userID, roleName string, scopeType ScopeType, scopeID string) {
	role := s.roles[roleName]
	s.assignments = append(s.assignments, Assignment{
		ID:        fmt.Sprintf("a-%d", len(s.assignments)),
		UserID:    userID,
		RoleID:    role.ID,
		RoleName:  role.Name,
		ScopeType: scopeType,
		ScopeID:   scopeID,
		GrantedAt: time.Now(),
	})
}

func (s *fakeStore) RoleByName(_ context.Context, name string) (Role, error) {
	if s.failWith != nil {
		return Role{}, s.failWith
	}
	role, ok := s.roles[name]
	if !ok {
		return Role{}, fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}
	return role, nil
}

func (s *fakeStore) Roles(_ context.Context) ([]Role, error) {
	roles := make([]Role, 0, len(s.roles))
	for _, role := range s.roles {
		roles = append(roles, role)
	}
	return roles, nil
}

func (s *fakeStore) AssignmentsAtScope(_ context.Context, userID string, scopeType ScopeType, scopeID string) ([]Assignment, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	var out []Assignment
	for _, a := range s.assignments {
		if a.UserID != userID || a.ScopeType != scopeType {
			continue
		}
		if scopeID != "" && a.ScopeID != scopeID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeStore) AssignmentsForUser(_ context.Context, userID string) ([]Assignment, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	var out []Assignment
	for _, a := range s.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) Grant(_ context.Context, a Assignment) (Assignment, error) {
	for _, existing := range s.assignments {
		if existing.UserID == a.UserID && existing.RoleID == a.RoleID &&
			existing.ScopeType == a.ScopeType && existing.ScopeID == a.ScopeID {
			return Assignment{}, ErrAlreadyGranted
		}
	}
	s.assignments = append(s.assignments, a)
	return a, nil
}

func (s *fakeStore) Revoke(_ context.Context, userID, roleID string, scopeType ScopeType, scopeID string) error {
	for i, a := range s.assignments {
		if a.UserID == userID && a.RoleID == roleID && a.ScopeType == scopeType && a.ScopeID == scopeID {
			s.assignments = append(s.assignments[:i], s.assignments[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// fakeDirectory maps event ids to owning organizations.
type fakeDirectory struct {
	owners   map[string]string
	failWith error
}

func (d *fakeDirectory) OrganizationIDForEvent(_ context.Context, eventID string) (string, error) {
	if d.failWith != nil {
		return "", d.failWith
	}
	orgID, ok := d.owners[eventID]
	if !ok {
		return "", fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	return orgID, nil
}

func newTestResolver(t *testing.T) (*Resolver, *fakeStore, *fakeDirectory) {
	t.Helper()
	store := newFakeStore()
	dir := &fakeDirectory{owners: map[string]string{
		"devopsdays-chicago-2024": "devopsdays-global",
		"event-other":             "org-other",
	}}
	resolver, err := NewResolver(store, dir)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return resolver, store, dir
}

func TestSystemAdminBypassesEverything(t *testing.T) {
	resolver, store, _ := newTestResolver(t)
	store.grant("root", RoleSystemAdmin, ScopeSystem, SystemScopeID)

	ctx := t.Context()
	ok, err := resolver.IsSystemAdmin(ctx, "root")
	if err != nil || !ok {
		t.Fatalf("IsSystemAdmin = %v, %v", ok, err)
	}

	// No direct grant on any event, arbitrary role lists, unknown events:
	// the bypass wins in every case.
	for _, roleNames := range [][]string{
		{RoleEventAdmin},
		{RoleReporter},
		{RoleResponder, RoleReporter},
	} {
		for _, eventID := range []string{"devopsdays-chicago-2024", "event-other", "no-such-event"} {
			ok, err := resolver.HasEventRole(ctx, "root", eventID, roleNames)
			if err != nil {
				t.Fatalf("HasEventRole(%s, %v): %v", eventID, roleNames, err)
			}
			if !ok {
				t.Fatalf("expected system admin to pass for event %s roles %v", eventID, roleNames)
			}
		}
	}

	ok, err = resolver.HasRole(ctx, "root", []string{RoleOrgAdmin}, ScopeOrganization)
	if err != nil || !ok {
		t.Fatalf("expected bypass on HasRole, got %v, %v", ok, err)
	}
}

func TestOrgAdminInheritsEventAdmin(t *testing.T) {
	resolver, store, _ := newTestResolver(t)
	store.grant("alice", RoleOrgAdmin, ScopeOrganization, "devopsdays-global")

	ctx := t.Context()
	ok, err := resolver.HasEventRole(ctx, "alice", "devopsdays-chicago-2024", []string{RoleEventAdmin, RoleSystemAdmin})
	if err != nil {
		t.Fatalf("HasEventRole: %v", err)
	}
	if !ok {
		t.Fatalf("expected org admin to inherit event_admin on owned event")
	}

	// Also satisfied when the list names org_admin itself.
	ok, err = resolver.HasEventRole(ctx, "alice", "devopsdays-chicago-2024", []string{RoleOrgAdmin})
	if err != nil || !ok {
		t.Fatalf("expected org_admin to match its own name, got %v, %v", ok, err)
	}
}

func TestInheritanceDoesNotCrossOrganizations(t *testing.T) {
	resolver, store, _ := newTestResolver(t)
	store.grant("alice", RoleOrgAdmin, ScopeOrganization, "devopsdays-global")

	ok, err := resolver.HasEventRole(t.Context(), "alice", "event-other", []string{RoleEventAdmin, RoleResponder, RoleReporter})
	if err != nil {
		t.Fatalf("HasEventRole: %v", err)
	}
	if ok {
		t.Fatalf("org admin of one org must not inherit roles on another org's event")
	}
}

func TestOrgViewerDoesNotInheritEventAdmin(t *testing.T) {
	resolver, store, _ := newTestResolver(t)
	store.grant("viewer", RoleOrgViewer, ScopeOrganization, "devopsdays-global")

	ctx := t.Context()
	ok, err := resolver.HasEventRole(ctx, "viewer", "devopsdays-chicago-2024", []string{RoleEventAdmin})
	if err != nil || ok {
		t.Fatalf("org_viewer must not stand in for event_admin, got %v, %v", ok, err)
	}

	// A route that explicitly allows org viewers still admits them.
	ok, err = resolver.HasEventRole(ctx, "viewer", "devopsdays-chicago-2024", []string{RoleOrgViewer, RoleResponder})
	if err != nil || !ok {
		t.Fatalf("expected org_viewer to match a list naming it, got %v, %v", ok, err)
	}
}

func TestDirectEventRole(t *testing.T) {
	resolver, store, _ := newTestResolver(t)
	store.grant("bob", RoleResponder, ScopeEvent, "event-other")

	ctx := t.Context()
	ok, err := resolver.HasEventRole(ctx, "bob", "event-other", []string{RoleResponder, RoleEventAdmin})
	if err != nil || !ok {
		t.Fatalf("expected direct responder grant to pass, got %v, %v", ok, err)
	}

	ok, err = resolver.HasEventRole(ctx, "bob", "event-other", []string{RoleEventAdmin})
	if err != nil || ok {
		t.Fatalf("responder must not pass an event_admin-only check, got %v, %v", ok, err)
	}
}

func TestRoleNameMatchingIsCaseSensitive(t *testing.T) {
	resolver, store, _ := newTestResolver(t)
	store.grant("bob", RoleResponder, ScopeEvent, "event-other")

	ok, err := resolver.HasEventRole(t.Context(), "bob", "event-other", []string{"Responder"})
	if err != nil || ok {
		t.Fatalf("display-case names must not match stored catalog names, got %v, %v", ok, err)
	}
}

func TestUnknownEventFailsClosed(t *testing.T) {
	resolver, store, _ := newTestResolver(t)
	store.grant("alice", RoleOrgAdmin, ScopeOrganization, "devopsdays-global")

	ok, err := resolver.HasEventRole(t.Context(), "alice", "deleted-event", []string{RoleEventAdmin})
	if err != nil {
		t.Fatalf("unknown event must not surface an error from the inheritance path: %v", err)
	}
	if ok {
		t.Fatalf("unknown event must resolve to denial")
	}
}

func TestDirectoryErrorPropagates(t *testing.T) {
	resolver, store, dir := newTestResolver(t)
	store.grant("alice", RoleOrgAdmin, ScopeOrganization, "devopsdays-global")
	dir.failWith = errors.New("connection refused")

	ok, err := resolver.HasEventRole(t.Context(), "alice", "devopsdays-chicago-2024", []string{RoleEventAdmin})
	if err == nil {
		t.Fatalf("expected infrastructure error to propagate")
	}
	if ok {
		t.Fatalf("errors must never resolve to allow")
	}
}

func TestEmptyInputsDeny(t *testing.T) {
	resolver, store, _ := newTestResolver(t)
	store.grant("alice", RoleOrgAdmin, ScopeOrganization, "devopsdays-global")

	ctx := t.Context()
	cases := []struct {
		userID  string
		eventID string
		names   []string
	}{
		{"", "devopsdays-chicago-2024", []string{RoleEventAdmin}},
		{"alice", "", []string{RoleEventAdmin}},
		{"alice", "devopsdays-chicago-2024", nil},
	}
	for _, tc := range cases {
		ok, err := resolver.HasEventRole(ctx, tc.userID, tc.eventID, tc.names)
		if err != nil || ok {
			t.Fatalf("HasEventRole(%q,%q,%v) = %v, %v; want deny without error", tc.userID, tc.eventID, tc.names, ok, err)
		}
	}
}

func TestRolesAtScopeIncludesInheritedRoles(t *testing.T) {
	resolver, store, _ := newTestResolver(t)
	store.grant("alice", RoleOrgAdmin, ScopeOrganization, "devopsdays-global")
	store.grant("alice", RoleResponder, ScopeEvent, "devopsdays-chicago-2024")

	names, err := resolver.RolesAtScope(t.Context(), "alice", ScopeEvent, "devopsdays-chicago-2024")
	if err != nil {
		t.Fatalf("RolesAtScope: %v", err)
	}
	for _, want := range []string{RoleResponder, RoleEventAdmin, RoleOrgAdmin} {
		if !slices.Contains(names, want) {
			t.Fatalf("expected %s in effective roles %v", want, names)
		}
	}
}

func TestGrantValidatesScopeClass(t *testing.T) {
	resolver, _, _ := newTestResolver(t)

	_, err := resolver.Grant(t.Context(), "alice", RoleEventAdmin, ScopeOrganization, "devopsdays-global", "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for scope mismatch, got %v", err)
	}
}

func TestGrantIsUniquePerTuple(t *testing.T) {
	resolver, store, _ := newTestResolver(t)

	first, err := resolver.Grant(t.Context(), "bob", RoleResponder, ScopeEvent, "event-other", "admin-1")
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if first.GrantedBy == nil || *first.GrantedBy != "admin-1" {
		t.Fatalf("expected granted-by to be recorded, got %v", first.GrantedBy)
	}

	_, err = resolver.Grant(t.Context(), "bob", RoleResponder, ScopeEvent, "event-other", "admin-2")
	if !errors.Is(err, ErrAlreadyGranted) {
		t.Fatalf("expected ErrAlreadyGranted, got %v", err)
	}
	if len(store.assignments) != 1 {
		t.Fatalf("expected a single assignment row, got %d", len(store.assignments))
	}

	// The same role at a different scope, and a different role at the same
	// scope, are both fine.
	if _, err := resolver.Grant(t.Context(), "bob", RoleResponder, ScopeEvent, "devopsdays-chicago-2024", ""); err != nil {
		t.Fatalf("same role at different scope: %v", err)
	}
	if _, err := resolver.Grant(t.Context(), "bob", RoleReporter, ScopeEvent, "event-other", ""); err != nil {
		t.Fatalf("different role at same scope: %v", err)
	}
}

func TestGrantSystemScopeUsesSentinel(t *testing.T) {
	resolver, store, _ := newTestResolver(t)

	a, err := resolver.Grant(t.Context(), "root", RoleSystemAdmin, ScopeSystem, "", "")
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if a.ScopeID != SystemScopeID {
		t.Fatalf("expected sentinel scope id, got %q", a.ScopeID)
	}

	ok, err := resolver.IsSystemAdmin(t.Context(), "root")
	if err != nil || !ok {
		t.Fatalf("expected granted user to be system admin, got %v, %v", ok, err)
	}
	_ = store
}

func TestRevokeThenRegrant(t *testing.T) {
	resolver, _, _ := newTestResolver(t)
	ctx := t.Context()

	if _, err := resolver.Grant(ctx, "bob", RoleReporter, ScopeEvent, "event-other", ""); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if err := resolver.Revoke(ctx, "bob", RoleReporter, ScopeEvent, "event-other"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := resolver.Revoke(ctx, "bob", RoleReporter, ScopeEvent, "event-other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second revoke, got %v", err)
	}
	if _, err := resolver.Grant(ctx, "bob", RoleReporter, ScopeEvent, "event-other", ""); err != nil {
		t.Fatalf("re-grant after revoke: %v", err)
	}
}

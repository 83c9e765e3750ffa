package rbac

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dipendra-mule/conducky-sub002/internal/ids"
)

// Resolver is the RBAC decision engine. All checks fail closed: missing
// users, unknown events and empty role lists resolve to a denial, never to
// an implicit allow.
type Resolver struct {
	store Store
	dir   EventDirectory
	now   func() time.Time
}

// NewResolver constructs a resolver over the assignment store and the
// event directory used for organization inheritance lookups.
func NewResolver(store Store, dir EventDirectory) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("rbac: store is required")
	}
	if dir == nil {
		return nil, errors.New("rbac: event directory is required")
	}
	return &Resolver{store: store, dir: dir, now: time.Now}, nil
}

// IsSystemAdmin reports whether the user holds system_admin at system
// scope. Every other check runs this first; system admins bypass all
// scoped checks unconditionally.
func (r *Resolver) IsSystemAdmin(ctx context.Context, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, nil
	}
	assignments, err := r.store.AssignmentsAtScope(ctx, userID, ScopeSystem, SystemScopeID)
	if err != nil {
		return false, fmt.Errorf("rbac: system admin check: %w", err)
	}
	for _, a := range assignments {
		if a.RoleName == RoleSystemAdmin {
			return true, nil
		}
	}
	return false, nil
}

// HasRole reports whether the user holds any of roleNames at the given
// scope type, regardless of the concrete scope id. Used for global checks
// on routes that carry no event in their path. Role names are matched
// case-sensitively against the catalog names.
func (r *Resolver) HasRole(ctx context.Context, userID string, roleNames []string, scopeType ScopeType) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || len(roleNames) == 0 {
		return false, nil
	}
	if !scopeType.Valid() {
		return false, fmt.Errorf("%w: scope type %q", ErrInvalidInput, scopeType)
	}

	// System admins pass regardless of whether system_admin is in the list.
	isAdmin, err := r.IsSystemAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	if isAdmin {
		return true, nil
	}

	assignments, err := r.store.AssignmentsAtScope(ctx, userID, scopeType, "")
	if err != nil {
		return false, fmt.Errorf("rbac: role check: %w", err)
	}
	for _, a := range assignments {
		if slices.Contains(roleNames, a.RoleName) {
			return true, nil
		}
	}
	return false, nil
}

// HasEventRole reports whether the user may act on the event with any of
// the given roles. Resolution order: system-admin bypass, then a direct
// event-scoped assignment, then organization inheritance via the event's
// owning organization. Inheritance is one level deep and one-directional:
// org_admin stands in for event_admin on every event under that
// organization, and an org-scoped role on the owning organization
// satisfies a list that names that role explicitly.
func (r *Resolver) HasEventRole(ctx context.Context, userID, eventID string, roleNames []string) (bool, error) {
	userID = strings.TrimSpace(userID)
	eventID = strings.TrimSpace(eventID)
	if userID == "" || eventID == "" || len(roleNames) == 0 {
		return false, nil
	}

	isAdmin, err := r.IsSystemAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	if isAdmin {
		return true, nil
	}

	direct, err := r.store.AssignmentsAtScope(ctx, userID, ScopeEvent, eventID)
	if err != nil {
		return false, fmt.Errorf("rbac: event role check: %w", err)
	}
	for _, a := range direct {
		if slices.Contains(roleNames, a.RoleName) {
			return true, nil
		}
	}

	orgID, err := r.dir.OrganizationIDForEvent(ctx, eventID)
	if err != nil {
		// Unknown event: no organization to inherit from. The middleware
		// reports "not found" separately; here it is simply a denial.
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("rbac: event ownership lookup: %w", err)
	}

	orgRoles, err := r.store.AssignmentsAtScope(ctx, userID, ScopeOrganization, orgID)
	if err != nil {
		return false, fmt.Errorf("rbac: inherited role check: %w", err)
	}
	for _, a := range orgRoles {
		if a.RoleName == RoleOrgAdmin && slices.Contains(roleNames, RoleEventAdmin) {
			return true, nil
		}
		if slices.Contains(roleNames, a.RoleName) {
			return true, nil
		}
	}
	return false, nil
}

// RolesAtScope enumerates the effective role names the user holds at one
// concrete scope. For event scopes the set reflects the same inheritance
// rules as HasEventRole: direct event roles, event_admin when the user is
// org_admin of the owning organization, and the org-scoped roles held on
// that organization. Used by profile and admin screens.
func (r *Resolver) RolesAtScope(ctx context.Context, userID string, scopeType ScopeType, scopeID string) ([]string, error) {
	userID = strings.TrimSpace(userID)
	scopeID = strings.TrimSpace(scopeID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !scopeType.Valid() {
		return nil, fmt.Errorf("%w: scope type %q", ErrInvalidInput, scopeType)
	}

	names := make([]string, 0, 4)
	seen := make(map[string]struct{}, 4)
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	direct, err := r.store.AssignmentsAtScope(ctx, userID, scopeType, scopeID)
	if err != nil {
		return nil, fmt.Errorf("rbac: enumerate roles: %w", err)
	}
	for _, a := range direct {
		add(a.RoleName)
	}

	if scopeType == ScopeEvent && scopeID != "" {
		orgID, err := r.dir.OrganizationIDForEvent(ctx, scopeID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return names, nil
			}
			return nil, fmt.Errorf("rbac: event ownership lookup: %w", err)
		}
		orgRoles, err := r.store.AssignmentsAtScope(ctx, userID, ScopeOrganization, orgID)
		if err != nil {
			return nil, fmt.Errorf("rbac: enumerate inherited roles: %w", err)
		}
		for _, a := range orgRoles {
			if a.RoleName == RoleOrgAdmin {
				add(RoleEventAdmin)
			}
			add(a.RoleName)
		}
	}
	return names, nil
}

// AllRoles returns every assignment the user holds across all scopes.
func (r *Resolver) AllRoles(ctx context.Context, userID string) ([]Assignment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	assignments, err := r.store.AssignmentsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: list assignments: %w", err)
	}
	return assignments, nil
}

// Grant assigns a catalog role to a user at a concrete scope. The role's
// scope class must match the requested scope type. Granting an existing
// tuple returns ErrAlreadyGranted; the unique constraint makes concurrent
// grants collapse to a single row.
func (r *Resolver) Grant(ctx context.Context, userID, roleName string, scopeType ScopeType, scopeID string, grantedBy string) (Assignment, error) {
	userID = strings.TrimSpace(userID)
	roleName = strings.TrimSpace(roleName)
	scopeID = strings.TrimSpace(scopeID)
	if userID == "" || roleName == "" {
		return Assignment{}, fmt.Errorf("%w: user id and role name are required", ErrInvalidInput)
	}
	if !scopeType.Valid() {
		return Assignment{}, fmt.Errorf("%w: scope type %q", ErrInvalidInput, scopeType)
	}
	if scopeType == ScopeSystem {
		scopeID = SystemScopeID
	}
	if scopeID == "" {
		return Assignment{}, fmt.Errorf("%w: scope id is required", ErrInvalidInput)
	}

	role, err := r.store.RoleByName(ctx, roleName)
	if err != nil {
		return Assignment{}, err
	}
	if role.Scope != scopeType {
		return Assignment{}, fmt.Errorf("%w: role %s is %s-scoped, cannot grant at %s scope",
			ErrInvalidInput, role.Name, role.Scope, scopeType)
	}

	assignment := Assignment{
		ID:        ids.New(),
		UserID:    userID,
		RoleID:    role.ID,
		RoleName:  role.Name,
		ScopeType: scopeType,
		ScopeID:   scopeID,
		GrantedAt: r.now().UTC(),
	}
	if grantedBy = strings.TrimSpace(grantedBy); grantedBy != "" {
		assignment.GrantedBy = &grantedBy
	}
	return r.store.Grant(ctx, assignment)
}

// Revoke removes a role assignment. Assignments are never mutated in
// place; re-granting after a revoke produces a fresh row with a fresh
// granted-at timestamp.
func (r *Resolver) Revoke(ctx context.Context, userID, roleName string, scopeType ScopeType, scopeID string) error {
	userID = strings.TrimSpace(userID)
	roleName = strings.TrimSpace(roleName)
	scopeID = strings.TrimSpace(scopeID)
	if userID == "" || roleName == "" {
		return fmt.Errorf("%w: user id and role name are required", ErrInvalidInput)
	}
	if !scopeType.Valid() {
		return fmt.Errorf("%w: scope type %q", ErrInvalidInput, scopeType)
	}
	if scopeType == ScopeSystem {
		scopeID = SystemScopeID
	}

	role, err := r.store.RoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	return r.store.Revoke(ctx, userID, role.ID, scopeType, scopeID)
}

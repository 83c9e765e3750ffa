package rbac

import "context"

// Store describes persistence operations required by the resolver.
type Store interface {
	// RoleByName returns a catalog role. ErrUnknownRole when absent.
	RoleByName(ctx context.Context, name string) (Role, error)

	// Roles returns the full catalog ordered by descending level.
	Roles(ctx context.Context) ([]Role, error)

	// AssignmentsAtScope returns a user's assignments with the given scope
	// type. When scopeID is non-empty only that concrete scope is scanned.
	AssignmentsAtScope(ctx context.Context, userID string, scopeType ScopeType, scopeID string) ([]Assignment, error)

	// AssignmentsForUser returns every assignment the user holds.
	AssignmentsForUser(ctx context.Context, userID string) ([]Assignment, error)

	// Grant inserts an assignment. ErrAlreadyGranted when the
	// (user, role, scope type, scope id) tuple already exists.
	Grant(ctx context.Context, a Assignment) (Assignment, error)

	// Revoke deletes an assignment. ErrNotFound when no row matched.
	Revoke(ctx context.Context, userID, roleID string, scopeType ScopeType, scopeID string) error
}

// EventDirectory resolves event ownership for the inheritance step. The
// httpapi package wires the events store in; the resolver only needs this
// one lookup.
type EventDirectory interface {
	// OrganizationIDForEvent returns the owning organization of an event,
	// or an error wrapping ErrNotFound when the event does not exist.
	OrganizationIDForEvent(ctx context.Context, eventID string) (string, error)
}

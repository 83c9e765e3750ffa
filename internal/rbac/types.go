// Package rbac implements the unified role-based access control model:
// a fixed role catalog, persisted role assignments, and the resolver that
// answers "does this user hold one of these roles at this scope".
//
// Scopes nest one level: system contains organizations, organizations
// contain events. Inheritance is computed at query time and is exactly one
// level deep — an org_admin assignment on an organization stands in for
// event_admin on every event that organization owns.
package rbac

import "time"

// ScopeType classifies where a role can be granted.
type ScopeType string

const (
	ScopeSystem       ScopeType = "system"
	ScopeOrganization ScopeType = "organization"
	ScopeEvent        ScopeType = "event"
)

// SystemScopeID is the sentinel scope id used for system-wide assignments.
const SystemScopeID = "SYSTEM"

// Valid reports whether the scope type is one of the three known classes.
func (s ScopeType) Valid() bool {
	switch s {
	case ScopeSystem, ScopeOrganization, ScopeEvent:
		return true
	}
	return false
}

// Role is a named capability bucket from the seeded catalog. Name is
// globally unique and Scope never changes after creation. Level orders
// roles for display only; it plays no part in authorization decisions.
type Role struct {
	ID          string
	Name        string
	Scope       ScopeType
	Level       int
	Description string
	CreatedAt   time.Time
}

// Assignment grants one role to one user at one concrete scope instance.
// The (UserID, RoleID, ScopeType, ScopeID) tuple is unique; the database
// constraint enforces it so concurrent grants collapse to one row.
type Assignment struct {
	ID        string
	UserID    string
	RoleID    string
	RoleName  string
	ScopeType ScopeType
	ScopeID   string
	GrantedBy *string
	GrantedAt time.Time
}

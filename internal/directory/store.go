package directory

import "context"

// Store describes persistence for organizations, events and users.
type Store interface {
	CreateOrganization(ctx context.Context, org *Organization) error
	OrganizationByID(ctx context.Context, id string) (*Organization, error)
	OrganizationBySlug(ctx context.Context, slug string) (*Organization, error)
	ListOrganizations(ctx context.Context) ([]*Organization, error)

	CreateEvent(ctx context.Context, event *Event) error
	EventByID(ctx context.Context, id string) (*Event, error)
	EventBySlug(ctx context.Context, slug string) (*Event, error)
	ListEventsByOrganization(ctx context.Context, orgID string) ([]*Event, error)

	// EventIDBySlug resolves a URL slug to an event id for the
	// middleware's scope extraction.
	EventIDBySlug(ctx context.Context, slug string) (string, error)

	// OrganizationIDForEvent returns the owning organization of an event.
	// Backs the resolver's inheritance lookup.
	OrganizationIDForEvent(ctx context.Context, eventID string) (string, error)

	CreateUser(ctx context.Context, user *User) error
	UserByID(ctx context.Context, id string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
}

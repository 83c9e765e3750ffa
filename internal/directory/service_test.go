package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/dipendra-mule/conducky-sub002/internal/auth"
)

type memStore struct {
	orgs   map[string]*Organization
	events map[string]*Event
	users  map[string]*User
}

func newMemStore() *memStore {
	return &memStore{
		orgs:   map[string]*Organization{},
		events: map[string]*Event{},
		users:  map[string]*User{},
	}
}

func (m *memStore) CreateOrganization(_ context.Context, org *Organization) error {
	for _, existing := range m.orgs {
		if existing.Slug == org.Slug {
			return ErrConflict
		}
	}
	m.orgs[org.ID] = org
	return nil
}

func (m *memStore) OrganizationByID(_ context.Context, id string) (*Organization, error) {
	org, ok := m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return org, nil
}

func (m *memStore) OrganizationBySlug(_ context.Context, slug string) (*Organization, error) {
	for _, org := range m.orgs {
		if org.Slug == slug {
			return org, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ListOrganizations(_ context.Context) ([]*Organization, error) {
	var out []*Organization
	for _, org := range m.orgs {
		out = append(out, org)
	}
	return out, nil
}

func (m *memStore) CreateEvent(_ context.Context, event *Event) error {
	for _, existing := range m.events {
		if existing.Slug == event.Slug {
			return ErrConflict
		}
	}
	m.events[event.ID] = event
	return nil
}

func (m *memStore) EventByID(_ context.Context, id string) (*Event, error) {
	event, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return event, nil
}

func (m *memStore) EventBySlug(_ context.Context, slug string) (*Event, error) {
	for _, event := range m.events {
		if event.Slug == slug {
			return event, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ListEventsByOrganization(_ context.Context, orgID string) ([]*Event, error) {
	var out []*Event
	for _, event := range m.events {
		if event.OrganizationID == orgID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (m *memStore) EventIDBySlug(ctx context.Context, slug string) (string, error) {
	event, err := m.EventBySlug(ctx, slug)
	if err != nil {
		return "", err
	}
	return event.ID, nil
}

func (m *memStore) OrganizationIDForEvent(ctx context.Context, eventID string) (string, error) {
	event, err := m.EventByID(ctx, eventID)
	if err != nil {
		return "", err
	}
	return event.OrganizationID, nil
}

func (m *memStore) CreateUser(_ context.Context, user *User) error {
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return ErrConflict
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memStore) UserByID(_ context.Context, id string) (*User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return user, nil
}

func (m *memStore) UserByEmail(_ context.Context, email string) (*User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, ErrNotFound
}

func TestCreateOrganizationValidatesSlug(t *testing.T) {
	svc, _ := NewService(newMemStore())

	for _, slug := range []string{"", "Has Spaces", "UPPER", "trailing-", "-leading", "sn_ake"} {
		if _, err := svc.CreateOrganization(t.Context(), "Org", slug, ""); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("slug %q: expected ErrInvalidInput, got %v", slug, err)
		}
	}

	org, err := svc.CreateOrganization(t.Context(), "DevOpsDays", "devopsdays-global", "global org")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	if org.ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestCreateEventValidatesSlug(t *testing.T) {
	store := newMemStore()
	svc, _ := NewService(store)

	org, err := svc.CreateOrganization(t.Context(), "DevOpsDays", "devopsdays-global", "")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	// The slug is validated exactly as the caller sent it; mixed case is
	// rejected, not silently lowercased.
	for _, slug := range []string{"UPPER", "Mixed-Case-2024", "has space"} {
		if _, err := svc.CreateEvent(t.Context(), org.ID, "Event", slug, ""); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("slug %q: expected ErrInvalidInput, got %v", slug, err)
		}
	}
}

func TestCreateEventRequiresExistingOrganization(t *testing.T) {
	svc, _ := NewService(newMemStore())

	if _, err := svc.CreateEvent(t.Context(), "ghost-org", "Event", "some-event", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing org, got %v", err)
	}
}

func TestCreateEventUnderOrganization(t *testing.T) {
	store := newMemStore()
	svc, _ := NewService(store)

	org, err := svc.CreateOrganization(t.Context(), "DevOpsDays", "devopsdays-global", "")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	event, err := svc.CreateEvent(t.Context(), org.ID, "DevOpsDays Chicago 2024", "devopsdays-chicago-2024", "")
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	orgID, err := store.OrganizationIDForEvent(t.Context(), event.ID)
	if err != nil || orgID != org.ID {
		t.Fatalf("ownership lookup = %q, %v; want %q", orgID, err, org.ID)
	}
}

func TestRegisterUserHashesPassword(t *testing.T) {
	svc, _ := NewService(newMemStore())

	user, err := svc.RegisterUser(t.Context(), "Alice@Example.COM", "Alice", "hunter2hunter2")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected lowercased email, got %q", user.Email)
	}
	if user.PasswordHash == "hunter2hunter2" || user.PasswordHash == "" {
		t.Fatalf("password must be stored hashed")
	}
	if err := auth.VerifyPassword(user.PasswordHash, "hunter2hunter2"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
}

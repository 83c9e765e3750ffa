package directory

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dipendra-mule/conducky-sub002/internal/auth"
	"github.com/dipendra-mule/conducky-sub002/internal/ids"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Service validates input and fills identifiers before hitting the store.
type Service struct {
	store Store
}

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("directory: store is required")
	}
	return &Service{store: store}, nil
}

func (s *Service) CreateOrganization(ctx context.Context, name, slug, description string) (*Organization, error) {
	name = strings.TrimSpace(name)
	slug = strings.TrimSpace(slug)
	if name == "" {
		return nil, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	if !slugPattern.MatchString(slug) {
		return nil, fmt.Errorf("%w: slug must be lowercase letters, digits and hyphens", ErrInvalidInput)
	}
	org := &Organization{
		ID:          ids.New(),
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(description),
	}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *Service) Organization(ctx context.Context, id string) (*Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalidInput)
	}
	return s.store.OrganizationByID(ctx, id)
}

func (s *Service) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	return s.store.ListOrganizations(ctx)
}

func (s *Service) CreateEvent(ctx context.Context, orgID, name, slug, description string) (*Event, error) {
	orgID = strings.TrimSpace(orgID)
	name = strings.TrimSpace(name)
	slug = strings.TrimSpace(slug)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalidInput)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: event name is required", ErrInvalidInput)
	}
	if !slugPattern.MatchString(slug) {
		return nil, fmt.Errorf("%w: slug must be lowercase letters, digits and hyphens", ErrInvalidInput)
	}
	if _, err := s.store.OrganizationByID(ctx, orgID); err != nil {
		return nil, err
	}
	event := &Event{
		ID:             ids.New(),
		OrganizationID: orgID,
		Name:           name,
		Slug:           slug,
		Description:    strings.TrimSpace(description),
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Service) Event(ctx context.Context, id string) (*Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrInvalidInput)
	}
	return s.store.EventByID(ctx, id)
}

func (s *Service) EventBySlug(ctx context.Context, slug string) (*Event, error) {
	slug = strings.TrimSpace(strings.ToLower(slug))
	if slug == "" {
		return nil, fmt.Errorf("%w: event slug is required", ErrInvalidInput)
	}
	return s.store.EventBySlug(ctx, slug)
}

func (s *Service) ListEvents(ctx context.Context, orgID string) ([]*Event, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalidInput)
	}
	return s.store.ListEventsByOrganization(ctx, orgID)
}

// RegisterUser creates an account with an argon2id password hash.
func (s *Service) RegisterUser(ctx context.Context, email, name, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           ids.New(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) UserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return s.store.UserByEmail(ctx, email)
}

func (s *Service) User(ctx context.Context, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.UserByID(ctx, id)
}

package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgErrUniqueViolation = "23505"

var _ Store = (*PGStore)(nil)

// PGStore implements Store over PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateOrganization(ctx context.Context, org *Organization) error {
	row := s.db.QueryRowContext(ctx, `
		insert into organizations (id, name, slug, description)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, org.ID, org.Name, org.Slug, org.Description)
	if err := row.Scan(&org.CreatedAt, &org.UpdatedAt); err != nil {
		return mapConstraint(err)
	}
	return nil
}

func (s *PGStore) OrganizationByID(ctx context.Context, id string) (*Organization, error) {
	return s.scanOrganization(s.db.QueryRowContext(ctx, `
		select id, name, slug, description, created_at, updated_at
		from organizations where id = $1
	`, id))
}

func (s *PGStore) OrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	return s.scanOrganization(s.db.QueryRowContext(ctx, `
		select id, name, slug, description, created_at, updated_at
		from organizations where slug = $1
	`, slug))
}

func (s *PGStore) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, slug, description, created_at, updated_at
		from organizations order by created_at asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		var org Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Slug, &org.Description, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, &org)
	}
	return orgs, rows.Err()
}

func (s *PGStore) CreateEvent(ctx context.Context, event *Event) error {
	row := s.db.QueryRowContext(ctx, `
		insert into events (id, organization_id, name, slug, description)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, event.ID, event.OrganizationID, event.Name, event.Slug, event.Description)
	if err := row.Scan(&event.CreatedAt, &event.UpdatedAt); err != nil {
		return mapConstraint(err)
	}
	return nil
}

func (s *PGStore) EventByID(ctx context.Context, id string) (*Event, error) {
	return s.scanEvent(s.db.QueryRowContext(ctx, `
		select id, organization_id, name, slug, description, created_at, updated_at
		from events where id = $1
	`, id))
}

func (s *PGStore) EventBySlug(ctx context.Context, slug string) (*Event, error) {
	return s.scanEvent(s.db.QueryRowContext(ctx, `
		select id, organization_id, name, slug, description, created_at, updated_at
		from events where slug = $1
	`, slug))
}

func (s *PGStore) ListEventsByOrganization(ctx context.Context, orgID string) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, name, slug, description, created_at, updated_at
		from events where organization_id = $1 order by created_at asc
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(&event.ID, &event.OrganizationID, &event.Name, &event.Slug,
			&event.Description, &event.CreatedAt, &event.UpdatedAt); err != nil {
			return nil, err
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

func (s *PGStore) EventIDBySlug(ctx context.Context, slug string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `select id from events where slug = $1`, slug).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *PGStore) OrganizationIDForEvent(ctx context.Context, eventID string) (string, error) {
	var orgID string
	err := s.db.QueryRowContext(ctx, `select organization_id from events where id = $1`, eventID).Scan(&orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return orgID, nil
}

func (s *PGStore) CreateUser(ctx context.Context, user *User) error {
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, email, name, password_hash)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, user.ID, user.Email, user.Name, user.PasswordHash)
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		return mapConstraint(err)
	}
	return nil
}

func (s *PGStore) UserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		select id, email, name, password_hash, created_at, updated_at
		from users where id = $1
	`, id))
}

func (s *PGStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		select id, email, name, password_hash, created_at, updated_at
		from users where email = $1
	`, email))
}

func (s *PGStore) scanOrganization(row *sql.Row) (*Organization, error) {
	var org Organization
	if err := row.Scan(&org.ID, &org.Name, &org.Slug, &org.Description, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (s *PGStore) scanEvent(row *sql.Row) (*Event, error) {
	var event Event
	if err := row.Scan(&event.ID, &event.OrganizationID, &event.Name, &event.Slug,
		&event.Description, &event.CreatedAt, &event.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (s *PGStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
		return ErrConflict
	}
	return err
}

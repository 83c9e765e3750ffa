package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store over PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) RoleByName(ctx context.Context, name string) (Role, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, scope_type, level, description, created_at
		from roles where name = $1
	`, name)
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Scope, &role.Level, &role.Description, &role.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: %s", ErrUnknownRole, name)
		}
		return Role{}, err
	}
	return role, nil
}

func (s *PGStore) Roles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, scope_type, level, description, created_at
		from roles order by level desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Scope, &role.Level, &role.Description, &role.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *PGStore) AssignmentsAtScope(ctx context.Context, userID string, scopeType ScopeType, scopeID string) ([]Assignment, error) {
	query := `
		select ur.id, ur.user_id, ur.role_id, r.name, ur.scope_type, ur.scope_id, ur.granted_by, ur.granted_at
		from user_roles ur
		join roles r on r.id = ur.role_id
		where ur.user_id = $1 and ur.scope_type = $2`
	args := []any{userID, string(scopeType)}
	if scopeID != "" {
		query += ` and ur.scope_id = $3`
		args = append(args, scopeID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func (s *PGStore) AssignmentsForUser(ctx context.Context, userID string) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select ur.id, ur.user_id, ur.role_id, r.name, ur.scope_type, ur.scope_id, ur.granted_by, ur.granted_at
		from user_roles ur
		join roles r on r.id = ur.role_id
		where ur.user_id = $1
		order by ur.granted_at asc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func (s *PGStore) Grant(ctx context.Context, a Assignment) (Assignment, error) {
	_, err := s.db.ExecContext(ctx, `
		insert into user_roles (id, user_id, role_id, scope_type, scope_id, granted_by, granted_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.UserID, a.RoleID, string(a.ScopeType), a.ScopeID, a.GrantedBy, a.GrantedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return Assignment{}, ErrAlreadyGranted
			case pgErrForeignKeyViolation:
				return Assignment{}, ErrNotFound
			}
		}
		return Assignment{}, err
	}
	return a, nil
}

func (s *PGStore) Revoke(ctx context.Context, userID, roleID string, scopeType ScopeType, scopeID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from user_roles
		where user_id = $1 and role_id = $2 and scope_type = $3 and scope_id = $4
	`, userID, roleID, string(scopeType), scopeID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAssignments(rows *sql.Rows) ([]Assignment, error) {
	var assignments []Assignment
	for rows.Next() {
		var (
			a         Assignment
			grantedBy sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.RoleID, &a.RoleName, &a.ScopeType, &a.ScopeID, &grantedBy, &a.GrantedAt); err != nil {
			return nil, err
		}
		if grantedBy.Valid {
			a.GrantedBy = &grantedBy.String
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

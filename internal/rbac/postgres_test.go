package rbac

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPGStoreGrantMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPGStore(db)
	assignment := Assignment{
		ID:        "a1",
		UserID:    "u1",
		RoleID:    "r1",
		RoleName:  RoleResponder,
		ScopeType: ScopeEvent,
		ScopeID:   "e1",
		GrantedAt: time.Now().UTC(),
	}

	mock.ExpectExec("insert into user_roles").
		WithArgs("a1", "u1", "r1", "event", "e1", nil, sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	if _, err := store.Grant(t.Context(), assignment); !errors.Is(err, ErrAlreadyGranted) {
		t.Fatalf("expected ErrAlreadyGranted, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreGrantMapsForeignKeyViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPGStore(db)
	mock.ExpectExec("insert into user_roles").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	_, err = store.Grant(t.Context(), Assignment{ID: "a1", UserID: "ghost", RoleID: "r1", ScopeType: ScopeEvent, ScopeID: "e1"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreAssignmentsAtScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPGStore(db)
	grantedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "user_id", "role_id", "name", "scope_type", "scope_id", "granted_by", "granted_at"}).
		AddRow("a1", "u1", "r1", RoleEventAdmin, "event", "e1", "admin-1", grantedAt).
		AddRow("a2", "u1", "r2", RoleResponder, "event", "e1", nil, grantedAt)

	mock.ExpectQuery("select ur.id, ur.user_id, ur.role_id, r.name").
		WithArgs("u1", "event", "e1").
		WillReturnRows(rows)

	assignments, err := store.AssignmentsAtScope(t.Context(), "u1", ScopeEvent, "e1")
	if err != nil {
		t.Fatalf("AssignmentsAtScope: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(assignments))
	}
	if assignments[0].GrantedBy == nil || *assignments[0].GrantedBy != "admin-1" {
		t.Fatalf("expected granted_by to scan, got %v", assignments[0].GrantedBy)
	}
	if assignments[1].GrantedBy != nil {
		t.Fatalf("expected nil granted_by for second row")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreRoleByName(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPGStore(db)
	createdAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "name", "scope_type", "level", "description", "created_at"}).
		AddRow("r1", RoleResponder, "event", 20, "Responds to incidents", createdAt)

	mock.ExpectQuery("select id, name, scope_type, level, description, created_at").
		WithArgs(RoleResponder).
		WillReturnRows(rows)

	role, err := store.RoleByName(t.Context(), RoleResponder)
	if err != nil {
		t.Fatalf("RoleByName: %v", err)
	}
	if role.Scope != ScopeEvent || role.Level != 20 {
		t.Fatalf("unexpected role: %+v", role)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreRoleByNameUnknown(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPGStore(db)
	mock.ExpectQuery("select id, name, scope_type, level, description, created_at").
		WithArgs("nonexistent").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "scope_type", "level", "description", "created_at"}))

	if _, err := store.RoleByName(t.Context(), "nonexistent"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestPGStoreRevokeNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPGStore(db)
	mock.ExpectExec("delete from user_roles").
		WithArgs("u1", "r1", "event", "e1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Revoke(t.Context(), "u1", "r1", ScopeEvent, "e1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

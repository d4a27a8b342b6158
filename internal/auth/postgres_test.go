package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var principalRows = []string{
	"id", "email", "password_hash", "role",
	"company_id", "department_id", "status", "created_at", "updated_at",
}

func TestFindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewStore(db)

	now := time.Now().UTC()
	mock.ExpectQuery("select .* from principals where email=").
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(principalRows).
			AddRow("p-1", "a@x.com", "$argon2id$...", "department_user", "c-1", "d-5", "active", now, now))

	p, err := store.FindByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if p.ID != "p-1" || p.Role != RoleDepartmentUser || p.CompanyID != "c-1" || p.DepartmentID != "d-5" {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindPrincipalNullScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewStore(db)

	now := time.Now().UTC()
	mock.ExpectQuery("select .* from principals where id=").
		WithArgs("p-9").
		WillReturnRows(sqlmock.NewRows(principalRows).
			AddRow("p-9", "root@x.com", "$argon2id$...", "platform_admin", nil, nil, "active", now, now))

	p, err := store.FindPrincipal(context.Background(), "p-9")
	if err != nil {
		t.Fatalf("FindPrincipal: %v", err)
	}
	if p.Role != RolePlatformAdmin || p.CompanyID != "" || p.DepartmentID != "" {
		t.Fatalf("null tenant scope must map to empty strings: %+v", p)
	}
}

func TestFindByEmailNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery("select .* from principals where email=").
		WithArgs("ghost@x.com").
		WillReturnRows(sqlmock.NewRows(principalRows))

	if _, err := store.FindByEmail(context.Background(), "ghost@x.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreatePrincipalTxCrossTenantDepartment(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("select company_id from departments where id=").
		WithArgs("d-5").
		WillReturnRows(sqlmock.NewRows([]string{"company_id"}).AddRow("c-2"))
	mock.ExpectRollback()

	tx, err := store.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	p := &Principal{
		ID: "p-1", Email: "a@x.com", PasswordHash: "h",
		Role: RoleDepartmentUser, CompanyID: "c-1", DepartmentID: "d-5",
		Status: StatusActive,
	}
	err = store.CreatePrincipalTx(context.Background(), tx, p)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for cross-tenant department, got %v", err)
	}
}

func TestCreatePrincipalTxScopeShape(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewStore(db)
	mock.ExpectBegin()

	tx, err := store.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	cases := []*Principal{
		{ID: "p-1", Email: "a@x.com", PasswordHash: "h", Role: RolePlatformAdmin, CompanyID: "c-1", Status: StatusActive},
		{ID: "p-2", Email: "b@x.com", PasswordHash: "h", Role: RoleCompanyUser, Status: StatusActive},
		{ID: "p-3", Email: "c@x.com", PasswordHash: "h", Role: RoleCompanyUser, CompanyID: "c-1", DepartmentID: "d-1", Status: StatusActive},
		{ID: "p-4", Email: "d@x.com", PasswordHash: "h", Role: RoleDepartmentUser, CompanyID: "c-1", Status: StatusActive},
		{ID: "p-5", Email: "e@x.com", PasswordHash: "h", Role: Role("owner"), Status: StatusActive},
	}
	for _, p := range cases {
		if err := store.CreatePrincipalTx(context.Background(), tx, p); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("principal %s: expected ErrInvalidInput, got %v", p.ID, err)
		}
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("update principals set status=").
		WithArgs("p-ghost", "inactive", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := store.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	err = store.UpdatePrincipalStatusTx(context.Background(), tx, "p-ghost", StatusInactive, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

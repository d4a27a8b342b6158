package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store persists principals, companies and departments in PostgreSQL.
// Serialization of concurrent access is delegated to the database's own
// transactional guarantees; the subsystem holds no additional locks.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL with pool defaults tuned for this subsystem.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle (tests use this with sqlmock).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the shared handle so the audit recorder and readiness probe can
// reuse one pool.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Begin opens the transaction shared by a business mutation and its audit
// entry.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr(err)
	}
	return tx, nil
}

const principalColumns = `id, email, password_hash, role, company_id, department_id, status, created_at, updated_at`

func scanPrincipal(row *sql.Row) (*Principal, error) {
	var (
		p            Principal
		role         string
		companyID    sql.NullString
		departmentID sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &role, &companyID, &departmentID,
		&p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, storeErr(err)
	}
	p.Role = Role(role)
	p.CompanyID = companyID.String
	p.DepartmentID = departmentID.String
	return &p, nil
}

// FindPrincipal loads a principal by id.
func (s *Store) FindPrincipal(ctx context.Context, id string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from principals where id=$1`, id)
	return scanPrincipal(row)
}

// FindByEmail loads a principal by exact (already normalized) email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from principals where email=$1`, email)
	return scanPrincipal(row)
}

// FindPrincipalForUpdateTx loads and row-locks a principal inside tx so the
// before-snapshot cannot race with a concurrent update.
func (s *Store) FindPrincipalForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*Principal, error) {
	row := tx.QueryRowContext(ctx,
		`select `+principalColumns+` from principals where id=$1 for update`, id)
	return scanPrincipal(row)
}

// CreatePrincipalTx inserts a principal inside tx after enforcing the scope
// shape: company users and department users belong to a company, department
// users belong to a department of that same company, platform admins carry
// neither.
func (s *Store) CreatePrincipalTx(ctx context.Context, tx *sql.Tx, p *Principal) error {
	if err := validateScopeShape(p); err != nil {
		return err
	}
	if p.DepartmentID != "" {
		var deptCompany string
		err := tx.QueryRowContext(ctx,
			`select company_id from departments where id=$1`, p.DepartmentID).Scan(&deptCompany)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: department %s", ErrNotFound, p.DepartmentID)
		}
		if err != nil {
			return storeErr(err)
		}
		if deptCompany != p.CompanyID {
			return fmt.Errorf("%w: department %s belongs to another company", ErrInvalidInput, p.DepartmentID)
		}
	}

	_, err := tx.ExecContext(ctx,
		`insert into principals(id, email, password_hash, role, company_id, department_id, status, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.Email, p.PasswordHash, string(p.Role),
		nullable(p.CompanyID), nullable(p.DepartmentID), p.Status, p.CreatedAt, p.UpdatedAt,
	)
	return storeErr(err)
}

// UpdatePrincipalStatusTx flips a principal's status inside tx.
func (s *Store) UpdatePrincipalStatusTx(ctx context.Context, tx *sql.Tx, id, status string, updatedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`update principals set status=$2, updated_at=$3 where id=$1`, id, status, updatedAt)
	if err != nil {
		return storeErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePasswordTx replaces the stored password hash inside tx.
func (s *Store) UpdatePasswordTx(ctx context.Context, tx *sql.Tx, id, passwordHash string, updatedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`update principals set password_hash=$2, updated_at=$3 where id=$1`, id, passwordHash, updatedAt)
	if err != nil {
		return storeErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindDepartment loads a department by id.
func (s *Store) FindDepartment(ctx context.Context, id string) (*Department, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, company_id, name, created_at, updated_at from departments where id=$1`, id)
	var d Department
	if err := row.Scan(&d.ID, &d.CompanyID, &d.Name, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, storeErr(err)
	}
	return &d, nil
}

// FindCompany loads a company by id.
func (s *Store) FindCompany(ctx context.Context, id string) (*Company, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, created_at, updated_at from companies where id=$1`, id)
	var c Company
	if err := row.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, storeErr(err)
	}
	return &c, nil
}

func validateScopeShape(p *Principal) error {
	switch p.Role {
	case RolePlatformAdmin:
		if p.CompanyID != "" || p.DepartmentID != "" {
			return fmt.Errorf("%w: platform admins carry no tenant scope", ErrInvalidInput)
		}
	case RoleCompanyUser:
		if p.CompanyID == "" {
			return fmt.Errorf("%w: company users require company_id", ErrInvalidInput)
		}
		if p.DepartmentID != "" {
			return fmt.Errorf("%w: company users carry no department_id", ErrInvalidInput)
		}
	case RoleDepartmentUser:
		if p.CompanyID == "" || p.DepartmentID == "" {
			return fmt.Errorf("%w: department users require company_id and department_id", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, p.Role)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// storeErr maps driver errors onto the package taxonomy. Anything the caller
// cannot act on (connection loss, deadline hit) becomes ErrStoreUnavailable
// so the guard can surface a service-unavailable condition instead of
// hanging or leaking driver detail.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

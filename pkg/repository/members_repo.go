package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/relayhq/crmcore/pkg/domain"
)

// MembersRepository handles member data persistence.
type MembersRepository struct {
	db *sql.DB
}

// NewMembersRepository creates a new members repository.
func NewMembersRepository(db *sql.DB) *MembersRepository {
	return &MembersRepository{db: db}
}

const memberColumns = `id, tenant_id, email, name, phone, manager_id, role, created_at, updated_at, deleted_at`

func scanMember(row interface{ Scan(...any) error }) (*domain.Member, error) {
	var member domain.Member
	err := row.Scan(
		&member.ID,
		&member.TenantID,
		&member.Email,
		&member.Name,
		&member.Phone,
		&member.ManagerID,
		&member.Role,
		&member.CreatedAt,
		&member.UpdatedAt,
		&member.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// Create creates a new member.
func (r *MembersRepository) Create(ctx context.Context, member *domain.Member) error {
	return r.CreateTx(ctx, r.db, member)
}

// CreateTx creates a new member within a transaction.
func (r *MembersRepository) CreateTx(ctx context.Context, q Querier, member *domain.Member) error {
	query := `
		INSERT INTO members (id, tenant_id, email, name, phone, manager_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.ExecContext(ctx, query,
		member.ID,
		member.TenantID,
		member.Email,
		member.Name,
		member.Phone,
		member.ManagerID,
		member.Role,
		member.CreatedAt,
		member.UpdatedAt,
	)
	return err
}

// GetByID retrieves a member by ID.
func (r *MembersRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE id = $1 AND deleted_at IS NULL
	`
	return scanMember(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a member of a tenant by email.
func (r *MembersRepository) GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*domain.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE tenant_id = $1 AND email = $2 AND deleted_at IS NULL
	`
	return scanMember(r.db.QueryRowContext(ctx, query, tenantID, email))
}

// ListByTenant retrieves all members of a tenant.
func (r *MembersRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

// UpdateRole updates a member's role.
func (r *MembersRepository) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	query := `
		UPDATE members
		SET role = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, role, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrMemberNotFound
	}

	return nil
}

// UpdateManager updates a member's manager reference. A nil managerID makes
// the member a root of the tenant's reporting forest.
func (r *MembersRepository) UpdateManager(ctx context.Context, id uuid.UUID, managerID *uuid.UUID) error {
	return r.UpdateManagerTx(ctx, r.db, id, managerID)
}

// UpdateManagerTx updates a member's manager reference within a transaction.
func (r *MembersRepository) UpdateManagerTx(ctx context.Context, q Querier, id uuid.UUID, managerID *uuid.UUID) error {
	query := `
		UPDATE members
		SET manager_id = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`
	result, err := q.ExecContext(ctx, query, managerID, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrMemberNotFound
	}

	return nil
}

// ReparentReportsTx moves every direct report of a member to a new manager
// within a transaction. Used by the removal flow.
func (r *MembersRepository) ReparentReportsTx(ctx context.Context, q Querier, managerID uuid.UUID, newManagerID *uuid.UUID) error {
	query := `
		UPDATE members
		SET manager_id = $1, updated_at = NOW()
		WHERE manager_id = $2 AND deleted_at IS NULL
	`
	_, err := q.ExecContext(ctx, query, newManagerID, managerID)
	return err
}

// SoftDeleteTx soft deletes a member within a transaction.
func (r *MembersRepository) SoftDeleteTx(ctx context.Context, q Querier, id uuid.UUID) error {
	query := `
		UPDATE members
		SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrMemberNotFound
	}

	return nil
}

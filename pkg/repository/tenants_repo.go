package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/relayhq/crmcore/pkg/domain"
)

// TenantsRepository handles tenant data persistence. It is also the
// directory consulted by the tenant host resolver.
type TenantsRepository struct {
	db *sql.DB
}

// NewTenantsRepository creates a new tenants repository.
func NewTenantsRepository(db *sql.DB) *TenantsRepository {
	return &TenantsRepository{db: db}
}

const tenantColumns = `id, name, slug, custom_domain, domain_status, active, logo_url, brand_color, created_at, updated_at, deleted_at`

func scanTenant(row interface{ Scan(...any) error }) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := row.Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Slug,
		&tenant.CustomDomain,
		&tenant.DomainStatus,
		&tenant.Active,
		&tenant.LogoURL,
		&tenant.BrandColor,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
		&tenant.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

// Create creates a new tenant.
func (r *TenantsRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	return r.CreateTx(ctx, r.db, tenant)
}

// CreateTx creates a new tenant within a transaction.
func (r *TenantsRepository) CreateTx(ctx context.Context, q Querier, tenant *domain.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, slug, custom_domain, domain_status, active, logo_url, brand_color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := q.ExecContext(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Slug,
		tenant.CustomDomain,
		tenant.DomainStatus,
		tenant.Active,
		tenant.LogoURL,
		tenant.BrandColor,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	return err
}

// GetByID retrieves a tenant by ID.
func (r *TenantsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE id = $1 AND deleted_at IS NULL
	`
	return scanTenant(r.db.QueryRowContext(ctx, query, id))
}

// FindBySlug retrieves a tenant by its routing slug.
func (r *TenantsRepository) FindBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE slug = $1 AND deleted_at IS NULL
	`
	return scanTenant(r.db.QueryRowContext(ctx, query, slug))
}

// FindByCustomDomain retrieves a tenant whose verified custom domain equals
// the given host or its www-prefixed form.
func (r *TenantsRepository) FindByCustomDomain(ctx context.Context, host string) (*domain.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE custom_domain IN ($1, $2)
			AND domain_status = $3
			AND deleted_at IS NULL
	`
	return scanTenant(r.db.QueryRowContext(ctx, query, host, "www."+host, domain.DomainStatusActive))
}

// SetActive flips the tenant's active flag. Deactivation revokes access for
// every subsequent resolution; the row is kept.
func (r *TenantsRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `
		UPDATE tenants
		SET active = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, active, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrTenantNotFound
	}

	return nil
}

// SetDomainStatus updates the verification status of a tenant's custom domain.
func (r *TenantsRepository) SetDomainStatus(ctx context.Context, id uuid.UUID, status domain.DomainStatus) error {
	query := `
		UPDATE tenants
		SET domain_status = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrTenantNotFound
	}

	return nil
}

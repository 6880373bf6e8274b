package org

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/relayhq/crmcore/pkg/domain"
	"github.com/relayhq/crmcore/pkg/repository"
)

// SQLStore adapts the repository layer to the engine's Store interface.
type SQLStore struct {
	db      *sql.DB
	members *repository.MembersRepository
	creds   *repository.CredentialsRepository
}

// NewSQLStore creates a SQL-backed member store.
func NewSQLStore(db *sql.DB, members *repository.MembersRepository, creds *repository.CredentialsRepository) *SQLStore {
	return &SQLStore{db: db, members: members, creds: creds}
}

// ListByTenant loads every member of a tenant.
func (s *SQLStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Member, error) {
	return s.members.ListByTenant(ctx, tenantID)
}

// GetByID loads a single member.
func (s *SQLStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	return s.members.GetByID(ctx, id)
}

// UpdateRole updates a member's role.
func (s *SQLStore) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	return s.members.UpdateRole(ctx, id, role)
}

// UpdateManager updates a member's manager reference.
func (s *SQLStore) UpdateManager(ctx context.Context, id uuid.UUID, managerID *uuid.UUID) error {
	return s.members.UpdateManager(ctx, id, managerID)
}

// Remove deletes a member's credentials and profile and reparents their
// direct reports, all in one transaction.
func (s *SQLStore) Remove(ctx context.Context, id uuid.UUID, reparentTo *uuid.UUID) error {
	return repository.Tx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.members.ReparentReportsTx(ctx, tx, id, reparentTo); err != nil {
			return err
		}
		if err := s.creds.DeleteTx(ctx, tx, id); err != nil {
			return err
		}
		return s.members.SoftDeleteTx(ctx, tx, id)
	})
}

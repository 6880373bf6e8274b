package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/relayhq/crmcore/pkg/domain"
)

// CredentialsRepository handles member password credentials.
type CredentialsRepository struct {
	db *sql.DB
}

// NewCredentialsRepository creates a new credentials repository.
func NewCredentialsRepository(db *sql.DB) *CredentialsRepository {
	return &CredentialsRepository{db: db}
}

// CreateTx creates credentials for a member within a transaction.
func (r *CredentialsRepository) CreateTx(ctx context.Context, q Querier, cred *domain.MemberCredential) error {
	query := `
		INSERT INTO member_credentials (member_id, password_hash, password_updated_at)
		VALUES ($1, $2, $3)
	`
	_, err := q.ExecContext(ctx, query,
		cred.MemberID,
		cred.PasswordHash,
		cred.PasswordUpdatedAt,
	)
	return err
}

// GetByMemberID retrieves credentials for a member.
func (r *CredentialsRepository) GetByMemberID(ctx context.Context, memberID uuid.UUID) (*domain.MemberCredential, error) {
	query := `
		SELECT member_id, password_hash, password_updated_at
		FROM member_credentials
		WHERE member_id = $1
	`

	var cred domain.MemberCredential
	err := r.db.QueryRowContext(ctx, query, memberID).Scan(
		&cred.MemberID,
		&cred.PasswordHash,
		&cred.PasswordUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}

	return &cred, nil
}

// DeleteTx deletes a member's credentials within a transaction. Part of the
// privileged removal path; the profile row is soft deleted separately.
func (r *CredentialsRepository) DeleteTx(ctx context.Context, q Querier, memberID uuid.UUID) error {
	query := `
		DELETE FROM member_credentials
		WHERE member_id = $1
	`
	_, err := q.ExecContext(ctx, query, memberID)
	return err
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Member represents a principal inside a tenant. Every member belongs to
// exactly one tenant, holds exactly one role, and reports to at most one
// manager. A nil ManagerID marks a root of the tenant's reporting forest.
type Member struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Email     string
	Name      string
	Phone     *string
	ManagerID *uuid.UUID
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsRoot returns true if the member has no manager.
func (m *Member) IsRoot() bool {
	return m.ManagerID == nil
}

// MemberCredential stores password credentials separately from the profile.
type MemberCredential struct {
	MemberID          uuid.UUID
	PasswordHash      string
	PasswordUpdatedAt time.Time
}

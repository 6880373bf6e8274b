package domain

import (
	"time"

	"github.com/google/uuid"
)

// DomainStatus represents the verification state of a tenant's custom domain.
type DomainStatus string

const (
	DomainStatusPending DomainStatus = "pending"
	DomainStatusActive  DomainStatus = "active"
	DomainStatusFailed  DomainStatus = "failed"
)

// Tenant represents a company workspace reachable by slug or custom domain.
type Tenant struct {
	ID           uuid.UUID
	Name         string
	Slug         string
	CustomDomain *string
	DomainStatus DomainStatus
	Active       bool
	LogoURL      *string
	BrandColor   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// HasVerifiedDomain returns true if the tenant has a verified custom domain.
func (t *Tenant) HasVerifiedDomain() bool {
	return t.CustomDomain != nil && *t.CustomDomain != "" && t.DomainStatus == DomainStatusActive
}

// IsActive returns true if the tenant can serve traffic.
func (t *Tenant) IsActive() bool {
	return t.Active && t.DeletedAt == nil
}

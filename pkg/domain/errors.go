package domain

import "errors"

// Tenant resolution errors
var (
	ErrTenantNotFound       = errors.New("workspace not found")
	ErrTenantInactive       = errors.New("workspace inactive")
	ErrDirectoryUnavailable = errors.New("tenant directory unavailable")
	ErrStoreUnavailable     = errors.New("member store unavailable")
)

// Member errors
var (
	ErrMemberNotFound  = errors.New("member not found")
	ErrMemberExists    = errors.New("member already exists")
	ErrManagerNotFound = errors.New("manager not found")
)

// Authorization errors
var (
	ErrUnauthorized       = errors.New("insufficient role level")
	ErrCrossTenant        = errors.New("operation crosses tenant boundary")
	ErrUnknownRole        = errors.New("unknown role")
	ErrCyclicManagerChain = errors.New("assignment would create a reporting cycle")
	ErrMalformedHierarchy = errors.New("malformed reporting hierarchy")
)

// Authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

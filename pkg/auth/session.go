package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/relayhq/crmcore/pkg/domain"
	"github.com/relayhq/crmcore/pkg/repository"
)

// DefaultAccessTokenTTL is used when no TTL is configured.
const DefaultAccessTokenTTL = 15 * time.Minute

// SessionConfig holds session configuration.
type SessionConfig struct {
	AccessTokenTTL time.Duration
	JWTSecret      []byte
	Issuer         string
}

// AccessTokenClaims represents the claims in an access token. The tenant id
// baked into claims at login is what scopes every later query; callers never
// supply their own.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	TenantID string      `json:"tenant_id"`
	Role     domain.Role `json:"role"`
	Email    string      `json:"email,omitempty"`
	Name     string      `json:"name,omitempty"`
}

// SessionService authenticates members and mints access tokens.
type SessionService struct {
	config  SessionConfig
	members *repository.MembersRepository
	creds   *repository.CredentialsRepository
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig, members *repository.MembersRepository, creds *repository.CredentialsRepository) *SessionService {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	return &SessionService{config: config, members: members, creds: creds}
}

// AccessTokenTTL returns the access token TTL.
func (s *SessionService) AccessTokenTTL() time.Duration {
	return s.config.AccessTokenTTL
}

// Authenticate verifies a member's password within a tenant and returns the
// member on success. The tenant comes from host resolution, never from the
// login payload.
func (s *SessionService) Authenticate(ctx context.Context, tenantID uuid.UUID, email, password string) (*domain.Member, error) {
	member, err := s.members.GetByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, domain.ErrMemberNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	cred, err := s.creds.GetByMemberID(ctx, member.ID)
	if err != nil {
		if errors.Is(err, domain.ErrMemberNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !VerifyPassword(password, cred.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	return member, nil
}

// IssueAccessToken mints a signed access token for a member.
func (s *SessionService) IssueAccessToken(member *domain.Member) (string, error) {
	now := time.Now()
	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   member.ID.String(),
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTokenTTL)),
		},
		TenantID: member.TenantID.String(),
		Role:     member.Role,
		Email:    member.Email,
		Name:     member.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.config.JWTSecret)
}

// ValidateAccessToken validates an access token and returns the claims.
func (s *SessionService) ValidateAccessToken(tokenString string) (*AccessTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.config.JWTSecret, nil
	})
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessTokenClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/relayhq/crmcore/internal/httputil"
	"github.com/relayhq/crmcore/pkg/auth"
	"github.com/relayhq/crmcore/pkg/domain"
)

type contextKey string

const (
	// PrincipalKey is the context key for the authenticated member.
	PrincipalKey contextKey = "principal"
	// ClaimsKey is the context key for the token claims.
	ClaimsKey contextKey = "claims"
)

// MemberLoader loads the authenticated principal's member record.
type MemberLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error)
}

// Auth creates middleware that validates access tokens and loads the
// principal. The principal must belong to the workspace the host resolved
// to; a token minted for another tenant is rejected even if it is valid.
func Auth(sessions *auth.SessionService, members MemberLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenString string

			// Try Authorization header first (API clients)
			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
					tokenString = parts[1]
				}
			}

			// Fall back to cookie (web clients)
			if tokenString == "" {
				if token, ok := httputil.GetAccessTokenFromCookie(r); ok {
					tokenString = token
				}
			}

			if tokenString == "" {
				httputil.Error(w, http.StatusUnauthorized, "missing authorization")
				return
			}

			claims, err := sessions.ValidateAccessToken(tokenString)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			memberID, err := uuid.Parse(claims.Subject)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid token subject")
				return
			}
			tokenTenantID, err := uuid.Parse(claims.TenantID)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid tenant_id in token")
				return
			}

			// Re-load the principal so role and manager changes made after
			// token issuance take effect immediately.
			member, err := members.GetByID(r.Context(), memberID)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "unknown principal")
				return
			}
			if member.TenantID != tokenTenantID {
				httputil.Error(w, http.StatusUnauthorized, "invalid token subject")
				return
			}

			// Tenant isolation: the principal must belong to the resolved
			// workspace.
			if workspace, ok := GetWorkspace(r.Context()); ok && workspace.ID != member.TenantID {
				httputil.Error(w, http.StatusForbidden, "workspace mismatch")
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, member)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal extracts the authenticated member from the request context.
func GetPrincipal(ctx context.Context) (*domain.Member, bool) {
	member, ok := ctx.Value(PrincipalKey).(*domain.Member)
	return member, ok
}

// GetClaims extracts the token claims from the request context.
func GetClaims(ctx context.Context) (*auth.AccessTokenClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.AccessTokenClaims)
	return claims, ok
}

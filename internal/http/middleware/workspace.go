package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/relayhq/crmcore/internal/httputil"
	"github.com/relayhq/crmcore/pkg/domain"
	"github.com/relayhq/crmcore/pkg/tenanthost"
)

const (
	// ResolutionKey is the context key for the tenant resolution.
	ResolutionKey contextKey = "tenant_resolution"
)

// ResolveWorkspace creates middleware that resolves the request host to a
// tenant and stores the resolution in the request context. Terminal
// resolution failures map to typed responses so the presentation layer can
// tell "no workspace" from "service degraded"; main-domain and unresolved
// custom-domain requests pass through without a tenant.
func ResolveWorkspace(resolver *tenanthost.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := resolver.Resolve(r.Context(), r.Host)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrTenantNotFound):
					httputil.Error(w, http.StatusNotFound, "workspace not found")
				case errors.Is(err, domain.ErrTenantInactive):
					httputil.Error(w, http.StatusForbidden, "workspace inactive")
				default:
					// Directory unavailable: retryable.
					w.Header().Set("Retry-After", "5")
					httputil.Error(w, http.StatusServiceUnavailable, "service temporarily unavailable")
				}
				return
			}

			ctx := context.WithValue(r.Context(), ResolutionKey, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireWorkspace creates middleware that rejects requests not scoped to a
// resolved tenant. Mount after ResolveWorkspace on tenant-only routes.
func RequireWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := GetResolution(r.Context())
		if !ok || res.Tenant == nil {
			httputil.Error(w, http.StatusNotFound, "workspace not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetResolution extracts the tenant resolution from the request context.
func GetResolution(ctx context.Context) (tenanthost.Resolution, bool) {
	res, ok := ctx.Value(ResolutionKey).(tenanthost.Resolution)
	return res, ok
}

// GetWorkspace extracts the resolved tenant from the request context.
func GetWorkspace(ctx context.Context) (*domain.Tenant, bool) {
	res, ok := GetResolution(ctx)
	if !ok || res.Tenant == nil {
		return nil, false
	}
	return res.Tenant, true
}

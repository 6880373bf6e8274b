// Package tenanthost maps inbound host names to tenants.
//
// Classification runs in strict precedence order: loopback hosts, preview
// hosting domains, and the primary domain short-circuit without any directory
// lookup; subdomains of the primary domain resolve by routing slug; anything
// else is treated as a custom-domain candidate. Each resolution performs at
// most one directory lookup, deduplicated across concurrent callers and
// served from a bounded TTL cache when one is configured.
package tenanthost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/relayhq/crmcore/pkg/domain"
)

// Class identifies how a hostname was classified.
type Class string

const (
	ClassMainDomain   Class = "main_domain"
	ClassSubdomain    Class = "subdomain"
	ClassCustomDomain Class = "custom_domain"
)

// Resolution is the outcome of resolving a hostname. Tenant is nil for the
// main domain and for unresolved custom domains; the latter is a deliberate
// fall-through, not an error, so callers can render tenant-less content.
type Resolution struct {
	Class  Class
	Tenant *domain.Tenant
}

// Directory is the tenant lookup consumed by the resolver. Implemented by
// repository.TenantsRepository.
type Directory interface {
	FindBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	FindByCustomDomain(ctx context.Context, host string) (*domain.Tenant, error)
}

// Config holds resolver configuration.
type Config struct {
	// PrimaryDomain is the bare main domain, e.g. "relaycrm.com".
	PrimaryDomain string
	// PreviewSuffixes are hosting-provider suffixes served as the main
	// domain without lookup, e.g. ".vercel.app".
	PreviewSuffixes []string
	// ReservedLabels are subdomain labels that never name a tenant.
	ReservedLabels []string
	// LookupTimeout bounds a single directory lookup.
	LookupTimeout time.Duration
}

// DefaultReservedLabels are the labels reserved on every deployment.
var DefaultReservedLabels = []string{"www", "app", "api", "admin", "mail", "status"}

const defaultLookupTimeout = 3 * time.Second

// Resolver classifies host names and resolves them to tenants.
type Resolver struct {
	cfg       Config
	directory Directory
	cache     Cache
	reserved  map[string]struct{}
	loopback  map[string]struct{}
	group     singleflight.Group
	logger    *slog.Logger
}

// NewResolver creates a resolver. cache may be nil to disable caching.
func NewResolver(cfg Config, directory Directory, cache Cache, logger *slog.Logger) *Resolver {
	if cfg.LookupTimeout == 0 {
		cfg.LookupTimeout = defaultLookupTimeout
	}
	if cfg.ReservedLabels == nil {
		cfg.ReservedLabels = DefaultReservedLabels
	}
	if logger == nil {
		logger = slog.Default()
	}

	reserved := make(map[string]struct{}, len(cfg.ReservedLabels))
	for _, label := range cfg.ReservedLabels {
		reserved[strings.ToLower(label)] = struct{}{}
	}

	loopback := map[string]struct{}{
		"localhost": {},
		"127.0.0.1": {},
		"0.0.0.0":   {},
		"::1":       {},
	}

	return &Resolver{
		cfg:       cfg,
		directory: directory,
		cache:     cache,
		reserved:  reserved,
		loopback:  loopback,
		logger:    logger,
	}
}

// Resolve maps a hostname to a tenant resolution. Terminal outcomes
// (resolved, no tenant, not found, inactive) may be served from cache;
// directory unavailability surfaces as ErrDirectoryUnavailable and is
// retryable, never cached.
func (r *Resolver) Resolve(ctx context.Context, hostname string) (Resolution, error) {
	host := NormalizeHost(hostname)
	primary := strings.ToLower(r.cfg.PrimaryDomain)

	// Fast paths: no lookup, no cache.
	if _, ok := r.loopback[host]; ok {
		return Resolution{Class: ClassMainDomain}, nil
	}
	for _, suffix := range r.cfg.PreviewSuffixes {
		if strings.HasSuffix(host, strings.ToLower(suffix)) {
			return Resolution{Class: ClassMainDomain}, nil
		}
	}
	if host == primary || host == "www."+primary {
		return Resolution{Class: ClassMainDomain}, nil
	}

	if label, ok := subdomainLabel(host, primary); ok {
		if _, reserved := r.reserved[label]; reserved {
			return Resolution{Class: ClassMainDomain}, nil
		}
		return r.lookup(ctx, host, func(ctx context.Context) (Resolution, error) {
			return r.resolveSlug(ctx, label)
		})
	}

	// Custom-domain candidate. Strip a leading www so both forms of a
	// verified domain land on the same cache entry.
	candidate := strings.TrimPrefix(host, "www.")
	return r.lookup(ctx, candidate, func(ctx context.Context) (Resolution, error) {
		return r.resolveCustomDomain(ctx, candidate)
	})
}

// Invalidate drops a hostname's cache entry. Called on tenant deactivation
// and domain re-verification events.
func (r *Resolver) Invalidate(ctx context.Context, hostname string) {
	if r.cache == nil {
		return
	}
	host := NormalizeHost(hostname)
	r.cache.Invalidate(ctx, strings.TrimPrefix(host, "www."))
	r.cache.Invalidate(ctx, host)
}

func (r *Resolver) lookup(ctx context.Context, key string, fn func(ctx context.Context) (Resolution, error)) (Resolution, error) {
	if r.cache != nil {
		if entry, ok := r.cache.Get(ctx, key); ok {
			return entry.resolution()
		}
	}

	// Deduplicate concurrent lookups for the same hostname.
	v, err, _ := r.group.Do(key, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(ctx, r.cfg.LookupTimeout)
		defer cancel()

		res, err := fn(lookupCtx)
		if err != nil && !isTerminal(err) {
			return Resolution{}, err
		}

		if r.cache != nil {
			r.cache.Set(ctx, key, newEntry(res, err))
		}
		return res, err
	})

	res, _ := v.(Resolution)
	return res, err
}

func (r *Resolver) resolveSlug(ctx context.Context, slug string) (Resolution, error) {
	tenant, err := r.directory.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			return Resolution{Class: ClassSubdomain}, domain.ErrTenantNotFound
		}
		return Resolution{}, fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}
	if !tenant.IsActive() {
		return Resolution{Class: ClassSubdomain}, domain.ErrTenantInactive
	}
	return Resolution{Class: ClassSubdomain, Tenant: tenant}, nil
}

func (r *Resolver) resolveCustomDomain(ctx context.Context, host string) (Resolution, error) {
	tenant, err := r.directory.FindByCustomDomain(ctx, host)
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			// Unresolved custom domain: the caller may not be a tenant
			// host at all, so this is a fall-through, not an error.
			return Resolution{Class: ClassCustomDomain}, nil
		}
		return Resolution{}, fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}
	if !tenant.IsActive() {
		return Resolution{Class: ClassCustomDomain}, domain.ErrTenantInactive
	}
	return Resolution{Class: ClassCustomDomain, Tenant: tenant}, nil
}

// isTerminal reports whether a resolution error is stable until the
// directory changes, and therefore safe to cache.
func isTerminal(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, domain.ErrTenantNotFound) || errors.Is(err, domain.ErrTenantInactive)
}

// subdomainLabel extracts the leftmost label when host is a subdomain of
// primary.
func subdomainLabel(host, primary string) (string, bool) {
	if primary == "" || !strings.HasSuffix(host, "."+primary) {
		return "", false
	}
	rest := strings.TrimSuffix(host, "."+primary)
	if rest == "" {
		return "", false
	}
	// Nested labels: only the leftmost names the tenant.
	return strings.SplitN(rest, ".", 2)[0], true
}

// NormalizeHost lower-cases a hostname and strips any port and trailing dot.
func NormalizeHost(hostname string) string {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

package tenanthost

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/relayhq/crmcore/pkg/domain"
)

type fakeDirectory struct {
	mu          sync.Mutex
	slugCalls   int
	domainCalls int
	delay       time.Duration
	err         error
	bySlug      map[string]*domain.Tenant
	byDomain    map[string]*domain.Tenant
}

func (d *fakeDirectory) FindBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	d.mu.Lock()
	d.slugCalls++
	d.mu.Unlock()
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.err != nil {
		return nil, d.err
	}
	if tenant, ok := d.bySlug[slug]; ok {
		return tenant, nil
	}
	return nil, domain.ErrTenantNotFound
}

func (d *fakeDirectory) FindByCustomDomain(ctx context.Context, host string) (*domain.Tenant, error) {
	d.mu.Lock()
	d.domainCalls++
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	if tenant, ok := d.byDomain[host]; ok {
		return tenant, nil
	}
	return nil, domain.ErrTenantNotFound
}

func (d *fakeDirectory) lookups() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.slugCalls + d.domainCalls
}

func activeTenant(slug string) *domain.Tenant {
	return &domain.Tenant{
		ID:     uuid.New(),
		Name:   slug,
		Slug:   slug,
		Active: true,
	}
}

func newTestResolver(directory Directory, cache Cache) *Resolver {
	return NewResolver(Config{
		PrimaryDomain:   "relaycrm.com",
		PreviewSuffixes: []string{".vercel.app", ".onrender.com"},
	}, directory, cache, nil)
}

func TestResolve_MainDomainFastPaths(t *testing.T) {
	tests := []struct {
		name string
		host string
	}{
		{name: "localhost", host: "localhost"},
		{name: "localhost with port", host: "localhost:3000"},
		{name: "loopback ip", host: "127.0.0.1"},
		{name: "preview deployment", host: "crm-git-main.vercel.app"},
		{name: "primary domain", host: "relaycrm.com"},
		{name: "www variant", host: "www.relaycrm.com"},
		{name: "uppercase primary", host: "RelayCRM.com"},
		{name: "reserved label app", host: "app.relaycrm.com"},
		{name: "reserved label api", host: "api.relaycrm.com"},
		{name: "reserved label admin", host: "admin.relaycrm.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			directory := &fakeDirectory{}
			resolver := newTestResolver(directory, nil)

			res, err := resolver.Resolve(context.Background(), tt.host)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v, want nil", tt.host, err)
			}
			if res.Class != ClassMainDomain {
				t.Errorf("Class = %q, want %q", res.Class, ClassMainDomain)
			}
			if res.Tenant != nil {
				t.Errorf("Tenant = %v, want nil", res.Tenant)
			}
			if directory.lookups() != 0 {
				t.Errorf("directory lookups = %d, want 0", directory.lookups())
			}
		})
	}
}

func TestResolve_ReservedLabelIgnoresDirectory(t *testing.T) {
	// A tenant whose slug collides with a reserved label must never resolve.
	directory := &fakeDirectory{bySlug: map[string]*domain.Tenant{"app": activeTenant("app")}}
	resolver := newTestResolver(directory, nil)

	res, err := resolver.Resolve(context.Background(), "app.relaycrm.com")
	if err != nil {
		t.Fatalf("Resolve error = %v, want nil", err)
	}
	if res.Class != ClassMainDomain || res.Tenant != nil {
		t.Errorf("got class=%q tenant=%v, want main domain without tenant", res.Class, res.Tenant)
	}
	if directory.lookups() != 0 {
		t.Errorf("directory lookups = %d, want 0", directory.lookups())
	}
}

func TestResolve_Subdomain(t *testing.T) {
	acme := activeTenant("acme")
	inactive := activeTenant("dormant")
	inactive.Active = false

	directory := &fakeDirectory{bySlug: map[string]*domain.Tenant{
		"acme":    acme,
		"dormant": inactive,
	}}
	resolver := newTestResolver(directory, nil)

	tests := []struct {
		name       string
		host       string
		wantTenant *domain.Tenant
		wantErr    error
	}{
		{name: "active tenant", host: "acme.relaycrm.com", wantTenant: acme},
		{name: "nested label resolves leftmost", host: "acme.eu.relaycrm.com", wantTenant: acme},
		{name: "unknown slug", host: "ghost.relaycrm.com", wantErr: domain.ErrTenantNotFound},
		{name: "inactive tenant", host: "dormant.relaycrm.com", wantErr: domain.ErrTenantInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := resolver.Resolve(context.Background(), tt.host)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve(%q) error = %v, want %v", tt.host, err, tt.wantErr)
			}
			if res.Class != ClassSubdomain {
				t.Errorf("Class = %q, want %q", res.Class, ClassSubdomain)
			}
			if tt.wantTenant != nil && (res.Tenant == nil || res.Tenant.ID != tt.wantTenant.ID) {
				t.Errorf("Tenant = %v, want %v", res.Tenant, tt.wantTenant)
			}
		})
	}
}

func TestResolve_CustomDomain(t *testing.T) {
	crm := activeTenant("acme")
	crmDomain := "crm.acme.io"
	crm.CustomDomain = &crmDomain
	crm.DomainStatus = domain.DomainStatusActive

	directory := &fakeDirectory{byDomain: map[string]*domain.Tenant{crmDomain: crm}}
	resolver := newTestResolver(directory, nil)

	t.Run("verified domain resolves", func(t *testing.T) {
		res, err := resolver.Resolve(context.Background(), "CRM.acme.io")
		if err != nil {
			t.Fatalf("Resolve error = %v, want nil", err)
		}
		if res.Class != ClassCustomDomain || res.Tenant == nil || res.Tenant.ID != crm.ID {
			t.Errorf("got class=%q tenant=%v, want custom domain tenant %v", res.Class, res.Tenant, crm.ID)
		}
	})

	t.Run("www form normalizes", func(t *testing.T) {
		res, err := resolver.Resolve(context.Background(), "www.crm.acme.io")
		if err != nil {
			t.Fatalf("Resolve error = %v, want nil", err)
		}
		if res.Tenant == nil || res.Tenant.ID != crm.ID {
			t.Errorf("Tenant = %v, want %v", res.Tenant, crm.ID)
		}
	})

	t.Run("unknown host falls through without error", func(t *testing.T) {
		res, err := resolver.Resolve(context.Background(), "unrelated.example.org")
		if err != nil {
			t.Fatalf("Resolve error = %v, want nil fall-through", err)
		}
		if res.Class != ClassCustomDomain {
			t.Errorf("Class = %q, want %q", res.Class, ClassCustomDomain)
		}
		if res.Tenant != nil {
			t.Errorf("Tenant = %v, want nil", res.Tenant)
		}
	})
}

func TestResolve_DirectoryUnavailable(t *testing.T) {
	directory := &fakeDirectory{err: errors.New("connection refused")}
	resolver := newTestResolver(directory, NewMemoryCache(time.Minute, 16))

	_, err := resolver.Resolve(context.Background(), "acme.relaycrm.com")
	if !errors.Is(err, domain.ErrDirectoryUnavailable) {
		t.Fatalf("Resolve error = %v, want ErrDirectoryUnavailable", err)
	}

	// Retryable failures must not be cached: the next call hits the
	// directory again and succeeds once it recovers.
	directory.mu.Lock()
	directory.err = nil
	directory.bySlug = map[string]*domain.Tenant{"acme": activeTenant("acme")}
	directory.mu.Unlock()

	res, err := resolver.Resolve(context.Background(), "acme.relaycrm.com")
	if err != nil {
		t.Fatalf("Resolve after recovery error = %v, want nil", err)
	}
	if res.Tenant == nil {
		t.Fatal("Tenant = nil after directory recovery")
	}
}

func TestResolve_CachesTerminalOutcomes(t *testing.T) {
	directory := &fakeDirectory{bySlug: map[string]*domain.Tenant{"acme": activeTenant("acme")}}
	resolver := newTestResolver(directory, NewMemoryCache(time.Minute, 16))

	for i := 0; i < 5; i++ {
		if _, err := resolver.Resolve(context.Background(), "acme.relaycrm.com"); err != nil {
			t.Fatalf("Resolve error = %v", err)
		}
	}
	if got := directory.lookups(); got != 1 {
		t.Errorf("directory lookups = %d, want 1", got)
	}

	// Negative outcomes are cached too.
	for i := 0; i < 5; i++ {
		if _, err := resolver.Resolve(context.Background(), "ghost.relaycrm.com"); !errors.Is(err, domain.ErrTenantNotFound) {
			t.Fatalf("Resolve error = %v, want ErrTenantNotFound", err)
		}
	}
	if got := directory.lookups(); got != 2 {
		t.Errorf("directory lookups = %d, want 2", got)
	}
}

func TestResolve_ConcurrentSingleLookup(t *testing.T) {
	directory := &fakeDirectory{
		bySlug: map[string]*domain.Tenant{"acme": activeTenant("acme")},
		delay:  20 * time.Millisecond,
	}
	resolver := newTestResolver(directory, NewMemoryCache(time.Minute, 16))

	const workers = 16
	results := make([]*domain.Tenant, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := resolver.Resolve(context.Background(), "acme.relaycrm.com")
			if err != nil {
				t.Errorf("Resolve error = %v", err)
				return
			}
			results[i] = res.Tenant
		}(i)
	}
	wg.Wait()

	if got := directory.lookups(); got != 1 {
		t.Errorf("directory lookups = %d, want 1", got)
	}
	for i, tenant := range results {
		if tenant == nil || tenant.Slug != "acme" {
			t.Errorf("worker %d got tenant %v, want acme", i, tenant)
		}
	}
}

func TestResolve_InvalidateDropsStaleEntry(t *testing.T) {
	acme := activeTenant("acme")
	directory := &fakeDirectory{bySlug: map[string]*domain.Tenant{"acme": acme}}
	resolver := newTestResolver(directory, NewMemoryCache(time.Minute, 16))

	if _, err := resolver.Resolve(context.Background(), "acme.relaycrm.com"); err != nil {
		t.Fatalf("Resolve error = %v", err)
	}

	// Deactivation event: invalidate, then the next resolution fails closed.
	acme.Active = false
	resolver.Invalidate(context.Background(), "acme.relaycrm.com")

	if _, err := resolver.Resolve(context.Background(), "acme.relaycrm.com"); !errors.Is(err, domain.ErrTenantInactive) {
		t.Fatalf("Resolve after deactivation error = %v, want ErrTenantInactive", err)
	}
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Example.COM", want: "example.com"},
		{in: "example.com:8443", want: "example.com"},
		{in: "example.com.", want: "example.com"},
		{in: " acme.relaycrm.com ", want: "acme.relaycrm.com"},
		{in: "[::1]:3000", want: "::1"},
	}

	for _, tt := range tests {
		if got := NormalizeHost(tt.in); got != tt.want {
			t.Errorf("NormalizeHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

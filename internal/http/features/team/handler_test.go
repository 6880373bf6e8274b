package team

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/relayhq/crmcore/internal/http/middleware"
	"github.com/relayhq/crmcore/pkg/domain"
	"github.com/relayhq/crmcore/pkg/org"
)

type stubStore struct {
	members map[uuid.UUID]*domain.Member
	order   []uuid.UUID
	removed []uuid.UUID
}

func newStubStore(members ...*domain.Member) *stubStore {
	s := &stubStore{members: make(map[uuid.UUID]*domain.Member)}
	for _, m := range members {
		s.members[m.ID] = m
		s.order = append(s.order, m.ID)
	}
	return s
}

func (s *stubStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Member, error) {
	var members []*domain.Member
	for _, id := range s.order {
		if m, ok := s.members[id]; ok && m.TenantID == tenantID {
			members = append(members, m)
		}
	}
	return members, nil
}

func (s *stubStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	if m, ok := s.members[id]; ok {
		return m, nil
	}
	return nil, domain.ErrMemberNotFound
}

func (s *stubStore) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	s.members[id].Role = role
	return nil
}

func (s *stubStore) UpdateManager(ctx context.Context, id uuid.UUID, managerID *uuid.UUID) error {
	s.members[id].ManagerID = managerID
	return nil
}

func (s *stubStore) Remove(ctx context.Context, id uuid.UUID, reparentTo *uuid.UUID) error {
	delete(s.members, id)
	s.removed = append(s.removed, id)
	return nil
}

type fixture struct {
	tenantID    uuid.UUID
	owner       *domain.Member
	manager     *domain.Member
	contributor *domain.Member
	store       *stubStore
	router      chi.Router
}

func newFixture() *fixture {
	tenantID := uuid.New()
	owner := &domain.Member{ID: uuid.New(), TenantID: tenantID, Email: "owner@acme.test", Name: "Owner", Role: domain.RoleOwner}
	manager := &domain.Member{ID: uuid.New(), TenantID: tenantID, Email: "manager@acme.test", Name: "Manager", Role: domain.RoleManager, ManagerID: &owner.ID}
	contributor := &domain.Member{ID: uuid.New(), TenantID: tenantID, Email: "rep@acme.test", Name: "Rep", Role: domain.RoleRep, ManagerID: &manager.ID}

	store := newStubStore(owner, manager, contributor)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	handler := NewHandler(logger, org.NewEngine(store, domain.DefaultRoleTable(), logger))

	router := chi.NewRouter()
	router.Get("/v1/team", handler.List)
	router.Get("/v1/roles/assignable", handler.AssignableRoles)
	router.Patch("/v1/team/{memberID}/role", handler.Promote)
	router.Patch("/v1/team/{memberID}/manager", handler.AssignManager)
	router.Delete("/v1/team/{memberID}", handler.Remove)

	return &fixture{
		tenantID:    tenantID,
		owner:       owner,
		manager:     manager,
		contributor: contributor,
		store:       store,
		router:      router,
	}
}

func (f *fixture) do(principal *domain.Member, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	if principal != nil {
		ctx := context.WithValue(req.Context(), middleware.PrincipalKey, principal)
		req = req.WithContext(ctx)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestList_VisibilityScopes(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name      string
		principal *domain.Member
		wantSize  int
	}{
		{name: "owner sees all", principal: f.owner, wantSize: 3},
		{name: "manager sees subtree", principal: f.manager, wantSize: 2},
		{name: "contributor sees self", principal: f.contributor, wantSize: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.principal, http.MethodGet, "/v1/team", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}

			var body struct {
				Members []memberResponse `json:"members"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if len(body.Members) != tt.wantSize {
				t.Errorf("members = %d, want %d", len(body.Members), tt.wantSize)
			}
		})
	}
}

func TestList_RequiresPrincipal(t *testing.T) {
	f := newFixture()

	rec := f.do(nil, http.MethodGet, "/v1/team", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestPromote(t *testing.T) {
	tests := []struct {
		name       string
		role       domain.Role
		wantStatus int
	}{
		{name: "manager grants lead", role: domain.RoleLead, wantStatus: http.StatusOK},
		{name: "manager cannot grant admin", role: domain.RoleAdmin, wantStatus: http.StatusForbidden},
		{name: "manager cannot grant own level", role: domain.RoleManager, wantStatus: http.StatusForbidden},
		{name: "unknown role rejected", role: domain.Role("root"), wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rec := f.do(f.manager, http.MethodPatch, "/v1/team/"+f.contributor.ID.String()+"/role", promoteRequest{Role: tt.role})
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			wantRole := domain.RoleRep
			if tt.wantStatus == http.StatusOK {
				wantRole = tt.role
			}
			if got := f.store.members[f.contributor.ID].Role; got != wantRole {
				t.Errorf("stored role = %q, want %q", got, wantRole)
			}
		})
	}
}

func TestPromote_InvalidMemberID(t *testing.T) {
	f := newFixture()

	rec := f.do(f.owner, http.MethodPatch, "/v1/team/not-a-uuid/role", promoteRequest{Role: domain.RoleLead})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRemove(t *testing.T) {
	t.Run("owner removes manager", func(t *testing.T) {
		f := newFixture()
		rec := f.do(f.owner, http.MethodDelete, "/v1/team/"+f.manager.ID.String(), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if len(f.store.removed) != 1 || f.store.removed[0] != f.manager.ID {
			t.Errorf("removed = %v, want [%s]", f.store.removed, f.manager.ID)
		}
	})

	t.Run("contributor cannot remove manager", func(t *testing.T) {
		f := newFixture()
		rec := f.do(f.contributor, http.MethodDelete, "/v1/team/"+f.manager.ID.String(), nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
		}
		if len(f.store.removed) != 0 {
			t.Errorf("removed = %v, want none", f.store.removed)
		}
	})

	t.Run("cross tenant target denied", func(t *testing.T) {
		f := newFixture()
		foreign := &domain.Member{ID: uuid.New(), TenantID: uuid.New(), Email: "x@other.test", Name: "X", Role: domain.RoleRep}
		f.store.members[foreign.ID] = foreign
		f.store.order = append(f.store.order, foreign.ID)

		rec := f.do(f.owner, http.MethodDelete, "/v1/team/"+foreign.ID.String(), nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("unknown target yields 404", func(t *testing.T) {
		f := newFixture()
		rec := f.do(f.owner, http.MethodDelete, "/v1/team/"+uuid.NewString(), nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})
}

func TestAssignManager(t *testing.T) {
	t.Run("cycle rejected with conflict", func(t *testing.T) {
		f := newFixture()
		contributorID := f.contributor.ID.String()
		rec := f.do(f.owner, http.MethodPatch, "/v1/team/"+f.manager.ID.String()+"/manager", assignManagerRequest{ManagerID: &contributorID})
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
		}
		// Tree unchanged after rejection.
		if got := f.store.members[f.manager.ID].ManagerID; got == nil || *got != f.owner.ID {
			t.Errorf("manager reference = %v, want %s", got, f.owner.ID)
		}
	})

	t.Run("valid reassignment", func(t *testing.T) {
		f := newFixture()
		ownerID := f.owner.ID.String()
		rec := f.do(f.owner, http.MethodPatch, "/v1/team/"+f.contributor.ID.String()+"/manager", assignManagerRequest{ManagerID: &ownerID})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if got := f.store.members[f.contributor.ID].ManagerID; got == nil || *got != f.owner.ID {
			t.Errorf("manager reference = %v, want %s", got, f.owner.ID)
		}
	})

	t.Run("detach to root", func(t *testing.T) {
		f := newFixture()
		rec := f.do(f.owner, http.MethodPatch, "/v1/team/"+f.contributor.ID.String()+"/manager", assignManagerRequest{ManagerID: nil})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if got := f.store.members[f.contributor.ID].ManagerID; got != nil {
			t.Errorf("manager reference = %v, want nil", got)
		}
	})
}

func TestAssignableRoles(t *testing.T) {
	f := newFixture()

	rec := f.do(f.manager, http.MethodGet, "/v1/roles/assignable", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Roles []domain.Role `json:"roles"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	want := []domain.Role{domain.RoleRep, domain.RoleLead}
	if len(body.Roles) != len(want) {
		t.Fatalf("roles = %v, want %v", body.Roles, want)
	}
	for i := range want {
		if body.Roles[i] != want[i] {
			t.Errorf("roles[%d] = %q, want %q", i, body.Roles[i], want[i])
		}
	}
}

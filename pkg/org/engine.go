package org

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relayhq/crmcore/pkg/domain"
)

// Store is the member persistence consumed by the engine. Implemented by
// SQLStore over the repository layer.
type Store interface {
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Member, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error
	UpdateManager(ctx context.Context, id uuid.UUID, managerID *uuid.UUID) error
	// Remove deletes the member's credentials and profile and reparents the
	// member's direct reports to reparentTo, all in one transaction. This is
	// the privileged path; callers must pass the CanRemove check first.
	Remove(ctx context.Context, id uuid.UUID, reparentTo *uuid.UUID) error
}

const defaultLoadTimeout = 5 * time.Second

// Engine answers visibility and authorization queries over a tenant's
// reporting hierarchy. Tree snapshots are cached per tenant and dropped on
// every membership, manager, or role write so no decision runs against a
// stale tree.
type Engine struct {
	store       Store
	roles       *domain.RoleTable
	loadTimeout time.Duration
	logger      *slog.Logger

	mu    sync.RWMutex
	trees map[uuid.UUID]*Tree
}

// NewEngine creates a hierarchy engine.
func NewEngine(store Store, roles *domain.RoleTable, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:       store,
		roles:       roles,
		loadTimeout: defaultLoadTimeout,
		logger:      logger,
		trees:       make(map[uuid.UUID]*Tree),
	}
}

// Invalidate drops the cached tree for a tenant. Must be called after every
// write to membership, manager references, or roles.
func (e *Engine) Invalidate(tenantID uuid.UUID) {
	e.mu.Lock()
	delete(e.trees, tenantID)
	e.mu.Unlock()
}

// Tree returns the tenant's reporting tree, loading and caching it on miss.
func (e *Engine) Tree(ctx context.Context, tenantID uuid.UUID) (*Tree, error) {
	e.mu.RLock()
	tree, ok := e.trees[tenantID]
	e.mu.RUnlock()
	if ok {
		return tree, nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, e.loadTimeout)
	defer cancel()

	members, err := e.store.ListByTenant(loadCtx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	tree = BuildTree(members)
	if bad := tree.Malformed(); len(bad) > 0 {
		e.logger.Warn("malformed reporting hierarchy",
			"tenant_id", tenantID,
			"member_ids", bad,
		)
	}

	e.mu.Lock()
	e.trees[tenantID] = tree
	e.mu.Unlock()
	return tree, nil
}

// VisibleMembers returns the set of members the actor may see: every member
// of the tenant for the owner role, otherwise the actor's full subtree.
//
// When the tenant's hierarchy contains malformed branches the valid result
// is still returned, together with an error wrapping ErrMalformedHierarchy
// so operators can be alerted without failing the query.
func (e *Engine) VisibleMembers(ctx context.Context, actor *domain.Member) ([]*domain.Member, error) {
	tree, err := e.Tree(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}

	if _, ok := tree.Member(actor.ID); !ok {
		return nil, domain.ErrMemberNotFound
	}

	var members []*domain.Member
	if e.roles.IsOwner(actor.Role) {
		members = tree.All()
	} else {
		members = tree.Subtree(actor.ID)
	}

	if bad := tree.Malformed(); len(bad) > 0 && !e.roles.IsOwner(actor.Role) {
		return members, fmt.Errorf("%w: %d member(s) excluded", domain.ErrMalformedHierarchy, len(bad))
	}
	return members, nil
}

// CanPromote adjudicates a role change: allowed only when the actor's level
// is strictly above the new role's level. An actor can never grant their own
// level, so the check is strict even for the owner role.
func (e *Engine) CanPromote(actor, target *domain.Member, newRole domain.Role) error {
	if actor.TenantID != target.TenantID {
		return domain.ErrCrossTenant
	}
	if !e.roles.Known(newRole) {
		return domain.ErrUnknownRole
	}
	if e.roles.Level(actor.Role) >= e.roles.Level(newRole) {
		return fmt.Errorf("%w: cannot grant role %q at or above own level", domain.ErrUnauthorized, newRole)
	}
	return nil
}

// Promote changes the target's role after re-verifying CanPromote.
func (e *Engine) Promote(ctx context.Context, actor *domain.Member, targetID uuid.UUID, newRole domain.Role) error {
	target, err := e.store.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if err := e.CanPromote(actor, target, newRole); err != nil {
		return err
	}

	if err := e.store.UpdateRole(ctx, targetID, newRole); err != nil {
		return err
	}
	e.Invalidate(actor.TenantID)

	e.logger.Info("member role changed",
		"tenant_id", actor.TenantID,
		"actor_id", actor.ID,
		"target_id", targetID,
		"role", newRole,
	)
	return nil
}

// CanRemove adjudicates removal: the target must belong to the actor's
// tenant and hold a strictly weaker role.
func (e *Engine) CanRemove(actor, target *domain.Member) error {
	if actor.TenantID != target.TenantID {
		return domain.ErrCrossTenant
	}
	if e.roles.Level(actor.Role) >= e.roles.Level(target.Role) {
		return fmt.Errorf("%w: target holds an equal or stronger role", domain.ErrUnauthorized)
	}
	return nil
}

// Remove deletes the target's identity and profile through the privileged
// store path, re-verifying CanRemove server-side. The target's direct
// reports are reparented to the target's own manager; when the target was a
// hierarchy root they become roots themselves.
func (e *Engine) Remove(ctx context.Context, actor *domain.Member, targetID uuid.UUID) error {
	target, err := e.store.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if err := e.CanRemove(actor, target); err != nil {
		return err
	}

	if err := e.store.Remove(ctx, targetID, target.ManagerID); err != nil {
		return err
	}
	e.Invalidate(actor.TenantID)

	e.logger.Info("member removed",
		"tenant_id", actor.TenantID,
		"actor_id", actor.ID,
		"target_id", targetID,
	)
	return nil
}

// AssignManager moves the target under a new manager (nil makes the target a
// root). Any assignment that would place the target on its own ancestor
// chain is rejected before mutation, so the tree stays acyclic.
func (e *Engine) AssignManager(ctx context.Context, actor *domain.Member, targetID uuid.UUID, newManagerID *uuid.UUID) error {
	target, err := e.store.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if actor.TenantID != target.TenantID {
		return domain.ErrCrossTenant
	}
	if !e.roles.IsOwner(actor.Role) && e.roles.Level(actor.Role) >= e.roles.Level(target.Role) {
		return fmt.Errorf("%w: cannot move a member with an equal or stronger role", domain.ErrUnauthorized)
	}

	if newManagerID != nil {
		if *newManagerID == targetID {
			return domain.ErrCyclicManagerChain
		}

		manager, err := e.store.GetByID(ctx, *newManagerID)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrManagerNotFound, err)
		}
		if manager.TenantID != target.TenantID {
			return domain.ErrCrossTenant
		}

		tree, err := e.Tree(ctx, target.TenantID)
		if err != nil {
			return err
		}
		if tree.IsAncestor(targetID, *newManagerID) {
			return domain.ErrCyclicManagerChain
		}
	}

	if err := e.store.UpdateManager(ctx, targetID, newManagerID); err != nil {
		return err
	}
	e.Invalidate(actor.TenantID)

	e.logger.Info("member manager changed",
		"tenant_id", actor.TenantID,
		"actor_id", actor.ID,
		"target_id", targetID,
		"manager_id", newManagerID,
	)
	return nil
}

// AssignableRoles returns every role the actor may grant, weakest first.
func (e *Engine) AssignableRoles(actor *domain.Member) []domain.Role {
	return e.roles.AssignableBy(actor.Role)
}

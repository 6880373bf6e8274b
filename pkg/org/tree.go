// Package org builds per-tenant reporting trees and adjudicates every
// hierarchy-sensitive operation: member visibility, role promotion, member
// removal, and manager reassignment.
package org

import (
	"sort"

	"github.com/google/uuid"
	"github.com/relayhq/crmcore/pkg/domain"
)

// maxTraversalDepth bounds subtree walks. The visited set already prevents
// loops; the depth bound guards against adjacency corruption.
const maxTraversalDepth = 1000

// Tree is an immutable snapshot of a tenant's reporting forest: members by
// id and a manager-to-direct-reports adjacency. Malformed members (dangling
// manager references or reporting cycles) are recorded and excluded from
// traversal instead of failing the whole snapshot.
type Tree struct {
	members   map[uuid.UUID]*domain.Member
	reports   map[uuid.UUID][]uuid.UUID
	order     []uuid.UUID
	malformed []uuid.UUID
}

// BuildTree indexes a tenant's members into a traversable snapshot.
func BuildTree(members []*domain.Member) *Tree {
	tree := &Tree{
		members: make(map[uuid.UUID]*domain.Member, len(members)),
		reports: make(map[uuid.UUID][]uuid.UUID),
	}
	for _, member := range members {
		tree.members[member.ID] = member
		tree.order = append(tree.order, member.ID)
	}

	malformed := make(map[uuid.UUID]struct{})
	for _, member := range members {
		if member.ManagerID == nil {
			continue
		}
		if _, ok := tree.members[*member.ManagerID]; !ok {
			// Dangling manager reference.
			malformed[member.ID] = struct{}{}
			continue
		}
		tree.reports[*member.ManagerID] = append(tree.reports[*member.ManagerID], member.ID)
	}

	for _, id := range tree.detectCycles() {
		malformed[id] = struct{}{}
	}

	for id := range malformed {
		tree.malformed = append(tree.malformed, id)
	}
	sort.Slice(tree.malformed, func(i, j int) bool {
		return tree.malformed[i].String() < tree.malformed[j].String()
	})

	return tree
}

// detectCycles walks each member's manager chain and returns every member
// sitting on a cycle.
func (t *Tree) detectCycles() []uuid.UUID {
	const (
		unvisited = iota
		inProgress
		done
	)

	state := make(map[uuid.UUID]int, len(t.members))
	onCycle := make(map[uuid.UUID]struct{})

	for id := range t.members {
		if state[id] != unvisited {
			continue
		}

		var chain []uuid.UUID
		current := id
		for {
			if state[current] == done {
				break
			}
			if state[current] == inProgress {
				// Found a cycle: everything from the first occurrence
				// of current in the chain loops.
				start := 0
				for i, cid := range chain {
					if cid == current {
						start = i
						break
					}
				}
				for _, cid := range chain[start:] {
					onCycle[cid] = struct{}{}
				}
				break
			}

			state[current] = inProgress
			chain = append(chain, current)

			member := t.members[current]
			if member.ManagerID == nil {
				break
			}
			next, ok := t.members[*member.ManagerID]
			if !ok {
				break
			}
			current = next.ID
		}

		for _, cid := range chain {
			state[cid] = done
		}
	}

	ids := make([]uuid.UUID, 0, len(onCycle))
	for id := range onCycle {
		ids = append(ids, id)
	}
	return ids
}

// Member returns the member with the given id.
func (t *Tree) Member(id uuid.UUID) (*domain.Member, bool) {
	member, ok := t.members[id]
	return member, ok
}

// All returns every member of the tenant in load order.
func (t *Tree) All() []*domain.Member {
	members := make([]*domain.Member, 0, len(t.order))
	for _, id := range t.order {
		members = append(members, t.members[id])
	}
	return members
}

// Malformed returns the ids of members excluded from traversal because of a
// dangling manager reference or a reporting cycle.
func (t *Tree) Malformed() []uuid.UUID {
	return t.malformed
}

// Subtree returns the member with the given id plus every transitive direct
// report, in breadth-first order. Malformed members and their subtrees are
// excluded.
func (t *Tree) Subtree(id uuid.UUID) []*domain.Member {
	root, ok := t.members[id]
	if !ok {
		return nil
	}

	excluded := make(map[uuid.UUID]struct{}, len(t.malformed))
	for _, mid := range t.malformed {
		excluded[mid] = struct{}{}
	}

	visited := map[uuid.UUID]struct{}{id: {}}
	result := []*domain.Member{root}
	frontier := []uuid.UUID{id}

	for depth := 0; len(frontier) > 0 && depth < maxTraversalDepth; depth++ {
		var next []uuid.UUID
		for _, current := range frontier {
			for _, reportID := range t.reports[current] {
				if _, seen := visited[reportID]; seen {
					continue
				}
				visited[reportID] = struct{}{}
				if _, bad := excluded[reportID]; bad {
					continue
				}
				result = append(result, t.members[reportID])
				next = append(next, reportID)
			}
		}
		frontier = next
	}

	return result
}

// IsAncestor returns true if ancestor sits above descendant on the manager
// chain. Traversal is bounded and loop-safe.
func (t *Tree) IsAncestor(ancestor, descendant uuid.UUID) bool {
	visited := make(map[uuid.UUID]struct{})
	current, ok := t.members[descendant]
	if !ok {
		return false
	}

	for depth := 0; current.ManagerID != nil && depth < maxTraversalDepth; depth++ {
		parentID := *current.ManagerID
		if parentID == ancestor {
			return true
		}
		if _, seen := visited[parentID]; seen {
			return false
		}
		visited[parentID] = struct{}{}

		parent, ok := t.members[parentID]
		if !ok {
			return false
		}
		current = parent
	}
	return false
}

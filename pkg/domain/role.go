package domain

import "sort"

// Role identifies a member's position in the fixed authority ladder.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleLead    Role = "lead"
	RoleRep     Role = "rep"
)

// RoleTable maps roles to authority levels. A strictly lower level means
// strictly more authority; the table is fixed at process start and injected
// wherever role comparisons happen so every operation sees the same ordering.
type RoleTable struct {
	levels map[Role]int
	owner  Role
}

// DefaultRoleTable returns the standard CRM role ladder.
func DefaultRoleTable() *RoleTable {
	return NewRoleTable(map[Role]int{
		RoleOwner:   1,
		RoleAdmin:   3,
		RoleManager: 5,
		RoleLead:    7,
		RoleRep:     10,
	}, RoleOwner)
}

// NewRoleTable builds a role table from an explicit level mapping.
func NewRoleTable(levels map[Role]int, owner Role) *RoleTable {
	copied := make(map[Role]int, len(levels))
	for r, l := range levels {
		copied[r] = l
	}
	return &RoleTable{levels: copied, owner: owner}
}

// Level returns the authority level for a role. Unknown roles report the
// weakest possible level so a corrupt role value never gains authority.
func (t *RoleTable) Level(r Role) int {
	if l, ok := t.levels[r]; ok {
		return l
	}
	return int(^uint(0) >> 1)
}

// Known returns true if the role exists in the table.
func (t *RoleTable) Known(r Role) bool {
	_, ok := t.levels[r]
	return ok
}

// IsOwner returns true if the role is the tenant-owner role.
func (t *RoleTable) IsOwner(r Role) bool {
	return r == t.owner
}

// Dominates returns true if role a holds strictly more authority than role b.
func (t *RoleTable) Dominates(a, b Role) bool {
	return t.Level(a) < t.Level(b)
}

// AssignableBy returns every role strictly weaker than the actor's role,
// ordered weakest first. The ordering is for display only.
func (t *RoleTable) AssignableBy(actor Role) []Role {
	actorLevel := t.Level(actor)
	var roles []Role
	for r, l := range t.levels {
		if l > actorLevel {
			roles = append(roles, r)
		}
	}
	sort.Slice(roles, func(i, j int) bool {
		if t.levels[roles[i]] != t.levels[roles[j]] {
			return t.levels[roles[i]] > t.levels[roles[j]]
		}
		return roles[i] < roles[j]
	})
	return roles
}

package domain

import "testing"

func TestRoleTable_Levels(t *testing.T) {
	table := DefaultRoleTable()

	tests := []struct {
		role  Role
		level int
	}{
		{role: RoleOwner, level: 1},
		{role: RoleAdmin, level: 3},
		{role: RoleManager, level: 5},
		{role: RoleLead, level: 7},
		{role: RoleRep, level: 10},
	}

	for _, tt := range tests {
		if got := table.Level(tt.role); got != tt.level {
			t.Errorf("Level(%q) = %d, want %d", tt.role, got, tt.level)
		}
	}
}

func TestRoleTable_UnknownRoleIsWeakest(t *testing.T) {
	table := DefaultRoleTable()

	if table.Known(Role("superuser")) {
		t.Error("Known(superuser) = true, want false")
	}
	if table.Dominates(Role("superuser"), RoleRep) {
		t.Error("unknown role dominates rep, want no authority")
	}
	if !table.Dominates(RoleRep, Role("superuser")) {
		t.Error("rep does not dominate unknown role, want dominance")
	}
}

func TestRoleTable_Dominates(t *testing.T) {
	table := DefaultRoleTable()

	if !table.Dominates(RoleOwner, RoleAdmin) {
		t.Error("owner does not dominate admin")
	}
	if table.Dominates(RoleManager, RoleManager) {
		t.Error("role dominates itself, want strict ordering")
	}
	if table.Dominates(RoleRep, RoleLead) {
		t.Error("rep dominates lead, want inverse")
	}
}

func TestRoleTable_AssignableBy(t *testing.T) {
	table := DefaultRoleTable()

	got := table.AssignableBy(RoleAdmin)
	want := []Role{RoleRep, RoleLead, RoleManager}
	if len(got) != len(want) {
		t.Fatalf("AssignableBy(admin) = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("AssignableBy(admin)[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if roles := table.AssignableBy(RoleRep); len(roles) != 0 {
		t.Errorf("AssignableBy(rep) = %v, want empty", roles)
	}
}

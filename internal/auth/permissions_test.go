package auth

import "testing"

func TestRoleHasAtLeast(t *testing.T) {
	tests := []struct {
		have, need Role
		want       bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleTechnician, true},
		{RoleAdmin, RoleCustomer, true},
		{RoleTechnician, RoleAdmin, false},
		{RoleTechnician, RoleTechnician, true},
		{RoleTechnician, RoleCustomer, true},
		{RoleCustomer, RoleTechnician, false},
		{RoleCustomer, RoleCustomer, true},
		{Role("owner"), RoleCustomer, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.have)+">="+string(tt.need), func(t *testing.T) {
			if got := tt.have.HasAtLeast(tt.need); got != tt.want {
				t.Errorf("HasAtLeast() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	for _, r := range ValidRoles {
		got, err := ParseRole(string(r))
		if err != nil || got != r {
			t.Errorf("ParseRole(%q) = %q, %v", r, got, err)
		}
	}
	for _, bad := range []string{"", "admin", "OWNER", "customer "} {
		if _, err := ParseRole(bad); err == nil {
			t.Errorf("ParseRole(%q) should fail", bad)
		}
	}
}

func TestHasPermission(t *testing.T) {
	customerOnly := []Permission{PermDeviceOwn, PermCartUse, PermOrderPlace, PermTicketOpen, PermReviewWrite}
	technician := []Permission{PermFleetView, PermTicketWork}
	adminOnly := []Permission{PermCatalogManage, PermOrderManage, PermUserManage, PermTicketAllocate}

	for _, p := range customerOnly {
		for _, r := range ValidRoles {
			if !HasPermission(r, p) {
				t.Errorf("%s should have %s", r, p)
			}
		}
	}
	for _, p := range technician {
		if HasPermission(RoleCustomer, p) {
			t.Errorf("CUSTOMER should NOT have %s", p)
		}
		if !HasPermission(RoleTechnician, p) || !HasPermission(RoleAdmin, p) {
			t.Errorf("TECHNICIAN and ADMIN should have %s", p)
		}
	}
	for _, p := range adminOnly {
		if HasPermission(RoleTechnician, p) {
			t.Errorf("TECHNICIAN should NOT have %s", p)
		}
		if !HasPermission(RoleAdmin, p) {
			t.Errorf("ADMIN should have %s", p)
		}
	}

	if HasPermission(Role("nonexistent"), PermDeviceOwn) {
		t.Error("unknown role should have no permissions")
	}
	if HasPermission(RoleAdmin, Permission("unknown:perm")) {
		t.Error("unknown permission should not be granted")
	}
}

func TestPermissionsForRole(t *testing.T) {
	if got := PermissionsForRole(Role("nonexistent")); got != nil {
		t.Errorf("PermissionsForRole(unknown) = %v, want nil", got)
	}
	c := len(PermissionsForRole(RoleCustomer))
	tech := len(PermissionsForRole(RoleTechnician))
	a := len(PermissionsForRole(RoleAdmin))
	if !(c < tech && tech < a) {
		t.Errorf("permission counts not nested: customer=%d technician=%d admin=%d", c, tech, a)
	}
	if a != len(allPermissions) {
		t.Errorf("ADMIN has %d permissions, want all %d", a, len(allPermissions))
	}
}

package auth

// Permission represents a named capability.
type Permission string

// Permission constants.
const (
	PermDeviceOwn      Permission = "device:own"
	PermCartUse        Permission = "cart:use"
	PermOrderPlace     Permission = "order:place"
	PermTicketOpen     Permission = "ticket:open"
	PermReviewWrite    Permission = "review:write"
	PermFleetView      Permission = "fleet:view"
	PermTicketWork     Permission = "ticket:work"
	PermCatalogManage  Permission = "catalog:manage"
	PermOrderManage    Permission = "order:manage"
	PermUserManage     Permission = "user:manage"
	PermTicketAllocate Permission = "ticket:allocate"
)

// permissionFloor maps each permission to the lowest role holding it.
// Roles are nested, so a higher role inherits everything below.
var permissionFloor = map[Permission]Role{
	PermDeviceOwn:      RoleCustomer,
	PermCartUse:        RoleCustomer,
	PermOrderPlace:     RoleCustomer,
	PermTicketOpen:     RoleCustomer,
	PermReviewWrite:    RoleCustomer,
	PermFleetView:      RoleTechnician,
	PermTicketWork:     RoleTechnician,
	PermCatalogManage:  RoleAdmin,
	PermOrderManage:    RoleAdmin,
	PermUserManage:     RoleAdmin,
	PermTicketAllocate: RoleAdmin,
}

// HasPermission reports whether role holds perm.
func HasPermission(role Role, perm Permission) bool {
	floor, ok := permissionFloor[perm]
	if !ok {
		return false
	}
	return role.HasAtLeast(floor)
}

// PermissionsForRole returns every permission role holds, nil for unknown
// roles.
func PermissionsForRole(role Role) []Permission {
	if !role.Valid() {
		return nil
	}
	var perms []Permission
	for _, p := range allPermissions {
		if HasPermission(role, p) {
			perms = append(perms, p)
		}
	}
	return perms
}

var allPermissions = []Permission{
	PermDeviceOwn, PermCartUse, PermOrderPlace, PermTicketOpen, PermReviewWrite,
	PermFleetView, PermTicketWork,
	PermCatalogManage, PermOrderManage, PermUserManage, PermTicketAllocate,
}

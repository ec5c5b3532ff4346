// Package identity defines the actor model shared by the gateway: roles,
// fine-grained permission flags, and the per-user profile snapshot loaded
// from the profile store.
package identity

import (
	"fmt"
	"strings"
)

// Role is a coarse-grained actor category used for route-level gating.
type Role string

// Known roles.
const (
	RoleTeamStaff         Role = "team_staff"
	RoleTeamAdmin         Role = "team_admin"
	RoleAthleticLabsStaff Role = "athletic_labs_staff"
	RoleAthleticLabsAdmin Role = "athletic_labs_admin"
)

// Roles lists every known role in ascending privilege order.
var Roles = []Role{
	RoleTeamStaff,
	RoleTeamAdmin,
	RoleAthleticLabsStaff,
	RoleAthleticLabsAdmin,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole converts a stored role name into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Permission is a fine-grained boolean capability layered on top of roles.
type Permission string

// Known permission flags.
const (
	PermPlaceOrders    Permission = "can_place_orders"
	PermManageTeam     Permission = "can_manage_team"
	PermViewBilling    Permission = "can_view_billing"
	PermManageMenus    Permission = "can_manage_menus"
	PermViewAnalytics  Permission = "can_view_analytics"
	PermManageCalendar Permission = "can_manage_calendar"
)

// KnownPermissions lists every permission flag the route table may require.
var KnownPermissions = []Permission{
	PermPlaceOrders,
	PermManageTeam,
	PermViewBilling,
	PermManageMenus,
	PermViewAnalytics,
	PermManageCalendar,
}

// Valid reports whether p is a known permission flag.
func (p Permission) Valid() bool {
	for _, known := range KnownPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// Permissions maps permission flags to their granted state for one user
// within one team. A missing flag is treated as not granted.
type Permissions map[Permission]bool

// Has reports whether every flag in required is granted.
func (p Permissions) Has(required ...Permission) bool {
	for _, flag := range required {
		if !p[flag] {
			return false
		}
	}
	return true
}

// Missing returns the flags from required that are not granted, in order.
func (p Permissions) Missing(required ...Permission) []Permission {
	var missing []Permission
	for _, flag := range required {
		if !p[flag] {
			missing = append(missing, flag)
		}
	}
	return missing
}

// Clone returns an independent copy. A nil map stays nil.
func (p Permissions) Clone() Permissions {
	if p == nil {
		return nil
	}
	out := make(Permissions, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Profile is the profile-store snapshot for one user.
type Profile struct {
	UserID       string
	Role         Role
	TeamID       string // empty when the user belongs to no team
	IsActive     bool
	TeamIsActive bool
}

// HasTeam reports whether the profile belongs to a team.
func (p Profile) HasTeam() bool {
	return p.TeamID != ""
}

// Identity is the authenticated actor for one request.
type Identity struct {
	UserID string
	Role   Role
	TeamID string
}

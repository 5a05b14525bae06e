package permission

import (
	"errors"
	"strings"
)

// ErrUnknownRole is returned by [ParseRole] for values outside the closed role set.
var ErrUnknownRole = errors.New("permission: unknown role")

// Role is one of the three platform roles. The zero value is not a valid role.
type Role string

const (
	// RoleViewer can read dashboards and reports.
	RoleViewer Role = "viewer"
	// RoleAnalyst can additionally curate events and run analyses.
	RoleAnalyst Role = "analyst"
	// RoleAdmin can additionally manage users and roles.
	RoleAdmin Role = "admin"
)

// DefaultRole is assigned to self-registered accounts.
const DefaultRole = RoleViewer

// All returns every valid role in ascending level order.
func All() []Role {
	return []Role{RoleViewer, RoleAnalyst, RoleAdmin}
}

// Level returns the position of r in the hierarchy, or 0 for an invalid role.
func Level(r Role) int {
	switch r {
	case RoleViewer:
		return 1
	case RoleAnalyst:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return Level(r) > 0
}

func (r Role) String() string {
	return string(r)
}

// ParseRole maps a case-insensitive role name to a [Role].
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// Allows reports whether a principal holding have satisfies a requirement of need.
// Invalid roles on either side never pass.
func Allows(have, need Role) bool {
	lh, ln := Level(have), Level(need)
	if lh == 0 || ln == 0 {
		return false
	}
	return lh >= ln
}

package domain

import (
	"fmt"
	"strings"
)

// Role enumerates the actors of the reporting workflow.
type Role string

const (
	RolePusat   Role = "pusat"
	RoleDaerah  Role = "daerah"
	RoleSekolah Role = "sekolah"
	RoleMurid   Role = "murid"
	RoleMitra   Role = "mitra"
	// RoleSystem authors automated lifecycle narration. It is never a caller.
	RoleSystem Role = "system"
)

// ActorRoles lists the roles a resolved identity may carry.
var ActorRoles = []Role{RolePusat, RoleDaerah, RoleSekolah, RoleMurid, RoleMitra}

// ParseRole accepts only actor roles.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RolePusat, RoleDaerah, RoleSekolah, RoleMurid, RoleMitra:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// IsReporter reports whether the role may originate tickets.
func (r Role) IsReporter() bool {
	return r == RoleMurid || r == RoleSekolah
}

func (r Role) String() string {
	return string(r)
}

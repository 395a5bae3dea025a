package policy

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
)

// Operation names an action of the collaboration surface.
type Operation string

const (
	OpList          Operation = "list"
	OpRead          Operation = "read"
	OpCreate        Operation = "create"
	OpComment       Operation = "comment"
	OpEscalate      Operation = "escalate"
	OpPatch         Operation = "patch"
	OpTransition    Operation = "transition"
	OpStudentReport Operation = "student_report"
	OpAdvisory      Operation = "advisory"
)

const ticketObject = "ticket"

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

var defaultGrants = map[Operation][]domain.Role{
	OpList:          domain.ActorRoles,
	OpRead:          domain.ActorRoles,
	OpAdvisory:      domain.ActorRoles,
	OpCreate:        {domain.RoleMurid, domain.RoleSekolah},
	OpComment:       {domain.RoleSekolah, domain.RoleDaerah, domain.RolePusat},
	OpEscalate:      {domain.RoleDaerah},
	OpPatch:         {domain.RoleDaerah, domain.RolePusat},
	OpTransition:    {domain.RoleDaerah, domain.RolePusat},
	OpStudentReport: {domain.RoleMurid, domain.RoleSekolah},
}

// RBAC is the role/operation matrix backed by a casbin enforcer.
type RBAC struct {
	enforcer *casbin.Enforcer
}

// NewRBAC builds the enforcer with the default grants.
func NewRBAC() (*RBAC, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	for op, roles := range defaultGrants {
		for _, role := range roles {
			if _, err := enforcer.AddPolicy(string(role), ticketObject, string(op)); err != nil {
				return nil, fmt.Errorf("grant %s to %s: %w", op, role, err)
			}
		}
	}
	return &RBAC{enforcer: enforcer}, nil
}

// Allowed reports whether role may perform op. Enforcer errors deny.
func (r *RBAC) Allowed(role domain.Role, op Operation) bool {
	if r == nil || r.enforcer == nil {
		return false
	}
	ok, err := r.enforcer.Enforce(string(role), ticketObject, string(op))
	if err != nil {
		return false
	}
	return ok
}

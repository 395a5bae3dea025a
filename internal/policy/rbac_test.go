package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
	"github.com/AhmadRadith/jycc-sub001/internal/policy"
)

func TestRBAC_DefaultGrants(t *testing.T) {
	rbac, err := policy.NewRBAC()
	require.NoError(t, err)

	cases := []struct {
		role domain.Role
		op   policy.Operation
		want bool
	}{
		{domain.RoleDaerah, policy.OpEscalate, true},
		{domain.RolePusat, policy.OpEscalate, false},
		{domain.RoleSekolah, policy.OpEscalate, false},
		{domain.RoleMurid, policy.OpCreate, true},
		{domain.RoleSekolah, policy.OpCreate, true},
		{domain.RoleDaerah, policy.OpCreate, false},
		{domain.RoleMitra, policy.OpComment, false},
		{domain.RolePusat, policy.OpComment, true},
		{domain.RolePusat, policy.OpPatch, true},
		{domain.RoleSekolah, policy.OpPatch, false},
		{domain.RoleMitra, policy.OpList, true},
		{domain.RoleMurid, policy.OpStudentReport, true},
		{domain.RoleSystem, policy.OpRead, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, rbac.Allowed(tc.role, tc.op), "%s %s", tc.role, tc.op)
	}
}

func TestRBAC_NilDenies(t *testing.T) {
	var rbac *policy.RBAC
	assert.False(t, rbac.Allowed(domain.RoleDaerah, policy.OpRead))
}

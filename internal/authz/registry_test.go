package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistryDuplicatesKeepHighest(t *testing.T) {
	reg := NewRegistry([]Grant{
		{Role: RoleStaff, Module: ModuleDocuments, Level: ViewAccess},
		{Role: RoleStaff, Module: ModuleDocuments, Level: EditAccess},
		{Role: RoleStaff, Module: ModuleDocuments, Level: ViewAccess},
	})
	require.Equal(t, EditAccess, reg.Level(RoleStaff, ModuleDocuments))
}

func TestLevelUnknownRoleYieldsNoAccess(t *testing.T) {
	reg := NewRegistry(DefaultGrants())
	require.Equal(t, NoAccess, reg.Level(Role("CAPTAIN"), ModuleDocuments))
	require.Equal(t, NoAccess, reg.Level(RoleStaff, Module("unknown")))
}

func TestGrantsIsTotalAndCopied(t *testing.T) {
	reg := NewRegistry(DefaultGrants())

	grants := reg.Grants(Role("CAPTAIN"))
	require.NotNil(t, grants)
	require.Empty(t, grants)

	// Mutating the copy must not leak into the registry.
	grants = reg.Grants(RoleQMR)
	grants[ModuleAdmin] = EditAccess
	require.Equal(t, NoAccess, reg.Level(RoleQMR, ModuleAdmin))
}

func TestDefaultGrantsShape(t *testing.T) {
	reg := NewRegistry(DefaultGrants())

	require.Equal(t, EditAccess, reg.Level(RoleDirector, ModuleDocuments))
	require.Equal(t, EditAccess, reg.Level(RoleDirector, ModuleAdmin))
	require.Equal(t, NoAccess, reg.Level(RoleDirector, ModuleCrewPortal))

	require.Equal(t, EditAccess, reg.Level(RoleQMR, ModuleDocuments))
	require.Equal(t, ViewAccess, reg.Level(RoleHR, ModuleDocuments))
	require.Equal(t, ViewAccess, reg.Level(RoleStaff, ModuleDocuments))
	require.Equal(t, NoAccess, reg.Level(RoleHR, ModuleAdmin))

	require.Equal(t, ViewAccess, reg.Level(RoleCrew, ModuleCrewPortal))
	require.Equal(t, EditAccess, reg.Level(RoleCrewPortal, ModuleCrewPortal))
	require.Equal(t, NoAccess, reg.Level(RoleCrew, ModuleDocuments))
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("QMR")
	require.True(t, ok)
	require.Equal(t, RoleQMR, role)

	_, ok = ParseRole("qmr")
	require.False(t, ok)
	_, ok = ParseRole("")
	require.False(t, ok)
}

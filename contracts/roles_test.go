package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedStatusesPerRole(t *testing.T) {
	assert.Equal(t, []Status{StatusCreated, StatusReadyForShipping},
		AllowedStatuses(RoleManufacturer))
	assert.Equal(t, []Status{StatusShipped, StatusInTransit, StatusDeliveredToRetailer},
		AllowedStatuses(RoleDistributor))
	assert.Equal(t, []Status{StatusAvailableForSale, StatusSold},
		AllowedStatuses(RoleRetailer))
}

func TestSuperAdminMaySetAnyStatus(t *testing.T) {
	allowed := AllowedStatuses(RoleSuperAdmin)
	require.Len(t, allowed, len(AllStatuses))
	for _, status := range AllStatuses {
		assert.True(t, RoleAllows(RoleSuperAdmin, status), "super_admin should allow %s", status)
	}
}

func TestRoleSubsetsAreDisjoint(t *testing.T) {
	seen := make(map[Status]Role)
	for _, role := range []Role{RoleManufacturer, RoleDistributor, RoleRetailer} {
		for _, status := range AllowedStatuses(role) {
			prev, dup := seen[status]
			require.False(t, dup, "status %s owned by both %s and %s", status, prev, role)
			seen[status] = role
		}
	}
}

func TestRecalledOnlyReachableByAdmin(t *testing.T) {
	assert.False(t, RoleAllows(RoleManufacturer, StatusRecalled))
	assert.False(t, RoleAllows(RoleDistributor, StatusRecalled))
	assert.False(t, RoleAllows(RoleRetailer, StatusRecalled))
	assert.True(t, RoleAllows(RoleSuperAdmin, StatusRecalled))
}

func TestRequiredTransferRole(t *testing.T) {
	role, ok := RequiredTransferRole(StatusReadyForShipping)
	require.True(t, ok)
	assert.Equal(t, RoleDistributor, role)

	role, ok = RequiredTransferRole(StatusDeliveredToRetailer)
	require.True(t, ok)
	assert.Equal(t, RoleRetailer, role)

	for _, status := range []Status{StatusCreated, StatusShipped, StatusInTransit,
		StatusAvailableForSale, StatusSold, StatusRecalled} {
		_, ok := RequiredTransferRole(status)
		assert.False(t, ok, "status %s should not require a transfer", status)
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("distributor")
	require.NoError(t, err)
	assert.Equal(t, RoleDistributor, role)

	_, err = ParseRole("warehouse")
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus("InTransit")
	require.NoError(t, err)
	assert.Equal(t, StatusInTransit, status)

	_, err = ParseStatus("Teleported")
	assert.Error(t, err)
}

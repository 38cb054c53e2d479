package contracts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProduct(custodian string, status Status) *Product {
	return &Product{
		ProductID:     "PROD001",
		Name:          "Sample Widget",
		Owner:         "acme",
		Custodian:     custodian,
		CurrentStatus: status,
		CreatedAt:     1700000000,
		UpdatedAt:     1700000000,
	}
}

func TestProposeTransitionNotCustodian(t *testing.T) {
	product := testProduct("acme", StatusCreated)
	actor := User{Username: "someoneelse", Role: RoleManufacturer}

	_, err := ProposeTransition(product, actor, StatusReadyForShipping, nil, nil, 1700000100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotCustodian))
}

func TestProposeTransitionRoleNotPermitted(t *testing.T) {
	// Every role/status pair outside the allowed set must fail with
	// ErrRoleNotPermitted (custodian check passes by construction).
	for _, role := range []Role{RoleManufacturer, RoleDistributor, RoleRetailer} {
		for _, status := range AllStatuses {
			if RoleAllows(role, status) {
				continue
			}
			product := testProduct("worker", StatusCreated)
			actor := User{Username: "worker", Role: role}

			// Provide a valid transfer target so only the role check can fail.
			transferRole, _ := RequiredTransferRole(status)
			target := &User{Username: "next", Role: transferRole}

			_, err := ProposeTransition(product, actor, status, target, nil, 1700000100)
			require.Error(t, err, "role %s setting %s should fail", role, status)
			assert.True(t, errors.Is(err, ErrRoleNotPermitted),
				"role %s setting %s: got %v", role, status, err)
		}
	}
}

func TestProposeTransitionTransferTargetMissing(t *testing.T) {
	product := testProduct("acme", StatusCreated)
	actor := User{Username: "acme", Role: RoleManufacturer}

	_, err := ProposeTransition(product, actor, StatusReadyForShipping, nil, nil, 1700000100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransferTargetMissing))

	product = testProduct("distA", StatusInTransit)
	actor = User{Username: "distA", Role: RoleDistributor}
	_, err = ProposeTransition(product, actor, StatusDeliveredToRetailer, nil, nil, 1700000100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransferTargetMissing))
}

func TestProposeTransitionTransferTargetRoleMismatch(t *testing.T) {
	product := testProduct("acme", StatusCreated)
	actor := User{Username: "acme", Role: RoleManufacturer}
	wrongTarget := &User{Username: "shopper", Role: RoleRetailer}

	_, err := ProposeTransition(product, actor, StatusReadyForShipping, wrongTarget, nil, 1700000100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransferTargetRoleMismatch))
}

func TestProposeTransitionTransferSuccess(t *testing.T) {
	product := testProduct("acme", StatusCreated)
	actor := User{Username: "acme", Role: RoleManufacturer}
	target := &User{Username: "distA", Role: RoleDistributor}
	location := &GeoPoint{Latitude: 52.52, Longitude: 13.405}

	delta, err := ProposeTransition(product, actor, StatusReadyForShipping, target, location, 1700000100)
	require.NoError(t, err)

	assert.Equal(t, StatusReadyForShipping, delta.NewStatus)
	assert.Equal(t, "distA", delta.NewCustodian)
	assert.True(t, delta.TransferPerformed)
	assert.Equal(t, float64(1700000100), delta.UpdatedAt)
	assert.Equal(t, float64(1700000000), delta.ExpectedUpdatedAt)

	assert.Equal(t, "acme", delta.Event.Actor)
	assert.Equal(t, StatusReadyForShipping, delta.Event.Status)
	require.NotNil(t, delta.Event.Latitude)
	assert.Equal(t, 52.52, *delta.Event.Latitude)
	require.NotNil(t, delta.Event.Longitude)
	assert.Equal(t, 13.405, *delta.Event.Longitude)
}

func TestProposeTransitionNoTransferKeepsCustodian(t *testing.T) {
	product := testProduct("distA", StatusShipped)
	actor := User{Username: "distA", Role: RoleDistributor}

	delta, err := ProposeTransition(product, actor, StatusInTransit, nil, nil, 1700000200)
	require.NoError(t, err)

	assert.Equal(t, "distA", delta.NewCustodian)
	assert.False(t, delta.TransferPerformed)
	assert.Nil(t, delta.Event.Latitude)
	assert.Nil(t, delta.Event.Longitude)
}

func TestSuperAdminRecallOverride(t *testing.T) {
	// Admin is not the custodian and Recalled is outside every other
	// role's set; the override must allow it from any current status.
	admin := User{Username: "admin", Role: RoleSuperAdmin}
	for _, current := range AllStatuses {
		product := testProduct("distA", current)

		delta, err := ProposeTransition(product, admin, StatusRecalled, nil, nil, 1700000300)
		require.NoError(t, err, "recall from %s should succeed", current)
		assert.Equal(t, StatusRecalled, delta.NewStatus)
		assert.Equal(t, "distA", delta.NewCustodian, "recall does not move custody")
	}
}

func TestDeltaApply(t *testing.T) {
	product := testProduct("acme", StatusCreated)
	actor := User{Username: "acme", Role: RoleManufacturer}
	target := &User{Username: "distA", Role: RoleDistributor}

	delta, err := ProposeTransition(product, actor, StatusReadyForShipping, target, nil, 1700000100)
	require.NoError(t, err)

	delta.Apply(product)
	assert.Equal(t, StatusReadyForShipping, product.CurrentStatus)
	assert.Equal(t, "distA", product.Custodian)
	assert.Equal(t, float64(1700000100), product.UpdatedAt)
	assert.Equal(t, "acme", product.Owner, "owner never changes")
}

func TestCustodyChainScenario(t *testing.T) {
	// Manufacturer ships to distA, distA moves the product along, and a
	// stage the distributor does not own is rejected.
	product := testProduct("acme", StatusCreated)
	manufacturer := User{Username: "acme", Role: RoleManufacturer}
	distributor := User{Username: "distA", Role: RoleDistributor}

	delta, err := ProposeTransition(product, manufacturer, StatusReadyForShipping,
		&User{Username: "distA", Role: RoleDistributor}, nil, 1700000100)
	require.NoError(t, err)
	delta.Apply(product)
	assert.Equal(t, "distA", product.Custodian)

	// The manufacturer lost custody and cannot act anymore.
	_, err = ProposeTransition(product, manufacturer, StatusReadyForShipping, nil, nil, 1700000200)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotCustodian))

	delta, err = ProposeTransition(product, distributor, StatusInTransit, nil, nil, 1700000300)
	require.NoError(t, err)
	delta.Apply(product)
	assert.Equal(t, StatusInTransit, product.CurrentStatus)

	_, err = ProposeTransition(product, distributor, StatusAvailableForSale, nil, nil, 1700000400)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRoleNotPermitted))
}

package contracts

import "fmt"

// ProposeTransition decides whether actingUser may move the product to
// target and, if so, computes the resulting delta. It is a pure function
// of its inputs: nothing is written here, and serializing concurrent
// proposals for the same product is the ledger's job (the delta carries
// ExpectedUpdatedAt so stale snapshots are rejected at write time).
//
// Checks run in order and fail fast:
//  1. actingUser must be the current custodian. super_admin is exempt and
//     may act on any product, which is what makes Recalled reachable from
//     anywhere.
//  2. target must be in the acting role's allowed set.
//  3. if target hands custody off, transferTo must be present and hold
//     the required role.
func ProposeTransition(product *Product, actingUser User, target Status,
	transferTo *User, location *GeoPoint, now float64) (*ProductDelta, error) {

	if actingUser.Role != RoleSuperAdmin && product.Custodian != actingUser.Username {
		return nil, fmt.Errorf("%w: current custodian is %q", ErrNotCustodian, product.Custodian)
	}

	if !RoleAllows(actingUser.Role, target) {
		return nil, fmt.Errorf("%w: role %q cannot set status %q", ErrRoleNotPermitted, actingUser.Role, target)
	}

	newCustodian := product.Custodian
	transferPerformed := false
	if requiredRole, ok := RequiredTransferRole(target); ok {
		if transferTo == nil {
			return nil, fmt.Errorf("%w: status %q", ErrTransferTargetMissing, target)
		}
		if transferTo.Role != requiredRole {
			return nil, fmt.Errorf("%w: can only transfer to %q, but %q is a %q",
				ErrTransferTargetRoleMismatch, requiredRole, transferTo.Username, transferTo.Role)
		}
		newCustodian = transferTo.Username
		transferPerformed = true
	}

	event := HistoryEvent{
		ProductID: product.ProductID,
		Status:    target,
		Actor:     actingUser.Username,
		Timestamp: now,
	}
	if location != nil {
		lat, lon := location.Latitude, location.Longitude
		event.Latitude = &lat
		event.Longitude = &lon
	}

	return &ProductDelta{
		ProductID:         product.ProductID,
		NewStatus:         target,
		NewCustodian:      newCustodian,
		UpdatedAt:         now,
		ExpectedUpdatedAt: product.UpdatedAt,
		TransferPerformed: transferPerformed,
		Event:             event,
	}, nil
}

// Apply folds a delta into a product snapshot. The ledger calls this after
// its conflict check; it exists so every writer updates the same fields
// the same way.
func (d *ProductDelta) Apply(product *Product) {
	product.CurrentStatus = d.NewStatus
	product.Custodian = d.NewCustodian
	product.UpdatedAt = d.UpdatedAt
}

package contracts

import "errors"

// Sentinel errors for the custody and order state machines. Callers match
// with errors.Is; the wrapping messages carry the specifics.
var (
	// ErrNotCustodian is returned when someone other than the product's
	// current custodian tries to change its status.
	ErrNotCustodian = errors.New("acting user is not the current custodian")

	// ErrRoleNotPermitted is returned when the acting user's role may not
	// set the requested status.
	ErrRoleNotPermitted = errors.New("role cannot set this status")

	// ErrTransferTargetMissing is returned when the requested status
	// requires a custody transfer but no recipient was named.
	ErrTransferTargetMissing = errors.New("transfer_to_username is required for this status")

	// ErrTransferTargetRoleMismatch is returned when the named recipient
	// does not hold the role the status hands off to.
	ErrTransferTargetRoleMismatch = errors.New("transfer target has the wrong role")

	// ErrInvalidOrderState is returned on an illegal order transition or
	// when someone other than the recipient answers an order.
	ErrInvalidOrderState = errors.New("invalid order state transition")

	// ErrOrderRecipientRole is returned when an order is addressed to a
	// user whose role is not the next one up the supply hierarchy.
	ErrOrderRecipientRole = errors.New("order recipient has the wrong role")

	// ErrConflict is returned by the ledger when a delta was computed
	// against a stale product snapshot. Callers refetch and re-propose.
	ErrConflict = errors.New("product state is stale")

	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrUserNotFound    = errors.New("user not found")
)

package contracts

import "fmt"

// AllowedStatuses returns the statuses a role may set. super_admin may set
// any status, including Recalled; the other roles each own one stage of
// the lifecycle and their sets do not overlap.
func AllowedStatuses(role Role) []Status {
	switch role {
	case RoleManufacturer:
		return []Status{StatusCreated, StatusReadyForShipping}
	case RoleDistributor:
		return []Status{StatusShipped, StatusInTransit, StatusDeliveredToRetailer}
	case RoleRetailer:
		return []Status{StatusAvailableForSale, StatusSold}
	case RoleSuperAdmin:
		all := make([]Status, len(AllStatuses))
		copy(all, AllStatuses)
		return all
	default:
		return nil
	}
}

// RoleAllows reports whether a role may set the given status.
func RoleAllows(role Role, status Status) bool {
	for _, s := range AllowedStatuses(role) {
		if s == status {
			return true
		}
	}
	return false
}

// RequiredTransferRole returns the role a product must be handed to when
// it enters the given status. Most statuses keep the current custodian;
// only the two hand-off points require a transfer. This table varies
// independently of AllowedStatuses and is kept separate on purpose.
func RequiredTransferRole(status Status) (Role, bool) {
	switch status {
	case StatusReadyForShipping:
		return RoleDistributor, true
	case StatusDeliveredToRetailer:
		return RoleRetailer, true
	default:
		return "", false
	}
}

// ParseRole converts a wire role string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleManufacturer:
		return RoleManufacturer, nil
	case RoleDistributor:
		return RoleDistributor, nil
	case RoleRetailer:
		return RoleRetailer, nil
	case RoleSuperAdmin:
		return RoleSuperAdmin, nil
	default:
		return "", fmt.Errorf("invalid role: %s", s)
	}
}

// ParseStatus converts a wire status string into a Status.
func ParseStatus(s string) (Status, error) {
	for _, known := range AllStatuses {
		if Status(s) == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("invalid status: %s", s)
}

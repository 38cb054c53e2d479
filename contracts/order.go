package contracts

import (
	"fmt"

	"github.com/google/uuid"
)

// OrderTargetRole returns the role a buyer orders from, one step up the
// supply hierarchy: retailers order from distributors, distributors from
// manufacturers. Roles at the top cannot place upstream orders.
func OrderTargetRole(buyer Role) (Role, bool) {
	switch buyer {
	case RoleRetailer:
		return RoleDistributor, true
	case RoleDistributor:
		return RoleManufacturer, true
	default:
		return "", false
	}
}

// NewOrder places an upstream order for a product. to is the resolved
// recipient; nil means "broadcast to any eligible supplier", in which
// case resolving a concrete supplier is the caller's concern and ToUser
// stays empty. A named recipient must hold the role one step up from the
// buyer's.
func NewOrder(from User, to *User, productID string, message string, now float64) (*Order, error) {
	expectedRole, ok := OrderTargetRole(from.Role)
	if !ok {
		return nil, fmt.Errorf("%w: role %q cannot place upstream orders", ErrOrderRecipientRole, from.Role)
	}

	toUser := ""
	if to != nil {
		if to.Role != expectedRole {
			return nil, fmt.Errorf("%w: recipient must be a %q, but %q is a %q",
				ErrOrderRecipientRole, expectedRole, to.Username, to.Role)
		}
		toUser = to.Username
	}

	return &Order{
		OrderID:   uuid.NewString(),
		ProductID: productID,
		FromUser:  from.Username,
		ToUser:    toUser,
		Message:   message,
		Status:    OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Respond records the supplier's decision on a pending order. Only the
// order's recipient (or super_admin) may answer, and only while the order
// is Pending. On acceptance the returned TransferHint names the custody
// transfer the supplier should perform next; the workflow itself never
// moves custody.
func Respond(order *Order, actingUser User, decision OrderDecision, note string, now float64) (*Order, *TransferHint, error) {
	if actingUser.Username != order.ToUser && actingUser.Role != RoleSuperAdmin {
		return nil, nil, fmt.Errorf("%w: only recipient %q can answer this order", ErrInvalidOrderState, order.ToUser)
	}
	if order.Status != OrderStatusPending {
		return nil, nil, fmt.Errorf("%w: cannot answer an order in status %q", ErrInvalidOrderState, order.Status)
	}

	updated := *order
	updated.Note = note
	updated.UpdatedAt = now

	switch decision {
	case DecisionAccept:
		updated.Status = OrderStatusAccepted
		hint := &TransferHint{
			NextAction: "redirect_to_custodian_transfer",
			ProductID:  order.ProductID,
			TransferTo: order.FromUser,
		}
		return &updated, hint, nil
	case DecisionReject:
		updated.Status = OrderStatusRejected
		return &updated, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidOrderState, decision)
	}
}

// Fulfill marks an accepted order as fulfilled once the physical custody
// transfer has completed. Fulfilled is terminal.
func Fulfill(order *Order, actingUser User, now float64) (*Order, error) {
	if actingUser.Username != order.ToUser && actingUser.Role != RoleSuperAdmin {
		return nil, fmt.Errorf("%w: only recipient %q can fulfill this order", ErrInvalidOrderState, order.ToUser)
	}
	if order.Status != OrderStatusAccepted {
		return nil, fmt.Errorf("%w: cannot fulfill an order in status %q", ErrInvalidOrderState, order.Status)
	}

	updated := *order
	updated.Status = OrderStatusFulfilled
	updated.UpdatedAt = now
	return &updated, nil
}

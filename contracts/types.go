package contracts

// Product represents a physical item tracked through the supply chain.
// Owner is the manufacturer that created the product and never changes;
// Custodian is whoever is currently responsible for the physical item.
type Product struct {
	ProductID     string  `json:"product_id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Owner         string  `json:"owner"`
	Custodian     string  `json:"custodian"`
	CurrentStatus Status  `json:"current_status"`
	CreatedAt     float64 `json:"created_at"`
	UpdatedAt     float64 `json:"updated_at"`
}

// User identifies an actor in the supply chain and the role it acts under.
type User struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// GeoPoint is an optional capture location for a status change.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// HistoryEvent is one append-only record of a status change.
// Timestamps are epoch seconds, matching the backend wire format.
type HistoryEvent struct {
	ProductID string   `json:"product_id"`
	Status    Status   `json:"status"`
	Actor     string   `json:"by_who"`
	Timestamp float64  `json:"timestamp"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// RawEvent is an event record in whatever shape a source produced it.
// Sources disagree on field names and units; the reconciler normalizes
// them without touching fields it does not recognize.
type RawEvent map[string]interface{}

// TimelineEvent is one reconciled entry of the canonical product timeline.
// UnixMillis is nil when no timestamp could be resolved from the source
// record. Raw keeps the original record so unknown fields survive
// reconciliation and the output can be fed back through Reconcile.
type TimelineEvent struct {
	Status     string   `json:"status"`
	Actor      string   `json:"by_who"`
	UnixMillis *int64   `json:"timestamp_ms,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	BlockIndex *int     `json:"raw_block_index,omitempty"`
	Raw        RawEvent `json:"-"`
}

// Block is one entry of the hash-linked audit chain. Data is the opaque
// event payload; Nonce is stored as produced and never re-derived here.
type Block struct {
	Index        int                    `json:"index"`
	Timestamp    float64                `json:"timestamp"`
	Data         map[string]interface{} `json:"data"`
	PreviousHash string                 `json:"previous_hash"`
	Hash         string                 `json:"hash"`
	Nonce        int                    `json:"nonce"`
}

// ChainFault distinguishes the two ways a chain can fail verification.
type ChainFault string

const (
	ChainFaultLink    ChainFault = "broken_link"
	ChainFaultContent ChainFault = "tampered_content"
)

// VerificationResult is the outcome of checking a block sequence.
// BrokenIndex is set to the index of the first failing block.
type VerificationResult struct {
	Valid       bool       `json:"valid"`
	Message     string     `json:"message"`
	Fault       ChainFault `json:"fault,omitempty"`
	BrokenIndex *int       `json:"first_broken_index,omitempty"`
}

// Order is an upstream purchase request negotiated between two users
// before any custody transfer happens.
type Order struct {
	OrderID   string      `json:"order_id"`
	ProductID string      `json:"product_id"`
	FromUser  string      `json:"from_user"`
	ToUser    string      `json:"to_user"`
	Message   string      `json:"message"`
	Note      string      `json:"note,omitempty"`
	Status    OrderStatus `json:"status"`
	CreatedAt float64     `json:"created_at"`
	UpdatedAt float64     `json:"updated_at"`
}

// TransferHint tells the caller which custody transfer should follow an
// accepted order. Order negotiation and the physical transfer are separate
// authorities; the workflow only hands back the prefill.
type TransferHint struct {
	NextAction string `json:"next_action"`
	ProductID  string `json:"product_id"`
	TransferTo string `json:"transfer_to_username"`
}

// ProductDelta is the outcome of a validated status change: the new state
// the ledger should apply plus the history event to append.
// ExpectedUpdatedAt carries the UpdatedAt of the product snapshot the
// decision was made against, so the ledger can reject stale proposals.
type ProductDelta struct {
	ProductID         string       `json:"product_id"`
	NewStatus         Status       `json:"current_status"`
	NewCustodian      string       `json:"custodian"`
	UpdatedAt         float64      `json:"updated_at"`
	ExpectedUpdatedAt float64      `json:"expected_updated_at"`
	TransferPerformed bool         `json:"transfer_performed"`
	Event             HistoryEvent `json:"event"`
}

// Enums
type Status string

const (
	StatusCreated             Status = "Created"
	StatusReadyForShipping    Status = "ReadyForShipping"
	StatusShipped             Status = "Shipped"
	StatusInTransit           Status = "InTransit"
	StatusDeliveredToRetailer Status = "DeliveredToRetailer"
	StatusAvailableForSale    Status = "AvailableForSale"
	StatusSold                Status = "Sold"
	StatusRecalled            Status = "Recalled"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusCreated,
	StatusReadyForShipping,
	StatusShipped,
	StatusInTransit,
	StatusDeliveredToRetailer,
	StatusAvailableForSale,
	StatusSold,
	StatusRecalled,
}

type Role string

const (
	RoleManufacturer Role = "manufacturer"
	RoleDistributor  Role = "distributor"
	RoleRetailer     Role = "retailer"
	RoleSuperAdmin   Role = "super_admin"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusAccepted  OrderStatus = "Accepted"
	OrderStatusRejected  OrderStatus = "Rejected"
	OrderStatusFulfilled OrderStatus = "Fulfilled"
)

// OrderDecision is the supplier's answer to a pending order.
type OrderDecision string

const (
	DecisionAccept OrderDecision = "Accept"
	DecisionReject OrderDecision = "Reject"
)

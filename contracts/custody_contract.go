package contracts

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// CustodyContract tracks product custody through the supply chain and
// maintains the hash-linked audit chain. It is the ledger authority the
// pure core components (transition engine, reconciler, verifier) operate
// against: all validation happens in those components, this contract only
// fetches state, delegates, and persists.
type CustodyContract struct {
	contractapi.Contract
}

const (
	historyKeyPrefix = "history_"
	orderKeyPrefix   = "order_"
	blockKeyPrefix   = "block_"
	chainTipKey      = "chain_tip"
)

// InitLedger creates the genesis block if the chain is empty.
func (c *CustodyContract) InitLedger(ctx contractapi.TransactionContextInterface) error {
	tipJSON, err := ctx.GetStub().GetState(chainTipKey)
	if err != nil {
		return fmt.Errorf("failed to read chain tip: %v", err)
	}
	if tipJSON != nil {
		return nil
	}

	now, err := txNow(ctx)
	if err != nil {
		return err
	}
	genesis := NewGenesisBlock(now, nil)
	return putBlock(ctx, genesis)
}

// CreateProduct registers a new product with the caller as both owner and
// initial custodian. Only manufacturers create products. latStr/lonStr
// may be empty when no capture location is available.
func (c *CustodyContract) CreateProduct(ctx contractapi.TransactionContextInterface,
	name string, description string, latStr string, lonStr string) (*Product, error) {

	if name == "" {
		return nil, fmt.Errorf("product name is required")
	}

	actor, err := callerUser(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleManufacturer {
		return nil, fmt.Errorf("%w: role %q cannot create products", ErrRoleNotPermitted, actor.Role)
	}

	now, err := txNow(ctx)
	if err != nil {
		return nil, err
	}
	location, err := parseOptionalLocation(latStr, lonStr)
	if err != nil {
		return nil, err
	}

	product := Product{
		ProductID:     uuid.NewString(),
		Name:          name,
		Description:   description,
		Owner:         actor.Username,
		Custodian:     actor.Username,
		CurrentStatus: StatusCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	productJSON, err := json.Marshal(product)
	if err != nil {
		return nil, err
	}
	err = ctx.GetStub().PutState(product.ProductID, productJSON)
	if err != nil {
		return nil, err
	}

	event := HistoryEvent{
		ProductID: product.ProductID,
		Status:    StatusCreated,
		Actor:     actor.Username,
		Timestamp: now,
	}
	if location != nil {
		lat, lon := location.Latitude, location.Longitude
		event.Latitude = &lat
		event.Longitude = &lon
	}
	err = putHistoryEvent(ctx, event)
	if err != nil {
		return nil, err
	}

	_, err = appendChainBlock(ctx, map[string]interface{}{
		"type":              "create_product",
		"product_id":        product.ProductID,
		"status":            string(StatusCreated),
		"action":            "Product Created",
		"owner":             actor.Username,
		"initial_custodian": actor.Username,
		"location":          locationString(location),
	})
	if err != nil {
		return nil, err
	}

	ctx.GetStub().SetEvent("ProductCreated", productJSON)
	return &product, nil
}

// UpdateStatus moves a product to a new status, transferring custody when
// the target status requires it. The decision is made by the transition
// engine over the current snapshot; this method persists the delta and
// records the change on the audit chain.
func (c *CustodyContract) UpdateStatus(ctx contractapi.TransactionContextInterface,
	productID string, statusStr string, transferTo string, latStr string, lonStr string) (*Product, error) {

	actor, err := callerUser(ctx)
	if err != nil {
		return nil, err
	}
	target, err := ParseStatus(statusStr)
	if err != nil {
		return nil, err
	}
	location, err := parseOptionalLocation(latStr, lonStr)
	if err != nil {
		return nil, err
	}
	now, err := txNow(ctx)
	if err != nil {
		return nil, err
	}

	facade := newStateFacade(ctx)
	delta, err := facade.ApplyStatusChange(productID, actor, target, transferTo, location, now)
	if err != nil {
		return nil, err
	}

	blockType := "status_update"
	if delta.TransferPerformed {
		blockType = "custody_transfer"
	}
	_, err = appendChainBlock(ctx, map[string]interface{}{
		"type":          blockType,
		"product_id":    productID,
		"status":        string(target),
		"actor":         actor.Username,
		"new_custodian": delta.NewCustodian,
		"location":      locationString(location),
	})
	if err != nil {
		return nil, err
	}

	// Writes are not readable within the same transaction, so rebuild
	// the updated product from the committed snapshot plus the delta.
	product, err := getProductState(ctx, productID)
	if err != nil {
		return nil, err
	}
	delta.Apply(product)

	productJSON, err := json.Marshal(product)
	if err != nil {
		return nil, err
	}
	ctx.GetStub().SetEvent("StatusUpdated", productJSON)
	return product, nil
}

// GetProduct retrieves a product by ID.
func (c *CustodyContract) GetProduct(ctx contractapi.TransactionContextInterface,
	productID string) (*Product, error) {
	return getProductState(ctx, productID)
}

// ProductExists checks if a product exists.
func (c *CustodyContract) ProductExists(ctx contractapi.TransactionContextInterface,
	productID string) (bool, error) {

	productJSON, err := ctx.GetStub().GetState(productID)
	if err != nil {
		return false, fmt.Errorf("failed to read product: %v", err)
	}
	return productJSON != nil, nil
}

// GetAllProducts returns every product on the ledger. Products live under
// their bare product_id, so prefixed bookkeeping keys are skipped.
func (c *CustodyContract) GetAllProducts(ctx contractapi.TransactionContextInterface) ([]*Product, error) {
	resultsIterator, err := ctx.GetStub().GetStateByRange("", "")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %v", err)
	}
	defer resultsIterator.Close()

	var products []*Product
	for resultsIterator.HasNext() {
		queryResponse, err := resultsIterator.Next()
		if err != nil {
			return nil, err
		}

		key := queryResponse.Key
		if key == chainTipKey ||
			strings.HasPrefix(key, historyKeyPrefix) ||
			strings.HasPrefix(key, orderKeyPrefix) ||
			strings.HasPrefix(key, blockKeyPrefix) ||
			strings.HasPrefix(key, userKeyPrefix) {
			continue
		}

		var product Product
		err = json.Unmarshal(queryResponse.Value, &product)
		if err != nil {
			continue
		}
		if product.ProductID != "" && product.Owner != "" {
			products = append(products, &product)
		}
	}

	return products, nil
}

// DeleteProduct removes a product and its history. super_admin only; the
// removal itself is recorded on the audit chain, so the act of deletion
// stays tamper-evident.
func (c *CustodyContract) DeleteProduct(ctx contractapi.TransactionContextInterface,
	productID string) error {

	actor, err := callerUser(ctx)
	if err != nil {
		return err
	}
	if actor.Role != RoleSuperAdmin {
		return fmt.Errorf("%w: only super admin can delete products", ErrRoleNotPermitted)
	}

	product, err := getProductState(ctx, productID)
	if err != nil {
		return err
	}

	historyIterator, err := ctx.GetStub().GetStateByRange(
		historyKeyPrefix+productID+"_", historyKeyPrefix+productID+"_~")
	if err != nil {
		return err
	}
	defer historyIterator.Close()
	for historyIterator.HasNext() {
		entry, err := historyIterator.Next()
		if err != nil {
			return err
		}
		if err := ctx.GetStub().DelState(entry.Key); err != nil {
			return err
		}
	}

	if err := ctx.GetStub().DelState(product.ProductID); err != nil {
		return err
	}

	_, err = appendChainBlock(ctx, map[string]interface{}{
		"type":       "delete_product",
		"product_id": productID,
		"deleted_by": actor.Username,
	})
	return err
}

// GetTimeline returns the product's reconciled history: stored history
// events merged with the event payloads of its audit blocks.
func (c *CustodyContract) GetTimeline(ctx contractapi.TransactionContextInterface,
	productID string) ([]TimelineEvent, error) {

	if _, err := getProductState(ctx, productID); err != nil {
		return nil, err
	}
	return newStateFacade(ctx).VerifiedTimeline(productID)
}

// GetVerifiedView returns product details, reconciled timeline and the
// chain verification outcome in one call.
func (c *CustodyContract) GetVerifiedView(ctx contractapi.TransactionContextInterface,
	productID string) (*VerifiedView, error) {
	return newStateFacade(ctx).GetVerifiedView(productID)
}

// VerifyChain re-validates the whole audit chain.
func (c *CustodyContract) VerifyChain(ctx contractapi.TransactionContextInterface) (*VerificationResult, error) {
	result, err := newStateFacade(ctx).ChainVerification()
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetBlocks returns the full audit chain in index order.
func (c *CustodyContract) GetBlocks(ctx contractapi.TransactionContextInterface) ([]Block, error) {
	return allBlocksState(ctx)
}

// GetProductBlocks returns the blocks whose payload belongs to a product.
func (c *CustodyContract) GetProductBlocks(ctx contractapi.TransactionContextInterface,
	productID string) ([]Block, error) {
	return productBlocksState(ctx, productID)
}

// ============= ORDERS =============

// OrderResponse pairs an updated order with the follow-up custody
// transfer the supplier should perform, when one is due.
type OrderResponse struct {
	Order      *Order        `json:"order"`
	NextAction *TransferHint `json:"next_action,omitempty"`
}

// CreateOrder places an upstream order for a product. toUsername may be
// empty, in which case the first registered user holding the expected
// supplier role receives it.
func (c *CustodyContract) CreateOrder(ctx contractapi.TransactionContextInterface,
	productID string, toUsername string, message string) (*Order, error) {

	actor, err := callerUser(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := getProductState(ctx, productID); err != nil {
		return nil, err
	}

	expectedRole, ok := OrderTargetRole(actor.Role)
	if !ok {
		return nil, fmt.Errorf("%w: role %q cannot place upstream orders", ErrOrderRecipientRole, actor.Role)
	}

	var recipient *User
	if toUsername != "" {
		recipient, err = resolveUserState(ctx, toUsername)
		if err != nil {
			return nil, err
		}
	} else {
		registry := &UserRegistryContract{}
		candidates, err := registry.GetUsersByRole(ctx, string(expectedRole))
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w: no users with role %q available", ErrUserNotFound, expectedRole)
		}
		recipient = candidates[0]
	}

	now, err := txNow(ctx)
	if err != nil {
		return nil, err
	}

	order, err := NewOrder(actor, recipient, productID, message, now)
	if err != nil {
		return nil, err
	}

	orderJSON, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}
	err = ctx.GetStub().PutState(orderKeyPrefix+order.OrderID, orderJSON)
	if err != nil {
		return nil, err
	}

	ctx.GetStub().SetEvent("OrderCreated", orderJSON)
	return order, nil
}

// RespondOrder records the supplier's Accept or Reject decision on a
// pending order. On acceptance the response carries the transfer prefill;
// the custody transfer itself stays a separate UpdateStatus call.
func (c *CustodyContract) RespondOrder(ctx contractapi.TransactionContextInterface,
	orderID string, decisionStr string, note string) (*OrderResponse, error) {

	actor, err := callerUser(ctx)
	if err != nil {
		return nil, err
	}
	order, err := getOrderState(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var decision OrderDecision
	switch OrderDecision(decisionStr) {
	case DecisionAccept, DecisionReject:
		decision = OrderDecision(decisionStr)
	default:
		return nil, fmt.Errorf("invalid decision: %s", decisionStr)
	}

	now, err := txNow(ctx)
	if err != nil {
		return nil, err
	}

	updated, hint, err := Respond(order, actor, decision, note, now)
	if err != nil {
		return nil, err
	}

	orderJSON, err := json.Marshal(updated)
	if err != nil {
		return nil, err
	}
	err = ctx.GetStub().PutState(orderKeyPrefix+updated.OrderID, orderJSON)
	if err != nil {
		return nil, err
	}

	ctx.GetStub().SetEvent("OrderResponded", orderJSON)
	return &OrderResponse{Order: updated, NextAction: hint}, nil
}

// FulfillOrder marks an accepted order as fulfilled once the physical
// transfer has completed.
func (c *CustodyContract) FulfillOrder(ctx contractapi.TransactionContextInterface,
	orderID string) (*Order, error) {

	actor, err := callerUser(ctx)
	if err != nil {
		return nil, err
	}
	order, err := getOrderState(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now, err := txNow(ctx)
	if err != nil {
		return nil, err
	}

	updated, err := Fulfill(order, actor, now)
	if err != nil {
		return nil, err
	}

	orderJSON, err := json.Marshal(updated)
	if err != nil {
		return nil, err
	}
	err = ctx.GetStub().PutState(orderKeyPrefix+updated.OrderID, orderJSON)
	if err != nil {
		return nil, err
	}

	ctx.GetStub().SetEvent("OrderFulfilled", orderJSON)
	return updated, nil
}

// GetOrder retrieves an order. Only the two parties (or super_admin) may
// read it.
func (c *CustodyContract) GetOrder(ctx contractapi.TransactionContextInterface,
	orderID string) (*Order, error) {

	actor, err := callerUser(ctx)
	if err != nil {
		return nil, err
	}
	order, err := getOrderState(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Username != order.FromUser && actor.Username != order.ToUser && actor.Role != RoleSuperAdmin {
		return nil, fmt.Errorf("access denied to order %s", orderID)
	}
	return order, nil
}

// GetMyOrders returns every order where the caller is sender or receiver.
func (c *CustodyContract) GetMyOrders(ctx contractapi.TransactionContextInterface) ([]*Order, error) {
	actor, err := callerUser(ctx)
	if err != nil {
		return nil, err
	}

	resultsIterator, err := ctx.GetStub().GetStateByRange(orderKeyPrefix, orderKeyPrefix+"~")
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %v", err)
	}
	defer resultsIterator.Close()

	var orders []*Order
	for resultsIterator.HasNext() {
		queryResponse, err := resultsIterator.Next()
		if err != nil {
			return nil, err
		}

		var order Order
		err = json.Unmarshal(queryResponse.Value, &order)
		if err != nil {
			continue
		}
		if order.FromUser == actor.Username || order.ToUser == actor.Username || actor.Role == RoleSuperAdmin {
			orders = append(orders, &order)
		}
	}

	return orders, nil
}

// ============= STATE HELPERS =============

// stateLedger adapts Fabric world state to the facade's ledger interfaces.
// Fabric's per-key read/write sets give the serialization the transition
// engine requires: a proposal endorsed over a stale product snapshot fails
// validation at commit, and the client retries against fresh state.
type stateLedger struct {
	ctx contractapi.TransactionContextInterface
}

func newStateFacade(ctx contractapi.TransactionContextInterface) *ProductLedgerFacade {
	ledger := &stateLedger{ctx: ctx}
	return NewProductLedgerFacade(ledger, ledger, ledger, nil)
}

func (l *stateLedger) GetProduct(productID string) (*Product, error) {
	return getProductState(l.ctx, productID)
}

func (l *stateLedger) GetHistory(productID string) ([]RawEvent, error) {
	resultsIterator, err := l.ctx.GetStub().GetStateByRange(
		historyKeyPrefix+productID+"_", historyKeyPrefix+productID+"_~")
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %v", err)
	}
	defer resultsIterator.Close()

	var events []RawEvent
	for resultsIterator.HasNext() {
		queryResponse, err := resultsIterator.Next()
		if err != nil {
			return nil, err
		}

		var event RawEvent
		err = json.Unmarshal(queryResponse.Value, &event)
		if err != nil {
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

func (l *stateLedger) GetBlocks(productID string) ([]Block, error) {
	return productBlocksState(l.ctx, productID)
}

func (l *stateLedger) AllBlocks() ([]Block, error) {
	return allBlocksState(l.ctx)
}

func (l *stateLedger) AppendStatusChange(delta *ProductDelta) error {
	product, err := getProductState(l.ctx, delta.ProductID)
	if err != nil {
		return err
	}
	if product.UpdatedAt != delta.ExpectedUpdatedAt {
		return fmt.Errorf("%w: product %s changed since the proposal was computed",
			ErrConflict, delta.ProductID)
	}

	delta.Apply(product)

	productJSON, err := json.Marshal(product)
	if err != nil {
		return err
	}
	err = l.ctx.GetStub().PutState(product.ProductID, productJSON)
	if err != nil {
		return err
	}

	return putHistoryEvent(l.ctx, delta.Event)
}

func (l *stateLedger) ResolveUser(username string) (*User, error) {
	return resolveUserState(l.ctx, username)
}

func getProductState(ctx contractapi.TransactionContextInterface, productID string) (*Product, error) {
	productJSON, err := ctx.GetStub().GetState(productID)
	if err != nil {
		return nil, fmt.Errorf("failed to read product: %v", err)
	}
	if productJSON == nil {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	var product Product
	err = json.Unmarshal(productJSON, &product)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func getOrderState(ctx contractapi.TransactionContextInterface, orderID string) (*Order, error) {
	orderJSON, err := ctx.GetStub().GetState(orderKeyPrefix + orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to read order: %v", err)
	}
	if orderJSON == nil {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	var order Order
	err = json.Unmarshal(orderJSON, &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func putHistoryEvent(ctx contractapi.TransactionContextInterface, event HistoryEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%s_%s", historyKeyPrefix, event.ProductID, ctx.GetStub().GetTxID())
	return ctx.GetStub().PutState(key, eventJSON)
}

// appendChainBlock chains a new block with the given payload onto the
// stored tip, creating the genesis block first when the chain is empty.
func appendChainBlock(ctx contractapi.TransactionContextInterface,
	data map[string]interface{}) (*Block, error) {

	now, err := txNow(ctx)
	if err != nil {
		return nil, err
	}

	tip, err := chainTipState(ctx)
	if err != nil {
		return nil, err
	}
	if tip == nil {
		genesis := NewGenesisBlock(now, nil)
		if err := putBlock(ctx, genesis); err != nil {
			return nil, err
		}
		tip = &genesis
	}

	block := NewBlock(tip, now, data, nil)
	if err := putBlock(ctx, block); err != nil {
		return nil, err
	}
	return &block, nil
}

func chainTipState(ctx contractapi.TransactionContextInterface) (*Block, error) {
	tipJSON, err := ctx.GetStub().GetState(chainTipKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain tip: %v", err)
	}
	if tipJSON == nil {
		return nil, nil
	}

	var tip Block
	err = json.Unmarshal(tipJSON, &tip)
	if err != nil {
		return nil, err
	}
	return &tip, nil
}

func putBlock(ctx contractapi.TransactionContextInterface, block Block) error {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%010d", blockKeyPrefix, block.Index)
	if err := ctx.GetStub().PutState(key, blockJSON); err != nil {
		return err
	}
	return ctx.GetStub().PutState(chainTipKey, blockJSON)
}

func allBlocksState(ctx contractapi.TransactionContextInterface) ([]Block, error) {
	resultsIterator, err := ctx.GetStub().GetStateByRange(blockKeyPrefix, blockKeyPrefix+"~")
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %v", err)
	}
	defer resultsIterator.Close()

	var blocks []Block
	for resultsIterator.HasNext() {
		queryResponse, err := resultsIterator.Next()
		if err != nil {
			return nil, err
		}

		var block Block
		err = json.Unmarshal(queryResponse.Value, &block)
		if err != nil {
			continue
		}
		blocks = append(blocks, block)
	}

	return blocks, nil
}

func productBlocksState(ctx contractapi.TransactionContextInterface, productID string) ([]Block, error) {
	all, err := allBlocksState(ctx)
	if err != nil {
		return nil, err
	}

	var blocks []Block
	for _, block := range all {
		if pid, ok := block.Data["product_id"].(string); ok && pid == productID {
			blocks = append(blocks, block)
		}
	}
	return blocks, nil
}

// txNow returns the transaction timestamp as epoch seconds. The tx
// timestamp, not wall clock time, keeps endorsements deterministic.
func txNow(ctx contractapi.TransactionContextInterface) (float64, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction timestamp: %v", err)
	}
	return float64(ts.Seconds) + float64(ts.Nanos)/1e9, nil
}

func parseOptionalLocation(latStr string, lonStr string) (*GeoPoint, error) {
	if latStr == "" || lonStr == "" {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude: %v", err)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude: %v", err)
	}
	return &GeoPoint{Latitude: lat, Longitude: lon}, nil
}

// locationString renders a location the way block payloads store it.
func locationString(location *GeoPoint) string {
	if location == nil {
		return "N/A"
	}
	return fmt.Sprintf("%v,%v", location.Latitude, location.Longitude)
}

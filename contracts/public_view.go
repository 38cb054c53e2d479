package contracts

import (
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// GetPublicProductInfo returns what an unauthenticated scan of a product
// code may see: enough to verify authenticity, nothing about who holds it.
func GetPublicProductInfo(ctx contractapi.TransactionContextInterface,
	productID string) (map[string]interface{}, error) {

	product, err := getProductState(ctx, productID)
	if err != nil {
		return nil, err
	}

	verification, err := newStateFacade(ctx).ChainVerification()
	if err != nil {
		return nil, err
	}

	publicInfo := map[string]interface{}{
		"product_id":     product.ProductID,
		"name":           product.Name,
		"current_status": string(product.CurrentStatus),
		"created_at":     product.CreatedAt,
		"is_recalled":    product.CurrentStatus == StatusRecalled,
		"verified":       verification.Valid,
	}
	return publicInfo, nil
}

// VerifyProduct is the scan-facing endpoint: it confirms the product
// exists and that the audit chain behind its history is intact.
func (c *CustodyContract) VerifyProduct(ctx contractapi.TransactionContextInterface,
	productID string) (map[string]interface{}, error) {

	info, err := GetPublicProductInfo(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("verification failed: %w", err)
	}

	timeline, err := newStateFacade(ctx).VerifiedTimeline(productID)
	if err != nil {
		return nil, err
	}
	info["event_count"] = len(timeline)
	return info, nil
}

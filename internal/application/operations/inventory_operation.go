package operations

import (
	"context"
	"strings"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/ports"
)

// InventoryOperation is an immutable bulk stock update configuration bound to an adapter
type InventoryOperation struct {
	adapter ports.Adapter
	cfg     settings
}

func NewInventoryOperation(adapter ports.Adapter) InventoryOperation {
	return InventoryOperation{adapter: adapter, cfg: defaultSettings()}
}

func (o InventoryOperation) WithBatchSize(n int) InventoryOperation {
	if n > 0 {
		o.cfg.batchSize = n
	}
	return o
}

func (o InventoryOperation) WithValidation(enabled bool) InventoryOperation {
	o.cfg.validate = enabled
	return o
}

func (o InventoryOperation) WithDryRun(enabled bool) InventoryOperation {
	o.cfg.dryRun = enabled
	return o
}

// Sync sets the available quantity of every update
func (o InventoryOperation) Sync(ctx context.Context, updates []domain.InventoryUpdate) BulkResult {
	return runBulk(ctx, o.cfg, updates, bulkStep[domain.InventoryUpdate]{
		key: func(u domain.InventoryUpdate) string {
			if u.SKU != "" {
				return u.SKU
			}
			return u.ItemID
		},
		validate: func(u domain.InventoryUpdate) *domain.Error {
			if strings.TrimSpace(u.SKU) == "" && strings.TrimSpace(u.ItemID) == "" {
				return invalid("sku or item id is required")
			}
			if u.Quantity < 0 {
				return invalid("quantity must not be negative")
			}
			return nil
		},
		call: func(ctx context.Context, u domain.InventoryUpdate) (string, *domain.Error) {
			r := o.adapter.UpdateInventory(ctx, u)
			return r.Data.ItemID, r.Err
		},
	})
}

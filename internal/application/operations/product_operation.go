package operations

import (
	"context"
	"strings"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/ports"
)

// ProductOperation is an immutable bulk product configuration bound to an adapter.
// Each With call returns a modified copy.
type ProductOperation struct {
	adapter ports.Adapter
	cfg     settings
}

// NewProductOperation creates a product operation with validation on and a batch size of 50
func NewProductOperation(adapter ports.Adapter) ProductOperation {
	return ProductOperation{adapter: adapter, cfg: defaultSettings()}
}

// WithBatchSize sets how many items run between cancellation checks
func (o ProductOperation) WithBatchSize(n int) ProductOperation {
	if n > 0 {
		o.cfg.batchSize = n
	}
	return o
}

// WithValidation toggles local input validation
func (o ProductOperation) WithValidation(enabled bool) ProductOperation {
	o.cfg.validate = enabled
	return o
}

// WithDryRun validates items and reports them processed without calling the marketplace
func (o ProductOperation) WithDryRun(enabled bool) ProductOperation {
	o.cfg.dryRun = enabled
	return o
}

func (o ProductOperation) BatchSize() int { return o.cfg.batchSize }
func (o ProductOperation) DryRun() bool   { return o.cfg.dryRun }

// Create creates every product
func (o ProductOperation) Create(ctx context.Context, products []domain.Product) BulkResult {
	return runBulk(ctx, o.cfg, products, bulkStep[domain.Product]{
		key:      productKey,
		validate: validateNewProduct,
		call: func(ctx context.Context, p domain.Product) (string, *domain.Error) {
			r := o.adapter.CreateProduct(ctx, p)
			return r.Data.ID, r.Err
		},
	})
}

// Update updates every product
func (o ProductOperation) Update(ctx context.Context, products []domain.Product) BulkResult {
	return runBulk(ctx, o.cfg, products, bulkStep[domain.Product]{
		key:      productKey,
		validate: validateProductUpdate,
		call: func(ctx context.Context, p domain.Product) (string, *domain.Error) {
			r := o.adapter.UpdateProduct(ctx, p)
			return r.Data.ID, r.Err
		},
	})
}

// Delete deletes every product id
func (o ProductOperation) Delete(ctx context.Context, ids []string) BulkResult {
	return runBulk(ctx, o.cfg, ids, bulkStep[string]{
		key: func(id string) string { return id },
		validate: func(id string) *domain.Error {
			if strings.TrimSpace(id) == "" {
				return invalid("product id is required")
			}
			return nil
		},
		call: func(ctx context.Context, id string) (string, *domain.Error) {
			return id, o.adapter.DeleteProduct(ctx, id).Err
		},
	})
}

func productKey(p domain.Product) string {
	if p.SKU != "" {
		return p.SKU
	}
	return p.ID
}

func validateNewProduct(p domain.Product) *domain.Error {
	if strings.TrimSpace(p.SKU) == "" {
		return invalid("sku is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		return invalid("title is required")
	}
	return validateAmounts(p)
}

func validateProductUpdate(p domain.Product) *domain.Error {
	if strings.TrimSpace(p.ID) == "" && strings.TrimSpace(p.SKU) == "" {
		return invalid("product id or sku is required")
	}
	return validateAmounts(p)
}

func validateAmounts(p domain.Product) *domain.Error {
	if p.Price.IsNegative() {
		return invalid("price must not be negative")
	}
	if p.Quantity < 0 {
		return invalid("quantity must not be negative")
	}
	return nil
}

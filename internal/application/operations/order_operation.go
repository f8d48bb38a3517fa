package operations

import (
	"context"
	"strings"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/ports"
)

// OrderOperation reads orders through an adapter
type OrderOperation struct {
	adapter ports.Adapter
	cfg     settings
}

func NewOrderOperation(adapter ports.Adapter) OrderOperation {
	return OrderOperation{adapter: adapter, cfg: defaultSettings()}
}

func (o OrderOperation) WithBatchSize(n int) OrderOperation {
	if n > 0 {
		o.cfg.batchSize = n
	}
	return o
}

// Fetch loads every order id. Orders holds the fetched orders in id order, failures omitted.
func (o OrderOperation) Fetch(ctx context.Context, ids []string) (BulkResult, []domain.Order) {
	orders := map[string]domain.Order{}
	cfg := o.cfg
	cfg.dryRun = false
	result := runBulk(ctx, cfg, ids, bulkStep[string]{
		key: func(id string) string { return id },
		validate: func(id string) *domain.Error {
			if strings.TrimSpace(id) == "" {
				return invalid("order id is required")
			}
			return nil
		},
		call: func(ctx context.Context, id string) (string, *domain.Error) {
			r := o.adapter.GetOrder(ctx, id)
			if r.Ok() {
				orders[id] = r.Data
			}
			return r.Data.ID, r.Err
		},
	})

	out := make([]domain.Order, 0, len(orders))
	for _, item := range result.Items {
		if order, ok := orders[item.Key]; ok && item.Success {
			out = append(out, order)
		}
	}
	return result, out
}

// List returns one page of orders
func (o OrderOperation) List(ctx context.Context, opts domain.ListOptions) domain.Result[domain.OrderPage] {
	return o.adapter.ListOrders(ctx, opts)
}

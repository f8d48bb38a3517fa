package operations

import (
	"context"
	"strconv"
	"sync/atomic"

	"archie-core-marketplace-layer/internal/domain"
)

// fakeAdapter records calls and fails items whose SKU or id is listed in failing
type fakeAdapter struct {
	calls    int32
	failing  map[string]bool
	products []domain.Product
	orders   map[string]domain.Order
	levels   []domain.InventoryLevel
	pageSize int
}

func (f *fakeAdapter) hit() { atomic.AddInt32(&f.calls, 1) }

func (f *fakeAdapter) fail(key string) *domain.Error {
	if f.failing[key] {
		return domain.NewError(domain.ErrServerError, "upstream rejected "+key)
	}
	return nil
}

func (f *fakeAdapter) Marketplace() domain.Marketplace   { return domain.MarketplaceShopify }
func (f *fakeAdapter) AccountID() string                 { return "fake" }
func (f *fakeAdapter) Requirements() domain.Requirements { return domain.Requirements{} }
func (f *fakeAdapter) Capabilities() domain.Capabilities { return domain.Capabilities{} }
func (f *fakeAdapter) RateLimits() domain.RateLimits     { return domain.RateLimits{} }
func (f *fakeAdapter) ValidateConfiguration() []string   { return nil }
func (f *fakeAdapter) TestConnection(ctx context.Context) domain.ConnectionTestResult {
	return domain.ConnectionTestResult{Success: true}
}

func (f *fakeAdapter) GetProductAttributes(ctx context.Context) domain.Result[[]domain.RawField] {
	return domain.Result[[]domain.RawField]{}
}

func (f *fakeAdapter) GetValueLists(ctx context.Context) domain.Result[[]domain.RawValueList] {
	return domain.Result[[]domain.RawValueList]{}
}

func (f *fakeAdapter) ListProducts(ctx context.Context, opts domain.ListOptions) domain.Result[domain.ProductPage] {
	f.hit()
	offset, _ := strconv.Atoi(opts.Cursor)
	size := f.pageSize
	if size == 0 {
		size = opts.Limit
	}
	end := min(offset+size, len(f.products))
	pg := domain.ProductPage{Items: f.products[offset:end], Total: len(f.products)}
	if end < len(f.products) {
		pg.NextCursor = strconv.Itoa(end)
	}
	return domain.Result[domain.ProductPage]{Data: pg, Status: 200}
}

func (f *fakeAdapter) GetProduct(ctx context.Context, id string) domain.Result[domain.Product] {
	f.hit()
	return domain.Result[domain.Product]{Data: domain.Product{ID: id}}
}

func (f *fakeAdapter) CreateProduct(ctx context.Context, p domain.Product) domain.Result[domain.Product] {
	f.hit()
	if err := f.fail(p.SKU); err != nil {
		return domain.Failure[domain.Product](err, 0)
	}
	p.ID = "id-" + p.SKU
	return domain.Result[domain.Product]{Data: p}
}

func (f *fakeAdapter) UpdateProduct(ctx context.Context, p domain.Product) domain.Result[domain.Product] {
	return f.CreateProduct(ctx, p)
}

func (f *fakeAdapter) DeleteProduct(ctx context.Context, id string) domain.Result[struct{}] {
	f.hit()
	if err := f.fail(id); err != nil {
		return domain.Failure[struct{}](err, 0)
	}
	return domain.Result[struct{}]{}
}

func (f *fakeAdapter) ListOrders(ctx context.Context, opts domain.ListOptions) domain.Result[domain.OrderPage] {
	f.hit()
	var items []domain.Order
	for _, o := range f.orders {
		items = append(items, o)
	}
	return domain.Result[domain.OrderPage]{Data: domain.OrderPage{Items: items}}
}

func (f *fakeAdapter) GetOrder(ctx context.Context, id string) domain.Result[domain.Order] {
	f.hit()
	o, ok := f.orders[id]
	if !ok {
		return domain.Failure[domain.Order](domain.NewError(domain.ErrUnclassified, "order not found"), 0)
	}
	return domain.Result[domain.Order]{Data: o}
}

func (f *fakeAdapter) ListInventory(ctx context.Context, opts domain.ListOptions) domain.Result[domain.InventoryPage] {
	f.hit()
	offset, _ := strconv.Atoi(opts.Cursor)
	size := f.pageSize
	if size == 0 {
		size = opts.Limit
	}
	end := min(offset+size, len(f.levels))
	pg := domain.InventoryPage{Items: f.levels[offset:end], Total: len(f.levels)}
	if end < len(f.levels) {
		pg.NextCursor = strconv.Itoa(end)
	}
	return domain.Result[domain.InventoryPage]{Data: pg, Status: 200}
}

func (f *fakeAdapter) UpdateInventory(ctx context.Context, u domain.InventoryUpdate) domain.Result[domain.InventoryLevel] {
	f.hit()
	if err := f.fail(u.SKU); err != nil {
		return domain.Failure[domain.InventoryLevel](err, 0)
	}
	return domain.Result[domain.InventoryLevel]{Data: domain.InventoryLevel{SKU: u.SKU, ItemID: "item-" + u.SKU, Available: u.Quantity}}
}

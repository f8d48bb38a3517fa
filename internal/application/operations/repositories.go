package operations

import (
	"context"
	"strings"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/ports"
)

// ProductFilter narrows product listings. Empty fields match everything.
type ProductFilter struct {
	Category  string
	Status    string
	Vendor    string
	SKUPrefix string
}

func (f ProductFilter) matches(p domain.Product) bool {
	if f.Category != "" && !strings.EqualFold(f.Category, p.Category) {
		return false
	}
	if f.Status != "" && !strings.EqualFold(f.Status, p.Status) {
		return false
	}
	if f.Vendor != "" && !strings.EqualFold(f.Vendor, p.Vendor) {
		return false
	}
	if f.SKUPrefix != "" && !strings.HasPrefix(p.SKU, f.SKUPrefix) {
		return false
	}
	return true
}

type page[T any] struct {
	items []T
	next  string
	total int
}

// scan reads marketplace pages from p.Cursor until PageSize matches are collected or the listing ends.
// Every match of a consumed page is returned, so a call may yield more than PageSize items.
func scan[T any](ctx context.Context, p *Pagination, fetch func(cursor string, limit int) domain.Result[page[T]], keep func(T) bool) domain.Result[[]T] {
	out := []T{}
	cursor := p.Cursor
	var total int
	var status int
	for i := 0; i < maxScanPages; i++ {
		if ctx.Err() != nil {
			break
		}
		r := fetch(cursor, p.GetLimit())
		if !r.Ok() {
			return domain.Result[[]T]{Err: r.Err, Status: r.Status}
		}
		status = r.Status
		total = r.Data.total
		for _, item := range r.Data.items {
			if keep(item) {
				out = append(out, item)
			}
		}
		cursor = r.Data.next
		if cursor == "" || len(out) >= p.PageSize {
			break
		}
	}
	p.SetNext(cursor, total)
	return domain.Result[[]T]{Data: out, Status: status}
}

// ProductRepository is a read-only filtered view over an adapter's products
type ProductRepository struct {
	adapter ports.Adapter
}

func NewProductRepository(adapter ports.Adapter) *ProductRepository {
	return &ProductRepository{adapter: adapter}
}

// List returns the products matching filter, starting at p.Cursor, and advances p
func (r *ProductRepository) List(ctx context.Context, filter ProductFilter, p *Pagination) domain.Result[[]domain.Product] {
	if p == nil {
		p = NewPagination(DefaultPageSize, "")
	}
	return scan(ctx, p, func(cursor string, limit int) domain.Result[page[domain.Product]] {
		res := r.adapter.ListProducts(ctx, domain.ListOptions{
			Limit:    limit,
			Cursor:   cursor,
			Status:   filter.Status,
			Category: filter.Category,
		})
		return domain.MapResult(res, func(pp domain.ProductPage) (page[domain.Product], error) {
			return page[domain.Product]{items: pp.Items, next: pp.NextCursor, total: pp.Total}, nil
		})
	}, filter.matches)
}

// ByCategory lists the products of one category
func (r *ProductRepository) ByCategory(ctx context.Context, category string, p *Pagination) domain.Result[[]domain.Product] {
	return r.List(ctx, ProductFilter{Category: category}, p)
}

// InventoryRepository is a read-only view over an adapter's stock levels
type InventoryRepository struct {
	adapter ports.Adapter
}

func NewInventoryRepository(adapter ports.Adapter) *InventoryRepository {
	return &InventoryRepository{adapter: adapter}
}

// LowStock returns the levels at or below threshold, starting at p.Cursor, and advances p
func (r *InventoryRepository) LowStock(ctx context.Context, threshold int, p *Pagination) domain.Result[[]domain.InventoryLevel] {
	if p == nil {
		p = NewPagination(DefaultPageSize, "")
	}
	return scan(ctx, p, func(cursor string, limit int) domain.Result[page[domain.InventoryLevel]] {
		res := r.adapter.ListInventory(ctx, domain.ListOptions{Limit: limit, Cursor: cursor})
		return domain.MapResult(res, func(ip domain.InventoryPage) (page[domain.InventoryLevel], error) {
			return page[domain.InventoryLevel]{items: ip.Items, next: ip.NextCursor, total: ip.Total}, nil
		})
	}, func(l domain.InventoryLevel) bool { return l.Available <= threshold })
}

// OrderRepository is a read-only filtered view over an adapter's orders
type OrderRepository struct {
	adapter ports.Adapter
}

func NewOrderRepository(adapter ports.Adapter) *OrderRepository {
	return &OrderRepository{adapter: adapter}
}

// ByStatus lists orders in the marketplace-native status. The marketplace applies the filter.
func (r *OrderRepository) ByStatus(ctx context.Context, status string, p *Pagination) domain.Result[[]domain.Order] {
	if p == nil {
		p = NewPagination(DefaultPageSize, "")
	}
	return scan(ctx, p, func(cursor string, limit int) domain.Result[page[domain.Order]] {
		res := r.adapter.ListOrders(ctx, domain.ListOptions{Limit: limit, Cursor: cursor, Status: status})
		return domain.MapResult(res, func(op domain.OrderPage) (page[domain.Order], error) {
			return page[domain.Order]{items: op.Items, next: op.NextCursor, total: op.Total}, nil
		})
	}, func(domain.Order) bool { return true })
}

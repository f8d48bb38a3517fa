package ports

import (
	"context"

	"archie-core-marketplace-layer/internal/domain"
)

// Adapter defines the operations every marketplace integration exposes.
// Runtime failures are reported in the returned Result, never as Go errors.
type Adapter interface {
	Marketplace() domain.Marketplace
	AccountID() string

	// Static metadata, no network call
	Requirements() domain.Requirements
	Capabilities() domain.Capabilities
	RateLimits() domain.RateLimits
	ValidateConfiguration() []string

	// Connection
	TestConnection(ctx context.Context) domain.ConnectionTestResult

	// Discovery
	GetProductAttributes(ctx context.Context) domain.Result[[]domain.RawField]
	GetValueLists(ctx context.Context) domain.Result[[]domain.RawValueList]

	// Product API
	ListProducts(ctx context.Context, opts domain.ListOptions) domain.Result[domain.ProductPage]
	GetProduct(ctx context.Context, id string) domain.Result[domain.Product]
	CreateProduct(ctx context.Context, product domain.Product) domain.Result[domain.Product]
	UpdateProduct(ctx context.Context, product domain.Product) domain.Result[domain.Product]
	DeleteProduct(ctx context.Context, id string) domain.Result[struct{}]

	// Order API
	ListOrders(ctx context.Context, opts domain.ListOptions) domain.Result[domain.OrderPage]
	GetOrder(ctx context.Context, id string) domain.Result[domain.Order]

	// Inventory API
	ListInventory(ctx context.Context, opts domain.ListOptions) domain.Result[domain.InventoryPage]
	UpdateInventory(ctx context.Context, update domain.InventoryUpdate) domain.Result[domain.InventoryLevel]
}

// AdapterFactory builds the adapter bound to an account
type AdapterFactory interface {
	ForAccount(account *domain.Account) (Adapter, error)
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the marketplace-neutral product shape exchanged with adapters
type Product struct {
	ID          string            `json:"id,omitempty"`
	SKU         string            `json:"sku"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Category    string            `json:"category,omitempty"`
	Vendor      string            `json:"vendor,omitempty"`
	Brand       string            `json:"brand,omitempty"`
	Barcode     string            `json:"barcode,omitempty"`
	Price       decimal.Decimal   `json:"price"`
	Currency    string            `json:"currency,omitempty"`
	Quantity    int               `json:"quantity"`
	Status      string            `json:"status,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	UpdatedAt   *time.Time        `json:"updated_at,omitempty"`
}

// OrderLine is one line of an order
type OrderLine struct {
	SKU      string          `json:"sku"`
	Title    string          `json:"title,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Order is the marketplace-neutral order shape
type Order struct {
	ID        string          `json:"id"`
	Number    string          `json:"number,omitempty"`
	Status    string          `json:"status"`
	Customer  string          `json:"customer,omitempty"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency,omitempty"`
	Lines     []OrderLine     `json:"lines,omitempty"`
	CreatedAt *time.Time      `json:"created_at,omitempty"`
}

// InventoryLevel is the stock of one SKU
type InventoryLevel struct {
	SKU        string `json:"sku"`
	ItemID     string `json:"item_id,omitempty"`
	LocationID string `json:"location_id,omitempty"`
	Available  int    `json:"available"`
}

// InventoryUpdate sets the available quantity of a SKU
type InventoryUpdate struct {
	SKU        string `json:"sku"`
	ItemID     string `json:"item_id,omitempty"`
	LocationID string `json:"location_id,omitempty"`
	Quantity   int    `json:"quantity"`
}

// ListOptions is the pagination and filter input of list operations
type ListOptions struct {
	Limit    int
	Cursor   string // page token, offset or since-id depending on the marketplace
	Status   string
	Category string
}

// PageSize returns the requested limit, bounded to [1, max] with def when unset
func (o ListOptions) PageSize(def, max int) int {
	if o.Limit <= 0 {
		return def
	}
	if o.Limit > max {
		return max
	}
	return o.Limit
}

// ProductPage is one page of products
type ProductPage struct {
	Items      []Product `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
	Total      int       `json:"total,omitempty"`
}

// InventoryPage is one page of stock levels
type InventoryPage struct {
	Items      []InventoryLevel `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
	Total      int              `json:"total,omitempty"`
}

// OrderPage is one page of orders
type OrderPage struct {
	Items      []Order `json:"items"`
	NextCursor string  `json:"next_cursor,omitempty"`
	Total      int     `json:"total,omitempty"`
}

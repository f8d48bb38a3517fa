package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Marketplace identifies one of the supported marketplace integrations
type Marketplace string

const (
	MarketplaceShopify Marketplace = "shopify"
	MarketplaceEbay    Marketplace = "ebay"
	MarketplaceAmazon  Marketplace = "amazon"
	MarketplaceMirakl  Marketplace = "mirakl"
)

// AllMarketplaces lists every supported marketplace in a stable order
func AllMarketplaces() []Marketplace {
	return []Marketplace{MarketplaceShopify, MarketplaceEbay, MarketplaceAmazon, MarketplaceMirakl}
}

// ParseMarketplace normalizes a marketplace name and checks that it is supported
func ParseMarketplace(name string) (Marketplace, error) {
	m := Marketplace(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range AllMarketplaces() {
		if m == known {
			return m, nil
		}
	}
	return "", &ConfigurationError{Marketplace: name, Reason: fmt.Sprintf("unsupported marketplace %q", name)}
}

func (m Marketplace) String() string {
	return string(m)
}

// Operation names a capability an adapter may support
type Operation string

const (
	OpTestConnection    Operation = "test_connection"
	OpListProducts      Operation = "list_products"
	OpGetProduct        Operation = "get_product"
	OpCreateProduct     Operation = "create_product"
	OpUpdateProduct     Operation = "update_product"
	OpDeleteProduct     Operation = "delete_product"
	OpListOrders        Operation = "list_orders"
	OpGetOrder          Operation = "get_order"
	OpListInventory     Operation = "list_inventory"
	OpUpdateInventory   Operation = "update_inventory"
	OpProductAttributes Operation = "product_attributes"
	OpValueLists        Operation = "value_lists"
)

// Capabilities is the set of operations an adapter supports
type Capabilities struct {
	Operations []Operation `json:"operations"`
	// StaticCatalog is true for fixed-schema marketplaces whose field catalog ships with the adapter
	StaticCatalog bool `json:"static_catalog"`
}

// NewCapabilities builds a sorted capability set
func NewCapabilities(static bool, ops ...Operation) Capabilities {
	sorted := append([]Operation(nil), ops...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return Capabilities{Operations: sorted, StaticCatalog: static}
}

// Supports reports whether the operation is part of the set
func (c Capabilities) Supports(op Operation) bool {
	for _, o := range c.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// CredentialField describes one credential key an account must (or may) carry
type CredentialField struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Secret      bool   `json:"secret"`
}

// Requirements is the static credential and documentation metadata of a marketplace
type Requirements struct {
	Marketplace Marketplace       `json:"marketplace"`
	Fields      []CredentialField `json:"fields"`
	DocsURL     string            `json:"docs_url"`
}

// RequiredKeys returns the keys of the mandatory credential fields
func (r Requirements) RequiredKeys() []string {
	keys := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		if f.Required {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// RateLimits is the static request pacing policy of a marketplace.
// A zero RequestsPerMinute means calls are not paced.
type RateLimits struct {
	RequestsPerMinute int `json:"requests_per_minute,omitempty"`
}

package ebay

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/infrastructure/httpexec"
	"archie-core-marketplace-layer/internal/infrastructure/marketplace"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	productionAPI = "https://api.ebay.com"
	sandboxAPI    = "https://api.sandbox.ebay.com"

	DocsURL            = "https://developer.ebay.com/api-docs/sell/inventory/overview.html"
	defaultMarketplace = "EBAY_US"

	requestsPerMinute = 300
	maxPageSize       = 200
	defaultPageSize   = 25
)

//go:embed catalog.yaml
var catalogYAML []byte

var catalog = marketplace.MustLoadCatalog(catalogYAML)

// Requirements returns the credential fields of an eBay account
func Requirements() domain.Requirements {
	return domain.Requirements{
		Marketplace: domain.MarketplaceEbay,
		DocsURL:     DocsURL,
		Fields: []domain.CredentialField{
			{Key: "environment", Label: "Environment", Description: "sandbox or production", Required: true},
			{Key: "client_id", Label: "App ID (client ID)", Required: true},
			{Key: "client_secret", Label: "Cert ID (client secret)", Required: true, Secret: true},
			{Key: "dev_id", Label: "Dev ID", Required: true},
			{Key: "redirect_uri", Label: "RuName (redirect URI)", Description: "Needed only for the user consent flow"},
			{Key: "refresh_token", Label: "User refresh token", Description: "Grants access to the Sell Inventory and Fulfillment APIs", Secret: true},
			{Key: "marketplace_id", Label: "Marketplace ID", Description: "Defaults to " + defaultMarketplace},
		},
	}
}

func Capabilities() domain.Capabilities {
	return domain.NewCapabilities(true,
		domain.OpTestConnection,
		domain.OpListProducts, domain.OpGetProduct, domain.OpCreateProduct, domain.OpUpdateProduct, domain.OpDeleteProduct,
		domain.OpListOrders, domain.OpGetOrder,
		domain.OpListInventory, domain.OpUpdateInventory,
		domain.OpProductAttributes, domain.OpValueLists,
	)
}

func RateLimits() domain.RateLimits {
	return domain.RateLimits{RequestsPerMinute: requestsPerMinute}
}

// Adapter talks to the eBay Sell Inventory, Fulfillment and Taxonomy REST APIs
type Adapter struct {
	marketplace.Base
	apiURL string
	tokens *tokenProvider
}

// NewAdapter creates a new eBay adapter bound to an account
func NewAdapter(account *domain.Account, exec *httpexec.Executor, logger zerolog.Logger) *Adapter {
	a := &Adapter{Base: marketplace.NewBase(account, exec, Requirements(), Capabilities(), RateLimits(), logger)}

	apiURL, tokenURL := productionAPI, productionTokenURL
	if a.Sandbox() {
		apiURL, tokenURL = sandboxAPI, sandboxTokenURL
	}
	a.apiURL = a.Endpoint(apiURL)
	creds := a.Credentials()
	tokenURL = creds.SettingString("token_url", tokenURL)

	a.tokens = newTokenProvider(
		creds.Get("client_id", ""),
		creds.Get("client_secret", ""),
		creds.Get("refresh_token", ""),
		tokenURL,
		exec.HTTPClient(domain.MarketplaceEbay, a.AccountID(), a.RateLimits()),
	)
	return a
}

func (a *Adapter) marketplaceID() string {
	return a.Credentials().Get("marketplace_id", defaultMarketplace)
}

// do authenticates and executes one API call
func (a *Adapter) do(ctx context.Context, op domain.Operation, method, path string, query url.Values, body any) domain.Result[json.RawMessage] {
	if e := a.Check(op); e != nil {
		return marketplace.Fail[json.RawMessage](e)
	}

	start := time.Now()
	token, err := a.tokens.Token()
	if err != nil {
		logger := a.Logger()
		logger.Warn().Err(err).Msg("eBay token request failed")
		return domain.Failure[json.RawMessage](classifyTokenError(err), time.Since(start))
	}

	req := a.NewRequest(method, a.apiURL+path)
	req.Query = query
	req.Body = body
	req.Headers["Authorization"] = "Bearer " + token.AccessToken
	req.Headers["X-EBAY-C-MARKETPLACE-ID"] = a.marketplaceID()
	req.Headers["Content-Language"] = "en-US"
	return a.Executor().Do(ctx, req)
}

// Connection

func (a *Adapter) TestConnection(ctx context.Context) domain.ConnectionTestResult {
	query := url.Values{"marketplace_id": {a.marketplaceID()}}
	raw := a.do(ctx, domain.OpTestConnection, http.MethodGet, "/commerce/taxonomy/v1/get_default_category_tree_id", query, nil)

	type treeResponse struct {
		CategoryTreeID      string `json:"categoryTreeId"`
		CategoryTreeVersion string `json:"categoryTreeVersion"`
	}
	res := marketplace.Decode(raw, func(r treeResponse) (treeResponse, error) { return r, nil })

	details := map[string]any{
		"environment":    a.Credentials().Get("environment", "production"),
		"marketplace_id": a.marketplaceID(),
	}
	if res.Ok() {
		details["category_tree_id"] = res.Data.CategoryTreeID
		details["category_tree_version"] = res.Data.CategoryTreeVersion
	}
	return domain.ConnectionTestFromResult(domain.MarketplaceEbay, res, details)
}

// Discovery

func (a *Adapter) GetProductAttributes(ctx context.Context) domain.Result[[]domain.RawField] {
	if e := a.Check(domain.OpProductAttributes); e != nil {
		return marketplace.Fail[[]domain.RawField](e)
	}
	return domain.Success(catalog.FieldsCopy(), http.StatusOK, 0)
}

func (a *Adapter) GetValueLists(ctx context.Context) domain.Result[[]domain.RawValueList] {
	if e := a.Check(domain.OpValueLists); e != nil {
		return marketplace.Fail[[]domain.RawValueList](e)
	}
	return domain.Success(catalog.ValueListsCopy(), http.StatusOK, 0)
}

// Product API

type inventoryItem struct {
	SKU          string `json:"sku,omitempty"`
	Condition    string `json:"condition,omitempty"`
	Availability struct {
		ShipToLocationAvailability struct {
			Quantity int `json:"quantity"`
		} `json:"shipToLocationAvailability"`
	} `json:"availability"`
	Product struct {
		Title       string              `json:"title,omitempty"`
		Description string              `json:"description,omitempty"`
		Brand       string              `json:"brand,omitempty"`
		Aspects     map[string][]string `json:"aspects,omitempty"`
		EAN         []string            `json:"ean,omitempty"`
		UPC         []string            `json:"upc,omitempty"`
	} `json:"product"`
}

type inventoryPage struct {
	InventoryItems []inventoryItem `json:"inventoryItems"`
	Total          int             `json:"total"`
	Next           string          `json:"next"`
	Limit          int             `json:"limit"`
	Offset         int             `json:"offset"`
}

func (a *Adapter) ListProducts(ctx context.Context, opts domain.ListOptions) domain.Result[domain.ProductPage] {
	res := a.listInventoryItems(ctx, domain.OpListProducts, opts)
	return domain.MapResult(res, func(p inventoryPage) (domain.ProductPage, error) {
		page := domain.ProductPage{Items: make([]domain.Product, 0, len(p.InventoryItems)), Total: p.Total}
		for _, item := range p.InventoryItems {
			page.Items = append(page.Items, toDomainProduct(item))
		}
		page.NextCursor = nextOffset(p.Offset, len(p.InventoryItems), p.Total, p.Next)
		return page, nil
	})
}

func (a *Adapter) listInventoryItems(ctx context.Context, op domain.Operation, opts domain.ListOptions) domain.Result[inventoryPage] {
	query := url.Values{
		"limit":  {strconv.Itoa(opts.PageSize(defaultPageSize, maxPageSize))},
		"offset": {offsetOf(opts.Cursor)},
	}
	raw := a.do(ctx, op, http.MethodGet, "/sell/inventory/v1/inventory_item", query, nil)
	return marketplace.Decode(raw, func(p inventoryPage) (inventoryPage, error) { return p, nil })
}

func (a *Adapter) GetProduct(ctx context.Context, sku string) domain.Result[domain.Product] {
	if strings.TrimSpace(sku) == "" {
		return marketplace.Invalid[domain.Product]("sku is required")
	}
	raw := a.do(ctx, domain.OpGetProduct, http.MethodGet, "/sell/inventory/v1/inventory_item/"+url.PathEscape(sku), nil, nil)
	return marketplace.Decode(raw, func(item inventoryItem) (domain.Product, error) {
		return toDomainProduct(item), nil
	})
}

// CreateProduct creates or replaces the inventory item keyed by SKU
func (a *Adapter) CreateProduct(ctx context.Context, product domain.Product) domain.Result[domain.Product] {
	return a.putInventoryItem(ctx, domain.OpCreateProduct, product)
}

func (a *Adapter) UpdateProduct(ctx context.Context, product domain.Product) domain.Result[domain.Product] {
	return a.putInventoryItem(ctx, domain.OpUpdateProduct, product)
}

func (a *Adapter) putInventoryItem(ctx context.Context, op domain.Operation, product domain.Product) domain.Result[domain.Product] {
	if strings.TrimSpace(product.SKU) == "" {
		return marketplace.Invalid[domain.Product]("sku is required")
	}
	raw := a.do(ctx, op, http.MethodPut, "/sell/inventory/v1/inventory_item/"+url.PathEscape(product.SKU), nil, fromDomainProduct(product))
	return domain.MapResult(raw, func(json.RawMessage) (domain.Product, error) {
		out := product
		out.ID = product.SKU
		return out, nil
	})
}

func (a *Adapter) DeleteProduct(ctx context.Context, sku string) domain.Result[struct{}] {
	if strings.TrimSpace(sku) == "" {
		return marketplace.Invalid[struct{}]("sku is required")
	}
	return marketplace.Discard(a.do(ctx, domain.OpDeleteProduct, http.MethodDelete, "/sell/inventory/v1/inventory_item/"+url.PathEscape(sku), nil, nil))
}

// Order API

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type order struct {
	OrderID                string `json:"orderId"`
	OrderFulfillmentStatus string `json:"orderFulfillmentStatus"`
	CreationDate           string `json:"creationDate"`
	Buyer                  struct {
		Username string `json:"username"`
	} `json:"buyer"`
	PricingSummary struct {
		Total amount `json:"total"`
	} `json:"pricingSummary"`
	LineItems []struct {
		SKU          string `json:"sku"`
		Title        string `json:"title"`
		Quantity     int    `json:"quantity"`
		LineItemCost amount `json:"lineItemCost"`
	} `json:"lineItems"`
}

type orderPage struct {
	Orders []order `json:"orders"`
	Total  int     `json:"total"`
	Next   string  `json:"next"`
	Offset int     `json:"offset"`
}

func (a *Adapter) ListOrders(ctx context.Context, opts domain.ListOptions) domain.Result[domain.OrderPage] {
	query := url.Values{
		"limit":  {strconv.Itoa(opts.PageSize(defaultPageSize, maxPageSize))},
		"offset": {offsetOf(opts.Cursor)},
	}
	if opts.Status != "" {
		query.Set("filter", "orderfulfillmentstatus:{"+opts.Status+"}")
	}
	raw := a.do(ctx, domain.OpListOrders, http.MethodGet, "/sell/fulfillment/v1/order", query, nil)
	return marketplace.Decode(raw, func(p orderPage) (domain.OrderPage, error) {
		page := domain.OrderPage{Items: make([]domain.Order, 0, len(p.Orders)), Total: p.Total}
		for _, o := range p.Orders {
			page.Items = append(page.Items, toDomainOrder(o))
		}
		page.NextCursor = nextOffset(p.Offset, len(p.Orders), p.Total, p.Next)
		return page, nil
	})
}

func (a *Adapter) GetOrder(ctx context.Context, id string) domain.Result[domain.Order] {
	if strings.TrimSpace(id) == "" {
		return marketplace.Invalid[domain.Order]("order id is required")
	}
	raw := a.do(ctx, domain.OpGetOrder, http.MethodGet, "/sell/fulfillment/v1/order/"+url.PathEscape(id), nil, nil)
	return marketplace.Decode(raw, func(o order) (domain.Order, error) { return toDomainOrder(o), nil })
}

// Inventory API

func (a *Adapter) ListInventory(ctx context.Context, opts domain.ListOptions) domain.Result[domain.InventoryPage] {
	res := a.listInventoryItems(ctx, domain.OpListInventory, opts)
	return domain.MapResult(res, func(p inventoryPage) (domain.InventoryPage, error) {
		page := domain.InventoryPage{Items: make([]domain.InventoryLevel, 0, len(p.InventoryItems)), Total: p.Total}
		for _, item := range p.InventoryItems {
			page.Items = append(page.Items, domain.InventoryLevel{
				SKU:       item.SKU,
				Available: item.Availability.ShipToLocationAvailability.Quantity,
			})
		}
		page.NextCursor = nextOffset(p.Offset, len(p.InventoryItems), p.Total, p.Next)
		return page, nil
	})
}

func (a *Adapter) UpdateInventory(ctx context.Context, update domain.InventoryUpdate) domain.Result[domain.InventoryLevel] {
	if strings.TrimSpace(update.SKU) == "" {
		return marketplace.Invalid[domain.InventoryLevel]("sku is required")
	}

	type quantityRequest struct {
		SKU                        string `json:"sku"`
		ShipToLocationAvailability struct {
			Quantity int `json:"quantity"`
		} `json:"shipToLocationAvailability"`
	}
	item := quantityRequest{SKU: update.SKU}
	item.ShipToLocationAvailability.Quantity = update.Quantity
	body := map[string]any{"requests": []quantityRequest{item}}

	type bulkResponse struct {
		Responses []struct {
			SKU        string `json:"sku"`
			StatusCode int    `json:"statusCode"`
			Errors     []struct {
				Message string `json:"message"`
			} `json:"errors"`
		} `json:"responses"`
	}

	raw := a.do(ctx, domain.OpUpdateInventory, http.MethodPost, "/sell/inventory/v1/bulk_update_price_quantity", nil, body)
	res := marketplace.Decode(raw, func(r bulkResponse) (bulkResponse, error) { return r, nil })
	if !res.Ok() {
		return marketplace.Fail[domain.InventoryLevel](res.Err)
	}
	for _, r := range res.Data.Responses {
		if r.StatusCode >= 300 {
			msg := "quantity update rejected"
			if len(r.Errors) > 0 {
				msg = r.Errors[0].Message
			}
			e := domain.NewError(httpexec.KindForStatus(r.StatusCode), msg)
			e.Status = r.StatusCode
			return domain.Failure[domain.InventoryLevel](e, res.Duration)
		}
	}
	return domain.Success(domain.InventoryLevel{SKU: update.SKU, Available: update.Quantity}, res.Status, res.Duration)
}

func toDomainProduct(item inventoryItem) domain.Product {
	p := domain.Product{
		ID:          item.SKU,
		SKU:         item.SKU,
		Title:       item.Product.Title,
		Description: item.Product.Description,
		Brand:       item.Product.Brand,
		Quantity:    item.Availability.ShipToLocationAvailability.Quantity,
		Status:      item.Condition,
	}
	if len(item.Product.EAN) > 0 {
		p.Barcode = item.Product.EAN[0]
	} else if len(item.Product.UPC) > 0 {
		p.Barcode = item.Product.UPC[0]
	}
	if len(item.Product.Aspects) > 0 {
		p.Attributes = make(map[string]string, len(item.Product.Aspects))
		for k, vs := range item.Product.Aspects {
			p.Attributes[k] = strings.Join(vs, ", ")
		}
	}
	return p
}

func fromDomainProduct(p domain.Product) inventoryItem {
	var item inventoryItem
	item.Condition = p.Attributes["condition"]
	if item.Condition == "" {
		item.Condition = "NEW"
	}
	item.Availability.ShipToLocationAvailability.Quantity = p.Quantity
	item.Product.Title = p.Title
	item.Product.Description = p.Description
	item.Product.Brand = p.Brand
	if p.Barcode != "" {
		item.Product.EAN = []string{p.Barcode}
	}
	for k, v := range p.Attributes {
		if k == "condition" {
			continue
		}
		if item.Product.Aspects == nil {
			item.Product.Aspects = map[string][]string{}
		}
		item.Product.Aspects[k] = []string{v}
	}
	return item
}

func toDomainOrder(o order) domain.Order {
	out := domain.Order{
		ID:       o.OrderID,
		Number:   o.OrderID,
		Status:   o.OrderFulfillmentStatus,
		Customer: o.Buyer.Username,
		Total:    parseAmount(o.PricingSummary.Total.Value),
		Currency: o.PricingSummary.Total.Currency,
	}
	if t, err := time.Parse(time.RFC3339, o.CreationDate); err == nil {
		out.CreatedAt = &t
	}
	for _, li := range o.LineItems {
		out.Lines = append(out.Lines, domain.OrderLine{
			SKU:      li.SKU,
			Title:    li.Title,
			Quantity: li.Quantity,
			Price:    parseAmount(li.LineItemCost.Value),
		})
	}
	return out
}

func parseAmount(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func offsetOf(cursor string) string {
	if n, err := strconv.Atoi(cursor); err == nil && n > 0 {
		return strconv.Itoa(n)
	}
	return "0"
}

func nextOffset(offset, count, total int, next string) string {
	if next == "" && offset+count >= total {
		return ""
	}
	if count == 0 {
		return ""
	}
	return strconv.Itoa(offset + count)
}

package shopify

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/infrastructure/httpexec"
	"archie-core-marketplace-layer/internal/infrastructure/marketplace"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	DefaultAPIVersion = "2024-01"
	DocsURL           = "https://shopify.dev/docs/api/admin-rest"

	// REST Admin API leaky bucket drains at 2 requests per second
	requestsPerMinute = 120
	maxPageSize       = 250
	defaultPageSize   = 50
)

//go:embed catalog.yaml
var catalogYAML []byte

var catalog = marketplace.MustLoadCatalog(catalogYAML)

// Requirements returns the credential fields of a Shopify account
func Requirements() domain.Requirements {
	return domain.Requirements{
		Marketplace: domain.MarketplaceShopify,
		DocsURL:     DocsURL,
		Fields: []domain.CredentialField{
			{Key: "store_url", Label: "Store URL", Description: "The shop domain, e.g. my-store.myshopify.com", Required: true},
			{Key: "access_token", Label: "Admin API access token", Description: "Token of a custom app with product, order and inventory scopes", Required: true, Secret: true},
			{Key: "api_version", Label: "API version", Description: "Admin API version, defaults to " + DefaultAPIVersion},
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

// Adapter talks to the Shopify Admin REST API through go-shopify
type Adapter struct {
	marketplace.Base
	app goshopify.App
}

// NewAdapter creates a new Shopify adapter bound to an account
func NewAdapter(account *domain.Account, exec *httpexec.Executor, logger zerolog.Logger) *Adapter {
	return &Adapter{
		Base: marketplace.NewBase(account, exec, Requirements(), Capabilities(), RateLimits(), logger),
		app:  goshopify.App{},
	}
}

// createClient is a helper to create a goshopify client routed through the executor transport
func (a *Adapter) createClient() (*goshopify.Client, error) {
	creds := a.Credentials()

	httpClient := a.Executor().HTTPClient(domain.MarketplaceShopify, a.AccountID(), a.RateLimits())
	if base := creds.SettingString("base_url", ""); base != "" {
		target, err := url.Parse(base)
		if err != nil || target.Host == "" {
			return nil, fmt.Errorf("invalid base_url %q", base)
		}
		httpClient.Transport = &rewriteTransport{target: target, next: httpClient.Transport}
	}

	client, err := goshopify.NewClient(
		a.app,
		shopName(creds.Get("store_url", "")),
		creds.Get("access_token", ""),
		goshopify.WithVersion(creds.Get("api_version", DefaultAPIVersion)),
		goshopify.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// call checks the operation, builds a client and times fn, classifying any error it returns
func call[T any](ctx context.Context, a *Adapter, op domain.Operation, okStatus int, fn func(*goshopify.Client) (T, error)) domain.Result[T] {
	if e := a.Check(op); e != nil {
		return marketplace.Fail[T](e)
	}
	client, err := a.createClient()
	if err != nil {
		return marketplace.Fail[T](domain.NewError(domain.ErrConfiguration, err.Error()))
	}

	start := time.Now()
	out, err := fn(client)
	duration := time.Since(start)
	if err != nil {
		logger := a.Logger()
		logger.Warn().Err(err).Str("operation", string(op)).Msg("Shopify call failed")
		return domain.Failure[T](classifyError(err), duration)
	}
	return domain.Success(out, okStatus, duration)
}

// Connection

func (a *Adapter) TestConnection(ctx context.Context) domain.ConnectionTestResult {
	details := map[string]any{"store_url": a.Credentials().Get("store_url", "")}
	res := call(ctx, a, domain.OpTestConnection, http.StatusOK, func(c *goshopify.Client) (*goshopify.Shop, error) {
		return c.Shop.Get(ctx, nil)
	})
	if res.Ok() && res.Data != nil {
		details["shop_name"] = res.Data.Name
		details["domain"] = res.Data.Domain
		details["plan"] = res.Data.PlanName
		details["currency"] = res.Data.Currency
		details["api_version"] = a.Credentials().Get("api_version", DefaultAPIVersion)
	}
	return domain.ConnectionTestFromResult(domain.MarketplaceShopify, res, details)
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

type productQuery struct {
	Limit       int    `url:"limit,omitempty"`
	PageInfo    string `url:"page_info,omitempty"`
	Status      string `url:"status,omitempty"`
	ProductType string `url:"product_type,omitempty"`
}

func (a *Adapter) ListProducts(ctx context.Context, opts domain.ListOptions) domain.Result[domain.ProductPage] {
	query := productQuery{Limit: opts.PageSize(defaultPageSize, maxPageSize)}
	if opts.Cursor != "" {
		// Shopify rejects filters alongside page_info
		query.PageInfo = opts.Cursor
	} else {
		query.Status = opts.Status
		query.ProductType = opts.Category
	}

	return call(ctx, a, domain.OpListProducts, http.StatusOK, func(c *goshopify.Client) (domain.ProductPage, error) {
		products, pagination, err := c.Product.ListWithPagination(ctx, query)
		if err != nil {
			return domain.ProductPage{}, fmt.Errorf("failed to list products: %w", err)
		}
		page := domain.ProductPage{Items: make([]domain.Product, 0, len(products))}
		for _, p := range products {
			page.Items = append(page.Items, toDomainProduct(p))
		}
		if pagination != nil && pagination.NextPageOptions != nil {
			page.NextCursor = pagination.NextPageOptions.PageInfo
		}
		return page, nil
	})
}

func (a *Adapter) GetProduct(ctx context.Context, id string) domain.Result[domain.Product] {
	productID, err := parseID(id)
	if err != nil {
		return marketplace.Invalid[domain.Product]("invalid product id %q", id)
	}
	return call(ctx, a, domain.OpGetProduct, http.StatusOK, func(c *goshopify.Client) (domain.Product, error) {
		product, err := c.Product.Get(ctx, productID, nil)
		if err != nil {
			return domain.Product{}, fmt.Errorf("failed to get product: %w", err)
		}
		return toDomainProduct(*product), nil
	})
}

func (a *Adapter) CreateProduct(ctx context.Context, product domain.Product) domain.Result[domain.Product] {
	return call(ctx, a, domain.OpCreateProduct, http.StatusCreated, func(c *goshopify.Client) (domain.Product, error) {
		created, err := c.Product.Create(ctx, fromDomainProduct(product))
		if err != nil {
			return domain.Product{}, fmt.Errorf("failed to create product: %w", err)
		}
		return toDomainProduct(*created), nil
	})
}

func (a *Adapter) UpdateProduct(ctx context.Context, product domain.Product) domain.Result[domain.Product] {
	productID, err := parseID(product.ID)
	if err != nil {
		return marketplace.Invalid[domain.Product]("invalid product id %q", product.ID)
	}
	return call(ctx, a, domain.OpUpdateProduct, http.StatusOK, func(c *goshopify.Client) (domain.Product, error) {
		update := fromDomainProduct(product)
		update.Id = productID
		updated, err := c.Product.Update(ctx, update)
		if err != nil {
			return domain.Product{}, fmt.Errorf("failed to update product: %w", err)
		}
		return toDomainProduct(*updated), nil
	})
}

func (a *Adapter) DeleteProduct(ctx context.Context, id string) domain.Result[struct{}] {
	productID, err := parseID(id)
	if err != nil {
		return marketplace.Invalid[struct{}]("invalid product id %q", id)
	}
	return call(ctx, a, domain.OpDeleteProduct, http.StatusOK, func(c *goshopify.Client) (struct{}, error) {
		if err := c.Product.Delete(ctx, productID); err != nil {
			return struct{}{}, fmt.Errorf("failed to delete product: %w", err)
		}
		return struct{}{}, nil
	})
}

// Order API

type orderQuery struct {
	Limit   int    `url:"limit,omitempty"`
	SinceID string `url:"since_id,omitempty"`
	Status  string `url:"status,omitempty"`
}

func (a *Adapter) ListOrders(ctx context.Context, opts domain.ListOptions) domain.Result[domain.OrderPage] {
	limit := opts.PageSize(defaultPageSize, maxPageSize)
	status := opts.Status
	if status == "" {
		status = "any"
	}
	query := orderQuery{Limit: limit, SinceID: opts.Cursor, Status: status}

	return call(ctx, a, domain.OpListOrders, http.StatusOK, func(c *goshopify.Client) (domain.OrderPage, error) {
		orders, err := c.Order.List(ctx, query)
		if err != nil {
			return domain.OrderPage{}, fmt.Errorf("failed to list orders: %w", err)
		}
		page := domain.OrderPage{Items: make([]domain.Order, 0, len(orders))}
		for _, o := range orders {
			page.Items = append(page.Items, toDomainOrder(o))
		}
		if len(orders) == limit {
			page.NextCursor = strconv.FormatUint(orders[len(orders)-1].Id, 10)
		}
		return page, nil
	})
}

func (a *Adapter) GetOrder(ctx context.Context, id string) domain.Result[domain.Order] {
	orderID, err := parseID(id)
	if err != nil {
		return marketplace.Invalid[domain.Order]("invalid order id %q", id)
	}
	return call(ctx, a, domain.OpGetOrder, http.StatusOK, func(c *goshopify.Client) (domain.Order, error) {
		order, err := c.Order.Get(ctx, orderID, nil)
		if err != nil {
			return domain.Order{}, fmt.Errorf("failed to get order: %w", err)
		}
		return toDomainOrder(*order), nil
	})
}

// Inventory API

// ListInventory reports variant stock, one level per SKU. Pages follow the product listing.
func (a *Adapter) ListInventory(ctx context.Context, opts domain.ListOptions) domain.Result[domain.InventoryPage] {
	query := productQuery{Limit: opts.PageSize(defaultPageSize, maxPageSize), PageInfo: opts.Cursor}
	return call(ctx, a, domain.OpListInventory, http.StatusOK, func(c *goshopify.Client) (domain.InventoryPage, error) {
		products, pagination, err := c.Product.ListWithPagination(ctx, query)
		if err != nil {
			return domain.InventoryPage{}, fmt.Errorf("failed to list inventory: %w", err)
		}
		page := domain.InventoryPage{Items: []domain.InventoryLevel{}}
		for _, p := range products {
			for _, v := range p.Variants {
				page.Items = append(page.Items, domain.InventoryLevel{
					SKU:       v.Sku,
					ItemID:    strconv.FormatUint(v.InventoryItemId, 10),
					Available: v.InventoryQuantity,
				})
			}
		}
		if pagination != nil && pagination.NextPageOptions != nil {
			page.NextCursor = pagination.NextPageOptions.PageInfo
		}
		return page, nil
	})
}

func (a *Adapter) UpdateInventory(ctx context.Context, update domain.InventoryUpdate) domain.Result[domain.InventoryLevel] {
	locationID := update.LocationID
	if locationID == "" {
		locationID = a.Credentials().SettingString("location_id", "")
	}
	itemID, err := parseID(update.ItemID)
	if err != nil {
		return marketplace.Invalid[domain.InventoryLevel]("inventory item id is required for sku %q", update.SKU)
	}
	locID, err := parseID(locationID)
	if err != nil {
		return marketplace.Invalid[domain.InventoryLevel]("location id is required for sku %q", update.SKU)
	}

	return call(ctx, a, domain.OpUpdateInventory, http.StatusOK, func(c *goshopify.Client) (domain.InventoryLevel, error) {
		level, err := c.InventoryLevel.Set(ctx, goshopify.InventoryLevel{
			InventoryItemId: itemID,
			LocationId:      locID,
			Available:       update.Quantity,
		})
		if err != nil {
			return domain.InventoryLevel{}, fmt.Errorf("failed to update inventory level: %w", err)
		}
		return domain.InventoryLevel{
			SKU:        update.SKU,
			ItemID:     strconv.FormatUint(level.InventoryItemId, 10),
			LocationID: strconv.FormatUint(level.LocationId, 10),
			Available:  level.Available,
		}, nil
	})
}

// classifyError maps go-shopify errors onto the error taxonomy
func classifyError(err error) *domain.Error {
	var rateErr goshopify.RateLimitError
	if errors.As(err, &rateErr) {
		e := domain.NewError(domain.ErrRateLimitExceeded, rateErr.Error())
		e.Status = http.StatusTooManyRequests
		e.Detail = map[string]any{"retry_after": rateErr.RetryAfter}
		return e
	}
	var respErr goshopify.ResponseError
	if errors.As(err, &respErr) {
		e := domain.NewError(httpexec.KindForStatus(respErr.Status), respErr.Error())
		e.Status = respErr.Status
		if len(respErr.Errors) > 0 {
			e.Detail = respErr.Errors
		}
		return e
	}
	return httpexec.TransportError(err)
}

func toDomainProduct(p goshopify.Product) domain.Product {
	out := domain.Product{
		ID:          strconv.FormatUint(p.Id, 10),
		Title:       p.Title,
		Description: p.BodyHTML,
		Vendor:      p.Vendor,
		Category:    p.ProductType,
		Status:      string(p.Status),
		Tags:        splitTags(p.Tags),
		UpdatedAt:   p.UpdatedAt,
	}
	if len(p.Variants) > 0 {
		v := p.Variants[0]
		out.SKU = v.Sku
		out.Barcode = v.Barcode
		out.Quantity = v.InventoryQuantity
		if v.Price != nil {
			out.Price = *v.Price
		}
	}
	return out
}

func fromDomainProduct(p domain.Product) goshopify.Product {
	price := p.Price
	return goshopify.Product{
		Title:       p.Title,
		BodyHTML:    p.Description,
		Vendor:      p.Vendor,
		ProductType: p.Category,
		Tags:        strings.Join(p.Tags, ", "),
		Variants: []goshopify.Variant{{
			Sku:               p.SKU,
			Barcode:           p.Barcode,
			Price:             &price,
			InventoryQuantity: p.Quantity,
		}},
	}
}

func toDomainOrder(o goshopify.Order) domain.Order {
	out := domain.Order{
		ID:        strconv.FormatUint(o.Id, 10),
		Number:    o.Name,
		Status:    string(o.FinancialStatus),
		Customer:  o.Email,
		Currency:  o.Currency,
		CreatedAt: o.CreatedAt,
	}
	if o.TotalPrice != nil {
		out.Total = *o.TotalPrice
	}
	for _, li := range o.LineItems {
		line := domain.OrderLine{SKU: li.SKU, Title: li.Title, Quantity: li.Quantity, Price: decimal.Zero}
		if li.Price != nil {
			line.Price = *li.Price
		}
		out.Lines = append(out.Lines, line)
	}
	return out
}

func splitTags(tags string) []string {
	var out []string
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseID(id string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(id), 10, 64)
}

// shopName strips the scheme and path from a store URL
func shopName(storeURL string) string {
	name := strings.TrimSpace(storeURL)
	name = strings.TrimPrefix(name, "https://")
	name = strings.TrimPrefix(name, "http://")
	if i := strings.Index(name, "/"); i >= 0 {
		name = name[:i]
	}
	return name
}

// rewriteTransport sends SDK requests to the base_url host instead of the shop domain
type rewriteTransport struct {
	target *url.URL
	next   http.RoundTripper
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	if t.target.Path != "" && t.target.Path != "/" {
		out.URL.Path = path.Join(t.target.Path, req.URL.Path)
	}
	out.Host = t.target.Host
	return t.next.RoundTrip(out)
}

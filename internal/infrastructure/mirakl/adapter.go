package mirakl

import (
	"context"
	"encoding/json"
	"fmt"
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
	DocsURL = "https://developer.mirakl.com/content/product/mmp/rest/seller/openapi3"

	requestsPerMinute = 60
	maxPageSize       = 100
	defaultPageSize   = 10

	// new condition in the default offer state list
	defaultOfferState = "11"
)

// Requirements returns the credential fields of a Mirakl seller account
func Requirements() domain.Requirements {
	return domain.Requirements{
		Marketplace: domain.MarketplaceMirakl,
		DocsURL:     DocsURL,
		Fields: []domain.CredentialField{
			{Key: "api_url", Label: "API URL", Description: "Base URL of the operator's Mirakl instance", Required: true},
			{Key: "api_key", Label: "Shop API key", Required: true, Secret: true},
			{Key: "operator", Label: "Operator", Description: "Operator the shop sells on", Required: true},
			{Key: "shop_id", Label: "Shop ID", Description: "Needed only for multi-shop API keys"},
		},
	}
}

// Capabilities lists what a Mirakl seller key can do.
// Products are created through asynchronous catalog imports, which are not supported.
func Capabilities() domain.Capabilities {
	return domain.NewCapabilities(false,
		domain.OpTestConnection,
		domain.OpListProducts, domain.OpGetProduct, domain.OpUpdateProduct, domain.OpDeleteProduct,
		domain.OpListOrders, domain.OpGetOrder,
		domain.OpListInventory, domain.OpUpdateInventory,
		domain.OpProductAttributes, domain.OpValueLists,
	)
}

func RateLimits() domain.RateLimits {
	return domain.RateLimits{RequestsPerMinute: requestsPerMinute}
}

// Adapter talks to the seller API of a Mirakl operator
type Adapter struct {
	marketplace.Base
}

// NewAdapter creates a new Mirakl adapter bound to an account
func NewAdapter(account *domain.Account, exec *httpexec.Executor, logger zerolog.Logger) *Adapter {
	return &Adapter{Base: marketplace.NewBase(account, exec, Requirements(), Capabilities(), RateLimits(), logger)}
}

func (a *Adapter) apiURL() string {
	return a.Endpoint(strings.TrimSuffix(strings.TrimRight(a.Credentials().Get("api_url", ""), "/"), "/api"))
}

func (a *Adapter) do(ctx context.Context, op domain.Operation, method, path string, query url.Values, body any) domain.Result[json.RawMessage] {
	if e := a.Check(op); e != nil {
		return marketplace.Fail[json.RawMessage](e)
	}
	creds := a.Credentials()
	if shopID := creds.Get("shop_id", ""); shopID != "" {
		if query == nil {
			query = url.Values{}
		}
		query.Set("shop_id", shopID)
	}

	req := a.NewRequest(method, a.apiURL()+path)
	req.Query = query
	req.Body = body
	req.Headers["Authorization"] = creds.Get("api_key", "")
	req.Headers["X-Mirakl-Operator"] = creds.Operator()
	return a.Executor().Do(ctx, req)
}

// Connection

func (a *Adapter) TestConnection(ctx context.Context) domain.ConnectionTestResult {
	type accountResponse struct {
		ShopID    int64  `json:"shop_id"`
		ShopName  string `json:"shop_name"`
		ShopState string `json:"shop_state"`
		Currency  string `json:"currency_iso_code"`
	}

	raw := a.do(ctx, domain.OpTestConnection, http.MethodGet, "/api/account", nil, nil)
	res := marketplace.Decode(raw, func(r accountResponse) (accountResponse, error) { return r, nil })

	details := map[string]any{
		"operator": a.Credentials().Operator(),
		"api_url":  a.Credentials().Get("api_url", ""),
	}
	if res.Ok() {
		details["shop_id"] = res.Data.ShopID
		details["shop_name"] = res.Data.ShopName
		details["shop_state"] = res.Data.ShopState
		details["currency"] = res.Data.Currency
	}
	return domain.ConnectionTestFromResult(domain.MarketplaceMirakl, res, details)
}

// Discovery

type attribute struct {
	Code           string `json:"code"`
	Label          string `json:"label"`
	Description    string `json:"description"`
	Type           string `json:"type"`
	Required       bool   `json:"required"`
	HierarchyCode  string `json:"hierarchy_code"`
	TypeParameters []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"type_parameters"`
	Validations string `json:"validations"`
}

func (a *Adapter) GetProductAttributes(ctx context.Context) domain.Result[[]domain.RawField] {
	type attributesResponse struct {
		Attributes []attribute `json:"attributes"`
	}
	raw := a.do(ctx, domain.OpProductAttributes, http.MethodGet, "/api/products/attributes", nil, nil)
	return marketplace.Decode(raw, func(r attributesResponse) ([]domain.RawField, error) {
		fields := make([]domain.RawField, 0, len(r.Attributes))
		for _, attr := range r.Attributes {
			fields = append(fields, toRawField(attr))
		}
		return fields, nil
	})
}

func (a *Adapter) GetValueLists(ctx context.Context) domain.Result[[]domain.RawValueList] {
	type valuesListsResponse struct {
		ValuesLists []struct {
			Code   string `json:"code"`
			Label  string `json:"label"`
			Values []struct {
				Code  string `json:"code"`
				Label string `json:"label"`
			} `json:"values"`
		} `json:"values_lists"`
	}
	raw := a.do(ctx, domain.OpValueLists, http.MethodGet, "/api/values_lists", nil, nil)
	return marketplace.Decode(raw, func(r valuesListsResponse) ([]domain.RawValueList, error) {
		lists := make([]domain.RawValueList, 0, len(r.ValuesLists))
		for _, vl := range r.ValuesLists {
			values := make([]string, 0, len(vl.Values))
			for _, v := range vl.Values {
				values = append(values, v.Code)
			}
			lists = append(lists, domain.RawValueList{Code: vl.Code, Name: vl.Label, Values: values})
		}
		return lists, nil
	})
}

func toRawField(attr attribute) domain.RawField {
	f := domain.RawField{
		Code:        attr.Code,
		Label:       attr.Label,
		Description: attr.Description,
		Type:        attr.Type,
		Required:    attr.Required,
		Category:    attr.HierarchyCode,
	}
	for _, p := range attr.TypeParameters {
		if p.Name == "LIST_CODE" {
			f.ValueListCode = p.Value
		}
	}
	if attr.Validations != "" {
		f.Validation = parseValidations(attr.Validations)
	}
	return f
}

// parseValidations reads the "MAX_LENGTH|255,MIN_VALUE|0" rule format
func parseValidations(s string) map[string]string {
	rules := map[string]string{}
	for _, rule := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(rule), "|")
		if !ok || name == "" {
			continue
		}
		rules[strings.ToLower(name)] = value
	}
	if len(rules) == 0 {
		return nil
	}
	return rules
}

// Offers

type offer struct {
	OfferID      int64           `json:"offer_id"`
	ShopSKU      string          `json:"shop_sku"`
	ProductSKU   string          `json:"product_sku"`
	ProductTitle string          `json:"product_title"`
	CategoryCode string          `json:"category_code"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	StateCode    string          `json:"state_code"`
	Active       bool            `json:"active"`
	CurrencyCode string          `json:"currency_iso_code"`
}

type offerPage struct {
	Offers     []offer `json:"offers"`
	TotalCount int     `json:"total_count"`
}

// offerUpdate is one line of an OF24 offer import
type offerUpdate struct {
	ShopSKU       string           `json:"shop_sku"`
	ProductID     string           `json:"product_id"`
	ProductIDType string           `json:"product_id_type"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Quantity      *int             `json:"quantity,omitempty"`
	Description   string           `json:"description,omitempty"`
	StateCode     string           `json:"state_code"`
	UpdateDelete  string           `json:"update_delete"`
}

func (a *Adapter) ListProducts(ctx context.Context, opts domain.ListOptions) domain.Result[domain.ProductPage] {
	res := a.listOffers(ctx, domain.OpListProducts, opts)
	return domain.MapResult(res, func(p offerPage) (domain.ProductPage, error) {
		page := domain.ProductPage{Items: make([]domain.Product, 0, len(p.Offers)), Total: p.TotalCount}
		for _, o := range p.Offers {
			page.Items = append(page.Items, toDomainProduct(o))
		}
		page.NextCursor = nextOffset(offsetOf(opts.Cursor), len(p.Offers), p.TotalCount)
		return page, nil
	})
}

func (a *Adapter) listOffers(ctx context.Context, op domain.Operation, opts domain.ListOptions) domain.Result[offerPage] {
	query := url.Values{
		"max":    {strconv.Itoa(opts.PageSize(defaultPageSize, maxPageSize))},
		"offset": {strconv.Itoa(offsetOf(opts.Cursor))},
	}
	raw := a.do(ctx, op, http.MethodGet, "/api/offers", query, nil)
	return marketplace.Decode(raw, func(p offerPage) (offerPage, error) { return p, nil })
}

// GetProduct fetches an offer by its offer id
func (a *Adapter) GetProduct(ctx context.Context, id string) domain.Result[domain.Product] {
	if strings.TrimSpace(id) == "" {
		return marketplace.Invalid[domain.Product]("offer id is required")
	}
	raw := a.do(ctx, domain.OpGetProduct, http.MethodGet, "/api/offers/"+url.PathEscape(id), nil, nil)
	return marketplace.Decode(raw, func(o offer) (domain.Product, error) { return toDomainProduct(o), nil })
}

func (a *Adapter) CreateProduct(ctx context.Context, product domain.Product) domain.Result[domain.Product] {
	return marketplace.Fail[domain.Product](domain.UnsupportedOperationError(domain.MarketplaceMirakl, domain.OpCreateProduct))
}

// UpdateProduct upserts the offer of product.SKU
func (a *Adapter) UpdateProduct(ctx context.Context, product domain.Product) domain.Result[domain.Product] {
	if strings.TrimSpace(product.SKU) == "" {
		return marketplace.Invalid[domain.Product]("sku is required")
	}
	price, qty := product.Price, product.Quantity
	line := offerUpdate{
		ShopSKU:       product.SKU,
		ProductID:     product.SKU,
		ProductIDType: "SHOP_SKU",
		Price:         &price,
		Quantity:      &qty,
		Description:   product.Description,
		StateCode:     stateCode(product),
		UpdateDelete:  "update",
	}
	res := a.importOffers(ctx, domain.OpUpdateProduct, line)
	return domain.MapResult(res, func(importID int64) (domain.Product, error) {
		out := product
		out.ID = product.SKU
		return out, nil
	})
}

func (a *Adapter) DeleteProduct(ctx context.Context, sku string) domain.Result[struct{}] {
	if strings.TrimSpace(sku) == "" {
		return marketplace.Invalid[struct{}]("sku is required")
	}
	line := offerUpdate{
		ShopSKU:       sku,
		ProductID:     sku,
		ProductIDType: "SHOP_SKU",
		StateCode:     defaultOfferState,
		UpdateDelete:  "delete",
	}
	res := a.importOffers(ctx, domain.OpDeleteProduct, line)
	return domain.MapResult(res, func(int64) (struct{}, error) { return struct{}{}, nil })
}

// importOffers sends an OF24 offer import and returns its import id
func (a *Adapter) importOffers(ctx context.Context, op domain.Operation, lines ...offerUpdate) domain.Result[int64] {
	type importResponse struct {
		ImportID int64 `json:"import_id"`
	}
	body := map[string]any{"offers": lines}
	raw := a.do(ctx, op, http.MethodPost, "/api/offers", nil, body)
	res := marketplace.Decode(raw, func(r importResponse) (int64, error) { return r.ImportID, nil })
	if res.Ok() {
		logger := a.Logger()
		logger.Info().Int64("importId", res.Data).Int("offers", len(lines)).Msg("Offer import submitted")
	}
	return res
}

// Orders

type order struct {
	OrderID    string          `json:"order_id"`
	OrderState string          `json:"order_state"`
	Created    string          `json:"created_date"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Currency   string          `json:"currency_iso_code"`
	Customer   struct {
		Firstname string `json:"firstname"`
		Lastname  string `json:"lastname"`
	} `json:"customer"`
	OrderLines []struct {
		OfferSKU     string          `json:"offer_sku"`
		ProductTitle string          `json:"product_title"`
		Quantity     int             `json:"quantity"`
		Price        decimal.Decimal `json:"price"`
	} `json:"order_lines"`
}

type orderPage struct {
	Orders     []order `json:"orders"`
	TotalCount int     `json:"total_count"`
}

func (a *Adapter) ListOrders(ctx context.Context, opts domain.ListOptions) domain.Result[domain.OrderPage] {
	query := url.Values{
		"max":    {strconv.Itoa(opts.PageSize(defaultPageSize, maxPageSize))},
		"offset": {strconv.Itoa(offsetOf(opts.Cursor))},
	}
	if opts.Status != "" {
		query.Set("order_state_codes", opts.Status)
	}
	raw := a.do(ctx, domain.OpListOrders, http.MethodGet, "/api/orders", query, nil)
	return marketplace.Decode(raw, func(p orderPage) (domain.OrderPage, error) {
		page := domain.OrderPage{Items: make([]domain.Order, 0, len(p.Orders)), Total: p.TotalCount}
		for _, o := range p.Orders {
			page.Items = append(page.Items, toDomainOrder(o))
		}
		page.NextCursor = nextOffset(offsetOf(opts.Cursor), len(p.Orders), p.TotalCount)
		return page, nil
	})
}

func (a *Adapter) GetOrder(ctx context.Context, id string) domain.Result[domain.Order] {
	if strings.TrimSpace(id) == "" {
		return marketplace.Invalid[domain.Order]("order id is required")
	}
	raw := a.do(ctx, domain.OpGetOrder, http.MethodGet, "/api/orders", url.Values{"order_ids": {id}}, nil)
	res := marketplace.Decode(raw, func(p orderPage) (orderPage, error) { return p, nil })
	if !res.Ok() {
		return marketplace.Fail[domain.Order](res.Err)
	}
	if len(res.Data.Orders) == 0 {
		e := domain.NewError(domain.ErrUnclassified, fmt.Sprintf("order %s not found", id))
		e.Status = http.StatusNotFound
		return domain.Failure[domain.Order](e, res.Duration)
	}
	return domain.Success(toDomainOrder(res.Data.Orders[0]), res.Status, res.Duration)
}

// Inventory

func (a *Adapter) ListInventory(ctx context.Context, opts domain.ListOptions) domain.Result[domain.InventoryPage] {
	res := a.listOffers(ctx, domain.OpListInventory, opts)
	return domain.MapResult(res, func(p offerPage) (domain.InventoryPage, error) {
		page := domain.InventoryPage{Items: make([]domain.InventoryLevel, 0, len(p.Offers)), Total: p.TotalCount}
		for _, o := range p.Offers {
			page.Items = append(page.Items, domain.InventoryLevel{
				SKU:       o.ShopSKU,
				ItemID:    strconv.FormatInt(o.OfferID, 10),
				Available: o.Quantity,
			})
		}
		page.NextCursor = nextOffset(offsetOf(opts.Cursor), len(p.Offers), p.TotalCount)
		return page, nil
	})
}

// UpdateInventory updates only the quantity of an existing offer
func (a *Adapter) UpdateInventory(ctx context.Context, update domain.InventoryUpdate) domain.Result[domain.InventoryLevel] {
	if strings.TrimSpace(update.SKU) == "" {
		return marketplace.Invalid[domain.InventoryLevel]("sku is required")
	}
	if update.Quantity < 0 {
		return marketplace.Invalid[domain.InventoryLevel]("quantity must not be negative")
	}
	qty := update.Quantity
	line := offerUpdate{
		ShopSKU:       update.SKU,
		ProductID:     update.SKU,
		ProductIDType: "SHOP_SKU",
		Quantity:      &qty,
		StateCode:     defaultOfferState,
		UpdateDelete:  "update",
	}
	res := a.importOffers(ctx, domain.OpUpdateInventory, line)
	return domain.MapResult(res, func(int64) (domain.InventoryLevel, error) {
		return domain.InventoryLevel{SKU: update.SKU, ItemID: update.ItemID, Available: update.Quantity}, nil
	})
}

func stateCode(p domain.Product) string {
	if s := p.Attributes["state_code"]; s != "" {
		return s
	}
	return defaultOfferState
}

func toDomainProduct(o offer) domain.Product {
	status := "inactive"
	if o.Active {
		status = "active"
	}
	return domain.Product{
		ID:          strconv.FormatInt(o.OfferID, 10),
		SKU:         o.ShopSKU,
		Title:       o.ProductTitle,
		Description: o.Description,
		Category:    o.CategoryCode,
		Price:       o.Price,
		Currency:    o.CurrencyCode,
		Quantity:    o.Quantity,
		Status:      status,
		Attributes:  map[string]string{"product_sku": o.ProductSKU, "state_code": o.StateCode},
	}
}

func toDomainOrder(o order) domain.Order {
	out := domain.Order{
		ID:       o.OrderID,
		Number:   o.OrderID,
		Status:   o.OrderState,
		Customer: strings.TrimSpace(o.Customer.Firstname + " " + o.Customer.Lastname),
		Total:    o.TotalPrice,
		Currency: o.Currency,
	}
	if t, err := time.Parse(time.RFC3339, o.Created); err == nil {
		out.CreatedAt = &t
	}
	for _, l := range o.OrderLines {
		out.Lines = append(out.Lines, domain.OrderLine{
			SKU:      l.OfferSKU,
			Title:    l.ProductTitle,
			Quantity: l.Quantity,
			Price:    l.Price,
		})
	}
	return out
}

func offsetOf(cursor string) int {
	if n, err := strconv.Atoi(cursor); err == nil && n > 0 {
		return n
	}
	return 0
}

func nextOffset(offset, count, total int) string {
	if count == 0 || offset+count >= total {
		return ""
	}
	return strconv.Itoa(offset + count)
}

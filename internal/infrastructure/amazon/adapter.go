package amazon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/infrastructure/httpexec"
	"archie-core-marketplace-layer/internal/infrastructure/marketplace"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	DocsURL            = "https://developer-docs.amazon.com/sp-api/"
	defaultProductType = "PRODUCT"
	listingsVersion    = "2021-08-01"
	definitionsVersion = "2020-09-01"

	requestsPerMinute = 60
	maxPageSize       = 20
	defaultPageSize   = 10
	orderLookback     = 30 * 24 * time.Hour
)

type regionEndpoint struct {
	host      string
	awsRegion string
}

var regions = map[string]regionEndpoint{
	"na": {host: "sellingpartnerapi-na.amazon.com", awsRegion: "us-east-1"},
	"eu": {host: "sellingpartnerapi-eu.amazon.com", awsRegion: "eu-west-1"},
	"fe": {host: "sellingpartnerapi-fe.amazon.com", awsRegion: "us-west-2"},
}

// resolveRegion accepts a selling region code or the AWS region behind it
func resolveRegion(region string) (regionEndpoint, bool) {
	region = strings.ToLower(strings.TrimSpace(region))
	if ep, ok := regions[region]; ok {
		return ep, true
	}
	for _, ep := range regions {
		if ep.awsRegion == region {
			return ep, true
		}
	}
	return regionEndpoint{}, false
}

// Requirements returns the credential fields of an Amazon Selling Partner account
func Requirements() domain.Requirements {
	return domain.Requirements{
		Marketplace: domain.MarketplaceAmazon,
		DocsURL:     DocsURL,
		Fields: []domain.CredentialField{
			{Key: "seller_id", Label: "Seller ID", Description: "Merchant token of the selling account", Required: true},
			{Key: "marketplace_id", Label: "Marketplace ID", Description: "e.g. ATVPDKIKX0DER for amazon.com", Required: true},
			{Key: "access_key", Label: "AWS access key", Required: true, Secret: true},
			{Key: "secret_key", Label: "AWS secret key", Required: true, Secret: true},
			{Key: "region", Label: "Region", Description: "na, eu or fe", Required: true},
			{Key: "access_token", Label: "LWA access token", Description: "Sent as x-amz-access-token", Secret: true},
			{Key: "product_type", Label: "Product type", Description: "Product type used for discovery and listings, defaults to " + defaultProductType},
		},
	}
}

func Capabilities() domain.Capabilities {
	return domain.NewCapabilities(false,
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

// Adapter talks to the Amazon Selling Partner API with SigV4 signed requests
type Adapter struct {
	marketplace.Base
	endpoint  string
	regionErr *domain.Error
	signer    *signer

	schemaMu sync.Mutex
	schema   *jsonSchema
}

// NewAdapter creates a new Amazon adapter bound to an account
func NewAdapter(account *domain.Account, exec *httpexec.Executor, logger zerolog.Logger) *Adapter {
	a := &Adapter{Base: marketplace.NewBase(account, exec, Requirements(), Capabilities(), RateLimits(), logger)}
	creds := a.Credentials()

	region := creds.Get("region", "")
	ep, ok := resolveRegion(region)
	if !ok && region != "" {
		a.regionErr = domain.NewError(domain.ErrConfiguration, fmt.Sprintf("unknown amazon region %q", region))
	}

	host := "https://" + ep.host
	if a.Sandbox() {
		host = "https://sandbox." + ep.host
	}
	a.endpoint = a.Endpoint(host)
	a.signer = newSigner(creds.Get("access_key", ""), creds.Get("secret_key", ""), ep.awsRegion, creds.Get("access_token", ""))
	return a
}

func (a *Adapter) sellerID() string {
	return a.Credentials().Get("seller_id", "")
}

func (a *Adapter) marketplaceID() string {
	return a.Credentials().Get("marketplace_id", "")
}

func (a *Adapter) productType() string {
	return a.Credentials().Get("product_type", defaultProductType)
}

// check runs the shared guards then the region lookup
func (a *Adapter) check(op domain.Operation) *domain.Error {
	if e := a.Check(op); e != nil {
		return e
	}
	return a.regionErr
}

// do signs and executes one API call
func (a *Adapter) do(ctx context.Context, op domain.Operation, method, path string, query url.Values, body any) domain.Result[json.RawMessage] {
	if e := a.check(op); e != nil {
		return marketplace.Fail[json.RawMessage](e)
	}
	req := a.NewRequest(method, a.endpoint+path)
	req.Query = query
	req.Body = body
	req.Sign = a.signer.Sign
	return a.Executor().Do(ctx, req)
}

func (a *Adapter) listingPath(sku string) string {
	p := "/listings/" + listingsVersion + "/items/" + url.PathEscape(a.sellerID())
	if sku != "" {
		p += "/" + url.PathEscape(sku)
	}
	return p
}

// Connection

func (a *Adapter) TestConnection(ctx context.Context) domain.ConnectionTestResult {
	type participation struct {
		Marketplace struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			CountryCode string `json:"countryCode"`
		} `json:"marketplace"`
		Participation struct {
			IsParticipating bool `json:"isParticipating"`
		} `json:"participation"`
	}
	type participationResponse struct {
		Payload []participation `json:"payload"`
	}

	raw := a.do(ctx, domain.OpTestConnection, http.MethodGet, "/sellers/v1/marketplaceParticipations", nil, nil)
	res := marketplace.Decode(raw, func(r participationResponse) (participationResponse, error) { return r, nil })

	details := map[string]any{
		"region":         a.Credentials().Get("region", ""),
		"marketplace_id": a.marketplaceID(),
	}
	if res.Ok() {
		var names []string
		for _, p := range res.Data.Payload {
			if p.Participation.IsParticipating {
				names = append(names, p.Marketplace.Name)
			}
		}
		details["marketplaces"] = names
	}
	return domain.ConnectionTestFromResult(domain.MarketplaceAmazon, res, details)
}

// Discovery

func (a *Adapter) GetProductAttributes(ctx context.Context) domain.Result[[]domain.RawField] {
	res := a.productTypeSchema(ctx, domain.OpProductAttributes)
	return domain.MapResult(res, func(s *jsonSchema) ([]domain.RawField, error) {
		return s.fields(a.productType()), nil
	})
}

func (a *Adapter) GetValueLists(ctx context.Context) domain.Result[[]domain.RawValueList] {
	res := a.productTypeSchema(ctx, domain.OpValueLists)
	return domain.MapResult(res, func(s *jsonSchema) ([]domain.RawValueList, error) {
		return s.valueLists(), nil
	})
}

// productTypeSchema fetches the product type definition once per adapter
func (a *Adapter) productTypeSchema(ctx context.Context, op domain.Operation) domain.Result[*jsonSchema] {
	if e := a.check(op); e != nil {
		return marketplace.Fail[*jsonSchema](e)
	}

	a.schemaMu.Lock()
	defer a.schemaMu.Unlock()
	if a.schema != nil {
		return domain.Success(a.schema, http.StatusOK, 0)
	}

	query := url.Values{
		"marketplaceIds": {a.marketplaceID()},
		"requirements":   {"LISTING"},
		"locale":         {"DEFAULT"},
	}
	raw := a.do(ctx, op, http.MethodGet, "/definitions/"+definitionsVersion+"/productTypes/"+url.PathEscape(a.productType()), query, nil)
	def := marketplace.Decode(raw, func(d definitionResponse) (definitionResponse, error) { return d, nil })
	if !def.Ok() {
		return marketplace.Fail[*jsonSchema](def.Err)
	}

	schemaRaw := def.Data.InlineSchema
	status, duration := def.Status, def.Duration
	if len(schemaRaw) == 0 {
		link := def.Data.Schema.Link.Resource
		if link == "" {
			return marketplace.Fail[*jsonSchema](domain.NewError(domain.ErrException, "product type definition has no schema"))
		}
		// the link is pre-signed, it must not carry SigV4 headers
		req := a.NewRequest(http.MethodGet, link)
		fetched := a.Executor().Do(ctx, req)
		if !fetched.Ok() {
			return marketplace.Fail[*jsonSchema](fetched.Err)
		}
		schemaRaw, status, duration = fetched.Data, fetched.Status, duration+fetched.Duration
	}

	s, err := parseSchema(schemaRaw)
	if err != nil {
		return domain.Failure[*jsonSchema](domain.NewError(domain.ErrException, err.Error()), duration)
	}
	a.schema = &s
	logger := a.Logger()
	logger.Info().
		Str("productType", a.productType()).
		Int("properties", len(s.Properties)).
		Msg("Loaded product type definition")
	return domain.Success(a.schema, status, duration)
}

// Listings API

type listingSummary struct {
	MarketplaceID   string   `json:"marketplaceId"`
	ASIN            string   `json:"asin"`
	ProductType     string   `json:"productType"`
	ItemName        string   `json:"itemName"`
	Status          []string `json:"status"`
	LastUpdatedDate string   `json:"lastUpdatedDate"`
}

type listingItem struct {
	SKU                     string                      `json:"sku"`
	Summaries               []listingSummary            `json:"summaries"`
	Attributes              map[string][]map[string]any `json:"attributes"`
	FulfillmentAvailability []struct {
		FulfillmentChannelCode string `json:"fulfillmentChannelCode"`
		Quantity               int    `json:"quantity"`
	} `json:"fulfillmentAvailability"`
}

type listingSearch struct {
	NumberOfResults int `json:"numberOfResults"`
	Pagination      *struct {
		NextToken string `json:"nextToken"`
	} `json:"pagination"`
	Items []listingItem `json:"items"`
}

type listingSubmission struct {
	SKU          string `json:"sku"`
	Status       string `json:"status"`
	SubmissionID string `json:"submissionId"`
	Issues       []struct {
		Code           string   `json:"code"`
		Message        string   `json:"message"`
		Severity       string   `json:"severity"`
		AttributeNames []string `json:"attributeNames"`
	} `json:"issues"`
}

const includedData = "summaries,attributes,fulfillmentAvailability"

func (a *Adapter) ListProducts(ctx context.Context, opts domain.ListOptions) domain.Result[domain.ProductPage] {
	res := a.searchListings(ctx, domain.OpListProducts, opts)
	return domain.MapResult(res, func(s listingSearch) (domain.ProductPage, error) {
		page := domain.ProductPage{Items: make([]domain.Product, 0, len(s.Items)), Total: s.NumberOfResults}
		for _, item := range s.Items {
			page.Items = append(page.Items, toDomainProduct(item))
		}
		if s.Pagination != nil {
			page.NextCursor = s.Pagination.NextToken
		}
		return page, nil
	})
}

func (a *Adapter) searchListings(ctx context.Context, op domain.Operation, opts domain.ListOptions) domain.Result[listingSearch] {
	query := url.Values{
		"marketplaceIds": {a.marketplaceID()},
		"includedData":   {includedData},
		"pageSize":       {strconv.Itoa(opts.PageSize(defaultPageSize, maxPageSize))},
	}
	if opts.Cursor != "" {
		query.Set("pageToken", opts.Cursor)
	}
	raw := a.do(ctx, op, http.MethodGet, a.listingPath(""), query, nil)
	return marketplace.Decode(raw, func(s listingSearch) (listingSearch, error) { return s, nil })
}

func (a *Adapter) GetProduct(ctx context.Context, sku string) domain.Result[domain.Product] {
	if strings.TrimSpace(sku) == "" {
		return marketplace.Invalid[domain.Product]("sku is required")
	}
	query := url.Values{"marketplaceIds": {a.marketplaceID()}, "includedData": {includedData}}
	raw := a.do(ctx, domain.OpGetProduct, http.MethodGet, a.listingPath(sku), query, nil)
	return marketplace.Decode(raw, func(item listingItem) (domain.Product, error) {
		return toDomainProduct(item), nil
	})
}

func (a *Adapter) CreateProduct(ctx context.Context, product domain.Product) domain.Result[domain.Product] {
	return a.putListing(ctx, domain.OpCreateProduct, product)
}

func (a *Adapter) UpdateProduct(ctx context.Context, product domain.Product) domain.Result[domain.Product] {
	return a.putListing(ctx, domain.OpUpdateProduct, product)
}

func (a *Adapter) putListing(ctx context.Context, op domain.Operation, product domain.Product) domain.Result[domain.Product] {
	if strings.TrimSpace(product.SKU) == "" {
		return marketplace.Invalid[domain.Product]("sku is required")
	}
	productType := product.Category
	if productType == "" {
		productType = a.productType()
	}
	body := map[string]any{
		"productType":  productType,
		"requirements": "LISTING",
		"attributes":   a.listingAttributes(product),
	}
	query := url.Values{"marketplaceIds": {a.marketplaceID()}}
	raw := a.do(ctx, op, http.MethodPut, a.listingPath(product.SKU), query, body)
	res := marketplace.Decode(raw, func(s listingSubmission) (listingSubmission, error) { return s, nil })
	if !res.Ok() {
		return marketplace.Fail[domain.Product](res.Err)
	}
	if e := submissionError(res.Data); e != nil {
		return domain.Failure[domain.Product](e, res.Duration)
	}
	out := product
	out.ID = product.SKU
	out.Status = res.Data.Status
	return domain.Success(out, res.Status, res.Duration)
}

func (a *Adapter) DeleteProduct(ctx context.Context, sku string) domain.Result[struct{}] {
	if strings.TrimSpace(sku) == "" {
		return marketplace.Invalid[struct{}]("sku is required")
	}
	query := url.Values{"marketplaceIds": {a.marketplaceID()}}
	return marketplace.Discard(a.do(ctx, domain.OpDeleteProduct, http.MethodDelete, a.listingPath(sku), query, nil))
}

// submissionError turns an INVALID listing submission into a validation error
func submissionError(s listingSubmission) *domain.Error {
	if s.Status != "INVALID" {
		return nil
	}
	msgs := make([]string, 0, len(s.Issues))
	for _, issue := range s.Issues {
		if issue.Severity == "ERROR" || issue.Severity == "" {
			msgs = append(msgs, issue.Message)
		}
	}
	msg := "listing submission rejected"
	if len(msgs) > 0 {
		msg = strings.Join(msgs, "; ")
	}
	e := domain.NewError(domain.ErrValidation, msg)
	e.Detail = s.Issues
	return e
}

// Orders API

type money struct {
	CurrencyCode string `json:"CurrencyCode"`
	Amount       string `json:"Amount"`
}

type spOrder struct {
	AmazonOrderID string `json:"AmazonOrderId"`
	OrderStatus   string `json:"OrderStatus"`
	PurchaseDate  string `json:"PurchaseDate"`
	OrderTotal    *money `json:"OrderTotal"`
	BuyerInfo     struct {
		BuyerEmail string `json:"BuyerEmail"`
	} `json:"BuyerInfo"`
}

type spOrderItem struct {
	SellerSKU       string `json:"SellerSKU"`
	Title           string `json:"Title"`
	QuantityOrdered int    `json:"QuantityOrdered"`
	ItemPrice       *money `json:"ItemPrice"`
}

func (a *Adapter) ListOrders(ctx context.Context, opts domain.ListOptions) domain.Result[domain.OrderPage] {
	type ordersResponse struct {
		Payload struct {
			Orders    []spOrder `json:"Orders"`
			NextToken string    `json:"NextToken"`
		} `json:"payload"`
	}

	query := url.Values{
		"MarketplaceIds":    {a.marketplaceID()},
		"MaxResultsPerPage": {strconv.Itoa(opts.PageSize(50, 100))},
	}
	if opts.Cursor != "" {
		query.Set("NextToken", opts.Cursor)
	} else {
		query.Set("CreatedAfter", time.Now().Add(-orderLookback).UTC().Format(time.RFC3339))
	}
	if opts.Status != "" {
		query.Set("OrderStatuses", opts.Status)
	}

	raw := a.do(ctx, domain.OpListOrders, http.MethodGet, "/orders/v0/orders", query, nil)
	return marketplace.Decode(raw, func(r ordersResponse) (domain.OrderPage, error) {
		page := domain.OrderPage{Items: make([]domain.Order, 0, len(r.Payload.Orders)), NextCursor: r.Payload.NextToken}
		for _, o := range r.Payload.Orders {
			page.Items = append(page.Items, toDomainOrder(o, nil))
		}
		page.Total = len(page.Items)
		return page, nil
	})
}

// GetOrder fetches the order and its items
func (a *Adapter) GetOrder(ctx context.Context, id string) domain.Result[domain.Order] {
	if strings.TrimSpace(id) == "" {
		return marketplace.Invalid[domain.Order]("order id is required")
	}
	type orderResponse struct {
		Payload spOrder `json:"payload"`
	}
	type itemsResponse struct {
		Payload struct {
			OrderItems []spOrderItem `json:"OrderItems"`
		} `json:"payload"`
	}

	path := "/orders/v0/orders/" + url.PathEscape(id)
	orderRes := marketplace.Decode(a.do(ctx, domain.OpGetOrder, http.MethodGet, path, nil, nil),
		func(r orderResponse) (spOrder, error) { return r.Payload, nil })
	if !orderRes.Ok() {
		return marketplace.Fail[domain.Order](orderRes.Err)
	}

	itemsRes := marketplace.Decode(a.do(ctx, domain.OpGetOrder, http.MethodGet, path+"/orderItems", nil, nil),
		func(r itemsResponse) ([]spOrderItem, error) { return r.Payload.OrderItems, nil })
	if !itemsRes.Ok() {
		return marketplace.Fail[domain.Order](itemsRes.Err)
	}
	return domain.Success(toDomainOrder(orderRes.Data, itemsRes.Data), orderRes.Status, orderRes.Duration+itemsRes.Duration)
}

// Inventory API

func (a *Adapter) ListInventory(ctx context.Context, opts domain.ListOptions) domain.Result[domain.InventoryPage] {
	type summariesResponse struct {
		Payload struct {
			InventorySummaries []struct {
				SellerSKU        string `json:"sellerSku"`
				FnSKU            string `json:"fnSku"`
				ASIN             string `json:"asin"`
				TotalQuantity    int    `json:"totalQuantity"`
				InventoryDetails *struct {
					FulfillableQuantity int `json:"fulfillableQuantity"`
				} `json:"inventoryDetails"`
			} `json:"inventorySummaries"`
		} `json:"payload"`
		Pagination *struct {
			NextToken string `json:"nextToken"`
		} `json:"pagination"`
	}

	query := url.Values{
		"granularityType": {"Marketplace"},
		"granularityId":   {a.marketplaceID()},
		"marketplaceIds":  {a.marketplaceID()},
		"details":         {"true"},
	}
	if opts.Cursor != "" {
		query.Set("nextToken", opts.Cursor)
	}

	raw := a.do(ctx, domain.OpListInventory, http.MethodGet, "/fba/inventory/v1/summaries", query, nil)
	return marketplace.Decode(raw, func(r summariesResponse) (domain.InventoryPage, error) {
		page := domain.InventoryPage{Items: make([]domain.InventoryLevel, 0, len(r.Payload.InventorySummaries))}
		for _, s := range r.Payload.InventorySummaries {
			available := s.TotalQuantity
			if s.InventoryDetails != nil {
				available = s.InventoryDetails.FulfillableQuantity
			}
			page.Items = append(page.Items, domain.InventoryLevel{SKU: s.SellerSKU, ItemID: s.FnSKU, Available: available})
		}
		if r.Pagination != nil {
			page.NextCursor = r.Pagination.NextToken
		}
		return page, nil
	})
}

// UpdateInventory patches the merchant-fulfilled quantity of a listing
func (a *Adapter) UpdateInventory(ctx context.Context, update domain.InventoryUpdate) domain.Result[domain.InventoryLevel] {
	if strings.TrimSpace(update.SKU) == "" {
		return marketplace.Invalid[domain.InventoryLevel]("sku is required")
	}
	if update.Quantity < 0 {
		return marketplace.Invalid[domain.InventoryLevel]("quantity must not be negative")
	}

	body := map[string]any{
		"productType": a.productType(),
		"patches": []map[string]any{{
			"op":   "replace",
			"path": "/attributes/fulfillment_availability",
			"value": []map[string]any{{
				"fulfillment_channel_code": "DEFAULT",
				"quantity":                 update.Quantity,
			}},
		}},
	}
	query := url.Values{"marketplaceIds": {a.marketplaceID()}}
	raw := a.do(ctx, domain.OpUpdateInventory, http.MethodPatch, a.listingPath(update.SKU), query, body)
	res := marketplace.Decode(raw, func(s listingSubmission) (listingSubmission, error) { return s, nil })
	if !res.Ok() {
		return marketplace.Fail[domain.InventoryLevel](res.Err)
	}
	if e := submissionError(res.Data); e != nil {
		return domain.Failure[domain.InventoryLevel](e, res.Duration)
	}
	return domain.Success(domain.InventoryLevel{SKU: update.SKU, Available: update.Quantity}, res.Status, res.Duration)
}

// listingAttributes renders a product in the listing attribute format
func (a *Adapter) listingAttributes(p domain.Product) map[string]any {
	mkt := a.marketplaceID()
	value := func(v any) []map[string]any {
		return []map[string]any{{"value": v, "marketplace_id": mkt}}
	}

	attrs := map[string]any{}
	for k, v := range p.Attributes {
		attrs[k] = value(v)
	}
	if p.Title != "" {
		attrs["item_name"] = value(p.Title)
	}
	if p.Description != "" {
		attrs["product_description"] = value(p.Description)
	}
	if p.Brand != "" {
		attrs["brand"] = value(p.Brand)
	}
	if !p.Price.IsZero() {
		currency := p.Currency
		if currency == "" {
			currency = "USD"
		}
		attrs["purchasable_offer"] = []map[string]any{{
			"marketplace_id": mkt,
			"currency":       currency,
			"our_price":      []map[string]any{{"schedule": []map[string]any{{"value_with_tax": p.Price}}}},
		}}
	}
	attrs["fulfillment_availability"] = []map[string]any{{
		"fulfillment_channel_code": "DEFAULT",
		"quantity":                 p.Quantity,
	}}
	return attrs
}

func toDomainProduct(item listingItem) domain.Product {
	p := domain.Product{ID: item.SKU, SKU: item.SKU}
	if len(item.Summaries) > 0 {
		s := item.Summaries[0]
		p.Title = s.ItemName
		p.Category = s.ProductType
		p.Status = strings.Join(s.Status, ",")
		if t, err := time.Parse(time.RFC3339, s.LastUpdatedDate); err == nil {
			p.UpdatedAt = &t
		}
	}
	for _, fa := range item.FulfillmentAvailability {
		p.Quantity += fa.Quantity
	}
	for code, values := range item.Attributes {
		if len(values) == 0 {
			continue
		}
		v, ok := values[0]["value"]
		if !ok {
			continue
		}
		switch code {
		case "item_name":
			if p.Title == "" {
				p.Title = fmt.Sprint(v)
			}
		case "product_description":
			p.Description = fmt.Sprint(v)
		case "brand":
			p.Brand = fmt.Sprint(v)
		default:
			if p.Attributes == nil {
				p.Attributes = map[string]string{}
			}
			p.Attributes[code] = fmt.Sprint(v)
		}
	}
	return p
}

func toDomainOrder(o spOrder, items []spOrderItem) domain.Order {
	out := domain.Order{
		ID:       o.AmazonOrderID,
		Number:   o.AmazonOrderID,
		Status:   o.OrderStatus,
		Customer: o.BuyerInfo.BuyerEmail,
	}
	if o.OrderTotal != nil {
		out.Total = parseAmount(o.OrderTotal.Amount)
		out.Currency = o.OrderTotal.CurrencyCode
	}
	if t, err := time.Parse(time.RFC3339, o.PurchaseDate); err == nil {
		out.CreatedAt = &t
	}
	for _, it := range items {
		line := domain.OrderLine{SKU: it.SellerSKU, Title: it.Title, Quantity: it.QuantityOrdered}
		if it.ItemPrice != nil {
			line.Price = parseAmount(it.ItemPrice.Amount)
		}
		out.Lines = append(out.Lines, line)
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

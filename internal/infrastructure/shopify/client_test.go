package shopify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/infrastructure/httpexec"

	"github.com/rs/zerolog"
)

func testAccount(baseURL string) *domain.Account {
	return &domain.Account{
		ID:          "shop-1",
		Marketplace: domain.MarketplaceShopify,
		Active:      true,
		Credentials: map[string]string{
			"store_url":    "https://test-store.myshopify.com",
			"access_token": "shpat_123456",
		},
		Settings: map[string]any{"base_url": baseURL},
	}
}

func testExecutor() *httpexec.Executor {
	return httpexec.NewExecutor(httpexec.Options{Limiter: httpexec.Unpaced{}, Retry: httpexec.NoRetry()}, zerolog.Nop())
}

func TestStaticCatalog(t *testing.T) {
	a := NewAdapter(testAccount("http://unused.invalid"), testExecutor(), zerolog.Nop())

	fields := a.GetProductAttributes(context.Background())
	if !fields.Ok() {
		t.Fatalf("unexpected failure: %v", fields.Err)
	}
	if len(fields.Data) != 16 {
		t.Fatalf("fields = %d, want 16", len(fields.Data))
	}
	required := 0
	for _, f := range fields.Data {
		if f.Required {
			required++
		}
	}
	if required != 3 {
		t.Errorf("required = %d, want 3", required)
	}

	lists := a.GetValueLists(context.Background())
	if !lists.Ok() || len(lists.Data) != 0 {
		t.Errorf("value lists = %d (%v), want 0", len(lists.Data), lists.Err)
	}
}

func TestStaticCatalogIsNotShared(t *testing.T) {
	a := NewAdapter(testAccount("http://unused.invalid"), testExecutor(), zerolog.Nop())
	first := a.GetProductAttributes(context.Background())
	first.Data[0].Code = "mutated"

	second := a.GetProductAttributes(context.Background())
	if second.Data[0].Code == "mutated" {
		t.Error("catalog mutation leaked between calls")
	}
}

func TestMissingCredentialsShortCircuit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	acc := testAccount(srv.URL)
	acc.Credentials = map[string]string{"store_url": "test-store"}
	a := NewAdapter(acc, testExecutor(), zerolog.Nop())

	if missing := a.ValidateConfiguration(); len(missing) != 1 || missing[0] != "access_token" {
		t.Fatalf("missing = %v", missing)
	}

	res := a.TestConnection(context.Background())
	if res.Success || res.ErrorType != domain.ErrConfiguration {
		t.Fatalf("expected configuration error, got %+v", res)
	}
	if !strings.Contains(res.Message, "access_token") {
		t.Errorf("message does not name the missing key: %s", res.Message)
	}
	if attrs := a.GetProductAttributes(context.Background()); attrs.Ok() {
		t.Error("discovery must fail without credentials")
	}
	if hits != 0 {
		t.Errorf("made %d network calls", hits)
	}
}

func TestTestConnection(t *testing.T) {
	var token, ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/api/2024-01/shop.json" {
			http.NotFound(w, r)
			return
		}
		token = r.Header.Get("X-Shopify-Access-Token")
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"shop":{"id":1,"name":"Test Store","domain":"test-store.com","plan_name":"basic","currency":"EUR"}}`))
	}))
	defer srv.Close()

	a := NewAdapter(testAccount(srv.URL), testExecutor(), zerolog.Nop())
	res := a.TestConnection(context.Background())
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Details["shop_name"] != "Test Store" {
		t.Errorf("details = %v", res.Details)
	}
	if token != "shpat_123456" {
		t.Errorf("access token header = %q", token)
	}
	if ua != httpexec.DefaultUserAgent {
		t.Errorf("user agent = %q", ua)
	}
}

func TestTestConnectionUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":"[API] Invalid API key or access token"}`))
	}))
	defer srv.Close()

	a := NewAdapter(testAccount(srv.URL), testExecutor(), zerolog.Nop())
	res := a.TestConnection(context.Background())
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ErrorType != domain.ErrAuthenticationFailed {
		t.Errorf("error type = %s", res.ErrorType)
	}
	if len(res.Recommendations) == 0 {
		t.Error("expected a recommendation")
	}
}

func TestListProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/api/2024-01/products.json" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("product_type") != "Shoes" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"products":[{"id":42,"title":"Runner","product_type":"Shoes","tags":"sale, new","variants":[{"id":7,"sku":"RUN-1","price":"59.90","inventory_quantity":4,"inventory_item_id":99}]}]}`))
	}))
	defer srv.Close()

	a := NewAdapter(testAccount(srv.URL), testExecutor(), zerolog.Nop())
	res := a.ListProducts(context.Background(), domain.ListOptions{Category: "Shoes"})
	if !res.Ok() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if len(res.Data.Items) != 1 {
		t.Fatalf("items = %d", len(res.Data.Items))
	}
	p := res.Data.Items[0]
	if p.ID != "42" || p.SKU != "RUN-1" || p.Quantity != 4 || p.Price.String() != "59.9" {
		t.Errorf("unexpected product: %+v", p)
	}
	if len(p.Tags) != 2 || p.Tags[1] != "new" {
		t.Errorf("tags = %v", p.Tags)
	}
}

func TestInvalidProductID(t *testing.T) {
	a := NewAdapter(testAccount("http://unused.invalid"), testExecutor(), zerolog.Nop())
	res := a.GetProduct(context.Background(), "abc")
	if res.Ok() || res.Err.Kind != domain.ErrValidation {
		t.Fatalf("expected validation error, got %+v", res.Err)
	}
}

func TestShopName(t *testing.T) {
	tests := map[string]string{
		"https://demo.myshopify.com/admin": "demo.myshopify.com",
		"demo.myshopify.com":               "demo.myshopify.com",
		" demo ":                           "demo",
	}
	for in, want := range tests {
		if got := shopName(in); got != want {
			t.Errorf("shopName(%q) = %q, want %q", in, got, want)
		}
	}
}

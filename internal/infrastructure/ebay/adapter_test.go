package ebay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/infrastructure/httpexec"

	"github.com/rs/zerolog"
)

func testExecutor() *httpexec.Executor {
	return httpexec.NewExecutor(httpexec.Options{Limiter: httpexec.Unpaced{}, Retry: httpexec.NoRetry()}, zerolog.Nop())
}

func testAccount(baseURL string) *domain.Account {
	return &domain.Account{
		ID:          "ebay-1",
		Marketplace: domain.MarketplaceEbay,
		Active:      true,
		Credentials: map[string]string{
			"environment":   "sandbox",
			"client_id":     "app-id",
			"client_secret": "cert-id",
			"dev_id":        "dev-id",
		},
		Settings: map[string]any{
			"base_url":  baseURL,
			"token_url": baseURL + "/identity/v1/oauth2/token",
		},
	}
}

type fakeEbay struct {
	tokenHits int32
	tokenCode int
	mux       *http.ServeMux
}

func newFakeEbay(t *testing.T) (*fakeEbay, *httptest.Server) {
	f := &fakeEbay{tokenCode: http.StatusOK, mux: http.NewServeMux()}
	f.mux.HandleFunc("/identity/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tokenHits, 1)
		w.Header().Set("Content-Type", "application/json")
		if f.tokenCode != http.StatusOK {
			w.WriteHeader(f.tokenCode)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"client authentication failed"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"app-token","expires_in":7200,"token_type":"Application Access Token"}`))
	})
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func TestStaticCatalog(t *testing.T) {
	a := NewAdapter(testAccount("http://unused.invalid"), testExecutor(), zerolog.Nop())

	fields := a.GetProductAttributes(context.Background())
	if !fields.Ok() || len(fields.Data) != len(catalog.Fields) {
		t.Fatalf("fields = %d (%v)", len(fields.Data), fields.Err)
	}

	lists := a.GetValueLists(context.Background())
	if !lists.Ok() || len(lists.Data) != 3 {
		t.Fatalf("value lists = %d (%v), want 3", len(lists.Data), lists.Err)
	}
	codes := map[string]int{}
	for _, vl := range lists.Data {
		codes[vl.Code] = len(vl.Values)
	}
	if codes["condition"] != 14 || codes["listing_format"] != 2 || codes["listing_duration"] != 7 {
		t.Errorf("unexpected value lists: %v", codes)
	}

	for _, f := range fields.Data {
		if f.ValueListCode != "" {
			if _, ok := codes[f.ValueListCode]; !ok {
				t.Errorf("field %s references unknown list %s", f.Code, f.ValueListCode)
			}
		}
	}
}

func TestSandboxSelectsSandboxHost(t *testing.T) {
	acc := testAccount("")
	acc.Settings = nil
	a := NewAdapter(acc, testExecutor(), zerolog.Nop())
	if a.apiURL != sandboxAPI {
		t.Errorf("apiURL = %s, want %s", a.apiURL, sandboxAPI)
	}

	acc.Credentials["environment"] = "production"
	a = NewAdapter(acc, testExecutor(), zerolog.Nop())
	if a.apiURL != productionAPI {
		t.Errorf("apiURL = %s, want %s", a.apiURL, productionAPI)
	}
}

func TestTestConnectionCachesToken(t *testing.T) {
	f, srv := newFakeEbay(t)
	var auth, mkt string
	f.mux.HandleFunc("/commerce/taxonomy/v1/get_default_category_tree_id", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		mkt = r.Header.Get("X-EBAY-C-MARKETPLACE-ID")
		_, _ = w.Write([]byte(`{"categoryTreeId":"0","categoryTreeVersion":"119"}`))
	})

	a := NewAdapter(testAccount(srv.URL), testExecutor(), zerolog.Nop())
	for i := 0; i < 2; i++ {
		res := a.TestConnection(context.Background())
		if !res.Success {
			t.Fatalf("expected success, got %+v", res)
		}
		if res.Details["category_tree_version"] != "119" {
			t.Errorf("details = %v", res.Details)
		}
	}
	if auth != "Bearer app-token" || mkt != "EBAY_US" {
		t.Errorf("auth=%q marketplace=%q", auth, mkt)
	}
	if f.tokenHits != 1 {
		t.Errorf("token requested %d times, want 1", f.tokenHits)
	}
}

func TestTokenFailureIsAuthentication(t *testing.T) {
	f, srv := newFakeEbay(t)
	f.tokenCode = http.StatusUnauthorized

	a := NewAdapter(testAccount(srv.URL), testExecutor(), zerolog.Nop())
	res := a.TestConnection(context.Background())
	if res.Success || res.ErrorType != domain.ErrAuthenticationFailed {
		t.Fatalf("expected authentication_failed, got %+v", res)
	}
}

func TestListOrders(t *testing.T) {
	f, srv := newFakeEbay(t)
	f.mux.HandleFunc("/sell/fulfillment/v1/order", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filter") != "orderfulfillmentstatus:{NOT_STARTED}" {
			t.Errorf("filter = %q", r.URL.Query().Get("filter"))
		}
		_, _ = w.Write([]byte(`{"total":3,"offset":0,"orders":[
			{"orderId":"12-34","orderFulfillmentStatus":"NOT_STARTED","creationDate":"2024-05-01T10:00:00.000Z",
			 "buyer":{"username":"jane"},"pricingSummary":{"total":{"value":"25.50","currency":"USD"}},
			 "lineItems":[{"sku":"A-1","title":"Mug","quantity":2,"lineItemCost":{"value":"25.50","currency":"USD"}}]}]}`))
	})

	a := NewAdapter(testAccount(srv.URL), testExecutor(), zerolog.Nop())
	res := a.ListOrders(context.Background(), domain.ListOptions{Status: "NOT_STARTED", Limit: 1})
	if !res.Ok() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if len(res.Data.Items) != 1 || res.Data.NextCursor != "1" {
		t.Fatalf("page = %+v", res.Data)
	}
	o := res.Data.Items[0]
	if o.ID != "12-34" || o.Customer != "jane" || o.Total.String() != "25.5" || len(o.Lines) != 1 {
		t.Errorf("order = %+v", o)
	}
	if o.CreatedAt == nil {
		t.Error("creation date not parsed")
	}
}

func TestPutInventoryItem(t *testing.T) {
	f, srv := newFakeEbay(t)
	var got inventoryItem
	var method string
	f.mux.HandleFunc("/sell/inventory/v1/inventory_item/SKU-9", func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	})

	a := NewAdapter(testAccount(srv.URL), testExecutor(), zerolog.Nop())
	res := a.CreateProduct(context.Background(), domain.Product{SKU: "SKU-9", Title: "Lamp", Quantity: 3})
	if !res.Ok() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if method != http.MethodPut || got.Product.Title != "Lamp" || got.Condition != "NEW" {
		t.Errorf("method=%s item=%+v", method, got)
	}
	if got.Availability.ShipToLocationAvailability.Quantity != 3 {
		t.Errorf("quantity = %d", got.Availability.ShipToLocationAvailability.Quantity)
	}
}

func TestUpdateInventoryReportsItemError(t *testing.T) {
	f, srv := newFakeEbay(t)
	f.mux.HandleFunc("/sell/inventory/v1/bulk_update_price_quantity", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"responses":[{"sku":"X","statusCode":400,"errors":[{"message":"unknown sku"}]}]}`))
	})

	a := NewAdapter(testAccount(srv.URL), testExecutor(), zerolog.Nop())
	res := a.UpdateInventory(context.Background(), domain.InventoryUpdate{SKU: "X", Quantity: 1})
	if res.Ok() || res.Err.Message != "unknown sku" {
		t.Fatalf("expected item error, got %+v", res.Err)
	}
}

func TestMissingCredentials(t *testing.T) {
	acc := testAccount("http://unused.invalid")
	delete(acc.Credentials, "client_secret")
	delete(acc.Credentials, "dev_id")

	a := NewAdapter(acc, testExecutor(), zerolog.Nop())
	res := a.GetValueLists(context.Background())
	if res.Ok() || res.Err.Kind != domain.ErrConfiguration {
		t.Fatalf("expected configuration error, got %+v", res.Err)
	}
	if res.Err.Message != "missing required ebay credentials: client_secret, dev_id" {
		t.Errorf("message = %q", res.Err.Message)
	}
}

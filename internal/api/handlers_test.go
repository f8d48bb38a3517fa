package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"archie-core-marketplace-layer/internal/application"
	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/infrastructure/cache"
	"archie-core-marketplace-layer/internal/infrastructure/httpexec"
	"archie-core-marketplace-layer/internal/infrastructure/repository"

	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	accounts := repository.NewMemoryAccountRepository(&domain.Account{
		ID:          "shop",
		Marketplace: domain.MarketplaceShopify,
		Active:      true,
		Credentials: map[string]string{"store_url": "demo.myshopify.com", "access_token": "shpat_1"},
		Settings:    map[string]any{"base_url": "http://unused.invalid"},
	})
	schemas := repository.NewMemorySchemaRepository()
	exec := httpexec.NewExecutor(httpexec.Options{Limiter: httpexec.Unpaced{}, Retry: httpexec.NoRetry()}, zerolog.Nop())
	client := application.NewMarketplaceClient(exec, zerolog.Nop())

	srv := httptest.NewServer(NewRouter(Services{
		Accounts:    accounts,
		Adapters:    client,
		Connections: application.NewConnectionService(accounts, client, zerolog.Nop()),
		Credentials: application.NewCredentialsService(accounts, zerolog.Nop()),
		Discovery:   application.NewDiscoveryService(accounts, schemas, client, nil, 2, zerolog.Nop()),
		Health:      application.NewHealthService(schemas, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, zerolog.Nop()),
		SwaggerFile: "../../docs/swagger.json",
	}, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func call(t *testing.T, method, url, body string) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env
}

func TestSwaggerDocument(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/swagger/doc.json")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var doc struct {
		Swagger string                    `json:"swagger"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("invalid document: %v", err)
	}
	if resp.StatusCode != http.StatusOK || doc.Swagger != "2.0" {
		t.Fatalf("status = %d swagger = %q", resp.StatusCode, doc.Swagger)
	}
	for path, method := range map[string]string{
		"/api/v1/accounts/{id}/inventory/low-stock": "get",
		"/api/v1/discovery/run":                     "post",
		"/api/v1/discovery/health":                  "get",
	} {
		if _, ok := doc.Paths[path][method]; !ok {
			t.Errorf("document has no %s %s", method, path)
		}
	}

	ui, err := http.Get(srv.URL + "/swagger/index.html")
	if err != nil {
		t.Fatal(err)
	}
	ui.Body.Close()
	if ui.StatusCode != http.StatusOK {
		t.Errorf("swagger ui status = %d", ui.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("status = %d body = %v", resp.StatusCode, body)
	}
}

func TestMarketplaceMetadata(t *testing.T) {
	srv := newTestServer(t)

	status, env := call(t, http.MethodGet, srv.URL+"/api/v1/marketplaces", "")
	var matrix []application.MarketplaceInfo
	_ = json.Unmarshal(env.Data, &matrix)
	if status != http.StatusOK || len(matrix) != 4 {
		t.Errorf("status = %d matrix = %d", status, len(matrix))
	}

	status, env = call(t, http.MethodGet, srv.URL+"/api/v1/marketplaces/amazon/requirements", "")
	var req domain.Requirements
	_ = json.Unmarshal(env.Data, &req)
	if status != http.StatusOK || req.Marketplace != domain.MarketplaceAmazon {
		t.Errorf("status = %d requirements = %+v", status, req)
	}

	status, _ = call(t, http.MethodGet, srv.URL+"/api/v1/marketplaces/etsy/requirements", "")
	if status != http.StatusNotFound {
		t.Errorf("unknown marketplace status = %d", status)
	}
}

func TestDiscoveryEndpoints(t *testing.T) {
	srv := newTestServer(t)

	status, env := call(t, http.MethodPost, srv.URL+"/api/v1/discovery/accounts/shop", "")
	var result domain.DiscoveryResult
	_ = json.Unmarshal(env.Data, &result)
	if status != http.StatusOK || !result.Success || result.FieldsDiscovered != 16 {
		t.Fatalf("status = %d result = %+v", status, result)
	}

	status, _ = call(t, http.MethodPost, srv.URL+"/api/v1/discovery/accounts/nope", "")
	if status != http.StatusNotFound {
		t.Errorf("unknown account status = %d", status)
	}

	status, env = call(t, http.MethodGet, srv.URL+"/api/v1/discovery/statistics", "")
	var stats domain.DiscoveryStatistics
	_ = json.Unmarshal(env.Data, &stats)
	if status != http.StatusOK || stats.FieldDefinitions.Total != 16 {
		t.Errorf("status = %d stats = %+v", status, stats)
	}

	status, env = call(t, http.MethodGet, srv.URL+"/api/v1/discovery/health", "")
	var report domain.HealthReport
	_ = json.Unmarshal(env.Data, &report)
	if status != http.StatusOK || report.FieldHealth.HealthScore != 100 {
		t.Errorf("status = %d report = %+v", status, report.FieldHealth)
	}

	status, _ = call(t, http.MethodPost, srv.URL+"/api/v1/discovery/sync-outdated?days=zero", "")
	if status != http.StatusBadRequest {
		t.Errorf("bad days status = %d", status)
	}

	status, env = call(t, http.MethodPost, srv.URL+"/api/v1/discovery/sync-outdated?days=30", "")
	var summary domain.BatchSummary
	_ = json.Unmarshal(env.Data, &summary)
	if status != http.StatusOK || summary.ProcessedAccounts != 0 {
		t.Errorf("status = %d summary = %+v", status, summary)
	}
}

func TestBulkDryRun(t *testing.T) {
	srv := newTestServer(t)

	body := `{"dry_run":true,"products":[{"sku":"A","title":"Lamp","price":"10.00","quantity":1},{"title":"no sku"}]}`
	status, env := call(t, http.MethodPost, srv.URL+"/api/v1/accounts/shop/products/bulk", body)
	var result struct {
		ProcessedCount int    `json:"processed_count"`
		FailedCount    int    `json:"failed_count"`
		DurationMs     *int64 `json:"duration_ms"`
	}
	_ = json.Unmarshal(env.Data, &result)
	if status != http.StatusOK || result.ProcessedCount != 1 || result.FailedCount != 1 {
		t.Errorf("status = %d result = %+v", status, result)
	}
	if result.DurationMs == nil {
		t.Error("bulk result has no duration_ms")
	}

	status, _ = call(t, http.MethodPost, srv.URL+"/api/v1/accounts/shop/inventory/sync", "{")
	if status != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", status)
	}
}

func TestCredentialStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	code, env := call(t, http.MethodGet, srv.URL+"/api/v1/accounts/shop/credentials", "")
	if code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d env = %+v", code, env)
	}
	var status application.CredentialStatus
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatal(err)
	}
	if !status.Complete || status.Credentials["access_token"] != "****at_1" {
		t.Errorf("status = %+v", status)
	}

	if code, _ := call(t, http.MethodGet, srv.URL+"/api/v1/accounts/missing/credentials", ""); code != http.StatusNotFound {
		t.Errorf("unknown account status = %d", code)
	}
}

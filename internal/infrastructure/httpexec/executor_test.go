package httpexec

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"archie-core-marketplace-layer/internal/domain"

	"github.com/rs/zerolog"
)

func newTestExecutor() *Executor {
	e := NewExecutor(Options{Limiter: Unpaced{}}, zerolog.Nop())
	e.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return e
}

func statusServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDoClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		status int
		kind   domain.ErrorKind
	}{
		{http.StatusUnauthorized, domain.ErrAuthenticationFailed},
		{http.StatusForbidden, domain.ErrAuthorizationFailed},
		{http.StatusTooManyRequests, domain.ErrRateLimitExceeded},
		{http.StatusInternalServerError, domain.ErrServerError},
		{http.StatusBadGateway, domain.ErrServerError},
		{http.StatusTeapot, domain.ErrUnclassified},
	}

	e := newTestExecutor().WithRetry(NoRetry())
	for _, tt := range tests {
		srv := statusServer(t, tt.status, `{"message":"nope"}`, nil)
		res := e.Do(context.Background(), Request{Marketplace: domain.MarketplaceMirakl, URL: srv.URL + "/api/x"})
		if res.Ok() {
			t.Fatalf("status %d: expected failure", tt.status)
		}
		if res.Err.Kind != tt.kind {
			t.Errorf("status %d: kind = %s, want %s", tt.status, res.Err.Kind, tt.kind)
		}
		if res.Err.Status != tt.status {
			t.Errorf("status %d: recorded status = %d", tt.status, res.Err.Status)
		}
		if tt.kind != domain.ErrUnclassified && res.Err.Recommendation == "" {
			t.Errorf("status %d: expected a recommendation", tt.status)
		}
	}
}

func TestDoParsesErrorDetail(t *testing.T) {
	e := newTestExecutor().WithRetry(NoRetry())

	srv := statusServer(t, http.StatusBadRequest, `{"errors":[{"message":"sku is invalid"}]}`, nil)
	res := e.Do(context.Background(), Request{URL: srv.URL})
	if res.Err == nil || res.Err.Message != "HTTP 400: sku is invalid" {
		t.Fatalf("unexpected error: %+v", res.Err)
	}
	if _, ok := res.Err.Detail.(map[string]any); !ok {
		t.Errorf("expected structured detail, got %T", res.Err.Detail)
	}

	raw := statusServer(t, http.StatusBadRequest, "plain failure", nil)
	res = e.Do(context.Background(), Request{URL: raw.URL})
	if res.Err.Detail != "plain failure" {
		t.Errorf("expected raw text detail, got %v", res.Err.Detail)
	}
}

func TestDoSuccess(t *testing.T) {
	var gotUA, gotAccept, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	res := newTestExecutor().Do(context.Background(), Request{
		Marketplace: domain.MarketplaceMirakl,
		URL:         srv.URL,
		Headers:     map[string]string{"Authorization": "secret"},
	})
	if !res.Ok() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if string(res.Data) != `{"ok":true}` {
		t.Errorf("data = %s", res.Data)
	}
	if res.Status != http.StatusOK {
		t.Errorf("status = %d", res.Status)
	}
	if gotUA != DefaultUserAgent || gotAccept != "application/json" || gotAuth != "secret" {
		t.Errorf("headers not applied: ua=%q accept=%q auth=%q", gotUA, gotAccept, gotAuth)
	}
}

func TestDoEmptyBodyIsNull(t *testing.T) {
	srv := statusServer(t, http.StatusNoContent, "", nil)
	res := newTestExecutor().Do(context.Background(), Request{Method: http.MethodDelete, URL: srv.URL})
	if !res.Ok() || string(res.Data) != "null" {
		t.Fatalf("expected null payload, got %s (%v)", res.Data, res.Err)
	}
}

func TestDoRetriesIdempotentRequests(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	res := newTestExecutor().Do(context.Background(), Request{URL: srv.URL})
	if !res.Ok() {
		t.Fatalf("expected success after retries, got %v", res.Err)
	}
	if hits != 3 {
		t.Errorf("hits = %d, want 3", hits)
	}
}

func TestDoDoesNotRetryMutations(t *testing.T) {
	var hits int32
	srv := statusServer(t, http.StatusInternalServerError, "", &hits)

	res := newTestExecutor().Do(context.Background(), Request{Method: http.MethodPost, URL: srv.URL, Body: map[string]string{"sku": "A"}})
	if res.Ok() || res.Err.Kind != domain.ErrServerError {
		t.Fatalf("expected server_error, got %+v", res)
	}
	if hits != 1 {
		t.Errorf("POST sent %d times, want 1", hits)
	}

	hits = 0
	res = newTestExecutor().Do(context.Background(), Request{Method: http.MethodPost, URL: srv.URL, IdempotencyKey: "k-1"})
	if hits != 3 {
		t.Errorf("POST with idempotency key sent %d times, want 3", hits)
	}
}

func TestDoTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := newTestExecutor().Do(context.Background(), Request{URL: url})
	if res.Ok() || res.Err.Kind != domain.ErrException {
		t.Fatalf("expected exception, got %+v", res.Err)
	}
}

func TestDoRejectsRelativeURL(t *testing.T) {
	res := newTestExecutor().Do(context.Background(), Request{URL: "/api/offers"})
	if res.Ok() || res.Err.Kind != domain.ErrConfiguration {
		t.Fatalf("expected configuration_error, got %+v", res.Err)
	}
}

func TestDoEncodesBody(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	res := newTestExecutor().Do(context.Background(), Request{Method: http.MethodPut, URL: srv.URL, Body: map[string]string{"sku": "A-1"}})
	if !res.Ok() || got["sku"] != "A-1" {
		t.Fatalf("body not delivered: %v %v", got, res.Err)
	}
}

func TestLocalLimiterSpacesCalls(t *testing.T) {
	l := NewLocalLimiter()
	limits := domain.RateLimits{RequestsPerMinute: 1200} // one call per 50ms

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background(), domain.MarketplaceEbay, limits); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("3 calls took %v, expected at least 100ms of spacing", elapsed)
	}
}

func TestLocalLimiterUnpacedWhenNoLimit(t *testing.T) {
	l := NewLocalLimiter()
	start := time.Now()
	for i := 0; i < 50; i++ {
		_ = l.Wait(context.Background(), domain.MarketplaceShopify, domain.RateLimits{})
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("unlimited marketplace was paced")
	}
}

func TestHTTPClientRetriesAndSetsHeaders(t *testing.T) {
	var hits int32
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestExecutor().HTTPClient(domain.MarketplaceShopify, "acc-1", domain.RateLimits{})
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || hits != 2 {
		t.Errorf("status=%d hits=%d", resp.StatusCode, hits)
	}
	if ua != DefaultUserAgent {
		t.Errorf("user agent = %q", ua)
	}
}

func TestHTTPClientTimeoutAppliesPerAttempt(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	e := NewExecutor(Options{Limiter: Unpaced{}, Timeout: 100 * time.Millisecond}, zerolog.Nop())
	e.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	client := e.HTTPClient(domain.MarketplaceShopify, "acc-1", domain.RateLimits{})
	if client.Timeout != 0 {
		t.Errorf("client timeout = %v, want per-attempt only", client.Timeout)
	}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("expected the second attempt to succeed, got %v", err)
	}
	defer resp.Body.Close()

	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || !body["ok"] {
		t.Errorf("body = %v (%v)", body, err)
	}
	if hits != 2 {
		t.Errorf("hits = %d, want 2", hits)
	}
}

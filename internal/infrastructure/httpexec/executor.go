package httpexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"archie-core-marketplace-layer/internal/domain"

	"github.com/rs/zerolog"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "archie-marketplace-layer/1.0"
)

// Options configures an Executor. Zero values fall back to the defaults.
type Options struct {
	Timeout   time.Duration
	Retry     RetryPolicy
	Limiter   Limiter
	Transport http.RoundTripper
	UserAgent string
}

// Signer adds request-signing headers once the final request is assembled
type Signer func(req *http.Request, body []byte) error

// Request is one outbound marketplace call
type Request struct {
	Marketplace    domain.Marketplace
	AccountID      string
	RateLimits     domain.RateLimits
	Method         string
	URL            string
	Query          url.Values
	Headers        map[string]string
	Body           any // marshaled as JSON; []byte and json.RawMessage are sent as is
	IdempotencyKey string
	Sign           Signer
}

// Executor performs outbound calls with pacing, default headers, timeout and retry,
// and classifies their outcome into a Result.
type Executor struct {
	transport http.RoundTripper
	limiter   Limiter
	retry     RetryPolicy
	timeout   time.Duration
	userAgent string
	logger    zerolog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates a new request executor
func NewExecutor(opts Options, logger zerolog.Logger) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Limiter == nil {
		opts.Limiter = NewLocalLimiter()
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Executor{
		transport: opts.Transport,
		limiter:   opts.Limiter,
		retry:     opts.Retry,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		logger:    logger.With().Str("component", "executor").Logger(),
		sleep:     sleepContext,
	}
}

// WithRetry returns a copy of the executor using another retry policy.
// The copy shares the limiter, so pacing stays per marketplace.
func (e *Executor) WithRetry(p RetryPolicy) *Executor {
	cp := *e
	if p.MaxAttempts <= 0 {
		p = DefaultRetryPolicy()
	}
	cp.retry = p
	return &cp
}

// RetryPolicy returns the policy the executor applies
func (e *Executor) RetryPolicy() RetryPolicy {
	return e.retry
}

// Do executes the request and classifies its outcome
func (e *Executor) Do(ctx context.Context, req Request) domain.Result[json.RawMessage] {
	start := time.Now()

	body, err := encodeBody(req.Body)
	if err != nil {
		return domain.Failure[json.RawMessage](domain.NewError(domain.ErrValidation, err.Error()), time.Since(start))
	}

	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		return domain.Failure[json.RawMessage](domain.NewError(domain.ErrConfiguration, err.Error()), time.Since(start))
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	attempts := e.retry.attemptsFor(method, req.IdempotencyKey)
	var (
		status    int
		respBody  []byte
		sendErr   error
		attempted int
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			retriesTotal.WithLabelValues(string(req.Marketplace)).Inc()
			if err := e.sleep(ctx, e.retry.Backoff); err != nil {
				sendErr = err
				break
			}
		}
		if err := e.limiter.Wait(ctx, req.Marketplace, req.RateLimits); err != nil {
			sendErr = fmt.Errorf("rate limiter: %w", err)
			break
		}

		attempted = attempt
		status, respBody, sendErr = e.send(ctx, method, target, req, body)
		if !retryable(status, sendErr) {
			break
		}
	}

	duration := time.Since(start)
	recordRequest(req.Marketplace, status, sendErr, duration)

	logEvent := e.logger.Info()
	if sendErr != nil || status >= 400 {
		logEvent = e.logger.Warn()
	}
	logEvent.
		Str("marketplace", string(req.Marketplace)).
		Str("accountId", req.AccountID).
		Str("method", method).
		Str("path", target.Path).
		Int("status", status).
		Int("attempts", attempted).
		Dur("duration", duration).
		Err(sendErr).
		Msg("Marketplace request completed")

	if sendErr != nil {
		return domain.Failure[json.RawMessage](TransportError(sendErr), duration)
	}
	if status < 200 || status >= 300 {
		return domain.Failure[json.RawMessage](ClassifyResponse(status, respBody), duration)
	}

	data := json.RawMessage(bytes.TrimSpace(respBody))
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return domain.Success(data, status, duration)
}

func (e *Executor) send(ctx context.Context, method string, target *url.URL, req Request, body []byte) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	e.applyDefaultHeaders(httpReq.Header)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	if req.Sign != nil {
		if err := req.Sign(httpReq, body); err != nil {
			return 0, nil, fmt.Errorf("failed to sign request: %w", err)
		}
	}

	resp, err := e.transport.RoundTrip(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (e *Executor) applyDefaultHeaders(h http.Header) {
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", e.userAgent)
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		return data, nil
	}
}

func buildURL(raw string, query url.Values) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid request url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid request url %q: scheme and host are required", raw)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package httpexec

import (
	"context"
	"io"
	"net/http"
	"time"

	"archie-core-marketplace-layer/internal/domain"

	"github.com/rs/zerolog"
)

// HTTPClient returns an *http.Client for SDK-backed adapters. Its transport applies
// the same pacing, default headers, retry policy, logging and metrics as Do.
// The executor timeout bounds each attempt, not the whole call.
func (e *Executor) HTTPClient(m domain.Marketplace, accountID string, limits domain.RateLimits) *http.Client {
	return &http.Client{
		Transport: &instrumentedTransport{
			exec:        e,
			marketplace: m,
			accountID:   accountID,
			limits:      limits,
			logger:      e.logger,
		},
	}
}

// cancelOnClose releases an attempt's timeout once the caller is done with the body
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

type instrumentedTransport struct {
	exec        *Executor
	marketplace domain.Marketplace
	accountID   string
	limits      domain.RateLimits
	logger      zerolog.Logger
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	attempts := t.exec.retry.attemptsFor(req.Method, req.Header.Get("Idempotency-Key"))
	if req.Body != nil && req.GetBody == nil {
		attempts = 1
	}

	var (
		resp *http.Response
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
		if attempt > 1 {
			retriesTotal.WithLabelValues(string(t.marketplace)).Inc()
			if err = t.exec.sleep(ctx, t.exec.retry.Backoff); err != nil {
				break
			}
		}
		if err = t.exec.limiter.Wait(ctx, t.marketplace, t.limits); err != nil {
			break
		}

		attemptCtx, cancel := context.WithTimeout(ctx, t.exec.timeout)
		out := req.Clone(attemptCtx)
		if req.Body != nil && req.GetBody != nil {
			if out.Body, err = req.GetBody(); err != nil {
				cancel()
				break
			}
		}
		if out.Header.Get("Accept") == "" {
			out.Header.Set("Accept", "application/json")
		}
		if out.Header.Get("Content-Type") == "" {
			out.Header.Set("Content-Type", "application/json")
		}
		out.Header.Set("User-Agent", t.exec.userAgent)

		resp, err = t.exec.transport.RoundTrip(out)
		status := 0
		if resp != nil {
			status = resp.StatusCode
			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		} else {
			cancel()
		}
		if attempt == attempts || !retryable(status, err) {
			break
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			resp = nil
		}
	}

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	duration := time.Since(start)
	recordRequest(t.marketplace, status, err, duration)

	logEvent := t.logger.Info()
	if err != nil || status >= 400 {
		logEvent = t.logger.Warn()
	}
	logEvent.
		Str("marketplace", string(t.marketplace)).
		Str("accountId", t.accountID).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", status).
		Dur("duration", duration).
		Err(err).
		Msg("Marketplace request completed")

	return resp, err
}

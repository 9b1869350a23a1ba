// Package webclient implements the privacy-hardened HTTP client used for all
// outbound web calls. Every request carries a fixed minimal header set and
// nothing else that could identify the user: no cookies ever leave the
// process, and Set-Cookie headers are stripped at the transport boundary so
// no caller can observe them. Transient failures on idempotent methods are
// retried under a bounded exponential-backoff policy.
package webclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dresos/duckbot/internal/logging"
	"github.com/dresos/duckbot/internal/metrics"
)

// Fixed outbound header policy. The forwarded-for address is from the
// TEST-NET-3 documentation range and is deliberately not a real address.
const (
	UserAgent        = "DuckBot/1.0"
	FakeForwardedFor = "203.0.113.42"
)

const (
	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

// Coarse failure kinds surfaced to callers. The underlying error text is
// logged but never wrapped into these, so nothing internal can leak into a
// chat reply.
var (
	// ErrTimeout — the attempt exceeded the per-attempt deadline. Transient.
	ErrTimeout = errors.New("network timeout")
	// ErrUnavailable — connection failure or server-class (5xx) response,
	// surfaced after the retry budget is exhausted. Transient per attempt.
	ErrUnavailable = errors.New("network unavailable")
	// ErrRejected — client-class (4xx) response. Deterministic, never retried.
	ErrRejected = errors.New("request rejected upstream")
)

// Client issues privacy-hardened HTTP requests.
type Client struct {
	httpClient *http.Client
	retry      RetryPolicy
	timeout    time.Duration
}

// New creates a Client with the given retry policy and per-attempt timeout.
// A timeout of zero selects the 5s default.
func New(retry RetryPolicy, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Transport: &strippingTransport{base: http.DefaultTransport},
		},
		retry:   retry,
		timeout: timeout,
	}
}

// strippingTransport enforces the cookie invariants on every round trip:
// no Cookie header is transmitted and no Set-Cookie/Set-Cookie2 header is
// returned. Doing this at the RoundTripper level covers redirects too, since
// the http.Client re-enters the transport for each hop.
type strippingTransport struct {
	base http.RoundTripper
}

func (t *strippingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Del("Cookie")
	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		resp.Header.Del("Set-Cookie")
		resp.Header.Del("Set-Cookie2")
	}
	return resp, err
}

// Execute performs an HTTP request and returns the response body. Idempotent
// methods are retried on transient failures (timeouts, connection errors,
// 5xx) up to the policy's attempt budget with exponential backoff; 4xx
// responses and non-idempotent methods abort after a single attempt. The
// returned error is always one of the coarse kinds above.
func (c *Client) Execute(ctx context.Context, method, rawURL string, params url.Values) ([]byte, error) {
	log := logging.FromContext(ctx)

	attempts := 1
	if c.retry.Retryable(method) {
		attempts = c.retry.attempts()
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			metrics.SearchRetries.Inc()
			if err := c.retry.Wait(ctx, attempt-1); err != nil {
				// Caller context cancelled mid-backoff: abandon remaining attempts.
				return nil, lastErr
			}
			log.Info("retrying request", "method", method, "attempt", attempt+1)
		}

		body, err := c.attempt(ctx, method, rawURL, params)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrRejected) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// Do performs a single privacy-hardened request without retries and returns
// the raw response. The caller owns resp.Body. Set-Cookie headers have
// already been stripped by the transport.
func (c *Client) Do(ctx context.Context, method, rawURL string, params url.Values) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, rawURL, params)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, ErrRejected
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, ErrRejected
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("DNT", "1")
	req.Header.Set("X-Forwarded-For", FakeForwardedFor)
	return req, nil
}

// attempt performs one bounded request and classifies the outcome.
func (c *Client) attempt(ctx context.Context, method, rawURL string, params url.Values) ([]byte, error) {
	log := logging.FromContext(ctx)

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(attemptCtx, method, rawURL, params)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Log the detail, surface only the kind.
		log.Warn("request failed", "method", method, "error", err.Error())
		if attemptCtx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		var ue interface{ Timeout() bool }
		if errors.As(err, &ue) && ue.Timeout() {
			return nil, ErrTimeout
		}
		return nil, ErrUnavailable
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			log.Warn("response read failed", "method", method, "error", readErr.Error())
			return nil, ErrUnavailable
		}
		return body, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		log.Warn("request rejected", "method", method, "status", resp.StatusCode)
		return nil, ErrRejected
	default:
		log.Warn("upstream unavailable", "method", method, "status", resp.StatusCode)
		return nil, ErrUnavailable
	}
}

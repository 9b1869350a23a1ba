package webclient

import (
	"context"
	"math"
	"net/http"
	"time"
)

// RetryPolicy bounds how often and how fast a request may be reissued.
// Retries are restricted to idempotent methods; everything else gets exactly
// one attempt regardless of the configured budget.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, first try included.
	MaxAttempts int
	// BaseDelay is the backoff unit. The delay before attempt n (0-based
	// retry count) is BaseDelay * 2^n.
	BaseDelay time.Duration
}

// DefaultRetryPolicy mirrors the production search configuration:
// three attempts with a 300ms backoff base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 300 * time.Millisecond}
}

// Retryable reports whether method is safe to reissue.
func (p RetryPolicy) Retryable(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// Delay returns the backoff before the given retry (0-based: the delay
// between the first and second attempt is Delay(0)).
func (p RetryPolicy) Delay(retry int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 300 * time.Millisecond
	}
	return time.Duration(math.Pow(2, float64(retry))) * base
}

// Wait sleeps for the backoff preceding the given retry, or returns early
// with ctx.Err() if the caller context is cancelled. A cancelled wait means
// no further attempts should be issued.
func (p RetryPolicy) Wait(ctx context.Context, retry int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.Delay(retry)):
		return nil
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 3
	}
	return p.MaxAttempts
}

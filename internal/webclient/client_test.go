package webclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond}
}

func TestClient_HeaderPolicy(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(fastPolicy(1), time.Second)
	if _, err := c.Execute(context.Background(), http.MethodGet, srv.URL, nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if got := gotHeaders.Get("User-Agent"); got != UserAgent {
		t.Errorf("User-Agent = %q, want %q", got, UserAgent)
	}
	if got := gotHeaders.Get("DNT"); got != "1" {
		t.Errorf("DNT = %q, want 1", got)
	}
	if got := gotHeaders.Get("X-Forwarded-For"); got != FakeForwardedFor {
		t.Errorf("X-Forwarded-For = %q, want %q", got, FakeForwardedFor)
	}
	if _, ok := gotHeaders["Cookie"]; ok {
		t.Error("outbound request must not carry a Cookie header")
	}
}

func TestClient_StripsSetCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Set-Cookie", "session=secret")
		w.Header().Set("Set-Cookie2", "session2=secret")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(fastPolicy(1), time.Second)
	resp, err := c.Do(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if v := resp.Header.Get("Set-Cookie"); v != "" {
		t.Errorf("Set-Cookie leaked to caller: %q", v)
	}
	if v := resp.Header.Get("Set-Cookie2"); v != "" {
		t.Errorf("Set-Cookie2 leaked to caller: %q", v)
	}
	if len(resp.Cookies()) != 0 {
		t.Errorf("resp.Cookies() = %d entries, want 0", len(resp.Cookies()))
	}
}

func TestClient_RetriesTransientFailuresOnGet(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(fastPolicy(3), time.Second)
	_, err := c.Execute(context.Background(), http.MethodGet, srv.URL, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Execute() error = %v, want ErrUnavailable", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server saw %d attempts, want 3", got)
	}
}

func TestClient_RecoversWithinBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(fastPolicy(3), time.Second)
	body, err := c.Execute(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server saw %d attempts, want 3", got)
	}
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(fastPolicy(3), time.Second)
	_, err := c.Execute(context.Background(), http.MethodGet, srv.URL, nil)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Execute() error = %v, want ErrRejected", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server saw %d attempts, want 1 (4xx must not retry)", got)
	}
}

func TestClient_NoRetryOnNonIdempotentMethod(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(fastPolicy(3), time.Second)
	_, err := c.Execute(context.Background(), http.MethodPost, srv.URL, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Execute() error = %v, want ErrUnavailable", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server saw %d attempts, want 1 (POST must not retry)", got)
	}
}

func TestClient_TimeoutIsTransient(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(fastPolicy(2), 20*time.Millisecond)
	_, err := c.Execute(context.Background(), http.MethodGet, srv.URL, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Execute() error = %v, want ErrTimeout", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("server saw %d attempts, want 2 (timeouts retry within budget)", got)
	}
}

func TestClient_QueryParams(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(fastPolicy(1), time.Second)
	params := url.Values{"q": {"capital of france"}, "format": {"json"}}
	if _, err := c.Execute(context.Background(), http.MethodGet, srv.URL, params); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got := gotQuery.Get("q"); got != "capital of france" {
		t.Errorf("q = %q, want 'capital of france'", got)
	}
	if got := gotQuery.Get("format"); got != "json" {
		t.Errorf("format = %q, want json", got)
	}
}

func TestClient_CancelledContextStopsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour}, time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := c.Execute(ctx, http.MethodGet, srv.URL, nil)
		done <- err
	}()

	// Let the first attempt complete, then cancel during the backoff wait.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("Execute() error = %v, want ErrUnavailable from last attempt", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Execute() did not return after cancellation")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server saw %d attempts, want 1 (cancellation abandons retries)", got)
	}
}

package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dresos/duckbot/guard"
	"github.com/dresos/duckbot/internal/guards/ipquery"
	"github.com/dresos/duckbot/internal/webclient"
)

func testClient() *webclient.Client {
	return webclient.New(webclient.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond}, time.Second)
}

func TestDuckDuckGo_RequestShape(t *testing.T) {
	var gotQuery url.Values
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"Answer":"42"}`))
	}))
	defer srv.Close()

	ddg := NewDuckDuckGo(testClient(), srv.URL)
	if _, err := ddg.Search(context.Background(), "meaning of life"); err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	want := map[string]string{
		"q":             "meaning of life",
		"format":        "json",
		"no_html":       "1",
		"no_redirect":   "1",
		"skip_disambig": "1",
	}
	for key, value := range want {
		if got := gotQuery.Get(key); got != value {
			t.Errorf("query %s = %q, want %q", key, got, value)
		}
	}
	if gotUA != webclient.UserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, webclient.UserAgent)
	}
}

func TestDuckDuckGo_PrefersAnswerOverAbstract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Answer":"direct answer","AbstractText":"abstract","AbstractURL":"https://example.org/a"}`))
	}))
	defer srv.Close()

	ddg := NewDuckDuckGo(testClient(), srv.URL)
	got, err := ddg.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if got.Summary != "direct answer" {
		t.Errorf("Summary = %q, want the Answer field", got.Summary)
	}
	if got.SummaryURL != "https://example.org/a" {
		t.Errorf("SummaryURL = %q, want abstract URL", got.SummaryURL)
	}
}

func TestDuckDuckGo_FallsBackToAbstract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"AbstractText":"Paris is the capital of France."}`))
	}))
	defer srv.Close()

	ddg := NewDuckDuckGo(testClient(), srv.URL)
	got, err := ddg.Search(context.Background(), "capital of france")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if got.Summary != "Paris is the capital of France." {
		t.Errorf("Summary = %q", got.Summary)
	}
}

func TestDuckDuckGo_TruncatesRelatedTopics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"AbstractText": "summary",
			"RelatedTopics": [
				{"Text": "one"},
				{"Text": "  "},
				{"Text": "two"},
				{"Text": "three"},
				{"Text": "four"},
				{"Text": "five"}
			]
		}`))
	}))
	defer srv.Close()

	ddg := NewDuckDuckGo(testClient(), srv.URL)
	got, err := ddg.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	want := []string{"one", "two", "three"}
	if len(got.Related) != len(want) {
		t.Fatalf("Related = %v, want %v", got.Related, want)
	}
	for i := range want {
		if got.Related[i] != want[i] {
			t.Errorf("Related[%d] = %q, want %q", i, got.Related[i], want[i])
		}
	}
}

func TestDuckDuckGo_EmptyPayloadIsNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Answer":"","AbstractText":"","RelatedTopics":[]}`))
	}))
	defer srv.Close()

	ddg := NewDuckDuckGo(testClient(), srv.URL)
	_, err := ddg.Search(context.Background(), "zxqv")
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("Search() error = %v, want ErrNoResult", err)
	}
}

func TestDuckDuckGo_MalformedPayloadIsNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	ddg := NewDuckDuckGo(testClient(), srv.URL)
	_, err := ddg.Search(context.Background(), "q")
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("Search() error = %v, want ErrNoResult", err)
	}
}

// End-to-end: filter chain in front of the real backend against a local server.
func TestService_EndToEnd(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"AbstractText":"Paris"}`))
	}))
	defer srv.Close()

	chain := guard.NewChain()
	ipFilter := &ipquery.Filter{}
	if err := ipFilter.Init(nil); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	chain.Add(ipFilter)

	svc := NewService(chain, NewDuckDuckGo(testClient(), srv.URL))

	got, err := svc.Search(context.Background(), "capital of france")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if got.Summary != "Paris" {
		t.Errorf("Summary = %q, want Paris", got.Summary)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("server saw %d hits, want 1", hits)
	}

	_, err = svc.Search(context.Background(), "what is my ip address")
	if !errors.Is(err, ErrRefused) {
		t.Fatalf("Search() error = %v, want ErrRefused", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("server saw %d hits after refusal, want still 1", hits)
	}
}

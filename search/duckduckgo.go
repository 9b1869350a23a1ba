package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/dresos/duckbot/internal/webclient"
)

const (
	defaultBaseURL = "https://api.duckduckgo.com/"
	maxRelated     = 3
)

// DuckDuckGo queries the DuckDuckGo instant-answer API through the
// privacy-hardened web client.
type DuckDuckGo struct {
	client  *webclient.Client
	baseURL string
}

// NewDuckDuckGo creates a DuckDuckGo backend. The optional baseURL parameter
// allows overriding the API endpoint (pass "" for the default).
func NewDuckDuckGo(client *webclient.Client, baseURL string) *DuckDuckGo {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &DuckDuckGo{client: client, baseURL: baseURL}
}

// ddgResponse is the allow-listed slice of the instant-answer payload.
// Everything the upstream sends beyond these fields is dropped at decode time.
type ddgResponse struct {
	Answer        string `json:"Answer"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	RelatedTopics []struct {
		Text string `json:"Text"`
	} `json:"RelatedTopics"`
}

// Search performs a GET against the instant-answer endpoint. HTML and
// disambiguation pages are suppressed via query flags so the response stays
// machine-parseable.
func (d *DuckDuckGo) Search(ctx context.Context, query string) (*Result, error) {
	params := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"no_redirect":   {"1"},
		"skip_disambig": {"1"},
	}

	body, err := d.client.Execute(ctx, http.MethodGet, d.baseURL, params)
	if err != nil {
		return nil, err
	}

	var payload ddgResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		// Malformed upstream payloads are a clean no-result, not a crash.
		return nil, ErrNoResult
	}

	result := &Result{SummaryURL: payload.AbstractURL}
	switch {
	case payload.Answer != "":
		result.Summary = payload.Answer
	case payload.AbstractText != "":
		result.Summary = payload.AbstractText
	}

	for _, topic := range payload.RelatedTopics {
		if len(result.Related) == maxRelated {
			break
		}
		if text := strings.TrimSpace(topic.Text); text != "" {
			result.Related = append(result.Related, text)
		}
	}

	if result.Summary == "" && len(result.Related) == 0 {
		return nil, ErrNoResult
	}
	return result, nil
}

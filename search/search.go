// Package search implements the web-search service behind the /search
// command. A Service composes a guard filter chain with a privacy-hardened
// backend: queries are classified first, and a refused query never reaches
// the network. Backend responses are reduced to an allow-listed Result; all
// other upstream fields are discarded on parse.
package search

import (
	"context"
	"errors"
	"time"

	"github.com/dresos/duckbot/guard"
	"github.com/dresos/duckbot/internal/logging"
	"github.com/dresos/duckbot/internal/metrics"
)

// Failure classes surfaced to the command boundary.
var (
	// ErrRefused — a guard filter blocked the query before any network call.
	ErrRefused = errors.New("query refused")
	// ErrNoResult — the upstream answered but held nothing usable.
	ErrNoResult = errors.New("no result")
	// ErrUnavailable — the upstream could not be reached within the retry
	// budget. Generic by design; carries no upstream diagnostics.
	ErrUnavailable = errors.New("search unavailable")
)

// RefusedError reports which filter refused a query and the fixed user-safe
// message to show. It matches ErrRefused under errors.Is.
type RefusedError struct {
	Filter  string
	Message string
}

func (e *RefusedError) Error() string { return "query refused by filter " + e.Filter }

// Is makes errors.Is(err, ErrRefused) work for RefusedError values.
func (e *RefusedError) Is(target error) bool { return target == ErrRefused }

// Result is the allow-listed subset of an upstream search response.
type Result struct {
	// Summary is the short answer or abstract text.
	Summary string
	// SummaryURL is the source URL for the summary, when the upstream has one.
	SummaryURL string
	// Related holds up to maxRelated related-topic titles, in upstream order.
	Related []string
}

// Backend performs the actual upstream call for an already-vetted query.
type Backend interface {
	Search(ctx context.Context, query string) (*Result, error)
}

// Service vets queries through a guard chain and delegates to a backend.
type Service struct {
	chain   *guard.Chain
	backend Backend
}

// NewService creates a search service. The chain may be empty but not nil.
func NewService(chain *guard.Chain, backend Backend) *Service {
	return &Service{chain: chain, backend: backend}
}

// Vet classifies text against the guard chain without performing any search.
// The dispatcher uses it to block disallowed plain chat text (not just
// /search arguments). Returns the refusal message when a filter blocks.
func (s *Service) Vet(text string) (string, bool) {
	verdict, name := s.chain.Check(text)
	if !verdict.Refuse {
		return "", false
	}
	metrics.QueryRefusals.WithLabelValues(name).Inc()
	return verdict.Message, true
}

// Search classifies query and, if allowed, performs the upstream call.
// On refusal it returns a *RefusedError and guarantees zero network calls.
func (s *Service) Search(ctx context.Context, query string) (*Result, error) {
	log := logging.FromContext(ctx)

	if verdict, name := s.chain.Check(query); verdict.Refuse {
		metrics.QueryRefusals.WithLabelValues(name).Inc()
		log.Info("query refused", "filter", name)
		return nil, &RefusedError{Filter: name, Message: verdict.Message}
	}

	start := time.Now()
	result, err := s.backend.Search(ctx, query)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.SearchRequestsTotal.WithLabelValues("success").Inc()
		return result, nil
	case errors.Is(err, ErrNoResult):
		metrics.SearchRequestsTotal.WithLabelValues("no_result").Inc()
		return nil, ErrNoResult
	default:
		metrics.SearchRequestsTotal.WithLabelValues("unavailable").Inc()
		log.Warn("search backend failed", "error", err.Error())
		return nil, ErrUnavailable
	}
}

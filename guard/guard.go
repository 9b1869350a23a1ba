// Package guard defines the Filter interface used to vet search queries
// before any network call is made.
//
// Filters are registered by name via RegisterFactory and loaded from config
// at startup. Each filter is a pure, synchronous classifier: it either lets
// the query proceed or refuses it with a fixed user-safe message. Built-in
// filters live in the internal/guards/* packages and are registered by
// importing them with a blank import
// (e.g. _ "github.com/dresos/duckbot/internal/guards/ipquery").
package guard

// Verdict is the outcome of classifying a single query.
type Verdict struct {
	// Refuse is true when the query must not be forwarded upstream.
	Refuse bool
	// Message is the fixed user-safe refusal message. Empty unless Refuse.
	Message string
}

// Proceed is the zero verdict: the query may be forwarded.
var Proceed = Verdict{}

// Filter classifies queries. Check must be pure and must not perform I/O;
// the dispatcher relies on refusals happening before any network call.
type Filter interface {
	Name() string
	Init(config map[string]interface{}) error
	Check(query string) Verdict
}

// Chain runs filters in registration order and stops at the first refusal.
type Chain struct {
	filters []Filter
}

// NewChain creates an empty filter chain.
func NewChain() *Chain {
	return &Chain{}
}

// Add appends a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Len returns the number of filters in the chain.
func (c *Chain) Len() int {
	return len(c.filters)
}

// Check classifies query against every filter in order. It returns the first
// refusing verdict together with the refusing filter's name, or Proceed and
// an empty name when all filters pass.
func (c *Chain) Check(query string) (Verdict, string) {
	for _, f := range c.filters {
		if v := f.Check(query); v.Refuse {
			return v, f.Name()
		}
	}
	return Proceed, ""
}

// Package ipquery provides a guard filter that refuses search queries asking
// for IP address information. Register it with a blank import:
//
//	_ "github.com/dresos/duckbot/internal/guards/ipquery"
package ipquery

import (
	"regexp"

	"github.com/dresos/duckbot/guard"
)

func init() {
	guard.RegisterFactory("ip-query", func() guard.Filter {
		return &Filter{}
	})
}

// defaultPattern matches phrasings that ask for an IP address, such as
// "what is my ip", "your ip address", or "the ip".
const defaultPattern = `\b(?:ip|my|your|the|your own|user's?)\s*ip\s*(?:address)?\b`

// RefusalMessage is the fixed user-safe message returned for refused queries.
const RefusalMessage = "I'm not allowed to share IP address information."

// Filter refuses queries matching an IP-disclosure pattern set.
type Filter struct {
	patterns []*regexp.Regexp
	message  string
}

// Name returns the filter identifier.
func (f *Filter) Name() string { return "ip-query" }

// Init configures the filter from the provided options map. Supported keys:
// "patterns" (list of extra regexes, case-insensitive) and "message"
// (override for the refusal text). The built-in pattern is always active.
func (f *Filter) Init(config map[string]interface{}) error {
	f.patterns = []*regexp.Regexp{regexp.MustCompile(`(?i)` + defaultPattern)}
	f.message = RefusalMessage

	if raw, ok := config["patterns"]; ok {
		var extras []string
		switch list := raw.(type) {
		case []interface{}:
			for _, p := range list {
				if s, ok := p.(string); ok {
					extras = append(extras, s)
				}
			}
		case []string:
			extras = append(extras, list...)
		}
		for _, expr := range extras {
			re, err := regexp.Compile(`(?i)` + expr)
			if err != nil {
				return err
			}
			f.patterns = append(f.patterns, re)
		}
	}
	if msg, ok := config["message"].(string); ok && msg != "" {
		f.message = msg
	}
	return nil
}

// Check classifies the query. Pure and synchronous.
func (f *Filter) Check(query string) guard.Verdict {
	if query == "" {
		return guard.Proceed
	}
	patterns := f.patterns
	if len(patterns) == 0 {
		// Usable without Init for callers that construct the filter directly.
		patterns = []*regexp.Regexp{regexp.MustCompile(`(?i)` + defaultPattern)}
	}
	for _, re := range patterns {
		if re.MatchString(query) {
			msg := f.message
			if msg == "" {
				msg = RefusalMessage
			}
			return guard.Verdict{Refuse: true, Message: msg}
		}
	}
	return guard.Proceed
}

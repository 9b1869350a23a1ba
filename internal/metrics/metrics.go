// Package metrics registers the Prometheus metrics used by the bot.
// Import this package (via blank import) from the server entry point to
// register all metrics before the /metrics handler is mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsTotal counts dispatched chat commands labelled by command name
	// and outcome ("success", "denied", "refused", "error").
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckbot_commands_total",
			Help: "Total number of chat commands processed by the bot.",
		},
		[]string{"command", "status"},
	)

	// SearchRequestsTotal counts outbound search calls labelled by outcome
	// ("success", "no_result", "unavailable").
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckbot_search_requests_total",
			Help: "Total outbound search requests by outcome.",
		},
		[]string{"status"},
	)

	// SearchRetries counts retry attempts issued by the web client.
	SearchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duckbot_search_retries_total",
			Help: "Total retry attempts issued for outbound search calls.",
		},
	)

	// QueryRefusals counts queries rejected by a guard filter, labelled by
	// filter name.
	QueryRefusals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckbot_query_refusals_total",
			Help: "Total search queries refused before any network call.",
		},
		[]string{"filter"},
	)

	// AuthzDenials counts authorization denials labelled by reason
	// ("blacklisted", "insufficient_role").
	AuthzDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckbot_authz_denials_total",
			Help: "Total authorization denials by reason.",
		},
		[]string{"reason"},
	)

	// ModerationActions counts applied moderation actions labelled by action
	// ("kick", "ban", "unban", "mute", "unmute", "warn", "auto_ban").
	ModerationActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckbot_moderation_actions_total",
			Help: "Total moderation actions applied.",
		},
		[]string{"action"},
	)

	// BlacklistSize tracks the current number of blacklisted caller ids.
	BlacklistSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckbot_blacklist_size",
			Help: "Current number of blacklisted caller ids.",
		},
	)

	// SearchDuration observes end-to-end search latency in seconds,
	// including retries.
	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duckbot_search_duration_seconds",
			Help:    "End-to-end search duration in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Package metrics exposes the bot's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReactionEvents counts live reaction events by action (add/remove)
	// and classified role.
	ReactionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_reaction_events_total",
			Help: "Live reaction events applied, by action and role",
		},
		[]string{"action", "role"},
	)

	// DroppedEvents counts live events discarded without any adjustment.
	DroppedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_dropped_events_total",
			Help: "Live reaction events dropped, by reason",
		},
		[]string{"reason"},
	)

	// ScansTotal counts history scans by outcome.
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_history_scans_total",
			Help: "History scans, by outcome",
		},
		[]string{"outcome"},
	)

	// ScanDuration tracks how long a published scan took end to end.
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tally_history_scan_duration_seconds",
			Help:    "Duration of published history scans in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// ScannedMessages counts messages examined during history scans.
	ScannedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tally_scanned_messages_total",
			Help: "Messages examined during history scans",
		},
	)

	// Commands counts chat commands served.
	Commands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_commands_total",
			Help: "Chat commands served, by command",
		},
		[]string{"command"},
	)
)

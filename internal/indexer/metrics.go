package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	indexedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentledger_monitor_events_indexed_total",
		Help: "Events decoded and delivered to subscribers, by kind.",
	}, []string{"kind"})

	pollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentledger_monitor_poll_errors_total",
		Help: "Polls that failed reading the event log.",
	})

	parseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentledger_monitor_parse_failures_total",
		Help: "Records skipped because their payload failed to decode.",
	})

	droppedTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentledger_monitor_dropped_ticks_total",
		Help: "Ticks dropped because a poll was still in flight.",
	})
)

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	factsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_facts_relayed_total",
		Help: "Facts projected and published, by event type.",
	}, []string{"event_type"})

	factFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_fact_failures_total",
		Help: "Per-fact relay failures, by stage.",
	}, []string{"stage"})

	batches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_batches_total",
		Help: "Processed batches, by outcome.",
	}, []string{"source", "outcome"})

	pollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_poll_errors_total",
		Help: "Claim attempts that failed, by source.",
	}, []string{"source"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_queue_depth",
		Help: "Batches waiting for a worker.",
	})
)

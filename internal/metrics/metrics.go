package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	UpstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatviewer_upstream_calls_total",
			Help: "Calls made to the chat platform, by operation and result",
		},
		[]string{"op", "result"},
	)

	IngestedRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatviewer_ingested_records_total",
			Help: "Records applied to the transcript, by source",
		},
		[]string{"source"},
	)

	DroppedRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatviewer_dropped_records_total",
			Help: "Upstream records dropped as malformed",
		},
	)

	PossibleGaps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatviewer_refresh_possible_gaps_total",
			Help: "Refreshes whose full page did not reach the previously newest message",
		},
	)

	StoreRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatviewer_store_records",
			Help: "Records currently held in the transcript store",
		},
	)

	SaveFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatviewer_persistence_failures_total",
			Help: "Failed transcript save or load attempts",
		},
	)
)

func init() {
	prometheus.MustRegister(UpstreamCalls, IngestedRecords, DroppedRecords, PossibleGaps, StoreRecords, SaveFailures)
}

// Result maps an error to a metric label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

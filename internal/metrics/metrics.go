package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set bundles the station's prometheus collectors.
type Set struct {
	Scans             *prometheus.CounterVec
	MergesAdmitted    prometheus.Counter
	DuplicatesDropped prometheus.Counter
	MalformedDropped  prometheus.Counter
	PublishFailures   *prometheus.CounterVec
	ReachablePaths    prometheus.Gauge
}

// New registers the station collectors on reg.
func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)
	return &Set{
		Scans: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatelog_scans_total",
			Help: "Scans processed, by classification.",
		}, []string{"classification"}),
		MergesAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatelog_merges_admitted_total",
			Help: "Events admitted into the maintained set.",
		}),
		DuplicatesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatelog_duplicates_dropped_total",
			Help: "Inbound events discarded because their id was already present.",
		}),
		MalformedDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatelog_malformed_dropped_total",
			Help: "Inbound payloads discarded as malformed or missing an id.",
		}),
		PublishFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatelog_publish_failures_total",
			Help: "Best-effort publishes that failed, by relay path.",
		}, []string{"path"}),
		ReachablePaths: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gatelog_reachable_relay_paths",
			Help: "Relay paths that accepted the last subscribe.",
		}),
	}
}

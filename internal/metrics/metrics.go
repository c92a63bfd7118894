package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SignalSubmissionsTotal counts submissions by outcome
	// (accepted, rejected_validation, rejected_policy, failed)
	SignalSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citysignals_signal_submissions_total",
		Help: "Total signal submissions by outcome",
	}, []string{"outcome"})
	StepFailOpenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citysignals_engine_step_fail_open_total",
		Help: "Infrastructure errors swallowed by pass-through engine steps",
	}, []string{"step"})
	ContainersProvisionedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "citysignals_containers_provisioned_total",
		Help: "Containers auto-created from signals",
	})
	ContainersReconciledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "citysignals_containers_reconciled_total",
		Help: "Container updates applied after accepted signals",
	})
	NearbyRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citysignals_nearby_requests_total",
		Help: "Nearby container searches by strategy",
	}, []string{"strategy"})
	NearbyDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "citysignals_nearby_duration_ms",
		Help:    "Nearby container search duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"strategy"})
	NearbyCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "citysignals_nearby_cache_hits_total",
		Help: "Nearby searches served from redis",
	})
	NearbyCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "citysignals_nearby_cache_misses_total",
		Help: "Nearby searches not found in redis",
	})
	EventsPublishFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citysignals_events_publish_failed_total",
		Help: "Domain events that could not be published",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(SignalSubmissionsTotal)
	prometheus.MustRegister(StepFailOpenTotal)
	prometheus.MustRegister(ContainersProvisionedTotal)
	prometheus.MustRegister(ContainersReconciledTotal)
	prometheus.MustRegister(NearbyRequestsTotal)
	prometheus.MustRegister(NearbyDurationMs)
	prometheus.MustRegister(NearbyCacheHitsTotal)
	prometheus.MustRegister(NearbyCacheMissesTotal)
	prometheus.MustRegister(EventsPublishFailedTotal)
}

// Handler exposes the registered metrics for scraping
func Handler() http.Handler { return promhttp.Handler() }

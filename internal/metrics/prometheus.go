package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "janus_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "janus_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	// Provider metrics
	ProviderAPICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "janus_provider_api_calls_total",
			Help: "Total number of external provider API calls",
		},
		[]string{"provider", "endpoint", "status"}, // status: success|error
	)

	ProviderAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "janus_provider_api_latency_seconds",
			Help:    "External provider API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "endpoint"},
	)

	// Pipeline metrics
	OccurrencesUpserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "janus_occurrences_upserted_total",
			Help: "Total number of occurrences written by the schedule generator",
		},
		[]string{"event"},
	)

	ObservedValuesMatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "janus_observed_values_matched_total",
			Help: "Total number of observed values matched onto occurrences",
		},
		[]string{"event"},
	)

	ReactionsComputed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "janus_reactions_computed_total",
			Help: "Total number of reaction records computed",
		},
		[]string{"event", "status"}, // status: computed|skipped|failed
	)
)

func init() {
	prometheus.MustRegister(
		WorkerExecutions,
		WorkerDuration,
		ProviderAPICalls,
		ProviderAPILatency,
		OccurrencesUpserted,
		ObservedValuesMatched,
		ReactionsComputed,
	)
}

// RecordAPICall records one provider API call outcome with latency
func RecordAPICall(provider, endpoint string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ProviderAPICalls.WithLabelValues(provider, endpoint, status).Inc()
	ProviderAPILatency.WithLabelValues(provider, endpoint).Observe(time.Since(start).Seconds())
}

// Serve exposes the /metrics endpoint on the given port
func Serve(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}

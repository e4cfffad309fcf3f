package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/ErlanBelekov/signage-scheduler/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Schedule service metrics

	ScheduleOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signage",
		Name:      "schedule_operations_total",
		Help:      "Schedule mutations, by operation and outcome.",
	}, []string{"op", "outcome"})

	ConflictsDetectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "signage",
		Name:      "schedule_conflicts_detected_total",
		Help:      "Overlapping schedules reported by the conflict detector.",
	})

	// Store metrics

	StorePersistDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signage",
		Name:      "store_persist_duration_seconds",
		Help:      "Time taken to atomically replace the schedule collection.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"driver"})

	// Playback driver metrics

	DriverTransitionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "signage",
		Name:      "driver_transitions_total",
		Help:      "Times the active schedule changed between two ticks.",
	})

	DriverTickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "signage",
		Name:      "driver_tick_duration_seconds",
		Help:      "Time taken for one playback driver tick.",
		Buckets:   prometheus.DefBuckets,
	})

	DriverActivePriority = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "signage",
		Name:      "driver_active_priority",
		Help:      "Priority of the currently active schedule, 0 when the default playlist is playing.",
	})

	PlayerCommandFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signage",
		Name:      "player_command_failures_total",
		Help:      "Player commands that could not be delivered after retries, by type.",
	}, []string{"type"})

	NextRunsRefreshedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "signage",
		Name:      "next_runs_refreshed_total",
		Help:      "Stale next_run_at values recomputed by the refresher.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signage",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signage",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		ScheduleOperationsTotal,
		ConflictsDetectedTotal,
		StorePersistDuration,
		DriverTransitionsTotal,
		DriverTickDuration,
		DriverActivePriority,
		PlayerCommandFailuresTotal,
		NextRunsRefreshedTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer exposes /metrics plus liveness and readiness probes.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(result)
}


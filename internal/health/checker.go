package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pinger is satisfied by the schedule stores and the Redis driver state.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency is a named Pinger reported under its own check key.
type Dependency struct {
	Name   string
	Pinger Pinger
}

// CheckResult represents the health of a single dependency.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResult is the top-level health response.
type HealthResult struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Checker verifies that all dependencies are reachable.
type Checker struct {
	deps   []Dependency
	logger *slog.Logger
	gauge  *prometheus.GaugeVec
}

// NewChecker creates a health checker and registers its Prometheus gauge.
func NewChecker(logger *slog.Logger, reg prometheus.Registerer, deps ...Dependency) *Checker {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "signage",
		Name:      "health_check_up",
		Help:      "Whether a dependency is reachable. 1 = up, 0 = down.",
	}, []string{"dependency"})
	reg.MustRegister(gauge)

	return &Checker{
		deps:   deps,
		logger: logger.With("component", "health"),
		gauge:  gauge,
	}
}

// Liveness returns a simple "up" response if the process is running.
func (c *Checker) Liveness(_ context.Context) HealthResult {
	return HealthResult{Status: "up"}
}

// Readiness pings every dependency and reports per-check status.
func (c *Checker) Readiness(ctx context.Context) HealthResult {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	result := HealthResult{
		Status: "up",
		Checks: make(map[string]CheckResult, len(c.deps)),
	}

	for _, dep := range c.deps {
		if err := dep.Pinger.Ping(checkCtx); err != nil {
			c.logger.Warn("health check failed", "dependency", dep.Name, "error", err)
			result.Status = "down"
			result.Checks[dep.Name] = CheckResult{Status: "down", Error: err.Error()}
			c.gauge.WithLabelValues(dep.Name).Set(0)
			continue
		}
		result.Checks[dep.Name] = CheckResult{Status: "up"}
		c.gauge.WithLabelValues(dep.Name).Set(1)
	}

	return result
}

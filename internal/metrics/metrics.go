// Package metrics exposes prometheus instrumentation for the security core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	loginAttempts    *prometheus.CounterVec
	lockouts         prometheus.Counter
	rateLimited      *prometheus.CounterVec
	transfers        *prometheus.CounterVec
	transferDuration prometheus.Histogram
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		loginAttempts: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		lockouts: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "account_lockouts_total",
			Help: "Accounts locked after repeated failures",
		}),
		rateLimited: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter, by tier",
		}, []string{"tier"}),
		transfers: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "transfers_total",
			Help: "Transfer outcomes by resulting status",
		}, []string{"status"}),
		transferDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "transfer_duration_seconds",
			Help:    "Time taken to execute a transfer",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (c *Collector) ObserveLogin(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.loginAttempts.WithLabelValues(outcome).Inc()
}

func (c *Collector) IncLockout() {
	c.lockouts.Inc()
}

func (c *Collector) IncRateLimited(tier string) {
	c.rateLimited.WithLabelValues(tier).Inc()
}

func (c *Collector) ObserveTransfer(status string, d time.Duration) {
	c.transfers.WithLabelValues(status).Inc()
	c.transferDuration.Observe(d.Seconds())
}

// Handler serves the collector's private registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

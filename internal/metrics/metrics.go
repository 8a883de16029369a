// Package metrics exposes Prometheus counters for the post fetcher.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "redditlatest"

// Attempt outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailed      = "failed"
)

// Registry holds the fetcher metrics. A nil *Registry is valid and records nothing.
type Registry struct {
	registry *prometheus.Registry

	FetchAttempts      *prometheus.CounterVec
	RateLimitWaits     prometheus.Counter
	RateLimitWaitTotal prometheus.Counter
	PostsFetched       prometheus.Counter
}

// New creates a Registry backed by its own prometheus.Registry.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Listing fetch attempts by outcome.",
		}, []string{"outcome"}),
		RateLimitWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_waits_total",
			Help:      "Times the fetcher slept because Reddit throttled it.",
		}),
		RateLimitWaitTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds_total",
			Help:      "Total seconds spent waiting out rate limits.",
		}),
		PostsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_fetched_total",
			Help:      "Posts returned by successful fetches.",
		}),
	}

	r.registry.MustRegister(
		r.FetchAttempts,
		r.RateLimitWaits,
		r.RateLimitWaitTotal,
		r.PostsFetched,
		collectors.NewGoCollector(),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveAttempt counts one fetch attempt with the given outcome.
func (r *Registry) ObserveAttempt(outcome string) {
	if r == nil {
		return
	}
	r.FetchAttempts.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitWait records a rate-limit sleep of d.
func (r *Registry) ObserveRateLimitWait(d time.Duration) {
	if r == nil {
		return
	}
	r.RateLimitWaits.Inc()
	r.RateLimitWaitTotal.Add(d.Seconds())
}

// AddPosts records n posts delivered to the caller.
func (r *Registry) AddPosts(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.PostsFetched.Add(float64(n))
}

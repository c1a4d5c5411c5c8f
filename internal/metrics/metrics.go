// Package metrics exposes run counters over a Prometheus scrape endpoint.
// A nil *Metrics is a valid no-op sink, so the engine never branches on
// whether metrics are enabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds the counters the engine and retry controller feed.
type Metrics struct {
	registry *prometheus.Registry

	queries     prometheus.Counter
	cacheHits   prometheus.Counter
	malformed   prometheus.Counter
	rateLimited prometheus.Counter
	invalid     prometheus.Counter
}

// New builds a registry with all counters registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendrank_oracle_queries_total",
			Help: "External oracle queries issued (cache misses).",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendrank_cache_hits_total",
			Help: "Comparison groups answered from the query cache.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendrank_malformed_responses_total",
			Help: "Oracle responses inconsistent with the requested group.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendrank_rate_limit_retries_total",
			Help: "Backoff retries taken after rate-limit refusals.",
		}),
		invalid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendrank_invalid_items_total",
			Help: "Items the oracle has no data for at any group size.",
		}),
	}
	m.registry.MustRegister(m.queries, m.cacheHits, m.malformed, m.rateLimited, m.invalid)
	return m
}

func (m *Metrics) IncQueries() {
	if m != nil {
		m.queries.Inc()
	}
}

func (m *Metrics) IncCacheHits() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) IncMalformed() {
	if m != nil {
		m.malformed.Inc()
	}
}

func (m *Metrics) IncRateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}

func (m *Metrics) AddInvalid(n int) {
	if m != nil {
		m.invalid.Add(float64(n))
	}
}

// Registry exposes the underlying registry for the scrape handler and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Serve starts the scrape endpoint on addr in the background. The server
// lives for the process lifetime; rank runs are one-shot.
func Serve(addr string, m *Metrics, log zerolog.Logger) {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("metrics endpoint listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics endpoint failed")
		}
	}()
}

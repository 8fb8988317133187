package meter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ineyio/aigate"
)

// PrometheusMeter exports gateway events as Prometheus metrics. Tenant ids
// are used as labels, so it suits deployments with a bounded tenant count.
type PrometheusMeter struct {
	Attempts     *prometheus.CounterVec
	RateLimited  *prometheus.CounterVec
	Results      *prometheus.CounterVec
	CacheHits    *prometheus.CounterVec
	Tokens       *prometheus.CounterVec
	Cost         *prometheus.CounterVec
	Rejects      *prometheus.CounterVec
	CommitErrors prometheus.Counter
	LatencyMs    *prometheus.HistogramVec
}

var _ aigate.Meter = (*PrometheusMeter)(nil)

// NewPrometheusMeter creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusMeter(reg prometheus.Registerer) *PrometheusMeter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusMeter{
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aigate_upstream_attempts_total",
				Help: "Total number of upstream attempts",
			},
			[]string{"upstream", "credential"},
		),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aigate_rate_limited_total",
				Help: "Total number of rate-limited upstream attempts",
			},
			[]string{"upstream"},
		),
		Results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aigate_generations_total",
				Help: "Total number of generations by outcome",
			},
			[]string{"tenant", "outcome"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aigate_cache_hits_total",
				Help: "Total number of generations served from cache",
			},
			[]string{"tenant"},
		),
		Tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aigate_tokens_total",
				Help: "Total tokens consumed",
			},
			[]string{"tenant", "direction"},
		),
		Cost: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aigate_cost_total",
				Help: "Estimated upstream cost",
			},
			[]string{"tenant"},
		),
		Rejects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aigate_rejects_total",
				Help: "Total number of requests refused by quota or feature checks",
			},
			[]string{"tenant", "tier", "reason"},
		),
		CommitErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "aigate_usage_commit_errors_total",
				Help: "Total number of usage commits that failed and need reconciliation",
			},
		),
		LatencyMs: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aigate_generation_latency_ms",
				Help:    "Latency of generations in milliseconds",
				Buckets: []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
			},
			[]string{"upstream"},
		),
	}

	reg.MustRegister(
		m.Attempts,
		m.RateLimited,
		m.Results,
		m.CacheHits,
		m.Tokens,
		m.Cost,
		m.Rejects,
		m.CommitErrors,
		m.LatencyMs,
	)
	return m
}

func (m *PrometheusMeter) OnAttempt(e aigate.AttemptEvent) {
	m.Attempts.WithLabelValues(e.Upstream, e.CredentialID).Inc()
}

func (m *PrometheusMeter) OnResult(e aigate.ResultEvent) {
	if e.RateLimited > 0 {
		m.RateLimited.WithLabelValues(e.Upstream).Add(float64(e.RateLimited))
	}

	if !e.Success {
		m.Results.WithLabelValues(e.TenantID, "error").Inc()
		return
	}

	m.Results.WithLabelValues(e.TenantID, "success").Inc()
	if e.CacheHit {
		m.CacheHits.WithLabelValues(e.TenantID).Inc()
		return
	}

	m.Tokens.WithLabelValues(e.TenantID, "input").Add(float64(e.Usage.InputTokens))
	m.Tokens.WithLabelValues(e.TenantID, "output").Add(float64(e.Usage.OutputTokens))
	m.Cost.WithLabelValues(e.TenantID).Add(e.Cost)
	m.LatencyMs.WithLabelValues(e.Upstream).Observe(float64(e.Duration.Milliseconds()))
	if e.CommitError != nil {
		m.CommitErrors.Inc()
	}
}

func (m *PrometheusMeter) OnReject(e aigate.RejectEvent) {
	reason := string(e.Resource)
	if e.Feature != "" {
		reason = string(e.Feature)
	}
	m.Rejects.WithLabelValues(e.TenantID, e.Tier, reason).Inc()
}

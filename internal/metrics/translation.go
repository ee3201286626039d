package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lingometer"

// Translation and ledger metrics.
var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of translation provider calls",
		},
		[]string{"provider", "model", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Translation provider call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Total translation provider errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	TokensCommittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_committed_total",
			Help:      "Estimated tokens charged to user accounts",
		},
	)

	QuotaRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Requests refused because the balance was insufficient",
		},
	)

	LedgerWriteErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_write_errors_total",
			Help:      "Failed ledger writes by commit step",
		},
		[]string{"step"}, // "log" / "monthly" / "account"
	)

	TranslationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_total",
			Help:      "Translation requests by outcome",
		},
		[]string{"outcome"}, // "ok" / "quota" / "provider" / "persistence" / "error"
	)
)

var registerOnce sync.Once

// RegisterTranslationMetrics registers provider and ledger metrics. Safe to call more than once.
func RegisterTranslationMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ProviderRequestsTotal,
			ProviderRequestDuration,
			ProviderErrorsTotal,
			TokensCommittedTotal,
			QuotaRejectionsTotal,
			LedgerWriteErrorsTotal,
			TranslationsTotal,
		)
	})
}

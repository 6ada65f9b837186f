package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the proxy lifecycle.
type Metrics struct {
	ProxiesIssued     *prometheus.CounterVec
	ProxiesExchanged  *prometheus.CounterVec
	ExchangeFailures  *prometheus.CounterVec
	TokenRetries      prometheus.Counter
	CapacityExhausted prometheus.Counter
}

// New creates and registers the proxy lifecycle metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		ProxiesIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_proxy_issued_total",
			Help: "Total number of proxies issued, by type.",
		}, []string{"type"}),
		ProxiesExchanged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_proxy_exchanged_total",
			Help: "Total number of proxies successfully exchanged, by type.",
		}, []string{"type"}),
		ExchangeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_proxy_exchange_failures_total",
			Help: "Total number of rejected exchange attempts, by reason (not_found, invalid_state, expired).",
		}, []string{"reason"}),
		TokenRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "identity_proxy_token_retries_total",
			Help: "Total number of token regenerations after a uniqueness conflict.",
		}),
		CapacityExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "identity_proxy_capacity_exhausted_total",
			Help: "Total number of issuances aborted after exhausting token-generation retries.",
		}),
	}
}

// IncrementIssued records a successful issuance for the proxy type.
func (m *Metrics) IncrementIssued(proxyType string) {
	m.ProxiesIssued.WithLabelValues(proxyType).Inc()
}

// IncrementExchanged records a successful exchange for the proxy type.
func (m *Metrics) IncrementExchanged(proxyType string) {
	m.ProxiesExchanged.WithLabelValues(proxyType).Inc()
}

// IncrementExchangeFailure records a rejected exchange attempt by reason.
func (m *Metrics) IncrementExchangeFailure(reason string) {
	m.ExchangeFailures.WithLabelValues(reason).Inc()
}

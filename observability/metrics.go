package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

type ledgerMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	replays    prometheus.Counter
	supply     prometheus.Gauge
	poolFunds  prometheus.Gauge
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record
// JSON-RPC method activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "taxledger",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "taxledger",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "taxledger",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "taxledger",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. code is the JSON-RPC error code,
// or zero on success.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	module = labelOr(module, "unknown")
	method = labelOr(method, "unknown")
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(labelOr(module, "unknown"), labelOr(reason, "unspecified")).Inc()
}

// Ledger returns the registry tracking applied and rejected operations.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "taxledger",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Operations submitted to the ledger segmented by kind and outcome.",
			}, []string{"kind", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "taxledger",
				Subsystem: "ledger",
				Name:      "operation_duration_seconds",
				Help:      "Time spent applying an operation, including the journal write.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"kind"}),
			replays: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "taxledger",
				Subsystem: "ledger",
				Name:      "replays_total",
				Help:      "Signed operations rejected because they were already applied.",
			}),
			supply: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "taxledger",
				Subsystem: "ledger",
				Name:      "total_supply",
				Help:      "Recorded total supply in base units.",
			}),
			poolFunds: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "taxledger",
				Subsystem: "ledger",
				Name:      "reward_pool_balance",
				Help:      "Balance held by the reward pool in base units.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.operations,
			ledgerRegistry.latency,
			ledgerRegistry.replays,
			ledgerRegistry.supply,
			ledgerRegistry.poolFunds,
		)
	})
	return ledgerRegistry
}

// ObserveOperation records one operation outcome. outcome is "applied" or an
// error category such as "unauthorized".
func (m *ledgerMetrics) ObserveOperation(kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	kind = labelOr(kind, "unknown")
	m.operations.WithLabelValues(kind, labelOr(outcome, "unknown")).Inc()
	m.latency.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *ledgerMetrics) RecordReplay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

// RecordBalances publishes the latest supply and pool balance.
func (m *ledgerMetrics) RecordBalances(supply, pool *big.Int) {
	if m == nil {
		return
	}
	m.supply.Set(bigToFloat(supply))
	m.poolFunds.Set(bigToFloat(pool))
}

func labelOr(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}

package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"taxledger/core/events"
)

type eventMetrics struct {
	published   *prometheus.CounterVec
	taxes       prometheus.Counter
	rewards     prometheus.Counter
	rescueValue prometheus.Counter
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking published ledger events. The
// registry is itself an events.Emitter so it can sit in a fanout next to the
// journal.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "taxledger",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Count of ledger events segmented by type.",
			}, []string{"type"}),
			taxes: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "taxledger",
				Subsystem: "events",
				Name:      "tax_collected_total",
				Help:      "Cumulative tax routed to the reservoir in base units.",
			}),
			rewards: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "taxledger",
				Subsystem: "events",
				Name:      "rewards_distributed_total",
				Help:      "Cumulative rewards paid from the pool in base units.",
			}),
			rescueValue: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "taxledger",
				Subsystem: "events",
				Name:      "assets_rescued_total",
				Help:      "Cumulative foreign asset amounts released by rescue.",
			}),
		}
		prometheus.MustRegister(
			eventRegistry.published,
			eventRegistry.taxes,
			eventRegistry.rewards,
			eventRegistry.rescueValue,
		)
	})
	return eventRegistry
}

// Emit implements events.Emitter.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.published.WithLabelValues(labelOr(evt.EventType(), "unknown")).Inc()
	switch e := evt.(type) {
	case events.TaxCollected:
		m.taxes.Add(bigToFloat(e.Tax))
	case events.RewardDistributed:
		m.rewards.Add(bigToFloat(e.Amount))
	case events.AssetRescued:
		m.rescueValue.Add(bigToFloat(e.Amount))
	}
}

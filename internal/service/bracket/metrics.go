package bracket

import (
	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics is nil-safe so callers can run without a push gateway.
type Metrics struct {
	registry    *prometheus.Registry
	cycles      *prometheus.CounterVec
	orders      *prometheus.CounterVec
	reconciled  *prometheus.CounterVec
	activePairs prometheus.Gauge
	lastPrice   prometheus.Gauge
}

func NewMetrics(market string) *Metrics {
	labels := prometheus.Labels{"market": market}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bracket_bot_cycles_total",
			Help:        "Trading cycles by outcome.",
			ConstLabels: labels,
		}, []string{"status"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bracket_bot_orders_total",
			Help:        "Orders sent to the exchange by role and result.",
			ConstLabels: labels,
		}, []string{"role", "result"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bracket_bot_reconciled_pairs_total",
			Help:        "Tracked brackets classified during reconciliation.",
			ConstLabels: labels,
		}, []string{"state"}),
		activePairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "bracket_bot_tracked_pairs",
			Help:        "Brackets currently tracked by the registry.",
			ConstLabels: labels,
		}),
		lastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "bracket_bot_last_trade_price",
			Help:        "Most recent reference price used for planning.",
			ConstLabels: labels,
		}),
	}

	m.registry.MustRegister(m.cycles, m.orders, m.reconciled, m.activePairs, m.lastPrice)

	return m
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

func (m *Metrics) ObserveCycle(status entity.CycleStatus) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) ObserveOrder(role entity.OrderRole, accepted bool) {
	if m == nil {
		return
	}
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.orders.WithLabelValues(string(role), result).Inc()
}

func (m *Metrics) ObserveReconcile(result entity.ReconcileResult) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues("resolved").Add(float64(len(result.Resolved)))
	m.reconciled.WithLabelValues("one_sided").Add(float64(len(result.OneSided)))
	m.reconciled.WithLabelValues("cancelled").Add(float64(len(result.Cancelled)))
}

func (m *Metrics) SetTrackedPairs(n int) {
	if m == nil {
		return
	}
	m.activePairs.Set(float64(n))
}

func (m *Metrics) SetLastPrice(price decimal.Decimal) {
	if m == nil {
		return
	}
	m.lastPrice.Set(price.InexactFloat64())
}

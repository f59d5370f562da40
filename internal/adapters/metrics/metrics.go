// Package metrics expone el estado del bot en formato Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// Metrics implementa ports.Notifier actualizando los colectores con cada ciclo.
type Metrics struct {
	reg *prometheus.Registry

	cycles        prometheus.Counter
	cycleErrors   prometheus.Counter
	cycleDuration prometheus.Histogram
	snapshots     prometheus.Gauge
	invalid       prometheus.Gauge
	opportunities *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	exits         *prometheus.CounterVec
	gateStatus    prometheus.Gauge
	dailyPnL      prometheus.Gauge
	bankroll      prometheus.Gauge
	openPositions prometheus.Gauge
	pendingOrders prometheus.Gauge
}

// New registra los colectores en un registro propio.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polyedge_cycles_total",
			Help: "Completed engine cycles",
		}),
		cycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polyedge_cycle_errors_total",
			Help: "Cycles that ended with an error",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "polyedge_cycle_duration_seconds",
			Help:    "Wall time of a cycle",
			Buckets: prometheus.DefBuckets,
		}),
		snapshots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polyedge_snapshots",
			Help: "Snapshots in the last cycle",
		}),
		invalid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polyedge_invalid_snapshots",
			Help: "Snapshots skipped as malformed in the last cycle",
		}),
		opportunities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyedge_opportunities_total",
			Help: "Detected opportunities by kind",
		}, []string{"kind"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyedge_decisions_total",
			Help: "Order decisions by kind and result",
		}, []string{"kind", "result"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyedge_rejections_total",
			Help: "Rejected orders by reason",
		}, []string{"reason"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyedge_exits_total",
			Help: "Closed positions by exit reason",
		}, []string{"reason"}),
		gateStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polyedge_gate_status",
			Help: "0 open, 1 halted on loss, 2 halted on profit target",
		}),
		dailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polyedge_daily_realized_pnl_usd",
			Help: "Realized P&L of the current trading day",
		}),
		bankroll: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polyedge_bankroll_usd",
			Help: "Equity after the last cycle: initial bankroll plus realized P&L",
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polyedge_open_positions",
			Help: "Open positions",
		}),
		pendingOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polyedge_pending_orders",
			Help: "Orders sent and awaiting confirmation",
		}),
	}
	m.reg.MustRegister(
		m.cycles, m.cycleErrors, m.cycleDuration,
		m.snapshots, m.invalid,
		m.opportunities, m.decisions, m.rejections, m.exits,
		m.gateStatus, m.dailyPnL, m.bankroll, m.openPositions, m.pendingOrders,
	)
	return m
}

// Registry devuelve el registro para tests o para exponerlo en otro servidor.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler sirve /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// NotifyCycle implementa ports.Notifier.
func (m *Metrics) NotifyCycle(_ context.Context, r domain.CycleReport) error {
	m.cycles.Inc()
	if r.Err != nil {
		m.cycleErrors.Inc()
	}
	m.cycleDuration.Observe(r.Duration.Seconds())
	m.snapshots.Set(float64(r.Snapshots))
	m.invalid.Set(float64(r.Invalid))

	for k, n := range r.Opportunities {
		m.opportunities.WithLabelValues(k.String()).Add(float64(n))
	}
	for _, d := range r.Decisions {
		kind := d.Order.Opportunity.Kind().String()
		m.decisions.WithLabelValues(kind, result(d)).Inc()
		if d.Outcome == domain.Rejected {
			m.rejections.WithLabelValues(string(d.Reason)).Inc()
		}
	}
	for _, p := range r.Exits {
		m.exits.WithLabelValues(p.ExitReason).Inc()
	}

	m.gateStatus.Set(float64(r.Risk.Status))
	pnl, _ := r.Risk.DailyRealizedPnL.Float64()
	m.dailyPnL.Set(pnl)
	bankroll, _ := r.Bankroll.Float64()
	m.bankroll.Set(bankroll)
	m.openPositions.Set(float64(r.Risk.OpenPositions))
	m.pendingOrders.Set(float64(r.Risk.PendingOrders))
	return nil
}

func result(d domain.Decision) string {
	switch {
	case d.Outcome == domain.Rejected:
		return "rejected"
	case d.Err != nil:
		return "failed"
	case d.Pending:
		return "pending"
	case d.Executed():
		return "filled"
	}
	return "unfilled"
}

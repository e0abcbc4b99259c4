// Package metrics exposes planning, acceptance and journal counters to
// Prometheus on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/rl1809/procurematch/internal/core/domain"
)

const namespace = "procurematch"

type Metrics struct {
	registry *prometheus.Registry

	plansComputed  *prometheus.CounterVec
	plansAccepted  prometheus.Counter
	ordersCreated  prometheus.Counter
	unitsAllocated prometheus.Counter
	allocatedCost  prometheus.Counter
	acceptRejected *prometheus.CounterVec
	journalWrites  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		plansComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_computed_total",
			Help:      "Allocation plans computed, by plan status.",
		}, []string{"status"}),
		plansAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_accepted_total",
			Help:      "Allocation plans committed.",
		}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders created by accepted plans.",
		}),
		unitsAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_allocated_total",
			Help:      "Units allocated by accepted plans.",
		}),
		allocatedCost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocated_cost_total",
			Help:      "Total cost of accepted plans.",
		}),
		acceptRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_rejected_total",
			Help:      "Plan acceptances refused, by reason.",
		}, []string{"reason"}),
		journalWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_writes_total",
			Help:      "Order journal writes, by event type and outcome.",
		}, []string{"event", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.plansComputed,
		m.plansAccepted,
		m.ordersCreated,
		m.unitsAllocated,
		m.allocatedCost,
		m.acceptRejected,
		m.journalWrites,
	)
	return m
}

func (m *Metrics) PlanComputed(status domain.PlanStatus) {
	m.plansComputed.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) PlanAccepted(orders, units int, cost decimal.Decimal) {
	m.plansAccepted.Inc()
	m.ordersCreated.Add(float64(orders))
	m.unitsAllocated.Add(float64(units))
	c, _ := cost.Float64()
	m.allocatedCost.Add(c)
}

func (m *Metrics) AcceptRejected(reason string) {
	m.acceptRejected.WithLabelValues(reason).Inc()
}

// JournalWrite counts one journal write; outcome is "ok", "duplicate" or "error".
func (m *Metrics) JournalWrite(event domain.EventType, outcome string) {
	m.journalWrites.WithLabelValues(string(event), outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

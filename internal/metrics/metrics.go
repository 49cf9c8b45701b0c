// Package metrics содержит счётчики Prometheus сервиса printhub.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "printhub"

// Metrics объединяет счётчики сервиса. Методы безопасно вызывать на nil.
type Metrics struct {
	registry *prometheus.Registry

	allocations       *prometheus.CounterVec
	allocationRetries *prometheus.CounterVec
	redeemSubmissions *prometheus.CounterVec
	redeemResolutions *prometheus.CounterVec
	orderTransitions  *prometheus.CounterVec
	orphanCleanups    *prometheus.CounterVec
}

// New регистрирует счётчики в собственном реестре.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		allocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "allocations_total",
			Help:      "Identifier allocations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		allocationRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "retries_total",
			Help:      "Counter transaction retries caused by contention.",
		}, []string{"kind"}),
		redeemSubmissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redeem",
			Name:      "submissions_total",
			Help:      "Redeem submissions by outcome.",
		}, []string{"outcome"}),
		redeemResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redeem",
			Name:      "resolutions_total",
			Help:      "Resolved redeem requests by decision.",
		}, []string{"decision"}),
		orderTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "status_changes_total",
			Help:      "Order status changes by source and target status.",
		}, []string{"from", "to"}),
		orphanCleanups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "orphan_cleanups_total",
			Help:      "Attempts to delete orphaned uploads by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler возвращает HTTP-обработчик для /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Allocation учитывает результат выделения идентификатора.
func (m *Metrics) Allocation(kind, outcome string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(kind, outcome).Inc()
}

// AllocationRetry учитывает повтор транзакции счётчика.
func (m *Metrics) AllocationRetry(kind string) {
	if m == nil {
		return
	}
	m.allocationRetries.WithLabelValues(kind).Inc()
}

// RedeemSubmission учитывает результат подачи заявки.
func (m *Metrics) RedeemSubmission(outcome string) {
	if m == nil {
		return
	}
	m.redeemSubmissions.WithLabelValues(outcome).Inc()
}

// RedeemResolution учитывает закрытие заявки.
func (m *Metrics) RedeemResolution(decision string) {
	if m == nil {
		return
	}
	m.redeemResolutions.WithLabelValues(decision).Inc()
}

// OrderTransition учитывает смену статуса заказа.
func (m *Metrics) OrderTransition(from, to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

// OrphanCleanup учитывает попытку удалить осиротевший объект.
func (m *Metrics) OrphanCleanup(outcome string) {
	if m == nil {
		return
	}
	m.orphanCleanups.WithLabelValues(outcome).Inc()
}

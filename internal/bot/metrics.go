package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: созданные заявки
	RequestsCreated prometheus.Counter

	// Решения по исходу (approved/rejected)
	Decisions *prometheus.CounterVec

	// Errors: классификация отказов обработчиков
	ErrorTotal *prometheus.CounterVec

	// Saturation: сколько заявок еще висит в PENDING
	PendingRequests prometheus.Gauge

	// Состояние Circuit Breaker исходящих сообщений (0 - ок, 1 - выбило)
	CircuitBreakerState prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestsCreated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "approvalbot_requests_created_total",
			Help: "Total number of approval requests created.",
		}),

		Decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "approvalbot_decisions_total",
			Help: "Total number of terminal decisions by outcome.",
		}, []string{"outcome"}), // approved, rejected

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "approvalbot_errors_total",
			Help: "Total number of handler errors by type.",
		}, []string{"type"}), // типы: validation, not_found, already_decided, not_approver, gateway

		PendingRequests: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "approvalbot_pending_requests",
			Help: "Current number of requests awaiting a decision.",
		}),

		CircuitBreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "approvalbot_circuit_breaker_state",
			Help: "Current state of the outbound circuit breaker (0=closed, 1=open).",
		}),
	}
}

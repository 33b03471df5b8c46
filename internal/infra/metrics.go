package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: время вызова backend (включая ретраи)
	RequestDuration *prometheus.HistogramVec

	// Errors: классификация отказов (timeout, http, network, parse)
	ErrorTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState prometheus.Gauge

	// Polling: тики контроллеров экранов по исходу
	PollTotal *prometheus.CounterVec

	// Ответы, отброшенные как устаревшие или пришедшие после остановки экрана
	StaleResponses *prometheus.CounterVec

	// Journal: заполненность буфера решений (backpressure)
	JournalBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pocketsiem_api_request_duration_seconds",
			Help:    "Histogram of backend API request latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"endpoint", "outcome"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pocketsiem_api_errors_total",
			Help: "Total number of backend API errors by kind.",
		}, []string{"endpoint", "kind"}),

		CircuitBreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pocketsiem_api_circuit_breaker_state",
			Help: "Current state of the API circuit breaker (0=closed, 1=half-open, 2=open).",
		}),

		PollTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pocketsiem_poll_total",
			Help: "Total number of screen refreshes by outcome.",
		}, []string{"screen", "outcome"}),

		StaleResponses: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pocketsiem_poll_stale_responses_total",
			Help: "Responses discarded because a newer one was applied or the screen was stopped.",
		}, []string{"screen"}),

		JournalBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pocketsiem_journal_buffer_utilization",
			Help: "Current number of decisions waiting in the journal buffer.",
		}),
	}
}

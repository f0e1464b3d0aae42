package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics содержит все метрики сервиса
type Metrics struct {
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsCancelled prometheus.Counter
	PaymentsSucceeded prometheus.Counter
	PaymentsDeclined  prometheus.Counter
	ValidationErrors  prometheus.Counter
	MessagesConsumed  prometheus.Counter
	DBErrors          prometheus.Counter
	HTTPServerReqs    *prometheus.CounterVec
}

// NewMetrics создает и регистрирует новые метрики
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkout_sessions_started_total",
			Help: "The total number of checkout sessions started.",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkout_sessions_completed_total",
			Help: "The total number of checkout sessions that reached the success step.",
		}),
		SessionsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkout_sessions_cancelled_total",
			Help: "The total number of checkout sessions cancelled by the buyer.",
		}),
		PaymentsSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkout_payments_succeeded_total",
			Help: "The total number of successful payments.",
		}),
		PaymentsDeclined: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkout_payments_declined_total",
			Help: "The total number of declined or failed payments.",
		}),
		ValidationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkout_validation_errors_total",
			Help: "The total number of step validation failures.",
		}),
		MessagesConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkout_messages_consumed_total",
			Help: "The total number of auction-win messages consumed from Kafka.",
		}),
		DBErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkout_db_errors_total",
			Help: "The total number of database errors.",
		}),
		HTTPServerReqs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_http_requests_total",
			Help: "The total number of HTTP requests.",
		}, []string{"code", "method"}),
	}
}

// Handler возвращает http.Handler для эндпоинта /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

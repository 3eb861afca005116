package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики клиента
// ============================================================
//
// Экспортируются консолью на /metrics.
// Метки не содержат токенов, ключей и имен пользователей.

const namespace = "tradeconsole"

// ============ Метрики удаленного сервиса ============

// GatewayRequests - количество запросов к удаленному сервису
var GatewayRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Total number of requests sent to the remote service",
	},
	[]string{"operation", "code"}, // code: HTTP статус или "transport_error"
)

// GatewayRequestDuration - длительность запросов к удаленному сервису
var GatewayRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "request_duration_ms",
		Help:      "Duration of requests to the remote service in milliseconds",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	},
	[]string{"operation"},
)

// ============ Метрики состояния клиента ============

// OnboardingTransitions - переходы контроллера онбординга
var OnboardingTransitions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "onboarding",
		Name:      "transitions_total",
		Help:      "Number of onboarding controller transitions by target state",
	},
	[]string{"to"},
)

// SessionChanges - изменения токена сессии
var SessionChanges = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "changes_total",
		Help:      "Number of session token changes",
	},
	[]string{"kind"}, // set, clear, failed
)

// QueryCacheLookups - обращения к кэшу запросов
var QueryCacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "query_cache",
		Name:      "lookups_total",
		Help:      "Number of query cache lookups by result",
	},
	[]string{"result"}, // hit, miss, shared
)

// ============ Вспомогательные функции ============

// RecordGatewayRequest записывает результат запроса; status=0 означает ошибку транспорта
func RecordGatewayRequest(operation string, status int, latencyMs float64) {
	code := "transport_error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	GatewayRequests.WithLabelValues(operation, code).Inc()
	GatewayRequestDuration.WithLabelValues(operation).Observe(latencyMs)
}

// RecordOnboardingTransition записывает переход контроллера
func RecordOnboardingTransition(to string) {
	OnboardingTransitions.WithLabelValues(to).Inc()
}

// RecordSessionChange записывает изменение сессии
func RecordSessionChange(kind string) {
	SessionChanges.WithLabelValues(kind).Inc()
}

// RecordCacheLookup записывает обращение к кэшу
func RecordCacheLookup(result string) {
	QueryCacheLookups.WithLabelValues(result).Inc()
}

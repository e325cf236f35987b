// metrics — Prometheus-коллекторы сервиса. Экспортируются через /metrics
// служебного сервера (promhttp.Handler).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shop_auth"

var (
	// HTTPRequests — число обработанных HTTP-запросов.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Handled HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})

	// HTTPDuration — время обработки HTTP-запросов.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	// TokenRotations — попытки ротации refresh-токена по исходу.
	TokenRotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tokens",
		Name:      "rotations_total",
		Help:      "Refresh token rotations by result (ok, invalid, stale, error).",
	}, []string{"result"})

	// SagaCompensations — компенсации шагов регистрации.
	SagaCompensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "saga",
		Name:      "compensations_total",
		Help:      "Saga step compensations by step and result (ok, failed).",
	}, []string{"saga", "step", "result"})
)

// Исходы ротации refresh-токена.
const (
	RotationOK      = "ok"
	RotationInvalid = "invalid"
	RotationStale   = "stale"
	RotationError   = "error"
)

// ObserveCompensation учитывает компенсацию шага саги.
func ObserveCompensation(saga, step string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}

	SagaCompensations.WithLabelValues(saga, step, result).Inc()
}

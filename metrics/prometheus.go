package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)
	importRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_records_total",
			Help: "Records handled by import sessions, by outcome (inserted, updated, error).",
		},
		[]string{"marketplace", "aggregate", "outcome"},
	)
	importSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_sessions_total",
			Help: "Finished import sessions by final status.",
		},
		[]string{"status"},
	)
	providerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Duration of requests to marketplace and 1C APIs.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "status"},
	)
	importSessionsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "import_sessions_running",
			Help: "Import sessions currently executing.",
		},
	)
	resolutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolution_total",
			Help: "Product reference resolutions by the step that produced the result.",
		},
		[]string{"step"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(importRecordsTotal)
	prometheus.MustRegister(importSessionsTotal)
	prometheus.MustRegister(importSessionsRunning)
	prometheus.MustRegister(providerRequestDuration)
	prometheus.MustRegister(resolutionTotal)
}

// RecordRequest записывает метрики для HTTP-запроса.
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

func RecordImportRecord(marketplace, aggregate, outcome string) {
	importRecordsTotal.WithLabelValues(marketplace, aggregate, outcome).Inc()
}

func RecordSession(status string) {
	importSessionsTotal.WithLabelValues(status).Inc()
}

// SessionStarted увеличивает число работающих сессий; возвращённая функция его уменьшает.
func SessionStarted() func() {
	importSessionsRunning.Inc()
	return importSessionsRunning.Dec
}

// RecordProviderRequest -- statusCode 0 означает сетевую ошибку.
func RecordProviderRequest(provider string, statusCode int, duration time.Duration) {
	providerRequestDuration.WithLabelValues(provider, classifyStatus(statusCode)).Observe(duration.Seconds())
}

func RecordResolution(step string) {
	resolutionTotal.WithLabelValues(step).Inc()
}

// classifyStatus классифицирует HTTP-статус код в строку.
func classifyStatus(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "2xx"
	} else if statusCode >= 300 && statusCode < 400 {
		return "3xx"
	} else if statusCode >= 400 && statusCode < 500 {
		return "4xx"
	} else if statusCode >= 500 && statusCode < 600 {
		return "5xx"
	}
	return "unknown"
}

// MetricsHandler возвращает HTTP-обработчик для экспорта метрик Prometheus.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

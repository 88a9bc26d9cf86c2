// Package metrics регистрирует метрики сервиса и отдаёт их на /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry           *prometheus.Registry
	requestDuration    *prometheus.HistogramVec
	generationAttempts *prometheus.CounterVec
	rateLimited        prometheus.Counter
	notifications      *prometheus.CounterVec
}

// New создаёт отдельный реестр, чтобы тесты не делили глобальное состояние
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "propodocs_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		generationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "propodocs_generation_attempts_total",
			Help: "AI provider attempts by provider and outcome (success, api_error, parse_error, empty).",
		}, []string{"provider", "outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propodocs_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "propodocs_notifications_total",
			Help: "Stored notifications by type.",
		}, []string{"type"}),
	}
	reg.MustRegister(m.requestDuration, m.generationAttempts, m.rateLimited, m.notifications)
	return m
}

// Handler отдаёт метрики в формате Prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// GenerationAttempt подходит как хук цепочки генерации
func (m *Metrics) GenerationAttempt(provider, outcome string) {
	if m == nil {
		return
	}
	m.generationAttempts.WithLabelValues(provider, outcome).Inc()
}

// Notification учитывает сохранённое уведомление
func (m *Metrics) Notification(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

// GinMiddleware измеряет длительность запросов; маршрут берётся из шаблона, а не из пути
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if status == http.StatusTooManyRequests {
			m.rateLimited.Inc()
		}
		m.requestDuration.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	}
}

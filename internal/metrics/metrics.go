// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"short-drama-service/internal/generation"
	"short-drama-service/internal/queue"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	tasksFinished *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec

	generationCalls   *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec

	exportSize prometheus.Histogram
}

// NewMetrics creates the collectors on a fresh registry that also carries the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetricsWith(reg)
}

// NewMetricsWith registers the collectors on reg.
func NewMetricsWith(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Latency of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		tasksFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_tasks_finished_total",
				Help: "Total number of queue tasks that reached a terminal state",
			},
			[]string{"type", "status"},
		),
		taskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "queue_task_duration_seconds",
				Help:    "Time from claim to terminal state of queue tasks",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"type"},
		),
		generationCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generation_calls_total",
				Help: "Total number of generation calls by the branch that served them",
			},
			[]string{"kind", "source"},
		),
		generationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "generation_duration_seconds",
				Help:    "Latency of generation calls in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
			},
			[]string{"kind"},
		),
		exportSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "project_export_bytes",
				Help:    "Size of exported project archives",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by their route pattern, so path ids do not
// explode the label set.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			// the app error handler has not written the response yet
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		route := c.Route().Path
		m.httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.httpLatency.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// ObserveGeneration records one generation call.
func (m *Metrics) ObserveGeneration(kind string, source generation.Source, elapsed time.Duration) {
	m.generationCalls.WithLabelValues(kind, string(source)).Inc()
	m.generationLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// TaskFinished records a task that reached a terminal state.
func (m *Metrics) TaskFinished(task queue.Task, elapsed time.Duration) {
	taskType := taskTypeLabel(task.Type)
	m.tasksFinished.WithLabelValues(taskType, string(task.Status)).Inc()
	m.taskDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
}

// taskTypeLabel keeps the label set closed; task types come from clients.
func taskTypeLabel(taskType string) string {
	switch taskType {
	case queue.TypeScene, queue.TypeCharacter, queue.TypeProject:
		return taskType
	default:
		return "other"
	}
}

// ObserveExport records the size of one project archive.
func (m *Metrics) ObserveExport(bytes int64) {
	m.exportSize.Observe(float64(bytes))
}

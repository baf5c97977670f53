package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	tasksCompletedTotal  *prometheus.CounterVec
	workUnitsFailedTotal *prometheus.CounterVec
	workUnitDuration     *prometheus.HistogramVec
	batchesCompleted     prometheus.Counter
	batchesReclaimed     prometheus.Counter
	cleanupPagesTotal    prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finishline",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "finishline",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		tasksCompletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finishline",
				Name:      "tasks_completed_total",
				Help:      "Total number of task records marked complete, by work unit kind.",
			},
			[]string{"kind"},
		),
		workUnitsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finishline",
				Name:      "work_units_failed_total",
				Help:      "Total number of work unit executions that returned an error.",
			},
			[]string{"kind"},
		),
		workUnitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "finishline",
				Name:      "work_unit_duration_seconds",
				Help:      "Work unit execution duration in seconds grouped by kind.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"kind"},
		),
		batchesCompleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "finishline",
				Name:      "batches_completed_total",
				Help:      "Total number of batches observed complete (duplicates included).",
			},
		),
		batchesReclaimed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "finishline",
				Name:      "batches_reclaimed_total",
				Help:      "Total number of batch records deleted at the end of cleanup.",
			},
		),
		cleanupPagesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "finishline",
				Name:      "cleanup_pages_total",
				Help:      "Total number of cleanup page deletions performed.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.tasksCompletedTotal,
		m.workUnitsFailedTotal,
		m.workUnitDuration,
		m.batchesCompleted,
		m.batchesReclaimed,
		m.cleanupPagesTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncTaskCompleted(kind string) {
	if m == nil {
		return
	}
	m.tasksCompletedTotal.WithLabelValues(normalizeKind(kind)).Inc()
}

func (m *Metrics) IncWorkUnitFailed(kind string) {
	if m == nil {
		return
	}
	m.workUnitsFailedTotal.WithLabelValues(normalizeKind(kind)).Inc()
}

func (m *Metrics) ObserveWorkUnitDuration(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.workUnitDuration.WithLabelValues(normalizeKind(kind)).Observe(seconds)
}

func (m *Metrics) IncBatchCompleted() {
	if m == nil {
		return
	}
	m.batchesCompleted.Inc()
}

func (m *Metrics) IncBatchReclaimed() {
	if m == nil {
		return
	}
	m.batchesReclaimed.Inc()
}

func (m *Metrics) IncCleanupPage() {
	if m == nil {
		return
	}
	m.cleanupPagesTotal.Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeKind(kind string) string {
	normalized := strings.ToLower(strings.TrimSpace(kind))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

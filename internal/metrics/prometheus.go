package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskflow"

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	usersRegistered   prometheus.Counter
	logins            *prometheus.CounterVec
	authFailures      *prometheus.CounterVec
	rateLimited       prometheus.Counter
	taskOps           *prometheus.CounterVec
	usersDeleted      prometheus.Counter
	activityPublished *prometheus.CounterVec
	activityProcessed *prometheus.CounterVec
	activityBatchSize prometheus.Histogram
	activityBatchDur  prometheus.Histogram
}

// NewPrometheus creates a recorder with its own registry, including the Go
// runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()

	p := &PrometheusRecorder{
		registry: reg,

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		usersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_registered_total",
			Help:      "Accounts created through registration",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Requests rejected by the authentication gate",
		}, []string{"reason"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
		taskOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_operations_total",
			Help:      "Task mutations by operation",
		}, []string{"op"}),
		usersDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_deleted_total",
			Help:      "Accounts deleted by admins",
		}),
		activityPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_published_total",
			Help:      "Activity events published to the stream",
		}, []string{"status"}),
		activityProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_processed_total",
			Help:      "Activity events consumed by the worker",
		}, []string{"status"}),
		activityBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "activity_batch_size",
			Help:      "Events per persisted activity batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		activityBatchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "activity_batch_duration_seconds",
			Help:      "Time to persist an activity batch",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.httpRequests, p.httpDuration,
		p.usersRegistered, p.logins, p.authFailures, p.rateLimited,
		p.taskOps, p.usersDeleted,
		p.activityPublished, p.activityProcessed, p.activityBatchSize, p.activityBatchDur,
	)
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncUserRegistered()           { p.usersRegistered.Inc() }
func (p *PrometheusRecorder) IncLogin(outcome string)      { p.logins.WithLabelValues(outcome).Inc() }
func (p *PrometheusRecorder) IncAuthFailure(reason string) { p.authFailures.WithLabelValues(reason).Inc() }
func (p *PrometheusRecorder) IncRateLimited()              { p.rateLimited.Inc() }
func (p *PrometheusRecorder) IncTaskCreated()              { p.taskOps.WithLabelValues("create").Inc() }
func (p *PrometheusRecorder) IncTaskUpdated()              { p.taskOps.WithLabelValues("update").Inc() }
func (p *PrometheusRecorder) IncTaskDeleted()              { p.taskOps.WithLabelValues("delete").Inc() }
func (p *PrometheusRecorder) IncUserDeleted()              { p.usersDeleted.Inc() }

func (p *PrometheusRecorder) IncActivityEventPublished(status string) {
	p.activityPublished.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncActivityEventProcessed(status string) {
	p.activityProcessed.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) ObserveActivityBatchSize(size int) {
	p.activityBatchSize.Observe(float64(size))
}

func (p *PrometheusRecorder) ObserveActivityBatchDuration(duration time.Duration) {
	p.activityBatchDur.Observe(duration.Seconds())
}

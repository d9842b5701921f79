package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
)

const namespace = "tanktrace"

// Recorder owns the engine collectors and the registry they live in.
type Recorder struct {
	registry     *prometheus.Registry
	queueOps     *prometheus.CounterVec
	assemblyOps  *prometheus.CounterVec
	lookupTime   prometheus.Histogram
	lookupNodes  prometheus.Histogram
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ ports.Metrics = (*Recorder)(nil)

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		queueOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_operations_total",
			Help:      "Queue engine operations by outcome.",
		}, []string{"op", "result"}),
		assemblyOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assembly_operations_total",
			Help:      "Assembly engine operations by outcome.",
		}, []string{"op", "result"}),
		lookupTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "Time to build a genealogy lookup.",
			Buckets:   prometheus.DefBuckets,
		}),
		lookupNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_nodes",
			Help:      "Nodes returned per genealogy lookup.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.queueOps,
		r.assemblyOps,
		r.lookupTime,
		r.lookupNodes,
		r.httpRequests,
		r.httpDuration,
	)
	return r
}

func (r *Recorder) QueueOperation(op string, err error) {
	r.queueOps.WithLabelValues(op, result(err)).Inc()
}

func (r *Recorder) AssemblyOperation(op string, err error) {
	r.assemblyOps.WithLabelValues(op, result(err)).Inc()
}

func (r *Recorder) LookupCompleted(d time.Duration, nodes int) {
	r.lookupTime.Observe(d.Seconds())
	r.lookupNodes.Observe(float64(nodes))
}

// ObserveHTTP records one served request. route is the matched pattern, not
// the raw path.
func (r *Recorder) ObserveHTTP(method, route string, status int, d time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// result labels an outcome with its error kind.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	return errs.KindOf(err).String()
}

// Package metrics exposes run and HTTP metrics on a private Prometheus
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/territory-cli/internal/model"
)

const namespace = "territory"

// Metrics holds every collector the CLI and API report.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	lastRunTimestamp prometheus.Gauge
	assignments      *prometheus.GaugeVec
	inputRows        *prometheus.GaugeVec
	rejectedRows     *prometheus.GaugeVec
	zeroCountPairs   prometheus.Gauge

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Option configures New.
type Option func(*options)

type options struct {
	runtime bool
}

// WithRuntimeCollectors adds the Go and process collectors, for long-running
// processes.
func WithRuntimeCollectors() Option {
	return func(o *options) { o.runtime = true }
}

// New creates Metrics on a fresh registry.
func New(opts ...Option) *Metrics {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	reg := prometheus.NewRegistry()
	if o.runtime {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runsTotal: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by result.",
		}, []string{"result"}),
		runDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of successful runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		lastRunTimestamp: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last successful run finished.",
		}),
		assignments: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "assignments",
			Help:      "ZIPs per assignment status in the current table.",
		}, []string{"status"}),
		inputRows: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "input_rows",
			Help:      "Raw rows read per source in the last run.",
		}, []string{"source"}),
		rejectedRows: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rejected_rows",
			Help:      "Rows rejected in the last run by source and reason.",
		}, []string{"source", "reason"}),
		zeroCountPairs: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zero_count_pairs",
			Help:      "(zip, rep) groups dropped in the last run for summing to zero deals.",
		}),
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpRequestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun records a successful run.
func (m *Metrics) RecordRun(sum model.RunSummary) {
	m.runsTotal.WithLabelValues("success").Inc()
	m.runDuration.Observe(sum.Duration().Seconds())
	m.lastRunTimestamp.Set(float64(sum.FinishedAt.Unix()))

	m.SetAssignmentCounts(map[string]int{
		string(model.StatusActive):      sum.Active,
		string(model.StatusProspective): sum.Prospective,
		string(model.StatusUnassigned):  sum.Unassigned,
	})

	m.inputRows.WithLabelValues(model.SourceZipMaster).Set(float64(sum.ZipMasterRows))
	m.inputRows.WithLabelValues(model.SourceRepActivity).Set(float64(sum.ActivityRows))
	m.zeroCountPairs.Set(float64(sum.ZeroCountPairs))

	m.rejectedRows.Reset()
	for source, byReason := range sum.Rejected {
		for reason, n := range byReason {
			m.rejectedRows.WithLabelValues(source, reason).Set(float64(n))
		}
	}
}

// RecordRunFailure counts a run that ended in an error.
func (m *Metrics) RecordRunFailure() {
	m.runsTotal.WithLabelValues("failure").Inc()
}

// SetAssignmentCounts sets the per-status gauges.
func (m *Metrics) SetAssignmentCounts(byStatus map[string]int) {
	for status, n := range byStatus {
		m.assignments.WithLabelValues(status).Set(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// WriteTextfile writes the registry to path for the node-exporter textfile
// collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return eris.Wrapf(prometheus.WriteToTextfile(path, m.registry), "metrics: write textfile %s", path)
}

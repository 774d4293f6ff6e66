package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts job lifecycle events. A nil *Recorder is a no-op.
type Recorder struct {
	registry *prometheus.Registry

	started  *prometheus.CounterVec
	finished *prometheus.CounterVec
	fallback *prometheus.CounterVec
	mirror   *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediafetch",
			Name:      "jobs_started_total",
			Help:      "Jobs accepted, by kind.",
		}, []string{"kind"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediafetch",
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal state, by kind and status.",
		}, []string{"kind", "status"}),
		fallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediafetch",
			Name:      "fallback_attempts_total",
			Help:      "Secondary downloader runs, by outcome.",
		}, []string{"outcome"}),
		mirror: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediafetch",
			Name:      "mirror_uploads_total",
			Help:      "Artifact mirror uploads, by backend and outcome.",
		}, []string{"backend", "outcome"}),
	}

	r.registry.MustRegister(
		r.started, r.finished, r.fallback, r.mirror,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) JobStarted(kind string) {
	if r == nil {
		return
	}
	r.started.WithLabelValues(kind).Inc()
}

func (r *Recorder) JobFinished(kind, status string) {
	if r == nil {
		return
	}
	r.finished.WithLabelValues(kind, status).Inc()
}

func (r *Recorder) Fallback(outcome string) {
	if r == nil {
		return
	}
	r.fallback.WithLabelValues(outcome).Inc()
}

func (r *Recorder) MirrorUpload(backend, outcome string) {
	if r == nil {
		return
	}
	r.mirror.WithLabelValues(backend, outcome).Inc()
}

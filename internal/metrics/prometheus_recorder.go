package metrics

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg          *prom.Registry
	loadDuration *prom.HistogramVec
	fileReads    prom.Counter
	cacheHits    *prom.CounterVec
	includes     *prom.CounterVec
	includerRuns *prom.CounterVec
	copiedFiles  prom.Counter
	entries      prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		loadDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "tocbuilder",
			Name:      "load_duration_seconds",
			Help:      "Duration of top-level toc loads",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
		fileReads: prom.NewCounter(prom.CounterOpts{
			Namespace: "tocbuilder",
			Name:      "file_reads_total",
			Help:      "Toc source files read from disk",
		}),
		cacheHits: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "tocbuilder",
			Name:      "cache_hits_total",
			Help:      "Requests served from an in-flight or settled placeholder",
		}, []string{"cache"}),
		includes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "tocbuilder",
			Name:      "includes_total",
			Help:      "Include resolutions by mode",
		}, []string{"mode"}),
		includerRuns: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "tocbuilder",
			Name:      "includer_runs_total",
			Help:      "Named includer invocations",
		}, []string{"includer"}),
		copiedFiles: prom.NewCounter(prom.CounterOpts{
			Namespace: "tocbuilder",
			Name:      "copied_files_total",
			Help:      "Files copied into merge bases",
		}),
		entries: prom.NewGauge(prom.GaugeOpts{
			Namespace: "tocbuilder",
			Name:      "entries",
			Help:      "Content pages discovered through loaded tocs",
		}),
	}
	reg.MustRegister(pr.loadDuration, pr.fileReads, pr.cacheHits, pr.includes, pr.includerRuns, pr.copiedFiles, pr.entries)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

func (p *PrometheusRecorder) ObserveLoadDuration(d time.Duration, success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.loadDuration.WithLabelValues(res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFileRead() {
	if p == nil {
		return
	}
	p.fileReads.Inc()
}

func (p *PrometheusRecorder) IncCacheHit(cache string) {
	if p == nil {
		return
	}
	p.cacheHits.WithLabelValues(cache).Inc()
}

func (p *PrometheusRecorder) IncInclude(mode string) {
	if p == nil {
		return
	}
	p.includes.WithLabelValues(mode).Inc()
}

func (p *PrometheusRecorder) IncIncluderRun(name string) {
	if p == nil {
		return
	}
	p.includerRuns.WithLabelValues(name).Inc()
}

func (p *PrometheusRecorder) AddCopiedFiles(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.copiedFiles.Add(float64(n))
}

func (p *PrometheusRecorder) SetEntries(n int) {
	if p == nil {
		return
	}
	p.entries.Set(float64(n))
}

// WriteTextfile writes the registry in text exposition format to path.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Package metrics records stage outcomes and durations of a recipe run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder records stage metrics into its own registry, which can be
// written out as a node-exporter textfile.
type Recorder struct {
	registry *prometheus.Registry

	stageTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	downloadBytes prometheus.Counter
	packagedLibs  prometheus.Gauge
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_stage_total",
				Help: "Total number of pipeline stages run",
			},
			[]string{"package", "stage", "success"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recipe_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"package", "stage", "success"},
		),
		downloadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recipe_download_bytes_total",
				Help: "Bytes of verified archives in the workspace",
			},
		),
		packagedLibs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "recipe_packaged_libs",
				Help: "Number of libraries in the last package",
			},
		),
	}
	r.registry.MustRegister(r.stageTotal, r.stageDuration, r.downloadBytes, r.packagedLibs)
	return r
}

// Registry returns the registry the metrics are kept in.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordStage records one stage run with its outcome.
func (r *Recorder) RecordStage(pkg, stage string, success bool, duration time.Duration) {
	successLabel := "false"
	if success {
		successLabel = "true"
	}

	r.stageTotal.WithLabelValues(pkg, stage, successLabel).Inc()
	r.stageDuration.WithLabelValues(pkg, stage, successLabel).Observe(duration.Seconds())
}

// RecordDownload adds the size of a fetched archive.
func (r *Recorder) RecordDownload(bytes int64) {
	if bytes > 0 {
		r.downloadBytes.Add(float64(bytes))
	}
}

// RecordPackage records the number of packaged libraries.
func (r *Recorder) RecordPackage(libs int) {
	r.packagedLibs.Set(float64(libs))
}

// WriteFile writes the metrics in the text exposition format.
func (r *Recorder) WriteFile(filename string) error {
	return prometheus.WriteToTextfile(filename, r.registry)
}

// Package metrics records per-run pipeline counters in a private Prometheus registry
// and exports them for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"oops/internal/logging"
)

// Outcome labels for the records counter.
const (
	OutcomeGenerated = "generated"
	OutcomeSkipped   = "skipped"
	OutcomeHealed    = "healed"
	OutcomeFailed    = "failed"
)

// Batch holds the collectors for one pipeline run. A nil *Batch records nothing.
type Batch struct {
	registry *prometheus.Registry

	records     *prometheus.CounterVec
	genDuration prometheus.Histogram
	assetBytes  prometheus.Counter
	lastRun     prometheus.Gauge
}

// NewBatch registers a fresh set of collectors.
func NewBatch() *Batch {
	b := &Batch{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oops",
			Subsystem: "images",
			Name:      "records_total",
			Help:      "Exercise records processed, by category and outcome.",
		}, []string{"category", "outcome"}),
		genDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "oops",
			Subsystem: "images",
			Name:      "generation_seconds",
			Help:      "Latency of image generation calls.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80},
		}),
		assetBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oops",
			Subsystem: "images",
			Name:      "asset_bytes_total",
			Help:      "Bytes of generated image data written to storage.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oops",
			Subsystem: "images",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	b.registry.MustRegister(b.records, b.genDuration, b.assetBytes, b.lastRun)
	return b
}

// Record counts one record outcome.
func (b *Batch) Record(category, outcome string) {
	if b == nil {
		return
	}
	b.records.WithLabelValues(category, outcome).Inc()
}

// ObserveGeneration records one service call's latency and, on success, its payload size.
func (b *Batch) ObserveGeneration(d time.Duration, size int) {
	if b == nil {
		return
	}
	b.genDuration.Observe(d.Seconds())
	if size > 0 {
		b.assetBytes.Add(float64(size))
	}
}

// Finish stamps the completion time.
func (b *Batch) Finish(at time.Time) {
	if b == nil {
		return
	}
	b.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in text exposition format. Empty path is a no-op.
func (b *Batch) WriteTextfile(path string) error {
	if b == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics textfile dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, b.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	logging.Get(logging.CategoryMetrics).Info("Wrote metrics textfile %s", path)
	return nil
}

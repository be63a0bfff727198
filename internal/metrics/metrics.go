// Package metrics provides Prometheus instrumentation for the
// transient-search pipeline's stage binaries, a typed struct of registered
// collectors rather than package-level globals scattered across stages. There is no long-running process to
// scrape here - this is a batch pipeline - so the registry is dumped to a
// text file on clean exit instead of served over HTTP.
package metrics

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Stage identifies which of the four pipeline components is instrumented,
// used only as a metric label so one metrics.prom file can describe a
// multi-stage run if the caller chooses to share a registry.
type Stage string

const (
	StageBuild      Stage = "build"
	StageCombine    Stage = "combine"
	StageFilter     Stage = "filter"
	StageDedisperse Stage = "dedisperse"
)

// Pipeline holds every collector the pipeline's stage binaries touch.
type Pipeline struct {
	registry *prometheus.Registry

	RowsBuilt        *prometheus.CounterVec
	TilesWritten     *prometheus.CounterVec
	EventsEmitted    *prometheus.CounterVec
	DMTrials         *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	RowsFlagged      *prometheus.GaugeVec
	ColumnsFlagged   *prometheus.GaugeVec
	InjectionNonZero prometheus.Gauge
}

// New creates a Pipeline registered against the given registry, so stage
// binaries and tests can supply their own (tests use prometheus.NewRegistry()
// to avoid collisions with the default global registry).
func New(registry *prometheus.Registry) (*Pipeline, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	p := &Pipeline{
		registry: registry,
		RowsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drxsearch_rows_built_total",
			Help: "Spectrogram rows written by the builder, per tuning.",
		}, []string{"tuning"}),
		TilesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drxsearch_tiles_written_total",
			Help: "Tile files written by the builder, per worker rank.",
		}, []string{"rank"}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drxsearch_events_emitted_total",
			Help: "Transient events emitted by the de-dispersion search, per tuning.",
		}, []string{"tuning"}),
		DMTrials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drxsearch_dm_trials_total",
			Help: "Dispersion-measure trials completed by the de-dispersion search.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drxsearch_stage_duration_seconds",
			Help:    "Wall-clock duration of a pipeline stage invocation.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"stage"}),
		RowsFlagged: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "drxsearch_rfi_rows_flagged",
			Help: "Row indices excised by the RFI mask in the most recent filter run.",
		}, []string{"stage"}),
		ColumnsFlagged: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "drxsearch_rfi_columns_flagged",
			Help: "Column indices excised by the RFI mask in the most recent filter run.",
		}, []string{"stage"}),
		InjectionNonZero: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "drxsearch_injection_nonzero_entries",
			Help: "Non-zero entries in the most recently built injection CSR matrix.",
		}),
	}

	collectors := []prometheus.Collector{
		p.RowsBuilt, p.TilesWritten, p.EventsEmitted, p.DMTrials,
		p.StageDuration, p.RowsFlagged, p.ColumnsFlagged, p.InjectionNonZero,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}

	return p, nil
}

// WriteTextFile dumps the registry's current state to path in the
// Prometheus text exposition format, the batch-job equivalent of exposing
// /metrics for a scraper to pull.
func (p *Pipeline) WriteTextFile(path string) error {
	families, err := p.registry.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("metrics: create %s: %w", path, err)
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode: %w", err)
		}
	}
	return nil
}

package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "schoolair"

// Metrics holds the Prometheus counters, histograms, and gauges for one
// pipeline run. They live on a private registry so a batch run can push its
// final state to a Pushgateway without dragging along process collectors.
type Metrics struct {
	registry *prometheus.Registry

	WideRowsConsumed  prometheus.Counter
	ReadingsKept      prometheus.Counter
	ParseAnomalies    prometheus.Counter
	DuplicatesRemoved prometheus.Counter
	SchoolsMapped     prometheus.Gauge
	ExposureRowsKept  prometheus.Counter
	QCFlagged         *prometheus.CounterVec // label: reason={negative,below_min,above_max}
	StageDuration     *prometheus.HistogramVec
	PipelineRunning   prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		WideRowsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wide_rows_consumed_total",
			Help:      "Wide-format input rows read from the readings export.",
		}),
		ReadingsKept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_kept_total",
			Help:      "Valid long-format readings surviving the reshape filters.",
		}),
		ParseAnomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_anomalies_total",
			Help:      "Cells dropped for invalid markers, missing values, or bad timestamps.",
		}),
		DuplicatesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_readings_removed_total",
			Help:      "Readings discarded by keep-first deduplication.",
		}),
		SchoolsMapped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schools_mapped",
			Help:      "Schools assigned a nearest station in this run.",
		}),
		ExposureRowsKept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exposure_rows_kept_total",
			Help:      "School exposure records surviving coverage and QC filters.",
		}),
		QCFlagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qc_flagged_total",
			Help:      "Exposure records removed by quality control, by reason.",
		}, []string{"reason"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while the pipeline is active, 0 once finished.",
		}),
	}

	m.registry.MustRegister(
		m.WideRowsConsumed,
		m.ReadingsKept,
		m.ParseAnomalies,
		m.DuplicatesRemoved,
		m.SchoolsMapped,
		m.ExposureRowsKept,
		m.QCFlagged,
		m.StageDuration,
		m.PipelineRunning,
	)

	return m
}

// Push delivers the registry's final state to a Pushgateway. A batch job has
// no scrape window, so metrics travel by push or not at all.
func (m *Metrics) Push(url string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, "schoolair_pipeline").Gatherer(m.registry).Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

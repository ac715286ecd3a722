/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label constants shared across recorders in this package.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ExecutorMetrics holds Prometheus metrics for the row executor: one
// row's walk of a table's column DAG, and the columns run within it.
type ExecutorMetrics struct {
	// RowsActive is the number of rows currently being executed.
	RowsActive prometheus.Gauge

	// RowDuration is the histogram of full-row execution durations.
	RowDuration *prometheus.HistogramVec

	// ColumnsTotal is the total number of column executions, by
	// generation type and outcome.
	ColumnsTotal *prometheus.CounterVec

	// ColumnDuration is the histogram of per-column execution durations.
	ColumnDuration *prometheus.HistogramVec

	// EventsEmitted is the total number of executor events emitted, by kind.
	EventsEmitted *prometheus.CounterVec
}

// ExecutorMetricsConfig configures the executor metrics.
type ExecutorMetricsConfig struct {
	// Namespace labels every metric (e.g. the deployment's cluster name).
	Namespace string

	// RowDurationBuckets for the row-duration histogram. Defaults to
	// DefaultRowDurationBuckets.
	RowDurationBuckets []float64

	// ColumnDurationBuckets for the column-duration histogram. Defaults
	// to DefaultColumnDurationBuckets.
	ColumnDurationBuckets []float64
}

// DefaultRowDurationBuckets are the default histogram buckets for
// full-row durations. A row can fan out to several LLM/embed/code
// columns, so the tail extends well past a single LLM call.
var DefaultRowDurationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}

// DefaultColumnDurationBuckets are the default histogram buckets for a
// single column's execution, dominated by whichever provider call it issues.
var DefaultColumnDurationBuckets = []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60}

// NewExecutorMetrics creates and registers Prometheus metrics for the
// row executor.
func NewExecutorMetrics(cfg ExecutorMetricsConfig) *ExecutorMetrics {
	var constLabels prometheus.Labels
	if cfg.Namespace != "" {
		constLabels = prometheus.Labels{"namespace": cfg.Namespace}
	}

	rowBuckets := cfg.RowDurationBuckets
	if rowBuckets == nil {
		rowBuckets = DefaultRowDurationBuckets
	}
	columnBuckets := cfg.ColumnDurationBuckets
	if columnBuckets == nil {
		columnBuckets = DefaultColumnDurationBuckets
	}

	return &ExecutorMetrics{
		RowsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "jamai_executor_rows_active",
			Help:        "Number of rows currently being executed",
			ConstLabels: constLabels,
		}),

		RowDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "jamai_executor_row_duration_seconds",
			Help:        "Full-row column-DAG execution duration in seconds",
			ConstLabels: constLabels,
			Buckets:     rowBuckets,
		}, []string{"status"}),

		ColumnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "jamai_executor_columns_total",
			Help:        "Total number of column executions, by generation type and outcome",
			ConstLabels: constLabels,
		}, []string{"gen_type", "status"}),

		ColumnDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "jamai_executor_column_duration_seconds",
			Help:        "Per-column execution duration in seconds",
			ConstLabels: constLabels,
			Buckets:     columnBuckets,
		}, []string{"gen_type"}),

		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "jamai_executor_events_total",
			Help:        "Total number of executor events emitted, by kind",
			ConstLabels: constLabels,
		}, []string{"kind"}),
	}
}

// Initialize pre-registers known label combinations so they appear in
// /metrics output before any row has run.
func (m *ExecutorMetrics) Initialize() {
	m.RowsActive.Set(0)
	for _, genType := range []string{"llm", "embed", "code"} {
		m.ColumnsTotal.WithLabelValues(genType, StatusSuccess).Add(0)
		m.ColumnsTotal.WithLabelValues(genType, StatusError).Add(0)
		m.ColumnDuration.WithLabelValues(genType)
	}
	for _, kind := range []string{"references", "chunk", "usage"} {
		m.EventsEmitted.WithLabelValues(kind).Add(0)
	}
	m.RowDuration.WithLabelValues(StatusSuccess)
	m.RowDuration.WithLabelValues(StatusError)
}

// RecordRowStart marks the beginning of a row's execution.
func (m *ExecutorMetrics) RecordRowStart() {
	m.RowsActive.Inc()
}

// RowMetrics contains the metrics for one row's completed execution.
type RowMetrics struct {
	DurationSeconds float64
	Success         bool
}

// RecordRowEnd marks the end of a row's execution.
func (m *ExecutorMetrics) RecordRowEnd(rm RowMetrics) {
	status := StatusSuccess
	if !rm.Success {
		status = StatusError
	}
	m.RowsActive.Dec()
	m.RowDuration.WithLabelValues(status).Observe(rm.DurationSeconds)
}

// ColumnMetrics contains the metrics for a single column's execution.
type ColumnMetrics struct {
	GenType         string
	DurationSeconds float64
	Success         bool
}

// RecordColumn records metrics for a column execution.
func (m *ExecutorMetrics) RecordColumn(cm ColumnMetrics) {
	status := StatusSuccess
	if !cm.Success {
		status = StatusError
	}
	m.ColumnsTotal.WithLabelValues(cm.GenType, status).Inc()
	m.ColumnDuration.WithLabelValues(cm.GenType).Observe(cm.DurationSeconds)
}

// RecordEvent records the emission of one executor event.
func (m *ExecutorMetrics) RecordEvent(kind string) {
	m.EventsEmitted.WithLabelValues(kind).Inc()
}

// ExecutorMetricsRecorder is the interface for recording executor
// metrics, allowing a no-op implementation when metrics are disabled.
type ExecutorMetricsRecorder interface {
	RecordRowStart()
	RecordRowEnd(rm RowMetrics)
	RecordColumn(cm ColumnMetrics)
	RecordEvent(kind string)
}

// NoOpExecutorMetrics is a no-op implementation for when metrics are disabled.
type NoOpExecutorMetrics struct{}

func (n *NoOpExecutorMetrics) RecordRowStart()             {}
func (n *NoOpExecutorMetrics) RecordRowEnd(_ RowMetrics)    {}
func (n *NoOpExecutorMetrics) RecordColumn(_ ColumnMetrics) {}
func (n *NoOpExecutorMetrics) RecordEvent(_ string)         {}

var (
	_ ExecutorMetricsRecorder = (*ExecutorMetrics)(nil)
	_ ExecutorMetricsRecorder = (*NoOpExecutorMetrics)(nil)
)

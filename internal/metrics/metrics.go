// Package metrics provides Prometheus metrics for string-table runs.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters of a single run on a private registry.
type Metrics struct {
	Registry          *prometheus.Registry
	FilesDiscovered   prometheus.Counter
	FilesScanned      *prometheus.CounterVec
	EntriesExtracted  prometheus.Counter
	DirectoryErrors   prometheus.Counter
	TableKeys         prometheus.Gauge
	LinesInjected     prometheus.Counter
	RunDuration       *prometheus.HistogramVec
	LastSuccessfulRun *prometheus.GaugeVec
}

// New creates and registers the metrics on a fresh registry.
func New() (metrics *Metrics) {
	metrics = &Metrics{
		FilesDiscovered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gaia_strings_files_discovered_total",
				Help: "Total number of listing files discovered",
			},
		),
		FilesScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gaia_strings_files_scanned_total",
				Help: "Total number of listing files scanned, by outcome",
			},
			[]string{"status"},
		),
		EntriesExtracted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gaia_strings_entries_extracted_total",
				Help: "Total number of string entries contributed by files",
			},
		),
		DirectoryErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gaia_strings_directory_errors_total",
				Help: "Total number of directories that could not be read",
			},
		),
		TableKeys: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gaia_strings_table_keys",
				Help: "Number of keys in the last written string table",
			},
		),
		LinesInjected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gaia_strings_lines_injected_total",
				Help: "Total number of listing lines rewritten from a table",
			},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gaia_strings_run_duration_seconds",
				Help:    "Time taken by a run",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		LastSuccessfulRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gaia_strings_last_successful_run_timestamp",
				Help: "Timestamp of the last successful run",
			},
			[]string{"command"},
		),
	}

	metrics.Registry = prometheus.NewRegistry()
	metrics.Registry.MustRegister(
		metrics.FilesDiscovered,
		metrics.FilesScanned,
		metrics.EntriesExtracted,
		metrics.DirectoryErrors,
		metrics.TableKeys,
		metrics.LinesInjected,
		metrics.RunDuration,
		metrics.LastSuccessfulRun,
	)

	return metrics
}

// WriteTextfile writes the registry in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) (err error) {
	err = prometheus.WriteToTextfile(path, m.Registry)
	if err != nil {
		err = fmt.Errorf("write metrics textfile: %w", err)
	}
	return err
}

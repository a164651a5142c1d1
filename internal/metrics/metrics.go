package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightcounts_files_processed_total",
			Help: "Source files processed, by outcome",
		},
		[]string{"status"},
	)

	FileLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flightcounts_file_load_seconds",
			Help:    "Time to read, normalize and filter one source file",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	RecordsMatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightcounts_records_matched_total",
			Help: "Source rows touching the focal location",
		},
		[]string{"focal"},
	)

	BadDates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightcounts_bad_dates_total",
			Help: "Matching rows dropped because their date did not parse",
		},
		[]string{"focal"},
	)

	OutputRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightcounts_output_rows_total",
			Help: "Daily rows written to the output file",
		},
		[]string{"focal"},
	)

	MergeRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightcounts_merge_rows_total",
			Help: "External rows processed by the merge step, by result",
		},
		[]string{"result"},
	)

	LastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flightcounts_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		},
		[]string{"focal"},
	)
)

// WriteTextfile writes every registered metric to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

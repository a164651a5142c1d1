package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/flightcounts/internal/aggregate"
	"github.com/lox/flightcounts/internal/filter"
	"github.com/lox/flightcounts/internal/metrics"
	"github.com/lox/flightcounts/internal/models"
	"github.com/lox/flightcounts/internal/schema"
)

var sourceExts = map[string]bool{
	".csv":  true,
	".txt":  true,
	".xlsx": true,
}

// DiscoverFiles lists the source files directly inside dir, sorted by name.
// Hidden files are ignored.
func DiscoverFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !sourceExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Loader turns source files into filtered records for one focal location.
type Loader struct {
	normalizer *schema.Normalizer
	focal      string
	workers    int
}

// NewLoader uses the built-in mappings when normalizer is nil. At least one
// worker is always used.
func NewLoader(normalizer *schema.Normalizer, focal string, workers int) *Loader {
	if normalizer == nil {
		normalizer = schema.NewNormalizer(nil)
	}
	if workers < 1 {
		workers = 1
	}
	return &Loader{normalizer: normalizer, focal: focal, workers: workers}
}

// LoadFile reads, normalizes and filters one source file. Failures are
// reported in the FileReport rather than returned.
func (l *Loader) LoadFile(path string) (records []models.FilteredRecord, report models.FileReport) {
	start := time.Now()
	report.Path = path
	defer func() {
		report.Duration = time.Since(start)
		metrics.FilesProcessed.WithLabelValues(string(report.Status)).Inc()
		metrics.FileLoadDuration.WithLabelValues(string(report.Status)).Observe(report.Duration.Seconds())
	}()

	rows, err := ReadTable(path)
	if err != nil {
		report.Status = models.FileFailed
		report.Reason = err.Error()
		log.Printf("ingest: skipping %s: %v", filepath.Base(path), err)
		return nil, report
	}

	frame, err := l.normalizer.Normalize(rows)
	if err != nil {
		report.Status = models.FileSkipped
		if !isSchemaError(err) {
			report.Status = models.FileFailed
		}
		report.Reason = err.Error()
		log.Printf("ingest: skipping %s: %v", filepath.Base(path), err)
		return nil, report
	}

	report.MappingVersion = frame.Resolution.Version
	report.HasCancelled = frame.Resolution.HasCancelled()
	report.HasCarrier = frame.Resolution.HasCarrier()
	report.RowsRead = frame.Rows

	var badDates int
	records, badDates, err = filter.Records(frame, l.focal)
	if err != nil {
		report.Status = models.FileFailed
		report.Reason = err.Error()
		log.Printf("ingest: skipping %s: %v", filepath.Base(path), err)
		return nil, report
	}

	report.Status = models.FileUsed
	report.RowsMatched = len(records)
	report.BadDates = badDates
	if badDates > 0 {
		log.Printf("ingest: %s: dropped %d rows with unparseable dates", filepath.Base(path), badDates)
	}
	log.Printf("ingest: %s: %d rows, %d for %s (mapping %s)",
		filepath.Base(path), report.RowsRead, report.RowsMatched, l.focal, report.MappingVersion)
	return records, report
}

func isSchemaError(err error) bool {
	return errors.Is(err, schema.ErrNoDateColumn) ||
		errors.Is(err, schema.ErrNoLocationColumns) ||
		errors.Is(err, schema.ErrEmptyFile)
}

// LoadAll loads paths concurrently and folds every file's records into one
// accumulator. Reports are returned in the order of paths.
func (l *Loader) LoadAll(ctx context.Context, paths []string) (*aggregate.Accumulator, []models.FileReport, error) {
	reports := make([]models.FileReport, len(paths))
	partials := make([]*aggregate.Accumulator, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, report := l.LoadFile(path)
			acc := aggregate.New()
			acc.AddAll(records)
			partials[i] = acc
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	total := aggregate.New()
	for _, p := range partials {
		total.Merge(p)
	}
	return total, reports, nil
}

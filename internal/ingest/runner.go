package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/lox/flightcounts/internal/aggregate"
	"github.com/lox/flightcounts/internal/config"
	"github.com/lox/flightcounts/internal/export"
	"github.com/lox/flightcounts/internal/merge"
	"github.com/lox/flightcounts/internal/metrics"
	"github.com/lox/flightcounts/internal/models"
	"github.com/lox/flightcounts/internal/schema"
	"github.com/lox/flightcounts/internal/store"
)

// ErrNoUsableInput means no file contributed a matching record. No output
// is written in that case.
var ErrNoUsableInput = errors.New("no usable input")

type RunResult struct {
	RunID      string
	Daily      []models.DailyAggregate
	Reports    []models.FileReport
	Summary    aggregate.Summary
	Merged     bool
	Merge      merge.Report
	OutputPath string

	// MergeWarning is set when the merge step failed. The daily output is
	// still written and archived in that case.
	MergeWarning string
}

// Counts tallies the reports by status.
func (r *RunResult) Counts() (used, skipped, failed int) {
	for _, rep := range r.Reports {
		switch rep.Status {
		case models.FileUsed:
			used++
		case models.FileSkipped:
			skipped++
		case models.FileFailed:
			failed++
		}
	}
	return used, skipped, failed
}

// Records returns the total number of matching records across files.
func (r *RunResult) Records() int {
	n := 0
	for _, rep := range r.Reports {
		n += rep.RowsMatched
	}
	return n
}

type Runner struct {
	cfg    config.Config
	loader *Loader
	store  *store.Store
}

// NewRunner builds a runner for cfg. st may be nil, in which case runs are
// not archived.
func NewRunner(cfg config.Config, normalizer *schema.Normalizer, st *store.Store) *Runner {
	return &Runner{
		cfg:    cfg,
		loader: NewLoader(normalizer, cfg.FocalCode, cfg.Workers),
		store:  st,
	}
}

// RunOnce executes the pipeline end to end: discover, load, aggregate, write,
// then the optional merge, archive and metrics steps.
func (r *Runner) RunOnce(ctx context.Context) (*RunResult, error) {
	result := &RunResult{RunID: uuid.NewString(), OutputPath: r.cfg.OutputPath}

	var run *store.IngestRun
	if r.store != nil {
		var err error
		run, err = r.store.StartIngestRun(result.RunID, r.cfg.SourceDir, r.cfg.FocalCode)
		if err != nil {
			log.Printf("store: %v", err)
		}
	}

	err := r.run(ctx, result)
	r.finish(run, result, err)
	if err == nil {
		metrics.LastSuccess.WithLabelValues(r.cfg.FocalCode).SetToCurrentTime()
	}
	r.writeMetrics()
	if err != nil {
		return result, err
	}

	logSummary(r.cfg.FocalCode, result)
	return result, nil
}

func (r *Runner) run(ctx context.Context, result *RunResult) error {
	paths, err := DiscoverFiles(r.cfg.SourceDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w: no source files in %s", ErrNoUsableInput, r.cfg.SourceDir)
	}
	log.Printf("ingest: found %d source files in %s", len(paths), r.cfg.SourceDir)

	acc, reports, err := r.loader.LoadAll(ctx, paths)
	if err != nil {
		return fmt.Errorf("load files: %w", err)
	}
	result.Reports = reports

	badDates := 0
	for _, rep := range reports {
		badDates += rep.BadDates
	}
	metrics.RecordsMatched.WithLabelValues(r.cfg.FocalCode).Add(float64(acc.Records()))
	metrics.BadDates.WithLabelValues(r.cfg.FocalCode).Add(float64(badDates))

	if acc.Records() == 0 {
		return fmt.Errorf("%w: no records for %s in %d files", ErrNoUsableInput, r.cfg.FocalCode, len(paths))
	}
	log.Printf("ingest: %d records for %s over %d days", acc.Records(), r.cfg.FocalCode, acc.Days())

	result.Daily = acc.Results()
	result.Summary = aggregate.Summarize(result.Daily)

	if err := export.WriteDaily(r.cfg.OutputPath, result.Daily); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	metrics.OutputRows.WithLabelValues(r.cfg.FocalCode).Add(float64(len(result.Daily)))
	log.Printf("ingest: wrote %d days to %s", len(result.Daily), r.cfg.OutputPath)

	if r.store != nil {
		if err := r.store.SaveResults(result.RunID, r.cfg.FocalCode, result.Reports, result.Daily); err != nil {
			log.Printf("store: save run %s: %v", result.RunID, err)
		}
	}

	if err := r.merge(result); err != nil {
		result.MergeWarning = err.Error()
		log.Printf("merge: %v", err)
	}
	return nil
}

// merge joins the series onto the configured external table. A missing
// table skips the step. Errors are reported as warnings by the caller.
func (r *Runner) merge(result *RunResult) error {
	if r.cfg.MergePath == "" {
		return nil
	}
	if _, err := os.Stat(r.cfg.MergePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("merge: %s not found, skipping", r.cfg.MergePath)
			return nil
		}
		return fmt.Errorf("stat merge input: %w", err)
	}

	records, err := ReadTable(r.cfg.MergePath)
	if err != nil {
		return fmt.Errorf("read merge input: %w", err)
	}
	table, err := merge.TableFromRecords(records)
	if err != nil {
		return fmt.Errorf("read merge input: %w", err)
	}
	joined, rep, err := merge.LeftJoin(table, r.cfg.MergeKey, result.Daily)
	if err != nil {
		return fmt.Errorf("merge %s: %w", filepath.Base(r.cfg.MergePath), err)
	}

	out := r.cfg.MergeOutput()
	if err := export.WriteCSV(out, joined.Records()); err != nil {
		return fmt.Errorf("write merged output: %w", err)
	}

	result.Merged = true
	result.Merge = rep
	metrics.MergeRows.WithLabelValues("matched").Add(float64(rep.Matched))
	metrics.MergeRows.WithLabelValues("missing").Add(float64(rep.Missing))
	log.Printf("merge: wrote %s (%d matched, %d missing)", out, rep.Matched, rep.Missing)
	return nil
}

func (r *Runner) finish(run *store.IngestRun, result *RunResult, runErr error) {
	if run == nil {
		return
	}
	used, skipped, failed := result.Counts()
	run.FilesSeen = sql.NullInt64{Int64: int64(len(result.Reports)), Valid: true}
	run.FilesUsed = sql.NullInt64{Int64: int64(used), Valid: true}
	run.FilesSkipped = sql.NullInt64{Int64: int64(skipped), Valid: true}
	run.FilesFailed = sql.NullInt64{Int64: int64(failed), Valid: true}
	run.RecordsMatched = sql.NullInt64{Int64: int64(result.Records()), Valid: true}
	run.Success = runErr == nil
	if runErr != nil {
		run.ErrorMessage = sql.NullString{String: runErr.Error(), Valid: true}
	} else {
		run.OutputPath = sql.NullString{String: result.OutputPath, Valid: true}
		run.DaysWritten = sql.NullInt64{Int64: int64(len(result.Daily)), Valid: true}
	}
	if err := r.store.CompleteIngestRun(run); err != nil {
		log.Printf("store: complete run %s: %v", run.ID, err)
	}
}

func (r *Runner) writeMetrics() {
	if r.cfg.MetricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(r.cfg.MetricsFile); err != nil {
		log.Printf("metrics: %v", err)
	}
}

func logSummary(focal string, result *RunResult) {
	used, skipped, failed := result.Counts()
	log.Printf("ingest: run %s: %d files used, %d skipped, %d failed", result.RunID, used, skipped, failed)
	for _, rep := range result.Reports {
		if rep.Status != models.FileUsed {
			log.Printf("ingest: %s %s: %s", rep.Status, filepath.Base(rep.Path), rep.Reason)
		}
	}

	s := result.Summary
	log.Printf("ingest: %s daily series %s to %s (%d days)",
		focal, s.First.Format(export.DateLayout), s.Last.Format(export.DateLayout), s.Days)
	log.Printf("ingest: departures mean %.1f, min %d on %s, max %d on %s",
		s.MeanDepartures, s.MinDepartures, s.MinDeparturesDate.Format(export.DateLayout),
		s.MaxDepartures, s.MaxDeparturesDate.Format(export.DateLayout))
	log.Printf("ingest: arrivals mean %.1f, total mean %.1f, cancellation rate mean %.2f%%",
		s.MeanArrivals, s.MeanTotal, s.MeanCancellation*100)
	if s.HasCarriers {
		log.Printf("ingest: carriers per day mean %.1f", s.MeanCarriers)
	}
	if result.Merged {
		log.Printf("ingest: merge %d matched, %d missing", result.Merge.Matched, result.Merge.Missing)
	}
	if result.MergeWarning != "" {
		log.Printf("ingest: merge skipped: %s", result.MergeWarning)
	}
}

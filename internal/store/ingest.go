package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lox/flightcounts/internal/models"
)

// IngestRun represents a single pipeline run for auditing.
type IngestRun struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     sql.NullTime
	SourceDir      string
	Focal          string
	OutputPath     sql.NullString
	FilesSeen      sql.NullInt64
	FilesUsed      sql.NullInt64
	FilesSkipped   sql.NullInt64
	FilesFailed    sql.NullInt64
	RecordsMatched sql.NullInt64
	DaysWritten    sql.NullInt64
	Success        bool
	ErrorMessage   sql.NullString
}

// StartIngestRun creates a new ingest run record and returns it. An empty id
// is replaced with a fresh UUID.
func (s *Store) StartIngestRun(id, sourceDir, focal string) (*IngestRun, error) {
	if id == "" {
		id = uuid.NewString()
	}
	run := &IngestRun{
		ID:        id,
		StartedAt: time.Now().UTC(),
		SourceDir: sourceDir,
		Focal:     focal,
	}

	err := s.withRetry(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO ingest_runs (id, started_at, source_dir, focal, success)
			VALUES (?, ?, ?, ?, FALSE)
		`, run.ID, run.StartedAt, run.SourceDir, run.Focal)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("start ingest run: %w", err)
	}
	return run, nil
}

// CompleteIngestRun updates the ingest run with results.
func (s *Store) CompleteIngestRun(run *IngestRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	return s.withRetry(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE ingest_runs SET
				finished_at = ?,
				output_path = ?,
				files_seen = ?,
				files_used = ?,
				files_skipped = ?,
				files_failed = ?,
				records_matched = ?,
				days_written = ?,
				success = ?,
				error_message = ?
			WHERE id = ?
		`, run.FinishedAt, run.OutputPath, run.FilesSeen, run.FilesUsed, run.FilesSkipped, run.FilesFailed,
			run.RecordsMatched, run.DaysWritten, run.Success, run.ErrorMessage, run.ID)
		return err
	})
}

// SaveResults stores a run's file reports and daily series in one
// transaction.
func (s *Store) SaveResults(runID, focal string, reports []models.FileReport, daily []models.DailyAggregate) error {
	return s.withRetry(func(tx *sql.Tx) error {
		for _, r := range reports {
			if _, err := tx.Exec(`
				INSERT INTO file_reports (run_id, path, status, mapping_version, rows_read, rows_matched, bad_dates, has_cancelled, has_carrier, reason, duration_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, runID, r.Path, string(r.Status), nullString(r.MappingVersion), r.RowsRead, r.RowsMatched,
				r.BadDates, r.HasCancelled, r.HasCarrier, nullString(r.Reason), r.Duration.Milliseconds()); err != nil {
				return fmt.Errorf("insert file report %s: %w", r.Path, err)
			}
		}
		return upsertDailyCounts(tx, runID, focal, daily)
	})
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const runColumns = `id, started_at, finished_at, source_dir, focal, output_path, files_seen, files_used,
	files_skipped, files_failed, records_matched, days_written, success, error_message`

func scanRun(scan func(...any) error) (*IngestRun, error) {
	var r IngestRun
	if err := scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.SourceDir, &r.Focal, &r.OutputPath,
		&r.FilesSeen, &r.FilesUsed, &r.FilesSkipped, &r.FilesFailed, &r.RecordsMatched,
		&r.DaysWritten, &r.Success, &r.ErrorMessage); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRun returns the run with the given id, or nil if there is none.
func (s *Store) GetRun(id string) (*IngestRun, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM ingest_runs WHERE id = ?`, id)
	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// GetLatestRun returns the most recent successful run for focal, or nil.
func (s *Store) GetLatestRun(focal string) (*IngestRun, error) {
	row := s.db.QueryRow(`
		SELECT `+runColumns+`
		FROM ingest_runs
		WHERE focal = ? AND success = TRUE
		ORDER BY started_at DESC
		LIMIT 1
	`, focal)
	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// GetRecentIngestErrors returns recent failed ingest runs.
func (s *Store) GetRecentIngestErrors(limit int) ([]IngestRun, error) {
	rows, err := s.db.Query(`
		SELECT `+runColumns+`
		FROM ingest_runs
		WHERE success = FALSE
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []IngestRun
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

// GetFileReports returns the file reports of a run in the order they were
// recorded.
func (s *Store) GetFileReports(runID string) ([]models.FileReport, error) {
	rows, err := s.db.Query(`
		SELECT path, status, mapping_version, rows_read, rows_matched, bad_dates, has_cancelled, has_carrier, reason, duration_ms
		FROM file_reports
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.FileReport
	for rows.Next() {
		var (
			r              models.FileReport
			status         string
			version, cause sql.NullString
			durationMS     sql.NullInt64
		)
		if err := rows.Scan(&r.Path, &status, &version, &r.RowsRead, &r.RowsMatched, &r.BadDates,
			&r.HasCancelled, &r.HasCarrier, &cause, &durationMS); err != nil {
			return nil, err
		}
		r.Status = models.FileStatus(status)
		r.MappingVersion = version.String
		r.Reason = cause.String
		r.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}

// IngestHealthSummary represents a daily ingest health summary.
type IngestHealthSummary struct {
	Date           string
	Focal          string
	TotalRuns      int
	SuccessRuns    int
	FailedRuns     int
	RecordsMatched int64
	FilesSkipped   int64
}

// GetIngestHealth returns ingest health summaries for the last N days.
func (s *Store) GetIngestHealth(days int) ([]IngestHealthSummary, error) {
	rows, err := s.db.Query(`
		SELECT
			DATE(SUBSTR(started_at, 1, 19)) as date,
			focal,
			COUNT(*) as total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as success_runs,
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) as failed_runs,
			COALESCE(SUM(records_matched), 0) as records_matched,
			COALESCE(SUM(files_skipped), 0) as files_skipped
		FROM ingest_runs
		WHERE SUBSTR(started_at, 1, 19) > datetime('now', '-' || ? || ' days')
		GROUP BY date, focal
		ORDER BY date DESC, focal
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []IngestHealthSummary
	for rows.Next() {
		var h IngestHealthSummary
		if err := rows.Scan(&h.Date, &h.Focal, &h.TotalRuns, &h.SuccessRuns, &h.FailedRuns,
			&h.RecordsMatched, &h.FilesSkipped); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/flightcounts/internal/models"
)

const dateLayout = "2006-01-02"

type Store struct {
	db *sql.DB

	// retryTimeout bounds how long a write keeps retrying a busy database.
	retryTimeout time.Duration
}

func New(db *sql.DB) *Store {
	return &Store{db: db, retryTimeout: 30 * time.Second}
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withRetry runs fn in a transaction, retrying with backoff while SQLite
// reports the database as busy. Any other error is returned immediately.
func (s *Store) withRetry(fn func(tx *sql.Tx) error) error {
	operation := func() error {
		tx, err := s.db.Begin()
		if err != nil {
			if isBusy(err) {
				return err
			}
			return backoff.Permanent(fmt.Errorf("begin tx: %w", err))
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			if isBusy(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if err := tx.Commit(); err != nil {
			if isBusy(err) {
				return err
			}
			return backoff.Permanent(fmt.Errorf("commit: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.retryTimeout
	return backoff.Retry(operation, bo)
}

// UpsertDailyCounts stores a run's daily series for focal. Dates already
// stored are overwritten, so the table holds the latest value per day.
func (s *Store) UpsertDailyCounts(runID, focal string, daily []models.DailyAggregate) error {
	return s.withRetry(func(tx *sql.Tx) error {
		return upsertDailyCounts(tx, runID, focal, daily)
	})
}

func upsertDailyCounts(tx *sql.Tx, runID, focal string, daily []models.DailyAggregate) error {
	stmt, err := tx.Prepare(`
		INSERT INTO daily_flight_counts (focal, date, scheduled_departures, scheduled_arrivals, cancelled_flights, total_scheduled_flights, cancellation_rate, num_carriers, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(focal, date) DO UPDATE SET
			scheduled_departures = excluded.scheduled_departures,
			scheduled_arrivals = excluded.scheduled_arrivals,
			cancelled_flights = excluded.cancelled_flights,
			total_scheduled_flights = excluded.total_scheduled_flights,
			cancellation_rate = excluded.cancellation_rate,
			num_carriers = excluded.num_carriers,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare daily upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, d := range daily {
		if _, err := stmt.Exec(focal, d.Date.Format(dateLayout), d.ScheduledDepartures, d.ScheduledArrivals,
			d.CancelledFlights, d.TotalScheduledFlights, d.CancellationRate, d.NumCarriers, runID, now); err != nil {
			return fmt.Errorf("upsert %s: %w", d.Date.Format(dateLayout), err)
		}
	}
	return nil
}

// GetDailyCounts returns the stored series for focal between start and end
// inclusive, ascending by date.
func (s *Store) GetDailyCounts(focal string, start, end time.Time) ([]models.DailyAggregate, error) {
	rows, err := s.db.Query(`
		SELECT date, scheduled_departures, scheduled_arrivals, cancelled_flights, total_scheduled_flights, cancellation_rate, num_carriers
		FROM daily_flight_counts
		WHERE focal = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, focal, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DailyAggregate
	for rows.Next() {
		var (
			d    models.DailyAggregate
			date string
		)
		if err := rows.Scan(&date, &d.ScheduledDepartures, &d.ScheduledArrivals, &d.CancelledFlights,
			&d.TotalScheduledFlights, &d.CancellationRate, &d.NumCarriers); err != nil {
			return nil, err
		}
		d.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", date, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

package models

import (
	"database/sql"
	"math"
	"time"
)

// RawRecord is one normalized source row. It is produced per file and
// discarded once it has been filtered.
type RawRecord struct {
	Date      time.Time
	Origin    string
	Dest      string
	Carrier   sql.NullString
	Cancelled float64 // 0 when the file has no cancellation column
}

// FilteredRecord is a RawRecord that touches the focal location.
type FilteredRecord struct {
	RawRecord
	IsDeparture bool
	IsArrival   bool
}

// DailyAggregate holds the flight counts for one calendar date.
type DailyAggregate struct {
	Date                  time.Time
	ScheduledDepartures   int
	ScheduledArrivals     int
	TotalScheduledFlights int
	CancelledFlights      float64
	CancellationRate      sql.NullFloat64 // invalid when TotalScheduledFlights == 0
	NumCarriers           sql.NullInt64   // invalid when no carrier column was resolved
}

// Finalize recomputes the derived fields from the counts.
func (d *DailyAggregate) Finalize() {
	d.TotalScheduledFlights = d.ScheduledDepartures + d.ScheduledArrivals
	if d.TotalScheduledFlights == 0 {
		d.CancellationRate = sql.NullFloat64{}
		return
	}
	d.CancellationRate = sql.NullFloat64{
		Float64: Round4(d.CancelledFlights / float64(d.TotalScheduledFlights)),
		Valid:   true,
	}
}

// FileStatus is the outcome of loading one source file.
type FileStatus string

const (
	FileUsed    FileStatus = "used"
	FileSkipped FileStatus = "skipped" // schema could not be resolved
	FileFailed  FileStatus = "failed"  // I/O or parse failure
)

// FileReport records what happened to a single source file during a run.
type FileReport struct {
	Path           string
	Status         FileStatus
	MappingVersion string
	RowsRead       int
	RowsMatched    int
	BadDates       int
	HasCancelled   bool
	HasCarrier     bool
	Reason         string
	Duration       time.Duration
}

// Round4 rounds to four decimal places, half to even.
func Round4(v float64) float64 {
	return math.RoundToEven(v*1e4) / 1e4
}

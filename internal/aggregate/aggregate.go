// Package aggregate folds filtered flight records into daily counts.
package aggregate

import (
	"database/sql"
	"sort"
	"time"

	"github.com/lox/flightcounts/internal/models"
	"github.com/lox/flightcounts/internal/schema"
)

type day struct {
	departures int
	arrivals   int
	cancelled  float64
	carriers   map[string]struct{}
}

// Accumulator is a hash accumulator keyed by calendar date. Adding records
// and merging accumulators are order independent, so files can be folded in
// any order or in parallel and merged afterwards.
type Accumulator struct {
	days       map[time.Time]*day
	records    int
	hasCarrier bool
}

// New returns an empty accumulator.
func New() *Accumulator {
	return &Accumulator{days: make(map[time.Time]*day)}
}

func (a *Accumulator) bucket(date time.Time) *day {
	key := schema.CalendarDate(date)
	d, ok := a.days[key]
	if !ok {
		d = &day{carriers: make(map[string]struct{})}
		a.days[key] = d
	}
	return d
}

// Add folds one record. A record that is both a departure and an arrival
// counts once for each role but contributes its cancellation only once.
func (a *Accumulator) Add(r models.FilteredRecord) {
	d := a.bucket(r.Date)
	if r.IsDeparture {
		d.departures++
	}
	if r.IsArrival {
		d.arrivals++
	}
	d.cancelled += r.Cancelled
	if r.Carrier.Valid {
		a.hasCarrier = true
		if r.Carrier.String != "" {
			d.carriers[r.Carrier.String] = struct{}{}
		}
	}
	a.records++
}

// AddAll folds every record in rs.
func (a *Accumulator) AddAll(rs []models.FilteredRecord) {
	for _, r := range rs {
		a.Add(r)
	}
}

// Merge folds b into a. b is left unchanged.
func (a *Accumulator) Merge(b *Accumulator) {
	if b == nil {
		return
	}
	for date, src := range b.days {
		dst := a.bucket(date)
		dst.departures += src.departures
		dst.arrivals += src.arrivals
		dst.cancelled += src.cancelled
		for c := range src.carriers {
			dst.carriers[c] = struct{}{}
		}
	}
	a.records += b.records
	a.hasCarrier = a.hasCarrier || b.hasCarrier
}

// Records returns the number of records folded in so far.
func (a *Accumulator) Records() int { return a.records }

// Days returns the number of distinct dates seen.
func (a *Accumulator) Days() int { return len(a.days) }

// Results returns one aggregate per date, ascending. NumCarriers is only
// populated when some record carried a carrier value.
func (a *Accumulator) Results() []models.DailyAggregate {
	dates := make([]time.Time, 0, len(a.days))
	for date := range a.days {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]models.DailyAggregate, 0, len(dates))
	for _, date := range dates {
		d := a.days[date]
		agg := models.DailyAggregate{
			Date:                date,
			ScheduledDepartures: d.departures,
			ScheduledArrivals:   d.arrivals,
			CancelledFlights:    d.cancelled,
		}
		if a.hasCarrier {
			agg.NumCarriers = sql.NullInt64{Int64: int64(len(d.carriers)), Valid: true}
		}
		agg.Finalize()
		out = append(out, agg)
	}
	return out
}

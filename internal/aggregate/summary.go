package aggregate

import (
	"time"

	"github.com/lox/flightcounts/internal/models"
)

// Summary describes a daily series for the end-of-run log.
type Summary struct {
	First             time.Time
	Last              time.Time
	Days              int
	MeanDepartures    float64
	MinDepartures     int
	MinDeparturesDate time.Time
	MaxDepartures     int
	MaxDeparturesDate time.Time
	MeanArrivals      float64
	MeanTotal         float64
	MeanCancellation  float64 // over days with a defined rate
	MeanCarriers      float64
	HasCarriers       bool
}

// Summarize expects daily to be sorted by date, as returned by Results.
func Summarize(daily []models.DailyAggregate) Summary {
	var s Summary
	if len(daily) == 0 {
		return s
	}

	s.Days = len(daily)
	s.First = daily[0].Date
	s.Last = daily[len(daily)-1].Date
	s.MinDepartures = daily[0].ScheduledDepartures
	s.MinDeparturesDate = daily[0].Date
	s.MaxDepartures = daily[0].ScheduledDepartures
	s.MaxDeparturesDate = daily[0].Date

	var deps, arrs, totals, rates, carriers float64
	rateDays := 0
	for _, d := range daily {
		deps += float64(d.ScheduledDepartures)
		arrs += float64(d.ScheduledArrivals)
		totals += float64(d.TotalScheduledFlights)
		if d.ScheduledDepartures < s.MinDepartures {
			s.MinDepartures = d.ScheduledDepartures
			s.MinDeparturesDate = d.Date
		}
		if d.ScheduledDepartures > s.MaxDepartures {
			s.MaxDepartures = d.ScheduledDepartures
			s.MaxDeparturesDate = d.Date
		}
		if d.CancellationRate.Valid {
			rates += d.CancellationRate.Float64
			rateDays++
		}
		if d.NumCarriers.Valid {
			carriers += float64(d.NumCarriers.Int64)
			s.HasCarriers = true
		}
	}

	n := float64(len(daily))
	s.MeanDepartures = deps / n
	s.MeanArrivals = arrs / n
	s.MeanTotal = totals / n
	if rateDays > 0 {
		s.MeanCancellation = rates / float64(rateDays)
	}
	if s.HasCarriers {
		s.MeanCarriers = carriers / n
	}
	return s
}

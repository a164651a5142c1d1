package aggregate

import (
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/flightcounts/internal/models"
)

func ymd(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func aggregateAll(records []models.FilteredRecord) []models.DailyAggregate {
	a := New()
	a.AddAll(records)
	return a.Results()
}

func rec(date time.Time, dep, arr bool, cancelled float64, carrier string) models.FilteredRecord {
	r := models.FilteredRecord{
		RawRecord:   models.RawRecord{Date: date, Cancelled: cancelled},
		IsDeparture: dep,
		IsArrival:   arr,
	}
	if carrier != "-" {
		r.Carrier = sql.NullString{String: carrier, Valid: true}
	}
	return r
}

func TestAggregate_Example(t *testing.T) {
	got := aggregateAll([]models.FilteredRecord{
		rec(ymd(2024, 1, 1), true, false, 0, "-"),
		rec(ymd(2024, 1, 1), false, true, 1, "-"),
	})

	require.Len(t, got, 1)
	d := got[0]
	assert.Equal(t, ymd(2024, 1, 1), d.Date)
	assert.Equal(t, 1, d.ScheduledDepartures)
	assert.Equal(t, 1, d.ScheduledArrivals)
	assert.Equal(t, 2, d.TotalScheduledFlights)
	assert.Equal(t, 1.0, d.CancelledFlights)
	assert.True(t, d.CancellationRate.Valid)
	assert.Equal(t, 0.5, d.CancellationRate.Float64)
	assert.False(t, d.NumCarriers.Valid)
}

func TestAggregate_SelfLoopCountsCancellationOnce(t *testing.T) {
	got := aggregateAll([]models.FilteredRecord{
		rec(ymd(2024, 2, 1), true, true, 1, "-"),
	})

	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].ScheduledDepartures)
	assert.Equal(t, 1, got[0].ScheduledArrivals)
	assert.Equal(t, 2, got[0].TotalScheduledFlights)
	assert.Equal(t, 1.0, got[0].CancelledFlights)
	assert.Equal(t, 0.5, got[0].CancellationRate.Float64)
}

func TestAggregate_OrderedAndNoZeroFill(t *testing.T) {
	got := aggregateAll([]models.FilteredRecord{
		rec(ymd(2024, 1, 5), true, false, 0, "-"),
		rec(ymd(2024, 1, 1), true, false, 0, "-"),
		rec(time.Date(2024, 1, 3, 17, 45, 0, 0, time.UTC), false, true, 0, "-"),
	})

	require.Len(t, got, 3)
	assert.Equal(t, ymd(2024, 1, 1), got[0].Date)
	assert.Equal(t, ymd(2024, 1, 3), got[1].Date)
	assert.Equal(t, ymd(2024, 1, 5), got[2].Date)
}

func TestAggregate_Carriers(t *testing.T) {
	got := aggregateAll([]models.FilteredRecord{
		rec(ymd(2024, 1, 1), true, false, 0, "AA"),
		rec(ymd(2024, 1, 1), true, false, 0, "AA"),
		rec(ymd(2024, 1, 1), false, true, 0, "B6"),
		rec(ymd(2024, 1, 1), false, true, 0, ""),
		rec(ymd(2024, 1, 2), true, false, 0, "-"),
	})

	require.Len(t, got, 2)
	assert.Equal(t, sql.NullInt64{Int64: 2, Valid: true}, got[0].NumCarriers)
	assert.Equal(t, sql.NullInt64{Int64: 0, Valid: true}, got[1].NumCarriers)
}

func TestAggregate_Rounding(t *testing.T) {
	var recs []models.FilteredRecord
	for i := 0; i < 3; i++ {
		recs = append(recs, rec(ymd(2024, 1, 1), true, false, 0, "-"))
	}
	recs[0].Cancelled = 1

	got := aggregateAll(recs)
	require.Len(t, got, 1)
	assert.Equal(t, 0.3333, got[0].CancellationRate.Float64)
}

func TestAggregate_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var recs []models.FilteredRecord
	for i := 0; i < 500; i++ {
		dep := rng.Intn(2) == 0
		arr := !dep || rng.Intn(10) == 0
		recs = append(recs, rec(ymd(2024, 3, 1+rng.Intn(10)), dep, arr, float64(rng.Intn(2)), "-"))
	}

	for _, d := range aggregateAll(recs) {
		assert.Equal(t, d.ScheduledDepartures+d.ScheduledArrivals, d.TotalScheduledFlights)
		require.Positive(t, d.TotalScheduledFlights)
		want := models.Round4(d.CancelledFlights / float64(d.TotalScheduledFlights))
		assert.Equal(t, want, d.CancellationRate.Float64)
	}
}

func TestAccumulator_MergeIsOrderIndependent(t *testing.T) {
	a := []models.FilteredRecord{
		rec(ymd(2024, 1, 1), true, false, 1, "AA"),
		rec(ymd(2024, 1, 2), false, true, 0, "DL"),
	}
	b := []models.FilteredRecord{
		rec(ymd(2024, 1, 1), false, true, 0, "B6"),
		rec(ymd(2024, 1, 3), true, false, 0, "-"),
	}

	ab := New()
	ab.AddAll(a)
	other := New()
	other.AddAll(b)
	ab.Merge(other)

	ba := New()
	ba.AddAll(b)
	other = New()
	other.AddAll(a)
	ba.Merge(other)

	flat := aggregateAll(append(append([]models.FilteredRecord{}, b...), a...))

	assert.Equal(t, ab.Results(), ba.Results())
	assert.Equal(t, flat, ab.Results())
	assert.Equal(t, 4, ab.Records())
	assert.Equal(t, 3, ab.Days())
}

func TestFinalize_ZeroTotal(t *testing.T) {
	d := models.DailyAggregate{Date: ymd(2024, 1, 1)}
	d.Finalize()
	assert.Zero(t, d.TotalScheduledFlights)
	assert.False(t, d.CancellationRate.Valid)
}

func TestSummarize(t *testing.T) {
	daily := aggregateAll([]models.FilteredRecord{
		rec(ymd(2024, 1, 1), true, false, 0, "AA"),
		rec(ymd(2024, 1, 1), true, false, 0, "AA"),
		rec(ymd(2024, 1, 2), true, false, 1, "DL"),
		rec(ymd(2024, 1, 2), false, true, 0, "DL"),
	})

	s := Summarize(daily)
	assert.Equal(t, 2, s.Days)
	assert.Equal(t, ymd(2024, 1, 1), s.First)
	assert.Equal(t, ymd(2024, 1, 2), s.Last)
	assert.Equal(t, 1.5, s.MeanDepartures)
	assert.Equal(t, 1, s.MinDepartures)
	assert.Equal(t, ymd(2024, 1, 2), s.MinDeparturesDate)
	assert.Equal(t, 2, s.MaxDepartures)
	assert.Equal(t, 0.25, s.MeanCancellation)
	assert.True(t, s.HasCarriers)
	assert.Equal(t, 1.0, s.MeanCarriers)

	assert.Equal(t, Summary{}, Summarize(nil))
}

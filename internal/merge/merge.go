// Package merge left-joins daily flight counts onto an external table keyed
// by date.
package merge

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lox/flightcounts/internal/models"
	"github.com/lox/flightcounts/internal/schema"
)

const DefaultKey = "Date"

// Columns appended to every external row, in order.
var Columns = []string{
	"scheduled_departures",
	"scheduled_arrivals",
	"total_scheduled_flights",
}

var ErrNoKeyColumn = errors.New("merge: key column not found")

// Table is a header plus rows of string cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// TableFromRecords splits raw records into a Table. records[0] is the header.
func TableFromRecords(records [][]string) (Table, error) {
	if len(records) == 0 {
		return Table{}, fmt.Errorf("merge: empty table")
	}
	return Table{Header: records[0], Rows: records[1:]}, nil
}

// Records returns the table as raw records, header first.
func (t Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, t.Header)
	return append(out, t.Rows...)
}

// Report counts external rows that did and did not find a daily aggregate.
type Report struct {
	Matched int
	Missing int
}

// LeftJoin attaches the daily counts to every row of t whose key column
// parses to a date present in daily. Every row of t is kept in order; rows
// without a match, including rows with an unparseable key, get empty cells.
// Existing columns named like the appended ones are replaced.
func LeftJoin(t Table, key string, daily []models.DailyAggregate) (Table, Report, error) {
	if key == "" {
		key = DefaultKey
	}
	keyIdx := -1
	for i, h := range t.Header {
		if schema.NormalizeHeader(h) == schema.NormalizeHeader(key) {
			keyIdx = i
			break
		}
	}
	if keyIdx < 0 {
		return Table{}, Report{}, fmt.Errorf("%w: %q", ErrNoKeyColumn, key)
	}

	byDate := make(map[time.Time]models.DailyAggregate, len(daily))
	for _, d := range daily {
		byDate[schema.CalendarDate(d.Date)] = d
	}

	drop := make(map[int]bool)
	for i, h := range t.Header {
		for _, c := range Columns {
			if i != keyIdx && strings.EqualFold(strings.TrimSpace(h), c) {
				drop[i] = true
			}
		}
	}

	out := Table{Header: append(keep(t.Header, drop), Columns...)}
	var rep Report
	for _, row := range t.Rows {
		cells := make([]string, len(Columns))
		var v string
		if keyIdx < len(row) {
			v = row[keyIdx]
		}
		if d, ok := lookup(byDate, v); ok {
			cells[0] = strconv.Itoa(d.ScheduledDepartures)
			cells[1] = strconv.Itoa(d.ScheduledArrivals)
			cells[2] = strconv.Itoa(d.TotalScheduledFlights)
			rep.Matched++
		} else {
			rep.Missing++
		}
		out.Rows = append(out.Rows, append(keep(row, drop), cells...))
	}
	return out, rep, nil
}

func lookup(byDate map[time.Time]models.DailyAggregate, v string) (models.DailyAggregate, bool) {
	date, err := schema.ParseDate(v)
	if err != nil {
		return models.DailyAggregate{}, false
	}
	d, ok := byDate[date]
	return d, ok
}

func keep(row []string, drop map[int]bool) []string {
	out := make([]string, 0, len(row))
	for i, v := range row {
		if !drop[i] {
			out = append(out, v)
		}
	}
	return out
}

// DefaultOutput derives the merged output path from the input path.
func DefaultOutput(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_with_flights.csv"
}

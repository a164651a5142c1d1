package schema

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/lox/flightcounts/internal/models"
)

// Logical column names of a normalized frame.
const (
	ColDate      = "date"
	ColOrigin    = "origin"
	ColDest      = "dest"
	ColCancelled = "cancelled"
	ColCarrier   = "carrier"
)

// Normalizer maps source tables onto the logical columns using a mapping table.
type Normalizer struct {
	mappings []Mapping
}

// NewNormalizer returns a normalizer over the given mapping table, or the
// built-in table when mappings is empty.
func NewNormalizer(mappings []Mapping) *Normalizer {
	if len(mappings) == 0 {
		mappings = DefaultMappings()
	}
	return &Normalizer{mappings: mappings}
}

// Mappings returns the active mapping table.
func (n *Normalizer) Mappings() []Mapping {
	return n.mappings
}

// Frame is one source file reduced to its logical columns. Origin and dest
// values are already trimmed. DF is unset when the file has no data rows.
type Frame struct {
	Resolution Resolution
	Rows       int
	DF         dataframe.DataFrame
}

// Len returns the number of rows currently held in the frame.
func (f *Frame) Len() int {
	if f == nil || f.Rows == 0 {
		return 0
	}
	return f.DF.Nrow()
}

// Normalize resolves a table's columns and builds its normalized frame. The
// first row of records is the header.
func (n *Normalizer) Normalize(records [][]string) (*Frame, error) {
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	names, index := CleanHeader(records[0])
	res, err := Resolve(names, n.mappings)
	if err != nil {
		return nil, err
	}
	source := make(map[string]int, len(names))
	for i, name := range names {
		source[name] = index[i]
	}

	rows := records[1:]
	frame := &Frame{Resolution: res, Rows: len(rows)}
	if len(rows) == 0 {
		return frame, nil
	}

	type logicalCol struct {
		name   string
		header string
		trim   bool
	}
	cols := []logicalCol{
		{ColDate, res.Date, false},
		{ColOrigin, res.Origin, true},
		{ColDest, res.Dest, true},
	}
	if res.HasCancelled() {
		cols = append(cols, logicalCol{ColCancelled, res.Cancelled, false})
	}
	if res.HasCarrier() {
		cols = append(cols, logicalCol{ColCarrier, res.Carrier, true})
	}

	seriesList := make([]series.Series, len(cols))
	for i, c := range cols {
		seriesList[i] = series.New(column(rows, source[c.header], c.trim), series.String, c.name)
	}

	frame.DF = dataframe.New(seriesList...)
	if err := frame.DF.Error(); err != nil {
		return nil, fmt.Errorf("build frame: %w", err)
	}
	return frame, nil
}

// Records converts the frame's rows to RawRecords. Rows whose date does not
// parse are dropped and counted.
func (f *Frame) Records() (records []models.RawRecord, badDates int) {
	n := f.Len()
	if n == 0 {
		return nil, 0
	}

	dates := f.DF.Col(ColDate).Records()
	origins := f.DF.Col(ColOrigin).Records()
	dests := f.DF.Col(ColDest).Records()
	var cancelled, carriers []string
	if f.Resolution.HasCancelled() {
		cancelled = f.DF.Col(ColCancelled).Records()
	}
	if f.Resolution.HasCarrier() {
		carriers = f.DF.Col(ColCarrier).Records()
	}

	records = make([]models.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		date, err := ParseDate(dates[i])
		if err != nil {
			badDates++
			continue
		}
		rec := models.RawRecord{
			Date:   date,
			Origin: origins[i],
			Dest:   dests[i],
		}
		if cancelled != nil {
			rec.Cancelled = ParseCancelled(cancelled[i])
		}
		if carriers != nil {
			rec.Carrier = sql.NullString{String: carriers[i], Valid: true}
		}
		records = append(records, rec)
	}
	return records, badDates
}

func column(rows [][]string, idx int, trim bool) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		if idx >= len(row) {
			continue
		}
		v := row[idx]
		if trim {
			v = strings.TrimSpace(v)
		}
		out[i] = v
	}
	return out
}

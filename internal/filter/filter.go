// Package filter selects the records that touch the focal location.
package filter

import (
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/lox/flightcounts/internal/models"
	"github.com/lox/flightcounts/internal/schema"
)

// Matches reports whether the focal code is the record's origin or
// destination. Comparison is exact and case-sensitive after trimming.
func Matches(rec models.RawRecord, focal string) bool {
	return strings.TrimSpace(rec.Origin) == focal || strings.TrimSpace(rec.Dest) == focal
}

// Tag classifies a record relative to the focal location. ok is false when
// the record does not touch it.
func Tag(rec models.RawRecord, focal string) (models.FilteredRecord, bool) {
	if !Matches(rec, focal) {
		return models.FilteredRecord{}, false
	}
	return models.FilteredRecord{
		RawRecord:   rec,
		IsDeparture: strings.TrimSpace(rec.Origin) == focal,
		IsArrival:   strings.TrimSpace(rec.Dest) == focal,
	}, true
}

// Frame keeps only the rows of a normalized frame that touch the focal
// location, so a file is reduced before its rows are materialized.
func Frame(f *schema.Frame, focal string) (*schema.Frame, error) {
	if f.Len() == 0 {
		return f, nil
	}

	df := f.DF.Filter(
		dataframe.F{Colname: schema.ColOrigin, Comparator: series.Eq, Comparando: focal},
		dataframe.F{Colname: schema.ColDest, Comparator: series.Eq, Comparando: focal},
	)
	if err := df.Error(); err != nil {
		return nil, fmt.Errorf("filter %s: %w", focal, err)
	}

	return &schema.Frame{Resolution: f.Resolution, Rows: f.Rows, DF: df}, nil
}

// Records filters and tags a normalized frame in one pass. badDates counts
// matching rows dropped because their date did not parse.
func Records(f *schema.Frame, focal string) (out []models.FilteredRecord, badDates int, err error) {
	matched, err := Frame(f, focal)
	if err != nil {
		return nil, 0, err
	}

	raw, badDates := matched.Records()
	out = make([]models.FilteredRecord, 0, len(raw))
	for _, rec := range raw {
		if fr, ok := Tag(rec, focal); ok {
			out = append(out, fr)
		}
	}
	return out, badDates, nil
}

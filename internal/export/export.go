// Package export writes the daily series and merged tables to disk.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/lox/flightcounts/internal/models"
)

const DateLayout = "2006-01-02"

// DailySheet is the sheet name used for XLSX output.
const DailySheet = "daily"

var dailyColumns = []string{
	"date",
	"scheduled_departures",
	"scheduled_arrivals",
	"cancelled_flights",
	"total_scheduled_flights",
	"cancellation_rate",
}

const carriersColumn = "num_carriers"

// DailyHeader returns the output columns for a series. num_carriers is
// included only when the series carries it.
func DailyHeader(daily []models.DailyAggregate) []string {
	header := append([]string{}, dailyColumns...)
	if hasCarriers(daily) {
		header = append(header, carriersColumn)
	}
	return header
}

func hasCarriers(daily []models.DailyAggregate) bool {
	for _, d := range daily {
		if d.NumCarriers.Valid {
			return true
		}
	}
	return false
}

// FormatFloat renders a float in its shortest exact form, so unchanged input
// always produces the same bytes.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DailyRows renders the series as string rows, header first.
func DailyRows(daily []models.DailyAggregate) [][]string {
	carriers := hasCarriers(daily)
	rows := make([][]string, 0, len(daily)+1)
	rows = append(rows, DailyHeader(daily))
	for _, d := range daily {
		row := []string{
			d.Date.Format(DateLayout),
			strconv.Itoa(d.ScheduledDepartures),
			strconv.Itoa(d.ScheduledArrivals),
			FormatFloat(d.CancelledFlights),
			strconv.Itoa(d.TotalScheduledFlights),
			"",
		}
		if d.CancellationRate.Valid {
			row[5] = FormatFloat(d.CancellationRate.Float64)
		}
		if carriers {
			if d.NumCarriers.Valid {
				row = append(row, strconv.FormatInt(d.NumCarriers.Int64, 10))
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteDaily writes the series to path. A .xlsx extension produces a
// workbook; anything else is written as CSV.
func WriteDaily(path string, daily []models.DailyAggregate) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return writeAtomic(path, func(w io.Writer) error {
			return writeDailyXLSX(w, daily)
		})
	}
	return WriteCSV(path, DailyRows(daily))
}

// WriteCSV writes rows to path as CSV, replacing any existing file.
func WriteCSV(path string, rows [][]string) error {
	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(rows); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		return nil
	})
}

func writeDailyXLSX(w io.Writer, daily []models.DailyAggregate) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), DailySheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := DailyHeader(daily)
	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := f.SetSheetRow(DailySheet, "A1", &cells); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	carriers := len(header) > len(dailyColumns)
	for i, d := range daily {
		row := []interface{}{
			d.Date.Format(DateLayout),
			d.ScheduledDepartures,
			d.ScheduledArrivals,
			d.CancelledFlights,
			d.TotalScheduledFlights,
			nil,
		}
		if d.CancellationRate.Valid {
			row[5] = d.CancellationRate.Float64
		}
		if carriers {
			if d.NumCarriers.Valid {
				row = append(row, d.NumCarriers.Int64)
			} else {
				row = append(row, nil)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(DailySheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// writeAtomic writes to a temp file alongside path and renames it into place.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

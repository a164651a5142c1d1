package ingest

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/lox/flightcounts/internal/models"
	"github.com/lox/flightcounts/internal/schema"
)

const goodCSV = "FL_DATE,ORIGIN,DEST,CANCELLED,UNIQUE_CARRIER\n" +
	"2024-01-01,JFK,LAX,0,AA\n" +
	"2024-01-01,BOS,JFK,1,B6\n" +
	"2024-01-02,JFK,SFO,0,AA\n" +
	"2024-01-02,ORD,LAX,0,UA\n"

const badSchemaCSV = "WHEN,FROM,TO\n" +
	"2024-01-01,JFK,LAX\n"

func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.csv", goodCSV)
	writeFile(t, dir, "a.TXT", goodCSV)
	writeFile(t, dir, "c.xlsx", "")
	writeFile(t, dir, "notes.md", "ignored")
	writeFile(t, dir, ".hidden.csv", goodCSV)
	if err := os.Mkdir(filepath.Join(dir, "nested.csv"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := DiscoverFiles(dir)
	if err != nil {
		t.Fatalf("DiscoverFiles: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.TXT"),
		filepath.Join(dir, "b.csv"),
		filepath.Join(dir, "c.xlsx"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DiscoverFiles = %v, want %v", got, want)
	}

	if _, err := DiscoverFiles(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(nil, "JFK", 1)

	tests := []struct {
		name        string
		file        string
		content     string
		wantStatus  models.FileStatus
		wantMatched int
		wantVersion string
		wantReason  string
	}{
		{"good", "good.csv", goodCSV, models.FileUsed, 3, "transtats", ""},
		{"bad schema", "bad.csv", badSchemaCSV, models.FileSkipped, 0, "", "date"},
		{"no location", "noloc.csv", "FL_DATE,DEST\n2024-01-01,JFK\n", models.FileSkipped, 0, "", "ORIGIN"},
		{"empty", "empty.csv", "", models.FileSkipped, 0, "", ""},
		{"header only", "header.csv", "FlightDate,Origin,Dest\n", models.FileUsed, 0, "prezip", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)
			records, report := loader.LoadFile(path)
			if report.Status != tt.wantStatus {
				t.Fatalf("Status = %q, want %q (reason %q)", report.Status, tt.wantStatus, report.Reason)
			}
			if len(records) != tt.wantMatched || report.RowsMatched != tt.wantMatched {
				t.Errorf("matched = %d/%d, want %d", len(records), report.RowsMatched, tt.wantMatched)
			}
			if report.MappingVersion != tt.wantVersion {
				t.Errorf("MappingVersion = %q, want %q", report.MappingVersion, tt.wantVersion)
			}
			if tt.wantReason != "" && !strings.Contains(report.Reason, tt.wantReason) {
				t.Errorf("Reason = %q, want it to mention %q", report.Reason, tt.wantReason)
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, report := NewLoader(nil, "JFK", 1).LoadFile(filepath.Join(t.TempDir(), "gone.csv"))
	if report.Status != models.FileFailed {
		t.Errorf("Status = %q, want failed", report.Status)
	}
	if report.Reason == "" {
		t.Error("Reason should be set")
	}
}

func TestLoadFile_Report(t *testing.T) {
	path := writeFile(t, t.TempDir(), "f.csv",
		"FL_DATE,ORIGIN,DEST\n2024-01-01,JFK,LAX\nlater,JFK,SFO\n2024-01-02,ORD,LAX\n")

	records, report := NewLoader(nil, "JFK", 1).LoadFile(path)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if report.RowsRead != 3 {
		t.Errorf("RowsRead = %d, want 3", report.RowsRead)
	}
	if report.BadDates != 1 {
		t.Errorf("BadDates = %d, want 1", report.BadDates)
	}
	if report.HasCancelled || report.HasCarrier {
		t.Errorf("HasCancelled/HasCarrier = %v/%v, want false/false", report.HasCancelled, report.HasCarrier)
	}
	if records[0].Cancelled != 0 {
		t.Errorf("Cancelled = %v, want default 0", records[0].Cancelled)
	}
}

func TestLoadFile_Duration(t *testing.T) {
	var b strings.Builder
	b.WriteString("FL_DATE,ORIGIN,DEST,CANCELLED\n")
	for i := 0; i < 5000; i++ {
		b.WriteString("2024-01-01,JFK,LAX,0\n")
	}
	path := writeFile(t, t.TempDir(), "big.csv", b.String())

	records, report := NewLoader(nil, "JFK", 1).LoadFile(path)
	if len(records) != 5000 {
		t.Fatalf("len(records) = %d, want 5000", len(records))
	}
	if report.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", report.Duration)
	}

	_, failed := NewLoader(nil, "JFK", 1).LoadFile(filepath.Join(t.TempDir(), "gone.csv"))
	if failed.Duration <= 0 {
		t.Errorf("Duration for failed file = %v, want > 0", failed.Duration)
	}
}

func TestLoadFile_CustomMappings(t *testing.T) {
	mappings, err := schema.ParseMappings([]byte(`
mappings:
  - version: custom
    date: [WHEN]
    origin: [FROM]
    dest: [TO]
`))
	if err != nil {
		t.Fatalf("ParseMappings: %v", err)
	}
	path := writeFile(t, t.TempDir(), "custom.csv", badSchemaCSV)

	records, report := NewLoader(schema.NewNormalizer(mappings), "JFK", 1).LoadFile(path)
	if report.Status != models.FileUsed || report.MappingVersion != "custom" {
		t.Fatalf("report = %+v", report)
	}
	if len(records) != 1 || !records[0].IsDeparture {
		t.Errorf("records = %+v", records)
	}
}

func TestLoadAll_SkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.csv", goodCSV)
	bad := writeFile(t, dir, "bad.csv", badSchemaCSV)
	loader := NewLoader(nil, "JFK", 4)

	alone, _, err := loader.LoadAll(context.Background(), []string{good})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	mixed, reports, err := loader.LoadAll(context.Background(), []string{bad, good})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	if !reflect.DeepEqual(alone.Results(), mixed.Results()) {
		t.Errorf("bad file changed the aggregate:\n%+v\n%+v", alone.Results(), mixed.Results())
	}
	if len(reports) != 2 {
		t.Fatalf("len(reports) = %d, want 2", len(reports))
	}
	if reports[0].Path != bad || reports[0].Status != models.FileSkipped {
		t.Errorf("reports[0] = %+v, want skipped %s", reports[0], bad)
	}
	if reports[1].Path != good || reports[1].Status != models.FileUsed {
		t.Errorf("reports[1] = %+v, want used %s", reports[1], good)
	}
}

func TestLoadAll_Cancelled(t *testing.T) {
	path := writeFile(t, t.TempDir(), "good.csv", goodCSV)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := NewLoader(nil, "JFK", 1).LoadAll(ctx, []string{path}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

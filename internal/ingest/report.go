package ingest

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/lox/flightcounts/internal/store"
)

// WriteRunsReport prints the archive state for focal: the latest successful
// run, the most recent failed runs and per-day run health.
func WriteRunsReport(w io.Writer, st *store.Store, focal string, failures, days int) error {
	version, err := st.MigrationVersion()
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	fmt.Fprintf(w, "schema version %d\n\n", version)

	latest, err := st.GetLatestRun(focal)
	if err != nil {
		return fmt.Errorf("latest run: %w", err)
	}
	if latest == nil {
		fmt.Fprintf(w, "no successful runs for %s\n", focal)
	} else {
		fmt.Fprintf(w, "latest run for %s: %s at %s\n", focal, latest.ID, latest.StartedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "  files %d used, %d skipped, %d failed; %d records, %d days -> %s\n",
			latest.FilesUsed.Int64, latest.FilesSkipped.Int64, latest.FilesFailed.Int64,
			latest.RecordsMatched.Int64, latest.DaysWritten.Int64, latest.OutputPath.String)
	}

	errs, err := st.GetRecentIngestErrors(failures)
	if err != nil {
		return fmt.Errorf("recent errors: %w", err)
	}
	fmt.Fprintf(w, "\nfailed runs (%d):\n", len(errs))
	for _, r := range errs {
		fmt.Fprintf(w, "  %s %s %s: %s\n", r.StartedAt.Format(time.RFC3339), r.Focal, r.ID, r.ErrorMessage.String)
	}

	health, err := st.GetIngestHealth(days)
	if err != nil {
		return fmt.Errorf("ingest health: %w", err)
	}
	fmt.Fprintf(w, "\nhealth, last %d days:\n", days)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  DATE\tFOCAL\tRUNS\tOK\tFAILED\tRECORDS\tSKIPPED FILES")
	for _, h := range health {
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			h.Date, h.Focal, h.TotalRuns, h.SuccessRuns, h.FailedRuns, h.RecordsMatched, h.FilesSkipped)
	}
	return tw.Flush()
}

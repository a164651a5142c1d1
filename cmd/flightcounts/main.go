package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	_ "modernc.org/sqlite"

	"github.com/lox/flightcounts/internal/config"
	"github.com/lox/flightcounts/internal/ingest"
	"github.com/lox/flightcounts/internal/schema"
	"github.com/lox/flightcounts/internal/store"
)

// SharedFlags are accepted by every pipeline command.
type SharedFlags struct {
	SourceDir   string `name:"source-dir" env:"FLIGHTCOUNTS_SOURCE_DIR" default:"${source_dir}" help:"Directory of raw BTS files (.csv, .txt, .xlsx)."`
	Output      string `name:"output" short:"o" env:"FLIGHTCOUNTS_OUTPUT" default:"${output}" help:"Daily series output (.csv or .xlsx)."`
	Focal       string `name:"focal" env:"FLIGHTCOUNTS_FOCAL" default:"${focal}" help:"Airport code to count flights for."`
	Merge       string `name:"merge" env:"FLIGHTCOUNTS_MERGE" default:"${merge}" help:"External table to join the counts onto; skipped if absent. Empty disables."`
	MergeOutput string `name:"merge-output" env:"FLIGHTCOUNTS_MERGE_OUTPUT" help:"Merged output path (default <merge>_with_flights.csv)."`
	MergeKey    string `name:"merge-key" env:"FLIGHTCOUNTS_MERGE_KEY" default:"${merge_key}" help:"Date column of the external table."`
	DB          string `name:"db" env:"FLIGHTCOUNTS_DB" help:"SQLite database to archive runs in."`
	MetricsFile string `name:"metrics-file" env:"FLIGHTCOUNTS_METRICS_FILE" help:"Write Prometheus metrics to this textfile after each run."`
	Workers     int    `name:"workers" env:"FLIGHTCOUNTS_WORKERS" default:"${workers}" help:"Files loaded in parallel."`
	Mappings    string `name:"mappings" env:"FLIGHTCOUNTS_MAPPINGS" help:"YAML schema mapping table replacing the built-in one."`
}

func (f SharedFlags) config() config.Config {
	return config.Config{
		SourceDir:       f.SourceDir,
		OutputPath:      f.Output,
		FocalCode:       f.Focal,
		MergePath:       f.Merge,
		MergeOutputPath: f.MergeOutput,
		MergeKey:        f.MergeKey,
		DBPath:          f.DB,
		MetricsFile:     f.MetricsFile,
		MappingsPath:    f.Mappings,
		Workers:         f.Workers,
	}
}

func loadNormalizer(path string) (*schema.Normalizer, error) {
	if path == "" {
		return schema.NewNormalizer(nil), nil
	}
	mappings, err := schema.LoadMappings(path)
	if err != nil {
		return nil, err
	}
	log.Printf("schema: loaded %d mappings from %s", len(mappings), path)
	return schema.NewNormalizer(mappings), nil
}

func openStore(path string) (*store.Store, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	if version, err := st.MigrationVersion(); err == nil {
		log.Printf("database migrated to version %d", version)
	}
	return st, func() { db.Close() }, nil
}

// runner validates the flags and wires up a pipeline runner. The returned
// cleanup func is always non-nil.
func (f SharedFlags) runner() (*ingest.Runner, config.Config, func(), error) {
	cleanup := func() {}
	cfg := f.config()
	if err := cfg.Validate(); err != nil {
		return nil, cfg, cleanup, err
	}

	normalizer, err := loadNormalizer(cfg.MappingsPath)
	if err != nil {
		return nil, cfg, cleanup, err
	}

	var st *store.Store
	if cfg.DBPath != "" {
		st, cleanup, err = openStore(cfg.DBPath)
		if err != nil {
			return nil, cfg, func() {}, err
		}
	}
	return ingest.NewRunner(cfg, normalizer, st), cfg, cleanup, nil
}

type RunCmd struct {
	SharedFlags `embed:""`
}

func (c *RunCmd) Run(ctx context.Context) error {
	runner, _, cleanup, err := c.runner()
	defer cleanup()
	if err != nil {
		return err
	}
	_, err = runner.RunOnce(ctx)
	return err
}

type WatchCmd struct {
	SharedFlags `embed:""`

	Schedule string        `name:"schedule" env:"FLIGHTCOUNTS_SCHEDULE" help:"Cron spec for periodic reruns, e.g. \"@every 1h\"."`
	Debounce time.Duration `name:"debounce" env:"FLIGHTCOUNTS_DEBOUNCE" default:"2s" help:"Quiet period after a file change before rerunning."`
}

func (c *WatchCmd) Run(ctx context.Context) error {
	runner, cfg, cleanup, err := c.runner()
	defer cleanup()
	if err != nil {
		return err
	}
	w := ingest.NewWatcher(runner, cfg.SourceDir, c.Schedule, c.Debounce, cfg.OutputPath, cfg.MergeOutput())
	return w.Run(ctx)
}

type MappingsCmd struct {
	Mappings string `name:"mappings" env:"FLIGHTCOUNTS_MAPPINGS" help:"YAML schema mapping table replacing the built-in one."`
}

func (c *MappingsCmd) Run() error {
	normalizer, err := loadNormalizer(c.Mappings)
	if err != nil {
		return err
	}
	data, err := schema.MarshalMappings(normalizer.Mappings())
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

type RunsCmd struct {
	DB       string `name:"db" env:"FLIGHTCOUNTS_DB" required:"" help:"SQLite database runs are archived in."`
	Focal    string `name:"focal" env:"FLIGHTCOUNTS_FOCAL" default:"${focal}" help:"Airport code to report on."`
	Failures int    `name:"failures" default:"10" help:"Number of recent failed runs to list."`
	Days     int    `name:"days" default:"7" help:"Days of run health to summarize."`
}

func (c *RunsCmd) Run() error {
	st, cleanup, err := openStore(c.DB)
	if err != nil {
		return err
	}
	defer cleanup()
	return ingest.WriteRunsReport(os.Stdout, st, c.Focal, c.Failures, c.Days)
}

type CLI struct {
	Run      RunCmd      `cmd:"" default:"withargs" help:"Build the daily series once and exit."`
	Watch    WatchCmd    `cmd:"" help:"Rebuild the daily series when source files change."`
	Mappings MappingsCmd `cmd:"" help:"Print the active schema mapping table as YAML."`
	Runs     RunsCmd     `cmd:"" help:"Show archived runs and ingest health."`
}

// defaultVars exposes the config defaults to the flag tags.
func defaultVars() kong.Vars {
	d := config.Default()
	return kong.Vars{
		"source_dir": d.SourceDir,
		"output":     d.OutputPath,
		"focal":      d.FocalCode,
		"merge":      d.MergePath,
		"merge_key":  d.MergeKey,
		"workers":    strconv.Itoa(d.Workers),
	}
}

func main() {
	envFile := os.Getenv("FLIGHTCOUNTS_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		log.Fatalf("env: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("flightcounts"),
		kong.Description("Daily scheduled-flight counts for one airport from BTS on-time data."),
		kong.UsageOnError(),
		defaultVars(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	err := kctx.Run()
	if errors.Is(err, ingest.ErrNoUsableInput) {
		log.Printf("nothing written: %v", err)
	}
	if err != nil {
		cancel()
		kctx.FatalIfErrorf(err)
	}
}

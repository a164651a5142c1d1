package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// Watcher reruns the pipeline when source files change and, optionally, on a
// cron schedule.
type Watcher struct {
	run      func(context.Context) error
	dir      string
	schedule string
	debounce time.Duration
	ignore   map[string]bool
}

// NewWatcher watches dir and reruns runner. Paths in ignore, typically the
// run's own outputs, never trigger a rerun.
func NewWatcher(runner *Runner, dir, schedule string, debounce time.Duration, ignore ...string) *Watcher {
	w := &Watcher{
		run: func(ctx context.Context) error {
			_, err := runner.RunOnce(ctx)
			return err
		},
		dir:      dir,
		schedule: schedule,
		debounce: debounce,
		ignore:   make(map[string]bool),
	}
	for _, p := range ignore {
		if abs, err := filepath.Abs(p); err == nil {
			w.ignore[abs] = true
		}
	}
	return w
}

// Run performs an initial run and then blocks, rerunning on changes, until
// ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	scheduled := make(chan struct{}, 1)
	if w.schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(w.schedule, func() {
			select {
			case scheduled <- struct{}{}:
			default:
			}
		}); err != nil {
			return fmt.Errorf("parse schedule %q: %w", w.schedule, err)
		}
		c.Start()
		defer c.Stop()
		log.Printf("watch: scheduled runs %q", w.schedule)
	}

	log.Printf("watch: watching %s", w.dir)
	w.runOnce(ctx, "startup")

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Println("watch: shutting down")
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch: %v", err)
		case <-timerC:
			timerC = nil
			w.runOnce(ctx, "change")
		case <-scheduled:
			w.runOnce(ctx, "schedule")
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || !sourceExts[strings.ToLower(filepath.Ext(base))] {
		return false
	}
	if abs, err := filepath.Abs(ev.Name); err == nil && w.ignore[abs] {
		return false
	}
	return true
}

func (w *Watcher) runOnce(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	log.Printf("watch: running (%s)", reason)
	if err := w.run(ctx); err != nil {
		if errors.Is(err, ErrNoUsableInput) {
			log.Printf("watch: nothing to write: %v", err)
			return
		}
		log.Printf("watch: run failed: %v", err)
	}
}

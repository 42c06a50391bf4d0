package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"
)

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 300 * time.Millisecond

// watch calls run once, then again after every change to path, until ctx is
// done. The directory is watched because editors often replace the file.
// It returns the last run's error.
func (a *app) watch(ctx context.Context, path string, run func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	last := run()
	a.stderrf(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)\n", path))

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return last
		case ev, ok := <-w.Events:
			if !ok {
				return last
			}
			if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(watchDebounce)
			trigger = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return last
			}
			a.stderrf(fmt.Sprintf("watch error: %v\n", err))
		case <-trigger:
			trigger = nil
			last = run()
			if last != nil && !isExitCoder(last) {
				return last
			}
		}
	}
}

func isExitCoder(err error) bool {
	var ec cli.ExitCoder
	return errors.As(err, &ec)
}

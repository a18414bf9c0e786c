package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// watchFile calls onChange with the prepared text each time path is
// written. Editors that replace the file on save are handled by watching
// the parent directory.
func watchFile(ctx context.Context, path string, markdown bool, onChange func(string)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("unable to get absolute path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("unable to watch %s: %w", path, err)
	}
	log.Debug("watching source", "path", abs)

	go func() {
		defer w.Close() //nolint:errcheck

		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
				} else {
					timer.Reset(watchDebounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				b, err := os.ReadFile(abs)
				if err != nil {
					log.Warn("unable to reread source", "path", abs, "error", err)
					continue
				}
				text, err := prepareText(b, markdown)
				if err != nil {
					log.Warn("unable to prepare source", "path", abs, "error", err)
					continue
				}
				log.Info("source changed", "path", abs, "chars", len(text))
				onChange(text)

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("watch error", "error", err)
			}
		}
	}()
	return nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layout

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler receives a freshly decoded layout.
type Handler func(ctx context.Context, l *Layout)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce is how long the file must stay quiet before it is reloaded.
	// Default: 200ms
	Debounce time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Watcher reloads a layout file when it changes.
//
// # Description
//
// Watches the file's directory, since editors and WriteFile replace files
// by rename. Events for other files are ignored. Bursts of events are
// debounced; when the window expires the file is decoded and passed to the
// handler. Invalid layouts are logged and skipped.
//
// # Thread Safety
//
// The handler is called from the Run goroutine only.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	logger   *slog.Logger

	closeOnce sync.Once
}

// NewWatcher creates a watcher for the layout at path.
func NewWatcher(path string, handler Handler, opts WatcherOptions) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve layout path: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		watcher:  fw,
		handler:  handler,
		debounce: opts.Debounce,
		logger:   opts.Logger.With(slog.String("layout", abs)),
	}, nil
}

// Run processes events until ctx is canceled or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("layout: watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	l, err := ReadFile(w.path)
	if err != nil {
		w.logger.Warn("layout: reload skipped", slog.String("error", err.Error()))
		return
	}
	w.logger.Info("layout: reloaded", slog.Int("tiles", len(l.Tiles)))
	if w.handler != nil {
		w.handler(ctx, l)
	}
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
	})
	return err
}

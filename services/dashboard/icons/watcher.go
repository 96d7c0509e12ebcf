// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package icons

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of changes to
// settle before firing.
const DefaultDebounce = 250 * time.Millisecond

// Watcher fires a callback when image files in a directory change.
//
// # Description
//
// Events for non-image files are ignored. Bursts (an upload writing a file
// in several chunks, a bulk copy) collapse into one callback after the
// debounce window passes without new events.
//
// # Thread Safety
//
// Safe for concurrent use. The callback runs on a single goroutine.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	onChange func()
	debounce time.Duration
	logger   *slog.Logger

	events   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher creates a watcher for dir. Call Start to begin.
func NewWatcher(dir string, onChange func(), opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		dir:      dir,
		watcher:  fw,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		events:   make(chan struct{}, 64),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start watches the directory until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops watching. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !IsImage(event.Name) || (event.Op == fsnotify.Chmod) {
				continue
			}
			select {
			case w.events <- struct{}{}:
			default:
				// A callback is already pending.
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("icon watcher error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.events:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.logger.Debug("icon directory changed", "dir", w.dir)
			if w.onChange != nil {
				w.onChange()
			}
		}
	}
}

// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls the configuration file and its profile overlay and reloads
// the configuration when either changes.
type Watcher struct {
	mu        sync.RWMutex
	path      string
	profile   string
	sets      map[string]any
	interval  time.Duration
	stamps    map[string]stamp
	config    *Config
	listeners []func(*Config)
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

type stamp struct {
	mod  time.Time
	size int64
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets the polling interval for file changes.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithProfile also watches the profile overlay of the main file.
func WithProfile(profile string) WatcherOption {
	return func(w *Watcher) {
		w.profile = profile
	}
}

// WithOverrides reapplies CLI --set arguments on every reload.
func WithOverrides(args []string) WatcherOption {
	return func(w *Watcher) {
		if _, sets, err := parseCLIOverrides(args); err == nil {
			w.sets = sets
		}
	}
}

// NewWatcher loads the configuration at path and prepares to watch it.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: time.Second,
		stamps:   make(map[string]stamp),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, p := range w.paths() {
		if info, err := os.Stat(p); err == nil {
			w.stamps[p] = stamp{mod: info.ModTime(), size: info.Size()}
		}
	}
	cfg, err := load(w.path, w.profile, w.sets)
	if err != nil {
		return nil, err
	}
	w.config = cfg
	return w, nil
}

// OnChange registers a callback run after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Config returns the current configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Start begins watching until ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.watch(ctx)
}

// Stop stops the watcher and waits for the polling loop to exit. It must
// only be called after Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *Watcher) paths() []string {
	paths := []string{w.path}
	if overlay := profileConfigPath(w.path, w.profile); overlay != "" {
		paths = append(paths, overlay)
	}
	return paths
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.changed() {
				w.reload()
			}
		}
	}
}

func (w *Watcher) changed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := false
	for _, p := range w.paths() {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		now := stamp{mod: info.ModTime(), size: info.Size()}
		if last, ok := w.stamps[p]; !ok || last != now {
			w.stamps[p] = now
			changed = true
		}
	}
	return changed
}

func (w *Watcher) reload() {
	cfg, err := load(w.path, w.profile, w.sets)
	if err != nil {
		slog.Default().Error("config.reload.failed", slog.String("path", w.path), slog.String("error", err.Error()))
		return
	}
	w.mu.Lock()
	w.config = cfg
	listeners := make([]func(*Config), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	slog.Default().Info("config.reloaded", slog.String("path", w.path))
	for _, fn := range listeners {
		fn(cfg)
	}
}

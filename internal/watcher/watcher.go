// Package watcher notices manifests dropped into the CSV directory and hands
// them to a handler once they stop changing.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/av-pairtree/internal/logger"
	"github.com/fsnotify/fsnotify"
)

const (
	ManifestExt   = ".csv"
	DefaultSettle = 500 * time.Millisecond
)

type Handler func(ctx context.Context, path string)

type Option func(*Watcher)

// WithSettle sets how long a manifest must go without events before it is
// handled. Large manifests are written in several chunks.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		w.settle = d
	}
}

type Watcher struct {
	dir    string
	handle Handler
	settle time.Duration

	mu         sync.Mutex
	timers     map[string]*time.Timer
	inProgress map[string]struct{}
	wg         sync.WaitGroup
}

func New(dir string, handle Handler, opts ...Option) *Watcher {
	w := &Watcher{
		dir:        dir,
		handle:     handle,
		settle:     DefaultSettle,
		timers:     make(map[string]*time.Timer),
		inProgress: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// IsManifest reports whether path names an input manifest. Rewritten
// manifests end in .out and are never picked up again.
func IsManifest(path string) bool {
	return filepath.Ext(path) == ManifestExt
}

// Run watches the directory until ctx is done, then waits for running
// handlers to return.
func (w *Watcher) Run(ctx context.Context) error {
	log := logger.FromContext(ctx).With("dir", w.dir)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	log.Info("watching for manifests")

	defer w.wait()

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !IsManifest(event.Name) {
				continue
			}
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}
			log.Debug("manifest event", "path", event.Name, "op", event.Op.String())
			w.schedule(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Error("watch error", "error", err)
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.timers[path] = time.AfterFunc(w.settle, func() { w.dispatch(ctx, path) })
}

func (w *Watcher) dispatch(ctx context.Context, path string) {
	w.mu.Lock()
	delete(w.timers, path)
	if _, busy := w.inProgress[path]; busy || ctx.Err() != nil {
		w.mu.Unlock()
		return
	}
	w.inProgress[path] = struct{}{}
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer func() {
			w.mu.Lock()
			delete(w.inProgress, path)
			w.mu.Unlock()
			w.wg.Done()
		}()
		w.handle(ctx, path)
	}()
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) wait() {
	w.wg.Wait()
}

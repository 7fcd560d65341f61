// Package bundlewatcher monitors LV2 bundle directories for changes. It
// detects change, it does not parse LV2 metadata itself.
package bundlewatcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	debounceInterval = 50 * time.Millisecond
	fallbackInterval = 2 * time.Second
	manifestFile     = "manifest.ttl"
)

// BundleState is the per-bundle tracked state.
type BundleState struct {
	Path         string
	LastModified time.Time
}

// Watcher monitors a set of root directories for LV2 bundle changes. Every
// subdirectory containing a manifest.ttl is a bundle; its mtime is that
// file's mtime.
type Watcher struct {
	roots    []string
	onChange func()

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	bundles map[string]BundleState
}

// New creates a Watcher over roots. onChange is invoked synchronously
// whenever a bundle is added, removed, or its manifest mtime changes: from
// the caller's goroutine for the initial scan inside Start, and from the
// watcher's own goroutine afterwards.
func New(roots []string, onChange func()) *Watcher {
	return &Watcher{
		roots:    roots,
		onChange: onChange,
		bundles:  make(map[string]BundleState),
	}
}

// Start performs an initial scan and begins watching for changes. It is
// safe to call Start once; a second call before Stop returns an error.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("bundlewatcher: already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("bundlewatcher: create fsnotify watcher: %w", err)
	}
	for _, root := range w.roots {
		if err := fsw.Add(root); err != nil {
			continue
		}
	}
	w.fsw = fsw
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true
	w.mu.Unlock()

	// scan takes mu itself, so it runs after the lock is released.
	w.scan()
	go w.loop()
	return nil
}

// Stop halts monitoring and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	w.mu.Unlock()

	<-w.done
	w.fsw.Close()
}

func (w *Watcher) loop() {
	defer close(w.done)

	ticker := time.NewTicker(fallbackInterval)
	defer ticker.Stop()

	var debounce *time.Timer
	debounceC := func() <-chan time.Time {
		if debounce == nil {
			return nil
		}
		return debounce.C
	}

	for {
		select {
		case <-w.stop:
			return
		case _, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceInterval)
			} else {
				debounce.Reset(debounceInterval)
			}
		case <-debounceC():
			debounce = nil
			w.scan()
		case <-ticker.C:
			w.scan()
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// scan enumerates every bundle under every root and triggers onChange if
// the observed state differs from the last scan.
func (w *Watcher) scan() {
	current := make(map[string]BundleState)
	for _, root := range w.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			path := filepath.Join(root, entry.Name())
			manifest := filepath.Join(path, manifestFile)
			info, err := os.Stat(manifest)
			if err != nil {
				continue
			}
			current[path] = BundleState{Path: path, LastModified: info.ModTime()}
		}
	}

	w.mu.Lock()
	changed := false
	for path, state := range current {
		if prev, ok := w.bundles[path]; !ok || !prev.LastModified.Equal(state.LastModified) {
			changed = true
		}
	}
	for path := range w.bundles {
		if _, ok := current[path]; !ok {
			changed = true
		}
	}
	w.bundles = current
	w.mu.Unlock()

	if changed && w.onChange != nil {
		w.onChange()
	}
}

// Bundles returns a snapshot of the currently tracked bundle state.
func (w *Watcher) Bundles() []BundleState {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]BundleState, 0, len(w.bundles))
	for _, b := range w.bundles {
		out = append(out, b)
	}
	return out
}
